package client

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNearBottomThreshold(t *testing.T) {
	tests := []struct {
		name   string
		offset float64
		want   bool
	}{
		{name: "at bottom", offset: 1400, want: true},
		{name: "exactly 50px away", offset: 1350, want: true},
		{name: "51px away", offset: 1349, want: false},
		{name: "reading history", offset: 200, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := NewScrollTracker()
			tr.Scrolled(tt.offset, 2000, 600)
			assert.Equal(t, tt.want, tr.NearBottom())
			assert.Equal(t, tt.want, tr.ShouldAutoScroll())
		})
	}
}

func TestContentChangedUsesStateBeforeArrival(t *testing.T) {
	tr := NewScrollTracker()
	tr.Scrolled(1400, 2000, 600)

	// A tall message pushes the end far below the viewport; we were at the bottom before it arrived.
	assert.True(t, tr.ContentChanged(2600))
	assert.True(t, tr.NearBottom())

	tr.Scrolled(300, 2600, 600)
	assert.False(t, tr.ContentChanged(2700))
	assert.False(t, tr.NearBottom())
}

func TestNewTrackerFollows(t *testing.T) {
	tr := NewScrollTracker()
	assert.True(t, tr.ShouldAutoScroll())
	assert.True(t, tr.ContentChanged(800))
}
