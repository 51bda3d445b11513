package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMessagePreview(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"text", "hello", "hello"},
		{"empty", "", PhotoPreview},
		{"blank", "  \n\t", PhotoPreview},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Message{Text: tt.text, Uploading: true}.Preview())
		})
	}
}
