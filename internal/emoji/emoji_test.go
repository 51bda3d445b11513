package emoji

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsEmojiOnly(t *testing.T) {
	tests := []struct {
		name string
		text string
		want bool
	}{
		{name: "single emoticon", text: "😀", want: true},
		{name: "run of emoji", text: "😂🔥🚀", want: true},
		{name: "surrounding whitespace", text: "  ❤  ", want: true},
		{name: "dingbat and misc symbol", text: "✅☀", want: true},
		{name: "flag pair", text: "🇩🇪", want: true},
		{name: "supplemental block", text: "🤖🥳", want: true},
		{name: "mixed with text", text: "hi 😀", want: false},
		{name: "interior space", text: "😀 😀", want: false},
		{name: "plain text", text: "hello", want: false},
		{name: "empty", text: "", want: false},
		{name: "whitespace only", text: "   ", want: false},
		{name: "skin tone modifier", text: "👍🏽", want: false},
		{name: "variation selector", text: "❤️", want: false},
		{name: "digits", text: "123", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsEmojiOnly(tt.text))
		})
	}
}
