// Package emoji classifies message text that consists only of emoji.
package emoji

import (
	"regexp"
	"strings"
)

// The ranges are intentionally limited to the classic emoji blocks.
// Skin-tone modifiers (U+1F3FB-1F3FF), ZWJ sequences, variation selectors
// and newer blocks are not matched.
var emojiOnly = regexp.MustCompile(`^[` +
	`\x{1F300}-\x{1F3FA}` +
	`\x{1F400}-\x{1F5FF}` +
	`\x{1F600}-\x{1F64F}` +
	`\x{1F680}-\x{1F6FF}` +
	`\x{1F900}-\x{1F9FF}` +
	`\x{1F1E6}-\x{1F1FF}` +
	`\x{2600}-\x{26FF}` +
	`\x{2700}-\x{27BF}` +
	`]+$`)

// IsEmojiOnly reports whether the trimmed text is a single run of emoji.
func IsEmojiOnly(text string) bool {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return false
	}
	return emojiOnly.MatchString(trimmed)
}
