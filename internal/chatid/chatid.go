// Package chatid derives the identifier of the chat between two users.
//
// The id only depends on the unordered pair of participants, so both sides
// of a conversation resolve to the same chat without a lookup.
package chatid

import (
	"errors"
	"strings"
)

const separator = "_"

var (
	ErrEmptyID   = errors.New("user id must not be empty")
	ErrSelfChat  = errors.New("cannot create chat with self")
	ErrMalformed = errors.New("malformed chat id")
)

// For returns the canonical chat id for users a and b.
func For(a, b string) (string, error) {
	if a == "" || b == "" {
		return "", ErrEmptyID
	}
	if strings.Contains(a, separator) || strings.Contains(b, separator) {
		return "", ErrMalformed
	}
	if a == b {
		return "", ErrSelfChat
	}
	first, second := Order(a, b)
	return first + separator + second, nil
}

// Order returns the two ids in canonical order.
func Order(a, b string) (string, string) {
	if b < a {
		return b, a
	}
	return a, b
}

// Participants splits a chat id back into its two user ids.
func Participants(chatID string) (string, string, error) {
	parts := strings.Split(chatID, separator)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" || parts[0] >= parts[1] {
		return "", "", ErrMalformed
	}
	return parts[0], parts[1], nil
}
