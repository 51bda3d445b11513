package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// PhotoPreview is the chat-list preview of a message without text.
const PhotoPreview = "📷 Photo"

// Message is a chat message. Messages are mutated in place and never deleted.
type Message struct {
	ID        string         `db:"id" json:"id"`
	ChatID    string         `db:"chat_id" json:"chat_id"`
	SenderID  string         `db:"sender_id" json:"sender_id"`
	Text      string         `db:"text" json:"text"`
	ImageURL  string         `db:"image_url" json:"image_url,omitempty"`
	Reaction  *Reaction      `db:"reaction" json:"reaction,omitempty"`
	ReplyTo   *ReplySnapshot `db:"reply_to" json:"reply_to,omitempty"`
	EmojiOnly bool           `db:"emoji_only" json:"emoji_only"`
	Seen      bool           `db:"seen" json:"seen"`
	Uploading bool           `db:"uploading" json:"uploading"`
	CreatedAt time.Time      `db:"created_at" json:"created_at"`
}

// Preview is the text shown in the chat list for this message.
func (m Message) Preview() string {
	if strings.TrimSpace(m.Text) != "" {
		return m.Text
	}
	return PhotoPreview
}

// Reaction is either an icon with a color or a legacy plain emoji.
type Reaction struct {
	Icon  string `json:"icon,omitempty"`
	Color string `json:"color,omitempty"`
	Emoji string `json:"emoji,omitempty"`
}

var ErrInvalidReaction = errors.New("reaction must be either icon+color or emoji")

// Validate enforces that exactly one reaction form is used.
func (r Reaction) Validate() error {
	iconForm := r.Icon != "" || r.Color != ""
	emojiForm := r.Emoji != ""
	switch {
	case iconForm && emojiForm:
		return ErrInvalidReaction
	case iconForm && (r.Icon == "" || r.Color == ""):
		return ErrInvalidReaction
	case !iconForm && !emojiForm:
		return ErrInvalidReaction
	}
	return nil
}

// Value stores the reaction as JSONB.
func (r *Reaction) Value() (driver.Value, error) {
	if r == nil {
		return nil, nil
	}
	return json.Marshal(r)
}

// Scan reads a JSONB reaction.
func (r *Reaction) Scan(src any) error {
	return scanJSON(src, r)
}

// ReplySnapshot is a copy of the replied-to message taken at send time.
type ReplySnapshot struct {
	MessageID string `json:"message_id"`
	SenderID  string `json:"sender_id"`
	Text      string `json:"text"`
	ImageURL  string `json:"image_url,omitempty"`
}

// Value stores the snapshot as JSONB.
func (s *ReplySnapshot) Value() (driver.Value, error) {
	if s == nil {
		return nil, nil
	}
	return json.Marshal(s)
}

// Scan reads a JSONB snapshot.
func (s *ReplySnapshot) Scan(src any) error {
	return scanJSON(src, s)
}

func scanJSON(src any, dst any) error {
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(v, dst)
	case string:
		return json.Unmarshal([]byte(v), dst)
	default:
		return errors.New("unsupported json column type")
	}
}

// Event types broadcast over websockets.
const (
	EventMessage        = "message"
	EventMessageUpdated = "message_updated"
	EventMessageSeen    = "message_seen"
	EventTyping         = "typing"
	EventChatUpdated    = "chat_updated"
	EventPresence       = "presence"
)

// ChatEvent is broadcast to the subscribers of a chat room.
type ChatEvent struct {
	Type      string   `json:"type"`
	ChatID    string   `json:"chat_id"`
	Message   *Message `json:"message,omitempty"`
	MessageID string   `json:"message_id,omitempty"`
	UserID    string   `json:"user_id,omitempty"`
	Typing    *bool    `json:"typing,omitempty"`
}

// FeedEvent is broadcast to a user's feed (chat list, peer typing and presence).
type FeedEvent struct {
	Type   string       `json:"type"`
	Chat   *ChatSummary `json:"chat,omitempty"`
	ChatID string       `json:"chat_id,omitempty"`
	UserID string       `json:"user_id,omitempty"`
	Typing *bool        `json:"typing,omitempty"`
	Online *bool        `json:"online,omitempty"`
}
