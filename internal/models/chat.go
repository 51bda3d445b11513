package models

import "time"

// Chat is a thread between exactly two users. Its id is derived from the participant ids.
type Chat struct {
	ID           string          `db:"id" json:"id"`
	User1ID      string          `db:"user1_id" json:"user1_id"`
	User2ID      string          `db:"user2_id" json:"user2_id"`
	LastMessage  string          `db:"last_message" json:"last_message"`
	LastActivity time.Time       `db:"last_activity" json:"last_activity"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	Typing       map[string]bool `db:"-" json:"typing"`
}

// Participants returns both user ids.
func (c Chat) Participants() []string {
	return []string{c.User1ID, c.User2ID}
}

// HasParticipant reports whether userID belongs to the chat.
func (c Chat) HasParticipant(userID string) bool {
	return c.User1ID == userID || c.User2ID == userID
}

// Peer returns the other participant.
func (c Chat) Peer(userID string) string {
	if c.User1ID == userID {
		return c.User2ID
	}
	return c.User1ID
}

// ChatSummary provides the chat-list view of a chat for one user.
type ChatSummary struct {
	ChatID       string         `db:"id" json:"chat_id"`
	PeerID       string         `db:"peer_id" json:"peer_id"`
	LastMessage  string         `db:"last_message" json:"last_message"`
	LastActivity time.Time      `db:"last_activity" json:"last_activity"`
	UnreadCount  int            `db:"unread_count" json:"unread_count"`
	PeerTyping   bool           `db:"peer_typing" json:"peer_typing"`
	Peer         *PublicProfile `db:"-" json:"peer,omitempty"`
}
