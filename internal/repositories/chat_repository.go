package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"messenger-service/internal/chatid"
	"messenger-service/internal/models"
)

var ErrChatNotFound = errors.New("chat not found")

// TypingKey identifies a typing flag.
type TypingKey struct {
	ChatID string `db:"chat_id"`
	UserID string `db:"user_id"`
}

// ChatRepository abstracts chat persistence.
type ChatRepository interface {
	CreateOrGetChat(ctx context.Context, userID string, peerID string) (models.Chat, bool, error)
	IsParticipant(ctx context.Context, chatID string, userID string) (bool, error)
	GetChat(ctx context.Context, chatID string) (models.Chat, error)
	ListChats(ctx context.Context, userID string) ([]models.ChatSummary, error)
	GetSummary(ctx context.Context, chatID string, userID string) (models.ChatSummary, error)
	TouchLastMessage(ctx context.Context, chatID string, preview string, at time.Time) error
	SetTyping(ctx context.Context, chatID string, userID string, typing bool) error
	ClearStaleTyping(ctx context.Context, before time.Time) ([]TypingKey, error)
	ListPeers(ctx context.Context, userID string) ([]string, error)
}

// ChatRepo is a sqlx implementation of ChatRepository.
type ChatRepo struct {
	db *sqlx.DB
}

// NewChatRepo constructs a ChatRepo.
func NewChatRepo(db *sqlx.DB) *ChatRepo {
	return &ChatRepo{db: db}
}

const chatColumns = `id, user1_id, user2_id, last_message, last_activity, created_at`

// CreateOrGetChat returns the chat between two users, creating it if absent.
// The id is derived from the pair, so concurrent calls from both sides converge on one row.
func (r *ChatRepo) CreateOrGetChat(ctx context.Context, userID string, peerID string) (models.Chat, bool, error) {
	id, err := chatid.For(userID, peerID)
	if err != nil {
		return models.Chat{}, false, err
	}
	user1, user2 := chatid.Order(userID, peerID)

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Chat{}, false, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `INSERT INTO chats (id, user1_id, user2_id) VALUES ($1, $2, $3)
        ON CONFLICT (id) DO NOTHING`, id, user1, user2)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == errFKViolated {
			return models.Chat{}, false, ErrUserNotFound
		}
		return models.Chat{}, false, fmt.Errorf("insert chat: %w", err)
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return models.Chat{}, false, err
	}

	var chat models.Chat
	if err := tx.GetContext(ctx, &chat, `SELECT `+chatColumns+` FROM chats WHERE id=$1`, id); err != nil {
		return models.Chat{}, false, fmt.Errorf("load chat: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return models.Chat{}, false, err
	}
	chat.Typing = map[string]bool{user1: false, user2: false}
	return chat, inserted == 1, nil
}

// IsParticipant checks whether a user belongs to the chat.
func (r *ChatRepo) IsParticipant(ctx context.Context, chatID string, userID string) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM chats WHERE id=$1 AND (user1_id=$2 OR user2_id=$2))`, chatID, userID)
	return exists, err
}

// GetChat fetches a chat by id together with its typing flags.
func (r *ChatRepo) GetChat(ctx context.Context, chatID string) (models.Chat, error) {
	var chat models.Chat
	err := r.db.GetContext(ctx, &chat, `SELECT `+chatColumns+` FROM chats WHERE id=$1`, chatID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Chat{}, ErrChatNotFound
	}
	if err != nil {
		return models.Chat{}, err
	}

	var flags []struct {
		UserID string `db:"user_id"`
		Typing bool   `db:"typing"`
	}
	if err := r.db.SelectContext(ctx, &flags, `SELECT user_id, typing FROM chat_typing WHERE chat_id=$1`, chatID); err != nil {
		return models.Chat{}, err
	}
	chat.Typing = map[string]bool{chat.User1ID: false, chat.User2ID: false}
	for _, f := range flags {
		chat.Typing[f.UserID] = f.Typing
	}
	return chat, nil
}

const summaryQuery = `SELECT c.id,
            CASE WHEN c.user1_id=$1 THEN c.user2_id ELSE c.user1_id END AS peer_id,
            c.last_message,
            c.last_activity,
            (SELECT COUNT(*) FROM messages m WHERE m.chat_id=c.id AND m.sender_id<>$1 AND m.seen=FALSE) AS unread_count,
            COALESCE((SELECT t.typing FROM chat_typing t WHERE t.chat_id=c.id AND t.user_id<>$1), FALSE) AS peer_typing
        FROM chats c
        WHERE (c.user1_id=$1 OR c.user2_id=$1)`

// ListChats returns the user's chats, most recently active first.
func (r *ChatRepo) ListChats(ctx context.Context, userID string) ([]models.ChatSummary, error) {
	result := []models.ChatSummary{}
	err := r.db.SelectContext(ctx, &result, summaryQuery+` ORDER BY c.last_activity DESC`, userID)
	return result, err
}

// GetSummary returns the chat-list view of one chat for userID.
func (r *ChatRepo) GetSummary(ctx context.Context, chatID string, userID string) (models.ChatSummary, error) {
	var summary models.ChatSummary
	err := r.db.GetContext(ctx, &summary, summaryQuery+` AND c.id=$2`, userID, chatID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ChatSummary{}, ErrChatNotFound
	}
	return summary, err
}

// TouchLastMessage updates the preview and activity timestamp.
func (r *ChatRepo) TouchLastMessage(ctx context.Context, chatID string, preview string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `UPDATE chats SET last_message=$2, last_activity=$3 WHERE id=$1`, chatID, preview, at)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrChatNotFound
	}
	return nil
}

// SetTyping stores the per-user typing flag of a chat.
func (r *ChatRepo) SetTyping(ctx context.Context, chatID string, userID string, typing bool) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO chat_typing (chat_id, user_id, typing, updated_at) VALUES ($1, $2, $3, NOW())
        ON CONFLICT (chat_id, user_id) DO UPDATE SET typing = EXCLUDED.typing, updated_at = NOW()`, chatID, userID, typing)
	return err
}

// ClearStaleTyping resets typing flags that were last set before the cutoff.
func (r *ChatRepo) ClearStaleTyping(ctx context.Context, before time.Time) ([]TypingKey, error) {
	keys := []TypingKey{}
	err := r.db.SelectContext(ctx, &keys, `UPDATE chat_typing SET typing=FALSE, updated_at=NOW()
        WHERE typing = TRUE AND updated_at < $1
        RETURNING chat_id, user_id`, before)
	return keys, err
}

// ListPeers returns every user that shares a chat with userID.
func (r *ChatRepo) ListPeers(ctx context.Context, userID string) ([]string, error) {
	peers := []string{}
	err := r.db.SelectContext(ctx, &peers, `SELECT CASE WHEN user1_id=$1 THEN user2_id ELSE user1_id END
        FROM chats WHERE user1_id=$1 OR user2_id=$1`, userID)
	return peers, err
}
