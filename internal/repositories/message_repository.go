package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"messenger-service/internal/models"
)

var (
	ErrMessageNotFound = errors.New("message not found")
	ErrNotRecipient    = errors.New("only the recipient can mark a message seen")
)

// Cursor marks a position in a chat's history. Messages sharing a timestamp are ordered by id.
// A zero At means the newest end; an empty ID excludes every message at At.
type Cursor struct {
	At time.Time
	ID string
}

// MessageRepository defines interactions for chat messages.
type MessageRepository interface {
	CreateMessage(ctx context.Context, msg models.Message) (models.Message, error)
	ListMessages(ctx context.Context, chatID string, before Cursor, limit int) ([]models.Message, error)
	GetMessage(ctx context.Context, messageID string) (models.Message, error)
	SetReaction(ctx context.Context, messageID string, reaction *models.Reaction) (models.Message, error)
	MarkSeen(ctx context.Context, messageID string, readerID string) (models.Message, bool, error)
	MarkChatSeen(ctx context.Context, chatID string, readerID string) ([]string, error)
	CompleteUpload(ctx context.Context, messageID string, imageURL string) (models.Message, error)
}

const messageColumns = `id, chat_id, sender_id, text, image_url, reaction, reply_to, emoji_only, seen, uploading, created_at`

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

// CreateMessage stores a message. The caller assigns the id and derived flags.
func (r *MessageRepo) CreateMessage(ctx context.Context, msg models.Message) (models.Message, error) {
	var out models.Message
	err := r.db.GetContext(ctx, &out, `INSERT INTO messages (id, chat_id, sender_id, text, image_url, reaction, reply_to, emoji_only, seen, uploading, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, FALSE, $9, $10)
        RETURNING `+messageColumns,
		msg.ID, msg.ChatID, msg.SenderID, msg.Text, msg.ImageURL, msg.Reaction, msg.ReplyTo, msg.EmojiOnly, msg.Uploading, msg.CreatedAt)
	return out, err
}

// ListMessages returns up to limit messages before the cursor, oldest first.
func (r *MessageRepo) ListMessages(ctx context.Context, chatID string, before Cursor, limit int) ([]models.Message, error) {
	msgs := []models.Message{}
	var err error
	switch {
	case before.At.IsZero():
		err = r.db.SelectContext(ctx, &msgs, `SELECT * FROM (
            SELECT `+messageColumns+` FROM messages WHERE chat_id=$1 ORDER BY created_at DESC, id DESC LIMIT $2
        ) recent ORDER BY created_at ASC, id ASC`, chatID, limit)
	case before.ID == "":
		err = r.db.SelectContext(ctx, &msgs, `SELECT * FROM (
            SELECT `+messageColumns+` FROM messages WHERE chat_id=$1 AND created_at < $2 ORDER BY created_at DESC, id DESC LIMIT $3
        ) page ORDER BY created_at ASC, id ASC`, chatID, before.At, limit)
	default:
		err = r.db.SelectContext(ctx, &msgs, `SELECT * FROM (
            SELECT `+messageColumns+` FROM messages WHERE chat_id=$1 AND (created_at, id) < ($2, $3) ORDER BY created_at DESC, id DESC LIMIT $4
        ) page ORDER BY created_at ASC, id ASC`, chatID, before.At, before.ID, limit)
	}
	return msgs, err
}

// GetMessage retrieves a single message.
func (r *MessageRepo) GetMessage(ctx context.Context, messageID string) (models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg, `SELECT `+messageColumns+` FROM messages WHERE id=$1`, messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}

// SetReaction replaces the reaction of a message. A nil reaction clears it.
func (r *MessageRepo) SetReaction(ctx context.Context, messageID string, reaction *models.Reaction) (models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg, `UPDATE messages SET reaction=$2 WHERE id=$1 RETURNING `+messageColumns, messageID, reaction)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}

// MarkSeen flags a message as seen by its recipient. The bool reports whether the state changed.
func (r *MessageRepo) MarkSeen(ctx context.Context, messageID string, readerID string) (models.Message, bool, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg, `UPDATE messages SET seen=TRUE
        WHERE id=$1 AND sender_id<>$2 AND seen=FALSE
        RETURNING `+messageColumns, messageID, readerID)
	if err == nil {
		return msg, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, false, err
	}

	msg, err = r.GetMessage(ctx, messageID)
	if err != nil {
		return models.Message{}, false, err
	}
	if msg.SenderID == readerID {
		return models.Message{}, false, ErrNotRecipient
	}
	return msg, false, nil
}

// MarkChatSeen flags every unseen message from the peer as seen and returns their ids.
func (r *MessageRepo) MarkChatSeen(ctx context.Context, chatID string, readerID string) ([]string, error) {
	ids := []string{}
	err := r.db.SelectContext(ctx, &ids, `UPDATE messages SET seen=TRUE
        WHERE chat_id=$1 AND sender_id<>$2 AND seen=FALSE
        RETURNING id`, chatID, readerID)
	return ids, err
}

// CompleteUpload attaches the image to a message that is still uploading.
func (r *MessageRepo) CompleteUpload(ctx context.Context, messageID string, imageURL string) (models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg, `UPDATE messages SET image_url=$2, uploading=FALSE
        WHERE id=$1 AND uploading=TRUE
        RETURNING `+messageColumns, messageID, imageURL)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}
