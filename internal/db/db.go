package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS users (
            id TEXT PRIMARY KEY,
            name TEXT NOT NULL DEFAULT '',
            username TEXT NOT NULL,
            email TEXT NOT NULL,
            password_hash TEXT NOT NULL,
            bio TEXT NOT NULL DEFAULT '',
            profile_image TEXT NOT NULL DEFAULT '',
            online BOOLEAN NOT NULL DEFAULT FALSE,
            notifications BOOLEAN NOT NULL DEFAULT TRUE,
            sound_enabled BOOLEAN NOT NULL DEFAULT TRUE,
            vibration_enabled BOOLEAN NOT NULL DEFAULT TRUE,
            read_receipts BOOLEAN NOT NULL DEFAULT TRUE,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );`,
	`CREATE UNIQUE INDEX IF NOT EXISTS users_username_key ON users (LOWER(username));`,
	`CREATE UNIQUE INDEX IF NOT EXISTS users_email_key ON users (LOWER(email));`,
	`CREATE TABLE IF NOT EXISTS chats (
            id TEXT PRIMARY KEY,
            user1_id TEXT NOT NULL REFERENCES users(id),
            user2_id TEXT NOT NULL REFERENCES users(id),
            last_message TEXT NOT NULL DEFAULT '',
            last_activity TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );`,
	// byte order, matching chatid.Order regardless of the database collation
	`ALTER TABLE chats DROP CONSTRAINT IF EXISTS chats_check;`,
	`ALTER TABLE chats DROP CONSTRAINT IF EXISTS chats_participants_ordered;`,
	`ALTER TABLE chats ADD CONSTRAINT chats_participants_ordered CHECK (user1_id COLLATE "C" < user2_id COLLATE "C");`,
	`CREATE INDEX IF NOT EXISTS chats_user1_idx ON chats (user1_id, last_activity DESC);`,
	`CREATE INDEX IF NOT EXISTS chats_user2_idx ON chats (user2_id, last_activity DESC);`,
	`CREATE TABLE IF NOT EXISTS chat_typing (
            chat_id TEXT NOT NULL REFERENCES chats(id) ON DELETE CASCADE,
            user_id TEXT NOT NULL,
            typing BOOLEAN NOT NULL DEFAULT FALSE,
            updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            PRIMARY KEY (chat_id, user_id)
        );`,
	`CREATE TABLE IF NOT EXISTS messages (
            id TEXT PRIMARY KEY,
            chat_id TEXT NOT NULL REFERENCES chats(id) ON DELETE CASCADE,
            sender_id TEXT NOT NULL,
            text TEXT NOT NULL DEFAULT '',
            image_url TEXT NOT NULL DEFAULT '',
            reaction JSONB,
            reply_to JSONB,
            emoji_only BOOLEAN NOT NULL DEFAULT FALSE,
            seen BOOLEAN NOT NULL DEFAULT FALSE,
            uploading BOOLEAN NOT NULL DEFAULT FALSE,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );`,
	`CREATE INDEX IF NOT EXISTS messages_chat_created_idx ON messages (chat_id, created_at);`,
	`CREATE INDEX IF NOT EXISTS messages_unseen_idx ON messages (chat_id, sender_id) WHERE seen = FALSE;`,
}

// Connect opens the database and verifies connectivity.
func Connect(ctx context.Context, dsn string) (*sqlx.DB, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	return db, nil
}

// Migrate applies the schema. Statements are idempotent.
func Migrate(ctx context.Context, db *sqlx.DB, log *zap.Logger) error {
	for i, m := range migrations {
		if _, err := db.ExecContext(ctx, m); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	log.Info("database_migrations_applied", zap.Int("statements", len(migrations)))
	return nil
}
