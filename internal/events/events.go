package events

import (
	"context"
	"time"

	"go.uber.org/zap"

	"messenger-service/internal/models"
	"messenger-service/internal/observability"
)

// Routing keys on the messenger exchange.
const (
	KeyMessageCreated = "chat.message.created"
	KeyChatCreated    = "chat.created"
	KeyUserRegistered = "user.registered"
)

type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any, headers map[string]string) error
}

// Envelope wraps every domain event.
type Envelope struct {
	SchemaVersion int       `json:"schema_version"`
	EventType     string    `json:"event_type"`
	OccurredAt    time.Time `json:"occurred_at"`
	Payload       any       `json:"payload"`
}

// MessageCreated carries what a push notifier needs to decide whether and how to alert the recipient.
type MessageCreated struct {
	MessageID   string          `json:"message_id"`
	ChatID      string          `json:"chat_id"`
	SenderID    string          `json:"sender_id"`
	SenderName  string          `json:"sender_name,omitempty"`
	RecipientID string          `json:"recipient_id"`
	Preview     string          `json:"preview"`
	Recipient   models.Settings `json:"recipient_settings"`
	RecipientOn bool            `json:"recipient_online"`
}

type ChatCreated struct {
	ChatID  string `json:"chat_id"`
	User1ID string `json:"user1_id"`
	User2ID string `json:"user2_id"`
}

type UserRegistered struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
}

// Emitter publishes domain events. Failures are logged and never reach the caller.
type Emitter struct {
	publisher Publisher
	log       *zap.Logger
	now       func() time.Time
}

func NewEmitter(publisher Publisher, log *zap.Logger) *Emitter {
	return &Emitter{publisher: publisher, log: log, now: time.Now}
}

func (e *Emitter) MessageCreated(ctx context.Context, ev MessageCreated, requestID string) {
	e.emit(ctx, KeyMessageCreated, ev, requestID)
}

func (e *Emitter) ChatCreated(ctx context.Context, ev ChatCreated, requestID string) {
	e.emit(ctx, KeyChatCreated, ev, requestID)
}

func (e *Emitter) UserRegistered(ctx context.Context, ev UserRegistered, requestID string) {
	e.emit(ctx, KeyUserRegistered, ev, requestID)
}

func (e *Emitter) emit(ctx context.Context, key string, payload any, requestID string) {
	if e == nil || e.publisher == nil {
		return
	}
	env := Envelope{SchemaVersion: 1, EventType: key, OccurredAt: e.now().UTC(), Payload: payload}
	headers := observability.BuildHeaders(requestID, observability.TraceID(ctx))
	if err := e.publisher.Publish(ctx, key, env, headers); err != nil {
		e.log.Warn("domain_event_publish_failed", zap.String("routing_key", key), zap.Error(err))
	}
}
