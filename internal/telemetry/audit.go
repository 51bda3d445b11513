package telemetry

import (
	"context"
	"time"

	"go.uber.org/zap"

	"messenger-service/internal/observability"
)

type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any, headers map[string]string) error
}

// AuditEmitter records security-relevant account actions (register, login, logout, profile edits).
type AuditEmitter struct {
	publisher   Publisher
	routingKey  string
	service     string
	environment string
	log         *zap.Logger
}

type AuditEnvelope struct {
	SchemaVersion int          `json:"schema_version"`
	EventType     string       `json:"event_type"`
	OccurredAt    string       `json:"occurred_at"`
	Service       string       `json:"service"`
	Environment   string       `json:"environment"`
	RequestID     string       `json:"request_id"`
	UserID        *string      `json:"user_id,omitempty"`
	Payload       AuditPayload `json:"payload"`
}

type AuditPayload struct {
	Level  string `json:"level"`
	Action string `json:"action"`
	Text   string `json:"text"`
}

func NewAuditEmitter(publisher Publisher, routingKey, service, environment string, log *zap.Logger) *AuditEmitter {
	return &AuditEmitter{
		publisher:   publisher,
		routingKey:  routingKey,
		service:     service,
		environment: environment,
		log:         log,
	}
}

func (e *AuditEmitter) Emit(ctx context.Context, level, action, text, requestID string, userID *string) {
	if e == nil || e.publisher == nil {
		return
	}

	fields := []zap.Field{zap.String("action", action), zap.String("request_id", requestID)}
	if userID != nil {
		fields = append(fields, zap.String("user_id", *userID))
	}
	e.log.Info("audit_emit", fields...)

	envelope := AuditEnvelope{
		SchemaVersion: 1,
		EventType:     "audit_log",
		OccurredAt:    time.Now().UTC().Format(time.RFC3339Nano),
		Service:       e.service,
		Environment:   e.environment,
		RequestID:     requestID,
		UserID:        userID,
		Payload: AuditPayload{
			Level:  level,
			Action: action,
			Text:   text,
		},
	}

	headers := observability.BuildHeaders(requestID, observability.TraceID(ctx))
	if err := e.publisher.Publish(ctx, e.routingKey, envelope, headers); err != nil {
		e.log.Warn("audit_publish_failed", zap.String("action", action), zap.Error(err))
	}
}
