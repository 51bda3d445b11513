package ws

import (
	"context"
	"time"

	"github.com/google/uuid"

	"messenger-service/internal/observability"
)

const (
	kindChat = "chat"
	kindFeed = "feed"
)

func newConnID() string {
	return uuid.NewString()
}

func wsRoutingKey(kind string) string {
	if kind == kindFeed {
		return "ws_events.feeds"
	}
	return "ws_events.chats"
}

// publishLifecycle records a connect, disconnect or error event for a connection.
func publishLifecycle(ctx context.Context, info ConnInfo, event, reason string) {
	duration := int64(0)
	if event != "ws_connect" {
		duration = time.Since(info.ConnectedAt).Milliseconds()
	}
	observability.IncWSEvent(info.Kind, event)
	_ = observability.PublishEvent(ctx, wsRoutingKey(info.Kind), observability.EventEnvelope{
		EventType: "ws_events",
		EventName: event,
		Payload: map[string]interface{}{
			"ws": map[string]interface{}{
				"kind":        info.Kind,
				"resource_id": info.ResourceID,
				"event":       event,
				"conn_id":     info.ConnID,
				"duration_ms": duration,
				"reason":      reason,
			},
			"identity": map[string]interface{}{
				"user_id":   info.UserID,
				"device_id": info.DeviceID,
				"ip":        info.IP,
			},
		},
	}, observability.BuildHeaders(info.RequestID, info.TraceID))
}
