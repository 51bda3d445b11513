package ws

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"messenger-service/internal/observability"
)

// FeedWebSocketHandler serves a user's feed: chat list updates, peer typing and presence.
type FeedWebSocketHandler struct {
	hub      *Hub
	presence *Presence
	log      *zap.Logger
}

func NewFeedWebSocketHandler(hub *Hub, presence *Presence, log *zap.Logger) *FeedWebSocketHandler {
	return &FeedWebSocketHandler{hub: hub, presence: presence, log: log}
}

// Handle upgrades the connection and marks the user online while any feed is open.
func (h *FeedWebSocketHandler) Handle(c *gin.Context) {
	userID := c.GetString("userID")

	ctx, span := otel.Tracer("messenger-service/ws").Start(c.Request.Context(), "ws.feed.handshake")
	defer span.End()

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	info := newConnInfo(c.Request, kindFeed, userID, userID, span.SpanContext().TraceID().String())
	client := NewClient(conn, info)
	first := h.hub.AddFeedClient(userID, client)

	observability.IncWSActive(kindFeed)
	publishLifecycle(ctx, info, "ws_connect", "")
	if first {
		h.presence.Sync(ctx, userID)
	}

	go client.writePump()
	go func() {
		bg := context.Background()
		// feeds accept no inbound frames; reading keeps pongs flowing
		err := client.readPump(nil)
		last := h.hub.RemoveFeedClient(userID, client)
		client.Close()
		observability.DecWSActive(kindFeed)
		if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			publishLifecycle(bg, info, "ws_error", err.Error())
		}
		publishLifecycle(bg, info, "ws_disconnect", err.Error())
		if last {
			h.presence.Sync(bg, userID)
		}
		h.log.Debug("ws_disconnect", zap.String("kind", kindFeed), zap.String("user_id", userID))
	}()
}
