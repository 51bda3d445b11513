package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"messenger-service/internal/models"
	"messenger-service/internal/observability"
	"messenger-service/internal/repositories"
)

// Keystroker receives typing frames.
type Keystroker interface {
	Keystroke(ctx context.Context, chatID, userID string) error
}

// ChatWebSocketHandler handles chat room websocket connections.
type ChatWebSocketHandler struct {
	hub      *Hub
	chatRepo repositories.ChatRepository
	typing   Keystroker
	log      *zap.Logger
}

// NewChatWebSocketHandler constructs a ChatWebSocketHandler.
func NewChatWebSocketHandler(hub *Hub, chatRepo repositories.ChatRepository, typing Keystroker, log *zap.Logger) *ChatWebSocketHandler {
	return &ChatWebSocketHandler{hub: hub, chatRepo: chatRepo, typing: typing, log: log}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type inboundFrame struct {
	Type string `json:"type"`
}

// Handle upgrades the connection and subscribes it to the chat room. Auth runs in middleware.
func (h *ChatWebSocketHandler) Handle(c *gin.Context) {
	chatID := c.Param("chat_id")
	userID := c.GetString("userID")

	ctx, span := otel.Tracer("messenger-service/ws").Start(c.Request.Context(), "ws.chat.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	member, err := h.chatRepo.IsParticipant(ctx, chatID, userID)
	if err != nil {
		h.log.Error("ws_membership_check_failed", zap.String("chat_id", chatID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to verify membership"})
		return
	}
	if !member {
		c.JSON(http.StatusForbidden, gin.H{"error": "not authorized for chat"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	info := newConnInfo(c.Request, kindChat, chatID, userID, span.SpanContext().TraceID().String())
	client := NewClient(conn, info)
	h.hub.AddChatClient(chatID, client)

	observability.IncWSActive(kindChat)
	publishLifecycle(ctx, info, "ws_connect", "")
	h.log.Debug("ws_connect", zap.String("kind", kindChat), zap.String("chat_id", chatID), zap.String("user_id", userID))

	go client.writePump()
	go func() {
		bg := context.Background()
		err := client.readPump(func(frame []byte) { h.onFrame(bg, chatID, userID, frame) })
		h.hub.RemoveChatClient(chatID, client)
		client.Close()
		observability.DecWSActive(kindChat)
		if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			publishLifecycle(bg, info, "ws_error", err.Error())
		}
		publishLifecycle(bg, info, "ws_disconnect", err.Error())
	}()
}

func (h *ChatWebSocketHandler) onFrame(ctx context.Context, chatID, userID string, frame []byte) {
	var in inboundFrame
	if err := json.Unmarshal(frame, &in); err != nil {
		h.log.Debug("ws_bad_frame", zap.String("chat_id", chatID), zap.Error(err))
		return
	}
	switch in.Type {
	case models.EventTyping:
		if err := h.typing.Keystroke(ctx, chatID, userID); err != nil {
			h.log.Warn("ws_typing_failed", zap.String("chat_id", chatID), zap.Error(err))
		}
	default:
		h.log.Debug("ws_unknown_frame", zap.String("type", in.Type))
	}
}

func newConnInfo(r *http.Request, kind, resourceID, userID, traceID string) ConnInfo {
	return ConnInfo{
		ConnID:      newConnID(),
		Kind:        kind,
		ResourceID:  resourceID,
		UserID:      userID,
		DeviceID:    observability.DeviceIDFromRequest(r),
		IP:          observability.IPFromRequest(r),
		RequestID:   observability.RequestIDFromRequest(r),
		TraceID:     traceID,
		ConnectedAt: time.Now(),
	}
}
