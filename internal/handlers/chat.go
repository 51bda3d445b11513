package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"messenger-service/internal/chatid"
	"messenger-service/internal/events"
	"messenger-service/internal/media"
	"messenger-service/internal/models"
	"messenger-service/internal/repositories"
)

// Broadcaster fans events out to websocket subscribers.
type Broadcaster interface {
	BroadcastChatEvent(chatID string, event models.ChatEvent)
	SendFeedEvent(userID string, event models.FeedEvent)
}

// TypingTracker debounces typing flags.
type TypingTracker interface {
	Keystroke(ctx context.Context, chatID, userID string) error
	Clear(ctx context.Context, chatID, userID string) error
}

// ChatHandler manages one-to-one chats and their messages.
type ChatHandler struct {
	chatRepo    repositories.ChatRepository
	messageRepo repositories.MessageRepository
	userRepo    repositories.UserRepository
	hub         Broadcaster
	typing      TypingTracker
	events      *events.Emitter
	uploader    media.Uploader
	uploadKind  string
	maxUpload   int64
	log         *zap.Logger
}

// NewChatHandler builds a ChatHandler.
func NewChatHandler(chatRepo repositories.ChatRepository, messageRepo repositories.MessageRepository, userRepo repositories.UserRepository, hub Broadcaster, typing TypingTracker, log *zap.Logger) *ChatHandler {
	return &ChatHandler{
		chatRepo:    chatRepo,
		messageRepo: messageRepo,
		userRepo:    userRepo,
		hub:         hub,
		typing:      typing,
		log:         log,
	}
}

// WithEvents attaches the domain event emitter.
func (h *ChatHandler) WithEvents(emitter *events.Emitter) *ChatHandler {
	h.events = emitter
	return h
}

// WithUploads enables message image attachments.
func (h *ChatHandler) WithUploads(uploader media.Uploader, kind string, maxUpload int64) *ChatHandler {
	h.uploader = uploader
	h.uploadKind = kind
	h.maxUpload = maxUpload
	return h
}

// ListChats returns the caller's chats, most recently active first, with peer profiles.
func (h *ChatHandler) ListChats(c *gin.Context) {
	userID := c.GetString("userID")

	chats, err := h.chatRepo.ListChats(c.Request.Context(), userID)
	if err != nil {
		h.log.Error("chat_list_failed", zap.String("user_id", userID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load chats"})
		return
	}

	peerIDs := make([]string, 0, len(chats))
	for _, chat := range chats {
		peerIDs = append(peerIDs, chat.PeerID)
	}
	profiles, err := h.userRepo.GetProfiles(c.Request.Context(), peerIDs)
	if err != nil {
		h.log.Error("chat_peers_failed", zap.String("user_id", userID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load user info"})
		return
	}
	for i := range chats {
		if p, ok := profiles[chats[i].PeerID]; ok {
			chats[i].Peer = &p
		}
	}

	c.JSON(http.StatusOK, gin.H{"chats": chats})
}

// StartChat returns the chat between the caller and a peer, creating it on first contact.
func (h *ChatHandler) StartChat(c *gin.Context) {
	var req struct {
		PeerID string `json:"peer_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetString("userID")
	if userID == req.PeerID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot chat with yourself"})
		return
	}

	chat, created, err := h.chatRepo.CreateOrGetChat(c.Request.Context(), userID, req.PeerID)
	if err != nil {
		switch {
		case errors.Is(err, repositories.ErrUserNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		case errors.Is(err, chatid.ErrMalformed), errors.Is(err, chatid.ErrEmptyID):
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid peer id"})
		default:
			h.log.Error("chat_create_failed", zap.String("user_id", userID), zap.String("peer_id", req.PeerID), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create chat"})
		}
		return
	}

	if created {
		h.events.ChatCreated(c.Request.Context(), events.ChatCreated{ChatID: chat.ID, User1ID: chat.User1ID, User2ID: chat.User2ID}, requestIDFromContext(c))
		h.notifyChatUpdated(c.Request.Context(), chat)
	}

	c.JSON(http.StatusOK, gin.H{"chat_id": chat.ID, "created": created, "chat": chat})
}

// GetChat returns a chat with its typing flags.
func (h *ChatHandler) GetChat(c *gin.Context) {
	chat, ok := h.loadChat(c, c.Param("chat_id"))
	if !ok {
		return
	}
	c.JSON(http.StatusOK, chat)
}

// Typing records a keystroke. The flag clears after the typing timeout unless more keystrokes follow.
func (h *ChatHandler) Typing(c *gin.Context) {
	chat, ok := h.loadChat(c, c.Param("chat_id"))
	if !ok {
		return
	}
	if err := h.typing.Keystroke(c.Request.Context(), chat.ID, c.GetString("userID")); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update typing state"})
		return
	}
	c.Status(http.StatusNoContent)
}

// loadChat fetches the chat and checks the caller belongs to it. It writes the error response itself.
func (h *ChatHandler) loadChat(c *gin.Context, chatID string) (models.Chat, bool) {
	chat, err := h.chatRepo.GetChat(c.Request.Context(), chatID)
	if err != nil {
		if errors.Is(err, repositories.ErrChatNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "chat not found"})
			return models.Chat{}, false
		}
		h.log.Error("chat_load_failed", zap.String("chat_id", chatID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load chat"})
		return models.Chat{}, false
	}
	if !chat.HasParticipant(c.GetString("userID")) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a chat member"})
		return models.Chat{}, false
	}
	return chat, true
}

// notifyChatUpdated pushes each participant's own view of the chat to their feed.
func (h *ChatHandler) notifyChatUpdated(ctx context.Context, chat models.Chat, userIDs ...string) {
	if len(userIDs) == 0 {
		userIDs = chat.Participants()
	}
	profiles, err := h.userRepo.GetProfiles(ctx, chat.Participants())
	if err != nil {
		h.log.Warn("chat_update_profiles_failed", zap.String("chat_id", chat.ID), zap.Error(err))
	}
	for _, userID := range userIDs {
		summary, err := h.chatRepo.GetSummary(ctx, chat.ID, userID)
		if err != nil {
			h.log.Warn("chat_update_summary_failed", zap.String("chat_id", chat.ID), zap.String("user_id", userID), zap.Error(err))
			continue
		}
		if p, ok := profiles[summary.PeerID]; ok {
			summary.Peer = &p
		}
		h.hub.SendFeedEvent(userID, models.FeedEvent{Type: models.EventChatUpdated, Chat: &summary})
	}
}
