package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"messenger-service/internal/emoji"
	"messenger-service/internal/events"
	"messenger-service/internal/models"
	"messenger-service/internal/observability"
	"messenger-service/internal/repositories"
)

const (
	defaultPageSize = 50
	maxPageSize     = 100
)

// GetChatMessages returns a page of messages, oldest first. ?before= (with ?before_id= of the
// oldest message held) pages back in time.
func (h *ChatHandler) GetChatMessages(c *gin.Context) {
	chatID := c.Param("chat_id")
	userID := c.GetString("userID")

	limit := defaultPageSize
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = min(parsed, maxPageSize)
	}
	var before repositories.Cursor
	if raw := c.Query("before"); raw != "" {
		parsed, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid before cursor"})
			return
		}
		before.At = parsed
	}
	if before.ID = c.Query("before_id"); before.ID != "" && before.At.IsZero() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "before_id needs before"})
		return
	}

	member, err := h.chatRepo.IsParticipant(c.Request.Context(), chatID, userID)
	if err != nil {
		h.log.Error("chat_membership_failed", zap.String("chat_id", chatID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to verify membership"})
		return
	}
	if !member {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a chat member"})
		return
	}

	msgs, err := h.messageRepo.ListMessages(c.Request.Context(), chatID, before, limit)
	if err != nil {
		h.log.Error("message_list_failed", zap.String("chat_id", chatID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// PostChatMessage stores a message, updates the chat preview and fans the change out.
func (h *ChatHandler) PostChatMessage(c *gin.Context) {
	chat, ok := h.loadChat(c, c.Param("chat_id"))
	if !ok {
		return
	}
	userID := c.GetString("userID")

	var req struct {
		Text      string `json:"text"`
		ReplyToID string `json:"reply_to_id"`
		Uploading bool   `json:"uploading"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if strings.TrimSpace(req.Text) == "" && !req.Uploading {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message text is required"})
		return
	}

	ctx := c.Request.Context()
	msg := models.Message{
		ID:        uuid.NewString(),
		ChatID:    chat.ID,
		SenderID:  userID,
		Text:      req.Text,
		EmojiOnly: emoji.IsEmojiOnly(req.Text),
		Uploading: req.Uploading,
		CreatedAt: time.Now().UTC(),
	}
	if req.ReplyToID != "" {
		ref, err := h.messageRepo.GetMessage(ctx, req.ReplyToID)
		if err != nil || ref.ChatID != chat.ID {
			if err != nil && !errors.Is(err, repositories.ErrMessageNotFound) {
				h.log.Error("reply_lookup_failed", zap.String("message_id", req.ReplyToID), zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store message"})
				return
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": "reply target not found"})
			return
		}
		msg.ReplyTo = &models.ReplySnapshot{MessageID: ref.ID, SenderID: ref.SenderID, Text: ref.Text, ImageURL: ref.ImageURL}
	}

	stored, err := h.messageRepo.CreateMessage(ctx, msg)
	if err != nil {
		h.log.Error("message_create_failed", zap.String("chat_id", chat.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store message"})
		return
	}
	observability.IncMessage("send")

	if err := h.chatRepo.TouchLastMessage(ctx, chat.ID, stored.Preview(), stored.CreatedAt); err != nil {
		h.log.Warn("chat_touch_failed", zap.String("chat_id", chat.ID), zap.Error(err))
	}
	if err := h.typing.Clear(ctx, chat.ID, userID); err != nil {
		h.log.Warn("typing_clear_failed", zap.String("chat_id", chat.ID), zap.Error(err))
	}

	h.hub.BroadcastChatEvent(chat.ID, models.ChatEvent{Type: models.EventMessage, Message: &stored})
	h.notifyChatUpdated(ctx, chat)
	h.emitMessageCreated(ctx, c, chat, stored)

	c.JSON(http.StatusCreated, stored)
}

// SetReaction replaces the reaction on a message.
func (h *ChatHandler) SetReaction(c *gin.Context) {
	var reaction models.Reaction
	if err := c.ShouldBindJSON(&reaction); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := reaction.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.updateReaction(c, &reaction)
}

// ClearReaction removes the reaction from a message.
func (h *ChatHandler) ClearReaction(c *gin.Context) {
	h.updateReaction(c, nil)
}

func (h *ChatHandler) updateReaction(c *gin.Context, reaction *models.Reaction) {
	chat, msg, ok := h.loadMessage(c)
	if !ok {
		return
	}

	updated, err := h.messageRepo.SetReaction(c.Request.Context(), msg.ID, reaction)
	if err != nil {
		h.messageError(c, err)
		return
	}
	observability.IncMessage("react")

	h.hub.BroadcastChatEvent(chat.ID, models.ChatEvent{Type: models.EventMessageUpdated, Message: &updated})
	c.JSON(http.StatusOK, updated)
}

// MarkSeen marks one message seen by its recipient. Repeating the call changes nothing and emits nothing.
func (h *ChatHandler) MarkSeen(c *gin.Context) {
	chat, msg, ok := h.loadMessage(c)
	if !ok {
		return
	}
	userID := c.GetString("userID")
	ctx := c.Request.Context()

	updated, changed, err := h.messageRepo.MarkSeen(ctx, msg.ID, userID)
	if err != nil {
		h.messageError(c, err)
		return
	}
	if changed {
		observability.IncMessage("seen")
		if h.readReceipts(ctx, userID) {
			h.hub.BroadcastChatEvent(chat.ID, models.ChatEvent{Type: models.EventMessageSeen, MessageID: updated.ID, UserID: userID})
		}
		h.notifyChatUpdated(ctx, chat, userID)
	}
	c.JSON(http.StatusOK, updated)
}

// MarkChatSeen marks every unseen message from the peer as seen.
func (h *ChatHandler) MarkChatSeen(c *gin.Context) {
	chat, ok := h.loadChat(c, c.Param("chat_id"))
	if !ok {
		return
	}
	userID := c.GetString("userID")
	ctx := c.Request.Context()

	ids, err := h.messageRepo.MarkChatSeen(ctx, chat.ID, userID)
	if err != nil {
		h.log.Error("chat_seen_failed", zap.String("chat_id", chat.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to mark messages seen"})
		return
	}
	if len(ids) > 0 {
		if h.readReceipts(ctx, userID) {
			for _, id := range ids {
				h.hub.BroadcastChatEvent(chat.ID, models.ChatEvent{Type: models.EventMessageSeen, MessageID: id, UserID: userID})
			}
		}
		h.notifyChatUpdated(ctx, chat, userID)
	}
	c.JSON(http.StatusOK, gin.H{"seen": ids})
}

// AttachImage uploads the image for a message the caller sent with uploading=true.
func (h *ChatHandler) AttachImage(c *gin.Context) {
	if h.uploader == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "uploads are disabled"})
		return
	}
	chat, msg, ok := h.loadMessage(c)
	if !ok {
		return
	}
	if msg.SenderID != c.GetString("userID") {
		c.JSON(http.StatusForbidden, gin.H{"error": "only the sender can attach an image"})
		return
	}
	if !msg.Uploading {
		c.JSON(http.StatusConflict, gin.H{"error": "message is not awaiting an image"})
		return
	}

	img, ok := readImage(c, "image", h.maxUpload)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	url, err := h.uploader.Upload(ctx, img.Filename, img.ContentType, img.Data)
	if err != nil {
		observability.IncUpload(h.uploadKind, "error")
		h.log.Warn("message_image_upload_failed", zap.String("message_id", msg.ID), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "image upload failed"})
		return
	}
	observability.IncUpload(h.uploadKind, "ok")

	updated, err := h.messageRepo.CompleteUpload(ctx, msg.ID, url)
	if err != nil {
		if errors.Is(err, repositories.ErrMessageNotFound) {
			c.JSON(http.StatusConflict, gin.H{"error": "message is not awaiting an image"})
			return
		}
		h.messageError(c, err)
		return
	}
	observability.IncMessage("image")

	h.hub.BroadcastChatEvent(chat.ID, models.ChatEvent{Type: models.EventMessageUpdated, Message: &updated})
	h.notifyChatUpdated(ctx, chat)
	c.JSON(http.StatusOK, updated)
}

// loadMessage resolves chat_id and message_id and checks membership. It writes the error response itself.
func (h *ChatHandler) loadMessage(c *gin.Context) (models.Chat, models.Message, bool) {
	chat, ok := h.loadChat(c, c.Param("chat_id"))
	if !ok {
		return models.Chat{}, models.Message{}, false
	}
	msg, err := h.messageRepo.GetMessage(c.Request.Context(), c.Param("message_id"))
	if err != nil {
		h.messageError(c, err)
		return models.Chat{}, models.Message{}, false
	}
	if msg.ChatID != chat.ID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message does not belong to chat"})
		return models.Chat{}, models.Message{}, false
	}
	return chat, msg, true
}

func (h *ChatHandler) messageError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, repositories.ErrMessageNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "message not found"})
	case errors.Is(err, repositories.ErrNotRecipient):
		c.JSON(http.StatusForbidden, gin.H{"error": repositories.ErrNotRecipient.Error()})
	default:
		h.log.Error("message_request_failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to process message"})
	}
}

// readReceipts reports whether the reader shares seen state. Lookup failures default to sharing.
func (h *ChatHandler) readReceipts(ctx context.Context, userID string) bool {
	user, err := h.userRepo.GetUser(ctx, userID)
	if err != nil {
		h.log.Warn("read_receipts_lookup_failed", zap.String("user_id", userID), zap.Error(err))
		return true
	}
	return user.Settings.ReadReceipts
}

func (h *ChatHandler) emitMessageCreated(ctx context.Context, c *gin.Context, chat models.Chat, msg models.Message) {
	if h.events == nil {
		return
	}
	recipientID := chat.Peer(msg.SenderID)
	recipient, err := h.userRepo.GetUser(ctx, recipientID)
	if err != nil {
		h.log.Warn("message_event_recipient_failed", zap.String("user_id", recipientID), zap.Error(err))
		return
	}
	h.events.MessageCreated(ctx, events.MessageCreated{
		MessageID:   msg.ID,
		ChatID:      chat.ID,
		SenderID:    msg.SenderID,
		SenderName:  c.GetString("username"),
		RecipientID: recipientID,
		Preview:     msg.Preview(),
		Recipient:   recipient.Settings,
		RecipientOn: recipient.Online,
	}, requestIDFromContext(c))
}
