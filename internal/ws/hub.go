package ws

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"go.uber.org/zap"

	"messenger-service/internal/chatid"
	"messenger-service/internal/models"
	"messenger-service/internal/observability"
)

var errSlowConsumer = errors.New("send buffer full")

// Hub maintains chat rooms and per-user feeds.
type Hub struct {
	chatRooms map[string]map[*Client]bool
	feeds     map[string]map[*Client]bool
	mu        sync.RWMutex
	log       *zap.Logger
}

// NewHub creates an empty hub.
func NewHub(log *zap.Logger) *Hub {
	return &Hub{
		chatRooms: make(map[string]map[*Client]bool),
		feeds:     make(map[string]map[*Client]bool),
		log:       log,
	}
}

// AddChatClient registers a client in a chat room.
func (h *Hub) AddChatClient(chatID string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.chatRooms[chatID]; !ok {
		h.chatRooms[chatID] = make(map[*Client]bool)
	}
	h.chatRooms[chatID][c] = true
}

// RemoveChatClient removes a client from a chat room.
func (h *Hub) RemoveChatClient(chatID string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conns, ok := h.chatRooms[chatID]; ok {
		delete(conns, c)
		if len(conns) == 0 {
			delete(h.chatRooms, chatID)
		}
	}
}

// AddFeedClient registers a feed subscription and reports whether it is the user's first.
func (h *Hub) AddFeedClient(userID string, c *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	conns, ok := h.feeds[userID]
	if !ok {
		conns = make(map[*Client]bool)
		h.feeds[userID] = conns
	}
	conns[c] = true
	observability.SetOnlineUsers(len(h.feeds))
	return len(conns) == 1
}

// RemoveFeedClient drops a feed subscription and reports whether it was the user's last.
func (h *Hub) RemoveFeedClient(userID string, c *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	conns, ok := h.feeds[userID]
	if !ok || !conns[c] {
		return false
	}
	delete(conns, c)
	if len(conns) > 0 {
		return false
	}
	delete(h.feeds, userID)
	observability.SetOnlineUsers(len(h.feeds))
	return true
}

// IsOnline reports whether the user holds at least one feed connection.
func (h *Hub) IsOnline(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.feeds[userID]) > 0
}

// OnlineUsers lists users with a live feed connection.
func (h *Hub) OnlineUsers() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ids := make([]string, 0, len(h.feeds))
	for id := range h.feeds {
		ids = append(ids, id)
	}
	return ids
}

// BroadcastChatEvent sends an event to every subscriber of the chat.
func (h *Hub) BroadcastChatEvent(chatID string, event models.ChatEvent) {
	event.ChatID = chatID
	payload, err := json.Marshal(event)
	if err != nil {
		h.log.Error("ws_encode_failed", zap.String("chat_id", chatID), zap.Error(err))
		return
	}
	h.deliver(h.snapshot(h.chatRooms, chatID), payload)
}

// SendFeedEvent sends an event to every feed connection of the user.
func (h *Hub) SendFeedEvent(userID string, event models.FeedEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		h.log.Error("ws_encode_failed", zap.String("user_id", userID), zap.Error(err))
		return
	}
	h.deliver(h.snapshot(h.feeds, userID), payload)
}

// BroadcastTyping notifies the chat room and the peer's feed.
func (h *Hub) BroadcastTyping(chatID, userID string, typing bool) {
	h.BroadcastChatEvent(chatID, models.ChatEvent{Type: models.EventTyping, UserID: userID, Typing: &typing})

	a, b, err := chatid.Participants(chatID)
	if err != nil {
		return
	}
	peer := a
	if peer == userID {
		peer = b
	}
	h.SendFeedEvent(peer, models.FeedEvent{Type: models.EventTyping, ChatID: chatID, UserID: userID, Typing: &typing})
}

func (h *Hub) snapshot(rooms map[string]map[*Client]bool, key string) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	conns := rooms[key]
	out := make([]*Client, 0, len(conns))
	for c := range conns {
		out = append(out, c)
	}
	return out
}

func (h *Hub) deliver(clients []*Client, payload []byte) {
	for _, c := range clients {
		if c.enqueue(payload) {
			continue
		}
		h.log.Warn("ws_client_dropped", zap.String("conn_id", c.info.ConnID), zap.String("user_id", c.info.UserID))
		publishLifecycle(context.Background(), c.info, "ws_error", errSlowConsumer.Error())
		c.Close()
	}
}
