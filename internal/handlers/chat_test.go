package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"messenger-service/internal/mocks"
	"messenger-service/internal/models"
	"messenger-service/internal/repositories"
)

const (
	aliceID = "11111111-1111-1111-1111-111111111111"
	bobID   = "22222222-2222-2222-2222-222222222222"
	chatKey = aliceID + "_" + bobID
)

type chatFixture struct {
	chats    *mocks.ChatRepositoryMock
	messages *mocks.MessageRepositoryMock
	users    *mocks.UserRepositoryMock
	hub      *mocks.BroadcasterMock
	typing   *mocks.TypingMock
	handler  *ChatHandler
}

func newChatFixture() *chatFixture {
	f := &chatFixture{
		chats:    new(mocks.ChatRepositoryMock),
		messages: new(mocks.MessageRepositoryMock),
		users:    new(mocks.UserRepositoryMock),
		hub:      new(mocks.BroadcasterMock),
		typing:   new(mocks.TypingMock),
	}
	f.handler = NewChatHandler(f.chats, f.messages, f.users, f.hub, f.typing, zap.NewNop())
	return f
}

func (f *chatFixture) assertExpectations(t *testing.T) {
	f.chats.AssertExpectations(t)
	f.messages.AssertExpectations(t)
	f.users.AssertExpectations(t)
	f.hub.AssertExpectations(t)
	f.typing.AssertExpectations(t)
}

// expectFeedUpdate stubs the chat_updated fan-out for the given users.
func (f *chatFixture) expectFeedUpdate(userIDs ...string) {
	f.users.On("GetProfiles", mock.Anything, []string{aliceID, bobID}).Return(map[string]models.PublicProfile{
		aliceID: {ID: aliceID, Username: "alice"},
		bobID:   {ID: bobID, Username: "bob"},
	}, nil).Once()
	for _, id := range userIDs {
		peer := bobID
		if id == bobID {
			peer = aliceID
		}
		f.chats.On("GetSummary", mock.Anything, chatKey, id).Return(models.ChatSummary{ChatID: chatKey, PeerID: peer}, nil).Once()
		f.hub.On("SendFeedEvent", id, mock.MatchedBy(func(ev models.FeedEvent) bool {
			return ev.Type == models.EventChatUpdated && ev.Chat != nil && ev.Chat.Peer != nil && ev.Chat.Peer.ID == peer
		})).Once()
	}
}

func testChat() models.Chat {
	return models.Chat{ID: chatKey, User1ID: aliceID, User2ID: bobID, Typing: map[string]bool{aliceID: false, bobID: false}}
}

func setupChatRouter(handler *ChatHandler, userID string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userID", userID)
		c.Set("username", "alice")
		c.Next()
	})
	r.GET("/chats", handler.ListChats)
	r.POST("/chats", handler.StartChat)
	r.GET("/chats/:chat_id", handler.GetChat)
	r.POST("/chats/:chat_id/typing", handler.Typing)
	r.POST("/chats/:chat_id/seen", handler.MarkChatSeen)
	r.GET("/chats/:chat_id/messages", handler.GetChatMessages)
	r.POST("/chats/:chat_id/messages", handler.PostChatMessage)
	r.PUT("/chats/:chat_id/messages/:message_id/reaction", handler.SetReaction)
	r.DELETE("/chats/:chat_id/messages/:message_id/reaction", handler.ClearReaction)
	r.POST("/chats/:chat_id/messages/:message_id/seen", handler.MarkSeen)
	r.POST("/chats/:chat_id/messages/:message_id/image", handler.AttachImage)
	return r
}

func newRequest(method, path string, body []byte) *http.Request {
	if body == nil {
		return httptest.NewRequest(method, path, nil)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func do(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func serve(r *gin.Engine, method, path string, body []byte) *httptest.ResponseRecorder {
	return do(r, newRequest(method, path, body))
}

func TestListChatsAttachesPeers(t *testing.T) {
	f := newChatFixture()
	router := setupChatRouter(f.handler, aliceID)

	f.chats.On("ListChats", mock.Anything, aliceID).Return([]models.ChatSummary{{ChatID: chatKey, PeerID: bobID, UnreadCount: 2}}, nil).Once()
	f.users.On("GetProfiles", mock.Anything, []string{bobID}).Return(map[string]models.PublicProfile{bobID: {ID: bobID, Username: "bob"}}, nil).Once()

	rec := serve(router, http.MethodGet, "/chats", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Chats []models.ChatSummary `json:"chats"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Chats, 1)
	require.NotNil(t, resp.Chats[0].Peer)
	assert.Equal(t, "bob", resp.Chats[0].Peer.Username)
	assert.Equal(t, 2, resp.Chats[0].UnreadCount)
	f.assertExpectations(t)
}

func TestListChatsRepoError(t *testing.T) {
	f := newChatFixture()
	router := setupChatRouter(f.handler, aliceID)

	f.chats.On("ListChats", mock.Anything, aliceID).Return(nil, assert.AnError).Once()

	rec := serve(router, http.MethodGet, "/chats", nil)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	f.assertExpectations(t)
}

func TestStartChatCreatesAndNotifies(t *testing.T) {
	f := newChatFixture()
	router := setupChatRouter(f.handler, aliceID)

	f.chats.On("CreateOrGetChat", mock.Anything, aliceID, bobID).Return(testChat(), true, nil).Once()
	f.expectFeedUpdate(aliceID, bobID)

	rec := serve(router, http.MethodPost, "/chats", []byte(`{"peer_id":"`+bobID+`"}`))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, chatKey, resp["chat_id"])
	assert.Equal(t, true, resp["created"])
	f.assertExpectations(t)
}

func TestStartChatExistingIsQuiet(t *testing.T) {
	f := newChatFixture()
	router := setupChatRouter(f.handler, bobID)

	f.chats.On("CreateOrGetChat", mock.Anything, bobID, aliceID).Return(testChat(), false, nil).Once()

	rec := serve(router, http.MethodPost, "/chats", []byte(`{"peer_id":"`+aliceID+`"}`))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"created":false`)
	f.hub.AssertNotCalled(t, "SendFeedEvent", mock.Anything, mock.Anything)
	f.assertExpectations(t)
}

func TestStartChatRejections(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		repo   error
		status int
	}{
		{name: "missing peer", body: `{}`, status: http.StatusBadRequest},
		{name: "self", body: `{"peer_id":"` + aliceID + `"}`, status: http.StatusBadRequest},
		{name: "unknown peer", body: `{"peer_id":"` + bobID + `"}`, repo: repositories.ErrUserNotFound, status: http.StatusNotFound},
		{name: "store failure", body: `{"peer_id":"` + bobID + `"}`, repo: assert.AnError, status: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newChatFixture()
			router := setupChatRouter(f.handler, aliceID)
			if tt.repo != nil {
				f.chats.On("CreateOrGetChat", mock.Anything, aliceID, bobID).Return(nil, false, tt.repo).Once()
			}

			rec := serve(router, http.MethodPost, "/chats", []byte(tt.body))
			assert.Equal(t, tt.status, rec.Code)
			f.assertExpectations(t)
		})
	}
}

func TestGetChatAccess(t *testing.T) {
	t.Run("member", func(t *testing.T) {
		f := newChatFixture()
		f.chats.On("GetChat", mock.Anything, chatKey).Return(testChat(), nil).Once()
		rec := serve(setupChatRouter(f.handler, bobID), http.MethodGet, "/chats/"+chatKey, nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
	t.Run("outsider", func(t *testing.T) {
		f := newChatFixture()
		f.chats.On("GetChat", mock.Anything, chatKey).Return(testChat(), nil).Once()
		rec := serve(setupChatRouter(f.handler, "33333333-3333-3333-3333-333333333333"), http.MethodGet, "/chats/"+chatKey, nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
	t.Run("missing", func(t *testing.T) {
		f := newChatFixture()
		f.chats.On("GetChat", mock.Anything, "nope").Return(nil, repositories.ErrChatNotFound).Once()
		rec := serve(setupChatRouter(f.handler, aliceID), http.MethodGet, "/chats/nope", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestTypingRecordsKeystroke(t *testing.T) {
	f := newChatFixture()
	router := setupChatRouter(f.handler, aliceID)

	f.chats.On("GetChat", mock.Anything, chatKey).Return(testChat(), nil).Once()
	f.typing.On("Keystroke", mock.Anything, chatKey, aliceID).Return(nil).Once()

	rec := serve(router, http.MethodPost, "/chats/"+chatKey+"/typing", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	f.assertExpectations(t)
}

func TestGetChatMessagesPaging(t *testing.T) {
	f := newChatFixture()
	router := setupChatRouter(f.handler, aliceID)
	before := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	f.chats.On("IsParticipant", mock.Anything, chatKey, aliceID).Return(true, nil).Once()
	f.messages.On("ListMessages", mock.Anything, chatKey, repositories.Cursor{At: before, ID: "m9"}, maxPageSize).
		Return([]models.Message{{ID: "m1", ChatID: chatKey, SenderID: bobID, Text: "hi"}}, nil).Once()

	rec := serve(router, http.MethodGet, "/chats/"+chatKey+"/messages?limit=500&before_id=m9&before="+before.Format(time.RFC3339), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Messages []models.Message `json:"messages"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Messages, 1)
	assert.Equal(t, "m1", resp.Messages[0].ID)
	f.assertExpectations(t)
}

func TestGetChatMessagesValidation(t *testing.T) {
	f := newChatFixture()
	router := setupChatRouter(f.handler, aliceID)

	assert.Equal(t, http.StatusBadRequest, serve(router, http.MethodGet, "/chats/"+chatKey+"/messages?limit=abc", nil).Code)
	assert.Equal(t, http.StatusBadRequest, serve(router, http.MethodGet, "/chats/"+chatKey+"/messages?before=yesterday", nil).Code)
	assert.Equal(t, http.StatusBadRequest, serve(router, http.MethodGet, "/chats/"+chatKey+"/messages?before_id=m1", nil).Code)

	f.chats.On("IsParticipant", mock.Anything, chatKey, aliceID).Return(false, nil).Once()
	assert.Equal(t, http.StatusForbidden, serve(router, http.MethodGet, "/chats/"+chatKey+"/messages", nil).Code)
	f.assertExpectations(t)
}

func TestPostChatMessageFlow(t *testing.T) {
	f := newChatFixture()
	router := setupChatRouter(f.handler, aliceID)
	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	f.chats.On("GetChat", mock.Anything, chatKey).Return(testChat(), nil).Once()
	f.messages.On("CreateMessage", mock.Anything, mock.MatchedBy(func(m models.Message) bool {
		return m.ChatID == chatKey && m.SenderID == aliceID && m.EmojiOnly && m.ID != "" && !m.Seen
	})).Return(models.Message{ID: "m1", ChatID: chatKey, SenderID: aliceID, Text: "😀😀", EmojiOnly: true, CreatedAt: created}, nil).Once()
	f.chats.On("TouchLastMessage", mock.Anything, chatKey, "😀😀", created).Return(nil).Once()
	f.typing.On("Clear", mock.Anything, chatKey, aliceID).Return(nil).Once()
	f.hub.On("BroadcastChatEvent", chatKey, mock.MatchedBy(func(ev models.ChatEvent) bool {
		return ev.Type == models.EventMessage && ev.Message != nil && ev.Message.ID == "m1"
	})).Once()
	f.expectFeedUpdate(aliceID, bobID)

	rec := serve(router, http.MethodPost, "/chats/"+chatKey+"/messages", []byte(`{"text":"😀😀"}`))
	require.Equal(t, http.StatusCreated, rec.Code)
	f.assertExpectations(t)
}

func TestPostChatMessagePhotoPreview(t *testing.T) {
	f := newChatFixture()
	router := setupChatRouter(f.handler, aliceID)
	created := time.Now().UTC()

	f.chats.On("GetChat", mock.Anything, chatKey).Return(testChat(), nil).Once()
	f.messages.On("CreateMessage", mock.Anything, mock.MatchedBy(func(m models.Message) bool { return m.Uploading && m.Text == "" })).
		Return(models.Message{ID: "m2", ChatID: chatKey, SenderID: aliceID, Uploading: true, CreatedAt: created}, nil).Once()
	f.chats.On("TouchLastMessage", mock.Anything, chatKey, models.PhotoPreview, created).Return(nil).Once()
	f.typing.On("Clear", mock.Anything, chatKey, aliceID).Return(nil).Once()
	f.hub.On("BroadcastChatEvent", chatKey, mock.Anything).Once()
	f.expectFeedUpdate(aliceID, bobID)

	rec := serve(router, http.MethodPost, "/chats/"+chatKey+"/messages", []byte(`{"uploading":true}`))
	require.Equal(t, http.StatusCreated, rec.Code)
	f.assertExpectations(t)
}

func TestPostChatMessageRejectsEmptyText(t *testing.T) {
	f := newChatFixture()
	router := setupChatRouter(f.handler, aliceID)
	f.chats.On("GetChat", mock.Anything, chatKey).Return(testChat(), nil).Once()

	rec := serve(router, http.MethodPost, "/chats/"+chatKey+"/messages", []byte(`{"text":"   "}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	f.messages.AssertNotCalled(t, "CreateMessage", mock.Anything, mock.Anything)
}

func TestPostChatMessageReplyMustShareChat(t *testing.T) {
	f := newChatFixture()
	router := setupChatRouter(f.handler, aliceID)
	f.chats.On("GetChat", mock.Anything, chatKey).Return(testChat(), nil).Once()
	f.messages.On("GetMessage", mock.Anything, "other").Return(models.Message{ID: "other", ChatID: "elsewhere"}, nil).Once()

	rec := serve(router, http.MethodPost, "/chats/"+chatKey+"/messages", []byte(`{"text":"hey","reply_to_id":"other"}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	f.assertExpectations(t)
}

func TestSetReactionValidatesShape(t *testing.T) {
	f := newChatFixture()
	router := setupChatRouter(f.handler, aliceID)

	rec := serve(router, http.MethodPut, "/chats/"+chatKey+"/messages/m1/reaction", []byte(`{"icon":"heart"}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSetReactionBroadcastsUpdate(t *testing.T) {
	f := newChatFixture()
	router := setupChatRouter(f.handler, bobID)
	reaction := &models.Reaction{Icon: "heart", Color: "#ff0000"}

	f.chats.On("GetChat", mock.Anything, chatKey).Return(testChat(), nil).Once()
	f.messages.On("GetMessage", mock.Anything, "m1").Return(models.Message{ID: "m1", ChatID: chatKey, SenderID: aliceID}, nil).Once()
	f.messages.On("SetReaction", mock.Anything, "m1", reaction).Return(models.Message{ID: "m1", ChatID: chatKey, Reaction: reaction}, nil).Once()
	f.hub.On("BroadcastChatEvent", chatKey, mock.MatchedBy(func(ev models.ChatEvent) bool {
		return ev.Type == models.EventMessageUpdated && ev.Message.Reaction != nil
	})).Once()

	rec := serve(router, http.MethodPut, "/chats/"+chatKey+"/messages/m1/reaction", []byte(`{"icon":"heart","color":"#ff0000"}`))
	require.Equal(t, http.StatusOK, rec.Code)
	f.assertExpectations(t)
}

func TestClearReactionForeignMessage(t *testing.T) {
	f := newChatFixture()
	router := setupChatRouter(f.handler, aliceID)

	f.chats.On("GetChat", mock.Anything, chatKey).Return(testChat(), nil).Once()
	f.messages.On("GetMessage", mock.Anything, "m9").Return(models.Message{ID: "m9", ChatID: "elsewhere"}, nil).Once()

	rec := serve(router, http.MethodDelete, "/chats/"+chatKey+"/messages/m9/reaction", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	f.assertExpectations(t)
}

func TestMarkSeenBroadcastsWhenReceiptsOn(t *testing.T) {
	f := newChatFixture()
	router := setupChatRouter(f.handler, bobID)
	msg := models.Message{ID: "m1", ChatID: chatKey, SenderID: aliceID}

	f.chats.On("GetChat", mock.Anything, chatKey).Return(testChat(), nil).Once()
	f.messages.On("GetMessage", mock.Anything, "m1").Return(msg, nil).Once()
	seen := msg
	seen.Seen = true
	f.messages.On("MarkSeen", mock.Anything, "m1", bobID).Return(seen, true, nil).Once()
	f.users.On("GetUser", mock.Anything, bobID).Return(models.User{ID: bobID, Settings: models.DefaultSettings()}, nil).Once()
	f.hub.On("BroadcastChatEvent", chatKey, models.ChatEvent{Type: models.EventMessageSeen, MessageID: "m1", UserID: bobID}).Once()
	f.expectFeedUpdate(bobID)

	rec := serve(router, http.MethodPost, "/chats/"+chatKey+"/messages/m1/seen", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"seen":true`)
	f.assertExpectations(t)
}

func TestMarkSeenSilentWhenReceiptsOff(t *testing.T) {
	f := newChatFixture()
	router := setupChatRouter(f.handler, bobID)
	msg := models.Message{ID: "m1", ChatID: chatKey, SenderID: aliceID}

	f.chats.On("GetChat", mock.Anything, chatKey).Return(testChat(), nil).Once()
	f.messages.On("GetMessage", mock.Anything, "m1").Return(msg, nil).Once()
	f.messages.On("MarkSeen", mock.Anything, "m1", bobID).Return(msg, true, nil).Once()
	f.users.On("GetUser", mock.Anything, bobID).Return(models.User{ID: bobID}, nil).Once()
	f.expectFeedUpdate(bobID)

	rec := serve(router, http.MethodPost, "/chats/"+chatKey+"/messages/m1/seen", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	f.hub.AssertNotCalled(t, "BroadcastChatEvent", mock.Anything, mock.Anything)
	f.assertExpectations(t)
}

func TestMarkSeenRepeatIsNoop(t *testing.T) {
	f := newChatFixture()
	router := setupChatRouter(f.handler, bobID)
	msg := models.Message{ID: "m1", ChatID: chatKey, SenderID: aliceID, Seen: true}

	f.chats.On("GetChat", mock.Anything, chatKey).Return(testChat(), nil).Once()
	f.messages.On("GetMessage", mock.Anything, "m1").Return(msg, nil).Once()
	f.messages.On("MarkSeen", mock.Anything, "m1", bobID).Return(msg, false, nil).Once()

	rec := serve(router, http.MethodPost, "/chats/"+chatKey+"/messages/m1/seen", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	f.hub.AssertNotCalled(t, "BroadcastChatEvent", mock.Anything, mock.Anything)
	f.hub.AssertNotCalled(t, "SendFeedEvent", mock.Anything, mock.Anything)
	f.assertExpectations(t)
}

func TestMarkSeenBySenderForbidden(t *testing.T) {
	f := newChatFixture()
	router := setupChatRouter(f.handler, aliceID)

	f.chats.On("GetChat", mock.Anything, chatKey).Return(testChat(), nil).Once()
	f.messages.On("GetMessage", mock.Anything, "m1").Return(models.Message{ID: "m1", ChatID: chatKey, SenderID: aliceID}, nil).Once()
	f.messages.On("MarkSeen", mock.Anything, "m1", aliceID).Return(nil, false, repositories.ErrNotRecipient).Once()

	rec := serve(router, http.MethodPost, "/chats/"+chatKey+"/messages/m1/seen", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	f.assertExpectations(t)
}

func TestMarkChatSeen(t *testing.T) {
	f := newChatFixture()
	router := setupChatRouter(f.handler, bobID)

	f.chats.On("GetChat", mock.Anything, chatKey).Return(testChat(), nil).Once()
	f.messages.On("MarkChatSeen", mock.Anything, chatKey, bobID).Return([]string{"m1", "m2"}, nil).Once()
	f.users.On("GetUser", mock.Anything, bobID).Return(models.User{ID: bobID, Settings: models.DefaultSettings()}, nil).Once()
	f.hub.On("BroadcastChatEvent", chatKey, mock.MatchedBy(func(ev models.ChatEvent) bool {
		return ev.Type == models.EventMessageSeen
	})).Twice()
	f.expectFeedUpdate(bobID)

	rec := serve(router, http.MethodPost, "/chats/"+chatKey+"/seen", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Seen []string `json:"seen"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, []string{"m1", "m2"}, resp.Seen)
	f.assertExpectations(t)
}
