package handlers

import (
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"messenger-service/internal/media"
	"messenger-service/internal/mocks"
	"messenger-service/internal/models"
)

func TestMediaGet(t *testing.T) {
	store := new(mocks.MediaReaderMock)
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/media/:media_id", NewMediaHandler(store).Get)

	store.On("Get", mock.Anything, "abc").Return(media.Blob{ID: "abc", ContentType: "image/png", Data: pngBytes}, nil).Once()
	store.On("Get", mock.Anything, "missing").Return(nil, media.ErrNotFound).Once()

	rec := serve(r, http.MethodGet, "/media/abc", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, pngBytes, rec.Body.Bytes())

	rec = serve(r, http.MethodGet, "/media/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	store.AssertExpectations(t)
}

func TestAttachImage(t *testing.T) {
	uploading := models.Message{ID: "m1", ChatID: chatKey, SenderID: aliceID, Uploading: true, CreatedAt: time.Now().UTC()}
	path := "/chats/" + chatKey + "/messages/m1/image"

	t.Run("completes upload", func(t *testing.T) {
		f := newChatFixture()
		uploader := new(mocks.UploaderMock)
		f.handler.WithUploads(uploader, "local", 1024)
		router := setupChatRouter(f.handler, aliceID)

		f.chats.On("GetChat", mock.Anything, chatKey).Return(testChat(), nil).Once()
		f.messages.On("GetMessage", mock.Anything, "m1").Return(uploading, nil).Once()
		uploader.On("Upload", mock.Anything, "pic.png", "image/png", pngBytes).Return("http://cdn/m/9", nil).Once()
		done := uploading
		done.Uploading = false
		done.ImageURL = "http://cdn/m/9"
		f.messages.On("CompleteUpload", mock.Anything, "m1", "http://cdn/m/9").Return(done, nil).Once()
		f.hub.On("BroadcastChatEvent", chatKey, mock.MatchedBy(func(ev models.ChatEvent) bool {
			return ev.Type == models.EventMessageUpdated && ev.Message.ImageURL == "http://cdn/m/9"
		})).Once()
		f.expectFeedUpdate(aliceID, bobID)

		rec := do(router, multipartRequest(t, http.MethodPost, path, "image", "pic.png", pngBytes))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"uploading":false`)
		uploader.AssertExpectations(t)
		f.assertExpectations(t)
	})

	t.Run("only sender", func(t *testing.T) {
		f := newChatFixture()
		f.handler.WithUploads(new(mocks.UploaderMock), "local", 1024)
		router := setupChatRouter(f.handler, bobID)

		f.chats.On("GetChat", mock.Anything, chatKey).Return(testChat(), nil).Once()
		f.messages.On("GetMessage", mock.Anything, "m1").Return(uploading, nil).Once()

		rec := do(router, multipartRequest(t, http.MethodPost, path, "image", "pic.png", pngBytes))
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("already complete", func(t *testing.T) {
		f := newChatFixture()
		f.handler.WithUploads(new(mocks.UploaderMock), "local", 1024)
		router := setupChatRouter(f.handler, aliceID)
		done := uploading
		done.Uploading = false

		f.chats.On("GetChat", mock.Anything, chatKey).Return(testChat(), nil).Once()
		f.messages.On("GetMessage", mock.Anything, "m1").Return(done, nil).Once()

		rec := do(router, multipartRequest(t, http.MethodPost, path, "image", "pic.png", pngBytes))
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("host failure leaves message uploading", func(t *testing.T) {
		f := newChatFixture()
		uploader := new(mocks.UploaderMock)
		f.handler.WithUploads(uploader, "imagehost", 1024)
		router := setupChatRouter(f.handler, aliceID)

		f.chats.On("GetChat", mock.Anything, chatKey).Return(testChat(), nil).Once()
		f.messages.On("GetMessage", mock.Anything, "m1").Return(uploading, nil).Once()
		uploader.On("Upload", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return("", assert.AnError).Once()

		rec := do(router, multipartRequest(t, http.MethodPost, path, "image", "pic.png", pngBytes))
		assert.Equal(t, http.StatusBadGateway, rec.Code)
		f.messages.AssertNotCalled(t, "CompleteUpload", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("uploads disabled", func(t *testing.T) {
		f := newChatFixture()
		router := setupChatRouter(f.handler, aliceID)
		rec := do(router, multipartRequest(t, http.MethodPost, path, "image", "pic.png", pngBytes))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}
