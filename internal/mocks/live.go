package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"messenger-service/internal/media"
	"messenger-service/internal/models"
)

type BroadcasterMock struct {
	mock.Mock
}

func (m *BroadcasterMock) BroadcastChatEvent(chatID string, event models.ChatEvent) {
	m.Called(chatID, event)
}

func (m *BroadcasterMock) SendFeedEvent(userID string, event models.FeedEvent) {
	m.Called(userID, event)
}

type TypingMock struct {
	mock.Mock
}

func (m *TypingMock) Keystroke(ctx context.Context, chatID, userID string) error {
	args := m.Called(ctx, chatID, userID)
	return args.Error(0)
}

func (m *TypingMock) Clear(ctx context.Context, chatID, userID string) error {
	args := m.Called(ctx, chatID, userID)
	return args.Error(0)
}

type RevocationStoreMock struct {
	mock.Mock
}

func (m *RevocationStoreMock) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	args := m.Called(ctx, jti, ttl)
	return args.Error(0)
}

func (m *RevocationStoreMock) IsRevoked(ctx context.Context, jti string) (bool, error) {
	args := m.Called(ctx, jti)
	return args.Bool(0), args.Error(1)
}

func (m *RevocationStoreMock) Close() error {
	return m.Called().Error(0)
}

type UploaderMock struct {
	mock.Mock
}

func (m *UploaderMock) Upload(ctx context.Context, filename, contentType string, data []byte) (string, error) {
	args := m.Called(ctx, filename, contentType, data)
	return args.String(0), args.Error(1)
}

type MediaReaderMock struct {
	mock.Mock
}

func (m *MediaReaderMock) Get(ctx context.Context, id string) (media.Blob, error) {
	args := m.Called(ctx, id)
	var blob media.Blob
	if val := args.Get(0); val != nil {
		blob = val.(media.Blob)
	}
	return blob, args.Error(1)
}

var _ media.Uploader = (*UploaderMock)(nil)
