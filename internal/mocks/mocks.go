package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"messenger-service/internal/models"
	"messenger-service/internal/repositories"
)

type ChatRepositoryMock struct {
	mock.Mock
}

func (m *ChatRepositoryMock) CreateOrGetChat(ctx context.Context, userID string, peerID string) (models.Chat, bool, error) {
	args := m.Called(ctx, userID, peerID)
	var chat models.Chat
	if val := args.Get(0); val != nil {
		chat = val.(models.Chat)
	}
	return chat, args.Bool(1), args.Error(2)
}

func (m *ChatRepositoryMock) IsParticipant(ctx context.Context, chatID string, userID string) (bool, error) {
	args := m.Called(ctx, chatID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *ChatRepositoryMock) GetChat(ctx context.Context, chatID string) (models.Chat, error) {
	args := m.Called(ctx, chatID)
	var chat models.Chat
	if val := args.Get(0); val != nil {
		chat = val.(models.Chat)
	}
	return chat, args.Error(1)
}

func (m *ChatRepositoryMock) ListChats(ctx context.Context, userID string) ([]models.ChatSummary, error) {
	args := m.Called(ctx, userID)
	var list []models.ChatSummary
	if val := args.Get(0); val != nil {
		list = val.([]models.ChatSummary)
	}
	return list, args.Error(1)
}

func (m *ChatRepositoryMock) GetSummary(ctx context.Context, chatID string, userID string) (models.ChatSummary, error) {
	args := m.Called(ctx, chatID, userID)
	var summary models.ChatSummary
	if val := args.Get(0); val != nil {
		summary = val.(models.ChatSummary)
	}
	return summary, args.Error(1)
}

func (m *ChatRepositoryMock) TouchLastMessage(ctx context.Context, chatID string, preview string, at time.Time) error {
	args := m.Called(ctx, chatID, preview, at)
	return args.Error(0)
}

func (m *ChatRepositoryMock) SetTyping(ctx context.Context, chatID string, userID string, typing bool) error {
	args := m.Called(ctx, chatID, userID, typing)
	return args.Error(0)
}

func (m *ChatRepositoryMock) ClearStaleTyping(ctx context.Context, before time.Time) ([]repositories.TypingKey, error) {
	args := m.Called(ctx, before)
	var keys []repositories.TypingKey
	if val := args.Get(0); val != nil {
		keys = val.([]repositories.TypingKey)
	}
	return keys, args.Error(1)
}

func (m *ChatRepositoryMock) ListPeers(ctx context.Context, userID string) ([]string, error) {
	args := m.Called(ctx, userID)
	var peers []string
	if val := args.Get(0); val != nil {
		peers = val.([]string)
	}
	return peers, args.Error(1)
}

type MessageRepositoryMock struct {
	mock.Mock
}

func (m *MessageRepositoryMock) CreateMessage(ctx context.Context, msg models.Message) (models.Message, error) {
	args := m.Called(ctx, msg)
	var out models.Message
	if val := args.Get(0); val != nil {
		out = val.(models.Message)
	}
	return out, args.Error(1)
}

func (m *MessageRepositoryMock) ListMessages(ctx context.Context, chatID string, before repositories.Cursor, limit int) ([]models.Message, error) {
	args := m.Called(ctx, chatID, before, limit)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

func (m *MessageRepositoryMock) GetMessage(ctx context.Context, messageID string) (models.Message, error) {
	args := m.Called(ctx, messageID)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) SetReaction(ctx context.Context, messageID string, reaction *models.Reaction) (models.Message, error) {
	args := m.Called(ctx, messageID, reaction)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) MarkSeen(ctx context.Context, messageID string, readerID string) (models.Message, bool, error) {
	args := m.Called(ctx, messageID, readerID)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Bool(1), args.Error(2)
}

func (m *MessageRepositoryMock) MarkChatSeen(ctx context.Context, chatID string, readerID string) ([]string, error) {
	args := m.Called(ctx, chatID, readerID)
	var ids []string
	if val := args.Get(0); val != nil {
		ids = val.([]string)
	}
	return ids, args.Error(1)
}

func (m *MessageRepositoryMock) CompleteUpload(ctx context.Context, messageID string, imageURL string) (models.Message, error) {
	args := m.Called(ctx, messageID, imageURL)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

type UserRepositoryMock struct {
	mock.Mock
}

func (m *UserRepositoryMock) CreateUser(ctx context.Context, user models.User) (models.User, error) {
	args := m.Called(ctx, user)
	var out models.User
	if val := args.Get(0); val != nil {
		out = val.(models.User)
	}
	return out, args.Error(1)
}

func (m *UserRepositoryMock) GetUser(ctx context.Context, userID string) (models.User, error) {
	args := m.Called(ctx, userID)
	var user models.User
	if val := args.Get(0); val != nil {
		user = val.(models.User)
	}
	return user, args.Error(1)
}

func (m *UserRepositoryMock) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	args := m.Called(ctx, email)
	var user models.User
	if val := args.Get(0); val != nil {
		user = val.(models.User)
	}
	return user, args.Error(1)
}

func (m *UserRepositoryMock) GetProfiles(ctx context.Context, ids []string) (map[string]models.PublicProfile, error) {
	args := m.Called(ctx, ids)
	var profiles map[string]models.PublicProfile
	if val := args.Get(0); val != nil {
		profiles = val.(map[string]models.PublicProfile)
	}
	return profiles, args.Error(1)
}

func (m *UserRepositoryMock) SearchUsers(ctx context.Context, query string, limit int, excludeID string) ([]models.PublicProfile, error) {
	args := m.Called(ctx, query, limit, excludeID)
	var profiles []models.PublicProfile
	if val := args.Get(0); val != nil {
		profiles = val.([]models.PublicProfile)
	}
	return profiles, args.Error(1)
}

func (m *UserRepositoryMock) UpdateProfile(ctx context.Context, userID string, patch models.ProfilePatch) (models.User, error) {
	args := m.Called(ctx, userID, patch)
	var user models.User
	if val := args.Get(0); val != nil {
		user = val.(models.User)
	}
	return user, args.Error(1)
}

func (m *UserRepositoryMock) UpdateSettings(ctx context.Context, userID string, patch models.SettingsPatch) (models.Settings, error) {
	args := m.Called(ctx, userID, patch)
	var settings models.Settings
	if val := args.Get(0); val != nil {
		settings = val.(models.Settings)
	}
	return settings, args.Error(1)
}

func (m *UserRepositoryMock) SetOnline(ctx context.Context, userID string, online bool) error {
	args := m.Called(ctx, userID, online)
	return args.Error(0)
}

func (m *UserRepositoryMock) ResetPresence(ctx context.Context, keepOnline []string) ([]string, error) {
	args := m.Called(ctx, keepOnline)
	var ids []string
	if val := args.Get(0); val != nil {
		ids = val.([]string)
	}
	return ids, args.Error(1)
}

var _ repositories.ChatRepository = (*ChatRepositoryMock)(nil)
var _ repositories.MessageRepository = (*MessageRepositoryMock)(nil)
var _ repositories.UserRepository = (*UserRepositoryMock)(nil)
