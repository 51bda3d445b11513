package events

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"messenger-service/internal/mocks"
	"messenger-service/internal/models"
)

func TestMessageCreatedEnvelope(t *testing.T) {
	pub := new(mocks.PublisherMock)
	emitter := NewEmitter(pub, zap.NewNop())

	ev := MessageCreated{
		MessageID:   "m1",
		ChatID:      "a_b",
		SenderID:    "a",
		RecipientID: "b",
		Preview:     models.PhotoPreview,
		Recipient:   models.Settings{Notifications: false},
	}
	pub.On("Publish", mock.Anything, KeyMessageCreated, mock.MatchedBy(func(env Envelope) bool {
		payload, ok := env.Payload.(MessageCreated)
		return ok && env.EventType == KeyMessageCreated && payload.RecipientID == "b" && !payload.Recipient.Notifications
	}), map[string]string{"x-request-id": "req"}).Return(nil).Once()

	emitter.MessageCreated(context.Background(), ev, "req")
	pub.AssertExpectations(t)
}

func TestEmitErrorIsSwallowed(t *testing.T) {
	pub := new(mocks.PublisherMock)
	emitter := NewEmitter(pub, zap.NewNop())
	pub.On("Publish", mock.Anything, KeyChatCreated, mock.Anything, map[string]string{}).Return(assert.AnError).Once()

	emitter.ChatCreated(context.Background(), ChatCreated{ChatID: "a_b"}, "")
	pub.AssertExpectations(t)
}
