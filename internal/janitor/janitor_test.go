package janitor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"messenger-service/internal/repositories"
)

type fakeTyping struct {
	cutoff time.Time
	keys   []repositories.TypingKey
	err    error
}

func (f *fakeTyping) ClearStaleTyping(_ context.Context, before time.Time) ([]repositories.TypingKey, error) {
	f.cutoff = before
	return f.keys, f.err
}

type fakePresence struct {
	kept    []string
	changed []string
}

func (f *fakePresence) ResetPresence(_ context.Context, keep []string) ([]string, error) {
	f.kept = keep
	return f.changed, nil
}

type fakeLive struct {
	mu     sync.Mutex
	online []string
	typing []string
}

func (f *fakeLive) OnlineUsers() []string { return f.online }

func (f *fakeLive) BroadcastTyping(chatID, userID string, typing bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !typing {
		f.typing = append(f.typing, chatID+"/"+userID)
	}
}

type fakeAnnouncer struct {
	offline []string
}

func (f *fakeAnnouncer) Announce(_ context.Context, userID string, online bool) {
	if !online {
		f.offline = append(f.offline, userID)
	}
}

type fakeEvictor struct{ calls int }

func (f *fakeEvictor) Evict() int {
	f.calls++
	return 0
}

func TestRunOnceReconciles(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	typing := &fakeTyping{keys: []repositories.TypingKey{{ChatID: "c1", UserID: "u1"}}}
	presence := &fakePresence{changed: []string{"u2"}}
	live := &fakeLive{online: []string{"u3"}}
	announcer := &fakeAnnouncer{}
	evictor := &fakeEvictor{}

	j := New("* * * * *", 3*time.Second, typing, presence, live, announcer, evictor, zap.NewNop())
	j.now = func() time.Time { return now }

	j.RunOnce(context.Background())

	assert.Equal(t, now.Add(-6*time.Second), typing.cutoff)
	assert.Equal(t, []string{"c1/u1"}, live.typing)
	assert.Equal(t, []string{"u3"}, presence.kept)
	assert.Equal(t, []string{"u2"}, announcer.offline)
	assert.Equal(t, 1, evictor.calls)
}

func TestRunOnceContinuesAfterTypingError(t *testing.T) {
	typing := &fakeTyping{err: assert.AnError}
	presence := &fakePresence{changed: []string{"u2"}}
	announcer := &fakeAnnouncer{}

	j := New("* * * * *", time.Second, typing, presence, &fakeLive{}, announcer, nil, zap.NewNop())
	j.RunOnce(context.Background())

	assert.Equal(t, []string{"u2"}, announcer.offline)
}

func TestStartStopsWithContext(t *testing.T) {
	presence := &fakePresence{}
	j := New("* * * * *", time.Second, &fakeTyping{}, presence, &fakeLive{online: []string{"u1"}}, &fakeAnnouncer{}, nil, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	j.Start(ctx)
	require.Equal(t, []string{"u1"}, presence.kept)
	cancel()
}
