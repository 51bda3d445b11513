package janitor

import (
	"context"
	"sync"
	"time"

	"github.com/adhocore/gronx"
	"go.uber.org/zap"

	"messenger-service/internal/observability"
	"messenger-service/internal/repositories"
)

// TypingStore clears typing flags nobody refreshed.
type TypingStore interface {
	ClearStaleTyping(ctx context.Context, before time.Time) ([]repositories.TypingKey, error)
}

// PresenceStore resets online flags left behind by dropped connections.
type PresenceStore interface {
	ResetPresence(ctx context.Context, keepOnline []string) ([]string, error)
}

// Live is the view of connected clients the janitor reconciles against.
type Live interface {
	OnlineUsers() []string
	BroadcastTyping(chatID, userID string, typing bool)
}

// Announcer tells peers about presence changes.
type Announcer interface {
	Announce(ctx context.Context, userID string, online bool)
}

// Evictor drops idle rate limiters.
type Evictor interface {
	Evict() int
}

// Janitor periodically repairs state that only a live process can keep correct:
// typing flags whose timers died with a previous process and online flags of users with no feed.
type Janitor struct {
	cron       string
	typingTTL  time.Duration
	typing     TypingStore
	presence   PresenceStore
	live       Live
	announcer  Announcer
	limiters   Evictor
	log        *zap.Logger
	now        func() time.Time
	retryAfter time.Duration

	mu      sync.Mutex
	running bool
}

// New builds a Janitor. Flags older than twice the typing timeout are considered stale.
func New(cron string, typingTimeout time.Duration, typing TypingStore, presence PresenceStore, live Live, announcer Announcer, limiters Evictor, log *zap.Logger) *Janitor {
	return &Janitor{
		cron:       cron,
		typingTTL:  2 * typingTimeout,
		typing:     typing,
		presence:   presence,
		live:       live,
		announcer:  announcer,
		limiters:   limiters,
		log:        log,
		now:        time.Now,
		retryAfter: 30 * time.Second,
	}
}

// Start runs one pass immediately and then follows the cron schedule until ctx is done.
func (j *Janitor) Start(ctx context.Context) {
	j.log.Info("janitor_enabled", zap.String("cron", j.cron))
	j.RunOnce(ctx)
	go j.loop(ctx)
}

func (j *Janitor) loop(ctx context.Context) {
	for {
		next, err := gronx.NextTickAfter(j.cron, j.now(), false)
		if err != nil {
			j.log.Error("janitor_nexttick_failed", zap.String("cron", j.cron), zap.Error(err))
			select {
			case <-time.After(j.retryAfter):
			case <-ctx.Done():
				return
			}
			continue
		}

		wait := next.Sub(j.now())
		if wait <= 0 {
			wait = time.Second
		}
		select {
		case <-time.After(wait):
			j.RunOnce(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// RunOnce performs a single reconciliation pass. Overlapping calls are skipped.
func (j *Janitor) RunOnce(ctx context.Context) {
	j.mu.Lock()
	if j.running {
		j.mu.Unlock()
		return
	}
	j.running = true
	j.mu.Unlock()

	defer func() {
		j.mu.Lock()
		j.running = false
		j.mu.Unlock()
	}()

	failed := false

	keys, err := j.typing.ClearStaleTyping(ctx, j.now().Add(-j.typingTTL))
	if err != nil {
		failed = true
		j.log.Error("janitor_typing_failed", zap.Error(err))
	}
	for _, k := range keys {
		j.live.BroadcastTyping(k.ChatID, k.UserID, false)
		observability.IncTyping("expire")
	}

	offline, err := j.presence.ResetPresence(ctx, j.live.OnlineUsers())
	if err != nil {
		failed = true
		j.log.Error("janitor_presence_failed", zap.Error(err))
	}
	for _, userID := range offline {
		j.announcer.Announce(ctx, userID, false)
	}

	evicted := 0
	if j.limiters != nil {
		evicted = j.limiters.Evict()
	}

	if failed {
		observability.IncJanitorRun("error")
		return
	}
	observability.IncJanitorRun("ok")
	j.log.Debug("janitor_run",
		zap.Int("typing_cleared", len(keys)),
		zap.Int("presence_reset", len(offline)),
		zap.Int("limiters_evicted", evicted),
	)
}
