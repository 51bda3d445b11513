package typing

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"messenger-service/internal/observability"
)

// DefaultDelay is how long a typing flag survives without a keystroke.
const DefaultDelay = 3 * time.Second

// Store persists per-user typing flags.
type Store interface {
	SetTyping(ctx context.Context, chatID string, userID string, typing bool) error
}

// Notifier fans typing changes out to subscribers.
type Notifier interface {
	BroadcastTyping(chatID string, userID string, typing bool)
}

type key struct {
	chatID string
	userID string
}

// keyLock orders store writes for one (chat, user) so a late true never lands after a false.
type keyLock struct {
	mu   sync.Mutex
	refs int
}

type entry struct {
	timer     *time.Timer
	gen       uint64
	persisted time.Time
}

// Tracker debounces typing flags. Every keystroke re-arms a single timer per (chat, user);
// the flag clears one delay after the last keystroke.
type Tracker struct {
	delay  time.Duration
	store  Store
	notify Notifier
	log    *zap.Logger

	mu     sync.Mutex
	active map[key]*entry
	locks  map[key]*keyLock
	seq    uint64
	closed bool
	now    func() time.Time
}

// NewTracker builds a Tracker. A non-positive delay uses DefaultDelay.
func NewTracker(delay time.Duration, store Store, notify Notifier, log *zap.Logger) *Tracker {
	if delay <= 0 {
		delay = DefaultDelay
	}
	return &Tracker{
		delay:  delay,
		store:  store,
		notify: notify,
		log:    log,
		active: make(map[key]*entry),
		locks:  make(map[key]*keyLock),
		now:    time.Now,
	}
}

// Delay returns the configured timeout.
func (t *Tracker) Delay() time.Duration {
	return t.delay
}

// Keystroke marks the user as typing and re-arms the clear timer.
func (t *Tracker) Keystroke(ctx context.Context, chatID, userID string) error {
	k := key{chatID: chatID, userID: userID}
	unlock := t.lockKey(k)
	defer unlock()
	now := t.now()

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	e, wasTyping := t.active[k]
	if wasTyping {
		e.timer.Stop()
	} else {
		e = &entry{}
		t.active[k] = e
	}
	t.seq++
	gen := t.seq
	e.gen = gen
	e.timer = time.AfterFunc(t.delay, func() { t.expire(k, gen) })
	// refresh the stored timestamp so the janitor never clears an active flag
	refresh := wasTyping && now.Sub(e.persisted) >= t.delay
	if !wasTyping || refresh {
		e.persisted = now
	}
	t.mu.Unlock()

	if wasTyping && !refresh {
		return nil
	}
	if err := t.store.SetTyping(ctx, chatID, userID, true); err != nil {
		t.log.Warn("typing_persist_failed", zap.String("chat_id", chatID), zap.String("user_id", userID), zap.Error(err))
		if !wasTyping {
			// nothing was announced, so the next keystroke starts over
			t.mu.Lock()
			if cur, ok := t.active[k]; ok && cur == e {
				e.timer.Stop()
				delete(t.active, k)
			}
			t.mu.Unlock()
		}
		return err
	}
	if !wasTyping {
		observability.IncTyping("start")
		t.notify.BroadcastTyping(chatID, userID, true)
	}
	return nil
}

// Clear stops the timer and clears the flag when the user was typing.
func (t *Tracker) Clear(ctx context.Context, chatID, userID string) error {
	k := key{chatID: chatID, userID: userID}
	unlock := t.lockKey(k)
	defer unlock()

	t.mu.Lock()
	e, ok := t.active[k]
	if ok {
		e.timer.Stop()
		delete(t.active, k)
	}
	t.mu.Unlock()
	if !ok {
		return nil
	}
	observability.IncTyping("clear")
	return t.stop(ctx, chatID, userID)
}

// IsTyping reports whether the tracker holds a live timer for the pair.
func (t *Tracker) IsTyping(chatID, userID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.active[key{chatID: chatID, userID: userID}]
	return ok
}

// Close stops every pending timer. Flags left in storage are reset by the janitor.
func (t *Tracker) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for k, e := range t.active {
		e.timer.Stop()
		delete(t.active, k)
	}
	t.closed = true
}

func (t *Tracker) expire(k key, gen uint64) {
	unlock := t.lockKey(k)
	defer unlock()

	t.mu.Lock()
	e, ok := t.active[k]
	if !ok || e.gen != gen {
		t.mu.Unlock()
		return
	}
	delete(t.active, k)
	t.mu.Unlock()

	observability.IncTyping("expire")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = t.stop(ctx, k.chatID, k.userID)
}

// lockKey takes the write lock of k. The returned func releases it.
func (t *Tracker) lockKey(k key) func() {
	t.mu.Lock()
	l, ok := t.locks[k]
	if !ok {
		l = &keyLock{}
		t.locks[k] = l
	}
	l.refs++
	t.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		t.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(t.locks, k)
		}
		t.mu.Unlock()
	}
}

func (t *Tracker) stop(ctx context.Context, chatID, userID string) error {
	if err := t.store.SetTyping(ctx, chatID, userID, false); err != nil {
		t.log.Warn("typing_persist_failed", zap.String("chat_id", chatID), zap.String("user_id", userID), zap.Error(err))
		return err
	}
	t.notify.BroadcastTyping(chatID, userID, false)
	return nil
}
