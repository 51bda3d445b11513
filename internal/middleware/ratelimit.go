package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

type limiterEntry struct {
	l        *rate.Limiter
	lastSeen time.Time
}

// LimiterPool keeps one token bucket per client key. Idle entries are evicted after ttl.
type LimiterPool struct {
	mu    sync.Mutex
	m     map[string]*limiterEntry
	rps   float64
	burst int
	ttl   time.Duration
	now   func() time.Time
}

// NewLimiterPool builds a pool. Non-positive values fall back to 5 rps / burst 10.
func NewLimiterPool(rps float64, burst int) *LimiterPool {
	if rps <= 0 {
		rps = 5
	}
	if burst <= 0 {
		burst = 10
	}
	return &LimiterPool{
		m:     make(map[string]*limiterEntry),
		rps:   rps,
		burst: burst,
		ttl:   10 * time.Minute,
		now:   time.Now,
	}
}

// Allow consumes a token for key.
func (p *LimiterPool) Allow(key string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := p.now()
	e, ok := p.m[key]
	if !ok {
		e = &limiterEntry{l: rate.NewLimiter(rate.Limit(p.rps), p.burst)}
		p.m[key] = e
	}
	e.lastSeen = now
	return e.l.AllowN(now, 1)
}

// Evict drops entries idle for longer than the ttl and returns how many were removed.
func (p *LimiterPool) Evict() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	cutoff := p.now().Add(-p.ttl)
	removed := 0
	for k, e := range p.m {
		if e.lastSeen.Before(cutoff) {
			delete(p.m, k)
			removed++
		}
	}
	return removed
}

// RateLimit rejects requests from a client IP that exhausted its bucket.
// Forwarding headers only count when the engine trusts the peer as a proxy.
func RateLimit(pool *LimiterPool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !pool.Allow(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
			return
		}
		c.Next()
	}
}
