package session

import (
	"sync"
	"time"
)

// Limiter counts requests per session within a fixed window. Counters are
// process-local and scoped per client session, never shared across sessions.
type Limiter struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	buckets map[string]*bucket
	now     func() time.Time
}

type bucket struct {
	count       int
	windowStart time.Time
}

// NewLimiter allows limit requests per window for each session key.
func NewLimiter(limit int, window time.Duration) *Limiter {
	return &Limiter{
		limit:   limit,
		window:  window,
		buckets: make(map[string]*bucket),
		now:     time.Now,
	}
}

// Allow reports whether the session may proceed, counting the attempt.
func (l *Limiter) Allow(sessionID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b, ok := l.buckets[sessionID]
	if !ok || now.Sub(b.windowStart) >= l.window {
		l.pruneLocked(now)
		l.buckets[sessionID] = &bucket{count: 1, windowStart: now}
		return true
	}
	if b.count >= l.limit {
		return false
	}
	b.count++
	return true
}

// pruneLocked drops buckets whose window has lapsed.
func (l *Limiter) pruneLocked(now time.Time) {
	for key, b := range l.buckets {
		if now.Sub(b.windowStart) >= l.window {
			delete(l.buckets, key)
		}
	}
}
