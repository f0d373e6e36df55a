// Package rate implements per-key fixed-window counters.
package rate

import (
	"sync"
	"time"
)

type bucket struct {
	count int
	start time.Time
}

type Limiter struct {
	mu      sync.Mutex
	buckets map[string]bucket
	lastGC  time.Time
	now     func() time.Time
}

func NewLimiter() *Limiter {
	return newLimiter(func() time.Time { return time.Now().UTC() })
}

func newLimiter(now func() time.Time) *Limiter {
	return &Limiter{buckets: map[string]bucket{}, lastGC: now(), now: now}
}

// Allow counts one hit against key. Each call site picks its own limit and
// window.
func (l *Limiter) Allow(key string, limit int, window time.Duration) bool {
	ok, _ := l.Take(key, limit, window)
	return ok
}

// Take is Allow plus the time left until the key's window resets when the
// hit was rejected.
func (l *Limiter) Take(key string, limit int, window time.Duration) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	if now.Sub(l.lastGC) > time.Minute {
		for k, b := range l.buckets {
			if now.Sub(b.start) > 3*window {
				delete(l.buckets, k)
			}
		}
		l.lastGC = now
	}
	if limit <= 0 {
		return false, window
	}
	b, ok := l.buckets[key]
	if !ok || now.Sub(b.start) >= window {
		l.buckets[key] = bucket{count: 1, start: now}
		return true, 0
	}
	if b.count >= limit {
		return false, window - now.Sub(b.start)
	}
	b.count++
	l.buckets[key] = b
	return true, 0
}
