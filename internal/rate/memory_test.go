package rate

import (
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func TestAllowBlocksAfterLimitAndResets(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	l := newLimiter(clock.Now)
	const limit = 5
	for i := 0; i < limit; i++ {
		if !l.Allow("login:1.2.3.4", limit, time.Minute) {
			t.Fatalf("hit %d should pass", i+1)
		}
	}
	if l.Allow("login:1.2.3.4", limit, time.Minute) {
		t.Fatalf("hit %d should be blocked", limit+1)
	}
	clock.Advance(time.Minute)
	if !l.Allow("login:1.2.3.4", limit, time.Minute) {
		t.Fatalf("expected counter reset after window")
	}
}

func TestKeysAndWindowsAreIndependent(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	l := newLimiter(clock.Now)
	if !l.Allow("register:a", 1, time.Minute) || l.Allow("register:a", 1, time.Minute) {
		t.Fatalf("expected register:a to allow exactly one hit")
	}
	if !l.Allow("register:b", 1, time.Minute) {
		t.Fatalf("expected separate key to have its own bucket")
	}
	if !l.Allow("login:a", 20, time.Minute) {
		t.Fatalf("expected separate route to have its own bucket")
	}
}

func TestTakeReportsRetryAfter(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	l := newLimiter(clock.Now)
	l.Allow("k", 1, time.Minute)
	clock.Advance(15 * time.Second)
	ok, retry := l.Take("k", 1, time.Minute)
	if ok || retry != 45*time.Second {
		t.Fatalf("expected 45s retry-after, got %v %v", ok, retry)
	}
}

func TestZeroLimitRejects(t *testing.T) {
	l := NewLimiter()
	if l.Allow("k", 0, time.Minute) {
		t.Fatalf("expected zero limit to reject")
	}
}

func TestStaleBucketsCollected(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	l := newLimiter(clock.Now)
	l.Allow("old", 10, time.Second)
	clock.Advance(2 * time.Minute)
	l.Allow("new", 10, time.Second)
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.buckets["old"]; ok {
		t.Fatalf("expected stale bucket to be collected")
	}
}
