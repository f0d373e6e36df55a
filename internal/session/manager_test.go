package session

import (
	"net/http"
	"net/http/httptest"
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

func TestIssueThenValid(t *testing.T) {
	m := NewManager()
	issued, err := m.Issue("usr-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if issued.TTLSeconds != 8*60*60 {
		t.Fatalf("expected 8h ttl, got %d", issued.TTLSeconds)
	}
	if !m.Valid(issued.Token) {
		t.Fatalf("expected freshly issued token to be valid")
	}
	s, ok := m.Lookup(issued.Token)
	if !ok || s.UserID != "usr-1" {
		t.Fatalf("unexpected lookup result: %+v %v", s, ok)
	}
}

func TestExpiryIsIdempotent(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	m := newManager(time.Hour, clock.Now)
	issued, err := m.Issue("usr-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	clock.Advance(time.Hour)
	if m.Valid(issued.Token) {
		t.Fatalf("expected token to be invalid at expiry instant")
	}
	if m.Valid(issued.Token) {
		t.Fatalf("expected repeat check to stay invalid")
	}
}

func TestZeroTTLNeverValid(t *testing.T) {
	m := newManager(0, func() time.Time { return time.Unix(100, 0) })
	issued, err := m.Issue("usr-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if m.Valid(issued.Token) {
		t.Fatalf("expected ttl=0 token to be invalid")
	}
}

func TestValidSweepsExpiredSessions(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	m := newManager(time.Minute, clock.Now)
	for i := 0; i < 10; i++ {
		if _, err := m.Issue("usr-old"); err != nil {
			t.Fatalf("issue: %v", err)
		}
	}
	clock.Advance(2 * time.Minute)
	fresh, err := m.Issue("usr-new")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if m.Valid("unknown-token") {
		t.Fatalf("unknown token must be invalid")
	}
	if got := m.Len(); got != 1 {
		t.Fatalf("expected expired sessions to be swept, %d remain", got)
	}
	if !m.Valid(fresh.Token) {
		t.Fatalf("expected fresh token to survive sweep")
	}
}

func TestRevokeIsIdempotent(t *testing.T) {
	m := NewManager()
	issued, err := m.Issue("usr-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	m.Revoke(issued.Token)
	m.Revoke(issued.Token)
	m.Revoke("never-issued")
	if m.Valid(issued.Token) {
		t.Fatalf("expected revoked token to be invalid")
	}
}

func TestConcurrentIssueValidateRevoke(t *testing.T) {
	m := NewManager()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			issued, err := m.Issue("usr-x")
			if err != nil {
				t.Errorf("issue: %v", err)
				return
			}
			if !m.Valid(issued.Token) {
				t.Errorf("expected token valid")
			}
			m.Revoke(issued.Token)
		}()
	}
	wg.Wait()
	if m.Len() != 0 {
		t.Fatalf("expected all sessions revoked, %d remain", m.Len())
	}
}

func TestExtractTokenPrefersBearer(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer  header-token ")
	r.AddCookie(&http.Cookie{Name: CookieName, Value: "cookie-token"})
	tok, ok := ExtractToken(r)
	if !ok || tok != "header-token" {
		t.Fatalf("expected bearer token, got %q %v", tok, ok)
	}
}

func TestExtractTokenFallsBackToCookie(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	r.AddCookie(&http.Cookie{Name: CookieName, Value: "cookie-token"})
	tok, ok := ExtractToken(r)
	if !ok || tok != "cookie-token" {
		t.Fatalf("expected cookie token, got %q %v", tok, ok)
	}
}

func TestExtractTokenAbsent(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer ")
	if tok, ok := ExtractToken(r); ok {
		t.Fatalf("expected no token, got %q", tok)
	}
}
