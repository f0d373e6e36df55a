// Package session issues and validates opaque bearer/cookie session tokens.
package session

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"spectraconsole/internal/auth"
	"spectraconsole/internal/models"
)

const (
	CookieName = "spectrastrike_session"
	DefaultTTL = 8 * time.Hour
)

type Manager struct {
	mu       sync.Mutex
	sessions map[string]models.Session
	ttl      time.Duration
	now      func() time.Time
}

func NewManager() *Manager {
	return newManager(DefaultTTL, func() time.Time { return time.Now().UTC() })
}

func newManager(ttl time.Duration, now func() time.Time) *Manager {
	return &Manager{sessions: map[string]models.Session{}, ttl: ttl, now: now}
}

func (m *Manager) TTL() time.Duration { return m.ttl }

func (m *Manager) Issue(userID string) (models.IssuedSession, error) {
	token, err := auth.NewOpaqueToken()
	if err != nil {
		return models.IssuedSession{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	expiresAt := m.now().Add(m.ttl)
	m.sessions[token] = models.Session{Token: token, UserID: userID, ExpiresAt: expiresAt}
	return models.IssuedSession{Token: token, ExpiresAt: expiresAt, TTLSeconds: int(m.ttl.Seconds())}, nil
}

// Lookup sweeps every expired session, then reports whether token is live.
func (m *Manager) Lookup(token string) (models.Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	for k, s := range m.sessions {
		if !s.ExpiresAt.After(now) {
			delete(m.sessions, k)
		}
	}
	if token == "" {
		return models.Session{}, false
	}
	s, ok := m.sessions[token]
	return s, ok
}

func (m *Manager) Valid(token string) bool {
	_, ok := m.Lookup(token)
	return ok
}

// Revoke is idempotent.
func (m *Manager) Revoke(token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, token)
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// ExtractToken prefers an Authorization bearer token and falls back to the
// session cookie.
func ExtractToken(r *http.Request) (string, bool) {
	scheme, value, ok := strings.Cut(strings.TrimSpace(r.Header.Get("Authorization")), " ")
	if ok && strings.EqualFold(scheme, "bearer") {
		if tok := strings.TrimSpace(value); tok != "" {
			return tok, true
		}
	}
	c, err := r.Cookie(CookieName)
	if err != nil {
		return "", false
	}
	if tok := strings.TrimSpace(c.Value); tok != "" {
		return tok, true
	}
	return "", false
}
