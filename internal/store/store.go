package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"spectraconsole/internal/auth"
	"spectraconsole/internal/models"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrUserExists = errors.New("user already exists")
)

const defaultRole = "operator"

type NewUser struct {
	Username           string
	FullName           string
	Email              string
	Password           string
	AcceptedPoliciesAt time.Time
}

// Account describes a provisioned account (bootstrap or demo).
type Account struct {
	Username string
	Password string
	FullName string
	Email    string
}

// Users is the process-wide credential store. Keys are normalized usernames.
type Users struct {
	mu    sync.RWMutex
	byKey map[string]models.User
	byID  map[string]string

	bootstrap     Account
	bootstrapOnce sync.Once
	bootstrapErr  error

	demo     Account
	demoOnce sync.Once
	demoUser models.PublicUser
	demoErr  error

	// decoy makes unknown-user lookups pay the same KDF cost as wrong passwords.
	decoy string

	now func() time.Time
}

func NewUsers(bootstrap, demo Account) (*Users, error) {
	decoy, err := auth.HashPassword("decoy-password-never-matches")
	if err != nil {
		return nil, fmt.Errorf("decoy hash: %w", err)
	}
	return &Users{
		byKey:     map[string]models.User{},
		byID:      map[string]string{},
		bootstrap: bootstrap,
		demo:      demo,
		decoy:     decoy,
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

func NormalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

// EnsureBootstrap creates the default operator once. Concurrent first callers
// all wait on the same initialization.
func (s *Users) EnsureBootstrap(ctx context.Context) error {
	s.bootstrapOnce.Do(func() {
		now := s.now()
		_, err := s.create(NewUser{
			Username:           s.bootstrap.Username,
			FullName:           s.bootstrap.FullName,
			Email:              s.bootstrap.Email,
			Password:           s.bootstrap.Password,
			AcceptedPoliciesAt: now,
		})
		if errors.Is(err, ErrUserExists) {
			err = nil
		}
		s.bootstrapErr = err
	})
	return s.bootstrapErr
}

// EnsureDemo provisions the demo account at most once per process.
func (s *Users) EnsureDemo(ctx context.Context) (models.PublicUser, error) {
	s.demoOnce.Do(func() {
		if err := s.EnsureBootstrap(ctx); err != nil {
			s.demoErr = err
			return
		}
		if u, ok := s.lookup(s.demo.Username); ok {
			s.demoUser = u.Public()
			return
		}
		password := s.demo.Password
		if password == "" {
			suffix, err := auth.NewID("Demo!")
			if err != nil {
				s.demoErr = err
				return
			}
			password = suffix + "A1"
		}
		u, err := s.create(NewUser{
			Username:           s.demo.Username,
			FullName:           s.demo.FullName,
			Email:              s.demo.Email,
			Password:           password,
			AcceptedPoliciesAt: s.now(),
		})
		if errors.Is(err, ErrUserExists) {
			existing, _ := s.lookup(s.demo.Username)
			u, err = existing, nil
		}
		s.demoUser, s.demoErr = u.Public(), err
	})
	return s.demoUser, s.demoErr
}

func (s *Users) Register(ctx context.Context, in NewUser) (models.PublicUser, error) {
	if err := s.EnsureBootstrap(ctx); err != nil {
		return models.PublicUser{}, err
	}
	if _, ok := s.lookup(in.Username); ok {
		return models.PublicUser{}, ErrUserExists
	}
	u, err := s.create(in)
	if err != nil {
		return models.PublicUser{}, err
	}
	return u.Public(), nil
}

// Authenticate returns ErrNotFound for both unknown users and wrong passwords.
func (s *Users) Authenticate(ctx context.Context, username, password string) (models.PublicUser, error) {
	if err := s.EnsureBootstrap(ctx); err != nil {
		return models.PublicUser{}, err
	}
	u, ok := s.lookup(username)
	if !ok {
		auth.VerifyPassword(s.decoy, password)
		return models.PublicUser{}, ErrNotFound
	}
	if !auth.VerifyPassword(u.PasswordHash, password) {
		return models.PublicUser{}, ErrNotFound
	}
	return u.Public(), nil
}

func (s *Users) GetByID(ctx context.Context, id string) (models.PublicUser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	key, ok := s.byID[id]
	if !ok {
		return models.PublicUser{}, ErrNotFound
	}
	return s.byKey[key].Public(), nil
}

func (s *Users) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byKey)
}

func (s *Users) lookup(username string) (models.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.byKey[NormalizeUsername(username)]
	return u, ok
}

// create hashes outside the lock and re-checks the key before inserting.
func (s *Users) create(in NewUser) (models.User, error) {
	key := NormalizeUsername(in.Username)
	if key == "" {
		return models.User{}, errors.New("username is required")
	}
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return models.User{}, fmt.Errorf("hash password: %w", err)
	}
	id, err := auth.NewID("usr-")
	if err != nil {
		return models.User{}, err
	}
	u := models.User{
		ID:                 id,
		Username:           strings.TrimSpace(in.Username),
		UsernameKey:        key,
		FullName:           in.FullName,
		Email:              in.Email,
		Roles:              []string{defaultRole},
		PasswordHash:       hash,
		CreatedAt:          s.now(),
		AcceptedPoliciesAt: in.AcceptedPoliciesAt.UTC(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byKey[key]; exists {
		return models.User{}, ErrUserExists
	}
	s.byKey[key] = u
	s.byID[u.ID] = key
	return u, nil
}
