package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"spectraconsole/internal/config"
	"spectraconsole/internal/legal"
	"spectraconsole/internal/models"
	"spectraconsole/internal/session"
	"spectraconsole/internal/store"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrDemoDisabled       = errors.New("demo login disabled")
)

// ValidationError carries a machine-readable code for one rejected field
// class.
type ValidationError struct {
	Code string
}

func (e *ValidationError) Error() string { return e.Code }

func invalid(code string) error { return &ValidationError{Code: code} }

var (
	usernameRx = regexp.MustCompile(`^[a-zA-Z0-9._-]{3,32}$`)
	emailRx    = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	mfaRx      = regexp.MustCompile(`^\d{6,8}$`)
)

type Service struct {
	cfg      config.Config
	users    *store.Users
	sessions *session.Manager
	gate     *legal.Gate
	logger   *slog.Logger
	now      func() time.Time
}

func New(cfg config.Config, users *store.Users, sessions *session.Manager, gate *legal.Gate, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		cfg:      cfg,
		users:    users,
		sessions: sessions,
		gate:     gate,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) Gate() *legal.Gate           { return s.gate }
func (s *Service) Sessions() *session.Manager { return s.sessions }

type LoginInput struct {
	Username string
	Password string
	MFACode  string
}

type LoginResult struct {
	Session models.IssuedSession
	User    models.PublicUser
}

func (s *Service) Login(ctx context.Context, in LoginInput) (LoginResult, error) {
	username := strings.TrimSpace(in.Username)
	if n := len(username); n < 3 || n > 64 {
		return LoginResult{}, invalid("invalid_credentials")
	}
	if n := len(in.Password); n < 8 || n > 256 {
		return LoginResult{}, invalid("invalid_credentials")
	}
	if mfa := strings.TrimSpace(in.MFACode); mfa != "" && !mfaRx.MatchString(mfa) {
		return LoginResult{}, invalid("invalid_mfa_code")
	}

	u, err := s.users.Authenticate(ctx, username, in.Password)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.logger.Info("login rejected", "username", username)
			return LoginResult{}, ErrInvalidCredentials
		}
		return LoginResult{}, err
	}
	return s.issue(u)
}

func (s *Service) Demo(ctx context.Context) (LoginResult, error) {
	if !s.cfg.DemoEnabled {
		return LoginResult{}, ErrDemoDisabled
	}
	u, err := s.users.EnsureDemo(ctx)
	if err != nil {
		return LoginResult{}, fmt.Errorf("provision demo user: %w", err)
	}
	return s.issue(u)
}

func (s *Service) issue(u models.PublicUser) (LoginResult, error) {
	issued, err := s.sessions.Issue(u.ID)
	if err != nil {
		return LoginResult{}, fmt.Errorf("issue session: %w", err)
	}
	return LoginResult{Session: issued, User: u}, nil
}

type RegisterInput struct {
	Username               string
	FullName               string
	Email                  string
	Password               string
	PasswordConfirm        string
	AcceptedLicense        bool
	AcceptedEULA           bool
	AcceptedAUP            bool
	AcceptedPrivacy        bool
	AcceptedSecurityPolicy bool
	RegistrationToken      string
}

func (in RegisterInput) normalized() RegisterInput {
	in.Username = strings.TrimSpace(in.Username)
	in.FullName = strings.TrimSpace(in.FullName)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.RegistrationToken = strings.TrimSpace(in.RegistrationToken)
	return in
}

func (s *Service) validateRegistration(in RegisterInput) error {
	if !usernameRx.MatchString(in.Username) {
		return invalid("invalid_username")
	}
	if n := len([]rune(in.FullName)); n < 2 || n > 120 {
		return invalid("invalid_full_name")
	}
	if !emailRx.MatchString(in.Email) || len(in.Email) > 254 {
		return invalid("invalid_email")
	}
	if !StrongPassword(in.Password) {
		return invalid("weak_password")
	}
	if in.Password != in.PasswordConfirm {
		return invalid("password_mismatch")
	}
	if !(in.AcceptedLicense && in.AcceptedEULA && in.AcceptedAUP && in.AcceptedPrivacy && in.AcceptedSecurityPolicy) {
		return invalid("policies_not_accepted")
	}
	if want := strings.TrimSpace(s.cfg.RegistrationToken); want != "" {
		if subtle.ConstantTimeCompare([]byte(in.RegistrationToken), []byte(want)) != 1 {
			return invalid("invalid_registration_token")
		}
	}
	return nil
}

// Register returns store.ErrUserExists (wrapped) when the normalized username
// is taken.
func (s *Service) Register(ctx context.Context, in RegisterInput) (models.PublicUser, error) {
	in = in.normalized()
	if err := s.validateRegistration(in); err != nil {
		return models.PublicUser{}, err
	}
	u, err := s.users.Register(ctx, store.NewUser{
		Username:           in.Username,
		FullName:           in.FullName,
		Email:              in.Email,
		Password:           in.Password,
		AcceptedPoliciesAt: s.now(),
	})
	if err != nil {
		return models.PublicUser{}, fmt.Errorf("register %q: %w", in.Username, err)
	}
	s.logger.Info("user registered", "user_id", u.ID, "username", u.Username)
	return u, nil
}

// StrongPassword requires 12+ characters with lower, upper, digit and symbol.
func StrongPassword(pw string) bool {
	if len(pw) < 12 {
		return false
	}
	var lower, upper, digit, symbol bool
	for _, r := range pw {
		switch {
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= '0' && r <= '9':
			digit = true
		default:
			symbol = true
		}
	}
	return lower && upper && digit && symbol
}

func (s *Service) Logout(token string) {
	if token != "" {
		s.sessions.Revoke(token)
	}
}

// ValidateSession resolves a live session and its user without consulting
// the legal gate.
func (s *Service) ValidateSession(ctx context.Context, token string) (models.PublicUser, models.Session, error) {
	if err := s.users.EnsureBootstrap(ctx); err != nil {
		return models.PublicUser{}, models.Session{}, err
	}
	sess, ok := s.sessions.Lookup(token)
	if !ok {
		return models.PublicUser{}, models.Session{}, ErrUnauthorized
	}
	u, err := s.users.GetByID(ctx, sess.UserID)
	if err != nil {
		return models.PublicUser{}, models.Session{}, ErrUnauthorized
	}
	return u, sess, nil
}

// Authorize is ValidateSession followed by the auth-middleware legal hook.
// A non-compliant deployment yields *legal.AcceptanceRequiredError.
func (s *Service) Authorize(ctx context.Context, token string) (models.PublicUser, models.Session, error) {
	u, sess, err := s.ValidateSession(ctx, token)
	if err != nil {
		return u, sess, err
	}
	if d := s.gate.Hooks().ForAuthMiddleware(ctx); !d.IsCompliant {
		return models.PublicUser{}, models.Session{}, &legal.AcceptanceRequiredError{Decision: d}
	}
	return u, sess, nil
}
