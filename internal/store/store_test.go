package store

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

func newTestUsers(t *testing.T) *Users {
	t.Helper()
	s, err := NewUsers(
		Account{Username: "operator", Password: "Operator!ChangeMe123", FullName: "Default Operator", Email: "operator@spectrastrike.local"},
		Account{Username: "demo_operator", FullName: "Demo Operator", Email: "demo@spectrastrike.local"},
	)
	if err != nil {
		t.Fatalf("new users: %v", err)
	}
	return s
}

func TestRegisterAndAuthenticate(t *testing.T) {
	s := newTestUsers(t)
	ctx := context.Background()
	accepted := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	u, err := s.Register(ctx, NewUser{
		Username:           "Alice.Ops",
		FullName:           "Alice Ops",
		Email:              "alice@example.com",
		Password:           "Correct-Horse-42!",
		AcceptedPoliciesAt: accepted,
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if u.Username != "Alice.Ops" || len(u.Roles) != 1 || u.Roles[0] != "operator" {
		t.Fatalf("unexpected user: %+v", u)
	}

	got, err := s.Authenticate(ctx, "  alice.ops ", "Correct-Horse-42!")
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if got.ID != u.ID {
		t.Fatalf("expected id %s, got %s", u.ID, got.ID)
	}

	byID, err := s.GetByID(ctx, u.ID)
	if err != nil || byID.Email != "alice@example.com" {
		t.Fatalf("lookup by id: %+v %v", byID, err)
	}
}

func TestRegisterRejectsDuplicateNormalizedUsername(t *testing.T) {
	s := newTestUsers(t)
	ctx := context.Background()
	if _, err := s.Register(ctx, NewUser{Username: "bob", Password: "Password-123!"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	_, err := s.Register(ctx, NewUser{Username: " BOB ", Password: "Password-456!"})
	if !errors.Is(err, ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}
	_, err = s.Register(ctx, NewUser{Username: "Operator", Password: "Password-456!"})
	if !errors.Is(err, ErrUserExists) {
		t.Fatalf("expected bootstrap username to be taken, got %v", err)
	}
}

func TestAuthenticateFailuresAreIndistinguishable(t *testing.T) {
	s := newTestUsers(t)
	ctx := context.Background()
	if _, err := s.Register(ctx, NewUser{Username: "carol", Password: "Password-123!"}); err != nil {
		t.Fatalf("register: %v", err)
	}

	_, wrongPassword := s.Authenticate(ctx, "carol", "not-the-password")
	_, unknownUser := s.Authenticate(ctx, "nobody", "Password-123!")
	if !errors.Is(wrongPassword, ErrNotFound) || !errors.Is(unknownUser, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for both, got %v and %v", wrongPassword, unknownUser)
	}
	if wrongPassword.Error() != unknownUser.Error() {
		t.Fatalf("expected identical errors, got %q and %q", wrongPassword, unknownUser)
	}
}

func TestBootstrapUserCanAuthenticate(t *testing.T) {
	s := newTestUsers(t)
	u, err := s.Authenticate(context.Background(), "OPERATOR", "Operator!ChangeMe123")
	if err != nil {
		t.Fatalf("authenticate bootstrap: %v", err)
	}
	if u.FullName != "Default Operator" {
		t.Fatalf("unexpected bootstrap user: %+v", u)
	}
}

func TestEnsureBootstrapConcurrentCreatesOneUser(t *testing.T) {
	s := newTestUsers(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 64)
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- s.EnsureBootstrap(ctx)
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("bootstrap: %v", err)
		}
	}
	if got := s.Count(); got != 1 {
		t.Fatalf("expected exactly one stored user, got %d", got)
	}
}

func TestEnsureDemoConcurrentCreatesOneDemoUser(t *testing.T) {
	s := newTestUsers(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	ids := make(chan string, 32)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			u, err := s.EnsureDemo(ctx)
			if err != nil {
				t.Errorf("ensure demo: %v", err)
				return
			}
			ids <- u.ID
		}()
	}
	wg.Wait()
	close(ids)

	first := ""
	for id := range ids {
		if first == "" {
			first = id
		}
		if id != first {
			t.Fatalf("expected one demo user id, got %s and %s", first, id)
		}
	}
	if got := s.Count(); got != 2 {
		t.Fatalf("expected bootstrap and demo users, got %d", got)
	}
}

func TestEnsureDemoReusesExistingAccount(t *testing.T) {
	s := newTestUsers(t)
	ctx := context.Background()
	registered, err := s.Register(ctx, NewUser{Username: "Demo_Operator", Password: "Password-123!"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	demo, err := s.EnsureDemo(ctx)
	if err != nil {
		t.Fatalf("ensure demo: %v", err)
	}
	if demo.ID != registered.ID {
		t.Fatalf("expected existing account to be reused")
	}
}

func TestStoredPasswordIsEncodedArgon2id(t *testing.T) {
	s := newTestUsers(t)
	ctx := context.Background()
	if _, err := s.Register(ctx, NewUser{Username: "dave", Password: "Password-123!"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	u, ok := s.lookup("dave")
	if !ok {
		t.Fatalf("expected stored user")
	}
	if !strings.HasPrefix(u.PasswordHash, "$argon2id$v=19$") || strings.Contains(u.PasswordHash, "Password-123!") {
		t.Fatalf("unexpected stored hash %q", u.PasswordHash)
	}

	u.PasswordHash = "not-a-hash"
	s.mu.Lock()
	s.byKey[u.UsernameKey] = u
	s.mu.Unlock()
	if _, err := s.Authenticate(ctx, "dave", "Password-123!"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected malformed stored hash to reject, got %v", err)
	}
}
