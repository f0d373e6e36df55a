package auth

import (
	"bytes"
	"errors"
	"testing"
)

func TestHashVerify(t *testing.T) {
	h, err := NewPasswordHash("secret-123")
	if err != nil {
		t.Fatalf("hash error: %v", err)
	}
	if !h.Matches("secret-123") {
		t.Fatalf("expected verify to pass")
	}
	if h.Matches("wrong") {
		t.Fatalf("expected verify to fail")
	}
}

func TestHashUsesFreshSalt(t *testing.T) {
	a, err := NewPasswordHash("same-password")
	if err != nil {
		t.Fatalf("hash error: %v", err)
	}
	b, err := NewPasswordHash("same-password")
	if err != nil {
		t.Fatalf("hash error: %v", err)
	}
	if len(a.Salt) != 16 {
		t.Fatalf("expected 128-bit salt, got %d bytes", len(a.Salt))
	}
	if bytes.Equal(a.Salt, b.Salt) || bytes.Equal(a.Key, b.Key) {
		t.Fatalf("expected distinct salts and keys for repeated hashing")
	}
}

func TestParsePasswordHashRoundTrip(t *testing.T) {
	h, err := NewPasswordHash("secret-123")
	if err != nil {
		t.Fatalf("hash error: %v", err)
	}
	parsed, err := ParsePasswordHash(h.String())
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if !parsed.Matches("secret-123") {
		t.Fatalf("expected parsed hash to verify")
	}
}

func TestParsePasswordHashRejectsGarbage(t *testing.T) {
	for _, in := range []string{"", "plain", "$bcrypt$v=1$x$y$z", "$argon2id$v=19$m=x$a$b"} {
		if _, err := ParsePasswordHash(in); !errors.Is(err, ErrMalformedHash) {
			t.Fatalf("expected ErrMalformedHash for %q, got %v", in, err)
		}
	}
}

func TestZeroHashNeverMatches(t *testing.T) {
	if (PasswordHash{}).Matches("") {
		t.Fatalf("expected empty hash to reject")
	}
}

func TestHashPasswordVerify(t *testing.T) {
	encoded, err := HashPassword("secret-123")
	if err != nil {
		t.Fatalf("hash error: %v", err)
	}
	if !VerifyPassword(encoded, "secret-123") {
		t.Fatalf("expected verify to pass")
	}
	if VerifyPassword(encoded, "wrong") {
		t.Fatalf("expected verify to fail")
	}
	if VerifyPassword("$argon2id$broken", "secret-123") {
		t.Fatalf("expected malformed encoding to fail")
	}
}
