package auth

import (
	"encoding/base64"
	"strings"
	"testing"
)

func TestNewOpaqueTokenIsURLSafeAndLongEnough(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 32; i++ {
		tok, err := NewOpaqueToken()
		if err != nil {
			t.Fatalf("token error: %v", err)
		}
		raw, err := base64.RawURLEncoding.DecodeString(tok)
		if err != nil {
			t.Fatalf("token is not raw url base64: %v", err)
		}
		if len(raw) < 32 {
			t.Fatalf("expected at least 256 bits, got %d bytes", len(raw))
		}
		if strings.ContainsAny(tok, "+/=") {
			t.Fatalf("token %q is not url safe", tok)
		}
		if seen[tok] {
			t.Fatalf("duplicate token %q", tok)
		}
		seen[tok] = true
	}
}

func TestNewIDPrefix(t *testing.T) {
	id, err := NewID("usr-")
	if err != nil {
		t.Fatalf("id error: %v", err)
	}
	if !strings.HasPrefix(id, "usr-") || len(id) != len("usr-")+16 {
		t.Fatalf("unexpected id %q", id)
	}
}
