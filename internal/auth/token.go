package auth

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
)

const tokenBytes = 32

// NewOpaqueToken returns 256 bits of randomness, URL-safe.
func NewOpaqueToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// NewID returns a short random identifier with the given prefix, e.g. "usr-1f2e...".
func NewID(prefix string) (string, error) {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return prefix + hex.EncodeToString(buf), nil
}
