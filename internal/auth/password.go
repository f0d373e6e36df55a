package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Tuned for low-memory ARM servers while still using Argon2id.
const (
	argonMemory      = 32 * 1024 // 32 MiB
	argonIterations  = 2
	argonParallelism = 1
	argonKeyLen      = 32
	saltLen          = 16
)

var ErrMalformedHash = errors.New("malformed password hash")

// PasswordHash keeps the salt and derived key apart so the credential store
// never holds anything it could compare with ==.
type PasswordHash struct {
	Salt    []byte
	Key     []byte
	Memory  uint32
	Time    uint32
	Threads uint8
}

func NewPasswordHash(pw string) (PasswordHash, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return PasswordHash{}, err
	}
	return PasswordHash{
		Salt:    salt,
		Key:     argon2.IDKey([]byte(pw), salt, argonIterations, argonMemory, argonParallelism, argonKeyLen),
		Memory:  argonMemory,
		Time:    argonIterations,
		Threads: argonParallelism,
	}, nil
}

// Matches recomputes the key with the stored salt and cost parameters.
func (h PasswordHash) Matches(pw string) bool {
	if len(h.Salt) == 0 || len(h.Key) == 0 || h.Memory == 0 || h.Time == 0 || h.Threads == 0 {
		return false
	}
	other := argon2.IDKey([]byte(pw), h.Salt, h.Time, h.Memory, h.Threads, uint32(len(h.Key)))
	return subtle.ConstantTimeCompare(h.Key, other) == 1
}

// HashPassword returns the encoded $argon2id$ form stored on a user.
func HashPassword(pw string) (string, error) {
	h, err := NewPasswordHash(pw)
	if err != nil {
		return "", err
	}
	return h.String(), nil
}

// VerifyPassword reports false for malformed encodings.
func VerifyPassword(encoded, pw string) bool {
	h, err := ParsePasswordHash(encoded)
	if err != nil {
		return false
	}
	return h.Matches(pw)
}

func (h PasswordHash) String() string {
	return fmt.Sprintf("$argon2id$v=19$m=%d,t=%d,p=%d$%s$%s",
		h.Memory,
		h.Time,
		h.Threads,
		base64.RawStdEncoding.EncodeToString(h.Salt),
		base64.RawStdEncoding.EncodeToString(h.Key),
	)
}

func ParsePasswordHash(encoded string) (PasswordHash, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return PasswordHash{}, ErrMalformedHash
	}
	var h PasswordHash
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &h.Memory, &h.Time, &h.Threads); err != nil {
		return PasswordHash{}, fmt.Errorf("%w: %v", ErrMalformedHash, err)
	}
	var err error
	if h.Salt, err = base64.RawStdEncoding.DecodeString(parts[4]); err != nil {
		return PasswordHash{}, fmt.Errorf("%w: %v", ErrMalformedHash, err)
	}
	if h.Key, err = base64.RawStdEncoding.DecodeString(parts[5]); err != nil {
		return PasswordHash{}, fmt.Errorf("%w: %v", ErrMalformedHash, err)
	}
	return h, nil
}
