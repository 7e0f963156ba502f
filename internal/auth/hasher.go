package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	pbkdf2Iterations = 100_000
	pbkdf2KeyLength  = 32
	saltBytes        = 16

	// The user store keeps hash and salt in fixed-width columns. Anything
	// that would not fit must fail before a write, never be truncated.
	MaxHashLen = 64
	MaxSaltLen = 32
)

// PasswordHasher is the slow, salted hashing primitive used by the login and
// password-change flows. Implementations must be safe for concurrent use.
type PasswordHasher interface {
	GenerateSalt() (string, error)
	Hash(plaintext, salt string) (string, error)
	Verify(plaintext, salt, storedHash string) (bool, error)
}

// PBKDF2Hasher hashes with PBKDF2-HMAC-SHA256. The encoded hash is 44 bytes
// and the encoded salt 24 bytes, well inside the column bounds.
type PBKDF2Hasher struct {
	iterations int
	keyLength  int
}

func NewPBKDF2Hasher() *PBKDF2Hasher {
	return &PBKDF2Hasher{
		iterations: pbkdf2Iterations,
		keyLength:  pbkdf2KeyLength,
	}
}

// GenerateSalt returns a fresh random salt, base64-encoded for storage.
func (h *PBKDF2Hasher) GenerateSalt() (string, error) {
	raw := make([]byte, saltBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}

	salt := base64.StdEncoding.EncodeToString(raw)
	if len(salt) > MaxSaltLen {
		return "", fmt.Errorf("generated salt is %d bytes, exceeds column width %d", len(salt), MaxSaltLen)
	}
	return salt, nil
}

// Hash derives the stored hash for plaintext under salt.
func (h *PBKDF2Hasher) Hash(plaintext, salt string) (string, error) {
	if plaintext == "" {
		return "", fmt.Errorf("plaintext cannot be empty")
	}
	if salt == "" {
		return "", fmt.Errorf("salt cannot be empty")
	}

	key := pbkdf2.Key([]byte(plaintext), []byte(salt), h.iterations, h.keyLength, sha256.New)
	encoded := base64.StdEncoding.EncodeToString(key)

	if len(encoded) > MaxHashLen {
		return "", fmt.Errorf("derived hash is %d bytes, exceeds column width %d", len(encoded), MaxHashLen)
	}
	return encoded, nil
}

// Verify recomputes the hash and compares in constant time.
func (h *PBKDF2Hasher) Verify(plaintext, salt, storedHash string) (bool, error) {
	if storedHash == "" || salt == "" {
		return false, nil
	}

	computed, err := h.Hash(plaintext, salt)
	if err != nil {
		return false, err
	}

	return subtle.ConstantTimeCompare([]byte(computed), []byte(storedHash)) == 1, nil
}
