package auth

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

const (
	selectorBytes  = 12 // 16 chars encoded, fixed-length lookup key
	validatorBytes = 32
)

// randomToken returns n random bytes, URL-safe base64 encoded without padding.
func randomToken(n int) (string, error) {
	raw := make([]byte, n)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("failed to generate random token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// GenerateSelector returns the public, indexable half of a refresh token.
func GenerateSelector() (string, error) {
	return randomToken(selectorBytes)
}

// GenerateValidator returns the secret half of a refresh token. It is handed
// to the client once and only its salted hash is persisted.
func GenerateValidator() (string, error) {
	return randomToken(validatorBytes)
}

// GenerateOpaqueToken returns a URL-safe token for email verification and
// password reset links.
func GenerateOpaqueToken() (string, error) {
	return randomToken(validatorBytes)
}
