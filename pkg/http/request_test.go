package http

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractClientIP_UntrustedPeerIgnoresHeaders(t *testing.T) {
	req := httptest.NewRequest("POST", "/auth/login", nil)
	req.RemoteAddr = "203.0.113.7:54321"
	req.Header.Set("X-Forwarded-For", "198.51.100.1")

	ip := ExtractClientIP(req, &IPConfig{})

	assert.Equal(t, "203.0.113.7", ip)
}

func TestExtractClientIP_TrustedProxyUsesForwardedFor(t *testing.T) {
	req := httptest.NewRequest("POST", "/auth/login", nil)
	req.RemoteAddr = "10.0.0.2:443"
	req.Header.Set("X-Forwarded-For", "198.51.100.1, 10.0.0.2")

	ip := ExtractClientIP(req, &IPConfig{TrustedProxies: []string{"10.0.0.0/8"}})

	assert.Equal(t, "198.51.100.1", ip)
}

func TestExtractClientIP_TrustedProxyFallsBackToRealIP(t *testing.T) {
	req := httptest.NewRequest("POST", "/auth/login", nil)
	req.RemoteAddr = "10.0.0.2:443"
	req.Header.Set("X-Real-IP", "198.51.100.2")

	ip := ExtractClientIP(req, &IPConfig{TrustedProxies: []string{"10.0.0.0/8"}})

	assert.Equal(t, "198.51.100.2", ip)
}

func TestExtractClientIP_GarbageHeaderFallsThrough(t *testing.T) {
	req := httptest.NewRequest("POST", "/auth/login", nil)
	req.RemoteAddr = "10.0.0.2:443"
	req.Header.Set("X-Forwarded-For", "not-an-ip")

	ip := ExtractClientIP(req, &IPConfig{TrustedProxies: []string{"10.0.0.0/8"}})

	assert.Equal(t, "10.0.0.2", ip)
}
