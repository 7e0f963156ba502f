package models

import "time"

// RevokedToken is one entry of the bearer-token blacklist ledger. A
// non-expired row means the token is invalid regardless of its signature.
type RevokedToken struct {
	ID           string
	Token        string
	UserID       string
	RevokeReason string
	RevokedAt    time.Time
	ExpiresAt    time.Time // copied from the token's own exp claim
	IPAddress    string
	UserAgent    string
}

// UserSession tracks an authenticated session for bulk revocation. This is
// the only inventory available when revoking "all sessions" for a user; bearer
// tokens issued outside a tracked session are not enumerable here.
type UserSession struct {
	ID           string
	UserID       string
	SessionToken string
	IsActive     bool
	LoginTime    time.Time
	LogoutTime   *time.Time
}
