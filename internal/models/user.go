package models

import (
	"time"
)

// User carries the security-relevant subset of the user entity. The broader
// profile (name, workshop assignments, billing) lives in the business service
// and is not loaded here.
type User struct {
	ID           string
	Username     string
	Email        string // empty when the account has no email on file
	PasswordHash string
	PasswordSalt string
	IsActive     bool
	Role         string // e.g. "user", "admin"

	FailedLoginAttempts int
	IsAccountLocked     bool
	AccountLockedUntil  *time.Time
	LockoutReason       string

	EmailVerified           bool
	EmailVerificationToken  string
	EmailVerificationExpiry *time.Time

	ResetToken       string
	ResetTokenExpiry *time.Time

	LastLoginDate *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// LockExpired reports whether a lock is present but its window has passed.
func (u *User) LockExpired(now time.Time) bool {
	return u.IsAccountLocked && u.AccountLockedUntil != nil && !u.AccountLockedUntil.After(now)
}

// HasPendingVerification reports whether an unexpired email verification
// token is outstanding.
func (u *User) HasPendingVerification(now time.Time) bool {
	return u.EmailVerificationToken != "" &&
		u.EmailVerificationExpiry != nil &&
		u.EmailVerificationExpiry.After(now)
}

// Identity is what callers get back from a successful login or refresh-token
// validation. It deliberately excludes every mutable security field.
type Identity struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
	Role     string `json:"role"`
}

// IdentityOf builds an Identity from a user record.
func IdentityOf(u *User) *Identity {
	return &Identity{
		UserID:   u.ID,
		Username: u.Username,
		Email:    u.Email,
		Role:     u.Role,
	}
}
