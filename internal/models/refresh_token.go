package models

import "time"

// RefreshToken is one row of the refresh-token ledger. The string handed to
// the client is "selector:validator"; only the selector is indexable and the
// validator is stored as a salted hash.
type RefreshToken struct {
	ID                  string
	Selector            string
	TokenHash           string
	TokenSalt           string
	UserID              string
	Expires             time.Time
	Created             time.Time
	CreatedByIP         string
	UserAgent           string
	Revoked             *time.Time
	RevokedByIP         string
	ReplacedByTokenHash string
}

// IsExpired reports whether the token's lifetime has passed.
func (t *RefreshToken) IsExpired(now time.Time) bool {
	return !now.Before(t.Expires)
}

// IsActive reports whether the token may still be exchanged: never revoked
// and not yet expired.
func (t *RefreshToken) IsActive(now time.Time) bool {
	return t.Revoked == nil && !t.IsExpired(now)
}
