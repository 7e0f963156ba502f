package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/garago/auth-service/internal/auth"
	"github.com/garago/auth-service/internal/cache"
	"github.com/garago/auth-service/internal/models"
	"github.com/garago/auth-service/pkg/logger"
)

// RevocationLedger is the durable record of revoked bearer tokens.
type RevocationLedger interface {
	Insert(ctx context.Context, entry *models.RevokedToken) error
	Exists(ctx context.Context, token string) (bool, error)
	GetExpiry(ctx context.Context, token string) (*time.Time, error)
	DeleteExpired(ctx context.Context, now time.Time) ([]string, error)
}

// ledgerFallbackTTL bounds how long an undecodable token stays on the ledger.
const ledgerFallbackTTL = time.Hour

// TokenBlacklistService revokes bearer tokens before their natural expiry and
// answers revocation checks on the hot path. The database ledger is the
// source of truth; the TTL cache in front of it only absorbs read load.
type TokenBlacklistService struct {
	ledger   RevocationLedger
	sessions SessionStore
	cache    cache.Cache
	decoder  auth.TokenExpiryDecoder
	logger   *slog.Logger
	audit    *logger.AuditLogger
}

func NewTokenBlacklistService(
	ledger RevocationLedger,
	sessions SessionStore,
	tokenCache cache.Cache,
	decoder auth.TokenExpiryDecoder,
	log *slog.Logger,
	audit *logger.AuditLogger,
) *TokenBlacklistService {
	return &TokenBlacklistService{
		ledger:   ledger,
		sessions: sessions,
		cache:    tokenCache,
		decoder:  decoder,
		logger:   log,
		audit:    audit,
	}
}

// RevokeToken places a bearer token on the ledger. Revoking an already
// revoked token reports success without a second row. The returned bool is
// whether the token is now on the ledger.
func (s *TokenBlacklistService) RevokeToken(ctx context.Context, token, userID, reason, ipAddress, userAgent string) (bool, error) {
	if token == "" {
		return false, fmt.Errorf("token cannot be empty")
	}

	exists, err := s.ledger.Exists(ctx, token)
	if err != nil {
		return false, err
	}
	if exists {
		s.cache.Set(token, true)
		return true, nil
	}

	// Ledger rows live as long as the token itself would have. When the
	// expiry cannot be read, fall back to a bounded window.
	expiresAt := time.Now().Add(ledgerFallbackTTL)
	if decoded, err := s.decoder.DecodeExpiry(token); err == nil && decoded != nil {
		expiresAt = *decoded
	}

	entry := &models.RevokedToken{
		Token:        token,
		UserID:       userID,
		RevokeReason: reason,
		RevokedAt:    time.Now(),
		ExpiresAt:    expiresAt,
		IPAddress:    ipAddress,
		UserAgent:    userAgent,
	}
	if err := s.ledger.Insert(ctx, entry); err != nil {
		// A concurrent revocation of the same token is still a success.
		if !errors.Is(err, models.ErrConflict) {
			return false, err
		}
	}

	s.cache.Set(token, true)
	s.audit.LogTokenRevocation(userID, reason, ipAddress)

	return true, nil
}

// IsRevoked reports whether a token is on the ledger. A ledger read failure
// fails open: authentication must not hinge on ledger availability, and the
// signature check has already run by the time this is consulted.
func (s *TokenBlacklistService) IsRevoked(ctx context.Context, token string) bool {
	if token == "" {
		return false
	}

	if revoked, ok := s.cache.Get(token); ok {
		return revoked
	}

	exists, err := s.ledger.Exists(ctx, token)
	if err != nil {
		s.logger.Error("revocation check failed, failing open", slog.Any("error", err))
		return false
	}

	s.cache.Set(token, exists)
	return exists
}

// RevokeAllUserTokens closes every active session the user holds and evicts
// their cached entries. Only tokens recorded as sessions are covered; a
// bearer token issued without a session row stays valid until it expires.
func (s *TokenBlacklistService) RevokeAllUserTokens(ctx context.Context, userID, reason string) (int, error) {
	active, err := s.sessions.ListActiveByUser(ctx, userID)
	if err != nil {
		return 0, err
	}

	for _, session := range active {
		s.cache.Delete(session.SessionToken)
	}

	count, err := s.sessions.DeactivateAllByUser(ctx, userID, time.Now())
	if err != nil {
		return 0, err
	}

	if count > 0 {
		s.audit.LogTokenRevocation(userID, reason, "")
	}
	return int(count), nil
}

// GetTokenExpiry returns when a revoked token's ledger row lapses, or nil
// when the token is not on the ledger.
func (s *TokenBlacklistService) GetTokenExpiry(ctx context.Context, token string) (*time.Time, error) {
	expiry, err := s.ledger.GetExpiry(ctx, token)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return expiry, nil
}

// CleanupExpired deletes ledger rows whose own expiry has passed and evicts
// their cache entries, so a later re-revocation starts from a clean slate.
// The sweep also purges expired cache entries wholesale; IsRevoked caches an
// answer per distinct token, and entries for tokens never presented again
// would otherwise stay resident until process restart.
func (s *TokenBlacklistService) CleanupExpired(ctx context.Context) (int, error) {
	deleted, err := s.ledger.DeleteExpired(ctx, time.Now())
	if err != nil {
		return 0, err
	}

	for _, token := range deleted {
		s.cache.Delete(token)
	}

	purged := s.cache.Purge()
	if len(deleted) > 0 || purged > 0 {
		s.logger.Info("expired revocations purged",
			slog.Int("ledger_rows", len(deleted)),
			slog.Int("cache_entries", purged))
	}
	return len(deleted), nil
}
