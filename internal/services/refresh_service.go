package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/garago/auth-service/internal/auth"
	"github.com/garago/auth-service/internal/models"
	"github.com/garago/auth-service/pkg/logger"
)

// RefreshTokenStore is the persistence surface of the refresh-token family
// model.
type RefreshTokenStore interface {
	Create(ctx context.Context, token *models.RefreshToken) error
	GetBySelector(ctx context.Context, selector string) (*models.RefreshToken, error)
	RotateFamily(ctx context.Context, token *models.RefreshToken, now time.Time) error
	ListActiveByUserAndIP(ctx context.Context, userID, createdByIP string) ([]*models.RefreshToken, error)
	Revoke(ctx context.Context, id, revokedByIP, replacedByHash string, now time.Time) error
	RevokeAllByUser(ctx context.Context, userID, revokedByIP string, now time.Time) (int64, error)
	DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// RefreshTokenService issues, rotates, and validates long-lived refresh
// tokens. A token is "selector:validator": the selector is a plaintext lookup
// key, the validator is only ever stored as a salted hash, so the token table
// alone cannot mint sessions.
type RefreshTokenService struct {
	tokens RefreshTokenStore
	users  UserStore
	hasher auth.PasswordHasher
	expiry time.Duration
	logger *slog.Logger
	audit  *logger.AuditLogger
}

func NewRefreshTokenService(
	tokens RefreshTokenStore,
	users UserStore,
	hasher auth.PasswordHasher,
	expiry time.Duration,
	log *slog.Logger,
	audit *logger.AuditLogger,
) *RefreshTokenService {
	return &RefreshTokenService{
		tokens: tokens,
		users:  users,
		hasher: hasher,
		expiry: expiry,
		logger: log,
		audit:  audit,
	}
}

// Rotate revokes the caller's active token family for this client IP and
// issues a replacement. The returned string is the only time the validator
// exists in plaintext outside the client.
func (s *RefreshTokenService) Rotate(ctx context.Context, userID, ipAddress, userAgent string) (string, error) {
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return "", err
	}

	selector, err := auth.GenerateSelector()
	if err != nil {
		return "", err
	}
	validator, err := auth.GenerateValidator()
	if err != nil {
		return "", err
	}
	salt, err := s.hasher.GenerateSalt()
	if err != nil {
		return "", err
	}
	validatorHash, err := s.hasher.Hash(validator, salt)
	if err != nil {
		return "", err
	}

	now := time.Now()

	token := &models.RefreshToken{
		Selector:    selector,
		TokenHash:   validatorHash,
		TokenSalt:   salt,
		UserID:      userID,
		Expires:     now.Add(s.expiry),
		Created:     now,
		CreatedByIP: ipAddress,
		UserAgent:   userAgent,
	}

	// The new token supersedes every active token issued to this user from
	// this IP. Prefer the transactional rotate; fall back to row-by-row
	// revocation plus a plain insert when the store cannot execute it.
	if err := s.tokens.RotateFamily(ctx, token, now); err != nil {
		s.logger.Warn("transactional family rotation failed, falling back",
			slog.Any("error", err))
		if err := s.revokeFamilyFallback(ctx, userID, ipAddress, validatorHash, now); err != nil {
			return "", err
		}
		if err := s.tokens.Create(ctx, token); err != nil {
			return "", err
		}
	}

	s.audit.LogTokenRevocation(userID, "rotation", ipAddress)

	return selector + ":" + validator, nil
}

func (s *RefreshTokenService) revokeFamilyFallback(ctx context.Context, userID, ipAddress, replacedByHash string, now time.Time) error {
	active, err := s.tokens.ListActiveByUserAndIP(ctx, userID, ipAddress)
	if err != nil {
		return err
	}

	for _, t := range active {
		if err := s.tokens.Revoke(ctx, t.ID, ipAddress, replacedByHash, now); err != nil {
			return err
		}
	}
	return nil
}

// Validate resolves a presented refresh token to an identity. A malformed,
// unknown, expired, or revoked token yields (nil, nil); only a storage
// failure yields an error. Callers must treat a nil identity as a signed-out
// session. The client metadata is recorded when the validator does not match
// its stored hash.
func (s *RefreshTokenService) Validate(ctx context.Context, tokenString, ipAddress, userAgent string) (*models.Identity, error) {
	selector, validator, ok := splitToken(tokenString)
	if !ok {
		return nil, nil
	}

	record, err := s.tokens.GetBySelector(ctx, selector)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	if !record.IsActive(time.Now()) {
		return nil, nil
	}

	match, err := s.hasher.Verify(validator, record.TokenSalt, record.TokenHash)
	if err != nil {
		return nil, err
	}
	if !match {
		// Selector hit with a wrong validator points at token theft or
		// corruption. Worth an audit trail either way.
		s.logger.Warn("refresh token validator mismatch",
			slog.String("user_id", record.UserID),
			slog.String("ip_address", ipAddress),
			slog.String("user_agent", userAgent))
		s.audit.LogAuthAttempt(logger.AuditEvent{
			EventType:     "refresh",
			UserID:        record.UserID,
			IPAddress:     ipAddress,
			UserAgent:     userAgent,
			Success:       false,
			FailureReason: "validator mismatch",
		})
		return nil, nil
	}

	user, err := s.users.GetByID(ctx, record.UserID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, nil
	}

	return models.IdentityOf(user), nil
}

// Revoke invalidates a single presented token. Unknown or already revoked
// tokens are a no-op so client-side logout is idempotent.
func (s *RefreshTokenService) Revoke(ctx context.Context, tokenString, ipAddress string) error {
	selector, _, ok := splitToken(tokenString)
	if !ok {
		return nil
	}

	record, err := s.tokens.GetBySelector(ctx, selector)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil
		}
		return err
	}
	if record.Revoked != nil {
		return nil
	}

	if err := s.tokens.Revoke(ctx, record.ID, ipAddress, "", time.Now()); err != nil {
		return err
	}

	s.audit.LogTokenRevocation(record.UserID, "logout", ipAddress)
	return nil
}

// RevokeAllForUser invalidates every active refresh token the user holds,
// across client IPs. Used on password change and forced sign-out.
func (s *RefreshTokenService) RevokeAllForUser(ctx context.Context, userID, ipAddress, reason string) (int64, error) {
	count, err := s.tokens.RevokeAllByUser(ctx, userID, ipAddress, time.Now())
	if err != nil {
		return 0, err
	}

	if count > 0 {
		s.audit.LogTokenRevocation(userID, reason, ipAddress)
	}
	return count, nil
}

// CleanupExpired purges refresh tokens that expired before the retention
// cutoff.
func (s *RefreshTokenService) CleanupExpired(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention)
	return s.tokens.DeleteExpiredBefore(ctx, cutoff)
}

// splitToken separates "selector:validator". Both halves must be non-empty.
func splitToken(tokenString string) (selector, validator string, ok bool) {
	selector, validator, found := strings.Cut(tokenString, ":")
	if !found || selector == "" || validator == "" {
		return "", "", false
	}
	return selector, validator, true
}
