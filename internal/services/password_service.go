package services

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"time"

	"github.com/garago/auth-service/internal/auth"
	"github.com/garago/auth-service/internal/models"
	pkgauth "github.com/garago/auth-service/pkg/auth"
	"github.com/garago/auth-service/pkg/logger"
)

// TokenRevoker is the slice of the refresh-token service the credential
// flows need: forced sign-out of every device after a credential change.
type TokenRevoker interface {
	RevokeAllForUser(ctx context.Context, userID, ipAddress, reason string) (int64, error)
}

// PasswordOptions carries the lifetimes of the emailed one-time tokens.
type PasswordOptions struct {
	ResetTokenExpiry        time.Duration
	VerificationTokenExpiry time.Duration
}

// PasswordService owns the credential side flows: password change, the
// forgot/reset loop, and email verification. The forgot and reset flows
// answer with a bare bool so their responses cannot confirm whether an email
// is registered.
type PasswordService struct {
	users   UserStore
	hasher  auth.PasswordHasher
	policy  pkgauth.PasswordPolicy
	revoker TokenRevoker
	mailer  NotificationSender
	queue   TaskQueue
	opts    PasswordOptions
	logger  *slog.Logger
	audit   *logger.AuditLogger
}

func NewPasswordService(
	users UserStore,
	hasher auth.PasswordHasher,
	policy pkgauth.PasswordPolicy,
	revoker TokenRevoker,
	mailer NotificationSender,
	queue TaskQueue,
	opts PasswordOptions,
	log *slog.Logger,
	audit *logger.AuditLogger,
) *PasswordService {
	return &PasswordService{
		users:   users,
		hasher:  hasher,
		policy:  policy,
		revoker: revoker,
		mailer:  mailer,
		queue:   queue,
		opts:    opts,
		logger:  log,
		audit:   audit,
	}
}

// UpdatePassword changes an authenticated user's password after re-checking
// the current one, then signs the user out everywhere else.
func (s *PasswordService) UpdatePassword(ctx context.Context, userID, currentPassword, newPassword, ipAddress string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.NewInvalidSession()
		}
		s.logger.Error("failed to load user for password change", slog.Any("error", err))
		return models.NewInternalError()
	}

	match, err := s.hasher.Verify(currentPassword, user.PasswordSalt, user.PasswordHash)
	if err != nil {
		s.logger.Error("password verification failed", slog.Any("error", err))
		return models.NewInternalError()
	}
	if !match {
		s.audit.LogPasswordChange(userID, false)
		return models.NewPasswordMismatch()
	}

	if err := s.policy.Validate(newPassword); err != nil {
		return models.NewPasswordTooWeak()
	}

	if err := s.applyNewPassword(ctx, user.ID, newPassword); err != nil {
		s.logger.Error("failed to store new password", slog.Any("error", err))
		return models.NewInternalError()
	}

	// Existing refresh tokens were minted under the old credential. Failing
	// to revoke them is logged, not surfaced; they still age out on expiry.
	if _, err := s.revoker.RevokeAllForUser(ctx, user.ID, ipAddress, "password_change"); err != nil {
		s.logger.Warn("failed to revoke refresh tokens after password change",
			slog.String("user_id", user.ID), slog.Any("error", err))
	}

	s.audit.LogPasswordChange(userID, true)
	return nil
}

// ForgotPassword starts the reset loop. It always reports true so the
// response cannot be used to probe for registered emails; the actual work
// happens only when the email resolves to an account.
func (s *PasswordService) ForgotPassword(ctx context.Context, email string) bool {
	if email == "" {
		return true
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			s.logger.Error("failed to load user for password reset", slog.Any("error", err))
		}
		return true
	}
	if !user.IsActive {
		return true
	}

	token, err := auth.GenerateOpaqueToken()
	if err != nil {
		s.logger.Error("failed to generate reset token", slog.Any("error", err))
		return true
	}

	expiry := time.Now().Add(s.opts.ResetTokenExpiry)
	if err := s.users.SetResetToken(ctx, user.ID, token, expiry); err != nil {
		s.logger.Error("failed to store reset token", slog.Any("error", err))
		return true
	}

	targetEmail := user.Email
	s.queue.Enqueue(Task{
		Name: "password_reset_email",
		Run: func(ctx context.Context) error {
			return s.mailer.SendPasswordResetEmail(ctx, targetEmail, token, expiry)
		},
	})

	return true
}

// ResetPassword completes the reset loop: the emailed token must match the
// stored one inside its validity window, and the new password must satisfy
// the policy. The bool mirrors ForgotPassword; false never says which check
// failed.
func (s *PasswordService) ResetPassword(ctx context.Context, email, token, newPassword string) bool {
	if email == "" || token == "" {
		return false
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			s.logger.Error("failed to load user for password reset", slog.Any("error", err))
		}
		return false
	}

	if user.ResetToken == "" || user.ResetTokenExpiry == nil || !user.ResetTokenExpiry.After(time.Now()) {
		return false
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(user.ResetToken)) != 1 {
		return false
	}

	if err := s.policy.Validate(newPassword); err != nil {
		return false
	}

	if err := s.applyNewPassword(ctx, user.ID, newPassword); err != nil {
		s.logger.Error("failed to store reset password", slog.Any("error", err))
		return false
	}

	if _, err := s.revoker.RevokeAllForUser(ctx, user.ID, "", "password_reset"); err != nil {
		s.logger.Warn("failed to revoke refresh tokens after password reset",
			slog.String("user_id", user.ID), slog.Any("error", err))
	}

	s.audit.LogPasswordChange(user.ID, true)
	return true
}

// VerifyEmail confirms ownership of the address. Verifying an already
// verified account reports true so the link can be clicked twice.
func (s *PasswordService) VerifyEmail(ctx context.Context, email, token string) bool {
	if email == "" || token == "" {
		return false
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			s.logger.Error("failed to load user for email verification", slog.Any("error", err))
		}
		return false
	}

	if user.EmailVerified {
		return true
	}
	if !user.HasPendingVerification(time.Now()) {
		return false
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(user.EmailVerificationToken)) != 1 {
		return false
	}

	if err := s.users.MarkEmailVerified(ctx, user.ID); err != nil {
		s.logger.Error("failed to mark email verified", slog.Any("error", err))
		return false
	}

	return true
}

// applyNewPassword derives a fresh salt and hash and writes them in one
// credential update.
func (s *PasswordService) applyNewPassword(ctx context.Context, userID, newPassword string) error {
	salt, err := s.hasher.GenerateSalt()
	if err != nil {
		return err
	}
	hash, err := s.hasher.Hash(newPassword, salt)
	if err != nil {
		return err
	}
	return s.users.UpdateCredentials(ctx, userID, hash, salt)
}
