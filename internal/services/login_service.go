package services

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"time"

	"github.com/garago/auth-service/internal/auth"
	"github.com/garago/auth-service/internal/models"
	"github.com/garago/auth-service/pkg/logger"
)

// UserStore is the persistence surface the auth core needs from the user
// repository.
type UserStore interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateSecurityState(ctx context.Context, user *models.User) error
	UpdateCredentials(ctx context.Context, id, passwordHash, passwordSalt string) error
	SetEmailVerificationToken(ctx context.Context, id, token string, expiry time.Time) error
	MarkEmailVerified(ctx context.Context, id string) error
	SetResetToken(ctx context.Context, id, token string, expiry time.Time) error
}

// SessionStore records login sessions for the session audit trail.
type SessionStore interface {
	Create(ctx context.Context, session *models.UserSession) error
	ListActiveByUser(ctx context.Context, userID string) ([]*models.UserSession, error)
	DeactivateAllByUser(ctx context.Context, userID string, logoutTime time.Time) (int64, error)
}

const (
	lockoutReasonFailedLogins = "too many failed login attempts"

	roleAdmin = "admin"
)

// LoginOptions carries the tunables of the lockout machine and the
// verification flow.
type LoginOptions struct {
	MaxFailedAttempts       int
	LockoutDuration         time.Duration
	VerificationTokenExpiry time.Duration
}

// LoginService authenticates credentials and drives the per-account lockout
// state machine. All lockout state lives on the user record; each login
// attempt performs at most one security-state write.
type LoginService struct {
	users    UserStore
	sessions SessionStore
	hasher   auth.PasswordHasher
	mailer   NotificationSender
	queue    TaskQueue
	delay    *auth.EnumerationDelay
	opts     LoginOptions
	logger   *slog.Logger
	audit    *logger.AuditLogger
}

func NewLoginService(
	users UserStore,
	sessions SessionStore,
	hasher auth.PasswordHasher,
	mailer NotificationSender,
	queue TaskQueue,
	delay *auth.EnumerationDelay,
	opts LoginOptions,
	log *slog.Logger,
	audit *logger.AuditLogger,
) *LoginService {
	return &LoginService{
		users:    users,
		sessions: sessions,
		hasher:   hasher,
		mailer:   mailer,
		queue:    queue,
		delay:    delay,
		opts:     opts,
		logger:   log,
		audit:    audit,
	}
}

// Login validates the credential pair and returns the caller's identity, or
// an AuthError describing why the attempt was rejected. The failure message
// never distinguishes an unknown username from a wrong password.
func (s *LoginService) Login(ctx context.Context, username, password, ipAddress, userAgent string) (*models.Identity, error) {
	if username == "" || password == "" {
		return nil, models.NewValidationError()
	}

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			// Pad the unknown-user exit so its timing matches a hash check.
			s.delay.Wait()
			s.auditFailure("", username, ipAddress, userAgent, "unknown username")
			return nil, models.NewInvalidCredentials(-1)
		}
		s.logger.Error("failed to load user for login", slog.Any("error", err))
		return nil, models.NewInternalError()
	}

	if !user.IsActive {
		s.auditFailure(user.ID, username, ipAddress, userAgent, "account disabled")
		return nil, models.NewAccountDisabled()
	}

	now := time.Now()

	if user.IsAccountLocked {
		if user.LockExpired(now) {
			// Auto-unlock in memory. The cleared state rides along with
			// whichever security-state write this attempt ends in.
			user.IsAccountLocked = false
			user.AccountLockedUntil = nil
			user.LockoutReason = ""
			user.FailedLoginAttempts = 0
		} else {
			remaining := remainingLockMinutes(user, now)
			s.auditFailure(user.ID, username, ipAddress, userAgent, "account locked")
			return nil, models.NewAccountLocked(remaining)
		}
	}

	ok, err := s.hasher.Verify(password, user.PasswordSalt, user.PasswordHash)
	if err != nil {
		s.logger.Error("password verification failed", slog.Any("error", err))
		return nil, models.NewInternalError()
	}
	if !ok {
		return nil, s.recordFailedAttempt(ctx, user, now, ipAddress, userAgent)
	}

	if user.Email != "" && !user.EmailVerified {
		if !user.HasPendingVerification(now) {
			s.enqueueVerificationEmail(user)
		}
		// The password was right, so the failure streak ends here even
		// though the login itself is refused.
		if user.FailedLoginAttempts != 0 {
			user.FailedLoginAttempts = 0
			user.IsAccountLocked = false
			user.AccountLockedUntil = nil
			user.LockoutReason = ""
			if err := s.users.UpdateSecurityState(ctx, user); err != nil {
				s.logger.Warn("failed to clear failure counter", slog.Any("error", err))
			}
		}
		s.auditFailure(user.ID, username, ipAddress, userAgent, "email not verified")
		return nil, models.NewEmailNotVerified()
	}

	user.FailedLoginAttempts = 0
	user.IsAccountLocked = false
	user.AccountLockedUntil = nil
	user.LockoutReason = ""
	user.LastLoginDate = &now

	if err := s.users.UpdateSecurityState(ctx, user); err != nil {
		s.logger.Error("failed to record successful login", slog.Any("error", err))
		return nil, models.NewInternalError()
	}

	if user.Role == roleAdmin && user.Email != "" {
		s.enqueueLoginAlert(user, ipAddress, now)
	}

	s.audit.LogAuthAttempt(logger.AuditEvent{
		EventType: "login",
		UserID:    user.ID,
		Username:  username,
		IPAddress: ipAddress,
		UserAgent: userAgent,
		Success:   true,
	})

	return models.IdentityOf(user), nil
}

// RecordSession writes the session audit row for an issued access token.
func (s *LoginService) RecordSession(ctx context.Context, userID, sessionToken string) error {
	session := &models.UserSession{
		UserID:       userID,
		SessionToken: sessionToken,
		IsActive:     true,
		LoginTime:    time.Now(),
	}

	if err := s.sessions.Create(ctx, session); err != nil {
		return err
	}
	return nil
}

// recordFailedAttempt advances the failure counter, locks the account when
// the threshold is reached, and persists the whole transition in one write.
func (s *LoginService) recordFailedAttempt(ctx context.Context, user *models.User, now time.Time, ipAddress, userAgent string) error {
	user.FailedLoginAttempts++

	locked := user.FailedLoginAttempts >= s.opts.MaxFailedAttempts
	if locked {
		until := now.Add(s.opts.LockoutDuration)
		user.IsAccountLocked = true
		user.AccountLockedUntil = &until
		user.LockoutReason = lockoutReasonFailedLogins
	}

	if err := s.users.UpdateSecurityState(ctx, user); err != nil {
		s.logger.Error("failed to persist login failure", slog.Any("error", err))
		return models.NewInternalError()
	}

	if locked {
		s.audit.LogLockout(user.ID, lockoutReasonFailedLogins, *user.AccountLockedUntil)
		if user.Email != "" {
			s.enqueueLockoutAlert(user)
		}
		return models.NewAccountLocked(remainingLockMinutes(user, now))
	}

	s.auditFailure(user.ID, user.Username, ipAddress, userAgent, "wrong password")
	return models.NewInvalidCredentials(s.opts.MaxFailedAttempts - user.FailedLoginAttempts)
}

// enqueueVerificationEmail issues a fresh verification token and queues its
// delivery. Runs detached; the login response does not wait for it.
func (s *LoginService) enqueueVerificationEmail(user *models.User) {
	userID := user.ID
	email := user.Email

	s.queue.Enqueue(Task{
		Name: "verification_email",
		Run: func(ctx context.Context) error {
			token, err := auth.GenerateOpaqueToken()
			if err != nil {
				return err
			}
			expiry := time.Now().Add(s.opts.VerificationTokenExpiry)
			if err := s.users.SetEmailVerificationToken(ctx, userID, token, expiry); err != nil {
				return err
			}
			return s.mailer.SendVerificationEmail(ctx, email, token, expiry)
		},
	})
}

func (s *LoginService) enqueueLockoutAlert(user *models.User) {
	email := user.Email
	username := user.Username
	until := *user.AccountLockedUntil

	s.queue.Enqueue(Task{
		Name: "lockout_alert",
		Run: func(ctx context.Context) error {
			return s.mailer.SendLockoutAlert(ctx, email, username, until)
		},
	})
}

func (s *LoginService) enqueueLoginAlert(user *models.User, ipAddress string, at time.Time) {
	email := user.Email
	username := user.Username

	s.queue.Enqueue(Task{
		Name: "admin_login_alert",
		Run: func(ctx context.Context) error {
			return s.mailer.SendLoginAlert(ctx, email, username, ipAddress, at)
		},
	})
}

func (s *LoginService) auditFailure(userID, username, ipAddress, userAgent, reason string) {
	s.audit.LogAuthAttempt(logger.AuditEvent{
		EventType:     "login",
		UserID:        userID,
		Username:      username,
		IPAddress:     ipAddress,
		UserAgent:     userAgent,
		Success:       false,
		FailureReason: reason,
	})
}

// remainingLockMinutes rounds the remaining lock window up to whole minutes,
// so a freshly locked account reports the full configured duration.
func remainingLockMinutes(user *models.User, now time.Time) int {
	if user.AccountLockedUntil == nil {
		return 0
	}
	remaining := user.AccountLockedUntil.Sub(now)
	if remaining <= 0 {
		return 0
	}
	return int(math.Ceil(remaining.Minutes()))
}
