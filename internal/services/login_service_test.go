package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garago/auth-service/internal/auth"
	"github.com/garago/auth-service/internal/models"
)

func newTestLoginService(users *MockUserStore, sessions *MockSessionStore, queue *RecordingQueue) *LoginService {
	return NewLoginService(
		users,
		sessions,
		&MockPasswordHasher{},
		&MockNotificationSender{},
		queue,
		auth.NewEnumerationDelay(0, 0),
		LoginOptions{
			MaxFailedAttempts:       5,
			LockoutDuration:         30 * time.Minute,
			VerificationTokenExpiry: 24 * time.Hour,
		},
		testLogger(),
		testAuditLogger(),
	)
}

func newTestUser() *models.User {
	return &models.User{
		ID:            "user123",
		Username:      "nguyenvana",
		Email:         "a@example.com",
		PasswordHash:  "hash:s1:Secret123",
		PasswordSalt:  "s1",
		IsActive:      true,
		Role:          "user",
		EmailVerified: true,
	}
}

func TestLoginService_Login_Success(t *testing.T) {
	user := newTestUser()
	var saved *models.User

	users := &MockUserStore{
		GetByUsernameFunc: func(ctx context.Context, username string) (*models.User, error) {
			return user, nil
		},
		UpdateSecurityStateFunc: func(ctx context.Context, u *models.User) error {
			saved = u
			return nil
		},
	}

	svc := newTestLoginService(users, &MockSessionStore{}, &RecordingQueue{})

	identity, err := svc.Login(context.Background(), "nguyenvana", "Secret123", "10.0.0.1", "test-agent")

	require.NoError(t, err)
	require.NotNil(t, identity)
	assert.Equal(t, "user123", identity.UserID)
	assert.Equal(t, "nguyenvana", identity.Username)

	require.NotNil(t, saved)
	assert.Equal(t, 0, saved.FailedLoginAttempts)
	assert.False(t, saved.IsAccountLocked)
	assert.NotNil(t, saved.LastLoginDate)
}

func TestLoginService_Login_EmptyCredentials(t *testing.T) {
	svc := newTestLoginService(&MockUserStore{}, &MockSessionStore{}, &RecordingQueue{})

	_, err := svc.Login(context.Background(), "", "Secret123", "10.0.0.1", "")
	assert.Equal(t, models.CodeValidation, models.CodeOf(err))

	_, err = svc.Login(context.Background(), "nguyenvana", "", "10.0.0.1", "")
	assert.Equal(t, models.CodeValidation, models.CodeOf(err))
}

func TestLoginService_Login_UnknownUsername(t *testing.T) {
	svc := newTestLoginService(&MockUserStore{}, &MockSessionStore{}, &RecordingQueue{})

	identity, err := svc.Login(context.Background(), "ghost", "Secret123", "10.0.0.1", "")

	assert.Nil(t, identity)
	require.Error(t, err)
	assert.Equal(t, models.CodeInvalidCredentials, models.CodeOf(err))

	// The generic message must not reveal that the account does not exist.
	var ae *models.AuthError
	require.ErrorAs(t, err, &ae)
	assert.NotContains(t, ae.Message, "ghost")
	assert.Equal(t, -1, ae.RemainingAttempts)
}

func TestLoginService_Login_DisabledAccount(t *testing.T) {
	user := newTestUser()
	user.IsActive = false

	users := &MockUserStore{
		GetByUsernameFunc: func(ctx context.Context, username string) (*models.User, error) {
			return user, nil
		},
	}
	svc := newTestLoginService(users, &MockSessionStore{}, &RecordingQueue{})

	identity, err := svc.Login(context.Background(), "nguyenvana", "Secret123", "10.0.0.1", "")

	assert.Nil(t, identity)
	assert.Equal(t, models.CodeAccountLocked, models.CodeOf(err))
}

func TestLoginService_Login_WrongPasswordCountsDown(t *testing.T) {
	user := newTestUser()
	user.FailedLoginAttempts = 2

	var saved *models.User
	users := &MockUserStore{
		GetByUsernameFunc: func(ctx context.Context, username string) (*models.User, error) {
			return user, nil
		},
		UpdateSecurityStateFunc: func(ctx context.Context, u *models.User) error {
			saved = u
			return nil
		},
	}
	svc := newTestLoginService(users, &MockSessionStore{}, &RecordingQueue{})

	_, err := svc.Login(context.Background(), "nguyenvana", "wrong", "10.0.0.1", "")

	require.Error(t, err)
	var ae *models.AuthError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, models.CodeInvalidCredentials, ae.Code)
	assert.Equal(t, 2, ae.RemainingAttempts)

	require.NotNil(t, saved)
	assert.Equal(t, 3, saved.FailedLoginAttempts)
	assert.False(t, saved.IsAccountLocked)
}

func TestLoginService_Login_FifthFailureLocksAccount(t *testing.T) {
	user := newTestUser()
	user.FailedLoginAttempts = 4

	var saved *models.User
	users := &MockUserStore{
		GetByUsernameFunc: func(ctx context.Context, username string) (*models.User, error) {
			return user, nil
		},
		UpdateSecurityStateFunc: func(ctx context.Context, u *models.User) error {
			saved = u
			return nil
		},
	}
	queue := &RecordingQueue{}
	svc := newTestLoginService(users, &MockSessionStore{}, queue)

	_, err := svc.Login(context.Background(), "nguyenvana", "wrong", "10.0.0.1", "")

	require.Error(t, err)
	var ae *models.AuthError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, models.CodeAccountLocked, ae.Code)
	assert.Equal(t, 30, ae.RetryAfterMinutes)
	assert.Contains(t, ae.Message, "30 phút")

	require.NotNil(t, saved)
	assert.True(t, saved.IsAccountLocked)
	assert.Equal(t, 5, saved.FailedLoginAttempts)
	require.NotNil(t, saved.AccountLockedUntil)
	assert.WithinDuration(t, time.Now().Add(30*time.Minute), *saved.AccountLockedUntil, 5*time.Second)

	assert.Contains(t, queue.Names(), "lockout_alert")
}

func TestLoginService_Login_LockedAccountReportsRemainingMinutes(t *testing.T) {
	user := newTestUser()
	until := time.Now().Add(12*time.Minute + 30*time.Second)
	user.IsAccountLocked = true
	user.AccountLockedUntil = &until
	user.FailedLoginAttempts = 5

	users := &MockUserStore{
		GetByUsernameFunc: func(ctx context.Context, username string) (*models.User, error) {
			return user, nil
		},
		UpdateSecurityStateFunc: func(ctx context.Context, u *models.User) error {
			t.Fatal("a rejected locked attempt must not write state")
			return nil
		},
	}
	svc := newTestLoginService(users, &MockSessionStore{}, &RecordingQueue{})

	_, err := svc.Login(context.Background(), "nguyenvana", "Secret123", "10.0.0.1", "")

	require.Error(t, err)
	var ae *models.AuthError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, models.CodeAccountLocked, ae.Code)
	// 12m30s remaining rounds up to 13 whole minutes.
	assert.Equal(t, 13, ae.RetryAfterMinutes)
}

func TestLoginService_Login_ExpiredLockAutoUnlocks(t *testing.T) {
	user := newTestUser()
	until := time.Now().Add(-time.Minute)
	user.IsAccountLocked = true
	user.AccountLockedUntil = &until
	user.LockoutReason = lockoutReasonFailedLogins
	user.FailedLoginAttempts = 5

	var saved *models.User
	users := &MockUserStore{
		GetByUsernameFunc: func(ctx context.Context, username string) (*models.User, error) {
			return user, nil
		},
		UpdateSecurityStateFunc: func(ctx context.Context, u *models.User) error {
			saved = u
			return nil
		},
	}
	svc := newTestLoginService(users, &MockSessionStore{}, &RecordingQueue{})

	identity, err := svc.Login(context.Background(), "nguyenvana", "Secret123", "10.0.0.1", "")

	require.NoError(t, err)
	require.NotNil(t, identity)

	require.NotNil(t, saved)
	assert.False(t, saved.IsAccountLocked)
	assert.Nil(t, saved.AccountLockedUntil)
	assert.Empty(t, saved.LockoutReason)
	assert.Equal(t, 0, saved.FailedLoginAttempts)
}

func TestLoginService_Login_ExpiredLockWrongPasswordStartsAtOne(t *testing.T) {
	user := newTestUser()
	until := time.Now().Add(-time.Minute)
	user.IsAccountLocked = true
	user.AccountLockedUntil = &until
	user.FailedLoginAttempts = 5

	var saved *models.User
	users := &MockUserStore{
		GetByUsernameFunc: func(ctx context.Context, username string) (*models.User, error) {
			return user, nil
		},
		UpdateSecurityStateFunc: func(ctx context.Context, u *models.User) error {
			saved = u
			return nil
		},
	}
	svc := newTestLoginService(users, &MockSessionStore{}, &RecordingQueue{})

	_, err := svc.Login(context.Background(), "nguyenvana", "wrong", "10.0.0.1", "")

	require.Error(t, err)
	var ae *models.AuthError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, models.CodeInvalidCredentials, ae.Code)
	assert.Equal(t, 4, ae.RemainingAttempts)

	require.NotNil(t, saved)
	assert.Equal(t, 1, saved.FailedLoginAttempts)
	assert.False(t, saved.IsAccountLocked)
}

func TestLoginService_Login_UnverifiedEmailQueuesToken(t *testing.T) {
	user := newTestUser()
	user.EmailVerified = false

	var storedToken string
	users := &MockUserStore{
		GetByUsernameFunc: func(ctx context.Context, username string) (*models.User, error) {
			return user, nil
		},
		SetEmailVerificationTokenFunc: func(ctx context.Context, id, token string, expiry time.Time) error {
			storedToken = token
			return nil
		},
	}
	queue := &RecordingQueue{}
	svc := newTestLoginService(users, &MockSessionStore{}, queue)

	identity, err := svc.Login(context.Background(), "nguyenvana", "Secret123", "10.0.0.1", "")

	assert.Nil(t, identity)
	assert.Equal(t, models.CodeEmailNotVerified, models.CodeOf(err))

	require.Equal(t, []string{"verification_email"}, queue.Names())
	errs := queue.RunAll(context.Background())
	assert.Empty(t, errs)
	assert.NotEmpty(t, storedToken)
}

func TestLoginService_Login_UnverifiedEmailWithPendingTokenDoesNotReissue(t *testing.T) {
	user := newTestUser()
	user.EmailVerified = false
	user.EmailVerificationToken = "pending"
	expiry := time.Now().Add(time.Hour)
	user.EmailVerificationExpiry = &expiry

	users := &MockUserStore{
		GetByUsernameFunc: func(ctx context.Context, username string) (*models.User, error) {
			return user, nil
		},
	}
	queue := &RecordingQueue{}
	svc := newTestLoginService(users, &MockSessionStore{}, queue)

	_, err := svc.Login(context.Background(), "nguyenvana", "Secret123", "10.0.0.1", "")

	assert.Equal(t, models.CodeEmailNotVerified, models.CodeOf(err))
	assert.Empty(t, queue.Names())
}

func TestLoginService_Login_UnverifiedEmailClearsFailureStreak(t *testing.T) {
	user := newTestUser()
	user.EmailVerified = false
	user.EmailVerificationToken = "pending"
	expiry := time.Now().Add(time.Hour)
	user.EmailVerificationExpiry = &expiry
	user.FailedLoginAttempts = 3

	var saved *models.User
	users := &MockUserStore{
		GetByUsernameFunc: func(ctx context.Context, username string) (*models.User, error) {
			return user, nil
		},
		UpdateSecurityStateFunc: func(ctx context.Context, u *models.User) error {
			saved = u
			return nil
		},
	}
	svc := newTestLoginService(users, &MockSessionStore{}, &RecordingQueue{})

	_, err := svc.Login(context.Background(), "nguyenvana", "Secret123", "10.0.0.1", "")

	// The attempt is still refused, but the correct password ends the
	// failure streak so stale counters cannot feed a later lockout.
	assert.Equal(t, models.CodeEmailNotVerified, models.CodeOf(err))
	require.NotNil(t, saved)
	assert.Equal(t, 0, saved.FailedLoginAttempts)
	assert.False(t, saved.IsAccountLocked)
}

func TestLoginService_Login_NoEmailSkipsVerificationGate(t *testing.T) {
	user := newTestUser()
	user.Email = ""
	user.EmailVerified = false

	users := &MockUserStore{
		GetByUsernameFunc: func(ctx context.Context, username string) (*models.User, error) {
			return user, nil
		},
	}
	svc := newTestLoginService(users, &MockSessionStore{}, &RecordingQueue{})

	identity, err := svc.Login(context.Background(), "nguyenvana", "Secret123", "10.0.0.1", "")

	require.NoError(t, err)
	assert.NotNil(t, identity)
}

func TestLoginService_Login_AdminTriggersLoginAlert(t *testing.T) {
	user := newTestUser()
	user.Role = "admin"

	users := &MockUserStore{
		GetByUsernameFunc: func(ctx context.Context, username string) (*models.User, error) {
			return user, nil
		},
	}
	queue := &RecordingQueue{}
	svc := newTestLoginService(users, &MockSessionStore{}, queue)

	_, err := svc.Login(context.Background(), "nguyenvana", "Secret123", "10.0.0.1", "")

	require.NoError(t, err)
	assert.Contains(t, queue.Names(), "admin_login_alert")
}

func TestLoginService_Login_StoreFailureIsInternal(t *testing.T) {
	users := &MockUserStore{
		GetByUsernameFunc: func(ctx context.Context, username string) (*models.User, error) {
			return nil, models.ErrInternalServer
		},
	}
	svc := newTestLoginService(users, &MockSessionStore{}, &RecordingQueue{})

	_, err := svc.Login(context.Background(), "nguyenvana", "Secret123", "10.0.0.1", "")

	assert.Equal(t, models.CodeInternal, models.CodeOf(err))
}

func TestLoginService_RecordSession(t *testing.T) {
	var created *models.UserSession
	sessions := &MockSessionStore{
		CreateFunc: func(ctx context.Context, session *models.UserSession) error {
			created = session
			return nil
		},
	}
	svc := newTestLoginService(&MockUserStore{}, sessions, &RecordingQueue{})

	err := svc.RecordSession(context.Background(), "user123", "jti-abc")

	require.NoError(t, err)
	require.NotNil(t, created)
	assert.Equal(t, "user123", created.UserID)
	assert.Equal(t, "jti-abc", created.SessionToken)
	assert.True(t, created.IsActive)
}
