package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garago/auth-service/internal/models"
	pkgauth "github.com/garago/auth-service/pkg/auth"
)

func newTestPasswordService(users *MockUserStore, revoker *MockTokenRevoker, queue *RecordingQueue) *PasswordService {
	if revoker == nil {
		revoker = &MockTokenRevoker{}
	}
	if queue == nil {
		queue = &RecordingQueue{}
	}
	return NewPasswordService(
		users,
		&MockPasswordHasher{},
		pkgauth.NewDefaultPolicy(),
		revoker,
		&MockNotificationSender{},
		queue,
		PasswordOptions{
			ResetTokenExpiry:        time.Hour,
			VerificationTokenExpiry: 24 * time.Hour,
		},
		testLogger(),
		testAuditLogger(),
	)
}

func TestPasswordService_UpdatePassword_Success(t *testing.T) {
	user := newTestUser()
	var newHash, newSalt string
	users := &MockUserStore{
		GetByIDFunc: func(ctx context.Context, id string) (*models.User, error) {
			return user, nil
		},
		UpdateCredentialsFunc: func(ctx context.Context, id, passwordHash, passwordSalt string) error {
			newHash, newSalt = passwordHash, passwordSalt
			return nil
		},
	}
	var revokedUser string
	revoker := &MockTokenRevoker{
		RevokeAllForUserFunc: func(ctx context.Context, userID, ipAddress, reason string) (int64, error) {
			revokedUser = userID
			assert.Equal(t, "password_change", reason)
			return 2, nil
		},
	}
	svc := newTestPasswordService(users, revoker, nil)

	err := svc.UpdatePassword(context.Background(), "user123", "Secret123", "NewSecret456", "10.0.0.1")

	require.NoError(t, err)
	assert.NotEmpty(t, newHash)
	assert.NotEmpty(t, newSalt)
	assert.Equal(t, "user123", revokedUser)
}

func TestPasswordService_UpdatePassword_WrongCurrentPassword(t *testing.T) {
	user := newTestUser()
	users := &MockUserStore{
		GetByIDFunc: func(ctx context.Context, id string) (*models.User, error) {
			return user, nil
		},
		UpdateCredentialsFunc: func(ctx context.Context, id, passwordHash, passwordSalt string) error {
			t.Fatal("a rejected change must not write credentials")
			return nil
		},
	}
	svc := newTestPasswordService(users, nil, nil)

	err := svc.UpdatePassword(context.Background(), "user123", "wrong", "NewSecret456", "")

	assert.Equal(t, models.CodeInvalidCredentials, models.CodeOf(err))
}

func TestPasswordService_UpdatePassword_WeakNewPassword(t *testing.T) {
	user := newTestUser()
	users := &MockUserStore{
		GetByIDFunc: func(ctx context.Context, id string) (*models.User, error) {
			return user, nil
		},
	}
	svc := newTestPasswordService(users, nil, nil)

	err := svc.UpdatePassword(context.Background(), "user123", "Secret123", "short", "")

	assert.Equal(t, models.CodeValidation, models.CodeOf(err))
}

func TestPasswordService_UpdatePassword_UnknownUser(t *testing.T) {
	svc := newTestPasswordService(&MockUserStore{}, nil, nil)

	err := svc.UpdatePassword(context.Background(), "ghost", "Secret123", "NewSecret456", "")

	assert.Equal(t, models.CodeInvalidCredentials, models.CodeOf(err))
}

func TestPasswordService_ForgotPassword_AlwaysTrue(t *testing.T) {
	user := newTestUser()
	var storedToken string
	users := &MockUserStore{
		GetByEmailFunc: func(ctx context.Context, email string) (*models.User, error) {
			if email == user.Email {
				return user, nil
			}
			return nil, models.ErrNotFound
		},
		SetResetTokenFunc: func(ctx context.Context, id, token string, expiry time.Time) error {
			storedToken = token
			return nil
		},
	}
	queue := &RecordingQueue{}
	svc := newTestPasswordService(users, nil, queue)

	// Known and unknown addresses are indistinguishable by return value.
	assert.True(t, svc.ForgotPassword(context.Background(), "a@example.com"))
	assert.True(t, svc.ForgotPassword(context.Background(), "nobody@example.com"))
	assert.True(t, svc.ForgotPassword(context.Background(), ""))

	assert.NotEmpty(t, storedToken)
	assert.Equal(t, []string{"password_reset_email"}, queue.Names())
}

func TestPasswordService_ForgotPassword_InactiveAccountGetsNoToken(t *testing.T) {
	user := newTestUser()
	user.IsActive = false
	users := &MockUserStore{
		GetByEmailFunc: func(ctx context.Context, email string) (*models.User, error) {
			return user, nil
		},
		SetResetTokenFunc: func(ctx context.Context, id, token string, expiry time.Time) error {
			t.Fatal("a disabled account must not receive a reset token")
			return nil
		},
	}
	queue := &RecordingQueue{}
	svc := newTestPasswordService(users, nil, queue)

	assert.True(t, svc.ForgotPassword(context.Background(), "a@example.com"))
	assert.Empty(t, queue.Names())
}

func TestPasswordService_ResetPassword_Success(t *testing.T) {
	user := newTestUser()
	user.ResetToken = "reset-token"
	expiry := time.Now().Add(30 * time.Minute)
	user.ResetTokenExpiry = &expiry

	var updated bool
	users := &MockUserStore{
		GetByEmailFunc: func(ctx context.Context, email string) (*models.User, error) {
			return user, nil
		},
		UpdateCredentialsFunc: func(ctx context.Context, id, passwordHash, passwordSalt string) error {
			updated = true
			return nil
		},
	}
	var revoked bool
	revoker := &MockTokenRevoker{
		RevokeAllForUserFunc: func(ctx context.Context, userID, ipAddress, reason string) (int64, error) {
			revoked = true
			return 1, nil
		},
	}
	svc := newTestPasswordService(users, revoker, nil)

	ok := svc.ResetPassword(context.Background(), "a@example.com", "reset-token", "NewSecret456")

	assert.True(t, ok)
	assert.True(t, updated)
	assert.True(t, revoked)
}

func TestPasswordService_ResetPassword_Rejections(t *testing.T) {
	expired := time.Now().Add(-time.Minute)
	valid := time.Now().Add(30 * time.Minute)

	tests := []struct {
		name        string
		user        *models.User
		email       string
		token       string
		newPassword string
	}{
		{
			name:        "unknown email",
			user:        nil,
			email:       "nobody@example.com",
			token:       "reset-token",
			newPassword: "NewSecret456",
		},
		{
			name: "wrong token",
			user: func() *models.User {
				u := newTestUser()
				u.ResetToken = "reset-token"
				u.ResetTokenExpiry = &valid
				return u
			}(),
			email:       "a@example.com",
			token:       "forged",
			newPassword: "NewSecret456",
		},
		{
			name: "expired token",
			user: func() *models.User {
				u := newTestUser()
				u.ResetToken = "reset-token"
				u.ResetTokenExpiry = &expired
				return u
			}(),
			email:       "a@example.com",
			token:       "reset-token",
			newPassword: "NewSecret456",
		},
		{
			name: "no outstanding token",
			user: newTestUser(),

			email:       "a@example.com",
			token:       "reset-token",
			newPassword: "NewSecret456",
		},
		{
			name: "weak new password",
			user: func() *models.User {
				u := newTestUser()
				u.ResetToken = "reset-token"
				u.ResetTokenExpiry = &valid
				return u
			}(),
			email:       "a@example.com",
			token:       "reset-token",
			newPassword: "short",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			users := &MockUserStore{
				GetByEmailFunc: func(ctx context.Context, email string) (*models.User, error) {
					if tt.user != nil && email == tt.user.Email {
						return tt.user, nil
					}
					return nil, models.ErrNotFound
				},
				UpdateCredentialsFunc: func(ctx context.Context, id, passwordHash, passwordSalt string) error {
					t.Fatal("a rejected reset must not write credentials")
					return nil
				},
			}
			svc := newTestPasswordService(users, nil, nil)

			assert.False(t, svc.ResetPassword(context.Background(), tt.email, tt.token, tt.newPassword))
		})
	}
}

func TestPasswordService_VerifyEmail_Success(t *testing.T) {
	user := newTestUser()
	user.EmailVerified = false
	user.EmailVerificationToken = "verify-token"
	expiry := time.Now().Add(time.Hour)
	user.EmailVerificationExpiry = &expiry

	var marked bool
	users := &MockUserStore{
		GetByEmailFunc: func(ctx context.Context, email string) (*models.User, error) {
			return user, nil
		},
		MarkEmailVerifiedFunc: func(ctx context.Context, id string) error {
			marked = true
			return nil
		},
	}
	svc := newTestPasswordService(users, nil, nil)

	assert.True(t, svc.VerifyEmail(context.Background(), "a@example.com", "verify-token"))
	assert.True(t, marked)
}

func TestPasswordService_VerifyEmail_AlreadyVerified(t *testing.T) {
	user := newTestUser()

	users := &MockUserStore{
		GetByEmailFunc: func(ctx context.Context, email string) (*models.User, error) {
			return user, nil
		},
		MarkEmailVerifiedFunc: func(ctx context.Context, id string) error {
			t.Fatal("an already verified account must not be written")
			return nil
		},
	}
	svc := newTestPasswordService(users, nil, nil)

	assert.True(t, svc.VerifyEmail(context.Background(), "a@example.com", "any"))
}

func TestPasswordService_VerifyEmail_WrongOrExpiredToken(t *testing.T) {
	user := newTestUser()
	user.EmailVerified = false
	user.EmailVerificationToken = "verify-token"
	expired := time.Now().Add(-time.Minute)
	user.EmailVerificationExpiry = &expired

	users := &MockUserStore{
		GetByEmailFunc: func(ctx context.Context, email string) (*models.User, error) {
			return user, nil
		},
	}
	svc := newTestPasswordService(users, nil, nil)

	assert.False(t, svc.VerifyEmail(context.Background(), "a@example.com", "verify-token"))

	fresh := time.Now().Add(time.Hour)
	user.EmailVerificationExpiry = &fresh
	assert.False(t, svc.VerifyEmail(context.Background(), "a@example.com", "forged"))
}
