package handlers

import (
	"context"
	"io"
	"log/slog"

	"github.com/garago/auth-service/internal/models"
)

// MockLoginService implements LoginServiceInterface for testing
type MockLoginService struct {
	LoginFunc         func(ctx context.Context, username, password, ipAddress, userAgent string) (*models.Identity, error)
	RecordSessionFunc func(ctx context.Context, userID, sessionToken string) error
}

func (m *MockLoginService) Login(ctx context.Context, username, password, ipAddress, userAgent string) (*models.Identity, error) {
	if m.LoginFunc != nil {
		return m.LoginFunc(ctx, username, password, ipAddress, userAgent)
	}
	return nil, models.NewInvalidCredentials(-1)
}

func (m *MockLoginService) RecordSession(ctx context.Context, userID, sessionToken string) error {
	if m.RecordSessionFunc != nil {
		return m.RecordSessionFunc(ctx, userID, sessionToken)
	}
	return nil
}

// MockRefreshService implements RefreshServiceInterface for testing
type MockRefreshService struct {
	RotateFunc           func(ctx context.Context, userID, ipAddress, userAgent string) (string, error)
	ValidateFunc         func(ctx context.Context, tokenString, ipAddress, userAgent string) (*models.Identity, error)
	RevokeFunc           func(ctx context.Context, tokenString, ipAddress string) error
	RevokeAllForUserFunc func(ctx context.Context, userID, ipAddress, reason string) (int64, error)
}

func (m *MockRefreshService) Rotate(ctx context.Context, userID, ipAddress, userAgent string) (string, error) {
	if m.RotateFunc != nil {
		return m.RotateFunc(ctx, userID, ipAddress, userAgent)
	}
	return "selector:validator", nil
}

func (m *MockRefreshService) Validate(ctx context.Context, tokenString, ipAddress, userAgent string) (*models.Identity, error) {
	if m.ValidateFunc != nil {
		return m.ValidateFunc(ctx, tokenString, ipAddress, userAgent)
	}
	return nil, nil
}

func (m *MockRefreshService) Revoke(ctx context.Context, tokenString, ipAddress string) error {
	if m.RevokeFunc != nil {
		return m.RevokeFunc(ctx, tokenString, ipAddress)
	}
	return nil
}

func (m *MockRefreshService) RevokeAllForUser(ctx context.Context, userID, ipAddress, reason string) (int64, error) {
	if m.RevokeAllForUserFunc != nil {
		return m.RevokeAllForUserFunc(ctx, userID, ipAddress, reason)
	}
	return 0, nil
}

// MockBlacklistService implements BlacklistServiceInterface for testing
type MockBlacklistService struct {
	RevokeTokenFunc         func(ctx context.Context, token, userID, reason, ipAddress, userAgent string) (bool, error)
	RevokeAllUserTokensFunc func(ctx context.Context, userID, reason string) (int, error)
}

func (m *MockBlacklistService) RevokeToken(ctx context.Context, token, userID, reason, ipAddress, userAgent string) (bool, error) {
	if m.RevokeTokenFunc != nil {
		return m.RevokeTokenFunc(ctx, token, userID, reason, ipAddress, userAgent)
	}
	return true, nil
}

func (m *MockBlacklistService) RevokeAllUserTokens(ctx context.Context, userID, reason string) (int, error) {
	if m.RevokeAllUserTokensFunc != nil {
		return m.RevokeAllUserTokensFunc(ctx, userID, reason)
	}
	return 0, nil
}

// MockPasswordService implements PasswordServiceInterface for testing
type MockPasswordService struct {
	UpdatePasswordFunc func(ctx context.Context, userID, currentPassword, newPassword, ipAddress string) error
	ForgotPasswordFunc func(ctx context.Context, email string) bool
	ResetPasswordFunc  func(ctx context.Context, email, token, newPassword string) bool
	VerifyEmailFunc    func(ctx context.Context, email, token string) bool
}

func (m *MockPasswordService) UpdatePassword(ctx context.Context, userID, currentPassword, newPassword, ipAddress string) error {
	if m.UpdatePasswordFunc != nil {
		return m.UpdatePasswordFunc(ctx, userID, currentPassword, newPassword, ipAddress)
	}
	return nil
}

func (m *MockPasswordService) ForgotPassword(ctx context.Context, email string) bool {
	if m.ForgotPasswordFunc != nil {
		return m.ForgotPasswordFunc(ctx, email)
	}
	return true
}

func (m *MockPasswordService) ResetPassword(ctx context.Context, email, token, newPassword string) bool {
	if m.ResetPasswordFunc != nil {
		return m.ResetPasswordFunc(ctx, email, token, newPassword)
	}
	return false
}

func (m *MockPasswordService) VerifyEmail(ctx context.Context, email, token string) bool {
	if m.VerifyEmailFunc != nil {
		return m.VerifyEmailFunc(ctx, email, token)
	}
	return false
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
