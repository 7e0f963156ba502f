package services

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/garago/auth-service/internal/models"
	"github.com/garago/auth-service/pkg/logger"
)

// MockUserStore implements UserStore for testing
type MockUserStore struct {
	GetByIDFunc                   func(ctx context.Context, id string) (*models.User, error)
	GetByUsernameFunc             func(ctx context.Context, username string) (*models.User, error)
	GetByEmailFunc                func(ctx context.Context, email string) (*models.User, error)
	UpdateSecurityStateFunc       func(ctx context.Context, user *models.User) error
	UpdateCredentialsFunc         func(ctx context.Context, id, passwordHash, passwordSalt string) error
	SetEmailVerificationTokenFunc func(ctx context.Context, id, token string, expiry time.Time) error
	MarkEmailVerifiedFunc         func(ctx context.Context, id string) error
	SetResetTokenFunc             func(ctx context.Context, id, token string, expiry time.Time) error
}

func (m *MockUserStore) GetByID(ctx context.Context, id string) (*models.User, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserStore) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	if m.GetByUsernameFunc != nil {
		return m.GetByUsernameFunc(ctx, username)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.GetByEmailFunc != nil {
		return m.GetByEmailFunc(ctx, email)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserStore) UpdateSecurityState(ctx context.Context, user *models.User) error {
	if m.UpdateSecurityStateFunc != nil {
		return m.UpdateSecurityStateFunc(ctx, user)
	}
	return nil
}

func (m *MockUserStore) UpdateCredentials(ctx context.Context, id, passwordHash, passwordSalt string) error {
	if m.UpdateCredentialsFunc != nil {
		return m.UpdateCredentialsFunc(ctx, id, passwordHash, passwordSalt)
	}
	return nil
}

func (m *MockUserStore) SetEmailVerificationToken(ctx context.Context, id, token string, expiry time.Time) error {
	if m.SetEmailVerificationTokenFunc != nil {
		return m.SetEmailVerificationTokenFunc(ctx, id, token, expiry)
	}
	return nil
}

func (m *MockUserStore) MarkEmailVerified(ctx context.Context, id string) error {
	if m.MarkEmailVerifiedFunc != nil {
		return m.MarkEmailVerifiedFunc(ctx, id)
	}
	return nil
}

func (m *MockUserStore) SetResetToken(ctx context.Context, id, token string, expiry time.Time) error {
	if m.SetResetTokenFunc != nil {
		return m.SetResetTokenFunc(ctx, id, token, expiry)
	}
	return nil
}

// MockSessionStore implements SessionStore for testing
type MockSessionStore struct {
	CreateFunc              func(ctx context.Context, session *models.UserSession) error
	ListActiveByUserFunc    func(ctx context.Context, userID string) ([]*models.UserSession, error)
	DeactivateAllByUserFunc func(ctx context.Context, userID string, logoutTime time.Time) (int64, error)
}

func (m *MockSessionStore) Create(ctx context.Context, session *models.UserSession) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, session)
	}
	return nil
}

func (m *MockSessionStore) ListActiveByUser(ctx context.Context, userID string) ([]*models.UserSession, error) {
	if m.ListActiveByUserFunc != nil {
		return m.ListActiveByUserFunc(ctx, userID)
	}
	return []*models.UserSession{}, nil
}

func (m *MockSessionStore) DeactivateAllByUser(ctx context.Context, userID string, logoutTime time.Time) (int64, error) {
	if m.DeactivateAllByUserFunc != nil {
		return m.DeactivateAllByUserFunc(ctx, userID, logoutTime)
	}
	return 0, nil
}

// MockRefreshTokenStore implements RefreshTokenStore for testing
type MockRefreshTokenStore struct {
	CreateFunc                func(ctx context.Context, token *models.RefreshToken) error
	GetBySelectorFunc         func(ctx context.Context, selector string) (*models.RefreshToken, error)
	RotateFamilyFunc          func(ctx context.Context, token *models.RefreshToken, now time.Time) error
	ListActiveByUserAndIPFunc func(ctx context.Context, userID, createdByIP string) ([]*models.RefreshToken, error)
	RevokeFunc                func(ctx context.Context, id, revokedByIP, replacedByHash string, now time.Time) error
	RevokeAllByUserFunc       func(ctx context.Context, userID, revokedByIP string, now time.Time) (int64, error)
	DeleteExpiredBeforeFunc   func(ctx context.Context, cutoff time.Time) (int64, error)
}

func (m *MockRefreshTokenStore) Create(ctx context.Context, token *models.RefreshToken) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, token)
	}
	return nil
}

func (m *MockRefreshTokenStore) GetBySelector(ctx context.Context, selector string) (*models.RefreshToken, error) {
	if m.GetBySelectorFunc != nil {
		return m.GetBySelectorFunc(ctx, selector)
	}
	return nil, models.ErrNotFound
}

func (m *MockRefreshTokenStore) RotateFamily(ctx context.Context, token *models.RefreshToken, now time.Time) error {
	if m.RotateFamilyFunc != nil {
		return m.RotateFamilyFunc(ctx, token, now)
	}
	return nil
}

func (m *MockRefreshTokenStore) ListActiveByUserAndIP(ctx context.Context, userID, createdByIP string) ([]*models.RefreshToken, error) {
	if m.ListActiveByUserAndIPFunc != nil {
		return m.ListActiveByUserAndIPFunc(ctx, userID, createdByIP)
	}
	return []*models.RefreshToken{}, nil
}

func (m *MockRefreshTokenStore) Revoke(ctx context.Context, id, revokedByIP, replacedByHash string, now time.Time) error {
	if m.RevokeFunc != nil {
		return m.RevokeFunc(ctx, id, revokedByIP, replacedByHash, now)
	}
	return nil
}

func (m *MockRefreshTokenStore) RevokeAllByUser(ctx context.Context, userID, revokedByIP string, now time.Time) (int64, error) {
	if m.RevokeAllByUserFunc != nil {
		return m.RevokeAllByUserFunc(ctx, userID, revokedByIP, now)
	}
	return 0, nil
}

func (m *MockRefreshTokenStore) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	if m.DeleteExpiredBeforeFunc != nil {
		return m.DeleteExpiredBeforeFunc(ctx, cutoff)
	}
	return 0, nil
}

// MockRevocationLedger implements RevocationLedger for testing
type MockRevocationLedger struct {
	InsertFunc        func(ctx context.Context, entry *models.RevokedToken) error
	ExistsFunc        func(ctx context.Context, token string) (bool, error)
	GetExpiryFunc     func(ctx context.Context, token string) (*time.Time, error)
	DeleteExpiredFunc func(ctx context.Context, now time.Time) ([]string, error)
}

func (m *MockRevocationLedger) Insert(ctx context.Context, entry *models.RevokedToken) error {
	if m.InsertFunc != nil {
		return m.InsertFunc(ctx, entry)
	}
	return nil
}

func (m *MockRevocationLedger) Exists(ctx context.Context, token string) (bool, error) {
	if m.ExistsFunc != nil {
		return m.ExistsFunc(ctx, token)
	}
	return false, nil
}

func (m *MockRevocationLedger) GetExpiry(ctx context.Context, token string) (*time.Time, error) {
	if m.GetExpiryFunc != nil {
		return m.GetExpiryFunc(ctx, token)
	}
	return nil, models.ErrNotFound
}

func (m *MockRevocationLedger) DeleteExpired(ctx context.Context, now time.Time) ([]string, error) {
	if m.DeleteExpiredFunc != nil {
		return m.DeleteExpiredFunc(ctx, now)
	}
	return []string{}, nil
}

// MockCache implements cache.Cache for testing
type MockCache struct {
	GetFunc    func(key string) (bool, bool)
	SetFunc    func(key string, value bool)
	DeleteFunc func(key string)
	PurgeFunc  func() int
}

func (m *MockCache) Get(key string) (bool, bool) {
	if m.GetFunc != nil {
		return m.GetFunc(key)
	}
	return false, false
}

func (m *MockCache) Set(key string, value bool) {
	if m.SetFunc != nil {
		m.SetFunc(key, value)
	}
}

func (m *MockCache) Delete(key string) {
	if m.DeleteFunc != nil {
		m.DeleteFunc(key)
	}
}

func (m *MockCache) Purge() int {
	if m.PurgeFunc != nil {
		return m.PurgeFunc()
	}
	return 0
}

// MockNotificationSender implements NotificationSender for testing
type MockNotificationSender struct {
	SendVerificationEmailFunc   func(ctx context.Context, email, token string, expiresAt time.Time) error
	SendPasswordResetEmailFunc  func(ctx context.Context, email, token string, expiresAt time.Time) error
	SendLockoutAlertFunc        func(ctx context.Context, email, username string, lockedUntil time.Time) error
	SendLoginAlertFunc          func(ctx context.Context, email, username, ipAddress string, at time.Time) error
}

func (m *MockNotificationSender) SendVerificationEmail(ctx context.Context, email, token string, expiresAt time.Time) error {
	if m.SendVerificationEmailFunc != nil {
		return m.SendVerificationEmailFunc(ctx, email, token, expiresAt)
	}
	return nil
}

func (m *MockNotificationSender) SendPasswordResetEmail(ctx context.Context, email, token string, expiresAt time.Time) error {
	if m.SendPasswordResetEmailFunc != nil {
		return m.SendPasswordResetEmailFunc(ctx, email, token, expiresAt)
	}
	return nil
}

func (m *MockNotificationSender) SendLockoutAlert(ctx context.Context, email, username string, lockedUntil time.Time) error {
	if m.SendLockoutAlertFunc != nil {
		return m.SendLockoutAlertFunc(ctx, email, username, lockedUntil)
	}
	return nil
}

func (m *MockNotificationSender) SendLoginAlert(ctx context.Context, email, username, ipAddress string, at time.Time) error {
	if m.SendLoginAlertFunc != nil {
		return m.SendLoginAlertFunc(ctx, email, username, ipAddress, at)
	}
	return nil
}

// RecordingQueue captures enqueued tasks without running them. Tests call
// RunAll to execute them synchronously.
type RecordingQueue struct {
	mu    sync.Mutex
	Tasks []Task
}

func (q *RecordingQueue) Enqueue(task Task) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.Tasks = append(q.Tasks, task)
	return true
}

func (q *RecordingQueue) Names() []string {
	q.mu.Lock()
	defer q.mu.Unlock()

	names := make([]string, 0, len(q.Tasks))
	for _, t := range q.Tasks {
		names = append(names, t.Name)
	}
	return names
}

func (q *RecordingQueue) RunAll(ctx context.Context) []error {
	q.mu.Lock()
	tasks := q.Tasks
	q.Tasks = nil
	q.mu.Unlock()

	errs := make([]error, 0)
	for _, t := range tasks {
		if err := t.Run(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

// MockTokenRevoker implements TokenRevoker for testing
type MockTokenRevoker struct {
	RevokeAllForUserFunc func(ctx context.Context, userID, ipAddress, reason string) (int64, error)
}

func (m *MockTokenRevoker) RevokeAllForUser(ctx context.Context, userID, ipAddress, reason string) (int64, error) {
	if m.RevokeAllForUserFunc != nil {
		return m.RevokeAllForUserFunc(ctx, userID, ipAddress, reason)
	}
	return 0, nil
}

// MockPasswordHasher implements auth.PasswordHasher for testing. The default
// behavior hashes by concatenation so tests stay fast and deterministic.
type MockPasswordHasher struct {
	GenerateSaltFunc func() (string, error)
	HashFunc         func(plaintext, salt string) (string, error)
	VerifyFunc       func(plaintext, salt, storedHash string) (bool, error)
}

func (m *MockPasswordHasher) GenerateSalt() (string, error) {
	if m.GenerateSaltFunc != nil {
		return m.GenerateSaltFunc()
	}
	return "salt", nil
}

func (m *MockPasswordHasher) Hash(plaintext, salt string) (string, error) {
	if m.HashFunc != nil {
		return m.HashFunc(plaintext, salt)
	}
	return "hash:" + salt + ":" + plaintext, nil
}

func (m *MockPasswordHasher) Verify(plaintext, salt, storedHash string) (bool, error) {
	if m.VerifyFunc != nil {
		return m.VerifyFunc(plaintext, salt, storedHash)
	}
	return storedHash == "hash:"+salt+":"+plaintext, nil
}

// MockExpiryDecoder implements auth.TokenExpiryDecoder for testing
type MockExpiryDecoder struct {
	DecodeExpiryFunc func(tokenString string) (*time.Time, error)
}

func (m *MockExpiryDecoder) DecodeExpiry(tokenString string) (*time.Time, error) {
	if m.DecodeExpiryFunc != nil {
		return m.DecodeExpiryFunc(tokenString)
	}
	return nil, models.ErrNotFound
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testAuditLogger() *logger.AuditLogger {
	return logger.NewAuditLogger(testLogger())
}
