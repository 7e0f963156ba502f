package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/garago/auth-service/internal/database"
	"github.com/garago/auth-service/internal/models"
)

type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{pool: db.Pool}
}

// rowScanner covers both pgx.Row and pgx.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

const userColumns = `id, username, email, password_hash, password_salt, is_active, role,
		failed_login_attempts, is_account_locked, account_locked_until, lockout_reason,
		email_verified, email_verification_token, email_verification_expiry,
		reset_token, reset_token_expiry, last_login_date, created_at, updated_at`

// scanUserRow handles nullable fields and populates a User model
func scanUserRow(scanner rowScanner) (*models.User, error) {
	var user models.User
	var email, lockoutReason, verificationToken, resetToken *string
	var lockedUntil, verificationExpiry, resetExpiry, lastLogin *time.Time

	err := scanner.Scan(
		&user.ID, &user.Username, &email, &user.PasswordHash, &user.PasswordSalt,
		&user.IsActive, &user.Role,
		&user.FailedLoginAttempts, &user.IsAccountLocked, &lockedUntil, &lockoutReason,
		&user.EmailVerified, &verificationToken, &verificationExpiry,
		&resetToken, &resetExpiry, &lastLogin,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	if email != nil {
		user.Email = *email
	}
	if lockoutReason != nil {
		user.LockoutReason = *lockoutReason
	}
	if verificationToken != nil {
		user.EmailVerificationToken = *verificationToken
	}
	if resetToken != nil {
		user.ResetToken = *resetToken
	}
	user.AccountLockedUntil = lockedUntil
	user.EmailVerificationExpiry = verificationExpiry
	user.ResetTokenExpiry = resetExpiry
	user.LastLoginDate = lastLogin

	return &user, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE id = $1`, userColumns)
	return scanUserRow(r.pool.QueryRow(ctx, query, id))
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE username = $1`, userColumns)
	return scanUserRow(r.pool.QueryRow(ctx, query, username))
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE email = $1`, userColumns)
	return scanUserRow(r.pool.QueryRow(ctx, query, email))
}

func (r *UserRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	user.ID = uuid.New().String()

	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	if user.Role == "" {
		user.Role = "user"
	}

	var email *string
	if user.Email != "" {
		email = &user.Email
	}

	query := fmt.Sprintf(`
		INSERT INTO users (id, username, email, password_hash, password_salt, is_active, role,
			email_verified, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING %s
	`, userColumns)

	return scanUserRow(r.pool.QueryRow(ctx, query,
		user.ID, user.Username, email, user.PasswordHash, user.PasswordSalt,
		user.IsActive, user.Role, user.EmailVerified, user.CreatedAt, user.UpdatedAt,
	))
}

// UpdateSecurityState persists every lockout-machine field plus the last-login
// timestamp in one write, so a lockout transition is never half-applied.
func (r *UserRepository) UpdateSecurityState(ctx context.Context, user *models.User) error {
	var lockoutReason *string
	if user.LockoutReason != "" {
		lockoutReason = &user.LockoutReason
	}

	query := `
		UPDATE users
		SET failed_login_attempts = $1, is_account_locked = $2, account_locked_until = $3,
			lockout_reason = $4, last_login_date = $5, updated_at = $6
		WHERE id = $7
	`

	result, err := r.pool.Exec(ctx, query,
		user.FailedLoginAttempts, user.IsAccountLocked, user.AccountLockedUntil,
		lockoutReason, user.LastLoginDate, time.Now(), user.ID,
	)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}

	return nil
}

// UpdateCredentials replaces the password hash and salt and clears any
// outstanding reset token in the same write.
func (r *UserRepository) UpdateCredentials(ctx context.Context, id, passwordHash, passwordSalt string) error {
	query := `
		UPDATE users
		SET password_hash = $1, password_salt = $2,
			reset_token = NULL, reset_token_expiry = NULL, updated_at = $3
		WHERE id = $4
	`

	result, err := r.pool.Exec(ctx, query, passwordHash, passwordSalt, time.Now(), id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}

	return nil
}

func (r *UserRepository) SetEmailVerificationToken(ctx context.Context, id, token string, expiry time.Time) error {
	query := `
		UPDATE users
		SET email_verification_token = $1, email_verification_expiry = $2, updated_at = $3
		WHERE id = $4
	`

	result, err := r.pool.Exec(ctx, query, token, expiry, time.Now(), id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}

	return nil
}

// MarkEmailVerified flips the verified flag and drops the pending token, so
// a record is never both verified and holding a verification token.
func (r *UserRepository) MarkEmailVerified(ctx context.Context, id string) error {
	query := `
		UPDATE users
		SET email_verified = TRUE, email_verification_token = NULL,
			email_verification_expiry = NULL, updated_at = $1
		WHERE id = $2
	`

	result, err := r.pool.Exec(ctx, query, time.Now(), id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}

	return nil
}

func (r *UserRepository) SetResetToken(ctx context.Context, id, token string, expiry time.Time) error {
	query := `
		UPDATE users
		SET reset_token = $1, reset_token_expiry = $2, updated_at = $3
		WHERE id = $4
	`

	result, err := r.pool.Exec(ctx, query, token, expiry, time.Now(), id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}

	return nil
}
