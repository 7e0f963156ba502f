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

type RevokedTokenRepository struct {
	pool *pgxpool.Pool
}

func NewRevokedTokenRepository(db *database.DB) *RevokedTokenRepository {
	return &RevokedTokenRepository{pool: db.Pool}
}

func (r *RevokedTokenRepository) Insert(ctx context.Context, entry *models.RevokedToken) error {
	entry.ID = uuid.New().String()

	var ip, userAgent *string
	if entry.IPAddress != "" {
		ip = &entry.IPAddress
	}
	if entry.UserAgent != "" {
		userAgent = &entry.UserAgent
	}

	query := `
		INSERT INTO revoked_tokens (id, token, user_id, revoke_reason, revoked_at, expires_at, ip_address, user_agent)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.pool.Exec(ctx, query,
		entry.ID, entry.Token, entry.UserID, entry.RevokeReason,
		entry.RevokedAt, entry.ExpiresAt, ip, userAgent,
	)
	if err != nil {
		return database.MapPostgresError(err)
	}

	return nil
}

// Exists reports whether the ledger holds a row for this token. Expired rows
// still count until cleanup removes them; the token is dead either way.
func (r *RevokedTokenRepository) Exists(ctx context.Context, token string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM revoked_tokens WHERE token = $1)`

	var exists bool
	if err := r.pool.QueryRow(ctx, query, token).Scan(&exists); err != nil {
		return false, database.MapPostgresError(err)
	}

	return exists, nil
}

func (r *RevokedTokenRepository) GetExpiry(ctx context.Context, token string) (*time.Time, error) {
	query := `SELECT expires_at FROM revoked_tokens WHERE token = $1`

	var expiresAt time.Time
	if err := r.pool.QueryRow(ctx, query, token).Scan(&expiresAt); err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &expiresAt, nil
}

// DeleteExpired removes ledger rows whose own expiry has passed and returns
// the deleted token strings so callers can evict cache entries.
func (r *RevokedTokenRepository) DeleteExpired(ctx context.Context, now time.Time) ([]string, error) {
	query := `DELETE FROM revoked_tokens WHERE expires_at < $1 RETURNING token`

	rows, err := r.pool.Query(ctx, query, now)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	defer rows.Close()

	tokens := make([]string, 0)
	for rows.Next() {
		var token string
		if err := rows.Scan(&token); err != nil {
			return nil, fmt.Errorf("failed to scan deleted token: %w", err)
		}
		tokens = append(tokens, token)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return tokens, nil
}
