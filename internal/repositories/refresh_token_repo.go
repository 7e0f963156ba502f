package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/garago/auth-service/internal/database"
	"github.com/garago/auth-service/internal/models"
)

type RefreshTokenRepository struct {
	db *database.DB
}

func NewRefreshTokenRepository(db *database.DB) *RefreshTokenRepository {
	return &RefreshTokenRepository{db: db}
}

const refreshTokenColumns = `id, selector, token_hash, token_salt, user_id, expires, created,
		created_by_ip, user_agent, revoked, revoked_by_ip, replaced_by_token_hash`

func scanRefreshTokenRow(scanner rowScanner) (*models.RefreshToken, error) {
	var t models.RefreshToken
	var revokedByIP, replacedBy, userAgent *string

	err := scanner.Scan(
		&t.ID, &t.Selector, &t.TokenHash, &t.TokenSalt, &t.UserID, &t.Expires, &t.Created,
		&t.CreatedByIP, &userAgent, &t.Revoked, &revokedByIP, &replacedBy,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	if userAgent != nil {
		t.UserAgent = *userAgent
	}
	if revokedByIP != nil {
		t.RevokedByIP = *revokedByIP
	}
	if replacedBy != nil {
		t.ReplacedByTokenHash = *replacedBy
	}

	return &t, nil
}

func (r *RefreshTokenRepository) Create(ctx context.Context, token *models.RefreshToken) error {
	token.ID = uuid.New().String()

	query := `
		INSERT INTO refresh_tokens (id, selector, token_hash, token_salt, user_id, expires,
			created, created_by_ip, user_agent)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.db.Pool.Exec(ctx, query,
		token.ID, token.Selector, token.TokenHash, token.TokenSalt, token.UserID,
		token.Expires, token.Created, token.CreatedByIP, token.UserAgent,
	)
	if err != nil {
		return database.MapPostgresError(err)
	}

	return nil
}

func (r *RefreshTokenRepository) GetBySelector(ctx context.Context, selector string) (*models.RefreshToken, error) {
	query := fmt.Sprintf(`SELECT %s FROM refresh_tokens WHERE selector = $1`, refreshTokenColumns)
	return scanRefreshTokenRow(r.db.Pool.QueryRow(ctx, query, selector))
}

// RotateFamily stamps every still-valid token for the replacement's
// (userID, createdByIP) family as revoked, chained to the replacement's hash,
// and inserts the replacement row. Both writes run in one transaction so a
// failure between them cannot leave the family half-rotated.
func (r *RefreshTokenRepository) RotateFamily(ctx context.Context, token *models.RefreshToken, now time.Time) error {
	token.ID = uuid.New().String()

	revoke := `
		UPDATE refresh_tokens
		SET revoked = $1, revoked_by_ip = $2, replaced_by_token_hash = $3
		WHERE user_id = $4 AND created_by_ip = $5 AND revoked IS NULL AND expires > $1
	`
	insert := `
		INSERT INTO refresh_tokens (id, selector, token_hash, token_salt, user_id, expires,
			created, created_by_ip, user_agent)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	return r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, revoke,
			now, token.CreatedByIP, token.TokenHash, token.UserID, token.CreatedByIP,
		); err != nil {
			return database.MapPostgresError(err)
		}
		if _, err := tx.Exec(ctx, insert,
			token.ID, token.Selector, token.TokenHash, token.TokenSalt, token.UserID,
			token.Expires, token.Created, token.CreatedByIP, token.UserAgent,
		); err != nil {
			return database.MapPostgresError(err)
		}
		return nil
	})
}

// ListActiveByUserAndIP is the fallback path when the transactional rotate
// cannot run: callers load the rows and revoke them one by one.
func (r *RefreshTokenRepository) ListActiveByUserAndIP(ctx context.Context, userID, createdByIP string) ([]*models.RefreshToken, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM refresh_tokens
		WHERE user_id = $1 AND created_by_ip = $2 AND revoked IS NULL AND expires > $3
	`, refreshTokenColumns)

	rows, err := r.db.Pool.Query(ctx, query, userID, createdByIP, time.Now())
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return scanRefreshTokenRows(rows)
}

func scanRefreshTokenRows(rows pgx.Rows) ([]*models.RefreshToken, error) {
	defer rows.Close()

	tokens := make([]*models.RefreshToken, 0)
	for rows.Next() {
		token, err := scanRefreshTokenRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan refresh token: %w", err)
		}
		tokens = append(tokens, token)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return tokens, nil
}

// Revoke stamps a single token row. A row that is already revoked is left
// untouched so the first revocation's audit fields survive.
func (r *RefreshTokenRepository) Revoke(ctx context.Context, id, revokedByIP, replacedByHash string, now time.Time) error {
	var replacedBy *string
	if replacedByHash != "" {
		replacedBy = &replacedByHash
	}

	query := `
		UPDATE refresh_tokens
		SET revoked = $1, revoked_by_ip = $2, replaced_by_token_hash = $3
		WHERE id = $4 AND revoked IS NULL
	`

	_, err := r.db.Pool.Exec(ctx, query, now, revokedByIP, replacedBy, id)
	if err != nil {
		return database.MapPostgresError(err)
	}

	return nil
}

// RevokeAllByUser invalidates every active token for a user, across client
// IPs. Used when credentials change.
func (r *RefreshTokenRepository) RevokeAllByUser(ctx context.Context, userID, revokedByIP string, now time.Time) (int64, error) {
	query := `
		UPDATE refresh_tokens
		SET revoked = $1, revoked_by_ip = $2
		WHERE user_id = $3 AND revoked IS NULL AND expires > $1
	`

	result, err := r.db.Pool.Exec(ctx, query, now, revokedByIP, userID)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}

	return result.RowsAffected(), nil
}

// DeleteExpiredBefore purges rows whose expiry predates the cutoff. Recently
// expired rows are kept for audit; the cutoff decides how long.
func (r *RefreshTokenRepository) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM refresh_tokens WHERE expires < $1`

	result, err := r.db.Pool.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}

	return result.RowsAffected(), nil
}
