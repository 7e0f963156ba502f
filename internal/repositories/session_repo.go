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

type SessionRepository struct {
	pool *pgxpool.Pool
}

func NewSessionRepository(db *database.DB) *SessionRepository {
	return &SessionRepository{pool: db.Pool}
}

func (r *SessionRepository) Create(ctx context.Context, session *models.UserSession) error {
	session.ID = uuid.New().String()

	query := `
		INSERT INTO user_sessions (id, user_id, session_token, is_active, login_time)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.pool.Exec(ctx, query,
		session.ID, session.UserID, session.SessionToken, session.IsActive, session.LoginTime,
	)
	if err != nil {
		return database.MapPostgresError(err)
	}

	return nil
}

func (r *SessionRepository) ListActiveByUser(ctx context.Context, userID string) ([]*models.UserSession, error) {
	query := `
		SELECT id, user_id, session_token, is_active, login_time, logout_time
		FROM user_sessions
		WHERE user_id = $1 AND is_active = TRUE
	`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	defer rows.Close()

	sessions := make([]*models.UserSession, 0)
	for rows.Next() {
		var s models.UserSession
		if err := rows.Scan(&s.ID, &s.UserID, &s.SessionToken, &s.IsActive, &s.LoginTime, &s.LogoutTime); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, &s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return sessions, nil
}

// DeactivateAllByUser stamps every active session with a logout time and
// returns how many were closed.
func (r *SessionRepository) DeactivateAllByUser(ctx context.Context, userID string, logoutTime time.Time) (int64, error) {
	query := `
		UPDATE user_sessions
		SET is_active = FALSE, logout_time = $1
		WHERE user_id = $2 AND is_active = TRUE
	`

	result, err := r.pool.Exec(ctx, query, logoutTime, userID)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}

	return result.RowsAffected(), nil
}
