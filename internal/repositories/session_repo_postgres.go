package repositories

import (
	"context"
	"time"

	"github.com/tidewatch/accesscore/internal/database"
	"github.com/tidewatch/accesscore/internal/models"
)

// PostgresSessionRepository persists sessions in the sessions table.
type PostgresSessionRepository struct {
	db *database.DB
}

// NewPostgresSessionRepository creates a postgres-backed session repository.
func NewPostgresSessionRepository(db *database.DB) *PostgresSessionRepository {
	return &PostgresSessionRepository{db: db}
}

func (r *PostgresSessionRepository) Create(ctx context.Context, session *models.Session) error {
	query := `
		INSERT INTO sessions (session_id, user_id, ip_address, user_agent, device_fingerprint, created_at, expires_at, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.db.Pool.Exec(ctx, query,
		session.SessionID,
		session.UserID,
		session.IPAddress,
		session.UserAgent,
		session.DeviceFingerprint,
		session.CreatedAt,
		session.ExpiresAt,
		session.IsActive,
	)

	return database.MapPostgresError(err)
}

func (r *PostgresSessionRepository) GetByID(ctx context.Context, sessionID string) (*models.Session, error) {
	query := `
		SELECT session_id, user_id, ip_address, user_agent, device_fingerprint, created_at, expires_at, is_active
		FROM sessions
		WHERE session_id = $1
	`

	var session models.Session
	err := r.db.Pool.QueryRow(ctx, query, sessionID).Scan(
		&session.SessionID,
		&session.UserID,
		&session.IPAddress,
		&session.UserAgent,
		&session.DeviceFingerprint,
		&session.CreatedAt,
		&session.ExpiresAt,
		&session.IsActive,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &session, nil
}

func (r *PostgresSessionRepository) GetActiveByUserID(ctx context.Context, userID string) ([]*models.Session, error) {
	query := `
		SELECT session_id, user_id, ip_address, user_agent, device_fingerprint, created_at, expires_at, is_active
		FROM sessions
		WHERE user_id = $1 AND is_active = true
		ORDER BY created_at ASC
	`

	rows, err := r.db.Pool.Query(ctx, query, userID)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	defer rows.Close()

	var sessions []*models.Session
	for rows.Next() {
		var session models.Session
		if err := rows.Scan(
			&session.SessionID,
			&session.UserID,
			&session.IPAddress,
			&session.UserAgent,
			&session.DeviceFingerprint,
			&session.CreatedAt,
			&session.ExpiresAt,
			&session.IsActive,
		); err != nil {
			return nil, database.MapPostgresError(err)
		}
		sessions = append(sessions, &session)
	}

	return sessions, rows.Err()
}

func (r *PostgresSessionRepository) CountActiveByUserID(ctx context.Context, userID string) (int, error) {
	query := `
		SELECT COUNT(*) FROM sessions
		WHERE user_id = $1 AND is_active = true
	`

	var count int
	err := r.db.Pool.QueryRow(ctx, query, userID).Scan(&count)
	return count, database.MapPostgresError(err)
}

func (r *PostgresSessionRepository) Deactivate(ctx context.Context, sessionID, reason string) error {
	query := `
		UPDATE sessions
		SET is_active = false, deactivation_reason = $2
		WHERE session_id = $1
	`

	tag, err := r.db.Pool.Exec(ctx, query, sessionID, reason)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (r *PostgresSessionRepository) DeactivateAllForUser(ctx context.Context, userID, reason string) (int64, error) {
	query := `
		UPDATE sessions
		SET is_active = false, deactivation_reason = $2
		WHERE user_id = $1 AND is_active = true
	`

	tag, err := r.db.Pool.Exec(ctx, query, userID, reason)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return tag.RowsAffected(), nil
}

func (r *PostgresSessionRepository) DeactivateExpired(ctx context.Context, now time.Time) (int64, error) {
	query := `
		UPDATE sessions
		SET is_active = false, deactivation_reason = 'expired'
		WHERE is_active = true AND expires_at <= $1
	`

	tag, err := r.db.Pool.Exec(ctx, query, now)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return tag.RowsAffected(), nil
}
