package repositories

import (
	"context"
	"time"

	"github.com/tidewatch/accesscore/internal/database"
	"github.com/tidewatch/accesscore/internal/models"
)

// PostgresMFAFailureRepository persists MFA failures in the
// mfa_failed_attempts table.
type PostgresMFAFailureRepository struct {
	db *database.DB
}

// NewPostgresMFAFailureRepository creates a postgres-backed failure repository.
func NewPostgresMFAFailureRepository(db *database.DB) *PostgresMFAFailureRepository {
	return &PostgresMFAFailureRepository{db: db}
}

func (r *PostgresMFAFailureRepository) Record(ctx context.Context, record *models.MFAFailureRecord) error {
	query := `
		INSERT INTO mfa_failed_attempts (user_id, ip_address, attempted_at)
		VALUES ($1, $2, COALESCE($3, NOW()))
		RETURNING id, attempted_at
	`

	var at *time.Time
	if !record.Timestamp.IsZero() {
		at = &record.Timestamp
	}

	err := r.db.Pool.QueryRow(ctx, query,
		record.UserID,
		record.IPAddress,
		at,
	).Scan(&record.ID, &record.Timestamp)

	return database.MapPostgresError(err)
}

func (r *PostgresMFAFailureRepository) CountSince(ctx context.Context, userID string, since time.Time) (int, error) {
	query := `
		SELECT COUNT(*) FROM mfa_failed_attempts
		WHERE user_id = $1 AND attempted_at >= $2
	`

	var count int
	err := r.db.Pool.QueryRow(ctx, query, userID, since).Scan(&count)
	return count, database.MapPostgresError(err)
}

func (r *PostgresMFAFailureRepository) Reset(ctx context.Context, userID string) error {
	query := `DELETE FROM mfa_failed_attempts WHERE user_id = $1`

	_, err := r.db.Pool.Exec(ctx, query, userID)
	return database.MapPostgresError(err)
}

func (r *PostgresMFAFailureRepository) DeleteOlderThan(ctx context.Context, threshold time.Time) (int64, error) {
	query := `DELETE FROM mfa_failed_attempts WHERE attempted_at < $1`

	tag, err := r.db.Pool.Exec(ctx, query, threshold)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return tag.RowsAffected(), nil
}
