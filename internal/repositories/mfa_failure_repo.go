package repositories

import (
	"context"
	"time"

	"github.com/tidewatch/accesscore/internal/models"
)

// MFAFailureRepository persists failed MFA verification attempts.
// The throttle counts failures over a trailing window; records older than
// the window are pruned by the background sweeper.
type MFAFailureRepository interface {
	Record(ctx context.Context, record *models.MFAFailureRecord) error
	CountSince(ctx context.Context, userID string, since time.Time) (int, error)

	// Reset removes all failure records for a user. Called on successful
	// verification, immediately restoring the full attempt budget.
	Reset(ctx context.Context, userID string) error

	DeleteOlderThan(ctx context.Context, threshold time.Time) (int64, error)
}
