package repositories

import (
	"context"
	"time"

	"github.com/tidewatch/accesscore/internal/models"
)

// SessionRepository defines session persistence operations.
//
// Sessions are never physically deleted here; every terminal path flips
// IsActive to false and leaves the row for external archival. Deactivation
// is the only mutation, and DeactivateAllForUser is the only bulk one.
type SessionRepository interface {
	Create(ctx context.Context, session *models.Session) error
	GetByID(ctx context.Context, sessionID string) (*models.Session, error)

	// GetActiveByUserID returns active sessions ordered oldest first by
	// CreatedAt, the eviction order the session manager relies on.
	GetActiveByUserID(ctx context.Context, userID string) ([]*models.Session, error)
	CountActiveByUserID(ctx context.Context, userID string) (int, error)

	Deactivate(ctx context.Context, sessionID, reason string) error
	DeactivateAllForUser(ctx context.Context, userID, reason string) (int64, error)

	// DeactivateExpired flips sessions whose ExpiresAt has passed. Called
	// by the background sweeper; validation does not depend on it.
	DeactivateExpired(ctx context.Context, now time.Time) (int64, error)
}
