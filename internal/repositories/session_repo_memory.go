package repositories

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/tidewatch/accesscore/internal/models"
)

// MemorySessionRepository is an in-process SessionRepository. A single
// mutex guards the session table; per-user operations are serialized so
// the concurrency ceiling cannot be raced past.
type MemorySessionRepository struct {
	mu       sync.Mutex
	sessions map[string]*models.Session
}

// NewMemorySessionRepository creates an empty in-process session repository.
func NewMemorySessionRepository() *MemorySessionRepository {
	return &MemorySessionRepository{
		sessions: make(map[string]*models.Session),
	}
}

func (r *MemorySessionRepository) Create(_ context.Context, session *models.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[session.SessionID]; exists {
		return models.ErrConflict
	}

	copied := *session
	r.sessions[session.SessionID] = &copied
	return nil
}

func (r *MemorySessionRepository) GetByID(_ context.Context, sessionID string) (*models.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[sessionID]
	if !ok {
		return nil, models.ErrNotFound
	}

	copied := *session
	return &copied, nil
}

func (r *MemorySessionRepository) GetActiveByUserID(_ context.Context, userID string) ([]*models.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var active []*models.Session
	for _, session := range r.sessions {
		if session.UserID == userID && session.IsActive {
			copied := *session
			active = append(active, &copied)
		}
	}

	sort.Slice(active, func(i, j int) bool {
		return active[i].CreatedAt.Before(active[j].CreatedAt)
	})

	return active, nil
}

func (r *MemorySessionRepository) CountActiveByUserID(_ context.Context, userID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0
	for _, session := range r.sessions {
		if session.UserID == userID && session.IsActive {
			count++
		}
	}
	return count, nil
}

func (r *MemorySessionRepository) Deactivate(_ context.Context, sessionID, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[sessionID]
	if !ok {
		return models.ErrNotFound
	}

	session.IsActive = false
	return nil
}

func (r *MemorySessionRepository) DeactivateAllForUser(_ context.Context, userID, _ string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var flipped int64
	for _, session := range r.sessions {
		if session.UserID == userID && session.IsActive {
			session.IsActive = false
			flipped++
		}
	}
	return flipped, nil
}

func (r *MemorySessionRepository) DeactivateExpired(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var flipped int64
	for _, session := range r.sessions {
		if session.IsActive && session.Expired(now) {
			session.IsActive = false
			flipped++
		}
	}
	return flipped, nil
}
