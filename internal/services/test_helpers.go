package services

import (
	"context"
	"time"

	"github.com/tidewatch/accesscore/internal/models"
)

// MockRateLimitStore implements store.RateLimitStore for testing
type MockRateLimitStore struct {
	GetFunc    func(ctx context.Context, key string) (*models.RateLimitEntry, error)
	IncrFunc   func(ctx context.Context, key string, window time.Duration) (*models.RateLimitEntry, error)
	SetFunc    func(ctx context.Context, key string, entry *models.RateLimitEntry, ttl time.Duration) error
	DeleteFunc func(ctx context.Context, key string) (bool, error)
	ClearFunc  func(ctx context.Context) error
}

func (m *MockRateLimitStore) Get(ctx context.Context, key string) (*models.RateLimitEntry, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, key)
	}
	return nil, nil
}

func (m *MockRateLimitStore) Incr(ctx context.Context, key string, window time.Duration) (*models.RateLimitEntry, error) {
	if m.IncrFunc != nil {
		return m.IncrFunc(ctx, key, window)
	}
	now := time.Now()
	return &models.RateLimitEntry{Key: key, Count: 1, WindowStart: now, ResetTime: now.Add(window)}, nil
}

func (m *MockRateLimitStore) Set(ctx context.Context, key string, entry *models.RateLimitEntry, ttl time.Duration) error {
	if m.SetFunc != nil {
		return m.SetFunc(ctx, key, entry, ttl)
	}
	return nil
}

func (m *MockRateLimitStore) Delete(ctx context.Context, key string) (bool, error) {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, key)
	}
	return false, nil
}

func (m *MockRateLimitStore) Clear(ctx context.Context) error {
	if m.ClearFunc != nil {
		return m.ClearFunc(ctx)
	}
	return nil
}

// MockSessionRepository implements repositories.SessionRepository for testing
type MockSessionRepository struct {
	CreateFunc               func(ctx context.Context, session *models.Session) error
	GetByIDFunc              func(ctx context.Context, sessionID string) (*models.Session, error)
	GetActiveByUserIDFunc    func(ctx context.Context, userID string) ([]*models.Session, error)
	CountActiveByUserIDFunc  func(ctx context.Context, userID string) (int, error)
	DeactivateFunc           func(ctx context.Context, sessionID, reason string) error
	DeactivateAllForUserFunc func(ctx context.Context, userID, reason string) (int64, error)
	DeactivateExpiredFunc    func(ctx context.Context, now time.Time) (int64, error)
}

func (m *MockSessionRepository) Create(ctx context.Context, session *models.Session) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, session)
	}
	return nil
}

func (m *MockSessionRepository) GetByID(ctx context.Context, sessionID string) (*models.Session, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, sessionID)
	}
	return nil, models.ErrNotFound
}

func (m *MockSessionRepository) GetActiveByUserID(ctx context.Context, userID string) ([]*models.Session, error) {
	if m.GetActiveByUserIDFunc != nil {
		return m.GetActiveByUserIDFunc(ctx, userID)
	}
	return nil, nil
}

func (m *MockSessionRepository) CountActiveByUserID(ctx context.Context, userID string) (int, error) {
	if m.CountActiveByUserIDFunc != nil {
		return m.CountActiveByUserIDFunc(ctx, userID)
	}
	return 0, nil
}

func (m *MockSessionRepository) Deactivate(ctx context.Context, sessionID, reason string) error {
	if m.DeactivateFunc != nil {
		return m.DeactivateFunc(ctx, sessionID, reason)
	}
	return nil
}

func (m *MockSessionRepository) DeactivateAllForUser(ctx context.Context, userID, reason string) (int64, error) {
	if m.DeactivateAllForUserFunc != nil {
		return m.DeactivateAllForUserFunc(ctx, userID, reason)
	}
	return 0, nil
}

func (m *MockSessionRepository) DeactivateExpired(ctx context.Context, now time.Time) (int64, error) {
	if m.DeactivateExpiredFunc != nil {
		return m.DeactivateExpiredFunc(ctx, now)
	}
	return 0, nil
}

// MockMFAFailureRepository implements repositories.MFAFailureRepository for testing
type MockMFAFailureRepository struct {
	RecordFunc          func(ctx context.Context, record *models.MFAFailureRecord) error
	CountSinceFunc      func(ctx context.Context, userID string, since time.Time) (int, error)
	ResetFunc           func(ctx context.Context, userID string) error
	DeleteOlderThanFunc func(ctx context.Context, threshold time.Time) (int64, error)
}

func (m *MockMFAFailureRepository) Record(ctx context.Context, record *models.MFAFailureRecord) error {
	if m.RecordFunc != nil {
		return m.RecordFunc(ctx, record)
	}
	return nil
}

func (m *MockMFAFailureRepository) CountSince(ctx context.Context, userID string, since time.Time) (int, error) {
	if m.CountSinceFunc != nil {
		return m.CountSinceFunc(ctx, userID, since)
	}
	return 0, nil
}

func (m *MockMFAFailureRepository) Reset(ctx context.Context, userID string) error {
	if m.ResetFunc != nil {
		return m.ResetFunc(ctx, userID)
	}
	return nil
}

func (m *MockMFAFailureRepository) DeleteOlderThan(ctx context.Context, threshold time.Time) (int64, error) {
	if m.DeleteOlderThanFunc != nil {
		return m.DeleteOlderThanFunc(ctx, threshold)
	}
	return 0, nil
}
