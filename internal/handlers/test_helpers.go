package handlers

import (
	"context"
	"time"

	"github.com/tidewatch/accesscore/internal/models"
	"github.com/tidewatch/accesscore/internal/services"
)

// MockSessionService implements SessionServiceInterface for testing
type MockSessionService struct {
	CreateSessionFunc         func(ctx context.Context, userID string, meta models.RequestMetadata) (*models.Session, error)
	ValidateSessionFunc       func(ctx context.Context, sessionID string, meta models.RequestMetadata) services.SessionValidation
	LogoutFunc                func(ctx context.Context, sessionID string) error
	InvalidateAllSessionsFunc func(ctx context.Context, userID string, trigger models.SecurityTrigger) (int64, error)
}

func (m *MockSessionService) CreateSession(ctx context.Context, userID string, meta models.RequestMetadata) (*models.Session, error) {
	if m.CreateSessionFunc != nil {
		return m.CreateSessionFunc(ctx, userID, meta)
	}
	now := time.Now()
	return &models.Session{
		SessionID: "sess-mock",
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(time.Hour),
		IsActive:  true,
	}, nil
}

func (m *MockSessionService) ValidateSession(ctx context.Context, sessionID string, meta models.RequestMetadata) services.SessionValidation {
	if m.ValidateSessionFunc != nil {
		return m.ValidateSessionFunc(ctx, sessionID, meta)
	}
	return services.SessionValidation{Valid: true}
}

func (m *MockSessionService) Logout(ctx context.Context, sessionID string) error {
	if m.LogoutFunc != nil {
		return m.LogoutFunc(ctx, sessionID)
	}
	return nil
}

func (m *MockSessionService) InvalidateAllSessions(ctx context.Context, userID string, trigger models.SecurityTrigger) (int64, error) {
	if m.InvalidateAllSessionsFunc != nil {
		return m.InvalidateAllSessionsFunc(ctx, userID, trigger)
	}
	return 0, nil
}

// MockMFAThrottleService implements MFAThrottleServiceInterface for testing
type MockMFAThrottleService struct {
	CheckMFARateLimitFunc      func(ctx context.Context, userID string) models.MFACheckResult
	RecordFailedMFAAttemptFunc func(ctx context.Context, userID, ipAddress string) error
	ResetMFAFailureCountFunc   func(ctx context.Context, userID string) error
}

func (m *MockMFAThrottleService) CheckMFARateLimit(ctx context.Context, userID string) models.MFACheckResult {
	if m.CheckMFARateLimitFunc != nil {
		return m.CheckMFARateLimitFunc(ctx, userID)
	}
	return models.MFACheckResult{Allowed: true}
}

func (m *MockMFAThrottleService) RecordFailedMFAAttempt(ctx context.Context, userID, ipAddress string) error {
	if m.RecordFailedMFAAttemptFunc != nil {
		return m.RecordFailedMFAAttemptFunc(ctx, userID, ipAddress)
	}
	return nil
}

func (m *MockMFAThrottleService) ResetMFAFailureCount(ctx context.Context, userID string) error {
	if m.ResetMFAFailureCountFunc != nil {
		return m.ResetMFAFailureCountFunc(ctx, userID)
	}
	return nil
}
