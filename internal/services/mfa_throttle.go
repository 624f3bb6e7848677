package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tidewatch/accesscore/internal/models"
	"github.com/tidewatch/accesscore/internal/repositories"
	pkglogger "github.com/tidewatch/accesscore/pkg/logger"
)

// MFAThrottleConfig holds MFA lockout parameters.
type MFAThrottleConfig struct {
	Window      time.Duration
	MaxFailures int
}

// MFAThrottle gates one-time-code verification behind a trailing-window
// failure count per user. Recording and deciding are deliberately separate
// operations: the caller checks the limit before attempting the
// cryptographic comparison, so locked-out accounts never cost a comparison.
//
// The failure count is cleared only by explicit success, not by window
// passage: a user who fails MaxFailures times and waits out the window gets
// exactly MaxFailures more attempts, not unlimited.
type MFAThrottle struct {
	repo   repositories.MFAFailureRepository
	config MFAThrottleConfig
	logger *slog.Logger
	audit  *pkglogger.AuditLogger
}

// NewMFAThrottle creates an MFAThrottle. Configuration errors are surfaced
// at construction time.
func NewMFAThrottle(repo repositories.MFAFailureRepository, config MFAThrottleConfig, logger *slog.Logger, audit *pkglogger.AuditLogger) (*MFAThrottle, error) {
	if config.Window <= 0 {
		return nil, fmt.Errorf("MFA throttle window must be positive, got %s", config.Window)
	}
	if config.MaxFailures <= 0 {
		return nil, fmt.Errorf("MFA max failures must be positive, got %d", config.MaxFailures)
	}

	return &MFAThrottle{
		repo:   repo,
		config: config,
		logger: logger,
		audit:  audit,
	}, nil
}

// CheckMFARateLimit decides whether a verification attempt may proceed.
// Whether the next submitted code would be valid is irrelevant once the
// threshold is reached. Store errors fail open, like the request limiter.
func (t *MFAThrottle) CheckMFARateLimit(ctx context.Context, userID string) models.MFACheckResult {
	now := time.Now()

	failures, err := t.repo.CountSince(ctx, userID, now.Add(-t.config.Window))
	if err != nil {
		t.logger.Error("MFA failure store degraded, failing open",
			slog.String("user_id", userID),
			slog.Any("error", err))
		return models.MFACheckResult{Allowed: true}
	}

	if failures >= t.config.MaxFailures {
		retryAfter := now.Add(t.config.Window)
		t.audit.LogMFALockout(userID, "", failures, retryAfter)
		return models.MFACheckResult{
			Allowed:    false,
			Failures:   failures,
			RetryAfter: &retryAfter,
		}
	}

	return models.MFACheckResult{Allowed: true, Failures: failures}
}

// RecordFailedMFAAttempt appends a failure record. It does not enforce the
// limit; the caller decides via CheckMFARateLimit.
func (t *MFAThrottle) RecordFailedMFAAttempt(ctx context.Context, userID, ipAddress string) error {
	record := &models.MFAFailureRecord{
		UserID:    userID,
		IPAddress: ipAddress,
		Timestamp: time.Now(),
	}

	if err := t.repo.Record(ctx, record); err != nil {
		t.logger.Error("failed to record MFA failure",
			slog.String("user_id", userID),
			slog.Any("error", err))
		return models.ErrInternalServer
	}

	return nil
}

// ResetMFAFailureCount clears all failure records for the user, restoring
// the full attempt budget. Called on successful verification.
func (t *MFAThrottle) ResetMFAFailureCount(ctx context.Context, userID string) error {
	if err := t.repo.Reset(ctx, userID); err != nil {
		t.logger.Error("failed to reset MFA failures",
			slog.String("user_id", userID),
			slog.Any("error", err))
		return models.ErrInternalServer
	}
	return nil
}
