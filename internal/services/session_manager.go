package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/tidewatch/accesscore/internal/auth"
	"github.com/tidewatch/accesscore/internal/models"
	"github.com/tidewatch/accesscore/internal/repositories"
	pkghttp "github.com/tidewatch/accesscore/pkg/http"
	pkglogger "github.com/tidewatch/accesscore/pkg/logger"
)

// SessionManagerConfig holds session lifecycle parameters.
type SessionManagerConfig struct {
	MaxConcurrentSessions int
	SessionTimeout        time.Duration
}

// SessionValidation is the outcome of validating a session. Reason is an
// internal label for audit logs; callers surfacing the result externally
// must return a generic "session invalid" signal so that an attacker
// cannot distinguish expiry from bulk invalidation.
//
// IPMismatch and FingerprintMismatch are risk signals, not rejections:
// travelling users legitimately change IPs, so the decision to force
// re-authentication belongs to the auth layer.
type SessionValidation struct {
	Valid               bool
	Reason              string
	IPMismatch          bool
	FingerprintMismatch bool
}

// Internal validation reasons; never sent to clients.
const (
	reasonNotFound   = "not_found"
	reasonInactive   = "inactive"
	reasonExpired    = "expired"
	reasonStoreError = "store_error"
)

// SessionManager creates, validates, and invalidates sessions, and
// enforces the per-user concurrency ceiling. It is the only component
// allowed to flip a session's active state.
type SessionManager struct {
	repo        repositories.SessionRepository
	config      SessionManagerConfig
	logger      *slog.Logger
	audit       *pkglogger.AuditLogger
	env         string
	createLocks *keyedMutex
}

// NewSessionManager creates a SessionManager. Configuration errors are
// surfaced at construction time.
func NewSessionManager(repo repositories.SessionRepository, config SessionManagerConfig, logger *slog.Logger, audit *pkglogger.AuditLogger, env string) (*SessionManager, error) {
	if config.MaxConcurrentSessions <= 0 {
		return nil, fmt.Errorf("max concurrent sessions must be positive, got %d", config.MaxConcurrentSessions)
	}
	if config.SessionTimeout <= 0 {
		return nil, fmt.Errorf("session timeout must be positive, got %s", config.SessionTimeout)
	}

	return &SessionManager{
		repo:        repo,
		config:      config,
		logger:      logger,
		audit:       audit,
		env:         env,
		createLocks: newKeyedMutex(),
	}, nil
}

// ExtractSessionMetadata derives the session-relevant view of a request.
// It is side-effect free and never fails: missing fields resolve to
// "unknown" or empty string.
func (m *SessionManager) ExtractSessionMetadata(meta models.RequestMetadata) models.SessionMetadata {
	ip := meta.IPAddress
	if ip == "" {
		ip = pkghttp.UnknownIP
	}

	return models.SessionMetadata{
		IPAddress:         ip,
		UserAgent:         meta.UserAgent,
		DeviceFingerprint: auth.DeviceFingerprint(meta),
	}
}

// CreateSession registers a new session for userID. If the user is at the
// concurrency ceiling, the oldest active sessions are evicted first; the
// ceiling is never silently exceeded.
func (m *SessionManager) CreateSession(ctx context.Context, userID string, meta models.RequestMetadata) (*models.Session, error) {
	smeta := m.ExtractSessionMetadata(meta)

	// The count-evict-insert sequence spans several repository calls;
	// serialize it per user so two concurrent creates at the ceiling
	// cannot both pass the count check and push the user over it.
	m.createLocks.Lock(userID)
	defer m.createLocks.Unlock(userID)

	active, err := m.repo.GetActiveByUserID(ctx, userID)
	if err != nil {
		m.logger.Error("failed to load active sessions", slog.String("user_id", userID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	// Oldest first; the repository guarantees the ordering.
	for len(active) >= m.config.MaxConcurrentSessions {
		oldest := active[0]
		if err := m.repo.Deactivate(ctx, oldest.SessionID, "concurrent_limit"); err != nil {
			m.logger.Error("failed to evict oldest session",
				pkglogger.RedactedAttr("session_id", oldest.SessionID, m.env),
				slog.Any("error", err))
			return nil, models.ErrInternalServer
		}
		m.audit.LogSessionEvent(pkglogger.AuditEvent{
			EventType: "session_evicted",
			UserID:    userID,
			IPAddress: oldest.IPAddress,
			Success:   true,
			Reason:    "concurrent_limit",
		})
		active = active[1:]
	}

	now := time.Now()
	session := &models.Session{
		SessionID:         uuid.NewString(),
		UserID:            userID,
		IPAddress:         smeta.IPAddress,
		UserAgent:         smeta.UserAgent,
		DeviceFingerprint: smeta.DeviceFingerprint,
		CreatedAt:         now,
		ExpiresAt:         now.Add(m.config.SessionTimeout),
		IsActive:          true,
	}

	if err := m.repo.Create(ctx, session); err != nil {
		m.logger.Error("failed to create session", slog.String("user_id", userID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	m.audit.LogSessionEvent(pkglogger.AuditEvent{
		EventType: "session_created",
		UserID:    userID,
		IPAddress: smeta.IPAddress,
		UserAgent: smeta.UserAgent,
		Success:   true,
	})

	return session, nil
}

// ValidateSession checks whether sessionID identifies a live session.
// An unverifiable session is not trusted: store errors fail closed.
func (m *SessionManager) ValidateSession(ctx context.Context, sessionID string, meta models.RequestMetadata) SessionValidation {
	session, err := m.repo.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return SessionValidation{Reason: reasonNotFound}
		}
		m.logger.Error("session lookup failed, failing closed",
			pkglogger.RedactedAttr("session_id", sessionID, m.env),
			slog.Any("error", err))
		return SessionValidation{Reason: reasonStoreError}
	}

	if !session.IsActive {
		return SessionValidation{Reason: reasonInactive}
	}

	now := time.Now()
	if session.Expired(now) {
		// Lazy transition to the terminal state; the sweeper would catch
		// it eventually, rejection does not depend on the flip landing.
		if err := m.repo.Deactivate(ctx, sessionID, reasonExpired); err != nil {
			m.logger.Warn("failed to deactivate expired session", slog.Any("error", err))
		}
		return SessionValidation{Reason: reasonExpired}
	}

	smeta := m.ExtractSessionMetadata(meta)
	validation := SessionValidation{Valid: true}

	if session.IPAddress != smeta.IPAddress {
		validation.IPMismatch = true
	}
	if session.DeviceFingerprint != smeta.DeviceFingerprint {
		validation.FingerprintMismatch = true
	}

	if validation.IPMismatch || validation.FingerprintMismatch {
		m.audit.LogSessionEvent(pkglogger.AuditEvent{
			EventType: "session_risk_signal",
			UserID:    session.UserID,
			IPAddress: smeta.IPAddress,
			UserAgent: smeta.UserAgent,
			Success:   false,
			Reason:    "metadata_mismatch",
			Metadata: map[string]string{
				"ip_mismatch":          fmt.Sprintf("%t", validation.IPMismatch),
				"fingerprint_mismatch": fmt.Sprintf("%t", validation.FingerprintMismatch),
			},
		})
	}

	return validation
}

// Logout deactivates a single session. Unknown sessions are not an error;
// logout is idempotent from the caller's point of view.
func (m *SessionManager) Logout(ctx context.Context, sessionID string) error {
	if err := m.repo.Deactivate(ctx, sessionID, "logout"); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil
		}
		m.logger.Error("failed to deactivate session on logout", slog.Any("error", err))
		return models.ErrInternalServer
	}
	return nil
}

// ShouldInvalidateSessions is a pure lookup: true only for the enumerated
// high-severity triggers. Unrecognized triggers never force logout.
func (m *SessionManager) ShouldInvalidateSessions(trigger models.SecurityTrigger) bool {
	return trigger.ForcesInvalidation()
}

// InvalidateAllSessions marks every session for userID inactive when the
// trigger warrants it. This is the only bulk mutation path. Returns the
// number of sessions flipped.
func (m *SessionManager) InvalidateAllSessions(ctx context.Context, userID string, trigger models.SecurityTrigger) (int64, error) {
	if !m.ShouldInvalidateSessions(trigger) {
		m.logger.Info("trigger does not force invalidation",
			slog.String("user_id", userID),
			slog.String("trigger", string(trigger)))
		return 0, nil
	}

	flipped, err := m.repo.DeactivateAllForUser(ctx, userID, string(trigger))
	if err != nil {
		m.logger.Error("failed to invalidate sessions",
			slog.String("user_id", userID),
			slog.String("trigger", string(trigger)),
			slog.Any("error", err))
		return 0, models.ErrInternalServer
	}

	m.audit.LogSessionEvent(pkglogger.AuditEvent{
		EventType: "sessions_invalidated",
		UserID:    userID,
		Success:   true,
		Reason:    string(trigger),
		Metadata: map[string]string{
			"sessions_affected": fmt.Sprintf("%d", flipped),
		},
	})

	return flipped, nil
}
