package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tidewatch/accesscore/internal/middleware"
	"github.com/tidewatch/accesscore/internal/models"
	"github.com/tidewatch/accesscore/internal/services"
	pkghttp "github.com/tidewatch/accesscore/pkg/http"
)

// SessionServiceInterface defines the interface for session lifecycle logic
type SessionServiceInterface interface {
	CreateSession(ctx context.Context, userID string, meta models.RequestMetadata) (*models.Session, error)
	ValidateSession(ctx context.Context, sessionID string, meta models.RequestMetadata) services.SessionValidation
	Logout(ctx context.Context, sessionID string) error
	InvalidateAllSessions(ctx context.Context, userID string, trigger models.SecurityTrigger) (int64, error)
}

// SessionHandler handles session-related HTTP requests
type SessionHandler struct {
	service  SessionServiceInterface
	ipConfig *pkghttp.IPConfig
}

// NewSessionHandler creates a new SessionHandler
func NewSessionHandler(service SessionServiceInterface, ipConfig *pkghttp.IPConfig) *SessionHandler {
	return &SessionHandler{
		service:  service,
		ipConfig: ipConfig,
	}
}

// Request DTOs

// CreateSessionRequest represents the request body for session creation
type CreateSessionRequest struct {
	UserID string `json:"user_id" validate:"required"`
}

// ValidateSessionRequest represents the request body for session validation
type ValidateSessionRequest struct {
	SessionID string `json:"session_id" validate:"required"`
}

// InvalidateSessionsRequest represents the request body for bulk invalidation
type InvalidateSessionsRequest struct {
	UserID  string `json:"user_id" validate:"required"`
	Trigger string `json:"trigger" validate:"required"`
}

// Response DTOs

// SessionResponse represents a created session
type SessionResponse struct {
	SessionID         string    `json:"session_id"`
	UserID            string    `json:"user_id"`
	DeviceFingerprint string    `json:"device_fingerprint"`
	CreatedAt         time.Time `json:"created_at"`
	ExpiresAt         time.Time `json:"expires_at"`
}

// ValidateSessionResponse represents a successful validation. Risk signals
// accompany a valid session; invalid sessions get a generic 401 instead so
// the reason for rejection never leaks.
type ValidateSessionResponse struct {
	Valid               bool `json:"valid"`
	IPMismatch          bool `json:"ip_mismatch"`
	FingerprintMismatch bool `json:"fingerprint_mismatch"`
}

// InvalidateSessionsResponse reports how many sessions a trigger flipped
type InvalidateSessionsResponse struct {
	SessionsInvalidated int64  `json:"sessions_invalidated"`
	Trigger             string `json:"trigger"`
}

// Create handles session creation
// @Summary Create a session
// @Accept json
// @Param request body CreateSessionRequest true "Create session request"
// @Produce json
// @Success 201 {object} SessionResponse
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /sessions [post]
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	meta := middleware.ExtractRequestMetadata(r, h.ipConfig)

	session, err := h.service.CreateSession(r.Context(), req.UserID, meta)
	if err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(SessionResponse{
		SessionID:         session.SessionID,
		UserID:            session.UserID,
		DeviceFingerprint: session.DeviceFingerprint,
		CreatedAt:         session.CreatedAt,
		ExpiresAt:         session.ExpiresAt,
	})
}

// Validate handles session validation
// @Summary Validate a session
// @Accept json
// @Param request body ValidateSessionRequest true "Validate session request"
// @Produce json
// @Success 200 {object} ValidateSessionResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Router /sessions/validate [post]
func (h *SessionHandler) Validate(w http.ResponseWriter, r *http.Request) {
	var req ValidateSessionRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	meta := middleware.ExtractRequestMetadata(r, h.ipConfig)

	validation := h.service.ValidateSession(r.Context(), req.SessionID, meta)
	if !validation.Valid {
		// Deliberately indistinguishable: expiry, bulk invalidation and
		// unknown session all read the same from outside
		pkghttp.WriteUnauthorized(w, "Session invalid")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(ValidateSessionResponse{
		Valid:               true,
		IPMismatch:          validation.IPMismatch,
		FingerprintMismatch: validation.FingerprintMismatch,
	})
}

// Logout handles single-session logout
// @Summary Log out a session
// @Param session_id path string true "Session ID"
// @Success 204
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /sessions/{session_id} [delete]
func (h *SessionHandler) Logout(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimSpace(chi.URLParam(r, "session_id"))
	if sessionID == "" {
		pkghttp.WriteBadRequest(w, "Session ID is required")
		return
	}

	if err := h.service.Logout(r.Context(), sessionID); err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// InvalidateAll handles trigger-gated bulk invalidation
// @Summary Invalidate all sessions for a user
// @Accept json
// @Param request body InvalidateSessionsRequest true "Invalidate sessions request"
// @Produce json
// @Success 200 {object} InvalidateSessionsResponse
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /sessions/invalidate-all [post]
func (h *SessionHandler) InvalidateAll(w http.ResponseWriter, r *http.Request) {
	var req InvalidateSessionsRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	trigger, ok := models.ParseSecurityTrigger(req.Trigger)
	if !ok {
		pkghttp.WriteBadRequest(w, "Unrecognized security trigger")
		return
	}

	flipped, err := h.service.InvalidateAllSessions(r.Context(), req.UserID, trigger)
	if err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(InvalidateSessionsResponse{
		SessionsInvalidated: flipped,
		Trigger:             string(trigger),
	})
}
