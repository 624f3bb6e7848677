package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/tidewatch/accesscore/internal/middleware"
	"github.com/tidewatch/accesscore/internal/models"
	pkghttp "github.com/tidewatch/accesscore/pkg/http"
)

// MFAThrottleServiceInterface defines the interface for MFA throttling logic
type MFAThrottleServiceInterface interface {
	CheckMFARateLimit(ctx context.Context, userID string) models.MFACheckResult
	RecordFailedMFAAttempt(ctx context.Context, userID, ipAddress string) error
	ResetMFAFailureCount(ctx context.Context, userID string) error
}

// MFAHandler handles MFA throttle HTTP requests
type MFAHandler struct {
	service  MFAThrottleServiceInterface
	ipConfig *pkghttp.IPConfig
}

// NewMFAHandler creates a new MFAHandler
func NewMFAHandler(service MFAThrottleServiceInterface, ipConfig *pkghttp.IPConfig) *MFAHandler {
	return &MFAHandler{
		service:  service,
		ipConfig: ipConfig,
	}
}

// MFAUserRequest identifies the account an MFA operation applies to
type MFAUserRequest struct {
	UserID string `json:"user_id" validate:"required"`
}

// MFACheckResponse reports whether a verification attempt may proceed
type MFACheckResponse struct {
	Allowed  bool `json:"allowed"`
	Failures int  `json:"failures"`
}

// Check decides whether an MFA verification attempt may proceed
// @Summary Check MFA rate limit
// @Accept json
// @Param request body MFAUserRequest true "MFA check request"
// @Produce json
// @Success 200 {object} MFACheckResponse
// @Failure 400 {object} ErrorResponse
// @Failure 429 {object} ErrorResponse
// @Router /mfa/check [post]
func (h *MFAHandler) Check(w http.ResponseWriter, r *http.Request) {
	var req MFAUserRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	result := h.service.CheckMFARateLimit(r.Context(), req.UserID)
	if !result.Allowed {
		retryAfter := time.Duration(0)
		if result.RetryAfter != nil {
			retryAfter = time.Until(*result.RetryAfter)
		}
		pkghttp.WriteRateLimited(w, "Too many failed MFA attempts. Please try again later.", retryAfter)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(MFACheckResponse{
		Allowed:  true,
		Failures: result.Failures,
	})
}

// RecordFailure records one failed MFA verification attempt
// @Summary Record a failed MFA attempt
// @Accept json
// @Param request body MFAUserRequest true "MFA failure request"
// @Success 204
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /mfa/attempts [post]
func (h *MFAHandler) RecordFailure(w http.ResponseWriter, r *http.Request) {
	var req MFAUserRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	meta := middleware.ExtractRequestMetadata(r, h.ipConfig)

	if err := h.service.RecordFailedMFAAttempt(r.Context(), req.UserID, meta.IPAddress); err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Reset clears the failure count after a successful verification
// @Summary Reset MFA failure count
// @Accept json
// @Param request body MFAUserRequest true "MFA reset request"
// @Success 204
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /mfa/reset [post]
func (h *MFAHandler) Reset(w http.ResponseWriter, r *http.Request) {
	var req MFAUserRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	if err := h.service.ResetMFAFailureCount(r.Context(), req.UserID); err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
