package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tidewatch/accesscore/internal/handlers"
	"github.com/tidewatch/accesscore/internal/middleware"
	"github.com/tidewatch/accesscore/internal/services"
	pkghttp "github.com/tidewatch/accesscore/pkg/http"
)

// RegisterRoutes registers all application routes
func RegisterRoutes(
	router chi.Router,
	sessionHandler *handlers.SessionHandler,
	mfaHandler *handlers.MFAHandler,
	limiter *services.GlobalRateLimiter,
	ipConfig *pkghttp.IPConfig,
	healthCheck http.HandlerFunc,
) {
	rateLimit := middleware.RateLimit(limiter, ipConfig)

	// Health is probed by orchestration and never rate limited
	router.Get("/health", healthCheck)

	router.Group(func(r chi.Router) {
		r.Use(rateLimit)

		// Session lifecycle
		r.Post("/sessions", sessionHandler.Create)
		r.Post("/sessions/validate", sessionHandler.Validate)
		r.Post("/sessions/invalidate-all", sessionHandler.InvalidateAll)
		r.Delete("/sessions/{session_id}", sessionHandler.Logout)

		// MFA throttle
		r.Post("/mfa/check", mfaHandler.Check)
		r.Post("/mfa/attempts", mfaHandler.RecordFailure)
		r.Post("/mfa/reset", mfaHandler.Reset)
	})
}
