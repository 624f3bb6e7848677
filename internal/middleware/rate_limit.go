package middleware

import (
	"net/http"
	"strconv"

	"github.com/tidewatch/accesscore/internal/models"
	"github.com/tidewatch/accesscore/internal/services"
	pkghttp "github.com/tidewatch/accesscore/pkg/http"
)

// ExtractRequestMetadata builds the limiter/session view of a request.
// Client IP resolution honors forwarding headers only when the direct
// peer is a trusted proxy.
func ExtractRequestMetadata(r *http.Request, ipConfig *pkghttp.IPConfig) models.RequestMetadata {
	return models.RequestMetadata{
		IPAddress:      pkghttp.ExtractClientIP(r, ipConfig),
		UserAgent:      r.UserAgent(),
		AcceptLanguage: r.Header.Get("Accept-Language"),
		AcceptEncoding: r.Header.Get("Accept-Encoding"),
		Method:         r.Method,
		Path:           r.URL.Path,
	}
}

// RateLimit runs the admission check before the handler. Admitted requests
// carry X-RateLimit-* headers; rejected ones get 429 with Retry-After and
// never reach the handler.
func RateLimit(limiter *services.GlobalRateLimiter, ipConfig *pkghttp.IPConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			result := limiter.CheckRateLimit(r.Context(), ExtractRequestMetadata(r, ipConfig))

			if !result.ResetTime.IsZero() {
				w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limiter.MaxRequests()))
				w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(result.Remaining, 10))
				w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetTime.Unix(), 10))
			}

			if !result.Allowed {
				pkghttp.WriteRateLimited(w, "Rate limit exceeded", result.RetryAfter)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
