package middleware

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidewatch/accesscore/internal/services"
	"github.com/tidewatch/accesscore/internal/store"
)

func newLimiterMiddleware(t *testing.T, maxRequests int) func(http.Handler) http.Handler {
	t.Helper()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	limiter, err := services.NewGlobalRateLimiter(store.NewMemoryStore(), services.RateLimiterConfig{
		Window:      time.Minute,
		MaxRequests: maxRequests,
	}, logger)
	require.NoError(t, err)
	return RateLimit(limiter, nil)
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimit_SetsHeadersOnAllowedRequest(t *testing.T) {
	mw := newLimiterMiddleware(t, 3)

	req := httptest.NewRequest("POST", "/sessions", nil)
	req.RemoteAddr = "203.0.113.4:51234"
	w := httptest.NewRecorder()

	mw(okHandler()).ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "3", w.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "2", w.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, w.Header().Get("X-RateLimit-Reset"))
}

func TestRateLimit_RejectsOverLimit(t *testing.T) {
	mw := newLimiterMiddleware(t, 1)
	handler := mw(okHandler())

	req := httptest.NewRequest("POST", "/sessions", nil)
	req.RemoteAddr = "203.0.113.4:51234"

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.Contains(t, w.Body.String(), "rate_limit_exceeded")
}

func TestRateLimit_RejectedRequestNeverReachesHandler(t *testing.T) {
	mw := newLimiterMiddleware(t, 0)

	called := false
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	req := httptest.NewRequest("POST", "/sessions", nil)
	req.RemoteAddr = "203.0.113.4:51234"
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.False(t, called)
}

func TestRateLimit_SeparateClientsSeparateBudgets(t *testing.T) {
	mw := newLimiterMiddleware(t, 1)
	handler := mw(okHandler())

	first := httptest.NewRequest("POST", "/sessions", nil)
	first.RemoteAddr = "203.0.113.4:51234"
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, first)
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, first)
	require.Equal(t, http.StatusTooManyRequests, w.Code)

	second := httptest.NewRequest("POST", "/sessions", nil)
	second.RemoteAddr = "198.51.100.7:40000"
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, second)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestExtractRequestMetadata(t *testing.T) {
	req := httptest.NewRequest("POST", "/sessions/validate", nil)
	req.RemoteAddr = "203.0.113.4:51234"
	req.Header.Set("User-Agent", "Mozilla/5.0")
	req.Header.Set("Accept-Language", "en-US")
	req.Header.Set("Accept-Encoding", "gzip")

	meta := ExtractRequestMetadata(req, nil)

	assert.Equal(t, "203.0.113.4", meta.IPAddress)
	assert.Equal(t, "Mozilla/5.0", meta.UserAgent)
	assert.Equal(t, "en-US", meta.AcceptLanguage)
	assert.Equal(t, "gzip", meta.AcceptEncoding)
	assert.Equal(t, "POST", meta.Method)
	assert.Equal(t, "/sessions/validate", meta.Path)
}
