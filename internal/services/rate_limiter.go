package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tidewatch/accesscore/internal/models"
	"github.com/tidewatch/accesscore/internal/store"
	pkghttp "github.com/tidewatch/accesscore/pkg/http"
	pkglogger "github.com/tidewatch/accesscore/pkg/logger"
)

// KeyFunc derives the rate limit key for a request.
type KeyFunc func(meta models.RequestMetadata) string

// SkipFunc reports whether a request bypasses rate limiting entirely.
type SkipFunc func(meta models.RequestMetadata) bool

// ViolationHandler is invoked exactly once per request that exceeds the
// limit. A panicking handler is isolated; it cannot affect the decision.
type ViolationHandler func(violation *models.RateLimitViolation)

// RateLimiterConfig holds fixed-window rate limiting parameters.
type RateLimiterConfig struct {
	Window      time.Duration
	MaxRequests int

	// CheckTimeout bounds each store round trip. Zero means the default.
	CheckTimeout time.Duration
}

const defaultCheckTimeout = 2 * time.Second

// GlobalRateLimiter decides in bounded time whether to admit or reject a
// request, keyed by client identity. State is a fixed-window counter per
// key: O(1) per key and easy to reason about as "N requests per window".
//
// Store outages fail open: a storage incident must not take down all
// traffic, so the request is admitted and the degradation logged.
type GlobalRateLimiter struct {
	store       store.RateLimitStore
	config      RateLimiterConfig
	keyFn       KeyFunc
	skips       []SkipFunc
	onViolation ViolationHandler
	logger      *slog.Logger
}

// RateLimiterOption customizes a GlobalRateLimiter.
type RateLimiterOption func(*GlobalRateLimiter)

// WithKeyFunc overrides the default IP-based key derivation.
func WithKeyFunc(fn KeyFunc) RateLimiterOption {
	return func(l *GlobalRateLimiter) {
		l.keyFn = fn
	}
}

// WithSkipConditions sets predicates evaluated in order before any quota is
// consumed; the first match short-circuits the check.
func WithSkipConditions(conditions ...SkipFunc) RateLimiterOption {
	return func(l *GlobalRateLimiter) {
		l.skips = conditions
	}
}

// WithViolationHandler sets the callback receiving each violation.
func WithViolationHandler(handler ViolationHandler) RateLimiterOption {
	return func(l *GlobalRateLimiter) {
		l.onViolation = handler
	}
}

// NewGlobalRateLimiter creates a limiter over the given store.
// Configuration errors are fatal: the limiter refuses to construct rather
// than behave unpredictably. MaxRequests of zero is valid and means
// "always reject".
func NewGlobalRateLimiter(st store.RateLimitStore, config RateLimiterConfig, logger *slog.Logger, opts ...RateLimiterOption) (*GlobalRateLimiter, error) {
	if config.Window <= 0 {
		return nil, fmt.Errorf("rate limiter window must be positive, got %s", config.Window)
	}
	if config.MaxRequests < 0 {
		return nil, fmt.Errorf("rate limiter max requests must not be negative, got %d", config.MaxRequests)
	}
	if config.CheckTimeout <= 0 {
		config.CheckTimeout = defaultCheckTimeout
	}

	limiter := &GlobalRateLimiter{
		store:  st,
		config: config,
		keyFn:  DefaultKeyFunc,
		logger: logger,
	}
	for _, opt := range opts {
		opt(limiter)
	}

	return limiter, nil
}

// MaxRequests returns the configured per-window ceiling.
func (l *GlobalRateLimiter) MaxRequests() int {
	return l.config.MaxRequests
}

// DefaultKeyFunc buckets requests by client IP. Metadata extraction has
// already resolved header precedence; anything unattributable shares the
// "unknown" bucket.
func DefaultKeyFunc(meta models.RequestMetadata) string {
	ip := meta.IPAddress
	if ip == "" {
		ip = pkghttp.UnknownIP
	}
	return "ip:" + ip
}

// CheckRateLimit runs one admission check. It never returns an error:
// transient store failures resolve to the fail-open default and missing
// metadata defaults to the unknown bucket.
func (l *GlobalRateLimiter) CheckRateLimit(ctx context.Context, meta models.RequestMetadata) models.RateLimitResult {
	for _, skip := range l.skips {
		if skip(meta) {
			return models.RateLimitResult{Allowed: true, Skipped: true}
		}
	}

	key := l.deriveKey(meta)

	checkCtx, cancel := context.WithTimeout(ctx, l.config.CheckTimeout)
	defer cancel()

	entry, err := l.store.Incr(checkCtx, key, l.config.Window)
	if err != nil {
		l.logger.Error("rate limit store degraded, failing open",
			slog.String("key", key),
			slog.Any("error", err))
		return models.RateLimitResult{
			Allowed:   true,
			Remaining: int64(l.config.MaxRequests),
		}
	}

	now := time.Now()
	if entry.Count > int64(l.config.MaxRequests) {
		retryAfter := entry.ResetTime.Sub(now)
		if retryAfter < 0 {
			retryAfter = 0
		}

		violation := &models.RateLimitViolation{
			Key:        key,
			Count:      entry.Count,
			Limit:      l.config.MaxRequests,
			Window:     l.config.Window,
			RetryAfter: retryAfter,
			Timestamp:  now,
			Method:     meta.Method,
			Path:       meta.Path,
			UserAgent:  meta.UserAgent,
		}
		l.dispatchViolation(violation)

		return models.RateLimitResult{
			Allowed:    false,
			Count:      entry.Count,
			Remaining:  0,
			ResetTime:  entry.ResetTime,
			RetryAfter: retryAfter,
			Violation:  violation,
		}
	}

	return models.RateLimitResult{
		Allowed:   true,
		Count:     entry.Count,
		Remaining: int64(l.config.MaxRequests) - entry.Count,
		ResetTime: entry.ResetTime,
	}
}

// ClearRateLimit removes all counter state for key. The next check for the
// key behaves like a first-ever request.
func (l *GlobalRateLimiter) ClearRateLimit(ctx context.Context, key string) error {
	if _, err := l.store.Delete(ctx, key); err != nil {
		l.logger.Error("failed to clear rate limit", slog.String("key", key), slog.Any("error", err))
		return models.ErrStoreUnavailable
	}
	return nil
}

// deriveKey applies the key function, recovering a panic into the unknown
// bucket so a misbehaving generator degrades like missing metadata.
func (l *GlobalRateLimiter) deriveKey(meta models.RequestMetadata) (key string) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Warn("key generator panicked, using unknown key", slog.Any("panic", r))
			key = "ip:" + pkghttp.UnknownIP
		}
	}()
	return l.keyFn(meta)
}

// dispatchViolation invokes the handler, isolating panics so the limiter
// still returns its decision.
func (l *GlobalRateLimiter) dispatchViolation(violation *models.RateLimitViolation) {
	if l.onViolation == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("violation handler panicked", slog.Any("panic", r))
		}
	}()
	l.onViolation(violation)
}

// AuditViolationHandler adapts the audit sink into a ViolationHandler.
func AuditViolationHandler(audit *pkglogger.AuditLogger) ViolationHandler {
	return func(v *models.RateLimitViolation) {
		audit.LogRateLimitViolation(v.Key, v.Count, v.Limit, v.Window, v.RetryAfter, v.Method, v.Path)
	}
}
