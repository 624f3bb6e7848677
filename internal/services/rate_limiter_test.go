package services_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidewatch/accesscore/internal/models"
	"github.com/tidewatch/accesscore/internal/services"
	"github.com/tidewatch/accesscore/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, nil))
}

func newTestLimiter(t *testing.T, st store.RateLimitStore, config services.RateLimiterConfig, opts ...services.RateLimiterOption) *services.GlobalRateLimiter {
	t.Helper()
	limiter, err := services.NewGlobalRateLimiter(st, config, testLogger(), opts...)
	require.NoError(t, err)
	return limiter
}

func metaWithIP(ip string) models.RequestMetadata {
	return models.RequestMetadata{IPAddress: ip, Method: "POST", Path: "/auth/login"}
}

func TestNewGlobalRateLimiter_RejectsBadConfig(t *testing.T) {
	tests := []struct {
		name   string
		config services.RateLimiterConfig
	}{
		{"zero window", services.RateLimiterConfig{Window: 0, MaxRequests: 5}},
		{"negative window", services.RateLimiterConfig{Window: -time.Second, MaxRequests: 5}},
		{"negative max requests", services.RateLimiterConfig{Window: time.Second, MaxRequests: -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := services.NewGlobalRateLimiter(store.NewMemoryStore(), tt.config, testLogger())
			assert.Error(t, err)
		})
	}
}

func TestCheckRateLimit_AllowsUpToLimitThenRejects(t *testing.T) {
	limiter := newTestLimiter(t, store.NewMemoryStore(), services.RateLimiterConfig{
		Window:      time.Minute,
		MaxRequests: 3,
	})
	ctx := context.Background()
	meta := metaWithIP("203.0.113.4")

	for i, wantRemaining := range []int64{2, 1, 0} {
		result := limiter.CheckRateLimit(ctx, meta)
		assert.True(t, result.Allowed, "call %d should be allowed", i+1)
		assert.Equal(t, int64(i+1), result.Count)
		assert.Equal(t, wantRemaining, result.Remaining)
	}

	result := limiter.CheckRateLimit(ctx, meta)
	assert.False(t, result.Allowed)
	assert.Greater(t, result.RetryAfter, time.Duration(0))
	require.NotNil(t, result.Violation)
	assert.Equal(t, "ip:203.0.113.4", result.Violation.Key)
	assert.Equal(t, int64(4), result.Violation.Count)
	assert.Equal(t, 3, result.Violation.Limit)
}

func TestCheckRateLimit_WindowReset(t *testing.T) {
	st := store.NewMemoryStore()
	now := time.Now()
	st.SetClock(func() time.Time { return now })

	limiter := newTestLimiter(t, st, services.RateLimiterConfig{
		Window:      time.Second,
		MaxRequests: 3,
	})
	ctx := context.Background()
	meta := metaWithIP("203.0.113.4")

	for i := 0; i < 3; i++ {
		assert.True(t, limiter.CheckRateLimit(ctx, meta).Allowed)
	}
	assert.False(t, limiter.CheckRateLimit(ctx, meta).Allowed)

	// Past the window boundary the count starts over, no matter how many
	// requests were rejected in between.
	now = now.Add(1050 * time.Millisecond)

	result := limiter.CheckRateLimit(ctx, meta)
	assert.True(t, result.Allowed)
	assert.Equal(t, int64(1), result.Count)
}

func TestCheckRateLimit_KeyIsolation(t *testing.T) {
	limiter := newTestLimiter(t, store.NewMemoryStore(), services.RateLimiterConfig{
		Window:      time.Minute,
		MaxRequests: 1,
	})
	ctx := context.Background()

	assert.True(t, limiter.CheckRateLimit(ctx, metaWithIP("203.0.113.4")).Allowed)
	assert.False(t, limiter.CheckRateLimit(ctx, metaWithIP("203.0.113.4")).Allowed)

	// Exhausting one key leaves another untouched.
	result := limiter.CheckRateLimit(ctx, metaWithIP("198.51.100.7"))
	assert.True(t, result.Allowed)
	assert.Equal(t, int64(1), result.Count)
}

func TestCheckRateLimit_SkipShortCircuits(t *testing.T) {
	st := store.NewMemoryStore()
	limiter := newTestLimiter(t, st, services.RateLimiterConfig{
		Window:      time.Minute,
		MaxRequests: 3,
	}, services.WithSkipConditions(func(meta models.RequestMetadata) bool {
		return meta.Path == "/health"
	}))
	ctx := context.Background()

	result := limiter.CheckRateLimit(ctx, models.RequestMetadata{IPAddress: "203.0.113.4", Path: "/health"})
	assert.True(t, result.Allowed)
	assert.True(t, result.Skipped)

	// No quota was consumed.
	entry, err := st.Get(ctx, "ip:203.0.113.4")
	require.NoError(t, err)
	assert.Nil(t, entry)
}

func TestCheckRateLimit_ZeroMaxRequestsAlwaysRejects(t *testing.T) {
	limiter := newTestLimiter(t, store.NewMemoryStore(), services.RateLimiterConfig{
		Window:      time.Minute,
		MaxRequests: 0,
	})

	result := limiter.CheckRateLimit(context.Background(), metaWithIP("203.0.113.4"))
	assert.False(t, result.Allowed)
	require.NotNil(t, result.Violation)
}

func TestCheckRateLimit_FailsOpenOnStoreError(t *testing.T) {
	st := &services.MockRateLimitStore{
		IncrFunc: func(ctx context.Context, key string, window time.Duration) (*models.RateLimitEntry, error) {
			return nil, errors.New("connection refused")
		},
	}
	limiter := newTestLimiter(t, st, services.RateLimiterConfig{
		Window:      time.Minute,
		MaxRequests: 3,
	})

	result := limiter.CheckRateLimit(context.Background(), metaWithIP("203.0.113.4"))
	assert.True(t, result.Allowed)
	assert.False(t, result.Skipped)
}

func TestCheckRateLimit_ViolationHandlerInvokedOncePerViolation(t *testing.T) {
	var violations []*models.RateLimitViolation
	limiter := newTestLimiter(t, store.NewMemoryStore(), services.RateLimiterConfig{
		Window:      time.Minute,
		MaxRequests: 1,
	}, services.WithViolationHandler(func(v *models.RateLimitViolation) {
		violations = append(violations, v)
	}))
	ctx := context.Background()
	meta := metaWithIP("203.0.113.4")

	limiter.CheckRateLimit(ctx, meta) // allowed
	limiter.CheckRateLimit(ctx, meta) // violation
	limiter.CheckRateLimit(ctx, meta) // violation

	require.Len(t, violations, 2)
	assert.Equal(t, int64(2), violations[0].Count)
	assert.Equal(t, int64(3), violations[1].Count)
	assert.Equal(t, "POST", violations[0].Method)
	assert.Equal(t, "/auth/login", violations[0].Path)
}

func TestCheckRateLimit_PanickingViolationHandlerIsIsolated(t *testing.T) {
	limiter := newTestLimiter(t, store.NewMemoryStore(), services.RateLimiterConfig{
		Window:      time.Minute,
		MaxRequests: 0,
	}, services.WithViolationHandler(func(v *models.RateLimitViolation) {
		panic("handler bug")
	}))

	result := limiter.CheckRateLimit(context.Background(), metaWithIP("203.0.113.4"))
	assert.False(t, result.Allowed)
	assert.Greater(t, result.RetryAfter, time.Duration(0))
}

func TestCheckRateLimit_PanickingKeyFuncDefaultsToUnknown(t *testing.T) {
	limiter := newTestLimiter(t, store.NewMemoryStore(), services.RateLimiterConfig{
		Window:      time.Minute,
		MaxRequests: 5,
	}, services.WithKeyFunc(func(meta models.RequestMetadata) string {
		panic("generator bug")
	}))

	var captured *models.RateLimitViolation
	limiter2 := newTestLimiter(t, store.NewMemoryStore(), services.RateLimiterConfig{
		Window:      time.Minute,
		MaxRequests: 0,
	}, services.WithKeyFunc(func(meta models.RequestMetadata) string {
		panic("generator bug")
	}), services.WithViolationHandler(func(v *models.RateLimitViolation) {
		captured = v
	}))

	result := limiter.CheckRateLimit(context.Background(), metaWithIP("203.0.113.4"))
	assert.True(t, result.Allowed)

	limiter2.CheckRateLimit(context.Background(), metaWithIP("203.0.113.4"))
	require.NotNil(t, captured)
	assert.Equal(t, "ip:unknown", captured.Key)
}

func TestCheckRateLimit_MissingIPUsesUnknownBucket(t *testing.T) {
	var captured *models.RateLimitViolation
	limiter := newTestLimiter(t, store.NewMemoryStore(), services.RateLimiterConfig{
		Window:      time.Minute,
		MaxRequests: 0,
	}, services.WithViolationHandler(func(v *models.RateLimitViolation) {
		captured = v
	}))

	limiter.CheckRateLimit(context.Background(), models.RequestMetadata{})
	require.NotNil(t, captured)
	assert.Equal(t, "ip:unknown", captured.Key)
}

func TestClearRateLimit_RestoresFirstRequestSemantics(t *testing.T) {
	limiter := newTestLimiter(t, store.NewMemoryStore(), services.RateLimiterConfig{
		Window:      time.Minute,
		MaxRequests: 1,
	})
	ctx := context.Background()
	meta := metaWithIP("203.0.113.4")

	limiter.CheckRateLimit(ctx, meta)
	assert.False(t, limiter.CheckRateLimit(ctx, meta).Allowed)

	require.NoError(t, limiter.ClearRateLimit(ctx, "ip:203.0.113.4"))

	result := limiter.CheckRateLimit(ctx, meta)
	assert.True(t, result.Allowed)
	assert.Equal(t, int64(1), result.Count)
}

func TestCheckRateLimit_ConcreteScenario(t *testing.T) {
	// windowMs=1000, maxRequests=3, single key: calls 1-3 allowed with
	// remaining 2,1,0; call 4 rejected; after the window, call 5 is a
	// fresh count of 1.
	st := store.NewMemoryStore()
	now := time.Now()
	st.SetClock(func() time.Time { return now })

	limiter := newTestLimiter(t, st, services.RateLimiterConfig{
		Window:      1000 * time.Millisecond,
		MaxRequests: 3,
	}, services.WithKeyFunc(func(models.RequestMetadata) string { return "k" }))
	ctx := context.Background()

	for _, wantRemaining := range []int64{2, 1, 0} {
		result := limiter.CheckRateLimit(ctx, models.RequestMetadata{})
		require.True(t, result.Allowed)
		assert.Equal(t, wantRemaining, result.Remaining)
	}

	assert.False(t, limiter.CheckRateLimit(ctx, models.RequestMetadata{}).Allowed)

	now = now.Add(1050 * time.Millisecond)

	result := limiter.CheckRateLimit(ctx, models.RequestMetadata{})
	assert.True(t, result.Allowed)
	assert.Equal(t, int64(1), result.Count)
}
