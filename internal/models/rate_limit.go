package models

import "time"

// RateLimitEntry is the per-key counter state for one fixed window.
// An entry is logically absent once now >= ResetTime, regardless of whether
// the backing store has physically evicted it yet.
type RateLimitEntry struct {
	Key         string
	Count       int64
	WindowStart time.Time
	ResetTime   time.Time
}

// Expired reports whether the entry's window has rolled over at the given
// instant. The boundary instant itself belongs to the next window.
func (e *RateLimitEntry) Expired(now time.Time) bool {
	return !now.Before(e.ResetTime)
}

// RateLimitViolation is emitted once per request that exceeds the limit.
// It is never mutated after creation.
type RateLimitViolation struct {
	Key        string
	Count      int64
	Limit      int
	Window     time.Duration
	RetryAfter time.Duration
	Timestamp  time.Time

	// Request context, best effort
	Method    string
	Path      string
	UserAgent string
}

// RateLimitResult is the outcome of a single rate limit check.
type RateLimitResult struct {
	Allowed    bool
	Skipped    bool
	Count      int64
	Remaining  int64
	ResetTime  time.Time
	RetryAfter time.Duration
	Violation  *RateLimitViolation
}
