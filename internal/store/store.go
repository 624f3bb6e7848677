package store

import (
	"context"
	"time"

	"github.com/tidewatch/accesscore/internal/models"
)

// RateLimitStore is pluggable key/counter storage with expiration.
//
// Logical expiry is the source of truth: Get must treat an entry whose
// ResetTime has passed as absent even if it is still physically stored.
// Physical eviction (TTLs, sweeps) is a cleanup optimization only.
//
// Incr is the atomic read-increment-write primitive. Two requests arriving
// at the same instant for the same key must both be counted; the in-process
// implementation serializes per key with a mutex, the Redis implementation
// relies on a server-side script.
type RateLimitStore interface {
	// Get returns the current entry for key, or nil if absent or expired.
	Get(ctx context.Context, key string) (*models.RateLimitEntry, error)

	// Incr atomically increments the counter for key within the current
	// window, starting a fresh window (count=1) when the key is absent or
	// its window has rolled over. The returned entry reflects the state
	// after the increment.
	Incr(ctx context.Context, key string, window time.Duration) (*models.RateLimitEntry, error)

	// Set establishes or replaces the entry and schedules physical
	// eviction no later than ttl from now.
	Set(ctx context.Context, key string, entry *models.RateLimitEntry, ttl time.Duration) error

	// Delete removes the entry for key, reporting whether one existed.
	Delete(ctx context.Context, key string) (bool, error)

	// Clear removes all entries.
	Clear(ctx context.Context) error
}
