package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tidewatch/accesscore/internal/models"
)

const defaultKeyPrefix = "ratelimit:"

// incrScript performs the read-increment-write cycle server-side so that
// concurrent increments for the same key across many application instances
// never lose updates. Window rollover is decided against the stored reset
// time, mirroring the logical-expiry rule in Get.
//
// Returns {count, window_start_ms, reset_ms}.
var incrScript = redis.NewScript(`
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local reset = tonumber(redis.call("HGET", KEYS[1], "reset") or "0")
local start
local count
if reset == 0 or now >= reset then
  start = now
  reset = now + window
  count = 1
  redis.call("HSET", KEYS[1], "count", 1, "start", start, "reset", reset)
else
  count = redis.call("HINCRBY", KEYS[1], "count", 1)
  start = tonumber(redis.call("HGET", KEYS[1], "start"))
end
redis.call("PEXPIRE", KEYS[1], reset - now)
return {count, start, reset}
`)

// RedisStore is a distributed RateLimitStore backed by Redis. Entries live
// in hashes with count/start/reset fields; the increment path is a Lua
// script so the read-compute-write cycle is atomic across replicas.
type RedisStore struct {
	client    redis.UniversalClient
	keyPrefix string
}

// RedisStoreOption customizes a RedisStore.
type RedisStoreOption func(*RedisStore)

// WithKeyPrefix sets the Redis key prefix (default "ratelimit:").
func WithKeyPrefix(prefix string) RedisStoreOption {
	return func(s *RedisStore) {
		s.keyPrefix = prefix
	}
}

// NewRedisStore creates a Redis-backed store and verifies connectivity.
func NewRedisStore(client redis.UniversalClient, opts ...RedisStoreOption) (*RedisStore, error) {
	s := &RedisStore{
		client:    client,
		keyPrefix: defaultKeyPrefix,
	}
	for _, opt := range opts {
		opt(s)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err)
	}

	return s, nil
}

// Get returns the entry for key, or nil if absent or logically expired.
func (s *RedisStore) Get(ctx context.Context, key string) (*models.RateLimitEntry, error) {
	fields, err := s.client.HGetAll(ctx, s.key(key)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err)
	}
	if len(fields) == 0 {
		return nil, nil
	}

	entry, err := entryFromFields(key, fields)
	if err != nil {
		return nil, err
	}
	if entry.Expired(time.Now()) {
		return nil, nil
	}
	return entry, nil
}

// Incr atomically increments the counter for key within the current window.
func (s *RedisStore) Incr(ctx context.Context, key string, window time.Duration) (*models.RateLimitEntry, error) {
	now := time.Now()
	result, err := incrScript.Run(ctx, s.client, []string{s.key(key)},
		now.UnixMilli(),
		window.Milliseconds(),
	).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err)
	}

	values, ok := result.([]interface{})
	if !ok || len(values) != 3 {
		return nil, errors.New("unexpected script response")
	}

	count, _ := values[0].(int64)
	startMs, _ := values[1].(int64)
	resetMs, _ := values[2].(int64)

	return &models.RateLimitEntry{
		Key:         key,
		Count:       count,
		WindowStart: time.UnixMilli(startMs),
		ResetTime:   time.UnixMilli(resetMs),
	}, nil
}

// Set establishes or replaces the entry for key with the given ttl.
func (s *RedisStore) Set(ctx context.Context, key string, entry *models.RateLimitEntry, ttl time.Duration) error {
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, s.key(key),
		"count", entry.Count,
		"start", entry.WindowStart.UnixMilli(),
		"reset", entry.ResetTime.UnixMilli(),
	)
	pipe.PExpire(ctx, s.key(key), ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err)
	}
	return nil
}

// Delete removes the entry for key.
func (s *RedisStore) Delete(ctx context.Context, key string) (bool, error) {
	deleted, err := s.client.Del(ctx, s.key(key)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err)
	}
	return deleted > 0, nil
}

// Clear removes all entries under the store's key prefix using SCAN to
// avoid blocking the server on large keyspaces.
func (s *RedisStore) Clear(ctx context.Context) error {
	iter := s.client.Scan(ctx, 0, s.keyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		if err := s.client.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err)
	}
	return nil
}

func (s *RedisStore) key(key string) string {
	return s.keyPrefix + key
}

func entryFromFields(key string, fields map[string]string) (*models.RateLimitEntry, error) {
	count, err := strconv.ParseInt(fields["count"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse count: %w", err)
	}
	startMs, err := strconv.ParseInt(fields["start"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse window start: %w", err)
	}
	resetMs, err := strconv.ParseInt(fields["reset"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse reset time: %w", err)
	}

	return &models.RateLimitEntry{
		Key:         key,
		Count:       count,
		WindowStart: time.UnixMilli(startMs),
		ResetTime:   time.UnixMilli(resetMs),
	}, nil
}
