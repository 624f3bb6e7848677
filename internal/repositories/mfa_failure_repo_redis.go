package repositories

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/tidewatch/accesscore/internal/models"
)

const mfaFailureKeyPrefix = "mfa_failures:"

// RedisMFAFailureRepository keeps failure timestamps in per-user sorted
// sets scored by attempt time, so counting a trailing window is a single
// ZCOUNT. Keys expire at twice the throttle window; the sweeper trims the
// tail for users who keep failing.
type RedisMFAFailureRepository struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewRedisMFAFailureRepository creates a redis-backed failure repository.
// ttl bounds how long failure records are retained; it should be at least
// the throttle window.
func NewRedisMFAFailureRepository(client redis.UniversalClient, ttl time.Duration) *RedisMFAFailureRepository {
	return &RedisMFAFailureRepository{client: client, ttl: ttl}
}

func (r *RedisMFAFailureRepository) Record(ctx context.Context, record *models.MFAFailureRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now()
	}

	key := r.key(record.UserID)
	member := redis.Z{
		Score:  float64(record.Timestamp.UnixNano()),
		Member: record.ID + ":" + record.IPAddress,
	}

	pipe := r.client.TxPipeline()
	pipe.ZAdd(ctx, key, member)
	if r.ttl > 0 {
		pipe.Expire(ctx, key, r.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err)
	}
	return nil
}

func (r *RedisMFAFailureRepository) CountSince(ctx context.Context, userID string, since time.Time) (int, error) {
	min := strconv.FormatInt(since.UnixNano(), 10)
	count, err := r.client.ZCount(ctx, r.key(userID), min, "+inf").Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err)
	}
	return int(count), nil
}

func (r *RedisMFAFailureRepository) Reset(ctx context.Context, userID string) error {
	if err := r.client.Del(ctx, r.key(userID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err)
	}
	return nil
}

func (r *RedisMFAFailureRepository) DeleteOlderThan(ctx context.Context, threshold time.Time) (int64, error) {
	max := strconv.FormatInt(threshold.UnixNano()-1, 10)

	var removed int64
	iter := r.client.Scan(ctx, 0, mfaFailureKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		n, err := r.client.ZRemRangeByScore(ctx, iter.Val(), "-inf", max).Result()
		if err != nil {
			return removed, fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err)
		}
		removed += n
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err)
	}
	return removed, nil
}

func (r *RedisMFAFailureRepository) key(userID string) string {
	return mfaFailureKeyPrefix + userID
}
