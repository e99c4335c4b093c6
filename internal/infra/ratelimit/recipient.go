package ratelimit

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"notifyhub/internal/domain/notification"

	"github.com/redis/go-redis/v9"
)

var _ notification.RecipientRateLimiter = (*RedisRecipientLimiter)(nil)

const keyPrefix = "notifyhub:ratelimit"

// RedisRecipientLimiter enforces an hourly cap per channel and address using
// a Redis sorted set per key, scored by attempt time.
type RedisRecipientLimiter struct {
	client     redis.UniversalClient
	maxPerHour int
	window     time.Duration
	now        func() time.Time
}

// NewRedisRecipientLimiter connects to Redis and creates a limiter.
func NewRedisRecipientLimiter(redisAddr, password string, db int, maxPerHour int) *RedisRecipientLimiter {
	client := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		Password: password,
		DB:       db,
	})
	return NewWithClient(client, maxPerHour)
}

// NewWithClient creates a limiter over an existing client.
func NewWithClient(client redis.UniversalClient, maxPerHour int) *RedisRecipientLimiter {
	return &RedisRecipientLimiter{
		client:     client,
		maxPerHour: maxPerHour,
		window:     time.Hour,
		now:        time.Now,
	}
}

func recipientKey(ch notification.Channel, recipient string) string {
	return fmt.Sprintf("%s:%s:%s", keyPrefix, ch, recipient)
}

// Allow trims attempts older than the window, then admits and records the
// attempt if fewer than maxPerHour remain. A non-positive limit admits everything.
func (r *RedisRecipientLimiter) Allow(ctx context.Context, ch notification.Channel, recipient string) (bool, error) {
	if r.maxPerHour <= 0 {
		return true, nil
	}

	key := recipientKey(ch, recipient)
	now := r.now()
	windowStart := now.Add(-r.window)

	pipe := r.client.Pipeline()
	pipe.ZRemRangeByScore(ctx, key, "-inf", fmt.Sprintf("%d", windowStart.UnixNano()))
	countCmd := pipe.ZCard(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("checking %s rate limit: %w", ch, err)
	}

	if countCmd.Val() >= int64(r.maxPerHour) {
		return false, nil
	}

	suffix := make([]byte, 4)
	_, _ = rand.Read(suffix)
	member := redis.Z{
		Score:  float64(now.UnixNano()),
		Member: fmt.Sprintf("%d:%s", now.UnixNano(), hex.EncodeToString(suffix)),
	}
	record := r.client.Pipeline()
	record.ZAdd(ctx, key, member)
	record.Expire(ctx, key, r.window+time.Minute)
	if _, err := record.Exec(ctx); err != nil {
		return false, fmt.Errorf("recording %s rate limit entry: %w", ch, err)
	}

	return true, nil
}

// Close closes the Redis connection.
func (r *RedisRecipientLimiter) Close() error {
	return r.client.Close()
}
