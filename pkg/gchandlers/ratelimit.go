package gchandlers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimiter limits guest-token requests per IP using Redis INCR +
// EXPIRE, adapted from the same pattern used for login attempts elsewhere
// in this codebase.
type RateLimiter struct {
	redis      *redis.Client
	maxAttempt int
	window     time.Duration
}

// NewRateLimiter creates a rate limiter allowing maxAttempt requests per IP
// within window.
func NewRateLimiter(rdb *redis.Client, maxAttempt int, window time.Duration) *RateLimiter {
	return &RateLimiter{redis: rdb, maxAttempt: maxAttempt, window: window}
}

// Allow reports whether ip may make another guest-token request, and
// records this attempt if so.
func (rl *RateLimiter) Allow(ctx context.Context, ip string) (bool, error) {
	key := fmt.Sprintf("gc:guest_token_ratelimit:%s", ip)

	count, err := rl.redis.Get(ctx, key).Int()
	if err != nil && !errors.Is(err, redis.Nil) {
		return false, fmt.Errorf("checking guest-token rate limit: %w", err)
	}
	if count >= rl.maxAttempt {
		return false, nil
	}

	pipe := rl.redis.Pipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, rl.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("recording guest-token attempt: %w", err)
	}
	if incr.Val() == 1 {
		rl.redis.Expire(ctx, key, rl.window)
	}
	return true, nil
}
