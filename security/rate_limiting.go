package security

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimiter throttles expensive operations per caller using Redis
// fixed-window counters. Purchase starts hit the payment gateway, so they
// get a much tighter budget than reads.
type RateLimiter struct {
	redis *redis.Client
}

func NewRateLimiter(redisClient *redis.Client) *RateLimiter {
	return &RateLimiter{redis: redisClient}
}

// Allow counts one hit against the bucket and reports whether the caller is
// still inside the window budget. Redis being down fails open: rejecting
// everyone because the limiter is unreachable would be worse than not
// limiting at all.
func (r *RateLimiter) Allow(ctx context.Context, bucket string, limit int64, window time.Duration) bool {
	key := fmt.Sprintf("ratelimit:%s", bucket)

	count, err := r.redis.Incr(ctx, key).Result()
	if err != nil {
		return true
	}
	if count == 1 {
		r.redis.Expire(ctx, key, window)
	}
	return count <= limit
}

// AllowPurchase limits purchase starts to 5 per user per minute. A buyer
// retrying a failed payment stays well under this; a script hammering the
// gateway does not.
func (r *RateLimiter) AllowPurchase(ctx context.Context, userID string) bool {
	return r.Allow(ctx, fmt.Sprintf("purchase:%s", userID), 5, time.Minute)
}

// AllowRedeem limits gate scans to 30 per device per minute.
func (r *RateLimiter) AllowRedeem(ctx context.Context, deviceID string) bool {
	return r.Allow(ctx, fmt.Sprintf("redeem:%s", deviceID), 30, time.Minute)
}
