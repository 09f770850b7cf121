package ratelimit

import (
	"context"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/gradpath/gradpath/internal/config"
)

const keyConsumeUser = "consume:user:%s"

// ConsumeLimiter throttles consume requests per user before they reach
// the durable counter. It protects the store from a runaway client; the
// quota itself is enforced by the conditional increment, not here. A nil
// limiter (disabled or no redis) allows everything.
type ConsumeLimiter struct {
	bucket *TokenBucket
	rate   float64
	burst  int
}

func NewConsumeLimiter(cfg config.Config, client *redis.Client) *ConsumeLimiter {
	limitCfg := cfg.RateLimit
	if !limitCfg.Enabled || client == nil {
		return nil
	}
	if limitCfg.ConsumeUserRate <= 0 || limitCfg.ConsumeUserBurst <= 0 {
		return nil
	}
	return &ConsumeLimiter{
		bucket: NewTokenBucket(client),
		rate:   limitCfg.ConsumeUserRate,
		burst:  limitCfg.ConsumeUserBurst,
	}
}

// Allow reports whether the user may issue another consume request. Redis
// failures allow the request: losing throttling briefly is preferable to
// denying metered actions the quota would permit.
func (l *ConsumeLimiter) Allow(ctx context.Context, userID string) (bool, time.Duration) {
	if l == nil || userID == "" {
		return true, 0
	}
	res, err := l.bucket.Allow(ctx, fmt.Sprintf(keyConsumeUser, userID), l.rate, l.burst)
	if err != nil {
		return true, 0
	}
	return res.Allowed, res.RetryAfter
}
