package cache

import (
	"context"
	"encoding/json"

	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/gradpath/gradpath/internal/clock"
	entitlementdomain "github.com/gradpath/gradpath/internal/entitlement/domain"
)

const redisKeyPrefix = "entitlement:usage:"

type redisCache struct {
	client *redis.Client
	log    *zap.Logger
	clock  clock.Clock
}

// NewRedis returns a redis-backed usage cache. Cache operations are best
// effort: redis errors degrade to cache misses, and a malformed entry is
// dropped and treated as a miss rather than surfaced to the caller.
func NewRedis(client *redis.Client, log *zap.Logger, clk clock.Clock) entitlementdomain.Cache {
	return &redisCache{
		client: client,
		log:    log.Named("entitlement.cache"),
		clock:  clk,
	}
}

func (c *redisCache) Get(ctx context.Context, userID, featureID string) (entitlementdomain.CachedUsage, bool) {
	raw, err := c.client.Get(ctx, redisKeyPrefix+usageKey(userID, featureID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.log.Debug("cache read failed", zap.Error(err))
		}
		return entitlementdomain.CachedUsage{}, false
	}

	var cached entitlementdomain.CachedUsage
	if err := json.Unmarshal(raw, &cached); err != nil {
		c.log.Warn("dropping corrupt cache entry",
			zap.String("feature_id", featureID),
			zap.Error(err),
		)
		c.Invalidate(ctx, userID, featureID)
		return entitlementdomain.CachedUsage{}, false
	}
	return cached, true
}

func (c *redisCache) Put(ctx context.Context, userID, featureID string, record entitlementdomain.UsageRecord) {
	cached := entitlementdomain.CachedUsage{
		Record:    record,
		FetchedAt: c.clock.Now().UTC(),
	}
	raw, err := json.Marshal(cached)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, redisKeyPrefix+usageKey(userID, featureID), raw, retentionTTL).Err(); err != nil {
		c.log.Debug("cache write failed", zap.Error(err))
	}
}

func (c *redisCache) Invalidate(ctx context.Context, userID, featureID string) {
	if err := c.client.Del(ctx, redisKeyPrefix+usageKey(userID, featureID)).Err(); err != nil {
		c.log.Debug("cache invalidate failed", zap.Error(err))
	}
}
