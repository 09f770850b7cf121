// Package cache provides the ephemeral usage mirrors. Neither
// implementation is ever authoritative: entries are discarded whenever
// reconciliation detects divergence from the durable store.
package cache

import (
	"context"
	"strings"
	"time"

	"github.com/gradpath/gradpath/internal/cache"
	"github.com/gradpath/gradpath/internal/clock"
	entitlementdomain "github.com/gradpath/gradpath/internal/entitlement/domain"
)

// retentionTTL bounds how long a snapshot is kept at all. Freshness for
// normal reads is judged by the service against CachedUsage.FetchedAt;
// retention only caps how old a stale fallback may get.
const retentionTTL = time.Hour

type memoryCache struct {
	entries cache.Cache[string, entitlementdomain.CachedUsage]
	clock   clock.Clock
}

// NewMemory returns the in-process usage cache.
func NewMemory(clk clock.Clock) entitlementdomain.Cache {
	return &memoryCache{
		entries: cache.NewTTLCache[string, entitlementdomain.CachedUsage](),
		clock:   clk,
	}
}

func (c *memoryCache) Get(_ context.Context, userID, featureID string) (entitlementdomain.CachedUsage, bool) {
	return c.entries.Get(usageKey(userID, featureID))
}

func (c *memoryCache) Put(_ context.Context, userID, featureID string, record entitlementdomain.UsageRecord) {
	c.entries.Set(usageKey(userID, featureID), entitlementdomain.CachedUsage{
		Record:    record,
		FetchedAt: c.clock.Now().UTC(),
	}, retentionTTL)
}

func (c *memoryCache) Invalidate(_ context.Context, userID, featureID string) {
	c.entries.Delete(usageKey(userID, featureID))
}

// usageKey joins the scoping parts verbatim. User ids are opaque and
// case-sensitive; folding them would alias distinct users onto one entry.
func usageKey(parts ...string) string {
	values := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		values = append(values, trimmed)
	}
	return strings.Join(values, "|")
}
