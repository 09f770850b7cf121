package entitlement

import (
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/gradpath/gradpath/internal/clock"
	entitlementcache "github.com/gradpath/gradpath/internal/entitlement/cache"
	entitlementdomain "github.com/gradpath/gradpath/internal/entitlement/domain"
	"github.com/gradpath/gradpath/internal/entitlement/repository"
	"github.com/gradpath/gradpath/internal/entitlement/service"
)

var Module = fx.Module("entitlement",
	fx.Provide(
		repository.Provide,
		provideCache,
		service.New,
	),
)

// provideCache prefers the shared redis mirror so every replica sees the
// same usage snapshots; without redis each process keeps its own.
func provideCache(client *redis.Client, log *zap.Logger, clk clock.Clock) entitlementdomain.Cache {
	if client == nil {
		return entitlementcache.NewMemory(clk)
	}
	return entitlementcache.NewRedis(client, log, clk)
}
