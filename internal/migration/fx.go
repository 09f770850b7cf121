package migration

import (
	"go.uber.org/fx"
	"gorm.io/gorm"

	"github.com/gradpath/gradpath/internal/config"
	entitlementdomain "github.com/gradpath/gradpath/internal/entitlement/domain"
	subscriptiondomain "github.com/gradpath/gradpath/internal/subscription/domain"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		if cfg.DBType == "postgres" {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			return RunMigrations(sqlDB)
		}

		// mysql and sqlite are dev/test conveniences; the versioned
		// migrations target postgres only.
		return conn.AutoMigrate(
			&entitlementdomain.UsageRecord{},
			&subscriptiondomain.Subscription{},
		)
	}),
)
