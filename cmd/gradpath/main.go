package main

import (
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"

	"github.com/gradpath/gradpath/internal/catalog"
	"github.com/gradpath/gradpath/internal/clock"
	"github.com/gradpath/gradpath/internal/config"
	"github.com/gradpath/gradpath/internal/entitlement"
	"github.com/gradpath/gradpath/internal/entitlement/reconciler"
	"github.com/gradpath/gradpath/internal/migration"
	"github.com/gradpath/gradpath/internal/observability"
	"github.com/gradpath/gradpath/internal/ratelimit"
	"github.com/gradpath/gradpath/internal/redisclient"
	"github.com/gradpath/gradpath/internal/server"
	"github.com/gradpath/gradpath/internal/subscription"
	"github.com/gradpath/gradpath/pkg/db"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		clock.Module,
		db.Module,
		migration.Module,
		redisclient.Module,
		catalog.Module,
		ratelimit.Module,
		subscription.Module,
		entitlement.Module,
		reconciler.Module,
		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
