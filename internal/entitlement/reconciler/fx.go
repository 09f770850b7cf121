package reconciler

import (
	"context"

	"go.uber.org/fx"

	"github.com/gradpath/gradpath/internal/config"
)

var Module = fx.Module("reconciler",
	fx.Provide(New),
	fx.Invoke(Register),
)

func Register(lc fx.Lifecycle, cfg config.Config, rec *Reconciler) {
	if !cfg.Reconciler.Enabled {
		return
	}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			ctx, cancel := context.WithCancel(context.Background())

			go rec.RunForever(ctx)

			lc.Append(fx.Hook{
				OnStop: func(context.Context) error {
					cancel()
					return nil
				},
			})

			return nil
		},
	})
}
