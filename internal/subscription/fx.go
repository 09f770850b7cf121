package subscription

import (
	"go.uber.org/fx"

	"github.com/gradpath/gradpath/internal/subscription/repository"
	"github.com/gradpath/gradpath/internal/subscription/service"
)

var Module = fx.Module("subscription",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
