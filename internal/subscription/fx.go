package subscription

import (
	"go.uber.org/fx"

	"github.com/supa-modo/mwukenya-server-sub002/internal/subscription/repository"
	"github.com/supa-modo/mwukenya-server-sub002/internal/subscription/service"
)

var Module = fx.Module("subscription.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
