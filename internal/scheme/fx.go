package scheme

import (
	"go.uber.org/fx"

	"github.com/supa-modo/mwukenya-server-sub002/internal/scheme/repository"
	"github.com/supa-modo/mwukenya-server-sub002/internal/scheme/service"
)

var Module = fx.Module("scheme.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
