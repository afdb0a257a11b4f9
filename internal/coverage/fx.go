package coverage

import (
	"go.uber.org/fx"

	"github.com/supa-modo/mwukenya-server-sub002/internal/coverage/service"
)

var Module = fx.Module("coverage.service",
	fx.Provide(service.NewService),
)
