package audit

import (
	"go.uber.org/fx"

	"github.com/supa-modo/mwukenya-server-sub002/internal/audit/service"
)

var Module = fx.Module("audit.service",
	fx.Provide(service.NewService),
)
