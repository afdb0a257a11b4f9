package member

import (
	"go.uber.org/fx"

	"github.com/supa-modo/mwukenya-server-sub002/internal/member/repository"
	"github.com/supa-modo/mwukenya-server-sub002/internal/member/service"
)

var Module = fx.Module("member.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
