package payment

import (
	"go.uber.org/fx"

	"github.com/supa-modo/mwukenya-server-sub002/internal/payment/repository"
	"github.com/supa-modo/mwukenya-server-sub002/internal/payment/service"
)

var Module = fx.Module("payment.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
