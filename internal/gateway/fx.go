package gateway

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/supa-modo/mwukenya-server-sub002/internal/config"
	"github.com/supa-modo/mwukenya-server-sub002/internal/gateway/domain"
	"github.com/supa-modo/mwukenya-server-sub002/internal/gateway/mpesa"
)

var Module = fx.Module("gateway",
	fx.Provide(func(cfg config.MpesaConfig, log *zap.Logger) domain.Gateway {
		return mpesa.NewClient(cfg, log)
	}),
)
