package observability

import (
	"go.uber.org/fx"

	"github.com/supa-modo/mwukenya-server-sub002/internal/config"
	"github.com/supa-modo/mwukenya-server-sub002/internal/observability/logger"
	"github.com/supa-modo/mwukenya-server-sub002/internal/observability/metrics"
)

var Module = fx.Module("observability",
	fx.Provide(
		provideLoggerConfig,
		logger.New,
		metrics.New,
	),
)

func provideLoggerConfig(cfg config.Config) logger.Config {
	return logger.Config{
		ServiceName: cfg.AppName,
		Environment: cfg.Environment,
		Version:     cfg.AppVersion,
		Level:       cfg.LogLevel,
		Format:      cfg.LogFormat,
	}
}
