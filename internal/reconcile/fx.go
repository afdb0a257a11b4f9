package reconcile

import (
	"context"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"

	"github.com/supa-modo/mwukenya-server-sub002/internal/config"
)

var Module = fx.Module("reconcile",
	fx.Provide(ProvideLocker),
	fx.Provide(New),
	fx.Invoke(runWorker),
)

// ProvideLocker returns nil when no redis address is configured; the
// worker then runs in single-instance mode.
func ProvideLocker(cfg config.Config) *Locker {
	addr := strings.TrimSpace(cfg.RedisAddr)
	if addr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(cfg.RedisPassword),
		DB:       cfg.RedisDB,
	})
	return NewLocker(client)
}

func runWorker(lc fx.Lifecycle, worker *Worker) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			ctx, cancel := context.WithCancel(context.Background())

			go worker.RunForever(ctx)

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
