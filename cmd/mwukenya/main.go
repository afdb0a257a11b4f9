package main

import (
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"

	"github.com/supa-modo/mwukenya-server-sub002/internal/audit"
	"github.com/supa-modo/mwukenya-server-sub002/internal/clock"
	"github.com/supa-modo/mwukenya-server-sub002/internal/config"
	"github.com/supa-modo/mwukenya-server-sub002/internal/coverage"
	"github.com/supa-modo/mwukenya-server-sub002/internal/gateway"
	"github.com/supa-modo/mwukenya-server-sub002/internal/member"
	"github.com/supa-modo/mwukenya-server-sub002/internal/migration"
	"github.com/supa-modo/mwukenya-server-sub002/internal/observability"
	"github.com/supa-modo/mwukenya-server-sub002/internal/payment"
	"github.com/supa-modo/mwukenya-server-sub002/internal/policy"
	"github.com/supa-modo/mwukenya-server-sub002/internal/reconcile"
	"github.com/supa-modo/mwukenya-server-sub002/internal/scheme"
	"github.com/supa-modo/mwukenya-server-sub002/internal/server"
	"github.com/supa-modo/mwukenya-server-sub002/internal/subscription"
	"github.com/supa-modo/mwukenya-server-sub002/pkg/db"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		policy.Module,
		migration.Module,

		// Functional domains
		member.Module,
		scheme.Module,
		subscription.Module,
		coverage.Module,
		audit.Module,
		gateway.Module,
		payment.Module,
		reconcile.Module,

		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
