package migration

import (
	"go.uber.org/fx"
	"gorm.io/gorm"

	auditdomain "github.com/supa-modo/mwukenya-server-sub002/internal/audit/domain"
	coveragedomain "github.com/supa-modo/mwukenya-server-sub002/internal/coverage/domain"
	memberdomain "github.com/supa-modo/mwukenya-server-sub002/internal/member/domain"
	paymentdomain "github.com/supa-modo/mwukenya-server-sub002/internal/payment/domain"
	schemedomain "github.com/supa-modo/mwukenya-server-sub002/internal/scheme/domain"
	subscriptiondomain "github.com/supa-modo/mwukenya-server-sub002/internal/subscription/domain"
	"github.com/supa-modo/mwukenya-server-sub002/pkg/db"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg db.Config) error {
		// The embedded migrations target postgres; sqlite deployments
		// build the schema with AutoMigrate instead.
		if cfg.Type != "postgres" {
			return conn.AutoMigrate(
				&memberdomain.Member{},
				&schemedomain.Scheme{},
				&subscriptiondomain.Subscription{},
				&coveragedomain.CoverageDay{},
				&paymentdomain.PaymentRecord{},
				&auditdomain.AuditEvent{},
			)
		}

		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		return RunMigrations(sqlDB)
	}),
)
