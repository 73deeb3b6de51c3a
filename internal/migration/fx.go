package migration

import (
	"go.uber.org/fx"
	"gorm.io/gorm"

	auditdomain "github.com/chartschool/chartschool/internal/audit/domain"
	entitlementdomain "github.com/chartschool/chartschool/internal/entitlement/domain"
	indicatordomain "github.com/chartschool/chartschool/internal/indicator/domain"
	"github.com/chartschool/chartschool/internal/reconcile"
	userdomain "github.com/chartschool/chartschool/internal/user/domain"
)

var Module = fx.Module("migration",
	fx.Invoke(func(conn *gorm.DB) error {
		if conn.Dialector.Name() != "postgres" {
			// Local and in-memory databases bootstrap from the models
			// directly.
			return conn.AutoMigrate(
				&indicatordomain.Indicator{},
				&userdomain.User{},
				&entitlementdomain.Entitlement{},
				&auditdomain.AuditEntry{},
				&reconcile.Report{},
			)
		}

		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		return RunMigrations(sqlDB)
	}),
)
