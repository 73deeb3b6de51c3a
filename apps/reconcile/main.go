package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/chartschool/chartschool/internal/audit"
	"github.com/chartschool/chartschool/internal/clock"
	"github.com/chartschool/chartschool/internal/config"
	"github.com/chartschool/chartschool/internal/entitlement"
	"github.com/chartschool/chartschool/internal/gateway"
	"github.com/chartschool/chartschool/internal/indicator"
	"github.com/chartschool/chartschool/internal/migration"
	"github.com/chartschool/chartschool/internal/ratelimit"
	"github.com/chartschool/chartschool/internal/reconcile"
	"github.com/chartschool/chartschool/internal/user"
	"github.com/chartschool/chartschool/pkg/db"
	"github.com/chartschool/chartschool/pkg/log"
)

func main() {
	file := flag.String("file", "", "path to the cohort csv")
	flag.Parse()

	if *file == "" {
		flag.Usage()
		os.Exit(2)
	}

	app := fx.New(
		config.Module,
		log.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		indicator.Module,
		user.Module,
		gateway.Module,
		entitlement.Module,
		audit.Module,
		ratelimit.Module,
		reconcile.Module,

		fx.Invoke(func(lc fx.Lifecycle, sd fx.Shutdowner, svc reconcile.Service, logger *zap.Logger) {
			lc.Append(fx.Hook{
				OnStart: func(context.Context) error {
					go runReconciliation(sd, svc, logger, *file)
					return nil
				},
			})
		}),
	)
	app.Run()
}

func runReconciliation(sd fx.Shutdowner, svc reconcile.Service, logger *zap.Logger, path string) {
	defer sd.Shutdown()

	f, err := os.Open(path)
	if err != nil {
		logger.Error("open cohort csv", zap.Error(err))
		return
	}
	defer f.Close()

	cohort, err := reconcile.LoadCohortCSV(f)
	if err != nil {
		logger.Error("parse cohort csv", zap.Error(err))
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	report, err := svc.Run(ctx, cohort)
	if err != nil {
		logger.Error("reconciliation run failed", zap.Error(err))
		return
	}

	logger.Info("reconciliation finished",
		zap.String("run_id", report.RunID),
		zap.Int("synced", report.Synced),
		zap.Int("failed", report.Failed),
		zap.Int("skipped", report.Skipped),
		zap.Bool("cancelled", report.Cancelled),
	)
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
