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
	"github.com/chartschool/chartschool/internal/entitlement/bulk"
	"github.com/chartschool/chartschool/internal/gateway"
	"github.com/chartschool/chartschool/internal/indicator"
	"github.com/chartschool/chartschool/internal/migration"
	"github.com/chartschool/chartschool/internal/ratelimit"
	"github.com/chartschool/chartschool/internal/user"
	"github.com/chartschool/chartschool/pkg/db"
	"github.com/chartschool/chartschool/pkg/log"
)

func main() {
	file := flag.String("file", "", "path to the provisioning csv")
	actor := flag.String("actor", "", "operator identity recorded in the audit trail")
	flag.Parse()

	if *file == "" || *actor == "" {
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

		// No server module: this binary processes one file and exits.
		fx.Invoke(func(lc fx.Lifecycle, sd fx.Shutdowner, runner *bulk.Runner, logger *zap.Logger) {
			lc.Append(fx.Hook{
				OnStart: func(context.Context) error {
					go runBatch(sd, runner, logger, *file, *actor)
					return nil
				},
			})
		}),
	)
	app.Run()
}

func runBatch(sd fx.Shutdowner, runner *bulk.Runner, logger *zap.Logger, path, actor string) {
	defer sd.Shutdown()

	f, err := os.Open(path)
	if err != nil {
		logger.Error("open provisioning csv", zap.Error(err))
		return
	}
	defer f.Close()

	items, err := bulk.LoadCSV(f)
	if err != nil {
		logger.Error("parse provisioning csv", zap.Error(err))
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	summary := runner.Run(ctx, items, actor)
	logger.Info("bulk provisioning finished",
		zap.Int("processed", summary.Processed),
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("failed", summary.Failed),
		zap.Int("skipped", summary.Skipped),
		zap.Bool("cancelled", summary.Cancelled),
	)
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
