package main

import (
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"

	"github.com/chartschool/chartschool/internal/clock"
	"github.com/chartschool/chartschool/internal/config"
	"github.com/chartschool/chartschool/internal/migration"
	"github.com/chartschool/chartschool/internal/server"
	"github.com/chartschool/chartschool/pkg/db"
	"github.com/chartschool/chartschool/pkg/log"
)

func main() {
	app := fx.New(
		config.Module,
		log.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,
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
