package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/polydev-ai/quotaengine/internal/app"
	"github.com/polydev-ai/quotaengine/internal/config"
	"github.com/polydev-ai/quotaengine/internal/logging"

	log "github.com/sirupsen/logrus"
)

func main() {
	configPath := flag.String("config", config.DefaultConfigPath, "path to the configuration file")
	migrateOnly := flag.Bool("migrate", false, "run database migrations and exit")
	flag.Parse()

	cfg, errLoad := config.Load(*configPath)
	if errLoad != nil {
		log.WithError(errLoad).Fatal("load configuration")
	}
	logging.Setup(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *migrateOnly {
		if errMigrate := app.Migrate(ctx, cfg); errMigrate != nil {
			log.WithError(errMigrate).Fatal("migrate database")
		}
		return
	}

	if errRun := app.RunServer(ctx, cfg); errRun != nil {
		log.WithError(errRun).Fatal("server exited")
	}
}
