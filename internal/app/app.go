// Package app boots the accounting engine service.
package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/polydev-ai/quotaengine/internal/config"
	"github.com/polydev-ai/quotaengine/internal/db"
	"github.com/polydev-ai/quotaengine/internal/engine"
	enginehttp "github.com/polydev-ai/quotaengine/internal/http"
	"github.com/polydev-ai/quotaengine/internal/quota"
	"github.com/polydev-ai/quotaengine/internal/settings"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// settingsRefreshInterval is how often the settings snapshot is re-read.
const settingsRefreshInterval = time.Minute

// Migrate opens the database and runs migrations.
func Migrate(ctx context.Context, cfg *config.Config) error {
	conn, errOpen := db.Open(cfg.Database.DSN)
	if errOpen != nil {
		return errOpen
	}
	return db.Migrate(conn)
}

// RunServer boots the HTTP API, the settings refresher, and the quota reset
// scheduler, and serves until ctx is cancelled.
func RunServer(ctx context.Context, cfg *config.Config) error {
	conn, errOpen := db.Open(cfg.Database.DSN)
	if errOpen != nil {
		return errOpen
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return errMigrate
	}
	if errRefresh := settings.RefreshDBConfigSnapshot(ctx, conn); errRefresh != nil {
		log.WithError(errRefresh).Warn("app: initial settings load failed, using defaults")
	}

	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer func() { _ = rdb.Close() }()
	}

	eng := engine.New(conn)

	go settingsRefresher(ctx, conn)
	go quota.NewResetter(eng.Quotas(), rdb).Run(ctx)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	enginehttp.RegisterRoutes(router, eng, cfg.JWT)

	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errServe := make(chan error, 1)
	go func() {
		log.Infof("listening on %s", cfg.Server.Addr)
		errServe <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if errShutdown := server.Shutdown(shutdownCtx); errShutdown != nil {
			return errShutdown
		}
		return nil
	case errRun := <-errServe:
		if errors.Is(errRun, http.ErrServerClosed) {
			return nil
		}
		return errRun
	}
}

// settingsRefresher re-reads the settings table on a fixed interval so
// admin changes apply without a restart.
func settingsRefresher(ctx context.Context, conn *gorm.DB) {
	ticker := time.NewTicker(settingsRefreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if errRefresh := settings.RefreshDBConfigSnapshot(ctx, conn); errRefresh != nil {
				log.WithError(errRefresh).Warn("app: settings refresh failed")
			}
		}
	}
}
