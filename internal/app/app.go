// Package app boots the service: configuration, storage, realtime hub, and
// the HTTP server with graceful shutdown.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pixelframe/pixelframe/internal/config"
	"github.com/pixelframe/pixelframe/internal/db"
	"github.com/pixelframe/pixelframe/internal/http/api"
	"github.com/pixelframe/pixelframe/internal/logging"
	"github.com/pixelframe/pixelframe/internal/permission"
	"github.com/pixelframe/pixelframe/internal/placement"
	"github.com/pixelframe/pixelframe/internal/quota"
	"github.com/pixelframe/pixelframe/internal/realtime"
	"github.com/pixelframe/pixelframe/internal/snapshot"
	log "github.com/sirupsen/logrus"
)

// Migrate opens the database and runs migrations.
func Migrate(_ context.Context, configPath string) error {
	cfg, errLoad := config.Load(configPath)
	if errLoad != nil {
		return errLoad
	}
	conn, errOpen := db.Open(cfg.Database.DSN)
	if errOpen != nil {
		return errOpen
	}
	return db.Migrate(conn)
}

// SnapshotOnce runs a single compaction pass over every active frame and
// exits. Useful from cron when the in-process compactor is not wanted.
func SnapshotOnce(ctx context.Context, configPath string) error {
	cfg, errLoad := config.Load(configPath)
	if errLoad != nil {
		return errLoad
	}
	logging.Setup(cfg.Logging)
	conn, errOpen := db.Open(cfg.Database.DSN)
	if errOpen != nil {
		return errOpen
	}
	store := snapshot.NewStore(conn, cfg.Snapshot.Retain())
	compactor := snapshot.NewCompactor(conn, store, cfg.Snapshot.Interval())
	compactor.RunOnce(ctx)
	return nil
}

// RunServer boots the full service and blocks until ctx is cancelled.
func RunServer(ctx context.Context, configPath string) error {
	cfg, errLoad := config.Load(configPath)
	if errLoad != nil {
		return errLoad
	}
	logging.Setup(cfg.Logging)

	conn, errOpen := db.Open(cfg.Database.DSN)
	if errOpen != nil {
		return errOpen
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return errMigrate
	}
	log.Infof("database ready (%s)", db.DialectName(conn))

	hub := realtime.NewHub()
	defer hub.Close()
	if cfg.Redis.Enabled() {
		if db.IsSQLite(conn) {
			log.Warn("redis bridge enabled with a sqlite database; cross-instance fan-out needs a shared postgres store")
		}
		bridge, errBridge := realtime.StartBridge(ctx, cfg.Redis, hub)
		if errBridge != nil {
			return fmt.Errorf("start redis bridge: %w", errBridge)
		}
		defer bridge.Close()
		log.Infof("realtime bridge connected to %s", cfg.Redis.Addr)
	}

	quotaMgr := quota.NewManager(conn)
	permissions := permission.NewStore(conn)
	snapshots := snapshot.NewStore(conn, cfg.Snapshot.Retain())
	placements := placement.NewService(conn, quotaMgr, permissions, hub)

	compactor := snapshot.NewCompactor(conn, snapshots, cfg.Snapshot.Interval())
	go compactor.Run(ctx)

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	api.RegisterRoutes(engine, api.Deps{
		DB:          conn,
		JWT:         cfg.JWT,
		Quota:       quotaMgr,
		Permissions: permissions,
		Placement:   placements,
		Snapshots:   snapshots,
		Hub:         hub,
	})

	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("listening on %s", cfg.Server.Addr)
		if errServe := server.ListenAndServe(); errServe != nil && !errors.Is(errServe, http.ErrServerClosed) {
			errCh <- errServe
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if errShutdown := server.Shutdown(shutdownCtx); errShutdown != nil {
			log.Errorf("shutdown: %v", errShutdown)
		}
		return <-errCh
	case errServe := <-errCh:
		return errServe
	}
}
