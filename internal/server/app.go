// Package server wires the sync server: schema migrations, the Postgres
// repositories, the optional S3 archive, per-device rate limiting and the
// gRPC endpoint.
package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/dmitrijs2005/gutscan/internal/logging"
	"github.com/dmitrijs2005/gutscan/internal/server/archive"
	"github.com/dmitrijs2005/gutscan/internal/server/config"
	"github.com/dmitrijs2005/gutscan/internal/server/migrations"
	"github.com/dmitrijs2005/gutscan/internal/server/ratelimit"
	"github.com/dmitrijs2005/gutscan/internal/server/repositories/postgres"
	"github.com/dmitrijs2005/gutscan/internal/server/services"

	gs "github.com/dmitrijs2005/gutscan/internal/server/grpc"
)

// Seams for tests.
var (
	migrateUp   = migrations.Up
	openDB      = postgres.New
	newArchiver = func(ctx context.Context, cfg archive.Config) (archive.Archiver, error) {
		return archive.NewS3Archiver(ctx, cfg)
	}
)

type App struct {
	config *config.Config
	logger logging.Logger
	db     *postgres.DB
	server *gs.GRPCServer
}

// NewLogger builds the production zap logger at the given level.
func NewLogger(level string) (*logging.ZapLogger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	zc := zap.NewProductionConfig()
	zc.Level = lvl
	l, err := zc.Build()
	if err != nil {
		return nil, err
	}
	return logging.NewZapLogger(l), nil
}

func NewApp(ctx context.Context, c *config.Config, logger logging.Logger) (*App, error) {
	if err := migrateUp(ctx, c.DatabaseDSN); err != nil {
		return nil, fmt.Errorf("migrations failed: %w", err)
	}

	db, err := openDB(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	var arch archive.Archiver = archive.Nop{}
	if c.ArchiveEnabled {
		arch, err = newArchiver(ctx, archive.Config{
			Bucket:       c.S3Bucket,
			Region:       c.S3Region,
			BaseEndpoint: c.S3BaseEndpoint,
			AccessKey:    c.S3AccessKey,
			SecretKey:    c.S3SecretKey,
		})
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("archive init error: %w", err)
		}
	}

	svc := services.NewSyncService(postgres.NewScanRepo(db), postgres.NewFoodRepo(db), arch, logger)
	lim := ratelimit.NewStore(ratelimit.Config{Interval: c.RateInterval, Burst: c.RateBurst})
	srv := gs.NewGRPCServer(c.ListenAddr, logger, svc, lim, c.SecretKey)

	return &App{config: c, logger: logger, db: db, server: srv}, nil
}

// Run serves until ctx is cancelled or SIGINT/SIGTERM/SIGQUIT arrives, then
// closes the database pool.
func (app *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()
	defer app.db.Close()

	app.logger.Info(ctx, "Starting app...", "addr", app.config.ListenAddr, "archive", app.config.ArchiveEnabled)

	if err := app.server.Run(ctx); err != nil {
		app.logger.Error(ctx, "server stopped", "error", err)
		return err
	}
	app.logger.Info(ctx, "server stopped")
	return nil
}
