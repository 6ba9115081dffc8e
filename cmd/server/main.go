package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/JonMunkholm/regionmap/internal/config"
	"github.com/JonMunkholm/regionmap/internal/core"
	"github.com/JonMunkholm/regionmap/internal/logging"
	"github.com/JonMunkholm/regionmap/internal/source"
	"github.com/JonMunkholm/regionmap/internal/web"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	logger.Info("configuration loaded", "config", cfg.String())

	ctx := context.Background()

	rows, closeRows, err := rowSource(ctx, cfg)
	if err != nil {
		logger.Error("failed to open billing source", "error", err, "hint", core.FormatUserError(err))
		os.Exit(1)
	}
	defer closeRows()

	normalize, err := core.RegionNormalizer(cfg.Source.RegionNormalizer)
	if err != nil {
		logger.Error("invalid region normalizer", "error", err)
		os.Exit(1)
	}

	service := core.NewService(
		rows,
		source.NewBoundaryFile(cfg.Boundary.Path, cfg.Boundary.RegionPath, cfg.Boundary.BillingProperty),
		core.ServiceConfig{
			Columns:       cfg.Source.Columns(),
			Workers:       cfg.Source.Workers,
			Normalizer:    normalize,
			WarningLimit:  cfg.Source.WarningLimit,
			ReloadTimeout: cfg.Reload.Timeout,
			ReloadWait:    cfg.Reload.MaxWait,
		},
		logger,
	)

	// The first snapshot must load; later reload failures keep the old one.
	startup := core.ContextWithTrigger(ctx, core.ReloadTrigger{Reason: core.TriggerStartup})
	if _, err := service.Reload(startup); err != nil {
		logger.Error("initial load failed", "error", err, "hint", core.FormatUserError(err))
		os.Exit(1)
	}

	server := web.NewServer(service, cfg)

	jobCtx, cancelJobs := context.WithCancel(context.Background())
	if cfg.Reload.Interval > 0 {
		go reloadLoop(jobCtx, service, cfg.Reload.Interval, logger)
	}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		logger.Info("shutting down...")
		cancelJobs()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if status := service.Limiter().Status(); status.Active > 0 {
			logger.Info("waiting for reload to finish", "active", status.Active)
			if err := service.Limiter().WaitForDrain(shutdownCtx); err != nil {
				logger.Warn("reload did not finish in time", "error", err)
			}
		}

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown error", "error", err)
		}
	}()

	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

// rowSource builds the configured billing source. The returned func
// releases any connections it holds.
func rowSource(ctx context.Context, cfg *config.Config) (core.RowSource, func(), error) {
	if cfg.Source.Kind != config.SourcePostgres {
		return source.NewFile(cfg.Source.Path, cfg.Source.Sheet), func() {}, nil
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		return nil, nil, err
	}
	poolConfig.MaxConns = int32(cfg.Database.MaxConns)
	poolConfig.MaxConnLifetime = cfg.Database.MaxConnLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	slog.Info("connected to billing database", "max_conns", poolConfig.MaxConns)

	return source.NewPostgres(pool, cfg.Database.Query, cfg.Source.Columns()), pool.Close, nil
}

// reloadLoop rebuilds the snapshot every interval until ctx ends.
func reloadLoop(ctx context.Context, service *core.Service, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	ctx = core.ContextWithTrigger(ctx, core.ReloadTrigger{Reason: core.TriggerInterval})

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, err := service.TryReload(ctx)
			switch {
			case err == nil, errors.Is(err, context.Canceled):
			case errors.Is(err, core.ErrReloadBusy):
				logger.Info("scheduled reload skipped, another reload is running")
			default:
				logger.Warn("scheduled reload failed", "error", err)
			}
		}
	}
}
