package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/mediaplan/mediaplan/internal/app"
	"github.com/mediaplan/mediaplan/internal/forecast"
	forecasthttp "github.com/mediaplan/mediaplan/internal/forecast/http"
	"github.com/mediaplan/mediaplan/internal/hierarchy"
	hierarchyhttp "github.com/mediaplan/mediaplan/internal/hierarchy/http"
	"github.com/mediaplan/mediaplan/internal/observability"
	"github.com/mediaplan/mediaplan/internal/pacing"
	pacinghttp "github.com/mediaplan/mediaplan/internal/pacing/http"
	"github.com/mediaplan/mediaplan/internal/platform/cache"
	"github.com/mediaplan/mediaplan/internal/platform/db"
	"github.com/mediaplan/mediaplan/internal/shared"
	"github.com/mediaplan/mediaplan/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	dbpool, err := db.Connect(ctx, cfg.PGDSN,
		db.ApplicationName("mediaplan-api"),
		db.MaxConns(cfg.PGMaxConns),
		db.StatementTimeout(cfg.PGStatementTimeout),
	)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	// The catalog cache degrades to direct loads when redis is unavailable.
	catalogCache, err := cache.Connect(ctx, cfg.RedisAddr, "mediaplan:catalog", cfg.CatalogCacheTTL)
	if err != nil {
		logger.Warn("redis unavailable, catalog cache disabled", slog.Any("error", err))
	}
	defer func() {
		if err := catalogCache.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	auditLogger := shared.NewAuditLogger(dbpool)

	hierarchyRepo := hierarchy.NewRepository(dbpool)
	hierarchyService := hierarchy.NewService(hierarchyRepo, catalogCache, logger)
	hierarchyHandler := hierarchyhttp.NewHandler(logger, hierarchyService)

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	jobsClient := jobs.NewClient(redisOpts)
	defer func() {
		if err := jobsClient.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}()

	forecastRepo := forecast.NewRepository(dbpool)
	forecastService := forecast.NewService(forecastRepo, auditLogger, logger)
	forecastHandler := forecasthttp.NewHandler(logger, forecastService, jobsClient)

	pacingRepo := pacing.NewRepository(dbpool)
	pacingService := pacing.NewService(pacingRepo, logger)
	pacingHandler := pacinghttp.NewHandler(logger, pacingService)

	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	metrics := observability.NewMetrics()

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		HierarchyHandler: hierarchyHandler,
		ForecastHandler:  forecastHandler,
		PacingHandler:    pacingHandler,
		JobHandler:       jobHandler,
		Metrics:          metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
