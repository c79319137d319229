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
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mediaplan/mediaplan/internal/app"
	"github.com/mediaplan/mediaplan/internal/forecast"
	jobmetrics "github.com/mediaplan/mediaplan/internal/jobs"
	"github.com/mediaplan/mediaplan/internal/pacing"
	"github.com/mediaplan/mediaplan/internal/platform/db"
	"github.com/mediaplan/mediaplan/internal/shared"
	"github.com/mediaplan/mediaplan/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
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

	pool, err := db.Connect(ctx, cfg.PGDSN,
		db.ApplicationName("mediaplan-worker"),
		db.MaxConns(cfg.PGMaxConns),
		db.StatementTimeout(cfg.PGStatementTimeout),
	)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	metrics := jobmetrics.NewMetrics(nil)

	forecastService := forecast.NewService(forecast.NewRepository(pool), shared.NewAuditLogger(pool), logger)
	forecastJob := forecast.NewGenerateJob(forecastService, logger, metrics)

	pacingService := pacing.NewService(pacing.NewRepository(pool), logger)
	pacingJob := jobs.NewPacingScanJob(pacingService, logger, metrics)

	scanTask, err := jobs.NewPacingScanTask("")
	if err != nil {
		logger.Error("build pacing scan task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:      logger,
		Concurrency: cfg.WorkerConcurrency,
		Routes: []jobs.Route{
			{Type: jobs.TaskForecastGenerate, Handler: forecastJob.Handle},
			{Type: jobs.TaskPacingScan, Handler: pacingJob.Handle},
		},
		Schedules: []jobs.Schedule{
			{Cron: cfg.PacingScanCron, Task: scanTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	metricsServer := &http.Server{
		Addr:              cfg.WorkerMetricsAddr,
		Handler:           promhttp.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Warn("worker metrics server", slog.Any("error", err))
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	logger.Info("starting worker", slog.Int("concurrency", cfg.WorkerConcurrency), slog.String("pacing_cron", cfg.PacingScanCron))
	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
