package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

// Route binds a task type to its handler.
type Route struct {
	Type    string
	Handler asynq.HandlerFunc
}

// Schedule enqueues Task on a cron expression evaluated in UTC.
type Schedule struct {
	Cron    string
	Task    *asynq.Task
	Options []asynq.Option
}

// WorkerConfig collects what the worker binary needs to process queues.
type WorkerConfig struct {
	RedisOpts       asynq.RedisClientOpt
	Logger          *slog.Logger
	Concurrency     int
	ShutdownTimeout time.Duration
	Routes          []Route
	Schedules       []Schedule
}

// Worker runs the forecast and pacing handlers plus the cron scheduler.
type Worker struct {
	server    *asynq.Server
	mux       *asynq.ServeMux
	scheduler *asynq.Scheduler
	logger    *slog.Logger
}

// NewWorker validates cfg and prepares the server. Nothing connects to
// Redis until Run.
func NewWorker(cfg WorkerConfig) (*Worker, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 5
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 20 * time.Second
	}
	if len(cfg.Routes) == 0 {
		return nil, errors.New("jobs: worker has no routes")
	}

	mux := asynq.NewServeMux()
	mux.Use(logTask(logger))
	for _, route := range cfg.Routes {
		if route.Type == "" || route.Handler == nil {
			return nil, fmt.Errorf("jobs: incomplete route %q", route.Type)
		}
		mux.HandleFunc(route.Type, route.Handler)
	}

	server := asynq.NewServer(cfg.RedisOpts, asynq.Config{
		Concurrency:     cfg.Concurrency,
		Queues:          map[string]int{QueueDefault: 1},
		ShutdownTimeout: cfg.ShutdownTimeout,
		ErrorHandler:    asynq.ErrorHandlerFunc(reportFailure(logger)),
	})

	w := &Worker{server: server, mux: mux, logger: logger}
	if len(cfg.Schedules) == 0 {
		return w, nil
	}
	w.scheduler = asynq.NewScheduler(cfg.RedisOpts, &asynq.SchedulerOpts{
		Location: time.UTC,
		PostEnqueueFunc: func(info *asynq.TaskInfo, err error) {
			if err != nil {
				logger.Error("scheduled enqueue", slog.Any("error", err))
				return
			}
			logger.Info("scheduled enqueue", slog.String("task", info.Type), slog.String("task_id", info.ID))
		},
	})
	for _, s := range cfg.Schedules {
		if s.Cron == "" || s.Task == nil {
			return nil, fmt.Errorf("jobs: incomplete schedule %q", s.Cron)
		}
		if _, err := w.scheduler.Register(s.Cron, s.Task, s.Options...); err != nil {
			return nil, fmt.Errorf("jobs: register %s on %q: %w", s.Task.Type(), s.Cron, err)
		}
	}
	return w, nil
}

// Run processes tasks until ctx is cancelled, then drains in-flight work.
func (w *Worker) Run(ctx context.Context) error {
	if w == nil || w.server == nil {
		return errors.New("jobs: worker not configured")
	}
	if err := w.server.Start(w.mux); err != nil {
		return fmt.Errorf("jobs: start server: %w", err)
	}
	if w.scheduler != nil {
		if err := w.scheduler.Start(); err != nil {
			w.server.Shutdown()
			return fmt.Errorf("jobs: start scheduler: %w", err)
		}
	}
	<-ctx.Done()
	w.logger.Info("worker stopping")
	if w.scheduler != nil {
		w.scheduler.Shutdown()
	}
	w.server.Shutdown()
	return ctx.Err()
}

// logTask logs the outcome and duration of every task.
func logTask(logger *slog.Logger) asynq.MiddlewareFunc {
	return func(next asynq.Handler) asynq.Handler {
		return asynq.HandlerFunc(func(ctx context.Context, task *asynq.Task) error {
			start := time.Now()
			err := next.ProcessTask(ctx, task)
			attrs := []any{
				slog.String("task", task.Type()),
				slog.Duration("duration", time.Since(start)),
			}
			if id, ok := asynq.GetTaskID(ctx); ok {
				attrs = append(attrs, slog.String("task_id", id))
			}
			if err != nil {
				logger.Warn("task failed", append(attrs, slog.Any("error", err))...)
				return err
			}
			logger.Debug("task done", attrs...)
			return nil
		})
	}
}

// reportFailure escalates to error once a task exhausted its retries.
func reportFailure(logger *slog.Logger) func(context.Context, *asynq.Task, error) {
	return func(ctx context.Context, task *asynq.Task, err error) {
		retried, _ := asynq.GetRetryCount(ctx)
		maxRetry, _ := asynq.GetMaxRetry(ctx)
		attrs := []any{
			slog.String("task", task.Type()),
			slog.Int("retried", retried),
			slog.Int("max_retry", maxRetry),
			slog.Any("error", err),
		}
		if errors.Is(err, asynq.SkipRetry) || retried >= maxRetry {
			logger.Error("task archived", attrs...)
			return
		}
		logger.Warn("task will retry", attrs...)
	}
}
