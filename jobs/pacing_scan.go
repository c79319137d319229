package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/mediaplan/mediaplan/internal/jobs"
	"github.com/mediaplan/mediaplan/internal/pacing"
)

// PacingScanner computes alerts across plans.
type PacingScanner interface {
	Scan(ctx context.Context, environmentID string) ([]pacing.PlanScan, error)
}

// PacingScanJob evaluates pacing alerts and overdue payments for every plan
// with forecasts.
type PacingScanJob struct {
	Scanner PacingScanner
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewPacingScanJob initialises the pacing scan handler.
func NewPacingScanJob(scanner PacingScanner, logger *slog.Logger, metrics *jobmetrics.Metrics) *PacingScanJob {
	return &PacingScanJob{
		Scanner: scanner,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle executes the pacing scan.
func (j *PacingScanJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Scanner == nil {
		return errors.New("pacing scan: handler not configured")
	}
	var payload PacingScanPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}

	start := j.now()
	tracker := j.metrics().Track(TaskPacingScan)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(slog.String("environment_id", payload.EnvironmentID))
	logger.Info("starting pacing scan")

	scans, err := j.Scanner.Scan(ctx, payload.EnvironmentID)
	if err != nil {
		resultErr = err
		logger.Error("scan failed", slog.Any("error", err))
	}

	alerts, overdue := 0, 0
	for _, s := range scans {
		for _, a := range s.Alerts {
			logger.Warn("pacing alert",
				slog.String("plan_id", s.Plan.ID),
				slog.String("type", string(a.Type)),
				slog.String("severity", string(a.Severity)),
				slog.Time("period_start", a.PeriodStart),
				slog.Float64("variance_percent", a.VariancePercent),
			)
			j.metrics().AddAlerts(string(a.Type), string(a.Severity), 1)
		}
		for _, p := range s.Payments {
			logger.Warn("overdue payment",
				slog.String("plan_id", s.Plan.ID),
				slog.String("payment_id", p.PaymentID),
				slog.String("severity", string(p.Severity)),
				slog.Int("days_overdue", p.DaysOverdue),
			)
			j.metrics().AddAlerts("payment_overdue", string(p.Severity), 1)
		}
		alerts += len(s.Alerts)
		overdue += len(s.Payments)
	}

	logger.Info("completed pacing scan",
		slog.Int("plans", len(scans)),
		slog.Int("alerts", alerts),
		slog.Int("overdue_payments", overdue),
		slog.Duration("duration", j.now().Sub(start)),
	)
	return resultErr
}

func (j *PacingScanJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskPacingScan))
	}
	return slog.Default().With(slog.String("job", TaskPacingScan))
}

func (j *PacingScanJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *PacingScanJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
