package forecast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/mediaplan/mediaplan/internal/jobs"
	"github.com/mediaplan/mediaplan/internal/shared"
	"github.com/mediaplan/mediaplan/jobs"
)

// GenerateJob processes queued forecast generations.
type GenerateJob struct {
	service *Service
	logger  *slog.Logger
	metrics *jobmetrics.Metrics
}

// NewGenerateJob constructs a job handler.
func NewGenerateJob(service *Service, logger *slog.Logger, metrics *jobmetrics.Metrics) *GenerateJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &GenerateJob{service: service, logger: logger, metrics: metrics}
}

// Handle fulfils the asynq.HandlerFunc contract. Requests that can never
// succeed are not retried.
func (j *GenerateJob) Handle(ctx context.Context, task *asynq.Task) (err error) {
	var payload jobs.ForecastGeneratePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("forecast job: decode payload: %v: %w", err, asynq.SkipRetry)
	}
	tracker := j.metrics.Track(jobs.TaskForecastGenerate)
	defer func() {
		err = tracker.End(err)
	}()

	res, err := j.service.Generate(ctx, GenerateRequest{
		PlanID:        payload.PlanID,
		Granularity:   Granularity(payload.Granularity),
		UserID:        payload.UserID,
		EnvironmentID: payload.EnvironmentID,
	})
	if err != nil {
		j.logger.Error("forecast job",
			slog.String("plan_id", payload.PlanID),
			slog.String("message", res.Message),
			slog.Any("error", err),
		)
		if errors.Is(err, shared.ErrInvalidInput) || errors.Is(err, shared.ErrNotFound) {
			return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
		}
		return err
	}
	j.metrics.AddPeriods(string(res.Granularity), res.PeriodsCreated)
	return nil
}
