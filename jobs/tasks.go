package jobs

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/mediaplan/mediaplan/internal/jobs"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskForecastGenerate regenerates the forecasts of one plan.
	TaskForecastGenerate = "forecast:generate"
	// TaskPacingScan evaluates pacing alerts across active plans.
	TaskPacingScan = "pacing:scan"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// ForecastGeneratePayload describes a queued forecast generation.
type ForecastGeneratePayload struct {
	PlanID        string `json:"plan_id"`
	Granularity   string `json:"granularity"`
	UserID        string `json:"user_id,omitempty"`
	EnvironmentID string `json:"environment_id,omitempty"`
}

// NewForecastGenerateTask constructs an Asynq task.
func NewForecastGenerateTask(payload ForecastGeneratePayload) (*asynq.Task, error) {
	if strings.TrimSpace(payload.PlanID) == "" {
		return nil, fmt.Errorf("jobs: forecast task requires plan id")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskForecastGenerate, data), nil
}

// PacingScanPayload scopes a pacing scan. An empty environment scans all.
type PacingScanPayload struct {
	EnvironmentID string `json:"environment_id,omitempty"`
}

// NewPacingScanTask constructs an Asynq task.
func NewPacingScanTask(environmentID string) (*asynq.Task, error) {
	data, err := json.Marshal(PacingScanPayload{EnvironmentID: environmentID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskPacingScan, data), nil
}
