package forecast

import (
	"fmt"
	"strings"
	"time"

	"github.com/mediaplan/mediaplan/internal/shared"
)

// Granularity is the time-bucket size of a forecast.
type Granularity string

const (
	GranularityDay   Granularity = "day"
	GranularityWeek  Granularity = "week"
	GranularityMonth Granularity = "month"
)

// ParseGranularity validates a wire value.
func ParseGranularity(s string) (Granularity, error) {
	g := Granularity(strings.ToLower(strings.TrimSpace(s)))
	switch g {
	case GranularityDay, GranularityWeek, GranularityMonth:
		return g, nil
	}
	return "", fmt.Errorf("forecast: unknown granularity %q: %w", s, shared.ErrInvalidInput)
}

// Plan is the slice of a media plan used to derive forecasts.
type Plan struct {
	ID            string     `json:"id" toml:"id" yaml:"id"`
	EnvironmentID string     `json:"environment_id" toml:"environment_id" yaml:"environment_id"`
	StartDate     *time.Time `json:"start_date" toml:"start_date" yaml:"start_date"`
	EndDate       *time.Time `json:"end_date" toml:"end_date" yaml:"end_date"`
	TotalBudget   float64    `json:"total_budget" toml:"total_budget" yaml:"total_budget"`
}

// Dimensions are the hierarchy keys attached to a forecast period.
type Dimensions struct {
	SubdivisionID *string `json:"subdivision_id" toml:"subdivision_id" yaml:"subdivision_id"`
	MomentID      *string `json:"moment_id" toml:"moment_id" yaml:"moment_id"`
	FunnelStageID *string `json:"funnel_stage_id" toml:"funnel_stage_id" yaml:"funnel_stage_id"`
}

// Line is a non-deleted media line of a plan.
type Line struct {
	ID         string     `json:"id" toml:"id" yaml:"id"`
	Budget     float64    `json:"budget" toml:"budget" yaml:"budget"`
	StartDate  *time.Time `json:"start_date" toml:"start_date" yaml:"start_date"`
	EndDate    *time.Time `json:"end_date" toml:"end_date" yaml:"end_date"`
	Dimensions `yaml:",inline"`
}

// Window is an inclusive calendar range.
type Window struct {
	Start time.Time `json:"period_start"`
	End   time.Time `json:"period_end"`
}

// Period is one generated forecast bucket.
type Period struct {
	Window
	PlannedAmount float64    `json:"planned_amount"`
	Dimensions    Dimensions `json:"dimensions"`
}

// Forecast is a persisted period.
type Forecast struct {
	ID            string      `json:"id"`
	PlanID        string      `json:"plan_id"`
	EnvironmentID string      `json:"environment_id"`
	Granularity   Granularity `json:"granularity"`
	Period
	Version   int       `json:"version"`
	Locked    bool      `json:"is_locked"`
	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}

// GenerateRequest asks for a new forecast batch of a plan.
type GenerateRequest struct {
	PlanID        string      `json:"plan_id" validate:"required"`
	Granularity   Granularity `json:"granularity" validate:"required,oneof=day week month"`
	UserID        string      `json:"user_id"`
	EnvironmentID string      `json:"environment_id"`
}

// Validate ensures the request is usable.
func (r GenerateRequest) Validate() error {
	_, err := r.Normalize()
	return err
}

// Normalize validates the request and returns a copy carrying the canonical
// granularity.
func (r GenerateRequest) Normalize() (GenerateRequest, error) {
	if strings.TrimSpace(r.PlanID) == "" {
		return r, fmt.Errorf("forecast: plan required: %w", shared.ErrInvalidInput)
	}
	g, err := ParseGranularity(string(r.Granularity))
	if err != nil {
		return r, err
	}
	r.Granularity = g
	return r, nil
}

// Result is the structured outcome reported to callers.
type Result struct {
	Success        bool        `json:"success"`
	Message        string      `json:"message"`
	PeriodsCreated int         `json:"periods_created"`
	Version        int         `json:"version,omitempty"`
	Granularity    Granularity `json:"granularity,omitempty"`
}

var (
	// ErrPlanNotFound occurs when the plan is missing.
	ErrPlanNotFound = fmt.Errorf("forecast: plan not found: %w", shared.ErrNotFound)
	// ErrMissingDates occurs when the plan lacks a start or end date.
	ErrMissingDates = fmt.Errorf("forecast: plan has no start or end date: %w", shared.ErrInvalidInput)
	// ErrNoPeriods occurs when the date range produces no period.
	ErrNoPeriods = fmt.Errorf("forecast: no periods to generate: %w", shared.ErrInvalidInput)
)
