package pacing

import (
	"fmt"
	"time"

	"github.com/mediaplan/mediaplan/internal/shared"
)

// Status classifies a period's spend against plan.
type Status string

const (
	// StatusPending means no actual spend is recorded yet.
	StatusPending Status = "pending"
	// StatusOnTrack means spend is within the fixed band.
	StatusOnTrack Status = "on_track"
	// StatusOverspend means spend is above the band.
	StatusOverspend Status = "overspend"
	// StatusUnderspend means spend is below the band.
	StatusUnderspend Status = "underspend"
)

// StatusBandPercent is the fixed band used for status classification. It is
// independent from the configurable alert thresholds.
const StatusBandPercent = 10.0

// DefaultThresholdPercent applies when no alert config is active.
const DefaultThresholdPercent = 10.0

// OverdueErrorDays is the number of days after which an overdue payment is
// reported as an error.
const OverdueErrorDays = 7

// AlertType names a configurable alert rule.
type AlertType string

const (
	AlertOverspend  AlertType = "overspend"
	AlertUnderspend AlertType = "underspend"
)

// Severity grades alerts.
type Severity string

const (
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Forecast is the planned spend of one period.
type Forecast struct {
	PlanID        string    `json:"plan_id"`
	Granularity   string    `json:"granularity"`
	PeriodStart   time.Time `json:"period_start"`
	PeriodEnd     time.Time `json:"period_end"`
	PlannedAmount float64   `json:"planned_amount"`
	Version       int       `json:"version"`
	Locked        bool      `json:"is_locked"`
}

// Actual is the recorded spend of one period.
type Actual struct {
	PlanID      string    `json:"plan_id"`
	PeriodStart time.Time `json:"period_start"`
	PeriodEnd   time.Time `json:"period_end"`
	Amount      float64   `json:"actual_amount"`
}

// AlertConfig is an environment-level alert threshold.
type AlertConfig struct {
	ID               string    `json:"id"`
	EnvironmentID    string    `json:"environment_id"`
	Type             AlertType `json:"alert_type"`
	ThresholdPercent float64   `json:"threshold_percentage"`
	Active           bool      `json:"is_active"`
}

// Data is the pacing of one forecast period.
type Data struct {
	Granularity     string    `json:"granularity,omitempty"`
	PeriodStart     time.Time `json:"period_start"`
	PeriodEnd       time.Time `json:"period_end"`
	Planned         float64   `json:"planned"`
	Actual          float64   `json:"actual"`
	Variance        float64   `json:"variance"`
	VariancePercent float64   `json:"variance_percent"`
	Status          Status    `json:"status"`
	HasActual       bool      `json:"has_actual"`
}

// Alert is raised when a period crosses a configured threshold.
type Alert struct {
	Type            AlertType `json:"type"`
	Severity        Severity  `json:"severity"`
	Message         string    `json:"message"`
	PeriodStart     time.Time `json:"period_start"`
	PeriodEnd       time.Time `json:"period_end"`
	VariancePercent float64   `json:"variance_percent"`
}

// Report groups a plan's pacing rows and alerts.
type Report struct {
	PlanID string  `json:"plan_id"`
	Data   []Data  `json:"pacing_data"`
	Alerts []Alert `json:"alerts"`
}

// PaymentStatus is the lifecycle of a scheduled payment.
type PaymentStatus string

const (
	PaymentScheduled PaymentStatus = "scheduled"
	PaymentOverdue   PaymentStatus = "overdue"
	PaymentPaid      PaymentStatus = "paid"
)

// Payment is a planned disbursement of a plan.
type Payment struct {
	ID          string        `json:"id"`
	PlanID      string        `json:"plan_id"`
	Description string        `json:"description"`
	Amount      float64       `json:"amount"`
	PlannedDate time.Time     `json:"planned_date"`
	Status      PaymentStatus `json:"status"`
}

// PaymentAlert flags a payment past its planned date.
type PaymentAlert struct {
	PaymentID   string    `json:"payment_id"`
	Severity    Severity  `json:"severity"`
	DaysOverdue int       `json:"days_overdue"`
	Amount      float64   `json:"amount"`
	PlannedDate time.Time `json:"planned_date"`
	Message     string    `json:"message"`
}

// PlanRef identifies a plan to scan.
type PlanRef struct {
	ID            string
	EnvironmentID string
}

// ErrPlanRequired is returned when no plan id is supplied.
var ErrPlanRequired = fmt.Errorf("pacing: plan required: %w", shared.ErrInvalidInput)
