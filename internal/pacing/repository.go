package pacing

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mediaplan/mediaplan/internal/shared"
)

// Repository reads pacing inputs from PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repo.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Forecasts lists a plan's stored forecast periods, every version included.
// An empty granularity lists every granularity.
func (r *Repository) Forecasts(ctx context.Context, planID, granularity string) ([]Forecast, error) {
	const query = `SELECT plan_id::text, granularity, period_start, period_end, planned_amount::float8, version, is_locked
FROM financial_forecasts
WHERE plan_id = $1 AND ($2 = '' OR granularity = $2)
ORDER BY period_start, period_end, granularity, version DESC`
	rows, err := r.pool.Query(ctx, query, planID, granularity)
	if err != nil {
		return nil, shared.StorageError("pacing: list forecasts", err)
	}
	return collect(rows, "pacing: scan forecast", func(row pgx.Rows) (Forecast, error) {
		var (
			f          Forecast
			start, end pgtype.Date
		)
		err := row.Scan(&f.PlanID, &f.Granularity, &start, &end, &f.PlannedAmount, &f.Version, &f.Locked)
		f.PeriodStart, f.PeriodEnd = start.Time, end.Time
		return f, err
	})
}

// Actuals lists the recorded spend of a plan.
func (r *Repository) Actuals(ctx context.Context, planID string) ([]Actual, error) {
	const query = `SELECT plan_id::text, period_start, period_end, actual_amount::float8
FROM financial_actuals WHERE plan_id = $1 ORDER BY period_start, period_end`
	rows, err := r.pool.Query(ctx, query, planID)
	if err != nil {
		return nil, shared.StorageError("pacing: list actuals", err)
	}
	return collect(rows, "pacing: scan actual", func(row pgx.Rows) (Actual, error) {
		var (
			a          Actual
			start, end pgtype.Date
		)
		err := row.Scan(&a.PlanID, &start, &end, &a.Amount)
		a.PeriodStart, a.PeriodEnd = start.Time, end.Time
		return a, err
	})
}

// AlertConfigs lists the active alert thresholds of an environment.
func (r *Repository) AlertConfigs(ctx context.Context, environmentID string) ([]AlertConfig, error) {
	if environmentID == "" {
		return nil, nil
	}
	const query = `SELECT id::text, environment_id::text, alert_type, threshold_percentage::float8, is_active
FROM financial_alert_configs
WHERE environment_id = $1 AND is_active
ORDER BY created_at, id`
	rows, err := r.pool.Query(ctx, query, environmentID)
	if err != nil {
		return nil, shared.StorageError("pacing: list alert configs", err)
	}
	return collect(rows, "pacing: scan alert config", func(row pgx.Rows) (AlertConfig, error) {
		var (
			c   AlertConfig
			typ string
		)
		err := row.Scan(&c.ID, &c.EnvironmentID, &typ, &c.ThresholdPercent, &c.Active)
		c.Type = AlertType(typ)
		return c, err
	})
}

// Payments lists the planned payments of a plan.
func (r *Repository) Payments(ctx context.Context, planID string) ([]Payment, error) {
	const query = `SELECT id::text, plan_id::text, COALESCE(description, ''), amount::float8, planned_date, status
FROM financial_payments WHERE plan_id = $1 ORDER BY planned_date, id`
	rows, err := r.pool.Query(ctx, query, planID)
	if err != nil {
		return nil, shared.StorageError("pacing: list payments", err)
	}
	return collect(rows, "pacing: scan payment", func(row pgx.Rows) (Payment, error) {
		var (
			p       Payment
			planned pgtype.Date
			status  string
		)
		err := row.Scan(&p.ID, &p.PlanID, &p.Description, &p.Amount, &planned, &status)
		p.PlannedDate = planned.Time
		p.Status = PaymentStatus(status)
		return p, err
	})
}

// PlansWithForecasts lists the live plans that have at least one forecast.
// An empty environment lists plans of every environment.
func (r *Repository) PlansWithForecasts(ctx context.Context, environmentID string) ([]PlanRef, error) {
	const query = `SELECT p.id::text, p.environment_id::text
FROM media_plans p
WHERE p.deleted_at IS NULL
  AND ($1 = '' OR p.environment_id::text = $1)
  AND EXISTS (SELECT 1 FROM financial_forecasts f WHERE f.plan_id = p.id)
ORDER BY p.id`
	rows, err := r.pool.Query(ctx, query, environmentID)
	if err != nil {
		return nil, shared.StorageError("pacing: list plans", err)
	}
	return collect(rows, "pacing: scan plan", func(row pgx.Rows) (PlanRef, error) {
		var p PlanRef
		err := row.Scan(&p.ID, &p.EnvironmentID)
		return p, err
	})
}

func collect[T any](rows pgx.Rows, op string, scan func(pgx.Rows) (T, error)) ([]T, error) {
	defer rows.Close()
	var out []T
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, shared.StorageError(op, err)
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, shared.StorageError(op, err)
	}
	return out, nil
}
