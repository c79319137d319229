package forecast

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mediaplan/mediaplan/internal/platform/db"
	"github.com/mediaplan/mediaplan/internal/shared"
)

// ReplaceInput describes a new forecast batch.
type ReplaceInput struct {
	PlanID        string
	EnvironmentID string
	Granularity   Granularity
	Periods       []Period
	CreatedBy     string
}

// Conn is the slice of *pgxpool.Pool the repository uses.
type Conn interface {
	db.TxBeginner
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var _ Conn = (*pgxpool.Pool)(nil)

// Repository persists forecasts in PostgreSQL.
type Repository struct {
	pool Conn
}

// NewRepository constructs a repo.
func NewRepository(pool Conn) *Repository {
	return &Repository{pool: pool}
}

// Plan loads the plan header.
func (r *Repository) Plan(ctx context.Context, planID string) (Plan, error) {
	const query = `SELECT id::text, environment_id::text, start_date, end_date, COALESCE(total_budget, 0)::float8
FROM media_plans WHERE id = $1 AND deleted_at IS NULL`
	var (
		plan       Plan
		start, end pgtype.Date
	)
	if err := r.pool.QueryRow(ctx, query, planID).Scan(&plan.ID, &plan.EnvironmentID, &start, &end, &plan.TotalBudget); err != nil {
		return Plan{}, shared.StorageError("forecast: load plan", err)
	}
	plan.StartDate = datePtr(start)
	plan.EndDate = datePtr(end)
	return plan, nil
}

// Lines lists the non-deleted lines of a plan.
func (r *Repository) Lines(ctx context.Context, planID string) ([]Line, error) {
	const query = `SELECT id::text, COALESCE(budget, 0)::float8, start_date, end_date,
       subdivision_id::text, moment_id::text, funnel_stage_id::text
FROM media_lines WHERE plan_id = $1 AND deleted_at IS NULL ORDER BY created_at, id`
	rows, err := r.pool.Query(ctx, query, planID)
	if err != nil {
		return nil, shared.StorageError("forecast: list lines", err)
	}
	defer rows.Close()
	var out []Line
	for rows.Next() {
		var (
			l          Line
			start, end pgtype.Date
		)
		if err := rows.Scan(&l.ID, &l.Budget, &start, &end, &l.SubdivisionID, &l.MomentID, &l.FunnelStageID); err != nil {
			return nil, shared.StorageError("forecast: scan line", err)
		}
		l.StartDate = datePtr(start)
		l.EndDate = datePtr(end)
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, shared.StorageError("forecast: list lines", err)
	}
	return out, nil
}

// Forecasts lists stored forecasts of a plan. An empty granularity lists all.
func (r *Repository) Forecasts(ctx context.Context, planID string, g Granularity) ([]Forecast, error) {
	const query = `SELECT id::text, plan_id::text, environment_id::text, granularity, period_start, period_end,
       planned_amount::float8, subdivision_id::text, moment_id::text, funnel_stage_id::text,
       version, is_locked, COALESCE(created_by::text, ''), created_at
FROM financial_forecasts
WHERE plan_id = $1 AND ($2 = '' OR granularity = $2)
ORDER BY granularity, version, period_start`
	rows, err := r.pool.Query(ctx, query, planID, string(g))
	if err != nil {
		return nil, shared.StorageError("forecast: list forecasts", err)
	}
	defer rows.Close()
	var out []Forecast
	for rows.Next() {
		var (
			f           Forecast
			granularity string
			start, end  pgtype.Date
		)
		if err := rows.Scan(&f.ID, &f.PlanID, &f.EnvironmentID, &granularity, &start, &end,
			&f.PlannedAmount, &f.Dimensions.SubdivisionID, &f.Dimensions.MomentID, &f.Dimensions.FunnelStageID,
			&f.Version, &f.Locked, &f.CreatedBy, &f.CreatedAt); err != nil {
			return nil, shared.StorageError("forecast: scan forecast", err)
		}
		f.Granularity = Granularity(granularity)
		f.Start, f.End = start.Time, end.Time
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, shared.StorageError("forecast: list forecasts", err)
	}
	return out, nil
}

// ReplaceForecasts stores a new version of the plan's forecasts for one
// granularity. Reading the next version, dropping unlocked rows and inserting
// the batch happen in one transaction, so a failure leaves the previous
// version in place.
func (r *Repository) ReplaceForecasts(ctx context.Context, in ReplaceInput) (int, error) {
	var version int
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if err := db.AdvisoryLock(ctx, tx, "forecast", in.PlanID, string(in.Granularity)); err != nil {
			return shared.StorageError("forecast: lock plan", err)
		}
		if err := tx.QueryRow(ctx, `SELECT COALESCE(MAX(version), 0) + 1 FROM financial_forecasts
WHERE plan_id = $1 AND granularity = $2`, in.PlanID, string(in.Granularity)).Scan(&version); err != nil {
			return shared.StorageError("forecast: next version", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM financial_forecasts
WHERE plan_id = $1 AND granularity = $2 AND NOT is_locked`, in.PlanID, string(in.Granularity)); err != nil {
			return shared.StorageError("forecast: delete unlocked", err)
		}

		batch := &pgx.Batch{}
		for _, p := range in.Periods {
			batch.Queue(`INSERT INTO financial_forecasts
(id, plan_id, environment_id, granularity, period_start, period_end, planned_amount,
 subdivision_id, moment_id, funnel_stage_id, version, is_locked, created_by)
VALUES ($1, $2, NULLIF($3, '')::uuid, $4, $5, $6, $7, $8::uuid, $9::uuid, $10::uuid, $11, false, NULLIF($12, '')::uuid)`,
				uuid.NewString(), in.PlanID, in.EnvironmentID, string(in.Granularity),
				pgDate(p.Start), pgDate(p.End), p.PlannedAmount,
				p.Dimensions.SubdivisionID, p.Dimensions.MomentID, p.Dimensions.FunnelStageID,
				version, in.CreatedBy)
		}
		results := tx.SendBatch(ctx, batch)
		for range in.Periods {
			if _, err := results.Exec(); err != nil {
				_ = results.Close()
				return shared.StorageError("forecast: insert period", err)
			}
		}
		if err := results.Close(); err != nil {
			return shared.StorageError("forecast: insert batch", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return version, nil
}

func datePtr(d pgtype.Date) *time.Time {
	if !d.Valid {
		return nil
	}
	t := d.Time
	return &t
}

func pgDate(t time.Time) pgtype.Date {
	return pgtype.Date{Time: t, Valid: true}
}
