package hierarchy

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mediaplan/mediaplan/internal/platform/db"
	"github.com/mediaplan/mediaplan/internal/shared"
)

// PlanInfo is the part of a media plan the allocation engine needs.
type PlanInfo struct {
	ID            string
	EnvironmentID string
	TotalBudget   float64
	Config        Config
}

// Catalog maps level tags to reference id -> display name.
type Catalog map[string]map[string]string

// Resolver adapts the catalog to a NameResolver.
func (c Catalog) Resolver() NameResolver {
	return func(level Level, referenceID string) string {
		return c[level.String()][referenceID]
	}
}

// Repository persists distributions and reads plan data from PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repo.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Plan loads the plan and its hierarchy configuration. A missing or empty
// configuration yields DefaultConfig.
func (r *Repository) Plan(ctx context.Context, planID string) (PlanInfo, error) {
	const query = `SELECT id::text, environment_id::text, COALESCE(total_budget, 0)::float8, hierarchy_config
FROM media_plans WHERE id = $1 AND deleted_at IS NULL`
	var (
		info    PlanInfo
		rawConf []byte
	)
	if err := r.pool.QueryRow(ctx, query, planID).Scan(&info.ID, &info.EnvironmentID, &info.TotalBudget, &rawConf); err != nil {
		return PlanInfo{}, shared.StorageError("hierarchy: load plan", err)
	}
	info.Config = DefaultConfig()
	if len(rawConf) > 0 {
		var cfg Config
		if err := json.Unmarshal(rawConf, &cfg); err != nil {
			return PlanInfo{}, fmt.Errorf("hierarchy: decode config: %w: %v", shared.ErrInvalidInput, err)
		}
		if len(cfg) > 0 {
			info.Config = cfg
		}
	}
	return info, nil
}

// Distributions lists every distribution of a plan.
func (r *Repository) Distributions(ctx context.Context, planID string) ([]Distribution, error) {
	const query = `SELECT id::text, plan_id::text, distribution_type, reference_id::text,
       percentage::float8, amount::float8, parent_distribution_id::text
FROM budget_distributions WHERE plan_id = $1 ORDER BY created_at, id`
	rows, err := r.pool.Query(ctx, query, planID)
	if err != nil {
		return nil, shared.StorageError("hierarchy: list distributions", err)
	}
	defer rows.Close()
	var out []Distribution
	for rows.Next() {
		var (
			d   Distribution
			typ string
		)
		if err := rows.Scan(&d.ID, &d.PlanID, &typ, &d.ReferenceID, &d.Percentage, &d.Amount, &d.ParentID); err != nil {
			return nil, shared.StorageError("hierarchy: scan distribution", err)
		}
		d.Type = DistributionType(typ)
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, shared.StorageError("hierarchy: list distributions", err)
	}
	return out, nil
}

// Lines lists the non-deleted lines of a plan.
func (r *Repository) Lines(ctx context.Context, planID string) ([]LineRef, error) {
	const query = `SELECT id::text, COALESCE(budget, 0)::float8, subdivision_id::text, moment_id::text, funnel_stage_id::text
FROM media_lines WHERE plan_id = $1 AND deleted_at IS NULL ORDER BY created_at, id`
	rows, err := r.pool.Query(ctx, query, planID)
	if err != nil {
		return nil, shared.StorageError("hierarchy: list lines", err)
	}
	defer rows.Close()
	var out []LineRef
	for rows.Next() {
		var l LineRef
		if err := rows.Scan(&l.ID, &l.Budget, &l.SubdivisionID, &l.MomentID, &l.FunnelStageID); err != nil {
			return nil, shared.StorageError("hierarchy: scan line", err)
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, shared.StorageError("hierarchy: list lines", err)
	}
	return out, nil
}

// Catalog loads display names of every dimension value in an environment.
func (r *Repository) Catalog(ctx context.Context, environmentID string) (Catalog, error) {
	const query = `SELECT 'subdivision', id::text, name FROM subdivisions WHERE environment_id = $1
UNION ALL SELECT 'moment', id::text, name FROM moments WHERE environment_id = $1
UNION ALL SELECT 'funnel_stage', id::text, name FROM funnel_stages WHERE environment_id = $1`
	rows, err := r.pool.Query(ctx, query, environmentID)
	if err != nil {
		return nil, shared.StorageError("hierarchy: load catalog", err)
	}
	defer rows.Close()
	catalog := Catalog{}
	for rows.Next() {
		var level, id, name string
		if err := rows.Scan(&level, &id, &name); err != nil {
			return nil, shared.StorageError("hierarchy: scan catalog", err)
		}
		if catalog[level] == nil {
			catalog[level] = map[string]string{}
		}
		catalog[level][id] = name
	}
	if err := rows.Err(); err != nil {
		return nil, shared.StorageError("hierarchy: load catalog", err)
	}
	return catalog, nil
}

// ReplaceSiblings swaps the distributions of one type under one parent for
// drafts in a single transaction and returns the stored rows. The
// parent_distribution_id foreign key cascades, so every distribution below a
// replaced sibling is deleted with it; the number of such descendants is
// returned alongside the stored rows.
func (r *Repository) ReplaceSiblings(ctx context.Context, planID string, typ DistributionType, parentID *string, drafts []Distribution) ([]Distribution, int, error) {
	stored := make([]Distribution, 0, len(drafts))
	var removed int
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if err := db.AdvisoryLock(ctx, tx, "distributions", planID); err != nil {
			return shared.StorageError("hierarchy: lock plan", err)
		}
		if err := tx.QueryRow(ctx, `WITH RECURSIVE below AS (
    SELECT c.id FROM budget_distributions c
    JOIN budget_distributions s ON c.parent_distribution_id = s.id
    WHERE s.plan_id = $1 AND s.distribution_type = $2 AND s.parent_distribution_id IS NOT DISTINCT FROM $3::uuid
    UNION ALL
    SELECT c.id FROM budget_distributions c JOIN below b ON c.parent_distribution_id = b.id
)
SELECT COUNT(*) FROM below`, planID, string(typ), parentID).Scan(&removed); err != nil {
			return shared.StorageError("hierarchy: count descendants", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM budget_distributions
WHERE plan_id = $1 AND distribution_type = $2 AND parent_distribution_id IS NOT DISTINCT FROM $3::uuid`,
			planID, string(typ), parentID); err != nil {
			return shared.StorageError("hierarchy: delete siblings", err)
		}
		for _, d := range drafts {
			var id string
			if err := tx.QueryRow(ctx, `INSERT INTO budget_distributions
(plan_id, distribution_type, reference_id, percentage, amount, parent_distribution_id)
VALUES ($1, $2, $3::uuid, $4, $5, $6::uuid) RETURNING id::text`,
				planID, string(d.Type), d.ReferenceID, d.Percentage, d.Amount, d.ParentID).Scan(&id); err != nil {
				return shared.StorageError("hierarchy: insert distribution", err)
			}
			d.ID = id
			d.PlanID = planID
			stored = append(stored, d)
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return stored, removed, nil
}
