//go:build integration

package forecast

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediaplan/mediaplan/internal/platform/db"
)

// Run with: MEDIAPLAN_TEST_PG_DSN=postgres://... go test -tags integration ./internal/forecast/
func TestRepositoryReplaceForecastsAgainstPostgres(t *testing.T) {
	dsn := os.Getenv("MEDIAPLAN_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("MEDIAPLAN_TEST_PG_DSN not set")
	}
	ctx := context.Background()
	pool, err := db.Connect(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	schema, err := os.ReadFile("../../db/migrations/0001_init.up.sql")
	require.NoError(t, err)
	_, err = pool.Exec(ctx, string(schema))
	require.NoError(t, err)

	var planID string
	require.NoError(t, pool.QueryRow(ctx, `INSERT INTO media_plans (environment_id, name, start_date, end_date, total_budget)
VALUES (gen_random_uuid(), 'integration', '2025-01-01', '2025-03-31', 900) RETURNING id::text`).Scan(&planID))
	t.Cleanup(func() {
		_, _ = pool.Exec(context.Background(), `DELETE FROM media_plans WHERE id = $1`, planID)
	})

	repo := NewRepository(pool)
	plan, err := repo.Plan(ctx, planID)
	require.NoError(t, err)
	periods, err := BuildPeriods(plan, nil, GranularityMonth)
	require.NoError(t, err)
	in := ReplaceInput{PlanID: planID, EnvironmentID: plan.EnvironmentID, Granularity: GranularityMonth, Periods: periods}

	version, err := repo.ReplaceForecasts(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, 1, version)

	_, err = pool.Exec(ctx, `UPDATE financial_forecasts SET is_locked = true
WHERE plan_id = $1 AND period_start = '2025-01-01'`, planID)
	require.NoError(t, err)

	version, err = repo.ReplaceForecasts(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, 2, version)

	rows, err := repo.Forecasts(ctx, planID, GranularityMonth)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	byVersion := map[int]int{}
	for _, r := range rows {
		byVersion[r.Version]++
		if r.Version == 1 {
			assert.True(t, r.Locked)
		}
	}
	assert.Equal(t, map[int]int{1: 1, 2: 3}, byVersion)
}
