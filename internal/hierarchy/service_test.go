package hierarchy

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediaplan/mediaplan/internal/platform/cache"
	"github.com/mediaplan/mediaplan/internal/shared"
)

type mockStore struct {
	plan         PlanInfo
	planErr      error
	dists        []Distribution
	lines        []LineRef
	linesErr     error
	catalog      Catalog
	catalogCalls int
	replaced     []Distribution
	replaceType  DistributionType
	descendants  int
}

func (m *mockStore) Plan(ctx context.Context, planID string) (PlanInfo, error) {
	if m.planErr != nil {
		return PlanInfo{}, m.planErr
	}
	return m.plan, nil
}

func (m *mockStore) Distributions(ctx context.Context, planID string) ([]Distribution, error) {
	return m.dists, nil
}

func (m *mockStore) Lines(ctx context.Context, planID string) ([]LineRef, error) {
	return m.lines, m.linesErr
}

func (m *mockStore) Catalog(ctx context.Context, environmentID string) (Catalog, error) {
	m.catalogCalls++
	return m.catalog, nil
}

func (m *mockStore) ReplaceSiblings(ctx context.Context, planID string, typ DistributionType, parentID *string, drafts []Distribution) ([]Distribution, int, error) {
	m.replaceType = typ
	m.replaced = drafts
	out := make([]Distribution, len(drafts))
	for i, d := range drafts {
		d.ID = "new-" + *d.ReferenceID
		d.PlanID = planID
		out[i] = d
	}
	return out, m.descendants, nil
}

func newTestService(t *testing.T, store Store) *Service {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(store, cache.NewCache(client, "catalog", time.Minute), logger)
}

func TestServiceTreeUsesConfigAndCachedCatalog(t *testing.T) {
	store := &mockStore{
		plan: PlanInfo{ID: "p1", EnvironmentID: "env", TotalBudget: 10000, Config: Config{
			{Level: LevelSubdivision, AllocatesBudget: true},
			{Level: LevelMoment, AllocatesBudget: true},
		}},
		dists:   fixtureDistributions(),
		lines:   fixtureLines(),
		catalog: Catalog{"subdivision": {"north": "North", "south": "South"}},
	}
	svc := newTestService(t, store)
	ctx := context.Background()

	view, err := svc.Tree(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, []Level{LevelSubdivision, LevelMoment}, view.Order)
	require.Len(t, view.Tree, 2)
	assert.Equal(t, "North", view.Tree[0].Data.Name)
	assert.Len(t, view.Rows, 3)
	require.Len(t, view.Warnings, 1)

	_, err = svc.Tree(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 1, store.catalogCalls)

	require.NoError(t, svc.InvalidateCatalog(ctx))
	_, err = svc.Tree(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 2, store.catalogCalls)
}

func TestServiceTreeErrors(t *testing.T) {
	svc := newTestService(t, &mockStore{planErr: shared.StorageError("load", errors.New("x"))})
	_, err := svc.Tree(context.Background(), "p1")
	require.ErrorIs(t, err, shared.ErrStorage)

	svc = newTestService(t, &mockStore{planErr: shared.ErrNotFound})
	_, err = svc.Tree(context.Background(), "p1")
	require.ErrorIs(t, err, ErrPlanNotFound)

	svc = newTestService(t, &mockStore{plan: PlanInfo{Config: Config{{Level: LevelMoment}, {Level: LevelMoment}}}})
	_, err = svc.Tree(context.Background(), "p1")
	require.ErrorIs(t, err, shared.ErrInvalidInput)
}

func TestServiceAllocate(t *testing.T) {
	store := &mockStore{plan: PlanInfo{ID: "p1", TotalBudget: 9000, Config: DefaultConfig()}}
	svc := newTestService(t, store)
	in := AllocateInput{
		Level: LevelSubdivision,
		Shares: []Share{
			{ReferenceID: strPtr("north"), Percentage: 50},
			{ReferenceID: strPtr("south"), Percentage: 50},
		},
	}

	proposed, err := svc.Allocate(context.Background(), "p1", in)
	require.NoError(t, err)
	require.Len(t, proposed.Distributions, 2)
	assert.Equal(t, 4500.0, proposed.Distributions[0].Amount)
	assert.Zero(t, proposed.RemovedDescendants)
	assert.Nil(t, store.replaced)

	in.Persist = true
	stored, err := svc.Allocate(context.Background(), "p1", in)
	require.NoError(t, err)
	assert.Equal(t, "new-north", stored.Distributions[0].ID)
	assert.Equal(t, TypeSubdivision, store.replaceType)
}

func TestServiceAllocateReportsRemovedDescendants(t *testing.T) {
	store := &mockStore{plan: PlanInfo{ID: "p1", TotalBudget: 9000, Config: DefaultConfig()}, descendants: 4}
	svc := newTestService(t, store)
	in := AllocateInput{
		Level:   LevelSubdivision,
		Shares:  []Share{{ReferenceID: strPtr("north"), Percentage: 100}},
		Persist: true,
	}

	alloc, err := svc.Allocate(context.Background(), "p1", in)
	require.NoError(t, err)
	require.Len(t, alloc.Distributions, 1)
	assert.Equal(t, 4, alloc.RemovedDescendants)
}
