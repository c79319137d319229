package hierarchy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/mediaplan/mediaplan/internal/platform/cache"
	"github.com/mediaplan/mediaplan/internal/shared"
)

// ErrPlanNotFound occurs when the plan is missing.
var ErrPlanNotFound = fmt.Errorf("hierarchy: plan not found: %w", shared.ErrNotFound)

// Store is the persistence surface the service depends on.
type Store interface {
	Plan(ctx context.Context, planID string) (PlanInfo, error)
	Distributions(ctx context.Context, planID string) ([]Distribution, error)
	Lines(ctx context.Context, planID string) ([]LineRef, error)
	Catalog(ctx context.Context, environmentID string) (Catalog, error)
	ReplaceSiblings(ctx context.Context, planID string, typ DistributionType, parentID *string, drafts []Distribution) ([]Distribution, int, error)
}

// TreeView is the read model served to table and export components.
type TreeView struct {
	PlanID   string           `json:"plan_id"`
	Order    []Level          `json:"order"`
	Config   Config           `json:"config"`
	Tree     []TreeNode       `json:"tree"`
	Rows     []FlatRow        `json:"rows"`
	Warnings []SiblingWarning `json:"warnings"`
}

// AllocateInput asks to split a parent's budget at one level.
type AllocateInput struct {
	Level    Level   `json:"level" validate:"required"`
	ParentID *string `json:"parent_distribution_id" validate:"omitempty,uuid"`
	Amount   float64 `json:"amount" validate:"gte=0"`
	Shares   []Share `json:"shares" validate:"required,min=1,dive"`
	Persist  bool    `json:"persist"`
}

// Allocation is the outcome of Allocate. RemovedDescendants counts the
// distributions below the replaced siblings that were deleted with them;
// it stays zero for proposals that are not persisted.
type Allocation struct {
	Distributions      []Distribution `json:"distributions"`
	RemovedDescendants int            `json:"removed_descendants"`
}

// Service builds allocation trees and stores budget splits.
type Service struct {
	store   Store
	catalog *cache.Cache
	logger  *slog.Logger
}

// NewService builds the service. catalog may be nil.
func NewService(store Store, catalog *cache.Cache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, catalog: catalog, logger: logger}
}

// Tree builds the allocation tree of a plan from current distributions and
// lines. The tree is never persisted.
func (s *Service) Tree(ctx context.Context, planID string) (TreeView, error) {
	var (
		plan  PlanInfo
		dists []Distribution
		lines []LineRef
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		plan, err = s.store.Plan(gctx, planID)
		if errors.Is(err, shared.ErrNotFound) {
			return ErrPlanNotFound
		}
		return err
	})
	g.Go(func() error {
		var err error
		dists, err = s.store.Distributions(gctx, planID)
		return err
	})
	g.Go(func() error {
		var err error
		lines, err = s.store.Lines(gctx, planID)
		return err
	})
	if err := g.Wait(); err != nil {
		return TreeView{}, err
	}
	if err := plan.Config.Validate(); err != nil {
		return TreeView{}, err
	}

	catalog, err := s.loadCatalog(ctx, plan.EnvironmentID)
	if err != nil {
		// Names are cosmetic; fall back to reference ids.
		s.logger.Warn("hierarchy catalog", slog.String("environment_id", plan.EnvironmentID), slog.Any("error", err))
		catalog = Catalog{}
	}

	order := plan.Config.Order()
	tree := BuildTree(dists, lines, order, catalog.Resolver())
	return TreeView{
		PlanID:   planID,
		Order:    order,
		Config:   plan.Config,
		Tree:     tree,
		Rows:     Flatten(tree, order),
		Warnings: CheckSiblingTotals(dists),
	}, nil
}

func (s *Service) loadCatalog(ctx context.Context, environmentID string) (Catalog, error) {
	key, err := s.catalog.BuildKey(ctx, "env", environmentID)
	if err != nil {
		return nil, err
	}
	var catalog Catalog
	err = s.catalog.FetchJSON(ctx, key, &catalog, func(ctx context.Context) (any, error) {
		return s.store.Catalog(ctx, environmentID)
	})
	return catalog, err
}

// InvalidateCatalog drops cached dimension names after taxonomy edits.
func (s *Service) InvalidateCatalog(ctx context.Context) error {
	return s.catalog.Bump(ctx)
}

// Allocate proposes distributions for the given shares and, when requested,
// replaces the existing siblings with them. Replacing siblings also removes
// every distribution below them.
func (s *Service) Allocate(ctx context.Context, planID string, in AllocateInput) (Allocation, error) {
	plan, err := s.store.Plan(ctx, planID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return Allocation{}, ErrPlanNotFound
		}
		return Allocation{}, err
	}
	amount := in.Amount
	if in.ParentID == nil && amount == 0 {
		amount = plan.TotalBudget
	}
	drafts, err := ProposeDistributions(plan.Config, in.Level, in.ParentID, amount, in.Shares)
	if err != nil {
		return Allocation{}, err
	}
	if !in.Persist {
		for i := range drafts {
			drafts[i].PlanID = planID
		}
		return Allocation{Distributions: drafts}, nil
	}
	stored, removed, err := s.store.ReplaceSiblings(ctx, planID, TypeFor(in.Level), in.ParentID, drafts)
	if err != nil {
		return Allocation{}, err
	}
	s.logger.Info("distributions replaced",
		slog.String("plan_id", planID),
		slog.String("level", in.Level.String()),
		slog.Int("count", len(stored)),
		slog.Int("removed_descendants", removed),
	)
	return Allocation{Distributions: stored, RemovedDescendants: removed}, nil
}
