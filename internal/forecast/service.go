package forecast

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mediaplan/mediaplan/internal/shared"
)

// Store is the persistence surface of the generator.
type Store interface {
	Plan(ctx context.Context, planID string) (Plan, error)
	Lines(ctx context.Context, planID string) ([]Line, error)
	Forecasts(ctx context.Context, planID string, g Granularity) ([]Forecast, error)
	ReplaceForecasts(ctx context.Context, in ReplaceInput) (int, error)
}

// Service generates and lists plan forecasts.
type Service struct {
	store  Store
	audit  shared.AuditRecorder
	logger *slog.Logger
	now    func() time.Time
}

// NewService builds the service. audit may be nil.
func NewService(store Store, audit shared.AuditRecorder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, audit: audit, logger: logger, now: time.Now}
}

// Generate builds a new forecast version for the plan and granularity,
// replacing the previous unlocked version. Failures leave stored forecasts
// untouched. Unexpected panics are reported as a generic failure.
func (s *Service) Generate(ctx context.Context, req GenerateRequest) (res Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("forecast generate panic", slog.String("plan_id", req.PlanID), slog.Any("panic", r))
			err = fmt.Errorf("forecast: unexpected failure: %v", r)
			res = Result{Message: "unexpected error while generating forecast"}
		}
	}()

	req, err = req.Normalize()
	if err != nil {
		return ResultFromError(err), err
	}

	var (
		plan  Plan
		lines []Line
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		plan, err = s.store.Plan(gctx, req.PlanID)
		if errors.Is(err, shared.ErrNotFound) {
			return ErrPlanNotFound
		}
		return err
	})
	g.Go(func() error {
		var err error
		lines, err = s.store.Lines(gctx, req.PlanID)
		return err
	})
	if err := g.Wait(); err != nil {
		return ResultFromError(err), err
	}

	periods, err := BuildPeriods(plan, lines, req.Granularity)
	if err != nil {
		return ResultFromError(err), err
	}

	envID := req.EnvironmentID
	if envID == "" {
		envID = plan.EnvironmentID
	}
	version, err := s.store.ReplaceForecasts(ctx, ReplaceInput{
		PlanID:        req.PlanID,
		EnvironmentID: envID,
		Granularity:   req.Granularity,
		Periods:       periods,
		CreatedBy:     req.UserID,
	})
	if err != nil {
		s.logger.Error("forecast replace", slog.String("plan_id", req.PlanID), slog.Any("error", err))
		return ResultFromError(err), err
	}

	s.recordAudit(ctx, req, envID, version, periods)
	s.logger.Info("forecast generated",
		slog.String("plan_id", req.PlanID),
		slog.String("granularity", string(req.Granularity)),
		slog.Int("version", version),
		slog.Int("periods", len(periods)),
	)
	return Result{
		Success:        true,
		Message:        fmt.Sprintf("%d %s periods generated (version %d)", len(periods), req.Granularity, version),
		PeriodsCreated: len(periods),
		Version:        version,
		Granularity:    req.Granularity,
	}, nil
}

// recordAudit is best effort; a failed audit write never fails generation.
func (s *Service) recordAudit(ctx context.Context, req GenerateRequest, envID string, version int, periods []Period) {
	if s.audit == nil {
		return
	}
	entry := shared.AuditLog{
		ActorID:       req.UserID,
		EnvironmentID: envID,
		Action:        "forecast.generate",
		Entity:        "media_plan",
		EntityID:      req.PlanID,
		Meta: map[string]any{
			"granularity": req.Granularity,
			"version":     version,
			"periods":     len(periods),
		},
		At: s.now(),
	}
	if err := s.audit.Record(ctx, entry); err != nil {
		s.logger.Warn("forecast audit", slog.String("plan_id", req.PlanID), slog.Any("error", err))
	}
}

// List returns the stored forecasts of a plan; an empty granularity lists
// every granularity.
func (s *Service) List(ctx context.Context, planID string, g Granularity) ([]Forecast, error) {
	if g != "" {
		var err error
		if g, err = ParseGranularity(string(g)); err != nil {
			return nil, err
		}
	}
	return s.store.Forecasts(ctx, planID, g)
}

// ResultFromError converts an error into the structured failure reported to
// callers.
func ResultFromError(err error) Result {
	if err == nil {
		return Result{Success: true}
	}
	switch {
	case errors.Is(err, ErrPlanNotFound), errors.Is(err, shared.ErrNotFound):
		return Result{Message: "Plan not found"}
	case errors.Is(err, ErrMissingDates):
		return Result{Message: "Plan must have a start and end date to generate a forecast"}
	case errors.Is(err, ErrNoPeriods):
		return Result{Message: "No periods could be generated for the plan date range"}
	case errors.Is(err, shared.ErrInvalidInput), errors.Is(err, shared.ErrStorage):
		return Result{Message: err.Error()}
	}
	return Result{Message: "unexpected error while generating forecast"}
}
