package pacing

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

// Store is the persistence surface of the pacing calculator.
type Store interface {
	Forecasts(ctx context.Context, planID, granularity string) ([]Forecast, error)
	Actuals(ctx context.Context, planID string) ([]Actual, error)
	AlertConfigs(ctx context.Context, environmentID string) ([]AlertConfig, error)
	Payments(ctx context.Context, planID string) ([]Payment, error)
	PlansWithForecasts(ctx context.Context, environmentID string) ([]PlanRef, error)
}

// Service computes pacing reports.
type Service struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time
}

// NewService builds the service.
func NewService(store Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, logger: logger, now: time.Now}
}

// Calculate builds the pacing report of a plan. Alert thresholds come from
// the environment's active configs.
func (s *Service) Calculate(ctx context.Context, planID, environmentID, granularity string) (Report, error) {
	if strings.TrimSpace(planID) == "" {
		return Report{}, ErrPlanRequired
	}
	granularity = strings.ToLower(strings.TrimSpace(granularity))
	var (
		forecasts []Forecast
		actuals   []Actual
		configs   []AlertConfig
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		forecasts, err = s.store.Forecasts(gctx, planID, granularity)
		return err
	})
	g.Go(func() error {
		var err error
		actuals, err = s.store.Actuals(gctx, planID)
		return err
	})
	g.Go(func() error {
		var err error
		configs, err = s.store.AlertConfigs(gctx, environmentID)
		return err
	})
	if err := g.Wait(); err != nil {
		return Report{}, err
	}
	data, alerts := Compute(forecasts, actuals, configs, s.now())
	return Report{PlanID: planID, Data: data, Alerts: alerts}, nil
}

// OverduePayments lists the overdue payments of a plan.
func (s *Service) OverduePayments(ctx context.Context, planID string) ([]PaymentAlert, error) {
	if strings.TrimSpace(planID) == "" {
		return nil, ErrPlanRequired
	}
	payments, err := s.store.Payments(ctx, planID)
	if err != nil {
		return nil, err
	}
	return OverduePayments(payments, s.now()), nil
}

// PlanScan is the outcome of scanning one plan.
type PlanScan struct {
	Plan     PlanRef
	Alerts   []Alert
	Payments []PaymentAlert
}

// Scan computes pacing and overdue payments for every plan with forecasts.
// A failing plan is logged and skipped; the first such error is returned
// alongside the successful results.
func (s *Service) Scan(ctx context.Context, environmentID string) ([]PlanScan, error) {
	plans, err := s.store.PlansWithForecasts(ctx, environmentID)
	if err != nil {
		return nil, err
	}
	var (
		out      []PlanScan
		firstErr error
	)
	for _, plan := range plans {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		report, err := s.Calculate(ctx, plan.ID, plan.EnvironmentID, "")
		if err == nil {
			var payments []PaymentAlert
			payments, err = s.OverduePayments(ctx, plan.ID)
			if err == nil {
				out = append(out, PlanScan{Plan: plan, Alerts: report.Alerts, Payments: payments})
				continue
			}
		}
		s.logger.Warn("pacing scan plan", slog.String("plan_id", plan.ID), slog.Any("error", err))
		if firstErr == nil {
			firstErr = err
		}
	}
	return out, firstErr
}
