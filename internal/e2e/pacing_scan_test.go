package e2e

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/mediaplan/mediaplan/internal/forecast"
	jobmetrics "github.com/mediaplan/mediaplan/internal/jobs"
	"github.com/mediaplan/mediaplan/internal/pacing"
	"github.com/mediaplan/mediaplan/jobs"
)

// planStore serves generated forecasts to the pacing service.
type planStore struct {
	forecasts map[string][]pacing.Forecast
	actuals   map[string][]pacing.Actual
	payments  map[string][]pacing.Payment
	failPlan  string
}

func (s *planStore) Forecasts(_ context.Context, planID, _ string) ([]pacing.Forecast, error) {
	if planID == s.failPlan {
		return nil, errors.New("connection reset")
	}
	return s.forecasts[planID], nil
}

func (s *planStore) Actuals(_ context.Context, planID string) ([]pacing.Actual, error) {
	return s.actuals[planID], nil
}

func (s *planStore) AlertConfigs(_ context.Context, _ string) ([]pacing.AlertConfig, error) {
	return []pacing.AlertConfig{
		{Type: pacing.AlertOverspend, ThresholdPercent: 15, Active: true},
		{Type: pacing.AlertUnderspend, ThresholdPercent: 20, Active: true},
	}, nil
}

func (s *planStore) Payments(_ context.Context, planID string) ([]pacing.Payment, error) {
	return s.payments[planID], nil
}

func (s *planStore) PlansWithForecasts(_ context.Context, _ string) ([]pacing.PlanRef, error) {
	refs := []pacing.PlanRef{{ID: "plan-a", EnvironmentID: "env-1"}}
	if s.failPlan != "" {
		refs = append(refs, pacing.PlanRef{ID: s.failPlan, EnvironmentID: "env-1"})
	}
	return refs, nil
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// generatedForecasts runs the forecast builder for a closed 2024 quarter.
func generatedForecasts(t *testing.T) []pacing.Forecast {
	t.Helper()
	start, end := date(2024, 1, 1), date(2024, 3, 31)
	periods, err := forecast.BuildPeriods(forecast.Plan{ID: "plan-a", StartDate: &start, EndDate: &end, TotalBudget: 9000}, nil, forecast.GranularityMonth)
	require.NoError(t, err)
	out := make([]pacing.Forecast, len(periods))
	for i, p := range periods {
		out[i] = pacing.Forecast{PlanID: "plan-a", Granularity: "month", PeriodStart: p.Start, PeriodEnd: p.End, PlannedAmount: p.PlannedAmount}
	}
	return out
}

func newStore(t *testing.T) *planStore {
	fc := generatedForecasts(t)
	return &planStore{
		forecasts: map[string][]pacing.Forecast{"plan-a": fc},
		actuals: map[string][]pacing.Actual{"plan-a": {
			{PeriodStart: fc[0].PeriodStart, PeriodEnd: fc[0].PeriodEnd, Amount: 3600}, // +20%
			{PeriodStart: fc[1].PeriodStart, PeriodEnd: fc[1].PeriodEnd, Amount: 3100}, // +3.33%
			{PeriodStart: fc[2].PeriodStart, PeriodEnd: fc[2].PeriodEnd, Amount: 2100}, // -30%
		}},
		payments: map[string][]pacing.Payment{"plan-a": {
			{ID: "pay-1", Amount: 500, PlannedDate: date(2024, 2, 1), Status: pacing.PaymentScheduled},
			{ID: "pay-2", Amount: 700, PlannedDate: date(2024, 2, 1), Status: pacing.PaymentPaid},
		}},
	}
}

func runScan(t *testing.T, store *planStore) (*prometheus.Registry, error) {
	t.Helper()
	reg := prometheus.NewRegistry()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	job := jobs.NewPacingScanJob(pacing.NewService(store, logger), logger, jobmetrics.NewMetrics(reg))
	task, err := jobs.NewPacingScanTask("env-1")
	require.NoError(t, err)
	return reg, job.Handle(context.Background(), task)
}

func TestPacingScanRaisesAlertsForGeneratedForecasts(t *testing.T) {
	reg, err := runScan(t, newStore(t))
	require.NoError(t, err)

	expected := `
# HELP mediaplan_pacing_alerts_total Pacing and payment alerts raised by scans.
# TYPE mediaplan_pacing_alerts_total counter
mediaplan_pacing_alerts_total{kind="overspend",severity="error"} 1
mediaplan_pacing_alerts_total{kind="payment_overdue",severity="error"} 1
mediaplan_pacing_alerts_total{kind="underspend",severity="warning"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "mediaplan_pacing_alerts_total"))

	count, err := testutil.GatherAndCount(reg, "mediaplan_jobs_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestPacingScanFailureFeedsFailureCounter(t *testing.T) {
	store := newStore(t)
	store.failPlan = "plan-broken"
	reg, err := runScan(t, store)
	require.Error(t, err)
	assert.NotErrorIs(t, err, asynq.SkipRetry)

	expected := `
# HELP mediaplan_jobs_failures_total Failed job runs by task type.
# TYPE mediaplan_jobs_failures_total counter
mediaplan_jobs_failures_total{job="pacing:scan"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "mediaplan_jobs_failures_total"))
}

type ruleFile struct {
	Groups []struct {
		Rules []struct {
			Alert string `yaml:"alert"`
			Expr  string `yaml:"expr"`
		} `yaml:"rules"`
	} `yaml:"groups"`
}

func TestAlertRulesReferenceExportedJobMetrics(t *testing.T) {
	_, file, _, ok := runtime.Caller(0)
	require.True(t, ok)
	raw, err := os.ReadFile(filepath.Join(filepath.Dir(file), "..", "..", "deploy", "prometheus", "alerts", "mediaplan.yml"))
	require.NoError(t, err)
	var rules ruleFile
	require.NoError(t, yaml.Unmarshal(raw, &rules))

	store := newStore(t)
	store.failPlan = "plan-broken"
	reg, _ := runScan(t, store)
	families, err := reg.Gather()
	require.NoError(t, err)
	exported := map[string]bool{}
	for _, fam := range families {
		exported[fam.GetName()] = true
	}

	metricName := regexp.MustCompile(`mediaplan_(jobs|pacing)_[a-z_]+`)
	checked := 0
	for _, group := range rules.Groups {
		for _, rule := range group.Rules {
			for _, name := range metricName.FindAllString(rule.Expr, -1) {
				assert.True(t, exported[name], "%s references unknown metric %s", rule.Alert, name)
				checked++
			}
		}
	}
	assert.Positive(t, checked)
}
