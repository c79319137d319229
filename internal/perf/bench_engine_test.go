package perf

import (
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/mediaplan/mediaplan/internal/forecast"
	"github.com/mediaplan/mediaplan/internal/hierarchy"
	"github.com/mediaplan/mediaplan/internal/pacing"
)

func strPtr(s string) *string { return &s }

// wideTree builds a full three-level allocation with fanout children per node.
func wideTree(fanout int) ([]hierarchy.Distribution, []hierarchy.LineRef) {
	var (
		dists []hierarchy.Distribution
		lines []hierarchy.LineRef
	)
	share := 100.0 / float64(fanout)
	for s := 0; s < fanout; s++ {
		sub := fmt.Sprintf("sub-%d", s)
		subDist := fmt.Sprintf("d-%s", sub)
		dists = append(dists, hierarchy.Distribution{ID: subDist, Type: hierarchy.TypeSubdivision, ReferenceID: strPtr(sub), Percentage: share, Amount: 1000})
		for m := 0; m < fanout; m++ {
			moment := fmt.Sprintf("m-%d", m)
			momentDist := fmt.Sprintf("%s-%s", subDist, moment)
			dists = append(dists, hierarchy.Distribution{ID: momentDist, Type: hierarchy.TypeMoment, ReferenceID: strPtr(moment), ParentID: strPtr(subDist), Percentage: share, Amount: 100})
			for f := 0; f < fanout; f++ {
				stage := fmt.Sprintf("f-%d", f)
				dists = append(dists, hierarchy.Distribution{ID: momentDist + "-" + stage, Type: hierarchy.TypeFunnelStage, ReferenceID: strPtr(stage), ParentID: strPtr(momentDist), Percentage: share, Amount: 10})
				lines = append(lines, hierarchy.LineRef{ID: momentDist + stage, Budget: 5, SubdivisionID: strPtr(sub), MomentID: strPtr(moment), FunnelStageID: strPtr(stage)})
			}
		}
	}
	return dists, lines
}

func quarterForecasts(days int) ([]pacing.Forecast, []pacing.Actual) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	forecasts := make([]pacing.Forecast, days)
	actuals := make([]pacing.Actual, days)
	for i := 0; i < days; i++ {
		day := start.AddDate(0, 0, i)
		forecasts[i] = pacing.Forecast{PeriodStart: day, PeriodEnd: day, PlannedAmount: 100}
		actuals[i] = pacing.Actual{PeriodStart: day, PeriodEnd: day, Amount: float64(80 + i%40)}
	}
	return forecasts, actuals
}

func TestEngineLatencyTargets(t *testing.T) {
	start, end := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC)
	plan := forecast.Plan{ID: "plan-1", StartDate: &start, EndDate: &end, TotalBudget: 1_000_000}
	dists, lines := wideTree(8)
	order := hierarchy.DefaultOrder
	forecasts, actuals := quarterForecasts(1096)

	scenarios := []struct {
		name      string
		run       func()
		threshold time.Duration
	}{
		{
			name: "forecast daily periods",
			run: func() {
				if _, err := forecast.BuildPeriods(plan, nil, forecast.GranularityDay); err != nil {
					t.Fatalf("build periods: %v", err)
				}
			},
			threshold: 100 * time.Millisecond,
		},
		{
			name: "hierarchy tree and flatten",
			run: func() {
				tree := hierarchy.BuildTree(dists, lines, order, nil)
				if rows := hierarchy.Flatten(tree, order); len(rows) != 512 {
					t.Fatalf("unexpected row count %d", len(rows))
				}
			},
			threshold: 200 * time.Millisecond,
		},
		{
			name: "pacing compute",
			run: func() {
				pacing.Compute(forecasts, actuals, nil, end)
			},
			threshold: 100 * time.Millisecond,
		},
	}

	for _, scenario := range scenarios {
		samples := make([]time.Duration, 0, 10)
		for i := 0; i < 10; i++ {
			began := time.Now()
			scenario.run()
			samples = append(samples, time.Since(began))
		}
		if p95 := percentile95(samples); p95 > scenario.threshold {
			t.Fatalf("%s latency regression: p95=%s threshold=%s", scenario.name, p95, scenario.threshold)
		}
	}
}

func BenchmarkBuildPeriodsDaily(b *testing.B) {
	start, end := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC)
	plan := forecast.Plan{StartDate: &start, EndDate: &end, TotalBudget: 1_000_000}
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_, _ = forecast.BuildPeriods(plan, nil, forecast.GranularityDay)
	}
}

func BenchmarkBuildTree(b *testing.B) {
	dists, lines := wideTree(8)
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		hierarchy.Flatten(hierarchy.BuildTree(dists, lines, hierarchy.DefaultOrder, nil), hierarchy.DefaultOrder)
	}
}

func BenchmarkPacingCompute(b *testing.B) {
	forecasts, actuals := quarterForecasts(365)
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		pacing.Compute(forecasts, actuals, nil, now)
	}
}

func percentile95(samples []time.Duration) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	sorted := append([]time.Duration(nil), samples...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	index := int(float64(len(sorted)-1) * 0.95)
	if index < 0 {
		index = 0
	}
	if index >= len(sorted) {
		index = len(sorted) - 1
	}
	return sorted[index]
}
