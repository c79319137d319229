package pacing

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/mediaplan/mediaplan/internal/money"
)

// Compute matches each current forecast period to the actual recorded for
// the exact same window, classifies it and emits threshold alerts. A window
// raises at most one alert of each type even when several granularities
// share it.
func Compute(forecasts []Forecast, actuals []Actual, configs []AlertConfig, now time.Time) ([]Data, []Alert) {
	byWindow := make(map[string]Actual, len(actuals))
	for _, a := range actuals {
		key := windowKey(a.PeriodStart, a.PeriodEnd)
		if _, ok := byWindow[key]; !ok {
			byWindow[key] = a
		}
	}
	overThreshold := threshold(configs, AlertOverspend)
	underThreshold := threshold(configs, AlertUnderspend)
	today := money.Date(now)

	sorted := Current(forecasts)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].PeriodStart.Before(sorted[j].PeriodStart)
	})

	data := make([]Data, 0, len(sorted))
	alerts := make([]Alert, 0)
	alerted := make(map[string]bool)
	raise := func(a Alert) {
		key := string(a.Type) + "@" + windowKey(a.PeriodStart, a.PeriodEnd)
		if !alerted[key] {
			alerted[key] = true
			alerts = append(alerts, a)
		}
	}
	for _, f := range sorted {
		row := Data{
			Granularity: f.Granularity,
			PeriodStart: money.Date(f.PeriodStart),
			PeriodEnd:   money.Date(f.PeriodEnd),
			Planned:     money.Round2(f.PlannedAmount),
			Status:      StatusPending,
		}
		actual, ok := byWindow[windowKey(f.PeriodStart, f.PeriodEnd)]
		if ok {
			row.HasActual = true
			row.Actual = money.Round2(actual.Amount)
			row.Variance = money.Round2(row.Actual - row.Planned)
			row.VariancePercent = variancePercent(row.Variance, row.Planned)
			row.Status = classify(row.VariancePercent)

			switch {
			case row.VariancePercent > overThreshold:
				raise(Alert{
					Type:            AlertOverspend,
					Severity:        SeverityError,
					Message:         fmt.Sprintf("Overspend of %.2f%% for %s", row.VariancePercent, periodLabel(row)),
					PeriodStart:     row.PeriodStart,
					PeriodEnd:       row.PeriodEnd,
					VariancePercent: row.VariancePercent,
				})
			case row.VariancePercent < -underThreshold && row.PeriodEnd.Before(today):
				raise(Alert{
					Type:            AlertUnderspend,
					Severity:        SeverityWarning,
					Message:         fmt.Sprintf("Underspend of %.2f%% for %s", math.Abs(row.VariancePercent), periodLabel(row)),
					PeriodStart:     row.PeriodStart,
					PeriodEnd:       row.PeriodEnd,
					VariancePercent: row.VariancePercent,
				})
			}
		}
		data = append(data, row)
	}
	return data, alerts
}

// Current keeps one forecast per granularity and window. Regeneration keeps
// locked rows next to the new version, so a locked row wins, then the
// highest version. Input order is preserved.
func Current(forecasts []Forecast) []Forecast {
	index := make(map[string]int, len(forecasts))
	out := make([]Forecast, 0, len(forecasts))
	for _, f := range forecasts {
		key := f.Granularity + "@" + windowKey(f.PeriodStart, f.PeriodEnd)
		i, seen := index[key]
		if !seen {
			index[key] = len(out)
			out = append(out, f)
			continue
		}
		if supersedes(f, out[i]) {
			out[i] = f
		}
	}
	return out
}

func supersedes(f, cur Forecast) bool {
	if f.Locked != cur.Locked {
		return f.Locked
	}
	return f.Version > cur.Version
}

// OverduePayments flags scheduled or overdue payments whose planned date has
// passed.
func OverduePayments(payments []Payment, now time.Time) []PaymentAlert {
	today := money.Date(now)
	out := make([]PaymentAlert, 0)
	for _, p := range payments {
		if p.Status != PaymentScheduled && p.Status != PaymentOverdue {
			continue
		}
		planned := money.Date(p.PlannedDate)
		if !planned.Before(today) {
			continue
		}
		days := money.DaysInclusive(planned, today) - 1
		severity := SeverityWarning
		if days > OverdueErrorDays {
			severity = SeverityError
		}
		out = append(out, PaymentAlert{
			PaymentID:   p.ID,
			Severity:    severity,
			DaysOverdue: days,
			Amount:      money.Round2(p.Amount),
			PlannedDate: planned,
			Message:     fmt.Sprintf("Payment %q is %d days overdue", p.Description, days),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].DaysOverdue > out[j].DaysOverdue
	})
	return out
}

func classify(pct float64) Status {
	switch {
	case pct > StatusBandPercent:
		return StatusOverspend
	case pct < -StatusBandPercent:
		return StatusUnderspend
	default:
		return StatusOnTrack
	}
}

func variancePercent(variance, planned float64) float64 {
	if planned == 0 {
		return 0
	}
	return money.Round2(variance / planned * 100)
}

// threshold returns the first active threshold of the given type, or the
// default when none is configured.
func threshold(configs []AlertConfig, typ AlertType) float64 {
	for _, c := range configs {
		if c.Active && c.Type == typ {
			return math.Abs(c.ThresholdPercent)
		}
	}
	return DefaultThresholdPercent
}

func windowKey(start, end time.Time) string {
	return money.Date(start).Format(time.DateOnly) + "/" + money.Date(end).Format(time.DateOnly)
}

func periodLabel(d Data) string {
	return d.PeriodStart.Format(time.DateOnly) + " to " + d.PeriodEnd.Format(time.DateOnly)
}
