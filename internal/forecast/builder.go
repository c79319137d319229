package forecast

import (
	"github.com/mediaplan/mediaplan/internal/money"
)

// BudgetToDistribute is the sum of line budgets when any line carries a
// budget, the plan total otherwise.
func BudgetToDistribute(plan Plan, lines []Line) float64 {
	budgets := make([]float64, 0, len(lines))
	hasBudget := false
	for _, l := range lines {
		if l.Budget != 0 {
			hasBudget = true
		}
		budgets = append(budgets, l.Budget)
	}
	if hasBudget {
		return money.Sum(budgets...)
	}
	return plan.TotalBudget
}

// BuildPeriods derives the forecast periods of a plan. The budget is split
// evenly across periods regardless of their length; each period takes the
// dimensions of the first line overlapping it.
func BuildPeriods(plan Plan, lines []Line, g Granularity) ([]Period, error) {
	if plan.StartDate == nil || plan.EndDate == nil {
		return nil, ErrMissingDates
	}
	g, err := ParseGranularity(string(g))
	if err != nil {
		return nil, err
	}
	windows := Partition(*plan.StartDate, *plan.EndDate, g)
	if len(windows) == 0 {
		return nil, ErrNoPeriods
	}
	amounts := money.SplitEven(BudgetToDistribute(plan, lines), len(windows))

	planWindow := Window{Start: money.Date(*plan.StartDate), End: money.Date(*plan.EndDate)}
	periods := make([]Period, len(windows))
	for i, w := range windows {
		periods[i] = Period{Window: w, PlannedAmount: amounts[i]}
		for _, l := range lines {
			if lineWindow(l, planWindow).Overlaps(w) {
				periods[i].Dimensions = l.Dimensions
				break
			}
		}
	}
	return periods, nil
}

// lineWindow is the line's own flight, defaulting to the plan range.
func lineWindow(l Line, plan Window) Window {
	w := plan
	if l.StartDate != nil {
		w.Start = money.Date(*l.StartDate)
	}
	if l.EndDate != nil {
		w.End = money.Date(*l.EndDate)
	}
	return w
}
