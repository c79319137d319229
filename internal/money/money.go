// Package money holds the currency and calendar primitives shared by the
// allocation, forecast and pacing engines. Amounts travel as float64 at the
// package boundaries and are computed with decimal arithmetic inside.
package money

import (
	"time"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Round2 rounds half away from zero to two decimal places.
func Round2(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return f
}

// PercentageToAmount returns pct percent of total, rounded to cents.
func PercentageToAmount(total, pct float64) float64 {
	f, _ := decimal.NewFromFloat(total).Mul(decimal.NewFromFloat(pct)).Div(hundred).Round(2).Float64()
	return f
}

// AmountToPercentage expresses amount as a percentage of total. A zero total
// yields zero.
func AmountToPercentage(total, amount float64) float64 {
	if total == 0 {
		return 0
	}
	f, _ := decimal.NewFromFloat(amount).Div(decimal.NewFromFloat(total)).Mul(hundred).Round(2).Float64()
	return f
}

// Sum adds amounts without accumulating binary floating point drift.
func Sum(values ...float64) float64 {
	acc := decimal.Zero
	for _, v := range values {
		acc = acc.Add(decimal.NewFromFloat(v))
	}
	f, _ := acc.Float64()
	return f
}

// SplitEven divides total into n cent-rounded parts. The last part absorbs
// the rounding remainder so the parts always sum to the rounded total.
func SplitEven(total float64, n int) []float64 {
	if n <= 0 {
		return nil
	}
	whole := decimal.NewFromFloat(total).Round(2)
	each := whole.Div(decimal.NewFromInt(int64(n))).Round(2)
	parts := make([]float64, n)
	eachF, _ := each.Float64()
	for i := 0; i < n-1; i++ {
		parts[i] = eachF
	}
	last, _ := whole.Sub(each.Mul(decimal.NewFromInt(int64(n - 1)))).Float64()
	parts[n-1] = last
	return parts
}

// SplitByPercentages distributes total over the given percentages. Each part
// is rounded to cents; the last part absorbs the remainder when the
// percentages add up to 100.
func SplitByPercentages(total float64, percentages []float64) []float64 {
	if len(percentages) == 0 {
		return nil
	}
	parts := make([]float64, len(percentages))
	pctSum := decimal.Zero
	allocated := decimal.Zero
	for i, pct := range percentages {
		amount := decimal.NewFromFloat(total).Mul(decimal.NewFromFloat(pct)).Div(hundred).Round(2)
		parts[i], _ = amount.Float64()
		pctSum = pctSum.Add(decimal.NewFromFloat(pct))
		if i < len(percentages)-1 {
			allocated = allocated.Add(amount)
		}
	}
	if pctSum.Sub(hundred).Abs().LessThanOrEqual(decimal.NewFromFloat(0.01)) {
		parts[len(parts)-1], _ = decimal.NewFromFloat(total).Round(2).Sub(allocated).Float64()
	}
	return parts
}

// Date truncates t to its calendar day in UTC.
func Date(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysInclusive counts calendar days from start to end, both included.
// It returns zero when end precedes start.
func DaysInclusive(start, end time.Time) int {
	s, e := Date(start), Date(end)
	if e.Before(s) {
		return 0
	}
	return int(e.Sub(s).Hours()/24) + 1
}

// SameDay reports whether a and b fall on the same calendar day.
func SameDay(a, b time.Time) bool {
	return Date(a).Equal(Date(b))
}
