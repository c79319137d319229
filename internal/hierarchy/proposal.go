package hierarchy

import (
	"fmt"
	"math"
	"sort"

	"github.com/mediaplan/mediaplan/internal/money"
	"github.com/mediaplan/mediaplan/internal/shared"
)

var (
	// ErrLevelNotAllocating is returned when budget is split on an
	// aggregation-only level.
	ErrLevelNotAllocating = fmt.Errorf("hierarchy: level does not allocate budget: %w", shared.ErrInvalidInput)
	// ErrSharesExceedTotal is returned when proposed shares exceed 100%.
	ErrSharesExceedTotal = fmt.Errorf("hierarchy: shares exceed 100%%: %w", shared.ErrInvalidInput)
)

// Share is a requested percentage for one dimension value.
type Share struct {
	ReferenceID *string `json:"reference_id"`
	Percentage  float64 `json:"percentage" validate:"gte=0,lte=100"`
}

// ProposeDistributions turns shares of parentAmount into distribution drafts
// for level under parentID. Amounts are cent exact and, when the shares cover
// 100%, sum to parentAmount.
func ProposeDistributions(cfg Config, level Level, parentID *string, parentAmount float64, shares []Share) ([]Distribution, error) {
	if !level.Valid() {
		return nil, fmt.Errorf("hierarchy: invalid level %d: %w", uint8(level), shared.ErrInvalidInput)
	}
	if !cfg.ShouldAllocateBudget(level) {
		return nil, ErrLevelNotAllocating
	}
	if len(shares) == 0 {
		return nil, fmt.Errorf("hierarchy: no shares: %w", shared.ErrInvalidInput)
	}
	pcts := make([]float64, len(shares))
	seen := make(map[string]struct{}, len(shares))
	for i, s := range shares {
		if s.Percentage < 0 || s.Percentage > 100 {
			return nil, fmt.Errorf("hierarchy: share %d out of range: %w", i, shared.ErrInvalidInput)
		}
		key := ""
		if s.ReferenceID != nil {
			key = *s.ReferenceID
		}
		if _, dup := seen[key]; dup {
			return nil, fmt.Errorf("hierarchy: duplicate reference %q: %w", key, shared.ErrInvalidInput)
		}
		seen[key] = struct{}{}
		pcts[i] = s.Percentage
	}
	if money.Sum(pcts...) > 100.01 {
		return nil, ErrSharesExceedTotal
	}
	amounts := money.SplitByPercentages(parentAmount, pcts)
	drafts := make([]Distribution, len(shares))
	for i, s := range shares {
		drafts[i] = Distribution{
			Type:        TypeFor(level),
			ReferenceID: s.ReferenceID,
			Percentage:  s.Percentage,
			Amount:      amounts[i],
			ParentID:    parentID,
		}
	}
	return drafts, nil
}

// SiblingWarning flags a sibling group whose percentages do not add to 100.
type SiblingWarning struct {
	ParentID *string          `json:"parent_distribution_id"`
	Type     DistributionType `json:"distribution_type"`
	Total    float64          `json:"total_percentage"`
}

// CheckSiblingTotals reports sibling groups (same parent and type) whose
// percentages are off 100 by more than a cent. Groups are returned in a
// stable order.
func CheckSiblingTotals(distributions []Distribution) []SiblingWarning {
	type key struct {
		parent string
		hasPar bool
		typ    DistributionType
	}
	totals := make(map[key][]float64)
	var keys []key
	for _, d := range distributions {
		k := key{typ: d.Type}
		if d.ParentID != nil {
			k.parent, k.hasPar = *d.ParentID, true
		}
		if _, ok := totals[k]; !ok {
			keys = append(keys, k)
		}
		totals[k] = append(totals[k], d.Percentage)
	}
	sort.SliceStable(keys, func(i, j int) bool {
		if keys[i].parent != keys[j].parent {
			return keys[i].parent < keys[j].parent
		}
		return keys[i].typ < keys[j].typ
	})
	var warnings []SiblingWarning
	for _, k := range keys {
		total := money.Sum(totals[k]...)
		if math.Abs(total-100) <= 0.01 {
			continue
		}
		w := SiblingWarning{Type: k.typ, Total: money.Round2(total)}
		if k.hasPar {
			parent := k.parent
			w.ParentID = &parent
		}
		warnings = append(warnings, w)
	}
	return warnings
}
