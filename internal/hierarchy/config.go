package hierarchy

import (
	"fmt"

	"github.com/mediaplan/mediaplan/internal/shared"
)

// RootPath is the allocation path of the virtual root above level 0.
const RootPath = "root"

// LevelConfig pairs a level with whether budget is split at that level or
// the level only aggregates.
type LevelConfig struct {
	Level           Level `json:"level" yaml:"level" toml:"level"`
	AllocatesBudget bool  `json:"allocates_budget" yaml:"allocates_budget" toml:"allocates_budget"`
}

// Config is the ordered active hierarchy of a plan. Order defines tree depth.
type Config []LevelConfig

// DefaultConfig returns the three-level hierarchy with every level
// allocating budget.
func DefaultConfig() Config {
	cfg := make(Config, len(DefaultOrder))
	for i, l := range DefaultOrder {
		cfg[i] = LevelConfig{Level: l, AllocatesBudget: true}
	}
	return cfg
}

// Order projects the ordered level list.
func (c Config) Order() []Level {
	order := make([]Level, len(c))
	for i, lc := range c {
		order[i] = lc.Level
	}
	return order
}

// ShouldAllocateBudget returns the level's flag. Levels missing from the
// configuration allocate budget.
func (c Config) ShouldAllocateBudget(level Level) bool {
	for _, lc := range c {
		if lc.Level == level {
			return lc.AllocatesBudget
		}
	}
	return true
}

// Validate checks the configuration order.
func (c Config) Validate() error {
	if !ValidateOrder(c.Order()) {
		return fmt.Errorf("hierarchy: invalid order %v: %w", c.Order(), shared.ErrInvalidInput)
	}
	return nil
}

// ValidateOrder fails on an empty order, more than three levels, duplicates
// or values outside the vocabulary.
func ValidateOrder(order []Level) bool {
	if len(order) == 0 || len(order) > MaxDepth {
		return false
	}
	seen := make(map[Level]struct{}, len(order))
	for _, l := range order {
		if !l.Valid() {
			return false
		}
		if _, dup := seen[l]; dup {
			return false
		}
		seen[l] = struct{}{}
	}
	return true
}

// ValidateOrderTags is ValidateOrder over wire tags.
func ValidateOrderTags(tags []string) bool {
	order, err := ParseOrder(tags)
	if err != nil {
		return false
	}
	return ValidateOrder(order)
}

// AllocationPath identifies a node position by joining itemID onto the
// parent path.
func AllocationPath(parentPath, itemID string) string {
	if parentPath == RootPath {
		return itemID
	}
	return parentPath + "_" + itemID
}
