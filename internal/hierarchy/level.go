package hierarchy

import (
	"fmt"
	"strings"
)

// Level is one of the dimensions budget can be subdivided along.
type Level uint8

const (
	// LevelSubdivision splits budget by geographic/organisational subdivision.
	LevelSubdivision Level = iota + 1
	// LevelMoment splits budget by campaign moment.
	LevelMoment
	// LevelFunnelStage splits budget by funnel stage.
	LevelFunnelStage
)

// MaxDepth is the size of the level vocabulary.
const MaxDepth = 3

// DefaultOrder is used when a plan carries no explicit configuration.
var DefaultOrder = []Level{LevelSubdivision, LevelMoment, LevelFunnelStage}

// Valid reports whether l belongs to the vocabulary.
func (l Level) Valid() bool {
	switch l {
	case LevelSubdivision, LevelMoment, LevelFunnelStage:
		return true
	}
	return false
}

func (l Level) String() string {
	switch l {
	case LevelSubdivision:
		return "subdivision"
	case LevelMoment:
		return "moment"
	case LevelFunnelStage:
		return "funnel_stage"
	}
	return fmt.Sprintf("level(%d)", uint8(l))
}

// ParseLevel resolves the storage/wire tag of a level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "subdivision":
		return LevelSubdivision, nil
	case "moment":
		return LevelMoment, nil
	case "funnel_stage":
		return LevelFunnelStage, nil
	}
	return 0, fmt.Errorf("hierarchy: unknown level %q", s)
}

// ParseOrder parses a list of tags. Unknown tags are an error.
func ParseOrder(tags []string) ([]Level, error) {
	order := make([]Level, 0, len(tags))
	for _, tag := range tags {
		l, err := ParseLevel(tag)
		if err != nil {
			return nil, err
		}
		order = append(order, l)
	}
	return order, nil
}

// MarshalText implements encoding.TextMarshaler.
func (l Level) MarshalText() ([]byte, error) {
	if !l.Valid() {
		return nil, fmt.Errorf("hierarchy: invalid level %d", uint8(l))
	}
	return []byte(l.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *Level) UnmarshalText(b []byte) error {
	parsed, err := ParseLevel(string(b))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// DistributionType tags a persisted distribution. Besides the three levels a
// distribution can be temporal.
type DistributionType string

const (
	TypeSubdivision DistributionType = "subdivision"
	TypeMoment      DistributionType = "moment"
	TypeFunnelStage DistributionType = "funnel_stage"
	TypeTemporal    DistributionType = "temporal"
)

// TypeFor maps a level to the distribution type stored for it.
func TypeFor(l Level) DistributionType {
	switch l {
	case LevelSubdivision:
		return TypeSubdivision
	case LevelMoment:
		return TypeMoment
	case LevelFunnelStage:
		return TypeFunnelStage
	}
	return ""
}

// Level returns the hierarchy level of a distribution type. Temporal
// distributions have none.
func (t DistributionType) Level() (Level, bool) {
	switch t {
	case TypeSubdivision:
		return LevelSubdivision, true
	case TypeMoment:
		return LevelMoment, true
	case TypeFunnelStage:
		return LevelFunnelStage, true
	}
	return 0, false
}
