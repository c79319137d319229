package hierarchy

import (
	"encoding/json"

	"github.com/mediaplan/mediaplan/internal/money"
)

// GeneralName labels catch-all nodes for lines or budget without an explicit
// value at a level.
const GeneralName = "General"

// generalPathID is the path segment used for synthesized nodes.
const generalPathID = "general"

// Distribution is a persisted allocation of part of a parent budget to one
// dimension value. Parents are referenced by id only.
type Distribution struct {
	ID          string           `json:"id"`
	PlanID      string           `json:"plan_id"`
	Type        DistributionType `json:"distribution_type"`
	ReferenceID *string          `json:"reference_id"`
	Percentage  float64          `json:"percentage"`
	Amount      float64          `json:"amount"`
	ParentID    *string          `json:"parent_distribution_id"`
}

// LineRef is a leaf budget consumer keyed into the three dimensions.
type LineRef struct {
	ID            string  `json:"id"`
	Budget        float64 `json:"budget"`
	SubdivisionID *string `json:"subdivision_id"`
	MomentID      *string `json:"moment_id"`
	FunnelStageID *string `json:"funnel_stage_id"`
}

// ReferenceAt returns the line's foreign key for level.
func (l LineRef) ReferenceAt(level Level) *string {
	switch level {
	case LevelSubdivision:
		return l.SubdivisionID
	case LevelMoment:
		return l.MomentID
	case LevelFunnelStage:
		return l.FunnelStageID
	}
	return nil
}

// NodeRef points at the distribution backing a node. A node is either backed
// by a real distribution or synthesized as a General placeholder. The zero
// value means "no node" and is used for the parent of root nodes.
type NodeRef struct {
	id          string
	synthesized bool
}

// RealRef references a persisted distribution.
func RealRef(id string) NodeRef { return NodeRef{id: id} }

// SynthesizedRef marks a generated General placeholder.
func SynthesizedRef() NodeRef { return NodeRef{synthesized: true} }

// DistributionID returns the backing distribution id, if any.
func (r NodeRef) DistributionID() (string, bool) {
	if r.synthesized || r.id == "" {
		return "", false
	}
	return r.id, true
}

// IsSynthesized reports whether the node is a generated placeholder.
func (r NodeRef) IsSynthesized() bool { return r.synthesized }

// IsZero reports whether r references nothing.
func (r NodeRef) IsZero() bool { return !r.synthesized && r.id == "" }

type nodeRefJSON struct {
	ID          *string `json:"id"`
	Synthesized bool    `json:"synthesized"`
}

// MarshalJSON renders null for the zero ref and an object otherwise.
func (r NodeRef) MarshalJSON() ([]byte, error) {
	if r.IsZero() {
		return []byte("null"), nil
	}
	out := nodeRefJSON{Synthesized: r.synthesized}
	if id, ok := r.DistributionID(); ok {
		out.ID = &id
	}
	return json.Marshal(out)
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (r *NodeRef) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*r = NodeRef{}
		return nil
	}
	var in nodeRefJSON
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	switch {
	case in.Synthesized:
		*r = SynthesizedRef()
	case in.ID != nil:
		*r = RealRef(*in.ID)
	default:
		*r = NodeRef{}
	}
	return nil
}

// NodeData is the payload of a tree node.
type NodeData struct {
	Path        string  `json:"id"`
	Ref         NodeRef `json:"distribution"`
	ReferenceID *string `json:"reference_id"`
	Name        string  `json:"name"`
	Planned     float64 `json:"planned"`
	Allocated   float64 `json:"allocated"`
	Percentage  float64 `json:"percentage"`
	Level       Level   `json:"level"`
	Parent      NodeRef `json:"parent"`
}

// TreeNode is one node of the materialised allocation tree.
type TreeNode struct {
	Data     NodeData   `json:"data"`
	Children []TreeNode `json:"children"`
}

// NameResolver returns the display name of a dimension value. Returning an
// empty string falls back to the reference id.
type NameResolver func(level Level, referenceID string) string

// pathStep is one ancestor constraint used to match lines.
type pathStep struct {
	level       Level
	referenceID *string
}

type treeBuilder struct {
	children map[string][]Distribution
	roots    []Distribution
	lines    []LineRef
	order    []Level
	names    NameResolver
}

// BuildTree materialises the allocation tree for order from the flat
// distribution list. Depth equals len(order). Every node's Allocated is the
// sum of budgets of lines whose foreign keys match the full path from the
// root down to the node, a nil reference matching a nil key.
func BuildTree(distributions []Distribution, lines []LineRef, order []Level, names NameResolver) []TreeNode {
	if len(order) == 0 {
		return nil
	}
	b := &treeBuilder{
		children: make(map[string][]Distribution),
		lines:    lines,
		order:    order,
		names:    names,
	}
	for _, d := range distributions {
		if d.ParentID == nil {
			b.roots = append(b.roots, d)
			continue
		}
		b.children[*d.ParentID] = append(b.children[*d.ParentID], d)
	}

	rootType := TypeFor(order[0])
	nodes := make([]TreeNode, 0)
	hasGeneralRoot := false
	for _, d := range b.roots {
		if d.Type != rootType {
			continue
		}
		if d.ReferenceID == nil {
			hasGeneralRoot = true
		}
		nodes = append(nodes, b.node(0, d, RealRef(d.ID), NodeRef{}, RootPath, nil))
	}
	// Lines with no key at the first level would otherwise be dropped when no
	// General root distribution exists.
	if !hasGeneralRoot && b.hasOrphans(order[0]) {
		general := Distribution{Type: rootType}
		nodes = append(nodes, b.node(0, general, SynthesizedRef(), NodeRef{}, RootPath, nil))
	}
	return nodes
}

func (b *treeBuilder) hasOrphans(level Level) bool {
	for _, l := range b.lines {
		if l.ReferenceAt(level) == nil {
			return true
		}
	}
	return false
}

func (b *treeBuilder) node(depth int, d Distribution, ref, parent NodeRef, parentPath string, ancestors []pathStep) TreeNode {
	level := b.order[depth]
	pathID := generalPathID
	if id, ok := ref.DistributionID(); ok {
		pathID = id
	}
	steps := make([]pathStep, len(ancestors)+1)
	copy(steps, ancestors)
	steps[len(ancestors)] = pathStep{level: level, referenceID: d.ReferenceID}

	data := NodeData{
		Path:        AllocationPath(parentPath, pathID),
		Ref:         ref,
		ReferenceID: d.ReferenceID,
		Name:        b.name(level, d.ReferenceID),
		Planned:     d.Amount,
		Allocated:   b.allocated(steps),
		Percentage:  d.Percentage,
		Level:       level,
		Parent:      parent,
	}
	return TreeNode{Data: data, Children: b.childrenOf(depth+1, data, steps)}
}

func (b *treeBuilder) childrenOf(depth int, parent NodeData, steps []pathStep) []TreeNode {
	if depth >= len(b.order) {
		return []TreeNode{}
	}
	childType := TypeFor(b.order[depth])
	var selected []Distribution
	if id, ok := parent.Ref.DistributionID(); ok {
		for _, d := range b.children[id] {
			if d.Type == childType {
				selected = append(selected, d)
			}
		}
	}
	if len(selected) == 0 {
		general := Distribution{Type: childType, Percentage: 100, Amount: parent.Planned}
		return []TreeNode{b.node(depth, general, SynthesizedRef(), parent.Ref, parent.Path, steps)}
	}
	nodes := make([]TreeNode, 0, len(selected))
	for _, d := range selected {
		nodes = append(nodes, b.node(depth, d, RealRef(d.ID), parent.Ref, parent.Path, steps))
	}
	return nodes
}

func (b *treeBuilder) allocated(steps []pathStep) float64 {
	var budgets []float64
	for _, line := range b.lines {
		if lineMatches(line, steps) {
			budgets = append(budgets, line.Budget)
		}
	}
	return money.Sum(budgets...)
}

func lineMatches(line LineRef, steps []pathStep) bool {
	for _, step := range steps {
		if !sameRef(line.ReferenceAt(step.level), step.referenceID) {
			return false
		}
	}
	return true
}

func sameRef(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func (b *treeBuilder) name(level Level, referenceID *string) string {
	if referenceID == nil {
		return GeneralName
	}
	if b.names != nil {
		if n := b.names(level, *referenceID); n != "" {
			return n
		}
	}
	return *referenceID
}

// Leaves counts the leaf nodes of tree.
func Leaves(tree []TreeNode) int {
	n := 0
	for _, node := range tree {
		if len(node.Children) == 0 {
			n++
			continue
		}
		n += Leaves(node.Children)
	}
	return n
}
