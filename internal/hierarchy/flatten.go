package hierarchy

import (
	"fmt"
)

// FlatRow is one leaf of the allocation tree with its full padded path.
type FlatRow struct {
	Levels []NodeData `json:"levels"`
	Level1 NodeData   `json:"level1"`
	Level2 NodeData   `json:"level2"`
	Level3 NodeData   `json:"level3"`
}

// Leaf returns the deepest entry of the row.
func (r FlatRow) Leaf() NodeData {
	if len(r.Levels) == 0 {
		return NodeData{}
	}
	return r.Levels[len(r.Levels)-1]
}

// Flatten emits one row per leaf of tree. Paths shorter than order are
// padded with General entries carrying the leaf's amounts.
func Flatten(tree []TreeNode, order []Level) []FlatRow {
	rows := make([]FlatRow, 0, Leaves(tree))
	var walk func(nodes []TreeNode, path []NodeData)
	walk = func(nodes []TreeNode, path []NodeData) {
		for _, node := range nodes {
			current := append(path[:len(path):len(path)], node.Data)
			if len(node.Children) > 0 {
				walk(node.Children, current)
				continue
			}
			rows = append(rows, newFlatRow(pad(current, order)))
		}
	}
	walk(tree, nil)
	return rows
}

func pad(path []NodeData, order []Level) []NodeData {
	if len(path) >= len(order) {
		return path
	}
	leaf := path[len(path)-1]
	padded := make([]NodeData, len(path), len(order))
	copy(padded, path)
	for depth := len(path); depth < len(order); depth++ {
		prev := padded[len(padded)-1]
		padded = append(padded, NodeData{
			Path:       AllocationPath(prev.Path, generalPathID),
			Ref:        SynthesizedRef(),
			Name:       GeneralName,
			Planned:    leaf.Planned,
			Allocated:  leaf.Allocated,
			Percentage: 100,
			Level:      order[depth],
			Parent:     leaf.Ref,
		})
	}
	return padded
}

func newFlatRow(levels []NodeData) FlatRow {
	row := FlatRow{Levels: levels}
	if len(levels) == 0 {
		return row
	}
	at := func(i int) NodeData {
		if i >= len(levels) {
			return levels[len(levels)-1]
		}
		return levels[i]
	}
	row.Level1, row.Level2, row.Level3 = at(0), at(1), at(2)
	return row
}

// ExportRows formats flat rows into CSV-ready strings, one name column per
// configured level followed by the leaf's amounts.
func ExportRows(rows []FlatRow, order []Level) [][]string {
	out := make([][]string, 0, len(rows)+1)
	header := make([]string, 0, len(order)+3)
	for _, l := range order {
		header = append(header, l.String())
	}
	header = append(header, "Planned", "Allocated", "Percentage")
	out = append(out, header)
	for _, row := range rows {
		record := make([]string, 0, len(header))
		for i := range order {
			name := ""
			if i < len(row.Levels) {
				name = row.Levels[i].Name
			}
			record = append(record, name)
		}
		leaf := row.Leaf()
		record = append(record,
			fmt.Sprintf("%.2f", leaf.Planned),
			fmt.Sprintf("%.2f", leaf.Allocated),
			fmt.Sprintf("%.2f", leaf.Percentage),
		)
		out = append(out, record)
	}
	return out
}
