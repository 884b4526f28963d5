package join

import (
	"fmt"

	"github.com/leapstack-labs/jointab/pkg/core"
)

type cellSource struct {
	side     core.Side
	col      *core.Column
	fallback *core.Column
}

// Build assembles the result table. Each pairing becomes one row; each cell
// is read from its side's row, from the fallback right key when the left row
// is absent, or is Missing.
func Build(left, right *core.Table, pairings []Pairing, schema OutputSchema) (*core.Table, error) {
	if left == nil || right == nil {
		return nil, fmt.Errorf("join: both tables are required")
	}
	for i, p := range pairings {
		if p.Left == NoRow && p.Right == NoRow {
			return nil, fmt.Errorf("join: pairing %d has no rows", i)
		}
		if p.Left < NoRow || p.Left >= left.RowCount() || p.Right < NoRow || p.Right >= right.RowCount() {
			return nil, fmt.Errorf("join: pairing %d (%d, %d) out of range", i, p.Left, p.Right)
		}
	}

	sources := make([]cellSource, len(schema.Columns))
	for i, oc := range schema.Columns {
		src := cellSource{side: oc.Side}
		switch oc.Side {
		case core.SideLeft:
			src.col = left.Column(oc.Source)
			if oc.Fallback != "" {
				if src.fallback = right.Column(oc.Fallback); src.fallback == nil {
					return nil, fmt.Errorf("join: right column %q not found", oc.Fallback)
				}
			}
		case core.SideRight:
			src.col = right.Column(oc.Source)
		default:
			return nil, fmt.Errorf("join: output column %q has no side", oc.Name)
		}
		if src.col == nil {
			return nil, fmt.Errorf("join: %s column %q not found", oc.Side, oc.Source)
		}
		sources[i] = src
	}

	cols := make([]*core.Column, len(schema.Columns))
	for i, oc := range schema.Columns {
		src := sources[i]
		values := make([]core.Value, len(pairings))
		for r, p := range pairings {
			switch {
			case src.side == core.SideLeft && p.Left != NoRow:
				values[r] = src.col.Values[p.Left]
			case src.side == core.SideLeft && src.fallback != nil:
				values[r] = src.fallback.Values[p.Right]
			case src.side == core.SideRight && p.Right != NoRow:
				values[r] = src.col.Values[p.Right]
			}
		}
		cols[i] = &core.Column{Name: oc.Name, Type: oc.Type, Values: values}
	}
	return core.NewTable(cols...)
}
