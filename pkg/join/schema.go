package join

import (
	"fmt"
	"strconv"

	"github.com/leapstack-labs/jointab/pkg/core"
)

// OutputColumn says where one output column's cells come from.
type OutputColumn struct {
	Name   string
	Side   core.Side
	Source string
	Type   core.ColumnType

	// Fallback is the right key column paired with a left key column. Rows
	// with no left match read the key from here.
	Fallback string
}

// OutputSchema is the ordered column list of a join result.
type OutputSchema struct {
	Columns []OutputColumn
}

// Names returns the output column names in order.
func (s OutputSchema) Names() []string {
	names := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		names[i] = c.Name
	}
	return names
}

// Merge lays out the result columns: every left column under its own name,
// then the non-key right columns (restricted to plan.RightColumns when set)
// in right-table order. A right column whose name is taken is renamed with
// the first free suffix of _2, _3, ... Names are not parsed for an existing
// suffix: with a left v, right columns v and v_2 become v_2 and v_2_2.
func Merge(left, right []core.ColumnInfo, plan core.JoinPlan) (OutputSchema, error) {
	if len(plan.LeftKeys) != len(plan.RightKeys) {
		return OutputSchema{}, &core.KeySpecError{
			Reason: fmt.Sprintf("%d left keys but %d right keys", len(plan.LeftKeys), len(plan.RightKeys)),
		}
	}

	rightIdx := make(map[string]int, len(right))
	for i, c := range right {
		rightIdx[c.Name] = i
	}
	fallback := make(map[string]string, len(plan.LeftKeys))
	rightKeys := make(map[string]bool, len(plan.RightKeys))
	for i, lk := range plan.LeftKeys {
		rk := plan.RightKeys[i]
		if _, ok := rightIdx[rk]; !ok {
			return OutputSchema{}, &core.KeySpecError{Reason: "column not found", Side: core.SideRight, Column: rk}
		}
		fallback[lk] = rk
		rightKeys[rk] = true
	}

	cols := make([]OutputColumn, 0, len(left)+len(right))
	used := make(map[string]bool, len(left)+len(right))
	for _, c := range left {
		cols = append(cols, OutputColumn{
			Name:     c.Name,
			Side:     core.SideLeft,
			Source:   c.Name,
			Type:     c.Type,
			Fallback: fallback[c.Name],
		})
		used[c.Name] = true
	}
	for lk := range fallback {
		if !used[lk] {
			return OutputSchema{}, &core.KeySpecError{Reason: "column not found", Side: core.SideLeft, Column: lk}
		}
	}

	carried, err := carriedRight(right, rightIdx, plan.RightColumns)
	if err != nil {
		return OutputSchema{}, err
	}
	for _, c := range carried {
		if rightKeys[c.Name] {
			continue
		}
		name := uniqueName(c.Name, used)
		used[name] = true
		cols = append(cols, OutputColumn{
			Name:   name,
			Side:   core.SideRight,
			Source: c.Name,
			Type:   c.Type,
		})
	}
	return OutputSchema{Columns: cols}, nil
}

// carriedRight returns the right columns selected by names, in right-table
// order. Nil names selects every column.
func carriedRight(right []core.ColumnInfo, idx map[string]int, names []string) ([]core.ColumnInfo, error) {
	if names == nil {
		return right, nil
	}
	keep := make(map[string]bool, len(names))
	for _, n := range names {
		if _, ok := idx[n]; !ok {
			return nil, &core.KeySpecError{Reason: "column not found", Side: core.SideRight, Column: n}
		}
		keep[n] = true
	}
	out := make([]core.ColumnInfo, 0, len(keep))
	for _, c := range right {
		if keep[c.Name] {
			out = append(out, c)
		}
	}
	return out, nil
}

func uniqueName(name string, used map[string]bool) string {
	if !used[name] {
		return name
	}
	for i := 2; ; i++ {
		candidate := name + "_" + strconv.Itoa(i)
		if !used[candidate] {
			return candidate
		}
	}
}
