package join

import (
	"fmt"

	"github.com/leapstack-labs/jointab/pkg/core"
)

// Plan fixes the join to run. With no request it picks the best feasible
// candidate from Propose as a single-column inner join. A request is
// validated and returned as a copy; the join itself is not executed.
func Plan(left, right *core.Table, requested *core.JoinPlan) (core.JoinPlan, error) {
	if left == nil || right == nil {
		return core.JoinPlan{}, fmt.Errorf("join: both tables are required")
	}
	if requested == nil {
		return proposePlan(left, right)
	}
	return validatePlan(left, right, *requested)
}

func proposePlan(left, right *core.Table) (core.JoinPlan, error) {
	cands := Propose(left, right)
	for _, c := range cands {
		if c.Feasible() {
			return core.JoinPlan{
				LeftKeys:  []string{c.Left},
				RightKeys: []string{c.Right},
				Type:      core.JoinInner,
			}, nil
		}
	}
	if len(cands) > 0 {
		c := cands[0]
		return core.JoinPlan{}, fmt.Errorf("%w: %q matches %q by name but the types differ (%s vs %s)",
			core.ErrNoSharedColumns, c.Left, c.Right,
			left.Column(c.Left).Type, right.Column(c.Right).Type)
	}
	return core.JoinPlan{}, core.ErrNoSharedColumns
}

func validatePlan(left, right *core.Table, req core.JoinPlan) (core.JoinPlan, error) {
	if len(req.LeftKeys) == 0 || len(req.RightKeys) == 0 {
		return core.JoinPlan{}, &core.KeySpecError{Reason: "no key columns given"}
	}
	if len(req.LeftKeys) != len(req.RightKeys) {
		return core.JoinPlan{}, &core.KeySpecError{
			Reason: fmt.Sprintf("%d left keys but %d right keys", len(req.LeftKeys), len(req.RightKeys)),
		}
	}

	jt := core.JoinInner
	if req.Type != "" {
		parsed, err := core.ParseJoinType(string(req.Type))
		if err != nil {
			return core.JoinPlan{}, &core.KeySpecError{Reason: err.Error()}
		}
		jt = parsed
	}

	if err := checkKeys(left, req.LeftKeys, core.SideLeft); err != nil {
		return core.JoinPlan{}, err
	}
	if err := checkKeys(right, req.RightKeys, core.SideRight); err != nil {
		return core.JoinPlan{}, err
	}
	for i, ln := range req.LeftKeys {
		lt, rt := left.Column(ln).Type, right.Column(req.RightKeys[i]).Type
		if lt != rt {
			return core.JoinPlan{}, &core.KeySpecError{
				Reason: fmt.Sprintf("type mismatch: %s vs right %q %s", lt, req.RightKeys[i], rt),
				Side:   core.SideLeft,
				Column: ln,
			}
		}
	}

	var rightCols []string
	if req.RightColumns != nil {
		rightCols = make([]string, 0, len(req.RightColumns))
		for _, name := range req.RightColumns {
			if right.Column(name) == nil {
				return core.JoinPlan{}, &core.KeySpecError{Reason: "column not found", Side: core.SideRight, Column: name}
			}
			rightCols = append(rightCols, name)
		}
	}

	return core.JoinPlan{
		LeftKeys:     append([]string(nil), req.LeftKeys...),
		RightKeys:    append([]string(nil), req.RightKeys...),
		Type:         jt,
		RightColumns: rightCols,
	}, nil
}

func checkKeys(t *core.Table, keys []string, side core.Side) error {
	seen := make(map[string]bool, len(keys))
	for _, k := range keys {
		if t.Column(k) == nil {
			return &core.KeySpecError{Reason: "column not found", Side: side, Column: k}
		}
		if seen[k] {
			return &core.KeySpecError{Reason: "column used twice as a key", Side: side, Column: k}
		}
		seen[k] = true
	}
	return nil
}
