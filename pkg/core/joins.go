package core

import (
	"fmt"
	"strings"
)

// JoinType selects which unmatched rows a join keeps.
type JoinType string

// Supported join types.
const (
	JoinInner JoinType = "inner"
	JoinLeft  JoinType = "left"
	JoinRight JoinType = "right"
	JoinOuter JoinType = "outer"
)

// ParseJoinType parses a join type name. "full" and "full outer" are accepted
// for outer; matching is case-insensitive.
func ParseJoinType(s string) (JoinType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "inner":
		return JoinInner, nil
	case "left":
		return JoinLeft, nil
	case "right":
		return JoinRight, nil
	case "outer", "full", "full outer":
		return JoinOuter, nil
	}
	return "", fmt.Errorf("unknown join type %q (want inner, left, right or outer)", s)
}

// KeepsUnmatchedLeft reports whether left rows without a match are emitted.
func (jt JoinType) KeepsUnmatchedLeft() bool { return jt == JoinLeft || jt == JoinOuter }

// KeepsUnmatchedRight reports whether right rows without a match are emitted.
func (jt JoinType) KeepsUnmatchedRight() bool { return jt == JoinRight || jt == JoinOuter }

// JoinPlan is a validated description of a join.
type JoinPlan struct {
	// LeftKeys and RightKeys pair up positionally.
	LeftKeys  []string
	RightKeys []string
	Type      JoinType

	// RightColumns restricts the non-key right columns carried into the
	// output, in right-table order. Nil carries them all.
	RightColumns []string
}

// String renders the plan for logs.
func (p JoinPlan) String() string {
	pairs := make([]string, len(p.LeftKeys))
	for i := range p.LeftKeys {
		r := ""
		if i < len(p.RightKeys) {
			r = p.RightKeys[i]
		}
		pairs[i] = p.LeftKeys[i] + "=" + r
	}
	return fmt.Sprintf("%s join on %s", p.Type, strings.Join(pairs, ","))
}
