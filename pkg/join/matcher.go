package join

import (
	"sort"
	"strings"

	"github.com/leapstack-labs/jointab/pkg/core"
)

// Confidence ranks a proposed key pair. Higher is better.
type Confidence int

// Confidence levels.
const (
	ExactNameTypeMismatch Confidence = iota + 1
	ExactNameTypeMatch
)

func (c Confidence) String() string {
	switch c {
	case ExactNameTypeMatch:
		return "exact_name_type_match"
	case ExactNameTypeMismatch:
		return "exact_name_type_mismatch"
	default:
		return "unknown"
	}
}

// Candidate is a proposed pair of key columns.
type Candidate struct {
	Left       string
	Right      string
	Confidence Confidence
}

// Feasible reports whether the pair can be joined as is.
func (c Candidate) Feasible() bool { return c.Confidence == ExactNameTypeMatch }

// Propose lists column pairs whose names agree after trimming and ignoring
// case. Candidates are ordered by confidence, then left column order, then
// right column order. No shared name yields an empty slice.
func Propose(left, right *core.Table) []Candidate {
	out := []Candidate{}
	if left == nil || right == nil {
		return out
	}
	for _, lc := range left.Columns() {
		ln := strings.TrimSpace(lc.Name)
		for _, rc := range right.Columns() {
			if !strings.EqualFold(ln, strings.TrimSpace(rc.Name)) {
				continue
			}
			conf := ExactNameTypeMismatch
			if lc.Type == rc.Type {
				conf = ExactNameTypeMatch
			}
			out = append(out, Candidate{Left: lc.Name, Right: rc.Name, Confidence: conf})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Confidence > out[j].Confidence
	})
	return out
}
