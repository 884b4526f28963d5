package join

import (
	"fmt"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/leapstack-labs/jointab/pkg/core"
	"github.com/leapstack-labs/jointab/pkg/normalize"
)

// NoRow marks the absent side of an unmatched pairing.
const NoRow = -1

// Pairing links one left row to one right row. At most one side is NoRow.
type Pairing struct {
	Left  int
	Right int
}

// execStats counts what the probe saw.
type execStats struct {
	matchedPairs   int
	unmatchedLeft  int
	unmatchedRight int
	distinctKeys   int
	maxFanout      int
}

// Execute pairs the rows of left and right under plan, canonicalizing keys
// with the zero Normalizer.
//
// The right table is indexed and every left row is probed in order. Matches
// come out in right-table order, so a key held by N left rows and M right
// rows yields N×M pairings. Left rows without a match follow their position
// for left and outer joins. Right rows never matched come last, in
// right-table order, for right and outer joins.
func Execute(left, right *core.Table, plan core.JoinPlan) ([]Pairing, error) {
	pairs, _, err := execute(left, right, plan, normalize.Normalizer{})
	return pairs, err
}

func execute(left, right *core.Table, plan core.JoinPlan, n normalize.Normalizer) ([]Pairing, execStats, error) {
	var st execStats
	if left == nil || right == nil {
		return nil, st, fmt.Errorf("join: both tables are required")
	}
	if len(plan.LeftKeys) == 0 || len(plan.LeftKeys) != len(plan.RightKeys) {
		return nil, st, &core.KeySpecError{
			Reason: fmt.Sprintf("%d left keys but %d right keys", len(plan.LeftKeys), len(plan.RightKeys)),
		}
	}

	ix, err := BuildIndex(right, plan.RightKeys, n)
	if err != nil {
		return nil, st, err
	}
	probe, err := newKeyEncoder(left, plan.LeftKeys, core.SideLeft, n)
	if err != nil {
		return nil, st, err
	}
	st.distinctKeys = ix.Len()

	visited := roaring.New()
	pairs := make([]Pairing, 0, max(left.RowCount(), right.RowCount()))

	for l := 0; l < left.RowCount(); l++ {
		var matches []uint32
		if key, ok := probe.encode(l); ok {
			matches = ix.Lookup(key)
		}
		if len(matches) == 0 {
			if plan.Type.KeepsUnmatchedLeft() {
				pairs = append(pairs, Pairing{Left: l, Right: NoRow})
				st.unmatchedLeft++
			}
			continue
		}
		for _, r := range matches {
			pairs = append(pairs, Pairing{Left: l, Right: int(r)})
		}
		visited.AddMany(matches)
		st.matchedPairs += len(matches)
		st.maxFanout = max(st.maxFanout, len(matches))
	}

	if plan.Type.KeepsUnmatchedRight() && right.RowCount() > 0 {
		unvisited := roaring.Flip(visited, 0, uint64(right.RowCount()))
		it := unvisited.Iterator()
		for it.HasNext() {
			pairs = append(pairs, Pairing{Left: NoRow, Right: int(it.Next())})
			st.unmatchedRight++
		}
	}

	return pairs, st, nil
}
