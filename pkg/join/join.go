// Package join is the jointab engine: it proposes key columns, validates a
// join plan, pairs rows with a hash join, merges the two schemas and builds
// the result table.
//
// The engine is synchronous and keeps no state between calls, so independent
// joins may run concurrently. Inputs are never modified.
package join

import (
	"context"
	"log/slog"
	"time"

	"github.com/leapstack-labs/jointab/pkg/core"
	"github.com/leapstack-labs/jointab/pkg/normalize"
)

// DefaultFanoutWarnRatio is the output growth, relative to the larger input,
// above which a join logs a warning.
const DefaultFanoutWarnRatio = 10.0

// Stats describes one completed join.
type Stats struct {
	LeftRows       int
	RightRows      int
	OutputRows     int
	MatchedPairs   int
	UnmatchedLeft  int
	UnmatchedRight int
	DistinctKeys   int           // distinct non-missing keys on the right
	MaxFanout      int           // most right rows matched by one left row
	Duration       time.Duration // wall time of the whole join
}

// Growth is OutputRows divided by the larger input, or 0 for empty inputs.
func (s Stats) Growth() float64 {
	base := max(s.LeftRows, s.RightRows)
	if base == 0 {
		return 0
	}
	return float64(s.OutputRows) / float64(base)
}

// Result is the output of a join.
type Result struct {
	Table  *core.Table
	Plan   core.JoinPlan
	Schema OutputSchema
	Stats  Stats
}

// Joiner runs joins. The zero value is ready to use: it logs nothing, reads
// zone-naive timestamps as UTC and never warns about fan-out.
type Joiner struct {
	Logger     *slog.Logger
	Normalizer normalize.Normalizer

	// FanoutWarnRatio triggers a warning when the output exceeds this many
	// times the larger input. Zero disables the warning. Rows are never dropped.
	FanoutWarnRatio float64
}

// Join runs a join with a zero Joiner.
func Join(ctx context.Context, left, right *core.Table, requested *core.JoinPlan) (*Result, error) {
	return Joiner{}.Join(ctx, left, right, requested)
}

// Join plans, executes, merges and builds. It either returns a complete
// result or an error and no output. The context is only checked before work
// starts.
func (j Joiner) Join(ctx context.Context, left, right *core.Table, requested *core.JoinPlan) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	logger := j.logger()
	start := time.Now()

	plan, err := Plan(left, right, requested)
	if err != nil {
		return nil, err
	}
	logger.Debug("join planned",
		"plan", plan.String(),
		"proposed", requested == nil,
		"left_rows", left.RowCount(),
		"right_rows", right.RowCount())

	pairs, es, err := execute(left, right, plan, j.Normalizer)
	if err != nil {
		return nil, err
	}
	schema, err := Merge(left.Infos(), right.Infos(), plan)
	if err != nil {
		return nil, err
	}
	out, err := Build(left, right, pairs, schema)
	if err != nil {
		return nil, err
	}

	stats := Stats{
		LeftRows:       left.RowCount(),
		RightRows:      right.RowCount(),
		OutputRows:     out.RowCount(),
		MatchedPairs:   es.matchedPairs,
		UnmatchedLeft:  es.unmatchedLeft,
		UnmatchedRight: es.unmatchedRight,
		DistinctKeys:   es.distinctKeys,
		MaxFanout:      es.maxFanout,
		Duration:       time.Since(start),
	}

	if j.FanoutWarnRatio > 0 && stats.Growth() > j.FanoutWarnRatio {
		logger.Warn("join output grew beyond fan-out threshold",
			"plan", plan.String(),
			"output_rows", stats.OutputRows,
			"left_rows", stats.LeftRows,
			"right_rows", stats.RightRows,
			"max_fanout", stats.MaxFanout,
			"ratio", j.FanoutWarnRatio)
	}
	logger.Info("join completed",
		"type", string(plan.Type),
		"output_rows", stats.OutputRows,
		"matched_pairs", stats.MatchedPairs,
		"unmatched_left", stats.UnmatchedLeft,
		"unmatched_right", stats.UnmatchedRight,
		"duration", stats.Duration)

	return &Result{Table: out, Plan: plan, Schema: schema, Stats: stats}, nil
}

func (j Joiner) logger() *slog.Logger {
	if j.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return j.Logger
}
