package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/jointab/internal/dag"
	"github.com/leapstack-labs/jointab/internal/sink"
	"github.com/leapstack-labs/jointab/internal/source"
	"github.com/leapstack-labs/jointab/internal/state"
	"github.com/leapstack-labs/jointab/pkg/core"
	"github.com/leapstack-labs/jointab/pkg/join"
	"github.com/leapstack-labs/jointab/pkg/normalize"
)

// Runner executes a pipeline definition.
type Runner struct {
	Def    *Definition
	Logger *slog.Logger

	// Normalizer is used by sources and joins.
	Normalizer normalize.Normalizer

	// DefaultJoinType applies to steps that name no type. Empty means inner.
	DefaultJoinType core.JoinType

	// FanoutWarnRatio is passed to every join.
	FanoutWarnRatio float64

	// Store records runs and step statistics when set.
	Store state.Store

	// Targets restricts the run to these tabs and what they depend on.
	Targets []string

	// Concurrency bounds parallel loads and joins; zero means GOMAXPROCS.
	Concurrency int
}

// StepResult describes one executed step.
type StepResult struct {
	Step string

	// PassThrough is set when the step returned its left tab unchanged.
	PassThrough bool

	Plan  core.JoinPlan
	Stats join.Stats
}

// Result is the outcome of a run.
type Result struct {
	RunID string
	Tabs  map[string]*core.Table
	Steps []StepResult

	// Outputs lists the files written, in definition order.
	Outputs []string
}

// Run loads every tab, runs the steps level by level and writes the
// outputs. When a Store is set the run and each join's statistics are
// recorded; a failed run is recorded as failed (or cancelled) with its error.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	if r.Def == nil {
		return nil, fmt.Errorf("no pipeline definition")
	}
	logger := r.logger()

	g, err := r.graph()
	if err != nil {
		return nil, err
	}
	levels, err := g.GetExecutionLevels()
	if err != nil {
		return nil, err
	}

	res := &Result{Tabs: make(map[string]*core.Table)}
	if r.Store != nil {
		run, err := r.Store.CreateRun(ctx, r.Def.Path)
		if err != nil {
			return nil, err
		}
		res.RunID = run.ID
	}

	start := time.Now()
	logger.Info("run started", "run_id", res.RunID, "pipeline", r.Def.Path, "nodes", g.NodeCount())

	runErr := r.execute(ctx, g, levels, res)
	if runErr == nil {
		runErr = r.writeOutputs(ctx, res)
	}
	r.finish(res, runErr)

	if runErr != nil {
		logger.Error("run failed", "run_id", res.RunID, "error", runErr.Error())
		return nil, runErr
	}
	logger.Info("run completed",
		"run_id", res.RunID,
		"steps", len(res.Steps),
		"outputs", len(res.Outputs),
		"duration", time.Since(start))
	return res, nil
}

func (r *Runner) graph() (*dag.Graph[Node], error) {
	g, err := r.Def.Graph()
	if err != nil {
		return nil, err
	}
	if len(r.Targets) == 0 {
		return g, nil
	}
	keep := []string{}
	for _, target := range r.Targets {
		if _, ok := g.GetNode(target); !ok {
			return nil, fmt.Errorf("unknown target tab %q", target)
		}
		keep = append(keep, target)
		keep = append(keep, g.GetUpstreamNodes(target)...)
	}
	return g.Subgraph(keep), nil
}

func (r *Runner) execute(ctx context.Context, g *dag.Graph[Node], levels [][]string, res *Result) error {
	limit := r.Concurrency
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}

	var mu sync.Mutex
	for _, level := range levels {
		eg, egCtx := errgroup.WithContext(ctx)
		eg.SetLimit(limit)
		for _, id := range level {
			node, _ := g.GetNode(id)
			eg.Go(func() error {
				if err := egCtx.Err(); err != nil {
					return err
				}
				if node.Data.Tab != nil {
					tbl, err := r.loadTab(egCtx, *node.Data.Tab)
					if err != nil {
						return err
					}
					mu.Lock()
					res.Tabs[id] = tbl
					mu.Unlock()
					return nil
				}

				mu.Lock()
				left := res.Tabs[node.Data.Step.Params.Left]
				right := res.Tabs[node.Data.Step.Params.Right]
				mu.Unlock()

				tbl, sr, err := r.runStep(egCtx, *node.Data.Step, left, right)
				if err != nil {
					return err
				}
				mu.Lock()
				res.Tabs[id] = tbl
				res.Steps = append(res.Steps, sr)
				mu.Unlock()
				return r.recordStep(ctx, res.RunID, sr)
			})
		}
		if err := eg.Wait(); err != nil {
			return err
		}
	}

	order := make(map[string]int, len(r.Def.Steps))
	for i, st := range r.Def.Steps {
		order[st.Name] = i
	}
	slices.SortFunc(res.Steps, func(a, b StepResult) int { return order[a.Step] - order[b.Step] })
	return nil
}

func (r *Runner) loadTab(ctx context.Context, tab Tab) (*core.Table, error) {
	logger := r.logger().With("tab", tab.Name)
	spec := tab.Spec
	spec.Path = resolvePath(r.Def.BaseDir(), spec.Path)

	src, err := source.NewSource(spec, logger, r.Normalizer)
	if err != nil {
		return nil, fmt.Errorf("tab %q: %w", tab.Name, err)
	}
	start := time.Now()
	tbl, err := src.Load(ctx, spec)
	if err != nil {
		return nil, fmt.Errorf("tab %q: %w", tab.Name, err)
	}
	logger.Debug("tab loaded",
		"type", spec.Type,
		"rows", tbl.RowCount(),
		"columns", tbl.Width(),
		"duration", time.Since(start))
	return tbl, nil
}

func (r *Runner) runStep(ctx context.Context, st Step, left, right *core.Table) (*core.Table, StepResult, error) {
	logger := r.logger().With("step", st.Name)
	sr := StepResult{Step: st.Name}

	jt := r.DefaultJoinType
	if jt == "" {
		jt = core.JoinInner
	}
	req, err := st.Params.Resolve(left, right, jt, logger)
	if err != nil {
		return nil, sr, fmt.Errorf("step %q: %w", st.Name, err)
	}
	if req == nil {
		logger.Info("step passed its left tab through", "left", st.Params.Left)
		sr.PassThrough = true
		return left, sr, nil
	}

	j := join.Joiner{Logger: logger, Normalizer: r.Normalizer, FanoutWarnRatio: r.FanoutWarnRatio}
	out, err := j.Join(ctx, left, right, req)
	if err != nil {
		return nil, sr, fmt.Errorf("step %q: %w", st.Name, err)
	}
	sr.Plan = out.Plan
	sr.Stats = out.Stats
	return out.Table, sr, nil
}

func (r *Runner) recordStep(ctx context.Context, runID string, sr StepResult) error {
	if r.Store == nil || sr.PassThrough {
		return nil
	}
	return r.Store.RecordStep(ctx, state.StepStat{
		RunID:          runID,
		Step:           sr.Step,
		JoinType:       string(sr.Plan.Type),
		LeftKeys:       sr.Plan.LeftKeys,
		RightKeys:      sr.Plan.RightKeys,
		LeftRows:       sr.Stats.LeftRows,
		RightRows:      sr.Stats.RightRows,
		OutputRows:     sr.Stats.OutputRows,
		MatchedPairs:   sr.Stats.MatchedPairs,
		UnmatchedLeft:  sr.Stats.UnmatchedLeft,
		UnmatchedRight: sr.Stats.UnmatchedRight,
		DistinctKeys:   sr.Stats.DistinctKeys,
		MaxFanout:      sr.Stats.MaxFanout,
		Duration:       sr.Stats.Duration,
	})
}

func (r *Runner) writeOutputs(ctx context.Context, res *Result) error {
	for _, out := range r.Def.Outputs {
		if err := ctx.Err(); err != nil {
			return err
		}
		tbl, ok := res.Tabs[out.Tab]
		if !ok {
			r.logger().Debug("skipping output of a tab outside the targets", "tab", out.Tab)
			continue
		}
		path := resolvePath(r.Def.BaseDir(), out.Path)
		if err := sink.WriteFile(path, out.Format, tbl); err != nil {
			return fmt.Errorf("output %q: %w", out.Path, err)
		}
		r.logger().Info("output written", "tab", out.Tab, "path", path, "rows", tbl.RowCount())
		res.Outputs = append(res.Outputs, path)
	}
	return nil
}

// finish records the final run status. It uses a fresh context so a
// cancelled run is still recorded.
func (r *Runner) finish(res *Result, runErr error) {
	if r.Store == nil || res.RunID == "" {
		return
	}
	status, msg := state.RunStatusCompleted, ""
	switch {
	case errors.Is(runErr, context.Canceled), errors.Is(runErr, context.DeadlineExceeded):
		status, msg = state.RunStatusCancelled, runErr.Error()
	case runErr != nil:
		status, msg = state.RunStatusFailed, runErr.Error()
	}
	if err := r.Store.CompleteRun(context.Background(), res.RunID, status, msg); err != nil {
		r.logger().Warn("failed to record run status", "run_id", res.RunID, "error", err.Error())
	}
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return r.Logger
}
