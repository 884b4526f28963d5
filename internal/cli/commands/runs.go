package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/jointab/internal/state"
	"github.com/leapstack-labs/jointab/pkg/core"
)

// RunsOptions holds options for the runs command.
type RunsOptions struct {
	Limit int
	RunID string
}

// NewRunsCommand creates the runs command.
func NewRunsCommand() *cobra.Command {
	opts := &RunsOptions{}

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded pipeline runs",
		Long: `List pipeline runs recorded in the state database, newest first.

With --run, show the join statistics recorded for each step of one run.`,
		Example: `  # Last 20 runs
  jointab runs

  # Step statistics of one run
  jointab runs --run 6f1c2a7e-...`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRuns(cmd, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 20, "Maximum number of runs to list (0 for all)")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "Show step statistics for this run")

	return cmd
}

func runRuns(cmd *cobra.Command, opts *RunsOptions) error {
	cmdCtx, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	store, err := cmdCtx.OpenStore()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	ctx := cmd.Context()
	if opts.RunID != "" {
		if _, err := store.GetRun(ctx, opts.RunID); err != nil {
			return err
		}
		stats, err := store.GetStepStats(ctx, opts.RunID)
		if err != nil {
			return err
		}
		return cmdCtx.Renderer.Table(stepStatsTable(stats))
	}

	runs, err := store.ListRuns(ctx, opts.Limit)
	if err != nil {
		return err
	}
	return cmdCtx.Renderer.Table(runsTable(runs))
}

func runsTable(runs []*state.Run) *core.Table {
	n := len(runs)
	var (
		ids      = make([]core.Value, n)
		pipeline = make([]core.Value, n)
		status   = make([]core.Value, n)
		started  = make([]core.Value, n)
		duration = make([]core.Value, n)
		errs     = make([]core.Value, n)
	)
	for i, r := range runs {
		ids[i] = core.Text(r.ID)
		pipeline[i] = core.Text(r.Pipeline)
		status[i] = core.Text(string(r.Status))
		started[i] = core.Timestamp(r.StartedAt)
		duration[i] = core.Missing()
		if r.CompletedAt != nil {
			duration[i] = core.Text(r.Duration().Round(time.Millisecond).String())
		}
		errs[i] = core.Missing()
		if r.Error != "" {
			errs[i] = core.Text(firstLine(r.Error))
		}
	}
	return core.MustTable(
		core.MustColumn("run_id", core.TypeText, ids...),
		core.MustColumn("pipeline", core.TypeText, pipeline...),
		core.MustColumn("status", core.TypeText, status...),
		core.MustColumn("started_at", core.TypeTimestamp, started...),
		core.MustColumn("duration", core.TypeText, duration...),
		core.MustColumn("error", core.TypeText, errs...),
	)
}

func stepStatsTable(stats []state.StepStat) *core.Table {
	cols := struct {
		step, typ, keys, left, right, out, matched, unLeft, unRight, fanout, growth []core.Value
	}{}
	for _, s := range stats {
		keys := make([]string, len(s.LeftKeys))
		for i := range s.LeftKeys {
			r := ""
			if i < len(s.RightKeys) {
				r = s.RightKeys[i]
			}
			keys[i] = s.LeftKeys[i] + "=" + r
		}
		cols.step = append(cols.step, core.Text(s.Step))
		cols.typ = append(cols.typ, core.Text(s.JoinType))
		cols.keys = append(cols.keys, core.Text(strings.Join(keys, ",")))
		cols.left = append(cols.left, core.Int(int64(s.LeftRows)))
		cols.right = append(cols.right, core.Int(int64(s.RightRows)))
		cols.out = append(cols.out, core.Int(int64(s.OutputRows)))
		cols.matched = append(cols.matched, core.Int(int64(s.MatchedPairs)))
		cols.unLeft = append(cols.unLeft, core.Int(int64(s.UnmatchedLeft)))
		cols.unRight = append(cols.unRight, core.Int(int64(s.UnmatchedRight)))
		cols.fanout = append(cols.fanout, core.Int(int64(s.MaxFanout)))
		cols.growth = append(cols.growth, core.Text(fmt.Sprintf("%.2fx", s.Growth())))
	}
	return core.MustTable(
		core.MustColumn("step", core.TypeText, cols.step...),
		core.MustColumn("type", core.TypeText, cols.typ...),
		core.MustColumn("keys", core.TypeText, cols.keys...),
		core.MustColumn("left_rows", core.TypeNumber, cols.left...),
		core.MustColumn("right_rows", core.TypeNumber, cols.right...),
		core.MustColumn("output_rows", core.TypeNumber, cols.out...),
		core.MustColumn("matched_pairs", core.TypeNumber, cols.matched...),
		core.MustColumn("unmatched_left", core.TypeNumber, cols.unLeft...),
		core.MustColumn("unmatched_right", core.TypeNumber, cols.unRight...),
		core.MustColumn("max_fanout", core.TypeNumber, cols.fanout...),
		core.MustColumn("growth", core.TypeText, cols.growth...),
	)
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}
