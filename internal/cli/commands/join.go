package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/jointab/internal/cli/output"
	"github.com/leapstack-labs/jointab/internal/sink"
	"github.com/leapstack-labs/jointab/pkg/core"
	"github.com/leapstack-labs/jointab/pkg/join"
)

// JoinOptions holds options for the join command.
type JoinOptions struct {
	On           []string
	LeftOn       []string
	RightOn      []string
	Type         string
	RightColumns []string
	Out          string
	Format       string
}

// NewJoinCommand creates the join command.
func NewJoinCommand() *cobra.Command {
	opts := &JoinOptions{}

	cmd := &cobra.Command{
		Use:   "join <left> <right>",
		Short: "Join two tabs on shared columns",
		Long: `Join two tabs and print or write the result.

Tabs are files (csv, tsv, parquet) or tables in database files and
connection URLs, written as PATH#TABLE. Without --on or --left-on/--right-on
the key is picked from columns whose names match; use 'jointab match' to see
the candidates.

Every left column is kept. Right columns follow, minus the right key columns;
a right column whose name is already taken gets a _2, _3, ... suffix.`,
		Example: `  # Join on the column both files share
  jointab join orders.csv customers.csv

  # Left join on differently named keys, keeping one right column
  jointab join orders.csv crm.db#customers --left-on customer_id --right-on id \
    --type left --right-columns city

  # Write the result as parquet
  jointab join orders.csv customers.parquet --on id --out joined.parquet`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJoin(cmd, args[0], args[1], opts)
		},
	}

	cmd.Flags().StringSliceVar(&opts.On, "on", nil, "Key columns present under the same name in both tabs")
	cmd.Flags().StringSliceVar(&opts.LeftOn, "left-on", nil, "Left key columns, paired with --right-on")
	cmd.Flags().StringSliceVar(&opts.RightOn, "right-on", nil, "Right key columns, paired with --left-on")
	cmd.Flags().StringVar(&opts.Type, "type", "", "Join type: inner, left, right or outer (default from config)")
	cmd.Flags().StringSliceVar(&opts.RightColumns, "right-columns", nil, "Right columns to carry (default all)")
	cmd.Flags().StringVar(&opts.Out, "out", "", "Write the result to this file instead of printing it")
	cmd.Flags().StringVar(&opts.Format, "format", "", "Output file format (default from the --out extension)")

	cmd.MarkFlagsMutuallyExclusive("on", "left-on")
	cmd.MarkFlagsMutuallyExclusive("on", "right-on")
	cmd.MarkFlagsRequiredTogether("left-on", "right-on")

	_ = cmd.RegisterFlagCompletionFunc("type", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"inner", "left", "right", "outer"}, cobra.ShellCompDirectiveNoFileComp
	})
	_ = cmd.RegisterFlagCompletionFunc("format", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return sink.ListFormats(), cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

func runJoin(cmd *cobra.Command, leftArg, rightArg string, opts *JoinOptions) error {
	cmdCtx, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	left, right, err := loadPair(ctx, cmdCtx, leftArg, rightArg)
	if err != nil {
		return err
	}

	req, err := opts.request(left, right, cmdCtx.Cfg.JoinType())
	if err != nil {
		return err
	}

	j := join.Joiner{
		Logger:          cmdCtx.Logger,
		Normalizer:      cmdCtx.Normalizer,
		FanoutWarnRatio: cmdCtx.Cfg.FanoutWarnRatio,
	}
	res, err := j.Join(ctx, left, right, req)
	if err != nil {
		return err
	}

	r := cmdCtx.Renderer
	if opts.Out != "" {
		if err := sink.WriteFile(opts.Out, opts.Format, res.Table); err != nil {
			return err
		}
		r.Success(fmt.Sprintf("Wrote %d rows to %s", res.Table.RowCount(), opts.Out))
		return nil
	}

	if err := r.Table(res.Table); err != nil {
		return err
	}
	if r.EffectiveMode() == output.ModeText {
		r.Println(r.Styles().Muted.Render(statsLine(res.Plan, res.Stats)))
	}
	return nil
}

// request builds the join request. With no keys given the key is proposed
// here, so --type and --right-columns still apply to it.
func (o *JoinOptions) request(left, right *core.Table, defaultType core.JoinType) (*core.JoinPlan, error) {
	jt := defaultType
	if o.Type != "" {
		parsed, err := core.ParseJoinType(o.Type)
		if err != nil {
			return nil, err
		}
		jt = parsed
	}

	var req core.JoinPlan
	switch {
	case len(o.LeftOn) > 0 || len(o.RightOn) > 0:
		req = core.JoinPlan{LeftKeys: o.LeftOn, RightKeys: o.RightOn}
	case len(o.On) > 0:
		req = core.JoinPlan{LeftKeys: o.On, RightKeys: o.On}
	default:
		proposed, err := join.Plan(left, right, nil)
		if err != nil {
			return nil, err
		}
		req = proposed
	}
	req.Type = jt
	req.RightColumns = o.RightColumns
	return &req, nil
}

func loadPair(ctx context.Context, cmdCtx *CommandContext, leftArg, rightArg string) (*core.Table, *core.Table, error) {
	var left, right *core.Table
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		left, err = cmdCtx.LoadTab(gctx, leftArg)
		return err
	})
	g.Go(func() error {
		var err error
		right, err = cmdCtx.LoadTab(gctx, rightArg)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return left, right, nil
}

func statsLine(plan core.JoinPlan, st join.Stats) string {
	return fmt.Sprintf("%s: %d matched pairs, %d unmatched left, %d unmatched right, max fan-out %d, %s",
		plan.String(), st.MatchedPairs, st.UnmatchedLeft, st.UnmatchedRight, st.MaxFanout, st.Duration.Round(time.Microsecond))
}
