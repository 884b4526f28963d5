package commands

import (
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/jointab/pkg/core"
	"github.com/leapstack-labs/jointab/pkg/join"
)

// NewMatchCommand creates the match command.
func NewMatchCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "match <left> <right>",
		Short: "List candidate key columns for two tabs",
		Long: `List column pairs whose names match after trimming and case folding,
best first. A pair is usable as a join key when its types also match; the
first usable pair is the key 'jointab join' picks when none is given.`,
		Example: `  jointab match orders.csv customers.csv
  jointab match orders.csv crm.db#customers --output json`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMatch(cmd, args[0], args[1])
		},
	}
}

func runMatch(cmd *cobra.Command, leftArg, rightArg string) error {
	cmdCtx, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	left, right, err := loadPair(cmd.Context(), cmdCtx, leftArg, rightArg)
	if err != nil {
		return err
	}
	return cmdCtx.Renderer.Table(candidateTable(left, right, join.Propose(left, right)))
}

func candidateTable(left, right *core.Table, cands []join.Candidate) *core.Table {
	n := len(cands)
	var (
		lefts     = make([]core.Value, n)
		rights    = make([]core.Value, n)
		leftType  = make([]core.Value, n)
		rightType = make([]core.Value, n)
		conf      = make([]core.Value, n)
		usable    = make([]core.Value, n)
	)
	for i, c := range cands {
		lefts[i] = core.Text(c.Left)
		rights[i] = core.Text(c.Right)
		leftType[i] = core.Text(string(left.Column(c.Left).Type))
		rightType[i] = core.Text(string(right.Column(c.Right).Type))
		conf[i] = core.Text(c.Confidence.String())
		usable[i] = core.Bool(c.Feasible())
	}
	return core.MustTable(
		core.MustColumn("left", core.TypeText, lefts...),
		core.MustColumn("right", core.TypeText, rights...),
		core.MustColumn("left_type", core.TypeText, leftType...),
		core.MustColumn("right_type", core.TypeText, rightType...),
		core.MustColumn("confidence", core.TypeText, conf...),
		core.MustColumn("usable", core.TypeBoolean, usable...),
	)
}
