package commands

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/jointab/internal/cli/output"
	"github.com/leapstack-labs/jointab/internal/dag"
	"github.com/leapstack-labs/jointab/internal/pipeline"
)

// GraphQuerier provides read-only access to DAG structure.
type GraphQuerier interface {
	GetParents(string) []string
	GetChildren(string) []string
	NodeCount() int
	EdgeCount() int
}

// DAGNode is one tab or step in JSON output.
type DAGNode struct {
	Name      string   `json:"name"`
	Kind      string   `json:"kind"`
	Source    string   `json:"source,omitempty"`
	DependsOn []string `json:"depends_on"`
	UsedBy    []string `json:"used_by"`
}

// DAGLevel groups nodes that can run concurrently.
type DAGLevel struct {
	Level int       `json:"level"`
	Nodes []DAGNode `json:"nodes"`
}

// DAGOutput is the JSON form of the dag command.
type DAGOutput struct {
	Levels     []DAGLevel `json:"levels"`
	TotalNodes int        `json:"total_nodes"`
	TotalEdges int        `json:"total_edges"`
}

// NewDAGCommand creates the dag command.
func NewDAGCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dag",
		Short: "Show the pipeline's dependency graph",
		Long: `Display the tabs and join steps of the pipeline grouped by execution level.

Everything in one level runs concurrently; level 0 holds the tabs loaded
from sources.

Output adapts to environment:
  - Terminal: Styled output with colors
  - Piped/Scripted: Markdown format (agent-friendly)`,
		Example: `  # Show the DAG
  jointab dag

  # Output as JSON
  jointab dag --output json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDAG(cmd)
		},
	}

	return cmd
}

func runDAG(cmd *cobra.Command) error {
	cmdCtx, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	def, err := pipeline.Load(cmdCtx.Cfg.Pipeline)
	if err != nil {
		return err
	}
	graph, err := def.Graph()
	if err != nil {
		return err
	}
	levels, err := graph.GetExecutionLevels()
	if err != nil {
		return fmt.Errorf("failed to get execution levels: %w", err)
	}

	r := cmdCtx.Renderer
	switch r.EffectiveMode() {
	case output.ModeJSON:
		return dagJSON(r, graph, levels)
	case output.ModeMarkdown:
		return dagMarkdown(r, graph, levels)
	default:
		return dagText(r, graph, levels)
	}
}

// describeNode names the source of a tab or the join of a step.
func describeNode(graph *dag.Graph[pipeline.Node], id string) (kind, detail string) {
	node, ok := graph.GetNode(id)
	if !ok {
		return "", ""
	}
	if tab := node.Data.Tab; tab != nil {
		detail = tab.Type
		switch {
		case tab.Path != "":
			detail += " " + tab.Path
		case tab.Table != "":
			detail += " " + tab.Table
		}
		return "tab", detail
	}
	p := node.Data.Step.Params
	if p.Right == "" {
		return "step", "pass-through " + p.Left
	}
	return "step", fmt.Sprintf("join %s with %s", p.Left, p.Right)
}

// dagText outputs DAG in styled text format.
func dagText(r *output.Renderer, graph *dag.Graph[pipeline.Node], levels [][]string) error {
	styles := r.Styles()

	r.Header(1, "Pipeline Graph")
	r.Println("")

	for i, level := range levels {
		r.Println(styles.Header2.Render(fmt.Sprintf("Level %d:", i)))
		for _, id := range level {
			_, detail := describeNode(graph, id)
			r.Printf("  %s %s\n", styles.Bold.Render(id), styles.Muted.Render(detail))
			if deps := graph.GetParents(id); len(deps) > 0 {
				r.Printf("    %s %s\n", styles.Muted.Render("depends on:"), strings.Join(deps, ", "))
			}
			if children := graph.GetChildren(id); len(children) > 0 {
				r.Printf("    %s %s\n", styles.Muted.Render("used by:"), strings.Join(children, ", "))
			}
		}
		r.Println("")
	}

	r.Println(styles.Muted.Render(fmt.Sprintf("Total: %d tabs and steps, %d dependencies", graph.NodeCount(), graph.EdgeCount())))
	return nil
}

// dagMarkdown outputs DAG in markdown format.
func dagMarkdown(r *output.Renderer, graph GraphQuerier, levels [][]string) error {
	r.Println("# Pipeline Graph")
	r.Println("")

	for i, level := range levels {
		levelName := fmt.Sprintf("Level %d", i)
		if i == 0 {
			levelName = "Level 0 (Sources)"
		}
		r.Println("## " + levelName)
		r.Println("")

		for _, id := range level {
			r.Printf("- %s\n", id)
			if deps := graph.GetParents(id); len(deps) > 0 {
				r.Printf("  - depends on: %s\n", strings.Join(deps, ", "))
			}
			if children := graph.GetChildren(id); len(children) > 0 {
				r.Printf("  - used by: %s\n", strings.Join(children, ", "))
			}
		}
		r.Println("")
	}

	r.Println("## Summary")
	r.Println("")
	r.Printf("- **Total Nodes**: %d\n", graph.NodeCount())
	r.Printf("- **Total Dependencies**: %d\n", graph.EdgeCount())
	return nil
}

// dagJSON outputs DAG in JSON format.
func dagJSON(r *output.Renderer, graph *dag.Graph[pipeline.Node], levels [][]string) error {
	out := DAGOutput{
		Levels:     make([]DAGLevel, 0, len(levels)),
		TotalNodes: graph.NodeCount(),
		TotalEdges: graph.EdgeCount(),
	}

	for i, level := range levels {
		dl := DAGLevel{Level: i, Nodes: make([]DAGNode, 0, len(level))}
		for _, id := range level {
			kind, detail := describeNode(graph, id)
			dl.Nodes = append(dl.Nodes, DAGNode{
				Name:      id,
				Kind:      kind,
				Source:    detail,
				DependsOn: nonNilStrings(graph.GetParents(id)),
				UsedBy:    nonNilStrings(graph.GetChildren(id)),
			})
		}
		out.Levels = append(out.Levels, dl)
	}

	enc := json.NewEncoder(r.Writer())
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
