package commands

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/jointab/internal/cli/testutil"
	"github.com/leapstack-labs/jointab/internal/config"
)

func TestNewDAGCommand(t *testing.T) {
	cmd := NewDAGCommand()

	assert.Equal(t, "dag", cmd.Use)
	assert.NotEmpty(t, cmd.Short, "Short should not be empty")
	assert.NotEmpty(t, cmd.Long, "Long should not be empty")
	assert.NotEmpty(t, cmd.Example, "Example should not be empty")
}

func projectConfig(dir string) *config.Config {
	cfg := config.Default()
	cfg.ProjectRoot = dir
	cfg.Pipeline = filepath.Join(dir, "pipeline.yaml")
	cfg.StatePath = filepath.Join(dir, ".jointab", "state.db")
	return cfg
}

func TestDAGCommand_JSON(t *testing.T) {
	dir := testutil.SetupTestProject(t)
	tr := testutil.NewTestRendererJSON()

	cmd := NewDAGCommand()
	cmd.SetArgs([]string{})
	require.NoError(t, cmd.ExecuteContext(tr.Context(projectConfig(dir))))

	var out DAGOutput
	require.NoError(t, json.Unmarshal(tr.Out.Bytes(), &out))
	assert.Equal(t, 4, out.TotalNodes)
	assert.Equal(t, 3, out.TotalEdges)
	require.Len(t, out.Levels, 3)

	byName := map[string]DAGNode{}
	for _, level := range out.Levels {
		for _, n := range level.Nodes {
			byName[n.Name] = n
		}
	}
	assert.Len(t, out.Levels[0].Nodes, 2)
	assert.Equal(t, DAGNode{
		Name:      "orders",
		Kind:      "tab",
		Source:    "csv data/orders.csv",
		DependsOn: []string{},
		UsedBy:    []string{"enriched"},
	}, byName["orders"])
	assert.Equal(t, "join orders with customers", byName["enriched"].Source)
	assert.ElementsMatch(t, []string{"orders", "customers"}, byName["enriched"].DependsOn)
	assert.Equal(t, DAGNode{
		Name:      "report",
		Kind:      "step",
		Source:    "pass-through enriched",
		DependsOn: []string{"enriched"},
		UsedBy:    []string{},
	}, byName["report"])
}

func TestDAGCommand_Markdown(t *testing.T) {
	dir := testutil.SetupTestProject(t)
	tr := testutil.NewTestRendererMarkdown()

	cmd := NewDAGCommand()
	cmd.SetArgs([]string{})
	require.NoError(t, cmd.ExecuteContext(tr.Context(projectConfig(dir))))

	md := tr.Output()
	testutil.AssertNoANSI(t, md)
	testutil.AssertValidMarkdown(t, md)
	assert.Contains(t, md, "# Pipeline Graph")
	assert.Contains(t, md, "## Level 0 (Sources)")
	assert.Contains(t, md, "- report\n  - depends on: enriched\n")
	assert.Contains(t, md, "- **Total Nodes**: 4")
}

func TestDAGCommand_MissingPipeline(t *testing.T) {
	tr := testutil.NewTestRendererJSON()
	cfg := projectConfig(t.TempDir())

	cmd := NewDAGCommand()
	cmd.SetArgs([]string{})
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true
	assert.Error(t, cmd.ExecuteContext(tr.Context(cfg)))
}
