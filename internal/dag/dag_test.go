package dag

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ids[T any](nodes []*Node[T]) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.ID
	}
	return out
}

// diamond: orders and customers feed enriched; enriched and regions feed report.
func diamond(t *testing.T) *Graph[string] {
	t.Helper()
	g := NewGraph[string]()
	for _, id := range []string{"report", "orders", "customers", "enriched", "regions"} {
		g.AddNode(id, "data "+id)
	}
	require.NoError(t, g.AddEdge("orders", "enriched"))
	require.NoError(t, g.AddEdge("customers", "enriched"))
	require.NoError(t, g.AddEdge("enriched", "report"))
	require.NoError(t, g.AddEdge("regions", "report"))
	return g
}

func TestGraph_AddNodeAndEdge(t *testing.T) {
	g := diamond(t)
	assert.Equal(t, 5, g.NodeCount())
	assert.Equal(t, 4, g.EdgeCount())

	require.NoError(t, g.AddEdge("orders", "enriched"), "duplicate edges are ignored")
	assert.Equal(t, 4, g.EdgeCount())

	g.AddNode("orders", "replaced")
	n, ok := g.GetNode("orders")
	require.True(t, ok)
	assert.Equal(t, "replaced", n.Data)
	assert.Equal(t, 5, g.NodeCount())

	assert.Equal(t, []string{"orders", "customers"}, g.GetParents("enriched"))
	assert.Equal(t, []string{"report"}, g.GetChildren("regions"))
}

func TestGraph_AddEdgeErrors(t *testing.T) {
	g := NewGraph[int]()
	g.AddNode("a", 1)

	tests := []struct {
		name          string
		parent, child string
		errSubstr     string
	}{
		{"missing child", "a", "nope", `child node "nope"`},
		{"missing parent", "nope", "a", `parent node "nope"`},
		{"self loop", "a", "a", "self-loop"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := g.AddEdge(tt.parent, tt.child)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errSubstr)
		})
	}
}

func TestGraph_TopologicalSort(t *testing.T) {
	order, err := diamond(t).TopologicalSort()
	require.NoError(t, err)
	assert.Equal(t, []string{"orders", "customers", "enriched", "regions", "report"}, ids(order))
}

func TestGraph_Cycle(t *testing.T) {
	g := NewGraph[string]()
	g.AddNode("a", "")
	g.AddNode("b", "")
	g.AddNode("c", "")
	require.NoError(t, g.AddEdge("a", "b"))
	require.NoError(t, g.AddEdge("b", "c"))
	require.NoError(t, g.AddEdge("c", "a"))

	has, path := g.HasCycle()
	assert.True(t, has)
	assert.Equal(t, []string{"a", "b", "c", "a"}, path)

	_, err := g.TopologicalSort()
	var cycleErr *CycleError
	require.ErrorAs(t, err, &cycleErr)
	assert.Contains(t, err.Error(), "cycle detected")

	_, err = g.GetExecutionLevels()
	assert.ErrorAs(t, err, &cycleErr)
}

func TestGraph_ExecutionLevels(t *testing.T) {
	levels, err := diamond(t).GetExecutionLevels()
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"orders", "customers", "regions"},
		{"enriched"},
		{"report"},
	}, levels)

	empty, err := NewGraph[string]().GetExecutionLevels()
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestGraph_UpstreamAndRoots(t *testing.T) {
	g := diamond(t)
	assert.Equal(t, []string{"orders", "customers", "enriched", "regions"}, g.GetUpstreamNodes("report"))
	assert.Equal(t, []string{"orders", "customers"}, g.GetUpstreamNodes("enriched"))
	assert.Empty(t, g.GetUpstreamNodes("orders"))
	assert.Equal(t, []string{"orders", "customers", "regions"}, g.GetRoots())
}

func TestGraph_Subgraph(t *testing.T) {
	g := diamond(t)
	sub := g.Subgraph(append(g.GetUpstreamNodes("enriched"), "enriched"))

	assert.Equal(t, 3, sub.NodeCount())
	assert.Equal(t, 2, sub.EdgeCount())
	n, ok := sub.GetNode("customers")
	require.True(t, ok)
	assert.Equal(t, "data customers", n.Data)
	_, ok = sub.GetNode("report")
	assert.False(t, ok)
}
