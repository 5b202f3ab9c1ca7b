package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func edge(source, target string, kind ResolutionKind) Edge {
	return Edge{Source: source, Target: target, Kind: kind, Origins: []string{source + "::import::" + target + "@1"}}
}

func buildGraph(edges ...Edge) *Graph {
	g := New()
	for _, e := range edges {
		g.AddNode(e.Source)
		if e.Kind != ResolutionUnresolved {
			g.AddNode(e.Target)
		}
		g.AddEdge(e)
	}
	return g
}

// =============================================================================
// Edges
// =============================================================================

func TestAddEdge_DuplicateMergesOrigins(t *testing.T) {
	t.Parallel()
	g := New()
	g.AddNode("a")
	g.AddNode("b")
	g.AddEdge(Edge{Source: "a", Target: "b", Kind: ResolutionRelative, Origins: []string{"o1"}})
	g.AddEdge(Edge{Source: "a", Target: "b", Kind: ResolutionRelative, Origins: []string{"o2"}})

	assert.Equal(t, 1, g.EdgeCount())
	edges := g.Edges()
	require.Len(t, edges, 1)
	assert.Equal(t, []string{"o1", "o2"}, edges[0].Origins)
}

func TestAddEdge_SelfImportPermitted(t *testing.T) {
	t.Parallel()
	g := buildGraph(edge("a.py", "a.py", ResolutionRelative))
	assert.Equal(t, 1, g.EdgeCount())
	assert.Equal(t, []string{"a.py"}, g.Dependencies("a.py"))
}

func TestDependencies_ResolvedOnlySorted(t *testing.T) {
	t.Parallel()
	g := buildGraph(
		edge("a.py", "c.py", ResolutionRelative),
		edge("a.py", "b.py", ResolutionAbsolute),
		edge("a.py", "missing", ResolutionUnresolved),
	)
	assert.Equal(t, []string{"b.py", "c.py"}, g.Dependencies("a.py"))
}

func TestDependents_ReverseView(t *testing.T) {
	t.Parallel()
	g := buildGraph(
		edge("a.py", "shared.py", ResolutionRelative),
		edge("b.py", "shared.py", ResolutionRelative),
	)
	assert.Equal(t, []string{"a.py", "b.py"}, g.Dependents("shared.py"))
	assert.Empty(t, g.Dependents("a.py"))
}

func TestUnresolved_RetainsBrokenImports(t *testing.T) {
	t.Parallel()
	g := buildGraph(
		edge("a.py", "b.py", ResolutionRelative),
		edge("a.py", "numpy", ResolutionUnresolved),
	)
	unresolved := g.Unresolved()
	require.Len(t, unresolved, 1)
	assert.Equal(t, "numpy", unresolved[0].Target)
	// Unresolved targets never become graph nodes.
	assert.False(t, g.HasNode("numpy"))
}

// =============================================================================
// Cycles
// =============================================================================

func TestCycles_FindsExactlyTheCycle(t *testing.T) {
	t.Parallel()
	// A -> B -> C -> A, plus D -> E with no cycle.
	g := buildGraph(
		edge("a", "b", ResolutionAbsolute),
		edge("b", "c", ResolutionAbsolute),
		edge("c", "a", ResolutionAbsolute),
		edge("d", "e", ResolutionAbsolute),
	)
	cycles := g.Cycles()
	require.Len(t, cycles, 1)
	assert.ElementsMatch(t, []string{"a", "b", "c"}, cycles[0])
}

func TestCycles_SelfLoopIsACycle(t *testing.T) {
	t.Parallel()
	g := buildGraph(edge("a", "a", ResolutionRelative))
	cycles := g.Cycles()
	require.Len(t, cycles, 1)
	assert.Equal(t, []string{"a"}, cycles[0])
}

func TestCycles_NoneInAcyclicGraph(t *testing.T) {
	t.Parallel()
	g := buildGraph(
		edge("a", "b", ResolutionAbsolute),
		edge("b", "c", ResolutionAbsolute),
		edge("a", "c", ResolutionAbsolute),
	)
	assert.Empty(t, g.Cycles())
}

func TestCycles_IgnoresUnresolvedEdges(t *testing.T) {
	t.Parallel()
	g := buildGraph(
		edge("a", "b", ResolutionAbsolute),
		edge("b", "a", ResolutionUnresolved),
	)
	assert.Empty(t, g.Cycles())
}

func TestCycles_MultipleCyclesSortedDeterministically(t *testing.T) {
	t.Parallel()
	g := buildGraph(
		edge("m", "n", ResolutionAbsolute),
		edge("n", "m", ResolutionAbsolute),
		edge("x", "y", ResolutionAbsolute),
		edge("y", "x", ResolutionAbsolute),
	)
	cycles := g.Cycles()
	require.Len(t, cycles, 2)
	assert.Less(t, cycles[0][0], cycles[1][0])
}

// =============================================================================
// Centrality and components
// =============================================================================

func TestDegreeCentrality_NormalizedByNodeCount(t *testing.T) {
	t.Parallel()
	// hub connects to both spokes: degree 2 over n-1 = 2.
	g := buildGraph(
		edge("hub", "s1", ResolutionAbsolute),
		edge("hub", "s2", ResolutionAbsolute),
	)
	c := g.DegreeCentrality()
	assert.InDelta(t, 1.0, c["hub"], 1e-9)
	assert.InDelta(t, 0.5, c["s1"], 1e-9)
	assert.InDelta(t, 0.5, c["s2"], 1e-9)
}

func TestWeakComponents_CountsIslands(t *testing.T) {
	t.Parallel()
	g := buildGraph(
		edge("a", "b", ResolutionAbsolute),
		edge("c", "d", ResolutionAbsolute),
	)
	g.AddNode("lonely")
	assert.Equal(t, 3, g.WeakComponents())
}
