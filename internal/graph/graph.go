// Package graph holds the module-level dependency graph: one node per
// indexed file, directed edges from resolved imports. The graph tolerates
// cycles; detecting them is a query, not an invariant.
package graph

import "sort"

// ResolutionKind classifies how an import edge was resolved.
type ResolutionKind string

const (
	ResolutionRelative   ResolutionKind = "relative"
	ResolutionAbsolute   ResolutionKind = "absolute"
	ResolutionUnresolved ResolutionKind = "unresolved"
)

// Edge is one deduplicated dependency between modules. Unresolved edges are
// retained with the raw import name as Target so reports can surface
// external or broken imports. Origins lists the import entity IDs that
// contributed to the edge.
type Edge struct {
	Source  string
	Target  string
	Kind    ResolutionKind
	Origins []string
}

// Graph is a directed dependency graph. It is built once per index pass and
// read-only afterwards.
type Graph struct {
	nodes map[string]bool
	out   map[string]map[string]*Edge
	in    map[string]map[string]*Edge
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{
		nodes: make(map[string]bool),
		out:   make(map[string]map[string]*Edge),
		in:    make(map[string]map[string]*Edge),
	}
}

// AddNode registers a module node.
func (g *Graph) AddNode(module string) {
	g.nodes[module] = true
}

// AddEdge inserts an edge, merging origins when the (source, target) pair
// already exists. The first resolution kind wins. Self-loops are permitted.
func (g *Graph) AddEdge(e Edge) {
	g.nodes[e.Source] = true
	if e.Kind != ResolutionUnresolved {
		g.nodes[e.Target] = true
	}
	if g.out[e.Source] == nil {
		g.out[e.Source] = make(map[string]*Edge)
	}
	if existing, ok := g.out[e.Source][e.Target]; ok {
		existing.Origins = append(existing.Origins, e.Origins...)
		return
	}
	stored := e
	g.out[e.Source][e.Target] = &stored
	if g.in[e.Target] == nil {
		g.in[e.Target] = make(map[string]*Edge)
	}
	g.in[e.Target][e.Source] = &stored
}

// HasNode reports whether module is a known node.
func (g *Graph) HasNode(module string) bool { return g.nodes[module] }

// Nodes returns all module nodes, sorted.
func (g *Graph) Nodes() []string {
	out := make([]string, 0, len(g.nodes))
	for n := range g.nodes {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Dependencies returns the targets of module's resolved outgoing edges,
// sorted.
func (g *Graph) Dependencies(module string) []string {
	var out []string
	for target, e := range g.out[module] {
		if e.Kind == ResolutionUnresolved {
			continue
		}
		out = append(out, target)
	}
	sort.Strings(out)
	return out
}

// Dependents returns the sources of resolved edges pointing at module,
// sorted.
func (g *Graph) Dependents(module string) []string {
	var out []string
	for source, e := range g.in[module] {
		if e.Kind == ResolutionUnresolved {
			continue
		}
		out = append(out, source)
	}
	sort.Strings(out)
	return out
}

// Edges returns every edge, sorted by (source, target).
func (g *Graph) Edges() []Edge {
	var out []Edge
	for _, targets := range g.out {
		for _, e := range targets {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Source != out[j].Source {
			return out[i].Source < out[j].Source
		}
		return out[i].Target < out[j].Target
	})
	return out
}

// Unresolved returns all unresolved edges, sorted by (source, target).
func (g *Graph) Unresolved() []Edge {
	var out []Edge
	for _, targets := range g.out {
		for _, e := range targets {
			if e.Kind == ResolutionUnresolved {
				out = append(out, *e)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Source != out[j].Source {
			return out[i].Source < out[j].Source
		}
		return out[i].Target < out[j].Target
	})
	return out
}

// EdgeCount returns the number of stored edges.
func (g *Graph) EdgeCount() int {
	n := 0
	for _, targets := range g.out {
		n += len(targets)
	}
	return n
}

// Cycles runs Tarjan's strongly connected components over the resolved
// edges and returns every component of size greater than one, plus
// self-loops. Each cycle is a list of module paths; cycles and their
// members are ordered deterministically.
func (g *Graph) Cycles() [][]string {
	adj := make(map[string][]string)
	selfLoops := make(map[string]bool)
	for source, targets := range g.out {
		for target, e := range targets {
			if e.Kind == ResolutionUnresolved {
				continue
			}
			if source == target {
				selfLoops[source] = true
			}
			adj[source] = append(adj[source], target)
		}
	}
	for _, next := range adj {
		sort.Strings(next)
	}

	type nodeInfo struct {
		index   int
		lowlink int
		onStack bool
	}
	info := make(map[string]*nodeInfo)
	index := 0
	var stack []string
	var result [][]string

	var strongconnect func(v string)
	strongconnect = func(v string) {
		ni := &nodeInfo{index: index, lowlink: index, onStack: true}
		info[v] = ni
		index++
		stack = append(stack, v)

		for _, w := range adj[v] {
			wInfo, visited := info[w]
			if !visited {
				strongconnect(w)
				wInfo = info[w]
				if wInfo.lowlink < ni.lowlink {
					ni.lowlink = wInfo.lowlink
				}
			} else if wInfo.onStack {
				if wInfo.index < ni.lowlink {
					ni.lowlink = wInfo.index
				}
			}
		}

		if ni.lowlink == ni.index {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				info[w].onStack = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			if len(scc) > 1 || selfLoops[scc[0]] {
				// Tarjan pops in reverse; restore a natural cycle order.
				for i, j := 0, len(scc)-1; i < j; i, j = i+1, j-1 {
					scc[i], scc[j] = scc[j], scc[i]
				}
				result = append(result, scc)
			}
		}
	}

	for _, v := range g.Nodes() {
		if _, visited := info[v]; !visited {
			strongconnect(v)
		}
	}

	sort.Slice(result, func(i, j int) bool { return result[i][0] < result[j][0] })
	return result
}

// DegreeCentrality returns per-node degree centrality over resolved edges:
// degree divided by (n-1), the normalization networkx uses.
func (g *Graph) DegreeCentrality() map[string]float64 {
	n := len(g.nodes)
	out := make(map[string]float64, n)
	if n <= 1 {
		for node := range g.nodes {
			out[node] = 0
		}
		return out
	}
	degree := make(map[string]int)
	for source, targets := range g.out {
		for target, e := range targets {
			if e.Kind == ResolutionUnresolved {
				continue
			}
			degree[source]++
			if target != source {
				degree[target]++
			}
		}
	}
	norm := float64(n - 1)
	for node := range g.nodes {
		out[node] = float64(degree[node]) / norm
	}
	return out
}

// WeakComponents returns the number of weakly connected components over
// resolved edges.
func (g *Graph) WeakComponents() int {
	parent := make(map[string]string)
	var find func(x string) string
	find = func(x string) string {
		if parent[x] != x {
			parent[x] = find(parent[x])
		}
		return parent[x]
	}
	for node := range g.nodes {
		parent[node] = node
	}
	union := func(a, b string) {
		ra, rb := find(a), find(b)
		if ra != rb {
			parent[ra] = rb
		}
	}
	for source, targets := range g.out {
		for target, e := range targets {
			if e.Kind == ResolutionUnresolved {
				continue
			}
			union(source, target)
		}
	}
	roots := make(map[string]bool)
	for node := range g.nodes {
		roots[find(node)] = true
	}
	return len(roots)
}
