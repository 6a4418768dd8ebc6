// Package topology implements C5: partitioning the component graph into
// independent subgrids rooted at energised sources, assigning a
// fill-in-aware bus ordering, and accumulating per-bus phase shift.
//
// The DFS traversal and three-state (white/gray/black) vertex marking is
// modelled on katalvlaran/lvlath's dfs.DetectCycles: insertion-order
// adjacency iteration for determinism, a recorded path/parent chain to
// reconstruct cycles from back-edges, and "walk predecessors until a
// previously marked node is reached" to materialise the cyclic node set.
package topology

// BranchEndpoints describes one two-terminal branch's contribution to the
// directed phase-shift graph C5 traverses. PhaseShift is the shift applied
// travelling From -> To.
type BranchEndpoints struct {
	From, To                   int
	FromConnected, ToConnected bool
	PhaseShift                 float64
}

// Branch3Endpoints describes a three-winding transformer: three terminals
// meeting at one synthesized internal vertex (the graph's vertex count is
// therefore node count plus branch3 count). PhaseShift[i] is the shift
// travelling terminal i -> internal node.
type Branch3Endpoints struct {
	Nodes      [3]int
	Connected  [3]bool
	PhaseShift [3]float64
}

// SourceRef is one energised-or-not source attached to a node.
type SourceRef struct {
	Node      int
	Energized bool
}

// Input is the physical graph C5 decomposes.
type Input struct {
	NumNodes int
	Branches []BranchEndpoints
	Branch3s []Branch3Endpoints
	Sources  []SourceRef
}

type edge struct {
	to         int
	phaseShift float64
	twin       int // index of the paired reverse-direction edge, -1 if none
}

// graph is the internal directed multigraph over
// NumNodes + len(Branch3s) vertices (one synthetic vertex per branch3).
type graph struct {
	numVertices int
	adj         [][]edge // insertion order per vertex, kept deterministic
}

func newGraph(in Input) *graph {
	g := &graph{
		numVertices: in.NumNodes + len(in.Branch3s),
		adj:         make([][]edge, in.NumNodes+len(in.Branch3s)),
	}

	addPair := func(u, v int, shift float64) {
		if u < 0 || v < 0 {
			return
		}
		fwdIdx := len(g.adj[u])
		bwdIdx := len(g.adj[v])
		g.adj[u] = append(g.adj[u], edge{to: v, phaseShift: shift, twin: bwdIdx})
		g.adj[v] = append(g.adj[v], edge{to: u, phaseShift: -shift, twin: fwdIdx})
	}

	for _, b := range in.Branches {
		if !(b.FromConnected && b.ToConnected) {
			continue
		}
		addPair(b.From, b.To, b.PhaseShift)
	}

	for bi, b3 := range in.Branch3s {
		internal := in.NumNodes + bi
		for i := 0; i < 3; i++ {
			if !b3.Connected[i] {
				continue
			}
			addPair(b3.Nodes[i], internal, b3.PhaseShift[i])
		}
	}

	return g
}
