package domains

import (
	"sable/internal/hir"
	"sable/internal/ssa"
)

// CallGraph is an arena-indexed call graph over one unit. Nodes are keyed
// by hir.FuncID; index 0 is the usual sentinel.
type CallGraph struct {
	nodes []cgNode
	// edges is a shared arena; each node holds an [start, end) window.
	edges []hir.FuncID

	// SCCs lists strongly-connected components in reverse topological
	// order: every callee's component appears before its callers'.
	SCCs [][]hir.FuncID
	// compOf maps FuncID to its index in SCCs.
	compOf []int
}

type cgNode struct {
	callsStart int
	callsEnd   int
}

// Callees returns the edge window for id.
func (g *CallGraph) Callees(id hir.FuncID) []hir.FuncID {
	n := g.nodes[id]
	return g.edges[n.callsStart:n.callsEnd]
}

// Component returns the SCC index for id.
func (g *CallGraph) Component(id hir.FuncID) int {
	return g.compOf[id]
}

// InCycle reports whether id belongs to a multi-node component or calls
// itself directly.
func (g *CallGraph) InCycle(id hir.FuncID) bool {
	if len(g.SCCs[g.compOf[id]]) > 1 {
		return true
	}
	for _, c := range g.Callees(id) {
		if c == id {
			return true
		}
	}
	return false
}

// BuildCallGraph collects call edges from every function body and computes
// strongly-connected components with Tarjan's algorithm.
func BuildCallGraph(m *ssa.Module) *CallGraph {
	g := &CallGraph{
		nodes:  make([]cgNode, len(m.Funcs)),
		compOf: make([]int, len(m.Funcs)),
	}
	seen := make(map[hir.FuncID]bool)
	for id := 1; id < len(m.Funcs); id++ {
		fn := m.Funcs[id]
		start := len(g.edges)
		if fn != nil {
			clear(seen)
			for bi := range fn.Blocks {
				for ii := range fn.Blocks[bi].Instrs {
					in := &fn.Blocks[bi].Instrs[ii]
					if in.Kind != ssa.InstrCall || seen[in.Callee] {
						continue
					}
					seen[in.Callee] = true
					g.edges = append(g.edges, in.Callee)
				}
			}
		}
		g.nodes[id] = cgNode{callsStart: start, callsEnd: len(g.edges)}
	}
	g.computeSCCs()
	return g
}

// computeSCCs runs iterative Tarjan. Components are emitted callees-first,
// which is exactly the order the fixed-point aggregation wants.
func (g *CallGraph) computeSCCs() {
	n := len(g.nodes)
	const unvisited = -1
	index := make([]int, n)
	lowlink := make([]int, n)
	onStack := make([]bool, n)
	for i := range index {
		index[i] = unvisited
	}
	var stack []hir.FuncID
	next := 0

	type frame struct {
		v    hir.FuncID
		edge int
	}
	var work []frame

	for root := 1; root < n; root++ {
		if index[root] != unvisited {
			continue
		}
		work = append(work[:0], frame{v: hir.FuncID(root)}) //nolint:gosec // arena index
		for len(work) > 0 {
			fr := &work[len(work)-1]
			v := fr.v
			if fr.edge == 0 {
				index[v] = next
				lowlink[v] = next
				next++
				stack = append(stack, v)
				onStack[v] = true
			}
			callees := g.Callees(v)
			advanced := false
			for fr.edge < len(callees) {
				w := callees[fr.edge]
				fr.edge++
				if index[w] == unvisited {
					work = append(work, frame{v: w})
					advanced = true
					break
				}
				if onStack[w] && index[w] < lowlink[v] {
					lowlink[v] = index[w]
				}
			}
			if advanced {
				continue
			}
			if lowlink[v] == index[v] {
				comp := len(g.SCCs)
				var members []hir.FuncID
				for {
					w := stack[len(stack)-1]
					stack = stack[:len(stack)-1]
					onStack[w] = false
					g.compOf[w] = comp
					members = append(members, w)
					if w == v {
						break
					}
				}
				g.SCCs = append(g.SCCs, members)
			}
			work = work[:len(work)-1]
			if len(work) > 0 {
				parent := work[len(work)-1].v
				if lowlink[v] < lowlink[parent] {
					lowlink[parent] = lowlink[v]
				}
			}
		}
	}
}
