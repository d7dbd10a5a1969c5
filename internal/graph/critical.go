package graph

import "sort"

// Path is the result of a critical path computation: the ordered chain of
// task IDs whose summed weights is maximal, and that total.
type Path struct {
	TaskIDs   []string
	TotalDays int
}

// CriticalPath computes the maximum-weight chain of dependency-linked
// nodes via a longest-path dynamic program over the topological order.
// The solver considers every component at once, so an unconnected chain
// can win if its total weight is largest. An empty graph yields an empty
// path. Returns ErrNotDAG if the graph contains a cycle.
//
// Ties break toward the lowest node ID: relaxation uses strict improvement
// so the first (lowest-ID, by topological tie-break) predecessor is kept,
// and the final maximum is scanned in sorted-ID order.
func (g *Graph) CriticalPath() (Path, error) {
	order, err := g.TopologicalSort()
	if err != nil {
		return Path{}, err
	}
	if len(order) == 0 {
		return Path{}, nil
	}

	best := make(map[string]int, len(order))
	prev := make(map[string]string, len(order))
	for _, id := range order {
		best[id] = g.weights[id]
	}

	for _, u := range order {
		for _, v := range g.sortedSuccessors(u) {
			if cand := best[u] + g.weights[v]; cand > best[v] {
				best[v] = cand
				prev[v] = u
			}
		}
	}

	endNode := ""
	maxTotal := -1
	for _, id := range g.Nodes() {
		if best[id] > maxTotal {
			maxTotal = best[id]
			endNode = id
		}
	}

	// Walk predecessor links back to the chain's start, then reverse.
	var chain []string
	for cur := endNode; ; {
		chain = append(chain, cur)
		p, ok := prev[cur]
		if !ok {
			break
		}
		cur = p
	}
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}

	return Path{TaskIDs: chain, TotalDays: maxTotal}, nil
}

// sortedSuccessors returns the direct successors of u in ascending ID
// order, keeping the relaxation pass deterministic.
func (g *Graph) sortedSuccessors(u string) []string {
	succs := make([]string, 0, len(g.adjacency[u]))
	for v := range g.adjacency[u] {
		succs = append(succs, v)
	}
	sort.Strings(succs)
	return succs
}
