// Package graph provides the in-memory dependency graph used for cycle
// detection and critical path analysis. Nodes are tasks carrying a weight
// (duration in days); edges are finish-to-start dependencies pointing from
// a source task to the task that must wait for it.
package graph

import (
	"errors"
	"fmt"
	"sort"
)

// ErrNotDAG is returned when the graph contains a dependency cycle.
var ErrNotDAG = errors.New("dependency graph is not a DAG")

// ErrNodeNotFound is returned when an operation references a non-existent node.
var ErrNodeNotFound = errors.New("node not found")

// Graph is a directed graph of weighted task nodes. Edges point from a
// source task to its dependents: source → target means target cannot begin
// before source finishes.
//
// Parallel edges between the same pair collapse into a single adjacency,
// so traversal and path weights never count a pair twice.
type Graph struct {
	weights map[string]int
	// adjacency maps source → set of targets (forward edges).
	adjacency map[string]map[string]bool
	// reverse maps target → set of sources (backward edges).
	reverse map[string]map[string]bool
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{
		weights:   make(map[string]int),
		adjacency: make(map[string]map[string]bool),
		reverse:   make(map[string]map[string]bool),
	}
}

// AddNode adds a node with the given weight. Negative weights clamp to
// zero. Re-adding an existing node overwrites its weight.
func (g *Graph) AddNode(id string, weight int) {
	if weight < 0 {
		weight = 0
	}
	if _, exists := g.weights[id]; !exists {
		g.adjacency[id] = make(map[string]bool)
		g.reverse[id] = make(map[string]bool)
	}
	g.weights[id] = weight
}

// AddEdge records a dependency edge source → target. Edges whose endpoints
// are not nodes of the graph are dropped: the store may hold rows pointing
// at tasks that have since been soft-deleted, and those rows must not
// influence traversal. Duplicate edges are a no-op.
func (g *Graph) AddEdge(source, target string) {
	if _, ok := g.weights[source]; !ok {
		return
	}
	if _, ok := g.weights[target]; !ok {
		return
	}
	g.adjacency[source][target] = true
	g.reverse[target][source] = true
}

// HasEdge reports whether the direct edge source → target exists.
func (g *Graph) HasEdge(source, target string) bool {
	return g.adjacency[source][target]
}

// Weight returns the weight of the given node, or an error if it does not exist.
func (g *Graph) Weight(id string) (int, error) {
	w, ok := g.weights[id]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	return w, nil
}

// Len returns the number of nodes in the graph.
func (g *Graph) Len() int {
	return len(g.weights)
}

// Nodes returns all node IDs sorted ascending.
func (g *Graph) Nodes() []string {
	ids := make([]string, 0, len(g.weights))
	for id := range g.weights {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Reachable reports whether a directed path exists from src to dst over
// forward edges. A node does not reach itself unless it lies on a cycle.
func (g *Graph) Reachable(src, dst string) bool {
	visited := make(map[string]bool)
	queue := []string{src}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for next := range g.adjacency[cur] {
			if next == dst {
				return true
			}
			if !visited[next] {
				visited[next] = true
				queue = append(queue, next)
			}
		}
	}
	return false
}

// TopologicalSort returns node IDs in a valid topological order using
// Kahn's algorithm. Among simultaneously eligible nodes the lowest ID is
// taken first, so the order is deterministic for a fixed input. Returns
// ErrNotDAG if not every node can be ordered.
func (g *Graph) TopologicalSort() ([]string, error) {
	inDegree := make(map[string]int, len(g.weights))
	for id := range g.weights {
		inDegree[id] = len(g.reverse[id])
	}

	var queue []string
	for id, deg := range inDegree {
		if deg == 0 {
			queue = append(queue, id)
		}
	}
	sort.Strings(queue)

	order := make([]string, 0, len(g.weights))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		order = append(order, id)

		var freed []string
		for succ := range g.adjacency[id] {
			inDegree[succ]--
			if inDegree[succ] == 0 {
				freed = append(freed, succ)
			}
		}
		sort.Strings(freed)
		queue = append(queue, freed...)
	}

	if len(order) != len(g.weights) {
		return nil, fmt.Errorf("%w: ordered %d of %d nodes", ErrNotDAG, len(order), len(g.weights))
	}
	return order, nil
}
