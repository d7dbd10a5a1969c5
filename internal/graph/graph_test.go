package graph

import (
	"errors"
	"testing"
)

// nodeSpec describes a weighted node and its outgoing edges.
type nodeSpec struct {
	id     string
	weight int
	succs  []string
}

func buildGraph(t *testing.T, specs []nodeSpec) *Graph {
	t.Helper()
	g := New()
	for _, s := range specs {
		g.AddNode(s.id, s.weight)
	}
	for _, s := range specs {
		for _, succ := range s.succs {
			g.AddEdge(s.id, succ)
		}
	}
	return g
}

func TestNew(t *testing.T) {
	t.Parallel()
	g := New()
	if g.Len() != 0 {
		t.Errorf("new graph has %d nodes, want 0", g.Len())
	}
	if nodes := g.Nodes(); len(nodes) != 0 {
		t.Errorf("Nodes() = %v, want empty", nodes)
	}
}

func TestAddNode(t *testing.T) {
	t.Parallel()

	t.Run("basic add", func(t *testing.T) {
		t.Parallel()
		g := New()
		g.AddNode("a", 3)
		if g.Len() != 1 {
			t.Errorf("Len() = %d, want 1", g.Len())
		}
		w, err := g.Weight("a")
		if err != nil {
			t.Fatalf("Weight(a): %v", err)
		}
		if w != 3 {
			t.Errorf("Weight(a) = %d, want 3", w)
		}
	})

	t.Run("negative weight clamps to zero", func(t *testing.T) {
		t.Parallel()
		g := New()
		g.AddNode("a", -5)
		w, _ := g.Weight("a")
		if w != 0 {
			t.Errorf("Weight(a) = %d, want 0", w)
		}
	})

	t.Run("re-add overwrites weight", func(t *testing.T) {
		t.Parallel()
		g := New()
		g.AddNode("a", 1)
		g.AddNode("a", 7)
		if g.Len() != 1 {
			t.Errorf("Len() = %d, want 1", g.Len())
		}
		w, _ := g.Weight("a")
		if w != 7 {
			t.Errorf("Weight(a) = %d, want 7", w)
		}
	})

	t.Run("unknown node", func(t *testing.T) {
		t.Parallel()
		g := New()
		if _, err := g.Weight("missing"); !errors.Is(err, ErrNodeNotFound) {
			t.Errorf("got %v, want ErrNodeNotFound", err)
		}
	})
}

func TestAddEdge(t *testing.T) {
	t.Parallel()

	t.Run("basic edge", func(t *testing.T) {
		t.Parallel()
		g := buildGraph(t, []nodeSpec{
			{id: "a", weight: 1, succs: []string{"b"}},
			{id: "b", weight: 1},
		})
		if !g.HasEdge("a", "b") {
			t.Error("HasEdge(a, b) = false, want true")
		}
		if g.HasEdge("b", "a") {
			t.Error("HasEdge(b, a) = true, want false")
		}
	})

	t.Run("unknown endpoints are dropped", func(t *testing.T) {
		t.Parallel()
		g := New()
		g.AddNode("a", 1)
		g.AddEdge("a", "ghost")
		g.AddEdge("ghost", "a")
		if g.HasEdge("a", "ghost") || g.HasEdge("ghost", "a") {
			t.Error("edge to unknown node was recorded")
		}
	})

	t.Run("duplicate edges collapse", func(t *testing.T) {
		t.Parallel()
		g := buildGraph(t, []nodeSpec{
			{id: "a", weight: 2, succs: []string{"b", "b", "b"}},
			{id: "b", weight: 3},
		})
		order, err := g.TopologicalSort()
		if err != nil {
			t.Fatalf("TopologicalSort: %v", err)
		}
		if len(order) != 2 {
			t.Fatalf("order = %v, want 2 nodes", order)
		}
		path, err := g.CriticalPath()
		if err != nil {
			t.Fatalf("CriticalPath: %v", err)
		}
		if path.TotalDays != 5 {
			t.Errorf("TotalDays = %d, want 5 (no double-counting)", path.TotalDays)
		}
	})
}

func TestReachable(t *testing.T) {
	t.Parallel()

	g := buildGraph(t, []nodeSpec{
		{id: "a", weight: 1, succs: []string{"b"}},
		{id: "b", weight: 1, succs: []string{"c"}},
		{id: "c", weight: 1},
		{id: "x", weight: 1},
	})

	tests := []struct {
		name     string
		src, dst string
		want     bool
	}{
		{"direct edge", "a", "b", true},
		{"transitive", "a", "c", true},
		{"against direction", "c", "a", false},
		{"disconnected", "a", "x", false},
		{"self not reachable without cycle", "a", "a", false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := g.Reachable(tt.src, tt.dst); got != tt.want {
				t.Errorf("Reachable(%q, %q) = %v, want %v", tt.src, tt.dst, got, tt.want)
			}
		})
	}
}

func TestTopologicalSort(t *testing.T) {
	t.Parallel()

	t.Run("chain order", func(t *testing.T) {
		t.Parallel()
		g := buildGraph(t, []nodeSpec{
			{id: "c", weight: 1},
			{id: "a", weight: 1, succs: []string{"b"}},
			{id: "b", weight: 1, succs: []string{"c"}},
		})
		order, err := g.TopologicalSort()
		if err != nil {
			t.Fatalf("TopologicalSort: %v", err)
		}
		assertValidOrder(t, g, order)
	})

	t.Run("deterministic tie-break", func(t *testing.T) {
		t.Parallel()
		g := buildGraph(t, []nodeSpec{
			{id: "m", weight: 1},
			{id: "z", weight: 1},
			{id: "a", weight: 1},
		})
		for i := 0; i < 10; i++ {
			order, err := g.TopologicalSort()
			if err != nil {
				t.Fatalf("TopologicalSort: %v", err)
			}
			if order[0] != "a" || order[1] != "m" || order[2] != "z" {
				t.Fatalf("order = %v, want [a m z]", order)
			}
		}
	})

	t.Run("cycle detected", func(t *testing.T) {
		t.Parallel()
		g := buildGraph(t, []nodeSpec{
			{id: "a", weight: 1, succs: []string{"b"}},
			{id: "b", weight: 1, succs: []string{"c"}},
			{id: "c", weight: 1, succs: []string{"a"}},
		})
		if _, err := g.TopologicalSort(); !errors.Is(err, ErrNotDAG) {
			t.Errorf("got %v, want ErrNotDAG", err)
		}
	})

	t.Run("empty graph", func(t *testing.T) {
		t.Parallel()
		order, err := New().TopologicalSort()
		if err != nil {
			t.Fatalf("TopologicalSort: %v", err)
		}
		if len(order) != 0 {
			t.Errorf("order = %v, want empty", order)
		}
	})
}

// assertValidOrder checks that every edge points from an earlier to a
// later position in the ordering.
func assertValidOrder(t *testing.T, g *Graph, order []string) {
	t.Helper()
	pos := make(map[string]int, len(order))
	for i, id := range order {
		pos[id] = i
	}
	for _, src := range g.Nodes() {
		for _, dst := range g.Nodes() {
			if g.HasEdge(src, dst) && pos[src] >= pos[dst] {
				t.Errorf("edge %s → %s violates order %v", src, dst, order)
			}
		}
	}
}
