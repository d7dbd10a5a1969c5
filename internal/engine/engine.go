// Package engine implements the task-dependency engine: it resolves a
// project's tasks and dependency edges into a graph, guards edge creation
// against cycles, and computes the project's critical path.
//
// The engine is stateless between invocations: every call re-reads the
// current graph from the store and discards all working state when done.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/jfenske/planward/internal/graph"
	"github.com/jfenske/planward/internal/store"
)

// ErrSelfDependency is returned when an edge would link a task to itself.
var ErrSelfDependency = errors.New("task cannot depend on itself")

// ErrReverseExists is returned when the exact reverse edge already exists.
var ErrReverseExists = errors.New("reverse dependency already exists")

// ErrCycleDetected is returned when an edge would close a dependency cycle.
var ErrCycleDetected = errors.New("dependency would create a cycle")

// ErrTaskNotFound is returned when an edge endpoint is not a live task of
// the project.
var ErrTaskNotFound = errors.New("task not found in project")

// ErrGraphInvalid is returned when a stored graph turns out to contain a
// cycle. The cycle guard makes this unreachable through the API, so it
// signals an invariant violation upstream, not a user mistake.
var ErrGraphInvalid = errors.New("dependency graph is invalid")

// Store is the slice of persistence the engine depends on.
type Store interface {
	// LiveTaskWeights returns duration-in-days per live task of a project.
	LiveTaskWeights(ctx context.Context, projectID uuid.UUID) (map[string]int, error)
	// ProjectEdges returns dependency pairs whose source task is live in
	// the project. May contain parallel duplicates.
	ProjectEdges(ctx context.Context, projectID uuid.UUID) ([]store.Edge, error)
	// ReverseEdgeExists reports whether edge target → source exists.
	ReverseEdgeExists(ctx context.Context, source, target uuid.UUID) (bool, error)
	// TaskInProject reports whether the task is a live project member.
	TaskInProject(ctx context.Context, projectID, taskID uuid.UUID) (bool, error)
	// CreateDependency inserts the edge row without validation.
	CreateDependency(ctx context.Context, source, target uuid.UUID, kind string) (store.Dependency, error)
}

// Engine validates dependency writes and answers critical-path queries.
type Engine struct {
	store  Store
	logger *slog.Logger
	locks  *projectLocks
}

// New creates an engine over the given store. A nil logger falls back to
// slog.Default().
func New(s Store, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		store:  s,
		logger: logger,
		locks:  newProjectLocks(),
	}
}

// CreateDependency validates and inserts a finish-to-start edge
// source → target. Checks run in order, short-circuiting on the first
// failure: endpoint membership, self-loop, existing reverse edge, then
// reachability of source from target over current edges.
//
// The whole check-then-insert sequence holds a per-project lock so two
// concurrent inserts cannot jointly admit a cycle.
func (e *Engine) CreateDependency(ctx context.Context, projectID, source, target uuid.UUID, kind string) (store.Dependency, error) {
	unlock := e.locks.lock(projectID)
	defer unlock()

	for _, id := range []uuid.UUID{source, target} {
		ok, err := e.store.TaskInProject(ctx, projectID, id)
		if err != nil {
			return store.Dependency{}, fmt.Errorf("engine: resolve task: %w", err)
		}
		if !ok {
			return store.Dependency{}, fmt.Errorf("%w: %s", ErrTaskNotFound, id)
		}
	}

	if source == target {
		return store.Dependency{}, fmt.Errorf("%w: %s", ErrSelfDependency, source)
	}

	reverse, err := e.store.ReverseEdgeExists(ctx, source, target)
	if err != nil {
		return store.Dependency{}, fmt.Errorf("engine: reverse edge check: %w", err)
	}
	if reverse {
		return store.Dependency{}, fmt.Errorf("%w: %s ← %s", ErrReverseExists, source, target)
	}

	g, err := e.resolve(ctx, projectID)
	if err != nil {
		return store.Dependency{}, err
	}
	if g.Reachable(target.String(), source.String()) {
		return store.Dependency{}, fmt.Errorf("%w: %s → %s", ErrCycleDetected, source, target)
	}

	dep, err := e.store.CreateDependency(ctx, source, target, kind)
	if err != nil {
		return store.Dependency{}, fmt.Errorf("engine: insert dependency: %w", err)
	}
	return dep, nil
}

// CriticalPath computes the maximum-duration chain of dependent tasks in
// a project. An empty project yields an empty path. A cycle in the stored
// graph is reported as ErrGraphInvalid and logged with graph context; it
// is fatal and non-retryable.
func (e *Engine) CriticalPath(ctx context.Context, projectID uuid.UUID) (graph.Path, error) {
	g, err := e.resolve(ctx, projectID)
	if err != nil {
		return graph.Path{}, err
	}

	path, err := g.CriticalPath()
	if errors.Is(err, graph.ErrNotDAG) {
		e.logger.Error("dependency graph is not a DAG",
			"project_id", projectID.String(),
			"nodes", g.Len(),
			"node_ids", g.Nodes(),
			"error", err.Error(),
		)
		return graph.Path{}, fmt.Errorf("%w: project %s: %v", ErrGraphInvalid, projectID, err)
	}
	if err != nil {
		return graph.Path{}, fmt.Errorf("engine: critical path: %w", err)
	}
	return path, nil
}

// resolve loads a project's live tasks and edges into a graph. Edges
// whose target is not in the node set are dropped by the graph itself.
func (e *Engine) resolve(ctx context.Context, projectID uuid.UUID) (*graph.Graph, error) {
	weights, err := e.store.LiveTaskWeights(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("engine: resolve nodes: %w", err)
	}
	edges, err := e.store.ProjectEdges(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("engine: resolve edges: %w", err)
	}

	g := graph.New()
	for id, w := range weights {
		g.AddNode(id, w)
	}
	for _, edge := range edges {
		g.AddEdge(edge.Source, edge.Target)
	}
	return g, nil
}
