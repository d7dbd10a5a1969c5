package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// CreateDependency inserts an edge row. This is a raw write: the cycle
// guard lives in the engine and must run before this is called.
func (s *Store) CreateDependency(ctx context.Context, source, target uuid.UUID, kind string) (Dependency, error) {
	d := Dependency{
		ID:           uuid.New(),
		SourceTaskID: source,
		TargetTaskID: target,
		Kind:         kind,
		CreatedAt:    now(),
	}
	if d.Kind == "" {
		d.Kind = "finish_to_start"
	}

	const q = `INSERT INTO task_dependencies (id, source_task_id, target_task_id, type, created_at)
		VALUES (?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, q,
		d.ID.String(), d.SourceTaskID.String(), d.TargetTaskID.String(), d.Kind,
		formatTime(d.CreatedAt))
	if err != nil {
		return Dependency{}, fmt.Errorf("store: create dependency: %w", err)
	}
	return d, nil
}

// ListDependencies returns every dependency whose source task is a live
// member of the project, ordered by creation time.
func (s *Store) ListDependencies(ctx context.Context, projectID uuid.UUID) ([]Dependency, error) {
	const q = `SELECT d.id, d.source_task_id, d.target_task_id, d.type, d.created_at
		FROM task_dependencies d
		INNER JOIN tasks t ON t.id = d.source_task_id
		WHERE t.project_id = ? AND t.deleted_at IS NULL
		ORDER BY d.created_at, d.id`
	rows, err := s.db.QueryContext(ctx, q, projectID.String())
	if err != nil {
		return nil, fmt.Errorf("store: list dependencies: %w", err)
	}
	defer rows.Close()

	var result []Dependency
	for rows.Next() {
		var (
			d                 Dependency
			id, src, tgt, cAt string
		)
		if err := rows.Scan(&id, &src, &tgt, &d.Kind, &cAt); err != nil {
			return nil, fmt.Errorf("store: scan dependency: %w", err)
		}
		if d.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("store: parse dependency id: %w", err)
		}
		if d.SourceTaskID, err = uuid.Parse(src); err != nil {
			return nil, fmt.Errorf("store: parse source id: %w", err)
		}
		if d.TargetTaskID, err = uuid.Parse(tgt); err != nil {
			return nil, fmt.Errorf("store: parse target id: %w", err)
		}
		if d.CreatedAt, err = parseTimestamp(cAt); err != nil {
			return nil, fmt.Errorf("store: parse dependency timestamp: %w", err)
		}
		result = append(result, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate dependencies: %w", err)
	}
	return result, nil
}

// DeleteDependency removes an edge row, verifying through the source task
// that it belongs to the project. Dependencies are never soft-deleted.
func (s *Store) DeleteDependency(ctx context.Context, projectID, depID uuid.UUID) error {
	const q = `DELETE FROM task_dependencies
		WHERE id = ? AND source_task_id IN (SELECT id FROM tasks WHERE project_id = ?)`
	res, err := s.db.ExecContext(ctx, q, depID.String(), projectID.String())
	if err != nil {
		return fmt.Errorf("store: delete dependency %s: %w", depID, err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return fmt.Errorf("%w: dependency %s", ErrNotFound, depID)
	}
	return nil
}

// ReverseEdgeExists reports whether an edge target → source already
// exists, the fast-path rejection for two-node cycles.
func (s *Store) ReverseEdgeExists(ctx context.Context, source, target uuid.UUID) (bool, error) {
	const q = `SELECT EXISTS(SELECT 1 FROM task_dependencies
		WHERE source_task_id = ? AND target_task_id = ?)`
	var exists bool
	if err := s.db.QueryRowContext(ctx, q, target.String(), source.String()).Scan(&exists); err != nil {
		return false, fmt.Errorf("store: reverse edge check: %w", err)
	}
	return exists, nil
}

// ProjectEdges returns the (source, target) pairs of every dependency
// whose source task is live in the project. Parallel edges between the
// same pair are returned as-is; deduplication is the graph's concern.
func (s *Store) ProjectEdges(ctx context.Context, projectID uuid.UUID) ([]Edge, error) {
	const q = `SELECT d.source_task_id, d.target_task_id
		FROM task_dependencies d
		INNER JOIN tasks t ON t.id = d.source_task_id
		WHERE t.project_id = ? AND t.deleted_at IS NULL
		ORDER BY d.created_at, d.id`
	rows, err := s.db.QueryContext(ctx, q, projectID.String())
	if err != nil {
		return nil, fmt.Errorf("store: project edges: %w", err)
	}
	defer rows.Close()

	var edges []Edge
	for rows.Next() {
		var e Edge
		if err := rows.Scan(&e.Source, &e.Target); err != nil {
			return nil, fmt.Errorf("store: scan edge: %w", err)
		}
		edges = append(edges, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate edges: %w", err)
	}
	return edges, nil
}
