package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// ReplacePlan overwrites a project's planned-progress baseline in a
// single transaction: existing points are removed and the given points
// inserted. Points are keyed by date (YYYY-MM-DD).
func (s *Store) ReplacePlan(ctx context.Context, projectID uuid.UUID, points []PlanPoint) ([]PlanPoint, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("store: begin plan replace: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	if _, err := tx.ExecContext(ctx, `DELETE FROM project_plan WHERE project_id = ?`, projectID.String()); err != nil {
		return nil, fmt.Errorf("store: clear plan: %w", err)
	}

	const q = `INSERT INTO project_plan (id, project_id, date, planned_progress, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`
	stmt, err := tx.PrepareContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("store: prepare plan insert: %w", err)
	}
	defer stmt.Close()

	ts := now()
	inserted := make([]PlanPoint, 0, len(points))
	for _, p := range points {
		p.ID = uuid.New()
		p.ProjectID = projectID
		p.CreatedAt = ts
		p.UpdatedAt = ts
		if _, err := stmt.ExecContext(ctx, p.ID.String(), projectID.String(), p.Date,
			p.PlannedProgress, formatTime(ts), formatTime(ts)); err != nil {
			return nil, fmt.Errorf("store: insert plan point %q: %w", p.Date, err)
		}
		inserted = append(inserted, p)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("store: commit plan: %w", err)
	}
	return inserted, nil
}

// ListPlan returns a project's baseline points in date order.
func (s *Store) ListPlan(ctx context.Context, projectID uuid.UUID) ([]PlanPoint, error) {
	const q = `SELECT id, project_id, date, planned_progress, created_at, updated_at
		FROM project_plan WHERE project_id = ? ORDER BY date`
	rows, err := s.db.QueryContext(ctx, q, projectID.String())
	if err != nil {
		return nil, fmt.Errorf("store: list plan: %w", err)
	}
	defer rows.Close()

	var result []PlanPoint
	for rows.Next() {
		var (
			p        PlanPoint
			id, proj string
			cAt, uAt string
		)
		if err := rows.Scan(&id, &proj, &p.Date, &p.PlannedProgress, &cAt, &uAt); err != nil {
			return nil, fmt.Errorf("store: scan plan point: %w", err)
		}
		if p.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("store: parse plan id: %w", err)
		}
		if p.ProjectID, err = uuid.Parse(proj); err != nil {
			return nil, fmt.Errorf("store: parse plan project id: %w", err)
		}
		if p.CreatedAt, err = parseTimestamp(cAt); err != nil {
			return nil, fmt.Errorf("store: parse plan timestamp: %w", err)
		}
		if p.UpdatedAt, err = parseTimestamp(uAt); err != nil {
			return nil, fmt.Errorf("store: parse plan timestamp: %w", err)
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate plan: %w", err)
	}
	return result, nil
}
