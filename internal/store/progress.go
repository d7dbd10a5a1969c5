package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

const progressColumns = `id, project_id, task_id, progress, note, created_at, updated_at`

// CreateProgress inserts a progress entry for a task.
func (s *Store) CreateProgress(ctx context.Context, projectID, taskID uuid.UUID, progress int, note string) (ProgressEntry, error) {
	e := ProgressEntry{
		ID:        uuid.New(),
		ProjectID: projectID,
		TaskID:    taskID,
		Progress:  progress,
		Note:      note,
		CreatedAt: now(),
	}
	e.UpdatedAt = e.CreatedAt

	const q = `INSERT INTO task_progress (id, project_id, task_id, progress, note, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, q,
		e.ID.String(), e.ProjectID.String(), e.TaskID.String(), e.Progress, e.Note,
		formatTime(e.CreatedAt), formatTime(e.UpdatedAt))
	if err != nil {
		return ProgressEntry{}, fmt.Errorf("store: create progress: %w", err)
	}
	return e, nil
}

// ListProgress returns live progress entries for a task, newest first.
func (s *Store) ListProgress(ctx context.Context, taskID uuid.UUID) ([]ProgressEntry, error) {
	const q = `SELECT ` + progressColumns + ` FROM task_progress
		WHERE task_id = ? AND deleted_at IS NULL ORDER BY created_at DESC, id`
	return s.queryProgress(ctx, q, taskID.String())
}

// ListProjectProgress returns live progress entries across a whole
// project, newest first.
func (s *Store) ListProjectProgress(ctx context.Context, projectID uuid.UUID) ([]ProgressEntry, error) {
	const q = `SELECT ` + progressColumns + ` FROM task_progress
		WHERE project_id = ? AND deleted_at IS NULL ORDER BY created_at DESC, id`
	return s.queryProgress(ctx, q, projectID.String())
}

// UpdateProgress overwrites the percent and note of a progress entry.
func (s *Store) UpdateProgress(ctx context.Context, id uuid.UUID, progress int, note string) (ProgressEntry, error) {
	const q = `UPDATE task_progress SET progress = ?, note = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL`
	res, err := s.db.ExecContext(ctx, q, progress, note, formatTime(now()), id.String())
	if err != nil {
		return ProgressEntry{}, fmt.Errorf("store: update progress %s: %w", id, err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return ProgressEntry{}, fmt.Errorf("%w: progress %s", ErrNotFound, id)
	}

	const get = `SELECT ` + progressColumns + ` FROM task_progress WHERE id = ?`
	row := s.db.QueryRowContext(ctx, get, id.String())
	e, err := scanProgress(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ProgressEntry{}, fmt.Errorf("%w: progress %s", ErrNotFound, id)
	}
	if err != nil {
		return ProgressEntry{}, fmt.Errorf("store: reload progress %s: %w", id, err)
	}
	return e, nil
}

// SoftDeleteProgress marks a progress entry deleted.
func (s *Store) SoftDeleteProgress(ctx context.Context, id uuid.UUID) error {
	ts := formatTime(now())
	const q = `UPDATE task_progress SET deleted_at = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL`
	res, err := s.db.ExecContext(ctx, q, ts, ts, id.String())
	if err != nil {
		return fmt.Errorf("store: delete progress %s: %w", id, err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return fmt.Errorf("%w: progress %s", ErrNotFound, id)
	}
	return nil
}

// ActualProgressByDay aggregates reported progress per calendar day for
// the dashboard's "actual" curve.
func (s *Store) ActualProgressByDay(ctx context.Context, projectID uuid.UUID) ([]ActualPoint, error) {
	const q = `SELECT DATE(created_at), CAST(ROUND(AVG(progress)) AS INTEGER)
		FROM task_progress WHERE project_id = ? AND deleted_at IS NULL
		GROUP BY DATE(created_at) ORDER BY DATE(created_at)`
	rows, err := s.db.QueryContext(ctx, q, projectID.String())
	if err != nil {
		return nil, fmt.Errorf("store: actual progress: %w", err)
	}
	defer rows.Close()

	var points []ActualPoint
	for rows.Next() {
		var p ActualPoint
		if err := rows.Scan(&p.Date, &p.Actual); err != nil {
			return nil, fmt.Errorf("store: scan actual point: %w", err)
		}
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate actual points: %w", err)
	}
	return points, nil
}

func (s *Store) queryProgress(ctx context.Context, query string, args ...any) ([]ProgressEntry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: query progress: %w", err)
	}
	defer rows.Close()

	var result []ProgressEntry
	for rows.Next() {
		e, err := scanProgress(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan progress: %w", err)
		}
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate progress: %w", err)
	}
	return result, nil
}

func scanProgress(sc scanner) (ProgressEntry, error) {
	var (
		e                 ProgressEntry
		id, project, task string
		cAt, uAt          string
	)
	if err := sc.Scan(&id, &project, &task, &e.Progress, &e.Note, &cAt, &uAt); err != nil {
		return ProgressEntry{}, err
	}
	var err error
	if e.ID, err = uuid.Parse(id); err != nil {
		return ProgressEntry{}, fmt.Errorf("parse progress id: %w", err)
	}
	if e.ProjectID, err = uuid.Parse(project); err != nil {
		return ProgressEntry{}, fmt.Errorf("parse project id: %w", err)
	}
	if e.TaskID, err = uuid.Parse(task); err != nil {
		return ProgressEntry{}, fmt.Errorf("parse task id: %w", err)
	}
	if e.CreatedAt, err = parseTimestamp(cAt); err != nil {
		return ProgressEntry{}, err
	}
	if e.UpdatedAt, err = parseTimestamp(uAt); err != nil {
		return ProgressEntry{}, err
	}
	return e, nil
}
