package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

const taskColumns = `id, project_id, title, status, due_date, start_date, end_date,
	duration_days, assignee, parent_id, progress, created_at, updated_at`

// CreateTask inserts a new task into a project and returns it.
func (s *Store) CreateTask(ctx context.Context, t Task) (Task, error) {
	t.ID = uuid.New()
	t.CreatedAt = now()
	t.UpdatedAt = t.CreatedAt
	if t.Status == "" {
		t.Status = "pending"
	}

	const q = `INSERT INTO tasks (id, project_id, title, status, due_date, start_date, end_date,
		duration_days, assignee, parent_id, progress, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, q,
		t.ID.String(), t.ProjectID.String(), t.Title, t.Status,
		nullTime(t.DueDate), nullTime(t.StartDate), nullTime(t.EndDate),
		nullInt(t.DurationDays), nullUUID(t.Assignee), nullUUID(t.ParentID),
		t.Progress, formatTime(t.CreatedAt), formatTime(t.UpdatedAt))
	if err != nil {
		return Task{}, fmt.Errorf("store: create task: %w", err)
	}
	return t, nil
}

// GetTask returns a live task scoped to a project. Returns ErrNotFound
// when the task does not exist in that project or is soft-deleted.
func (s *Store) GetTask(ctx context.Context, projectID, taskID uuid.UUID) (Task, error) {
	const q = `SELECT ` + taskColumns + ` FROM tasks
		WHERE id = ? AND project_id = ? AND deleted_at IS NULL`
	row := s.db.QueryRowContext(ctx, q, taskID.String(), projectID.String())
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Task{}, fmt.Errorf("%w: task %s", ErrNotFound, taskID)
	}
	if err != nil {
		return Task{}, fmt.Errorf("store: get task %s: %w", taskID, err)
	}
	return t, nil
}

// ListTasks returns all live tasks in a project ordered by start date then
// creation time.
func (s *Store) ListTasks(ctx context.Context, projectID uuid.UUID) ([]Task, error) {
	const q = `SELECT ` + taskColumns + ` FROM tasks
		WHERE project_id = ? AND deleted_at IS NULL
		ORDER BY start_date ASC, created_at DESC, id`
	rows, err := s.db.QueryContext(ctx, q, projectID.String())
	if err != nil {
		return nil, fmt.Errorf("store: list tasks: %w", err)
	}
	defer rows.Close()

	var result []Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan task: %w", err)
		}
		result = append(result, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate tasks: %w", err)
	}
	return result, nil
}

// UpdateTask persists the mutable fields of the given task.
func (s *Store) UpdateTask(ctx context.Context, t Task) (Task, error) {
	t.UpdatedAt = now()
	const q = `UPDATE tasks SET title = ?, status = ?, due_date = ?, start_date = ?, end_date = ?,
		duration_days = ?, assignee = ?, parent_id = ?, progress = ?, updated_at = ?
		WHERE id = ? AND project_id = ? AND deleted_at IS NULL`
	res, err := s.db.ExecContext(ctx, q,
		t.Title, t.Status, nullTime(t.DueDate), nullTime(t.StartDate), nullTime(t.EndDate),
		nullInt(t.DurationDays), nullUUID(t.Assignee), nullUUID(t.ParentID),
		t.Progress, formatTime(t.UpdatedAt), t.ID.String(), t.ProjectID.String())
	if err != nil {
		return Task{}, fmt.Errorf("store: update task %s: %w", t.ID, err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return Task{}, fmt.Errorf("%w: task %s", ErrNotFound, t.ID)
	}
	return t, nil
}

// UpdateTasks applies several task updates in a single transaction. All
// tasks must be live members of the project or the whole batch rolls back.
func (s *Store) UpdateTasks(ctx context.Context, projectID uuid.UUID, tasks []Task) error {
	if len(tasks) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin batch update: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	const q = `UPDATE tasks SET title = ?, status = ?, due_date = ?, start_date = ?, end_date = ?,
		duration_days = ?, assignee = ?, parent_id = ?, progress = ?, updated_at = ?
		WHERE id = ? AND project_id = ? AND deleted_at IS NULL`
	stmt, err := tx.PrepareContext(ctx, q)
	if err != nil {
		return fmt.Errorf("store: prepare batch update: %w", err)
	}
	defer stmt.Close()

	ts := formatTime(now())
	for _, t := range tasks {
		res, err := stmt.ExecContext(ctx,
			t.Title, t.Status, nullTime(t.DueDate), nullTime(t.StartDate), nullTime(t.EndDate),
			nullInt(t.DurationDays), nullUUID(t.Assignee), nullUUID(t.ParentID),
			t.Progress, ts, t.ID.String(), projectID.String())
		if err != nil {
			return fmt.Errorf("store: batch update task %s: %w", t.ID, err)
		}
		if affected, _ := res.RowsAffected(); affected == 0 {
			return fmt.Errorf("%w: task %s", ErrNotFound, t.ID)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit batch update: %w", err)
	}
	return nil
}

// SoftDeleteTask marks a task deleted, removing it from the dependency
// graph's node set on the next resolution.
func (s *Store) SoftDeleteTask(ctx context.Context, projectID, taskID uuid.UUID) error {
	ts := formatTime(now())
	const q = `UPDATE tasks SET deleted_at = ?, updated_at = ?
		WHERE id = ? AND project_id = ? AND deleted_at IS NULL`
	res, err := s.db.ExecContext(ctx, q, ts, ts, taskID.String(), projectID.String())
	if err != nil {
		return fmt.Errorf("store: delete task %s: %w", taskID, err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return fmt.Errorf("%w: task %s", ErrNotFound, taskID)
	}
	return nil
}

// TaskInProject reports whether the task is a live member of the project.
func (s *Store) TaskInProject(ctx context.Context, projectID, taskID uuid.UUID) (bool, error) {
	const q = `SELECT EXISTS(SELECT 1 FROM tasks
		WHERE id = ? AND project_id = ? AND deleted_at IS NULL)`
	var exists bool
	if err := s.db.QueryRowContext(ctx, q, taskID.String(), projectID.String()).Scan(&exists); err != nil {
		return false, fmt.Errorf("store: task membership %s: %w", taskID, err)
	}
	return exists, nil
}

// LiveTaskWeights returns the duration in days for every live task in a
// project, keyed by task id. The weight is the stored duration when
// present, the whole-day span between start and end dates when both are
// set, and zero otherwise. Negative values clamp to zero.
func (s *Store) LiveTaskWeights(ctx context.Context, projectID uuid.UUID) (map[string]int, error) {
	const q = `SELECT id, COALESCE(duration_days,
			CAST(julianday(end_date) - julianday(start_date) AS INTEGER), 0)
		FROM tasks WHERE project_id = ? AND deleted_at IS NULL`
	rows, err := s.db.QueryContext(ctx, q, projectID.String())
	if err != nil {
		return nil, fmt.Errorf("store: task weights: %w", err)
	}
	defer rows.Close()

	weights := make(map[string]int)
	for rows.Next() {
		var (
			id   string
			days int
		)
		if err := rows.Scan(&id, &days); err != nil {
			return nil, fmt.Errorf("store: scan task weight: %w", err)
		}
		if days < 0 {
			days = 0
		}
		weights[id] = days
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate task weights: %w", err)
	}
	return weights, nil
}

func nullInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullUUID(v *uuid.UUID) any {
	if v == nil {
		return nil
	}
	return v.String()
}

func scanTask(sc scanner) (Task, error) {
	var (
		t                  Task
		id, project        string
		cAt, uAt           string
		due, start, end    sql.NullString
		duration           sql.NullInt64
		assignee, parentID sql.NullString
	)
	if err := sc.Scan(&id, &project, &t.Title, &t.Status, &due, &start, &end,
		&duration, &assignee, &parentID, &t.Progress, &cAt, &uAt); err != nil {
		return Task{}, err
	}

	var err error
	if t.ID, err = uuid.Parse(id); err != nil {
		return Task{}, fmt.Errorf("parse task id: %w", err)
	}
	if t.ProjectID, err = uuid.Parse(project); err != nil {
		return Task{}, fmt.Errorf("parse project id: %w", err)
	}
	if t.DueDate, err = scanNullTime(due); err != nil {
		return Task{}, err
	}
	if t.StartDate, err = scanNullTime(start); err != nil {
		return Task{}, err
	}
	if t.EndDate, err = scanNullTime(end); err != nil {
		return Task{}, err
	}
	if duration.Valid {
		d := int(duration.Int64)
		t.DurationDays = &d
	}
	if t.Assignee, err = scanNullUUID(assignee); err != nil {
		return Task{}, err
	}
	if t.ParentID, err = scanNullUUID(parentID); err != nil {
		return Task{}, err
	}
	if t.CreatedAt, err = parseTimestamp(cAt); err != nil {
		return Task{}, err
	}
	if t.UpdatedAt, err = parseTimestamp(uAt); err != nil {
		return Task{}, err
	}
	return t, nil
}

func scanNullUUID(ns sql.NullString) (*uuid.UUID, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	u, err := uuid.Parse(ns.String)
	if err != nil {
		return nil, fmt.Errorf("parse uuid column: %w", err)
	}
	return &u, nil
}
