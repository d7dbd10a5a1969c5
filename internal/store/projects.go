package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

const projectColumns = `id, owner_id, name, description, theme_color, created_at, updated_at`

// CreateProject inserts a new project and returns it.
func (s *Store) CreateProject(ctx context.Context, ownerID uuid.UUID, name, description, themeColor string) (Project, error) {
	p := Project{
		ID:          uuid.New(),
		OwnerID:     ownerID,
		Name:        name,
		Description: description,
		ThemeColor:  themeColor,
		CreatedAt:   now(),
	}
	p.UpdatedAt = p.CreatedAt
	if p.ThemeColor == "" {
		p.ThemeColor = "#3498db"
	}

	const q = `INSERT INTO projects (id, owner_id, name, description, theme_color, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, q,
		p.ID.String(), p.OwnerID.String(), p.Name, p.Description, p.ThemeColor,
		formatTime(p.CreatedAt), formatTime(p.UpdatedAt))
	if err != nil {
		return Project{}, fmt.Errorf("store: create project: %w", err)
	}
	return p, nil
}

// GetProject returns a live project by id. Returns ErrNotFound when the
// project does not exist or is soft-deleted.
func (s *Store) GetProject(ctx context.Context, id uuid.UUID) (Project, error) {
	const q = `SELECT ` + projectColumns + ` FROM projects WHERE id = ? AND deleted_at IS NULL`
	row := s.db.QueryRowContext(ctx, q, id.String())
	p, err := scanProject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Project{}, fmt.Errorf("%w: project %s", ErrNotFound, id)
	}
	if err != nil {
		return Project{}, fmt.Errorf("store: get project %s: %w", id, err)
	}
	return p, nil
}

// ListProjects returns all live projects for an owner, newest first.
func (s *Store) ListProjects(ctx context.Context, ownerID uuid.UUID) ([]Project, error) {
	const q = `SELECT ` + projectColumns + ` FROM projects
		WHERE owner_id = ? AND deleted_at IS NULL ORDER BY created_at DESC, id`
	rows, err := s.db.QueryContext(ctx, q, ownerID.String())
	if err != nil {
		return nil, fmt.Errorf("store: list projects: %w", err)
	}
	defer rows.Close()

	var result []Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan project: %w", err)
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate projects: %w", err)
	}
	return result, nil
}

// UpdateProject persists changed fields of the given project.
func (s *Store) UpdateProject(ctx context.Context, p Project) (Project, error) {
	p.UpdatedAt = now()
	const q = `UPDATE projects SET name = ?, description = ?, theme_color = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL`
	res, err := s.db.ExecContext(ctx, q, p.Name, p.Description, p.ThemeColor,
		formatTime(p.UpdatedAt), p.ID.String())
	if err != nil {
		return Project{}, fmt.Errorf("store: update project %s: %w", p.ID, err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return Project{}, fmt.Errorf("%w: project %s", ErrNotFound, p.ID)
	}
	return p, nil
}

// SoftDeleteProject marks a project deleted. Already-deleted projects
// return ErrNotFound.
func (s *Store) SoftDeleteProject(ctx context.Context, id uuid.UUID) error {
	ts := formatTime(now())
	const q = `UPDATE projects SET deleted_at = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL`
	res, err := s.db.ExecContext(ctx, q, ts, ts, id.String())
	if err != nil {
		return fmt.Errorf("store: delete project %s: %w", id, err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return fmt.Errorf("%w: project %s", ErrNotFound, id)
	}
	return nil
}

// scanner abstracts *sql.Row and *sql.Rows for the scan helpers.
type scanner interface {
	Scan(dest ...any) error
}

func scanProject(sc scanner) (Project, error) {
	var (
		p                   Project
		id, owner, cAt, uAt string
	)
	if err := sc.Scan(&id, &owner, &p.Name, &p.Description, &p.ThemeColor, &cAt, &uAt); err != nil {
		return Project{}, err
	}
	var err error
	if p.ID, err = uuid.Parse(id); err != nil {
		return Project{}, fmt.Errorf("parse project id: %w", err)
	}
	if p.OwnerID, err = uuid.Parse(owner); err != nil {
		return Project{}, fmt.Errorf("parse owner id: %w", err)
	}
	if p.CreatedAt, err = parseTimestamp(cAt); err != nil {
		return Project{}, err
	}
	if p.UpdatedAt, err = parseTimestamp(uAt); err != nil {
		return Project{}, err
	}
	return p, nil
}
