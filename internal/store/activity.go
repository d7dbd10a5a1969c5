package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// InsertActivity persists one activity-log record. Called by the activity
// recorder's writer goroutine, not by request handlers directly.
func (s *Store) InsertActivity(ctx context.Context, e ActivityEntry) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now()
	}
	if e.Severity == "" {
		e.Severity = "info"
	}
	if e.Payload == "" {
		e.Payload = "{}"
	}

	const q = `INSERT INTO activity_log (id, project_id, action, entity_type, subject_id, actor_id, payload, severity, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, q,
		e.ID.String(), e.ProjectID.String(), e.Action, e.EntityType, e.SubjectID.String(),
		nullUUID(e.ActorID), e.Payload, e.Severity, formatTime(e.CreatedAt))
	if err != nil {
		return fmt.Errorf("store: insert activity: %w", err)
	}
	return nil
}

// ListActivity returns the most recent activity entries for a project,
// newest first, capped at limit.
func (s *Store) ListActivity(ctx context.Context, projectID uuid.UUID, limit int) ([]ActivityEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	const q = `SELECT id, project_id, action, entity_type, subject_id, actor_id, payload, severity, created_at
		FROM activity_log WHERE project_id = ? ORDER BY created_at DESC, id LIMIT ?`
	rows, err := s.db.QueryContext(ctx, q, projectID.String(), limit)
	if err != nil {
		return nil, fmt.Errorf("store: list activity: %w", err)
	}
	defer rows.Close()

	var result []ActivityEntry
	for rows.Next() {
		var (
			e              ActivityEntry
			id, proj, subj string
			actor          sql.NullString
			cAt            string
		)
		if err := rows.Scan(&id, &proj, &e.Action, &e.EntityType, &subj, &actor, &e.Payload, &e.Severity, &cAt); err != nil {
			return nil, fmt.Errorf("store: scan activity: %w", err)
		}
		if e.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("store: parse activity id: %w", err)
		}
		if e.ProjectID, err = uuid.Parse(proj); err != nil {
			return nil, fmt.Errorf("store: parse activity project id: %w", err)
		}
		if e.SubjectID, err = uuid.Parse(subj); err != nil {
			return nil, fmt.Errorf("store: parse activity subject id: %w", err)
		}
		if e.ActorID, err = scanNullUUID(actor); err != nil {
			return nil, fmt.Errorf("store: parse activity actor id: %w", err)
		}
		if e.CreatedAt, err = parseTimestamp(cAt); err != nil {
			return nil, fmt.Errorf("store: parse activity timestamp: %w", err)
		}
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate activity: %w", err)
	}
	return result, nil
}
