package store

import (
	"time"

	"github.com/google/uuid"
)

// Project is a top-level container of tasks owned by a single user.
type Project struct {
	ID          uuid.UUID  `json:"id"`
	OwnerID     uuid.UUID  `json:"owner_id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	ThemeColor  string     `json:"theme_color"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	DeletedAt   *time.Time `json:"deleted_at,omitempty"`
}

// Task is a unit of work inside a project. DurationDays is the explicitly
// stored duration; when absent the start/end date span stands in for it.
type Task struct {
	ID           uuid.UUID  `json:"id"`
	ProjectID    uuid.UUID  `json:"project_id"`
	Title        string     `json:"title"`
	Status       string     `json:"status"`
	DueDate      *time.Time `json:"due_date,omitempty"`
	StartDate    *time.Time `json:"start_date,omitempty"`
	EndDate      *time.Time `json:"end_date,omitempty"`
	DurationDays *int       `json:"duration_days,omitempty"`
	Assignee     *uuid.UUID `json:"assignee,omitempty"`
	ParentID     *uuid.UUID `json:"parent_id,omitempty"`
	Progress     int        `json:"progress"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	DeletedAt    *time.Time `json:"deleted_at,omitempty"`
}

// Dependency is a directed finish-to-start edge between two tasks:
// the target cannot begin before the source finishes.
type Dependency struct {
	ID           uuid.UUID `json:"id"`
	SourceTaskID uuid.UUID `json:"source_task_id"`
	TargetTaskID uuid.UUID `json:"target_task_id"`
	Kind         string    `json:"type"`
	CreatedAt    time.Time `json:"created_at"`
}

// Edge is the traversal view of a dependency row.
type Edge struct {
	Source string
	Target string
}

// ProgressEntry records reported percent-complete for a task at a point
// in time.
type ProgressEntry struct {
	ID        uuid.UUID  `json:"id"`
	ProjectID uuid.UUID  `json:"project_id"`
	TaskID    uuid.UUID  `json:"task_id"`
	Progress  int        `json:"progress"`
	Note      string     `json:"note"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// PlanPoint is one point of a project's planned-progress baseline.
type PlanPoint struct {
	ID              uuid.UUID `json:"id"`
	ProjectID       uuid.UUID `json:"project_id"`
	Date            string    `json:"date"` // YYYY-MM-DD
	PlannedProgress int       `json:"planned_progress"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// ActualPoint is the averaged reported progress for one calendar day.
type ActualPoint struct {
	Date   string `json:"date"`
	Actual int    `json:"actual"`
}

// ActivityEntry is one persisted activity-log record.
type ActivityEntry struct {
	ID         uuid.UUID  `json:"id"`
	ProjectID  uuid.UUID  `json:"project_id"`
	Action     string     `json:"action"`
	EntityType string     `json:"entity_type"`
	SubjectID  uuid.UUID  `json:"subject_id"`
	ActorID    *uuid.UUID `json:"actor_id,omitempty"`
	Payload    string     `json:"payload"`
	Severity   string     `json:"severity"`
	CreatedAt  time.Time  `json:"created_at"`
}
