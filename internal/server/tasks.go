package server

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jfenske/planward/internal/activity"
	"github.com/jfenske/planward/internal/store"
)

type taskRequest struct {
	Title        string  `json:"title"`
	Status       string  `json:"status"`
	DueDate      *string `json:"due_date"`
	StartDate    *string `json:"start_date"`
	EndDate      *string `json:"end_date"`
	DurationDays *int    `json:"duration_days"`
	Assignee     *string `json:"assignee"`
	ParentID     *string `json:"parent_id"`
	Progress     *int    `json:"progress"`
}

// parseDate accepts RFC 3339 timestamps or bare YYYY-MM-DD dates and
// normalizes both to midnight UTC.
func parseDate(raw string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			t = t.UTC()
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", raw)
}

// apply copies the request fields onto a task, validating dates, the
// timeline (end before start is rejected) and progress bounds.
func (r taskRequest) apply(t *store.Task) error {
	if r.Title != "" {
		t.Title = r.Title
	}
	if r.Status != "" {
		t.Status = r.Status
	}
	for _, f := range []struct {
		raw  *string
		dst  **time.Time
		name string
	}{
		{r.DueDate, &t.DueDate, "due_date"},
		{r.StartDate, &t.StartDate, "start_date"},
		{r.EndDate, &t.EndDate, "end_date"},
	} {
		if f.raw == nil {
			continue
		}
		if *f.raw == "" {
			*f.dst = nil
			continue
		}
		parsed, err := parseDate(*f.raw)
		if err != nil {
			return fmt.Errorf("malformed %s", f.name)
		}
		*f.dst = &parsed
	}
	if t.StartDate != nil && t.EndDate != nil && t.EndDate.Before(*t.StartDate) {
		return errors.New("end_date must not be before start_date")
	}
	if r.DurationDays != nil {
		if *r.DurationDays < 0 {
			return errors.New("duration_days must not be negative")
		}
		t.DurationDays = r.DurationDays
	}
	if r.Assignee != nil {
		id, err := parseOptionalUUID(*r.Assignee)
		if err != nil {
			return errors.New("malformed assignee")
		}
		t.Assignee = id
	}
	if r.ParentID != nil {
		id, err := parseOptionalUUID(*r.ParentID)
		if err != nil {
			return errors.New("malformed parent_id")
		}
		t.ParentID = id
	}
	if r.Progress != nil {
		if *r.Progress < 0 || *r.Progress > 100 {
			return errors.New("progress must be between 0 and 100")
		}
		t.Progress = *r.Progress
	}
	return nil
}

func parseOptionalUUID(raw string) (*uuid.UUID, error) {
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func (s *Server) handleListTasks(c *gin.Context) {
	project, ok := s.authorizeProject(c)
	if !ok {
		return
	}
	tasks, err := s.store.ListTasks(c.Request.Context(), project.ID)
	if err != nil {
		s.internalError(c, "list tasks", err)
		return
	}
	if tasks == nil {
		tasks = []store.Task{}
	}
	c.JSON(http.StatusOK, tasks)
}

func (s *Server) handleCreateTask(c *gin.Context) {
	project, ok := s.authorizeProject(c)
	if !ok {
		return
	}
	var req taskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "bad_request", "malformed request body")
		return
	}
	if req.Title == "" {
		respondError(c, http.StatusBadRequest, "bad_request", "title is required")
		return
	}

	task := store.Task{ProjectID: project.ID}
	if err := req.apply(&task); err != nil {
		respondError(c, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	created, err := s.store.CreateTask(c.Request.Context(), task)
	if err != nil {
		s.internalError(c, "create task", err)
		return
	}

	s.record(c, activity.Event{
		ProjectID:  project.ID,
		Action:     "created",
		EntityType: "task",
		SubjectID:  created.ID,
		New:        created,
	})
	c.JSON(http.StatusCreated, created)
}

func (s *Server) handleGetTask(c *gin.Context) {
	project, ok := s.authorizeProject(c)
	if !ok {
		return
	}
	taskID, err := uuid.Parse(c.Param("task_id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "bad_request", "malformed task id")
		return
	}

	task, err := s.store.GetTask(c.Request.Context(), project.ID, taskID)
	if errors.Is(err, store.ErrNotFound) {
		respondError(c, http.StatusNotFound, "not_found", "task not found")
		return
	}
	if err != nil {
		s.internalError(c, "load task", err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func (s *Server) handleUpdateTask(c *gin.Context) {
	project, ok := s.authorizeProject(c)
	if !ok {
		return
	}
	taskID, err := uuid.Parse(c.Param("task_id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "bad_request", "malformed task id")
		return
	}

	task, err := s.store.GetTask(c.Request.Context(), project.ID, taskID)
	if errors.Is(err, store.ErrNotFound) {
		respondError(c, http.StatusNotFound, "not_found", "task not found")
		return
	}
	if err != nil {
		s.internalError(c, "load task", err)
		return
	}

	var req taskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "bad_request", "malformed request body")
		return
	}
	before := task
	if err := req.apply(&task); err != nil {
		respondError(c, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	updated, err := s.store.UpdateTask(c.Request.Context(), task)
	if err != nil {
		s.internalError(c, "update task", err)
		return
	}

	s.record(c, activity.Event{
		ProjectID:  project.ID,
		Action:     "updated",
		EntityType: "task",
		SubjectID:  updated.ID,
		New:        updated,
		Old:        before,
	})
	c.JSON(http.StatusOK, updated)
}

type batchTaskRequest struct {
	ID string `json:"id"`
	taskRequest
}

// handleBatchUpdateTasks applies a set of task updates in one
// transaction: either every update lands or none do.
func (s *Server) handleBatchUpdateTasks(c *gin.Context) {
	project, ok := s.authorizeProject(c)
	if !ok {
		return
	}
	var req []batchTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "bad_request", "malformed request body")
		return
	}

	ctx := c.Request.Context()
	tasks := make([]store.Task, 0, len(req))
	for _, item := range req {
		taskID, err := uuid.Parse(item.ID)
		if err != nil {
			respondError(c, http.StatusBadRequest, "bad_request", "malformed task id "+item.ID)
			return
		}
		task, err := s.store.GetTask(ctx, project.ID, taskID)
		if errors.Is(err, store.ErrNotFound) {
			respondError(c, http.StatusNotFound, "not_found", "task "+item.ID+" not found")
			return
		}
		if err != nil {
			s.internalError(c, "load task", err)
			return
		}
		if err := item.apply(&task); err != nil {
			respondError(c, http.StatusBadRequest, "bad_request", err.Error())
			return
		}
		tasks = append(tasks, task)
	}

	if err := s.store.UpdateTasks(ctx, project.ID, tasks); err != nil {
		s.internalError(c, "batch update tasks", err)
		return
	}

	s.record(c, activity.Event{
		ProjectID:  project.ID,
		Action:     "updated",
		EntityType: "task",
		SubjectID:  project.ID,
		New:        gin.H{"batch_size": len(tasks)},
	})
	c.JSON(http.StatusOK, gin.H{"updated": len(tasks)})
}

func (s *Server) handleDeleteTask(c *gin.Context) {
	project, ok := s.authorizeProject(c)
	if !ok {
		return
	}
	taskID, err := uuid.Parse(c.Param("task_id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "bad_request", "malformed task id")
		return
	}

	if err := s.store.SoftDeleteTask(c.Request.Context(), project.ID, taskID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(c, http.StatusNotFound, "not_found", "task not found")
			return
		}
		s.internalError(c, "delete task", err)
		return
	}

	s.record(c, activity.Event{
		ProjectID:  project.ID,
		Action:     "deleted",
		EntityType: "task",
		SubjectID:  taskID,
	})
	c.Status(http.StatusNoContent)
}
