package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jfenske/planward/internal/activity"
	"github.com/jfenske/planward/internal/store"
)

type progressRequest struct {
	Progress int    `json:"progress"`
	Note     string `json:"note"`
}

// progressScope resolves and validates the :task_id parameter for the
// progress routes. The task must be a live member of the project.
func (s *Server) progressScope(c *gin.Context) (store.Project, uuid.UUID, bool) {
	project, ok := s.authorizeProject(c)
	if !ok {
		return store.Project{}, uuid.Nil, false
	}
	taskID, err := uuid.Parse(c.Param("task_id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "bad_request", "malformed task id")
		return store.Project{}, uuid.Nil, false
	}
	member, err := s.store.TaskInProject(c.Request.Context(), project.ID, taskID)
	if err != nil {
		s.internalError(c, "task membership", err)
		return store.Project{}, uuid.Nil, false
	}
	if !member {
		respondError(c, http.StatusNotFound, "not_found", "task not found")
		return store.Project{}, uuid.Nil, false
	}
	return project, taskID, true
}

func (s *Server) handleListProgress(c *gin.Context) {
	_, taskID, ok := s.progressScope(c)
	if !ok {
		return
	}
	entries, err := s.store.ListProgress(c.Request.Context(), taskID)
	if err != nil {
		s.internalError(c, "list progress", err)
		return
	}
	if entries == nil {
		entries = []store.ProgressEntry{}
	}
	c.JSON(http.StatusOK, entries)
}

func (s *Server) handleCreateProgress(c *gin.Context) {
	project, taskID, ok := s.progressScope(c)
	if !ok {
		return
	}
	var req progressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "bad_request", "malformed request body")
		return
	}
	if req.Progress < 0 || req.Progress > 100 {
		respondError(c, http.StatusBadRequest, "bad_request", "progress must be between 0 and 100")
		return
	}

	entry, err := s.store.CreateProgress(c.Request.Context(), project.ID, taskID, req.Progress, req.Note)
	if err != nil {
		s.internalError(c, "create progress", err)
		return
	}

	s.record(c, activity.Event{
		ProjectID:  project.ID,
		Action:     "created",
		EntityType: "progress",
		SubjectID:  entry.ID,
		New:        entry,
	})
	c.JSON(http.StatusCreated, entry)
}

func (s *Server) handleUpdateProgress(c *gin.Context) {
	project, _, ok := s.progressScope(c)
	if !ok {
		return
	}
	entryID, err := uuid.Parse(c.Param("entry_id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "bad_request", "malformed progress entry id")
		return
	}
	var req progressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "bad_request", "malformed request body")
		return
	}
	if req.Progress < 0 || req.Progress > 100 {
		respondError(c, http.StatusBadRequest, "bad_request", "progress must be between 0 and 100")
		return
	}

	entry, err := s.store.UpdateProgress(c.Request.Context(), entryID, req.Progress, req.Note)
	if errors.Is(err, store.ErrNotFound) {
		respondError(c, http.StatusNotFound, "not_found", "progress entry not found")
		return
	}
	if err != nil {
		s.internalError(c, "update progress", err)
		return
	}

	s.record(c, activity.Event{
		ProjectID:  project.ID,
		Action:     "updated",
		EntityType: "progress",
		SubjectID:  entry.ID,
		New:        entry,
	})
	c.JSON(http.StatusOK, entry)
}

func (s *Server) handleDeleteProgress(c *gin.Context) {
	project, _, ok := s.progressScope(c)
	if !ok {
		return
	}
	entryID, err := uuid.Parse(c.Param("entry_id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "bad_request", "malformed progress entry id")
		return
	}

	if err := s.store.SoftDeleteProgress(c.Request.Context(), entryID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(c, http.StatusNotFound, "not_found", "progress entry not found")
			return
		}
		s.internalError(c, "delete progress", err)
		return
	}

	s.record(c, activity.Event{
		ProjectID:  project.ID,
		Action:     "deleted",
		EntityType: "progress",
		SubjectID:  entryID,
	})
	c.Status(http.StatusNoContent)
}
