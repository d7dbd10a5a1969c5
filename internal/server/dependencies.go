package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jfenske/planward/internal/activity"
	"github.com/jfenske/planward/internal/engine"
	"github.com/jfenske/planward/internal/store"
)

type dependencyRequest struct {
	SourceTaskID string `json:"source_task_id"`
	TargetTaskID string `json:"target_task_id"`
	Kind         string `json:"type"`
}

func (s *Server) handleListDependencies(c *gin.Context) {
	project, ok := s.authorizeProject(c)
	if !ok {
		return
	}
	deps, err := s.store.ListDependencies(c.Request.Context(), project.ID)
	if err != nil {
		s.internalError(c, "list dependencies", err)
		return
	}
	if deps == nil {
		deps = []store.Dependency{}
	}
	c.JSON(http.StatusOK, deps)
}

// handleCreateDependency runs the engine's cycle guard before the edge
// is written. Rejections map to distinct error codes so clients can tell
// a self-loop from a would-be cycle.
func (s *Server) handleCreateDependency(c *gin.Context) {
	project, ok := s.authorizeProject(c)
	if !ok {
		return
	}
	var req dependencyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "bad_request", "malformed request body")
		return
	}
	source, err := uuid.Parse(req.SourceTaskID)
	if err != nil {
		respondError(c, http.StatusBadRequest, "bad_request", "malformed source_task_id")
		return
	}
	target, err := uuid.Parse(req.TargetTaskID)
	if err != nil {
		respondError(c, http.StatusBadRequest, "bad_request", "malformed target_task_id")
		return
	}

	dep, err := s.engine.CreateDependency(c.Request.Context(), project.ID, source, target, req.Kind)
	if err != nil {
		s.dependencyError(c, err)
		return
	}

	s.record(c, activity.Event{
		ProjectID:  project.ID,
		Action:     "created",
		EntityType: "dependency",
		SubjectID:  dep.ID,
		New:        dep,
	})
	c.JSON(http.StatusCreated, dep)
}

func (s *Server) dependencyError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, engine.ErrSelfDependency):
		respondError(c, http.StatusBadRequest, "self_dependency", "a task cannot depend on itself")
	case errors.Is(err, engine.ErrReverseExists):
		respondError(c, http.StatusBadRequest, "reverse_exists", "the reverse dependency already exists")
	case errors.Is(err, engine.ErrCycleDetected):
		respondError(c, http.StatusBadRequest, "cycle_detected", "dependency would create a cycle")
	case errors.Is(err, engine.ErrTaskNotFound):
		respondError(c, http.StatusNotFound, "not_found", "task not found in project")
	default:
		s.internalError(c, "create dependency", err)
	}
}

func (s *Server) handleDeleteDependency(c *gin.Context) {
	project, ok := s.authorizeProject(c)
	if !ok {
		return
	}
	depID, err := uuid.Parse(c.Param("dep_id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "bad_request", "malformed dependency id")
		return
	}

	if err := s.store.DeleteDependency(c.Request.Context(), project.ID, depID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(c, http.StatusNotFound, "not_found", "dependency not found")
			return
		}
		s.internalError(c, "delete dependency", err)
		return
	}

	s.record(c, activity.Event{
		ProjectID:  project.ID,
		Action:     "deleted",
		EntityType: "dependency",
		SubjectID:  depID,
	})
	c.Status(http.StatusNoContent)
}
