package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jfenske/planward/internal/activity"
	"github.com/jfenske/planward/internal/engine"
	"github.com/jfenske/planward/internal/store"
)

type projectRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	ThemeColor  string `json:"theme_color"`
}

func (s *Server) handleListProjects(c *gin.Context) {
	projects, err := s.store.ListProjects(c.Request.Context(), currentOwner(c))
	if err != nil {
		s.internalError(c, "list projects", err)
		return
	}
	if projects == nil {
		projects = []store.Project{}
	}
	c.JSON(http.StatusOK, projects)
}

func (s *Server) handleCreateProject(c *gin.Context) {
	var req projectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "bad_request", "malformed request body")
		return
	}
	if req.Name == "" {
		respondError(c, http.StatusBadRequest, "bad_request", "name is required")
		return
	}

	project, err := s.store.CreateProject(c.Request.Context(), currentOwner(c),
		req.Name, req.Description, req.ThemeColor)
	if err != nil {
		s.internalError(c, "create project", err)
		return
	}

	s.record(c, activity.Event{
		ProjectID:  project.ID,
		Action:     "created",
		EntityType: "project",
		SubjectID:  project.ID,
		New:        project,
	})
	c.JSON(http.StatusCreated, project)
}

func (s *Server) handleGetProject(c *gin.Context) {
	project, ok := s.authorizeProject(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, project)
}

func (s *Server) handleUpdateProject(c *gin.Context) {
	project, ok := s.authorizeProject(c)
	if !ok {
		return
	}
	var req projectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "bad_request", "malformed request body")
		return
	}

	before := project
	if req.Name != "" {
		project.Name = req.Name
	}
	if req.Description != "" {
		project.Description = req.Description
	}
	if req.ThemeColor != "" {
		project.ThemeColor = req.ThemeColor
	}

	updated, err := s.store.UpdateProject(c.Request.Context(), project)
	if err != nil {
		s.internalError(c, "update project", err)
		return
	}

	s.record(c, activity.Event{
		ProjectID:  updated.ID,
		Action:     "updated",
		EntityType: "project",
		SubjectID:  updated.ID,
		New:        updated,
		Old:        before,
	})
	c.JSON(http.StatusOK, updated)
}

func (s *Server) handleDeleteProject(c *gin.Context) {
	project, ok := s.authorizeProject(c)
	if !ok {
		return
	}
	if err := s.store.SoftDeleteProject(c.Request.Context(), project.ID); err != nil {
		s.internalError(c, "delete project", err)
		return
	}

	s.record(c, activity.Event{
		ProjectID:  project.ID,
		Action:     "deleted",
		EntityType: "project",
		SubjectID:  project.ID,
		Old:        project,
	})
	c.Status(http.StatusNoContent)
}

// handleDashboard returns the project together with its planned baseline
// and the averaged actual progress per day.
func (s *Server) handleDashboard(c *gin.Context) {
	project, ok := s.authorizeProject(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	plan, err := s.store.ListPlan(ctx, project.ID)
	if err != nil {
		s.internalError(c, "load plan", err)
		return
	}
	actual, err := s.store.ActualProgressByDay(ctx, project.ID)
	if err != nil {
		s.internalError(c, "load actual progress", err)
		return
	}
	if plan == nil {
		plan = []store.PlanPoint{}
	}
	if actual == nil {
		actual = []store.ActualPoint{}
	}

	c.JSON(http.StatusOK, gin.H{
		"project": project,
		"plan":    plan,
		"actual":  actual,
	})
}

type planPointRequest struct {
	Date            string `json:"date"`
	PlannedProgress int    `json:"planned_progress"`
}

func (s *Server) handleReplacePlan(c *gin.Context) {
	project, ok := s.authorizeProject(c)
	if !ok {
		return
	}
	var req []planPointRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "bad_request", "malformed request body")
		return
	}

	points := make([]store.PlanPoint, 0, len(req))
	for _, p := range req {
		if _, err := parseDate(p.Date); err != nil {
			respondError(c, http.StatusBadRequest, "bad_request", "malformed plan date "+p.Date)
			return
		}
		if p.PlannedProgress < 0 || p.PlannedProgress > 100 {
			respondError(c, http.StatusBadRequest, "bad_request", "planned_progress must be between 0 and 100")
			return
		}
		points = append(points, store.PlanPoint{
			ProjectID:       project.ID,
			Date:            p.Date,
			PlannedProgress: p.PlannedProgress,
		})
	}

	saved, err := s.store.ReplacePlan(c.Request.Context(), project.ID, points)
	if err != nil {
		s.internalError(c, "replace plan", err)
		return
	}
	if saved == nil {
		saved = []store.PlanPoint{}
	}

	s.record(c, activity.Event{
		ProjectID:  project.ID,
		Action:     "updated",
		EntityType: "project",
		SubjectID:  project.ID,
		New:        gin.H{"plan_points": len(saved)},
	})
	c.JSON(http.StatusOK, saved)
}

func (s *Server) handleCriticalPath(c *gin.Context) {
	project, ok := s.authorizeProject(c)
	if !ok {
		return
	}

	path, err := s.engine.CriticalPath(c.Request.Context(), project.ID)
	if errors.Is(err, engine.ErrGraphInvalid) {
		// Full graph context is already logged by the engine.
		respondError(c, http.StatusInternalServerError, "internal", "internal server error")
		return
	}
	if err != nil {
		s.internalError(c, "critical path", err)
		return
	}
	if path.TaskIDs == nil {
		path.TaskIDs = []string{}
	}

	c.JSON(http.StatusOK, gin.H{
		"task_ids":   path.TaskIDs,
		"total_days": path.TotalDays,
	})
}

func (s *Server) handleListActivity(c *gin.Context) {
	project, ok := s.authorizeProject(c)
	if !ok {
		return
	}

	entries, err := s.store.ListActivity(c.Request.Context(), project.ID, s.activityLimit)
	if err != nil {
		s.internalError(c, "list activity", err)
		return
	}
	if entries == nil {
		entries = []store.ActivityEntry{}
	}
	c.JSON(http.StatusOK, entries)
}
