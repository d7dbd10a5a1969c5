// Package server exposes the HTTP API. Callers are authenticated
// upstream; the gateway passes the caller's identity in X-Owner-ID and
// every project-scoped route checks ownership against it.
package server

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jfenske/planward/internal/activity"
	"github.com/jfenske/planward/internal/engine"
	"github.com/jfenske/planward/internal/store"
)

const ownerHeader = "X-Owner-ID"

// ownerKey is the gin context key the owner middleware stores the
// resolved caller ID under.
const ownerKey = "planward.owner"

// Server wires the store, the dependency engine and the activity
// recorder behind a gin router.
type Server struct {
	store    *store.Store
	engine   *engine.Engine
	recorder *activity.Recorder
	logger   *slog.Logger

	activityLimit int
}

// New builds a Server. A nil logger falls back to slog.Default and a
// non-positive activityLimit falls back to 50.
func New(st *store.Store, eng *engine.Engine, rec *activity.Recorder, logger *slog.Logger, activityLimit int) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if activityLimit <= 0 {
		activityLimit = 50
	}
	return &Server{
		store:         st,
		engine:        eng,
		recorder:      rec,
		logger:        logger,
		activityLimit: activityLimit,
	}
}

// Router returns the configured gin engine.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())

	r.GET("/healthz", s.handleHealthz)

	projects := r.Group("/projects", s.requireOwner())
	projects.GET("", s.handleListProjects)
	projects.POST("", s.handleCreateProject)

	scoped := projects.Group("/:id")
	scoped.GET("", s.handleGetProject)
	scoped.PUT("", s.handleUpdateProject)
	scoped.DELETE("", s.handleDeleteProject)
	scoped.GET("/dashboard", s.handleDashboard)
	scoped.POST("/plan", s.handleReplacePlan)
	scoped.GET("/critical-path", s.handleCriticalPath)
	scoped.GET("/activity", s.handleListActivity)

	scoped.GET("/tasks", s.handleListTasks)
	scoped.POST("/tasks", s.handleCreateTask)
	scoped.PUT("/tasks/batch", s.handleBatchUpdateTasks)
	scoped.GET("/tasks/:task_id", s.handleGetTask)
	scoped.PUT("/tasks/:task_id", s.handleUpdateTask)
	scoped.DELETE("/tasks/:task_id", s.handleDeleteTask)

	scoped.GET("/dependencies", s.handleListDependencies)
	scoped.POST("/dependencies", s.handleCreateDependency)
	scoped.DELETE("/dependencies/:dep_id", s.handleDeleteDependency)

	scoped.GET("/tasks/:task_id/progress", s.handleListProgress)
	scoped.POST("/tasks/:task_id/progress", s.handleCreateProgress)
	scoped.PUT("/tasks/:task_id/progress/:entry_id", s.handleUpdateProgress)
	scoped.DELETE("/tasks/:task_id/progress/:entry_id", s.handleDeleteProgress)

	return r
}

func (s *Server) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// requestLogger logs one line per request with method, path, status and
// duration.
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Info("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start).String())
	}
}

// requireOwner resolves the trusted X-Owner-ID header into the request
// context. A missing or malformed header is a bad request.
func (s *Server) requireOwner() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader(ownerHeader)
		if raw == "" {
			respondError(c, http.StatusBadRequest, "bad_request", "missing X-Owner-ID header")
			c.Abort()
			return
		}
		ownerID, err := uuid.Parse(raw)
		if err != nil {
			respondError(c, http.StatusBadRequest, "bad_request", "malformed X-Owner-ID header")
			c.Abort()
			return
		}
		c.Set(ownerKey, ownerID)
		c.Next()
	}
}

func currentOwner(c *gin.Context) uuid.UUID {
	return c.MustGet(ownerKey).(uuid.UUID)
}

// authorizeProject loads the project in the :id parameter and verifies
// it belongs to the caller. On failure it writes the error response and
// returns ok=false.
func (s *Server) authorizeProject(c *gin.Context) (store.Project, bool) {
	projectID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "bad_request", "malformed project id")
		return store.Project{}, false
	}

	project, err := s.store.GetProject(c.Request.Context(), projectID)
	if errors.Is(err, store.ErrNotFound) {
		respondError(c, http.StatusNotFound, "not_found", "project not found")
		return store.Project{}, false
	}
	if err != nil {
		s.internalError(c, "load project", err)
		return store.Project{}, false
	}
	if project.OwnerID != currentOwner(c) {
		respondError(c, http.StatusForbidden, "forbidden", "project belongs to another owner")
		return store.Project{}, false
	}
	return project, true
}

func (s *Server) internalError(c *gin.Context, op string, err error) {
	s.logger.Error(op, "error", err.Error(), "path", c.Request.URL.Path)
	respondError(c, http.StatusInternalServerError, "internal", "internal server error")
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func respondError(c *gin.Context, status int, code, message string) {
	c.JSON(status, errorResponse{Error: code, Message: message})
}

// record queues an activity event with the request's actor and client
// metadata filled in.
func (s *Server) record(c *gin.Context, ev activity.Event) {
	if s.recorder == nil {
		return
	}
	actor := currentOwner(c)
	ev.ActorID = &actor
	ev.Context = activity.RequestContext{
		IP:        c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}
	s.recorder.Record(ev)
}
