package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jfenske/planward/internal/activity"
	"github.com/jfenske/planward/internal/engine"
	"github.com/jfenske/planward/internal/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	router   *gin.Engine
	store    *store.Store
	recorder *activity.Recorder
	ownerID  uuid.UUID
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	st, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "planward.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	rec := activity.NewRecorder(st, logger, 64)
	t.Cleanup(rec.Close)

	srv := New(st, engine.New(st, logger), rec, logger, 50)
	return &testServer{
		router:   srv.Router(),
		store:    st,
		recorder: rec,
		ownerID:  uuid.New(),
	}
}

// do issues a request with the test owner's X-Owner-ID header and
// decodes the JSON response into out when out is non-nil.
func (ts *testServer) do(t *testing.T, method, path string, body, out any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(ownerHeader, ts.ownerID.String())

	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	if out != nil && w.Code < 300 {
		if err := json.Unmarshal(w.Body.Bytes(), out); err != nil {
			t.Fatalf("decode response %q: %v", w.Body.String(), err)
		}
	}
	return w
}

func (ts *testServer) createProject(t *testing.T, name string) store.Project {
	t.Helper()
	var p store.Project
	w := ts.do(t, http.MethodPost, "/projects", map[string]string{"name": name}, &p)
	if w.Code != http.StatusCreated {
		t.Fatalf("create project: status %d: %s", w.Code, w.Body.String())
	}
	return p
}

func (ts *testServer) createTask(t *testing.T, projectID uuid.UUID, title string, durationDays int) store.Task {
	t.Helper()
	var task store.Task
	w := ts.do(t, http.MethodPost, fmt.Sprintf("/projects/%s/tasks", projectID),
		map[string]any{"title": title, "duration_days": durationDays}, &task)
	if w.Code != http.StatusCreated {
		t.Fatalf("create task %s: status %d: %s", title, w.Code, w.Body.String())
	}
	return task
}

func (ts *testServer) createDependency(t *testing.T, projectID, source, target uuid.UUID) *httptest.ResponseRecorder {
	t.Helper()
	return ts.do(t, http.MethodPost, fmt.Sprintf("/projects/%s/dependencies", projectID),
		map[string]string{
			"source_task_id": source.String(),
			"target_task_id": target.String(),
		}, nil)
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error response %q: %v", w.Body.String(), err)
	}
	return resp.Error
}

func TestHealthz(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("healthz status = %d", w.Code)
	}
}

func TestOwnerHeaderRequired(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/projects", nil)
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 without owner header", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/projects", nil)
	req.Header.Set(ownerHeader, "not-a-uuid")
	w = httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 for malformed owner header", w.Code)
	}
}

func TestProjectLifecycle(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)

	project := ts.createProject(t, "launch")
	if project.Name != "launch" {
		t.Errorf("project name = %q", project.Name)
	}
	if project.OwnerID != ts.ownerID {
		t.Errorf("owner = %s, want %s", project.OwnerID, ts.ownerID)
	}

	var listed []store.Project
	w := ts.do(t, http.MethodGet, "/projects", nil, &listed)
	if w.Code != http.StatusOK || len(listed) != 1 {
		t.Fatalf("list projects: status %d, %d projects", w.Code, len(listed))
	}

	var updated store.Project
	w = ts.do(t, http.MethodPut, "/projects/"+project.ID.String(),
		map[string]string{"name": "launch v2"}, &updated)
	if w.Code != http.StatusOK || updated.Name != "launch v2" {
		t.Fatalf("update project: status %d, name %q", w.Code, updated.Name)
	}

	w = ts.do(t, http.MethodDelete, "/projects/"+project.ID.String(), nil, nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete project: status %d", w.Code)
	}
	w = ts.do(t, http.MethodGet, "/projects/"+project.ID.String(), nil, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("get deleted project: status %d, want 404", w.Code)
	}
}

func TestForeignProjectForbidden(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	project := ts.createProject(t, "mine")

	req := httptest.NewRequest(http.MethodGet, "/projects/"+project.ID.String(), nil)
	req.Header.Set(ownerHeader, uuid.NewString())
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403 for a foreign owner", w.Code)
	}
	if code := decodeError(t, w); code != "forbidden" {
		t.Errorf("error code = %q, want forbidden", code)
	}
}

func TestTaskValidation(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	project := ts.createProject(t, "validation")
	base := fmt.Sprintf("/projects/%s/tasks", project.ID)

	tests := []struct {
		name string
		body map[string]any
	}{
		{"missing title", map[string]any{}},
		{"progress out of range", map[string]any{"title": "t", "progress": 120}},
		{"negative duration", map[string]any{"title": "t", "duration_days": -2}},
		{"end before start", map[string]any{
			"title":      "t",
			"start_date": "2026-09-10",
			"end_date":   "2026-09-01",
		}},
		{"malformed date", map[string]any{"title": "t", "due_date": "next tuesday"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := ts.do(t, http.MethodPost, base, tc.body, nil)
			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", w.Code)
			}
		})
	}
}

func TestTaskDatesNormalizedToMidnightUTC(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	project := ts.createProject(t, "dates")

	var task store.Task
	w := ts.do(t, http.MethodPost, fmt.Sprintf("/projects/%s/tasks", project.ID),
		map[string]any{"title": "kickoff", "start_date": "2026-09-03T15:04:05+02:00"}, &task)
	if w.Code != http.StatusCreated {
		t.Fatalf("create task: status %d: %s", w.Code, w.Body.String())
	}
	if task.StartDate == nil {
		t.Fatal("start date not set")
	}
	if got := task.StartDate.Format("2006-01-02 15:04:05"); got != "2026-09-03 00:00:00" {
		t.Errorf("start date = %s, want midnight UTC", got)
	}
}

func TestBatchUpdateTasks(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	project := ts.createProject(t, "batch")
	a := ts.createTask(t, project.ID, "a", 1)
	b := ts.createTask(t, project.ID, "b", 2)

	w := ts.do(t, http.MethodPut, fmt.Sprintf("/projects/%s/tasks/batch", project.ID),
		[]map[string]any{
			{"id": a.ID.String(), "progress": 40},
			{"id": b.ID.String(), "progress": 90},
		}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("batch update: status %d: %s", w.Code, w.Body.String())
	}

	var got store.Task
	ts.do(t, http.MethodGet, fmt.Sprintf("/projects/%s/tasks/%s", project.ID, b.ID), nil, &got)
	if got.Progress != 90 {
		t.Errorf("task b progress = %d, want 90", got.Progress)
	}
}

func TestBatchUpdateRejectsUnknownTask(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	project := ts.createProject(t, "batch-unknown")
	a := ts.createTask(t, project.ID, "a", 1)

	w := ts.do(t, http.MethodPut, fmt.Sprintf("/projects/%s/tasks/batch", project.ID),
		[]map[string]any{
			{"id": a.ID.String(), "progress": 40},
			{"id": uuid.NewString(), "progress": 50},
		}, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}

	// The whole batch must roll back.
	var got store.Task
	ts.do(t, http.MethodGet, fmt.Sprintf("/projects/%s/tasks/%s", project.ID, a.ID), nil, &got)
	if got.Progress != 0 {
		t.Errorf("task a progress = %d, want 0 after failed batch", got.Progress)
	}
}

func TestDependencyGuards(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	project := ts.createProject(t, "guards")
	a := ts.createTask(t, project.ID, "a", 1)
	b := ts.createTask(t, project.ID, "b", 2)
	c := ts.createTask(t, project.ID, "c", 3)

	if w := ts.createDependency(t, project.ID, a.ID, b.ID); w.Code != http.StatusCreated {
		t.Fatalf("a->b: status %d: %s", w.Code, w.Body.String())
	}
	if w := ts.createDependency(t, project.ID, b.ID, c.ID); w.Code != http.StatusCreated {
		t.Fatalf("b->c: status %d: %s", w.Code, w.Body.String())
	}

	tests := []struct {
		name           string
		source, target uuid.UUID
		status         int
		code           string
	}{
		{"self loop", a.ID, a.ID, http.StatusBadRequest, "self_dependency"},
		{"reverse edge", b.ID, a.ID, http.StatusBadRequest, "reverse_exists"},
		{"transitive cycle", c.ID, a.ID, http.StatusBadRequest, "cycle_detected"},
		{"unknown task", a.ID, uuid.New(), http.StatusNotFound, "not_found"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := ts.createDependency(t, project.ID, tc.source, tc.target)
			if w.Code != tc.status {
				t.Errorf("status = %d, want %d", w.Code, tc.status)
			}
			if got := decodeError(t, w); got != tc.code {
				t.Errorf("error code = %q, want %q", got, tc.code)
			}
		})
	}
}

func TestCriticalPathEndpoint(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	project := ts.createProject(t, "plan")
	a := ts.createTask(t, project.ID, "a", 3)
	b := ts.createTask(t, project.ID, "b", 5)
	c := ts.createTask(t, project.ID, "c", 2)
	ts.createDependency(t, project.ID, a.ID, b.ID)
	ts.createDependency(t, project.ID, b.ID, c.ID)

	var resp struct {
		TaskIDs   []string `json:"task_ids"`
		TotalDays int      `json:"total_days"`
	}
	w := ts.do(t, http.MethodGet, fmt.Sprintf("/projects/%s/critical-path", project.ID), nil, &resp)
	if w.Code != http.StatusOK {
		t.Fatalf("critical path: status %d: %s", w.Code, w.Body.String())
	}
	if resp.TotalDays != 10 {
		t.Errorf("total_days = %d, want 10", resp.TotalDays)
	}
	want := []string{a.ID.String(), b.ID.String(), c.ID.String()}
	if len(resp.TaskIDs) != len(want) {
		t.Fatalf("task_ids = %v, want %v", resp.TaskIDs, want)
	}
	for i := range want {
		if resp.TaskIDs[i] != want[i] {
			t.Errorf("task_ids[%d] = %s, want %s", i, resp.TaskIDs[i], want[i])
		}
	}
}

func TestCriticalPathEmptyProject(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	project := ts.createProject(t, "empty")

	var resp struct {
		TaskIDs   []string `json:"task_ids"`
		TotalDays int      `json:"total_days"`
	}
	w := ts.do(t, http.MethodGet, fmt.Sprintf("/projects/%s/critical-path", project.ID), nil, &resp)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	if len(resp.TaskIDs) != 0 || resp.TotalDays != 0 {
		t.Errorf("got %v / %d, want empty path", resp.TaskIDs, resp.TotalDays)
	}
}

func TestDeletedTaskLeavesCriticalPath(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	project := ts.createProject(t, "pruned")
	a := ts.createTask(t, project.ID, "a", 3)
	b := ts.createTask(t, project.ID, "b", 5)
	ts.createDependency(t, project.ID, a.ID, b.ID)

	w := ts.do(t, http.MethodDelete, fmt.Sprintf("/projects/%s/tasks/%s", project.ID, a.ID), nil, nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete task: status %d", w.Code)
	}

	var resp struct {
		TaskIDs   []string `json:"task_ids"`
		TotalDays int      `json:"total_days"`
	}
	ts.do(t, http.MethodGet, fmt.Sprintf("/projects/%s/critical-path", project.ID), nil, &resp)
	if len(resp.TaskIDs) != 1 || resp.TaskIDs[0] != b.ID.String() || resp.TotalDays != 5 {
		t.Errorf("path = %v / %d, want just b with 5 days", resp.TaskIDs, resp.TotalDays)
	}
}

func TestProgressLifecycle(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	project := ts.createProject(t, "progress")
	task := ts.createTask(t, project.ID, "a", 1)
	base := fmt.Sprintf("/projects/%s/tasks/%s/progress", project.ID, task.ID)

	var entry store.ProgressEntry
	w := ts.do(t, http.MethodPost, base, map[string]any{"progress": 25, "note": "started"}, &entry)
	if w.Code != http.StatusCreated || entry.Progress != 25 {
		t.Fatalf("create progress: status %d, progress %d", w.Code, entry.Progress)
	}

	w = ts.do(t, http.MethodPost, base, map[string]any{"progress": 150}, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("out-of-range progress: status %d, want 400", w.Code)
	}

	var updated store.ProgressEntry
	w = ts.do(t, http.MethodPut, base+"/"+entry.ID.String(),
		map[string]any{"progress": 60, "note": "halfway"}, &updated)
	if w.Code != http.StatusOK || updated.Progress != 60 {
		t.Fatalf("update progress: status %d, progress %d", w.Code, updated.Progress)
	}

	w = ts.do(t, http.MethodDelete, base+"/"+entry.ID.String(), nil, nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete progress: status %d", w.Code)
	}

	var entries []store.ProgressEntry
	ts.do(t, http.MethodGet, base, nil, &entries)
	if len(entries) != 0 {
		t.Errorf("got %d entries after delete, want 0", len(entries))
	}
}

func TestDashboard(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	project := ts.createProject(t, "dash")
	task := ts.createTask(t, project.ID, "a", 1)

	w := ts.do(t, http.MethodPost, fmt.Sprintf("/projects/%s/plan", project.ID),
		[]map[string]any{
			{"date": "2026-09-01", "planned_progress": 20},
			{"date": "2026-09-02", "planned_progress": 40},
		}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("replace plan: status %d: %s", w.Code, w.Body.String())
	}
	ts.do(t, http.MethodPost, fmt.Sprintf("/projects/%s/tasks/%s/progress", project.ID, task.ID),
		map[string]any{"progress": 30}, nil)

	var resp struct {
		Project store.Project       `json:"project"`
		Plan    []store.PlanPoint   `json:"plan"`
		Actual  []store.ActualPoint `json:"actual"`
	}
	w = ts.do(t, http.MethodGet, fmt.Sprintf("/projects/%s/dashboard", project.ID), nil, &resp)
	if w.Code != http.StatusOK {
		t.Fatalf("dashboard: status %d: %s", w.Code, w.Body.String())
	}
	if resp.Project.ID != project.ID {
		t.Errorf("dashboard project = %s, want %s", resp.Project.ID, project.ID)
	}
	if len(resp.Plan) != 2 {
		t.Errorf("plan points = %d, want 2", len(resp.Plan))
	}
	if len(resp.Actual) != 1 || resp.Actual[0].Actual != 30 {
		t.Errorf("actual points = %+v, want one day at 30", resp.Actual)
	}
}

func TestActivityRecorded(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	project := ts.createProject(t, "audit")
	ts.createTask(t, project.ID, "a", 1)

	// The recorder writes asynchronously; Close drains the queue so
	// the entries are persisted before we read them back.
	ts.recorder.Close()

	var entries []store.ActivityEntry
	w := ts.do(t, http.MethodGet, fmt.Sprintf("/projects/%s/activity", project.ID), nil, &entries)
	if w.Code != http.StatusOK {
		t.Fatalf("list activity: status %d", w.Code)
	}
	for _, e := range entries {
		if e.ActorID == nil || *e.ActorID != ts.ownerID {
			t.Errorf("entry %s actor = %v, want %s", e.ID, e.ActorID, ts.ownerID)
		}
	}
}
