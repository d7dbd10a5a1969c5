package activity

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/jfenske/planward/internal/store"
)

type captureSink struct {
	mu      sync.Mutex
	entries []store.ActivityEntry
	block   chan struct{}
}

func (c *captureSink) InsertActivity(ctx context.Context, e store.ActivityEntry) error {
	if c.block != nil {
		<-c.block
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = append(c.entries, e)
	return nil
}

func (c *captureSink) all() []store.ActivityEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]store.ActivityEntry(nil), c.entries...)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRecorderPersistsEvents(t *testing.T) {
	t.Parallel()

	sink := &captureSink{}
	rec := NewRecorder(sink, discardLogger(), 16)

	projectID := uuid.New()
	taskID := uuid.New()
	rec.Record(Event{
		ProjectID:  projectID,
		Action:     "created",
		EntityType: "task",
		SubjectID:  taskID,
		New:        map[string]string{"title": "write release notes"},
		Context:    RequestContext{IP: "10.0.0.7"},
	})
	rec.Close()

	entries := sink.all()
	if len(entries) != 1 {
		t.Fatalf("persisted %d entries, want 1", len(entries))
	}
	got := entries[0]
	if got.ProjectID != projectID || got.SubjectID != taskID {
		t.Errorf("entry ids = (%s, %s), want (%s, %s)",
			got.ProjectID, got.SubjectID, projectID, taskID)
	}
	if got.Action != "created" || got.EntityType != "task" {
		t.Errorf("entry = %s %s, want created task", got.Action, got.EntityType)
	}

	var detail struct {
		New     map[string]string `json:"new"`
		Context *RequestContext   `json:"context"`
	}
	if err := json.Unmarshal([]byte(got.Payload), &detail); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if detail.New["title"] != "write release notes" {
		t.Errorf("payload new.title = %q", detail.New["title"])
	}
	if detail.Context == nil || detail.Context.IP != "10.0.0.7" {
		t.Errorf("payload context = %+v, want IP 10.0.0.7", detail.Context)
	}
}

func TestRecorderCloseDrainsQueue(t *testing.T) {
	t.Parallel()

	sink := &captureSink{}
	rec := NewRecorder(sink, discardLogger(), 64)

	for i := 0; i < 20; i++ {
		rec.Record(Event{
			ProjectID:  uuid.New(),
			Action:     "updated",
			EntityType: "task",
			SubjectID:  uuid.New(),
		})
	}
	rec.Close()

	if got := len(sink.all()); got != 20 {
		t.Errorf("persisted %d entries after close, want 20", got)
	}
}

func TestRecorderFullBufferDropsWithoutBlocking(t *testing.T) {
	t.Parallel()

	sink := &captureSink{block: make(chan struct{})}
	rec := NewRecorder(sink, discardLogger(), 2)

	// Writer is stuck on the first event; two more fill the buffer,
	// anything past that must drop rather than block the caller.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			rec.Record(Event{
				ProjectID:  uuid.New(),
				Action:     "created",
				EntityType: "progress",
				SubjectID:  uuid.New(),
			})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Record blocked on a full buffer")
	}

	close(sink.block)
	rec.Close()

	if got := len(sink.all()); got > 3 {
		t.Errorf("persisted %d entries, want at most 3 (1 in flight + 2 buffered)", got)
	}
}
