// Package activity records who did what to which entity. Events are
// queued on a bounded channel and persisted by a background writer so a
// slow disk never stalls a request.
package activity

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/jfenske/planward/internal/store"
)

// DefaultBuffer is the event queue capacity used when none is configured.
const DefaultBuffer = 1024

// Event is one loggable action against an entity.
type Event struct {
	ProjectID  uuid.UUID
	Action     string // "created", "updated", "deleted"
	EntityType string // "project", "task", "dependency", "progress"
	SubjectID  uuid.UUID
	ActorID    *uuid.UUID
	New        any
	Old        any
	Context    RequestContext
	Severity   string
}

// RequestContext carries request metadata worth keeping with an event.
type RequestContext struct {
	IP        string `json:"ip,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
}

// payload is the persisted JSON shape of an event's detail.
type payload struct {
	New     any             `json:"new"`
	Old     any             `json:"old,omitempty"`
	Context *RequestContext `json:"context,omitempty"`
}

// Sink persists activity entries. *store.Store satisfies it.
type Sink interface {
	InsertActivity(ctx context.Context, e store.ActivityEntry) error
}

// Recorder queues events and writes them out on a background goroutine.
// Record never blocks: when the buffer is full the event is dropped and
// counted, which is preferable to slowing down the write path.
type Recorder struct {
	sink   Sink
	logger *slog.Logger
	events chan Event
	cancel context.CancelFunc
	done   chan struct{}
}

// NewRecorder creates and starts a recorder with the given buffer size
// (<= 0 uses DefaultBuffer). Call Close to drain and stop the writer.
func NewRecorder(sink Sink, logger *slog.Logger, buffer int) *Recorder {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &Recorder{
		sink:   sink,
		logger: logger,
		events: make(chan Event, buffer),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go r.run(ctx)
	return r
}

// Record queues an event for persistence. Full buffer drops the event.
func (r *Recorder) Record(ev Event) {
	select {
	case r.events <- ev:
	default:
		r.logger.Warn("activity buffer full, event dropped",
			"action", ev.Action, "entity_type", ev.EntityType,
			"subject_id", ev.SubjectID.String())
	}
}

// Close stops the writer after draining queued events.
func (r *Recorder) Close() {
	r.cancel()
	<-r.done
}

func (r *Recorder) run(ctx context.Context) {
	defer close(r.done)

	for {
		select {
		case ev := <-r.events:
			r.write(ev)
		case <-ctx.Done():
			// Drain whatever is queued before stopping.
			for {
				select {
				case ev := <-r.events:
					r.write(ev)
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) write(ev Event) {
	detail, err := json.Marshal(payload{
		New:     ev.New,
		Old:     ev.Old,
		Context: contextOrNil(ev.Context),
	})
	if err != nil {
		r.logger.Error("marshal activity payload", "error", err.Error())
		return
	}

	entry := store.ActivityEntry{
		ProjectID:  ev.ProjectID,
		Action:     ev.Action,
		EntityType: ev.EntityType,
		SubjectID:  ev.SubjectID,
		ActorID:    ev.ActorID,
		Payload:    string(detail),
		Severity:   ev.Severity,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.sink.InsertActivity(ctx, entry); err != nil {
		r.logger.Error("persist activity entry", "error", err.Error(),
			"action", ev.Action, "subject_id", ev.SubjectID.String())
	}
}

func contextOrNil(rc RequestContext) *RequestContext {
	if rc == (RequestContext{}) {
		return nil
	}
	return &rc
}
