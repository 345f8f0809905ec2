package leave

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// =============================================================================
// NOTIFICATION EVENTS
// =============================================================================

// EventType identifies a lifecycle transition worth notifying about.
type EventType string

const (
	EventSubmitted EventType = "request.submitted"
	EventApproved  EventType = "request.approved"
	EventRejected  EventType = "request.rejected"
	EventCancelled EventType = "request.cancelled"
)

// Event is the logical notification payload. Delivery and formatting are
// the dispatcher's concern; the workflow only states what happened.
type Event struct {
	Type        EventType
	RequestID   RequestID
	EmployeeID  EmployeeID
	LeaveTypeID LeaveTypeID
	ActorID     string
	Timestamp   time.Time
}

// Dispatcher receives lifecycle events. Implementations must not block
// the workflow; slow delivery belongs behind a queue on the dispatcher's
// side.
type Dispatcher interface {
	Dispatch(ctx context.Context, e Event)
}

// NopDispatcher drops all events.
type NopDispatcher struct{}

func (NopDispatcher) Dispatch(context.Context, Event) {}

// LogDispatcher writes events to a structured logger. The server uses it
// as the default sink until a real notification channel is wired.
type LogDispatcher struct {
	Logger *slog.Logger
}

func (d *LogDispatcher) Dispatch(ctx context.Context, e Event) {
	d.Logger.InfoContext(ctx, "leave event",
		slog.String("type", string(e.Type)),
		slog.String("request_id", string(e.RequestID)),
		slog.String("employee_id", string(e.EmployeeID)),
		slog.String("leave_type_id", string(e.LeaveTypeID)),
		slog.String("actor_id", e.ActorID),
		slog.Time("timestamp", e.Timestamp),
	)
}

// CaptureDispatcher records events for test assertions.
type CaptureDispatcher struct {
	mu     sync.Mutex
	events []Event
}

func (d *CaptureDispatcher) Dispatch(_ context.Context, e Event) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, e)
}

// Events returns a copy of everything dispatched so far.
func (d *CaptureDispatcher) Events() []Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Event, len(d.events))
	copy(out, d.events)
	return out
}
