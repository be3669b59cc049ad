package notification

import (
	"context"
	"time"
)

// EventType names a lifecycle transition of a notification.
type EventType string

const (
	EventSchedule  EventType = "schedule"
	EventUpdate    EventType = "update"
	EventTrigger   EventType = "trigger"
	EventClick     EventType = "click"
	EventClear     EventType = "clear"
	EventCancel    EventType = "cancel"
	EventClearAll  EventType = "clearall"
	EventCancelAll EventType = "cancelall"
)

// Event reports one transition. Notification is nil for the clearall and
// cancelall events.
type Event struct {
	Type         EventType   `json:"event"`
	ID           ID          `json:"id,omitempty"`
	Notification *Definition `json:"notification,omitempty"`
	Action       string      `json:"action,omitempty"`
	At           time.Time   `json:"at"`
}

// EventSink receives lifecycle events. Emit must not block for long: the
// engine calls it while holding its lock.
type EventSink interface {
	Emit(ctx context.Context, e Event)
}

// EventSinkFunc adapts a function to EventSink.
type EventSinkFunc func(ctx context.Context, e Event)

func (f EventSinkFunc) Emit(ctx context.Context, e Event) { f(ctx, e) }

func emit(ctx context.Context, sink EventSink, t EventType, def *Definition, at time.Time) {
	if sink == nil {
		return
	}
	e := Event{Type: t, Notification: def.Clone(), At: at}
	if def != nil {
		e.ID = def.ID
	}
	sink.Emit(ctx, e)
}
