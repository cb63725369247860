package event

import (
	"time"

	"github.com/Iron-Ham/cclens/internal/activity"
	"github.com/Iron-Ham/cclens/internal/activity/running"
)

// Event types published by the pipeline.
const (
	TypeActivityBatch     = "activity.batch"
	TypeItemStarted       = "item.started"
	TypeItemStopped       = "item.stopped"
	TypeRegistryRefreshed = "registry.refreshed"
)

// Event is the interface that all events must implement.
type Event interface {
	// EventType returns a string identifier for this event type.
	// Convention: "category.action" (e.g., "item.started").
	EventType() string

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// baseEvent provides common fields for all events.
// Embed this in concrete event types to satisfy the Event interface.
type baseEvent struct {
	eventType string
	timestamp time.Time
}

func (e baseEvent) EventType() string    { return e.eventType }
func (e baseEvent) Timestamp() time.Time { return e.timestamp }

func newBaseEvent(eventType string, at time.Time) baseEvent {
	return baseEvent{eventType: eventType, timestamp: at}
}

// -----------------------------------------------------------------------------
// Activity
// -----------------------------------------------------------------------------

// ActivityBatchEvent carries the events that survived deduplication for one
// processed chunk. It is never published empty.
type ActivityBatchEvent struct {
	baseEvent
	Events []activity.Event
}

// NewActivityBatchEvent creates an ActivityBatchEvent.
func NewActivityBatchEvent(at time.Time, events []activity.Event) ActivityBatchEvent {
	return ActivityBatchEvent{
		baseEvent: newBaseEvent(TypeActivityBatch, at),
		Events:    events,
	}
}

// -----------------------------------------------------------------------------
// Item state
// -----------------------------------------------------------------------------

// ItemStateEvent reports an item starting or stopping, including stops
// triggered by end signals and timeouts.
type ItemStateEvent struct {
	baseEvent
	Change running.Change
}

// NewItemStateEvent creates an ItemStateEvent typed by the transition.
func NewItemStateEvent(c running.Change) ItemStateEvent {
	eventType := TypeItemStarted
	if c.Transition == running.TransitionStop {
		eventType = TypeItemStopped
	}
	return ItemStateEvent{
		baseEvent: newBaseEvent(eventType, c.At),
		Change:    c,
	}
}

// ID returns the id of the item that changed.
func (e ItemStateEvent) ID() string { return e.Change.Item.ID }

// -----------------------------------------------------------------------------
// Registry
// -----------------------------------------------------------------------------

// RegistryRefreshedEvent is published after the type registry rebuilt its
// snapshot.
type RegistryRefreshedEvent struct {
	baseEvent
	Entries int
	Err     error // Joined per-source failures, nil when every source succeeded
}

// NewRegistryRefreshedEvent creates a RegistryRefreshedEvent.
func NewRegistryRefreshedEvent(at time.Time, entries int, err error) RegistryRefreshedEvent {
	return RegistryRefreshedEvent{
		baseEvent: newBaseEvent(TypeRegistryRefreshed, at),
		Entries:   entries,
		Err:       err,
	}
}
