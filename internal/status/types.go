package status

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Iron-Ham/cclens/internal/registry"
)

// ErrUnparseable is returned when neither the JSON form nor the free-text
// fallback yields a usable report.
var ErrUnparseable = errors.New("status: unparseable report")

// EventType is the transition a report announces.
type EventType string

const (
	EventStart EventType = "start"
	EventStop  EventType = "stop"
)

// parseEventType accepts the bare verb and its common inflections.
func parseEventType(s string) (EventType, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "start", "started", "starting":
		return EventStart, true
	case "stop", "stopped", "stopping", "end", "ended", "done":
		return EventStop, true
	default:
		return "", false
	}
}

// Report is one out-of-band start or stop notification.
type Report struct {
	Event       EventType     `json:"event"`
	ID          string        `json:"id"`
	DisplayName string        `json:"displayName,omitempty"`
	Kind        registry.Kind `json:"kind"`
	Timestamp   time.Time     `json:"timestamp"`
}

// Normalize fills derived fields and checks the report is usable. IDs
// without a kind namespace are namespaced with Kind; a namespaced ID
// determines Kind.
func (r Report) Normalize() (Report, error) {
	ev, ok := parseEventType(string(r.Event))
	if !ok {
		return r, fmt.Errorf("status: unknown event %q", r.Event)
	}
	r.Event = ev

	if r.ID == "" {
		r.ID = r.DisplayName
	}
	if r.ID == "" {
		return r, errors.New("status: report id is required")
	}

	if kind, name, ok := registry.ParseItemID(r.ID); ok {
		r.Kind = kind
		if r.DisplayName == "" {
			r.DisplayName = name
		}
		return r, nil
	}

	if k, ok := registry.ParseKind(string(r.Kind)); ok {
		r.Kind = k
	}
	if !r.Kind.Valid() {
		return r, fmt.Errorf("status: report %q has no valid kind", r.ID)
	}
	if r.DisplayName == "" {
		r.DisplayName = r.ID
	}
	r.ID = registry.ItemID(r.Kind, r.ID)
	return r, nil
}
