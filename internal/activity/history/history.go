// Package history keeps a bounded, append-only record of emitted activity
// events.
package history

import (
	"sync"

	"github.com/Iron-Ham/cclens/internal/activity"
)

// Defaults applied when the caller passes invalid bounds.
const (
	DefaultCapacity = 1000
	DefaultRetain   = 500
)

// History is an append-only event buffer with a hard capacity.
//
// # Trimming
//
// Unlike a ring buffer, History does not evict on every insert. When an
// append pushes the length past capacity, the oldest entries are dropped in
// one pass so that only the newest retain entries survive:
//
//	capacity=5, retain=2
//	Append a..e:  [a b c d e]        len=5
//	Append f:     [a b c d e f] -> [e f]
//
// The buffer can therefore momentarily hold capacity+len(batch) entries
// before the trim runs.
//
// # Thread Safety
//
// All methods are safe for concurrent use. Snapshots returned by All are
// copies and never alias the internal slice.
type History struct {
	mu       sync.RWMutex
	events   []activity.Event
	capacity int
	retain   int
}

// New creates a History. Non-positive capacity or a retain outside
// (0, capacity) fall back to the defaults scaled to the given capacity.
func New(capacity, retain int) *History {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if retain <= 0 || retain >= capacity {
		retain = capacity / 2
		if retain == 0 {
			retain = 1
		}
	}
	return &History{
		events:   make([]activity.Event, 0, capacity),
		capacity: capacity,
		retain:   retain,
	}
}

// Append adds events in order and trims when the capacity is exceeded.
// It returns how many old events were discarded.
func (h *History) Append(events ...activity.Event) int {
	if len(events) == 0 {
		return 0
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.events = append(h.events, events...)
	if len(h.events) <= h.capacity {
		return 0
	}

	dropped := len(h.events) - h.retain
	kept := make([]activity.Event, h.retain, h.capacity)
	copy(kept, h.events[dropped:])
	h.events = kept
	return dropped
}

// All returns a copy of the buffered events, oldest first.
func (h *History) All() []activity.Event {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]activity.Event, len(h.events))
	copy(out, h.events)
	return out
}

// Len returns the number of buffered events.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.events)
}

// Clear empties the buffer.
func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = make([]activity.Event, 0, h.capacity)
}

// Capacity returns the hard capacity.
func (h *History) Capacity() int {
	return h.capacity
}

// Retain returns how many events survive a trim.
func (h *History) Retain() int {
	return h.retain
}
