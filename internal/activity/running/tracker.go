// Package running tracks which named items (agents, skills, plugins, MCP
// servers) are currently executing.
package running

import (
	"sort"
	"sync"
	"time"

	"github.com/Iron-Ham/cclens/internal/clock"
	"github.com/Iron-Ham/cclens/internal/logging"
	"github.com/Iron-Ham/cclens/internal/registry"
)

// DefaultTimeout is how long an item stays active without a stop.
const DefaultTimeout = 10 * time.Second

// Source identifies which channel reported a transition.
type Source string

const (
	SourceTerminal Source = "terminal" // Parsed from terminal output
	SourceStatus   Source = "status"   // Reported out of band
)

// Transition is the direction of a state change.
type Transition string

const (
	TransitionStart Transition = "start"
	TransitionStop  Transition = "stop"
)

// Reason explains why a transition happened.
type Reason string

const (
	ReasonStarted   Reason = "started"
	ReasonExplicit  Reason = "explicit"   // A stop naming the item
	ReasonEndSignal Reason = "end_signal" // An unattributed completion line
	ReasonTimeout   Reason = "timeout"    // No stop arrived in time
)

// Item is an active unit.
type Item struct {
	ID          string        `json:"id"`
	DisplayName string        `json:"display_name"`
	Kind        registry.Kind `json:"kind"`
	StartedAt   time.Time     `json:"started_at"`
	Source      Source        `json:"source"`
}

// Change describes one start or stop.
type Change struct {
	Item       Item       `json:"item"`
	Transition Transition `json:"transition"`
	Reason     Reason     `json:"reason"`
	Source     Source     `json:"source"`
	At         time.Time  `json:"at"`
}

// Notifier receives every state change. It is called without the tracker
// lock held, possibly from a timer goroutine.
type Notifier func(Change)

// Option configures a Tracker.
type Option func(*Tracker)

// WithTimeout sets the per-item timeout. Non-positive values are ignored.
func WithTimeout(d time.Duration) Option {
	return func(t *Tracker) {
		if d > 0 {
			t.timeout = d
		}
	}
}

// WithClock sets the time source and timer factory.
func WithClock(c clock.Clock) Option {
	return func(t *Tracker) {
		t.clock = c
	}
}

// WithNotifier sets the state change callback.
func WithNotifier(n Notifier) Option {
	return func(t *Tracker) {
		t.notify = n
	}
}

// WithLogger sets the logger for lifecycle diagnostics.
func WithLogger(l *logging.Logger) Option {
	return func(t *Tracker) {
		t.logger = l.WithComponent("tracker")
	}
}

// entry owns the timer armed for one active item. gen distinguishes the
// current arming from a timer that fired while a restart held the lock.
type entry struct {
	item  Item
	timer clock.Timer
	gen   uint64
}

// Tracker holds at most one active entry per id. Terminal parsing and
// out-of-band status reports feed the same map; the last report wins.
//
// It is safe for concurrent use.
type Tracker struct {
	mu      sync.Mutex
	active  map[string]*entry
	nextGen uint64
	closed  bool

	timeout time.Duration
	clock   clock.Clock
	notify  Notifier
	logger  *logging.Logger
}

// New creates an empty Tracker.
func New(opts ...Option) *Tracker {
	t := &Tracker{
		active:  make(map[string]*entry),
		timeout: DefaultTimeout,
		clock:   clock.Real(),
		logger:  logging.NopLogger(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Start marks item active and arms its timeout. Starting an id that is
// already active replaces the entry and re-arms the timeout. After Close,
// Start is a no-op.
func (t *Tracker) Start(item Item) {
	if item.ID == "" {
		return
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}

	now := t.clock.Now()
	if item.StartedAt.IsZero() {
		item.StartedAt = now
	}
	if prev, ok := t.active[item.ID]; ok {
		prev.timer.Stop()
	}

	t.nextGen++
	gen := t.nextGen
	id := item.ID
	t.active[id] = &entry{
		item:  item,
		gen:   gen,
		timer: t.clock.AfterFunc(t.timeout, func() { t.expire(id, gen) }),
	}
	t.mu.Unlock()

	t.logger.Debug("item started", "item_id", id, "source", string(item.Source))
	t.emit(Change{Item: item, Transition: TransitionStart, Reason: ReasonStarted, Source: item.Source, At: now})
}

// Stop ends the item with the given id. It reports false, and notifies
// nobody, when the id is not active.
func (t *Tracker) Stop(id string, reason Reason, source Source) bool {
	t.mu.Lock()
	e, ok := t.active[id]
	if !ok {
		t.mu.Unlock()
		return false
	}
	e.timer.Stop()
	delete(t.active, id)
	now := t.clock.Now()
	t.mu.Unlock()

	t.emit(Change{Item: e.item, Transition: TransitionStop, Reason: reason, Source: source, At: now})
	return true
}

// StopAll ends every active item, oldest first, and returns the changes.
func (t *Tracker) StopAll(reason Reason, source Source) []Change {
	t.mu.Lock()
	if len(t.active) == 0 {
		t.mu.Unlock()
		return nil
	}
	now := t.clock.Now()
	entries := t.drain()
	t.mu.Unlock()

	changes := make([]Change, len(entries))
	for i, e := range entries {
		changes[i] = Change{Item: e.item, Transition: TransitionStop, Reason: reason, Source: source, At: now}
	}
	for _, c := range changes {
		t.emit(c)
	}
	return changes
}

// expire is the timer callback. A stale generation means the item was
// restarted or stopped after this timer was armed.
func (t *Tracker) expire(id string, gen uint64) {
	t.mu.Lock()
	e, ok := t.active[id]
	if !ok || e.gen != gen {
		t.mu.Unlock()
		return
	}
	delete(t.active, id)
	now := t.clock.Now()
	t.mu.Unlock()

	t.logger.Debug("item timed out", "item_id", id, "after", t.timeout.String())
	t.emit(Change{Item: e.item, Transition: TransitionStop, Reason: ReasonTimeout, Source: e.item.Source, At: now})
}

// drain removes every entry, stopping timers, and returns them ordered by
// start time then id. The caller must hold the lock.
func (t *Tracker) drain() []*entry {
	entries := make([]*entry, 0, len(t.active))
	for _, e := range t.active {
		e.timer.Stop()
		entries = append(entries, e)
	}
	clear(t.active)
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i].item, entries[j].item
		if !a.StartedAt.Equal(b.StartedAt) {
			return a.StartedAt.Before(b.StartedAt)
		}
		return a.ID < b.ID
	})
	return entries
}

func (t *Tracker) emit(c Change) {
	if t.notify != nil {
		t.notify(c)
	}
}

// Active returns the active items ordered by start time then id.
func (t *Tracker) Active() []Item {
	t.mu.Lock()
	defer t.mu.Unlock()

	items := make([]Item, 0, len(t.active))
	for _, e := range t.active {
		items = append(items, e.item)
	}
	sort.Slice(items, func(i, j int) bool {
		if !items[i].StartedAt.Equal(items[j].StartedAt) {
			return items[i].StartedAt.Before(items[j].StartedAt)
		}
		return items[i].ID < items[j].ID
	})
	return items
}

// IsActive reports whether id is active.
func (t *Tracker) IsActive(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.active[id]
	return ok
}

// Len returns the number of active items.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.active)
}

// Close cancels every armed timer and forgets all items without notifying.
func (t *Tracker) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.drain()
	t.closed = true
}
