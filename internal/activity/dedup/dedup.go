// Package dedup suppresses literal repeats of activity events inside a
// sliding time window.
package dedup

import (
	"sync"
	"time"

	"github.com/Iron-Ham/cclens/internal/activity"
	"github.com/Iron-Ham/cclens/internal/clock"
	"github.com/Iron-Ham/cclens/internal/util"
)

// Defaults applied when the caller passes non-positive values.
const (
	DefaultWindow    = 3 * time.Second
	DefaultKeyLength = 50
)

// Deduplicator drops an event when an event with the same kind and content
// prefix passed within the window. Only passing events refresh the key, so a
// line repeated continuously is emitted again once per window.
//
// Keys older than twice the window are collected after every batch.
// It is safe for concurrent use.
type Deduplicator struct {
	mu        sync.Mutex
	window    time.Duration
	keyLength int
	clock     clock.Clock
	lastSeen  map[string]time.Time
}

// New creates a Deduplicator. A nil clock uses wall time.
func New(window time.Duration, keyLength int, c clock.Clock) *Deduplicator {
	if window <= 0 {
		window = DefaultWindow
	}
	if keyLength <= 0 {
		keyLength = DefaultKeyLength
	}
	if c == nil {
		c = clock.Real()
	}
	return &Deduplicator{
		window:    window,
		keyLength: keyLength,
		clock:     c,
		lastSeen:  make(map[string]time.Time),
	}
}

// Key returns the dedup key for ev.
func (d *Deduplicator) Key(ev activity.Event) string {
	return string(ev.Kind) + "|" + util.Prefix(ev.Content, d.keyLength)
}

// Filter returns the events of batch that are not repeats, in order.
// Repeats within the batch itself are dropped too.
func (d *Deduplicator) Filter(batch []activity.Event) []activity.Event {
	keep := d.Mask(batch)
	out := make([]activity.Event, 0, len(batch))
	for i, ev := range batch {
		if keep[i] {
			out = append(out, ev)
		}
	}
	return out
}

// Mask reports, for each event of batch, whether it passes. It records the
// passing events exactly as Filter does.
func (d *Deduplicator) Mask(batch []activity.Event) []bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.clock.Now()
	keep := make([]bool, len(batch))
	for i, ev := range batch {
		key := d.Key(ev)
		if seen, ok := d.lastSeen[key]; ok && now.Sub(seen) < d.window {
			continue
		}
		d.lastSeen[key] = now
		keep[i] = true
	}

	d.collect(now)
	return keep
}

// collect removes keys older than twice the window. The caller must hold
// the lock.
func (d *Deduplicator) collect(now time.Time) {
	horizon := 2 * d.window
	for key, seen := range d.lastSeen {
		if now.Sub(seen) > horizon {
			delete(d.lastSeen, key)
		}
	}
}

// Len returns the number of tracked keys.
func (d *Deduplicator) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.lastSeen)
}

// Reset forgets every key.
func (d *Deduplicator) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	clear(d.lastSeen)
}
