package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Iron-Ham/cclens/internal/activity"
	"github.com/Iron-Ham/cclens/internal/activity/classify"
	"github.com/Iron-Ham/cclens/internal/activity/dedup"
	"github.com/Iron-Ham/cclens/internal/activity/history"
	"github.com/Iron-Ham/cclens/internal/activity/normalize"
	"github.com/Iron-Ham/cclens/internal/activity/running"
	"github.com/Iron-Ham/cclens/internal/clock"
	"github.com/Iron-Ham/cclens/internal/event"
	"github.com/Iron-Ham/cclens/internal/logging"
	"github.com/Iron-Ham/cclens/internal/registry"
	"github.com/Iron-Ham/cclens/internal/status"
)

// Config holds the required dependencies of a Pipeline.
type Config struct {
	Bus     *event.Bus       // Receives batches, state changes and refresh notices
	Sources registry.Sources // Collaborators listing known names; may be empty
}

// Pipeline turns raw terminal output into de-duplicated activity events
// and tracks which items are active.
//
// Chunks and status reports are processed one at a time. Item timeouts
// fire from timer goroutines and publish their stop on the bus directly.
type Pipeline struct {
	mu     sync.Mutex // serializes chunk and status processing
	closed bool

	bus        *event.Bus
	registry   *registry.Registry
	classifier *classify.Classifier
	dedup      *dedup.Deduplicator
	tracker    *running.Tracker
	history    *history.History
	clock      clock.Clock
	logger     *logging.Logger
}

// New creates a Pipeline. The registry is empty until Start or
// RefreshCache runs, or until the first lookup finds it stale.
func New(cfg Config, opts ...Option) (*Pipeline, error) {
	if cfg.Bus == nil {
		return nil, errors.New("pipeline: Bus is required")
	}

	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.clock == nil {
		o.clock = clock.Real()
	}
	if o.logger == nil {
		o.logger = logging.NopLogger()
	}

	ignore, err := classify.CompileIgnore(o.ignore)
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}

	p := &Pipeline{
		bus:     cfg.Bus,
		dedup:   dedup.New(o.dedupWindow, o.dedupKeyLength, o.clock),
		history: history.New(o.historyCapacity, o.historyRetain),
		clock:   o.clock,
		logger:  o.logger.WithComponent("pipeline"),
	}
	p.registry = registry.New(cfg.Sources,
		registry.WithTTL(o.registryTTL),
		registry.WithClock(o.clock),
		registry.WithLogger(o.logger),
		registry.WithOnRefresh(p.registryRefreshed),
	)
	p.classifier = classify.New(p.registry,
		classify.WithClock(o.clock),
		classify.WithIgnore(ignore),
		classify.WithLogger(o.logger),
	)
	p.tracker = running.New(
		running.WithTimeout(o.itemTimeout),
		running.WithClock(o.clock),
		running.WithLogger(o.logger),
		running.WithNotifier(p.stateChanged),
	)
	return p, nil
}

// Start performs the initial registry refresh. The returned error joins
// per-source failures; the pipeline is usable either way.
func (p *Pipeline) Start(ctx context.Context) error {
	err := p.registry.Refresh(ctx)
	if errors.Is(err, registry.ErrNoSources) {
		p.logger.Debug("no registry sources configured")
		return nil
	}
	return err
}

// step is one line of a chunk that either produced a candidate event, is
// an end signal, or both.
type step struct {
	event int // index into the candidate batch, -1 when none
	end   bool
}

// ProcessChunk runs one chunk of raw output through every stage and
// returns the events that survived de-duplication, in line order. It never
// fails; a chunk without recognizable lines returns nil. A line split
// across two chunks is treated as two lines, so callers reading a byte
// stream should assemble lines first.
func (p *Pipeline) ProcessChunk(chunk string) []activity.Event {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}

	var (
		candidates []activity.Event
		steps      []step
	)
	for _, line := range normalize.Lines(normalize.Clean(chunk)) {
		if normalize.IsUserInput(line) || p.classifier.Ignored(line) {
			continue
		}
		st := step{event: -1}
		ev, ok := p.classifier.Classify(line)
		if ok {
			st.event = len(candidates)
			candidates = append(candidates, ev)
		}
		if !ok || !ev.Kind.IsStart() {
			st.end = p.classifier.IsEndSignal(line)
		}
		if st.event >= 0 || st.end {
			steps = append(steps, st)
		}
	}

	keep := p.dedup.Mask(candidates)
	emitted := make([]activity.Event, 0, len(candidates))
	for _, st := range steps {
		if st.event >= 0 && keep[st.event] {
			ev := candidates[st.event]
			emitted = append(emitted, ev)
			if ev.Kind.IsStart() {
				p.tracker.Start(itemFromEvent(ev))
			}
		}
		if st.end {
			if stopped := p.tracker.StopAll(running.ReasonEndSignal, running.SourceTerminal); len(stopped) > 0 {
				p.logger.Debug("end signal stopped items", "count", len(stopped))
			}
		}
	}

	if names := p.classifier.TakeNewDiscoveries(); len(names) > 0 {
		p.registry.MarkDynamic(names, registry.KindMCP)
		p.logger.Debug("mcp servers discovered", "names", names)
	}

	if len(emitted) == 0 {
		return nil
	}
	if dropped := p.history.Append(emitted...); dropped > 0 {
		p.logger.Debug("history trimmed", "dropped", dropped)
	}
	p.bus.Publish(event.NewActivityBatchEvent(p.clock.Now(), emitted))
	return emitted
}

// HandleStatus applies an out-of-band report to the tracker. A start
// restarts the item's timeout; a stop for an inactive id is a no-op. The
// error describes why a malformed report was dropped.
func (p *Pipeline) HandleStatus(r status.Report) error {
	r, err := r.Normalize()
	if err != nil {
		p.logger.Debug("status report dropped", "error", err.Error())
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}

	switch r.Event {
	case status.EventStart:
		p.tracker.Start(running.Item{
			ID:          r.ID,
			DisplayName: r.DisplayName,
			Kind:        r.Kind,
			StartedAt:   r.Timestamp,
			Source:      running.SourceStatus,
		})
	case status.EventStop:
		p.tracker.Stop(r.ID, running.ReasonExplicit, running.SourceStatus)
	}
	return nil
}

// Events returns a copy of the event history.
func (p *Pipeline) Events() []activity.Event {
	return p.history.All()
}

// ClearEvents empties the event history.
func (p *Pipeline) ClearEvents() {
	p.history.Clear()
}

// ResolveType returns the registry kind for name.
func (p *Pipeline) ResolveType(name string) registry.Kind {
	return p.registry.Resolve(name)
}

// Lookup returns every registry entry named name, in tie-break order.
func (p *Pipeline) Lookup(name string) []registry.Entry {
	return p.registry.Lookup(name)
}

// RefreshCache rebuilds the registry now. It does not block chunk
// processing.
func (p *Pipeline) RefreshCache(ctx context.Context) error {
	return p.registry.Refresh(ctx)
}

// Active returns the active items, oldest first.
func (p *Pipeline) Active() []running.Item {
	return p.tracker.Active()
}

// Discovered returns the MCP server names learned from output so far.
func (p *Pipeline) Discovered() []string {
	return p.classifier.Discovered()
}

// Close cancels every armed timeout, forgets active items and dedup keys,
// and stops background registry refreshes. The history stays readable.
// It is idempotent.
func (p *Pipeline) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}
	p.closed = true
	p.tracker.Close()
	p.registry.Close()
	p.dedup.Reset()
}

// stateChanged is the tracker notifier.
func (p *Pipeline) stateChanged(c running.Change) {
	p.bus.Publish(event.NewItemStateEvent(c))
}

// registryRefreshed re-marks discovered names, which a rebuild drops, and
// announces the new snapshot.
func (p *Pipeline) registryRefreshed(entries int, err error) {
	if names := p.classifier.Discovered(); len(names) > 0 {
		p.registry.MarkDynamic(names, registry.KindMCP)
	}
	p.bus.Publish(event.NewRegistryRefreshedEvent(p.clock.Now(), entries, err))
}

func itemFromEvent(ev activity.Event) running.Item {
	return running.Item{
		ID:          ev.ItemID(),
		DisplayName: ev.ItemName(),
		Kind:        ev.Kind.ItemKind(),
		StartedAt:   ev.Timestamp,
		Source:      running.SourceTerminal,
	}
}
