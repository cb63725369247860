package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"
	"golang.org/x/sync/singleflight"

	"github.com/Iron-Ham/cclens/internal/clock"
	"github.com/Iron-Ham/cclens/internal/logging"
)

const (
	refreshKey = "refresh"

	// backgroundRefreshTimeout bounds refreshes started by stale lookups.
	backgroundRefreshTimeout = 10 * time.Second
)

// WithTTL sets how long a snapshot stays fresh. Non-positive values are
// ignored.
func WithTTL(ttl time.Duration) Option {
	return func(r *Registry) {
		if ttl > 0 {
			r.ttl = ttl
		}
	}
}

// WithClock sets the time source used for TTL bookkeeping.
func WithClock(c clock.Clock) Option {
	return func(r *Registry) {
		r.clock = c
	}
}

// WithLogger sets the logger for refresh diagnostics.
func WithLogger(l *logging.Logger) Option {
	return func(r *Registry) {
		r.logger = l.WithComponent("registry")
	}
}

// WithOnRefresh registers a callback invoked after every snapshot swap,
// outside the registry lock, with the new entry count and the joined
// per-source failures.
func WithOnRefresh(fn func(entries int, err error)) Option {
	return func(r *Registry) {
		r.onRefresh = fn
	}
}

// Registry is a TTL-bounded snapshot of known names. It is safe for
// concurrent use.
type Registry struct {
	mu          sync.RWMutex
	entries     map[string]Entry           // id -> entry
	names       map[string]map[Kind]string // display name -> kind -> id
	refreshedAt time.Time

	sources   Sources
	ttl       time.Duration
	clock     clock.Clock
	logger    *logging.Logger
	onRefresh func(entries int, err error)

	group  singleflight.Group
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates an empty Registry. The first lookup, or an explicit Refresh,
// populates it.
func New(sources Sources, opts ...Option) *Registry {
	r := &Registry{
		entries: make(map[string]Entry),
		names:   make(map[string]map[Kind]string),
		sources: sources,
		ttl:     DefaultTTL,
		clock:   clock.Real(),
		logger:  logging.NopLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.ctx, r.cancel = context.WithCancel(context.Background())
	return r
}

// Refresh rebuilds the snapshot from every source. Sources are fetched
// concurrently and a failing or panicking source leaves its kind empty
// without affecting the others. Concurrent callers share a single
// in-flight refresh.
//
// The returned error joins the per-source failures; the snapshot has been
// replaced regardless.
func (r *Registry) Refresh(ctx context.Context) error {
	ch := r.group.DoChan(refreshKey, func() (any, error) {
		return nil, r.refresh(ctx)
	})
	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// refreshInBackground starts a refresh unless one is already running.
func (r *Registry) refreshInBackground() {
	if r.ctx.Err() != nil {
		return
	}
	r.group.DoChan(refreshKey, func() (any, error) {
		ctx, cancel := context.WithTimeout(r.ctx, backgroundRefreshTimeout)
		defer cancel()
		err := r.refresh(ctx)
		if err != nil && !errors.Is(err, ErrNoSources) {
			r.logger.Warn("background refresh incomplete", "error", err.Error())
		}
		return nil, err
	})
}

type fetchResult struct {
	items []Item
	err   error
}

func (r *Registry) refresh(ctx context.Context) error {
	slots := r.sources.ordered()
	results := make([]fetchResult, len(slots))

	configured := 0
	var wg conc.WaitGroup
	for i, slot := range slots {
		if slot.lister == nil {
			continue
		}
		configured++
		wg.Go(func() {
			results[i] = fetch(ctx, slot.lister)
		})
	}
	wg.Wait()

	entries := make(map[string]Entry)
	names := make(map[string]map[Kind]string)
	var errs []error
	for i, slot := range slots {
		res := results[i]
		if res.err != nil {
			r.logger.Warn("source failed", "kind", string(slot.kind), "error", res.err.Error())
			errs = append(errs, fmt.Errorf("registry: %s source: %w", slot.kind, res.err))
		}
		for _, item := range res.items {
			insert(entries, names, slot.kind, item)
		}
	}

	r.mu.Lock()
	r.entries = entries
	r.names = names
	r.refreshedAt = r.clock.Now()
	r.mu.Unlock()

	r.logger.Debug("registry refreshed", "entries", len(entries), "failed_sources", len(errs))

	err := errors.Join(errs...)
	if r.onRefresh != nil {
		r.onRefresh(len(entries), err)
	}

	if configured == 0 {
		return ErrNoSources
	}
	return err
}

// fetch calls the lister, converting a panic into an error.
func fetch(ctx context.Context, l Lister) fetchResult {
	var res fetchResult
	var pc panics.Catcher
	pc.Try(func() {
		res.items, res.err = l.List(ctx)
	})
	if rec := pc.Recovered(); rec != nil {
		return fetchResult{err: rec.AsError()}
	}
	return res
}

func insert(entries map[string]Entry, names map[string]map[Kind]string, kind Kind, item Item) {
	if item.Name == "" {
		return
	}
	origin := item.Origin
	if origin == "" {
		origin = OriginFile
	}
	id := ItemID(kind, item.Name)
	entries[id] = Entry{
		ID:          id,
		DisplayName: item.Name,
		Kind:        kind,
		Origin:      origin,
		Metadata:    item.Metadata,
	}
	byKind, ok := names[item.Name]
	if !ok {
		byKind = make(map[Kind]string)
		names[item.Name] = byKind
	}
	byKind[kind] = id
}

// Resolve returns the kind registered for name. When several kinds share
// the name, the highest priority kind wins (MCP, Plugin, Skill, Agent).
// Unknown names resolve to KindUnknown.
//
// A lookup against an expired snapshot answers from that snapshot and
// starts a refresh in the background.
func (r *Registry) Resolve(name string) Kind {
	r.maybeRefresh()

	r.mu.RLock()
	defer r.mu.RUnlock()

	best := KindUnknown
	for kind := range r.names[name] {
		if kind.priority() < best.priority() {
			best = kind
		}
	}
	return best
}

// Lookup returns every entry whose display name is name, ordered by
// tie-break priority.
func (r *Registry) Lookup(name string) []Entry {
	r.maybeRefresh()

	r.mu.RLock()
	defer r.mu.RUnlock()

	byKind := r.names[name]
	out := make([]Entry, 0, len(byKind))
	for _, id := range byKind {
		out = append(out, r.entries[id])
	}
	sortEntries(out)
	return out
}

func (r *Registry) maybeRefresh() {
	if r.IsStale() {
		r.refreshInBackground()
	}
}

// MarkDynamic records names as observed entries of kind, overwriting any
// entry with the same id. It does not reset the TTL.
func (r *Registry) MarkDynamic(names []string, kind Kind) {
	if !kind.Valid() || len(names) == 0 {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, name := range names {
		insert(r.entries, r.names, kind, Item{Name: name, Origin: OriginDynamic})
	}
}

// Entries returns a copy of the snapshot ordered by kind priority, then
// display name.
func (r *Registry) Entries() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Entry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e)
	}
	sortEntries(out)
	return out
}

// Len returns the number of entries in the snapshot.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// IsStale reports whether the snapshot is older than the TTL or was never
// built.
func (r *Registry) IsStale() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.refreshedAt.IsZero() || r.clock.Now().Sub(r.refreshedAt) >= r.ttl
}

// RefreshedAt returns when the snapshot was last rebuilt.
func (r *Registry) RefreshedAt() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.refreshedAt
}

// Close stops background refreshes. In-flight refreshes are cancelled.
func (r *Registry) Close() {
	r.cancel()
}

func sortEntries(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Kind != entries[j].Kind {
			return entries[i].Kind.priority() < entries[j].Kind.priority()
		}
		return entries[i].DisplayName < entries[j].DisplayName
	})
}
