package classify

import (
	"fmt"
	"strings"

	"github.com/gobwas/glob"

	"github.com/Iron-Ham/cclens/internal/activity"
	"github.com/Iron-Ham/cclens/internal/activity/normalize"
	"github.com/Iron-Ham/cclens/internal/clock"
	"github.com/Iron-Ham/cclens/internal/logging"
	"github.com/Iron-Ham/cclens/internal/registry"
)

// Resolver is the slice of the type registry the classifier needs.
type Resolver interface {
	Resolve(name string) registry.Kind
	MarkDynamic(names []string, kind registry.Kind)
}

type nopResolver struct{}

func (nopResolver) Resolve(string) registry.Kind        { return registry.KindUnknown }
func (nopResolver) MarkDynamic([]string, registry.Kind) {}

// Option configures a Classifier.
type Option func(*Classifier)

// WithClock sets the time source for event timestamps.
func WithClock(c clock.Clock) Option {
	return func(cl *Classifier) {
		cl.clock = c
	}
}

// WithIgnore skips lines matching any of the globs before classification.
func WithIgnore(globs []glob.Glob) Option {
	return func(cl *Classifier) {
		cl.ignore = globs
	}
}

// WithLogger sets the logger used for discovery diagnostics.
func WithLogger(l *logging.Logger) Option {
	return func(cl *Classifier) {
		cl.logger = l.WithComponent("classifier")
	}
}

// Classifier maps single lines of cleaned output to events.
//
// Classify is not safe for concurrent use; the discovered-name set may be
// read from any goroutine.
type Classifier struct {
	rules      []rule
	resolver   Resolver
	signals    *SignalMatcher
	discovered *discoverySet
	ignore     []glob.Glob
	clock      clock.Clock
	logger     *logging.Logger
}

// New creates a Classifier. A nil resolver treats every bare bulleted name
// as unknown.
func New(resolver Resolver, opts ...Option) *Classifier {
	if resolver == nil {
		resolver = nopResolver{}
	}
	c := &Classifier{
		rules:      defaultRules(),
		resolver:   resolver,
		signals:    NewSignalMatcher(),
		discovered: newDiscoverySet(),
		clock:      clock.Real(),
		logger:     logging.NopLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CompileIgnore compiles glob patterns for WithIgnore.
func CompileIgnore(patterns []string) ([]glob.Glob, error) {
	globs := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid ignore pattern %q: %w", p, err)
		}
		globs = append(globs, g)
	}
	return globs, nil
}

// Classify returns the event for line, if any rule matches. Every line is
// also scanned for passively discovered MCP names, whether or not it
// produced an event. Lines that match nothing are the common case and are
// not errors.
func (c *Classifier) Classify(line string) (activity.Event, bool) {
	line = strings.TrimSpace(line)
	if line == "" || normalize.IsUserInput(line) {
		return activity.Event{}, false
	}

	c.discovered.scan(line)

	for _, r := range c.rules {
		m := r.pattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		return r.build(c, m, line), true
	}
	return activity.Event{}, false
}

// Ignored reports whether line matches a configured ignore pattern.
func (c *Classifier) Ignored(line string) bool {
	for _, g := range c.ignore {
		if g.Match(line) {
			return true
		}
	}
	return false
}

// IsEndSignal reports whether line announces that execution finished.
func (c *Classifier) IsEndSignal(line string) bool {
	return c.signals.IsEndSignal(line)
}

// Discovered returns every MCP server name learned from output so far,
// sorted.
func (c *Classifier) Discovered() []string {
	return c.discovered.all()
}

// TakeNewDiscoveries returns names discovered since the previous call, in
// discovery order.
func (c *Classifier) TakeNewDiscoveries() []string {
	return c.discovered.take()
}

// itemEvent builds a start-type event. The description falls back to the
// item name when absent.
func (c *Classifier) itemEvent(kind activity.Kind, name, desc, line string, extra map[string]string) activity.Event {
	desc = strings.TrimSpace(desc)
	if desc == "" {
		desc = name
	}
	details := make(map[string]string, len(extra)+3)
	for k, v := range extra {
		details[k] = v
	}
	details[kind.NameKey()] = name
	details[activity.DetailRaw] = line
	details[activity.DetailItemID] = registry.ItemID(kind.ItemKind(), name)
	return activity.NewEvent(kind, c.clock.Now(), desc, details)
}

// observeMCP feeds an explicitly announced MCP server back into the
// registry and the discovered set.
func (c *Classifier) observeMCP(server string) {
	c.resolver.MarkDynamic([]string{server}, registry.KindMCP)
	c.discovered.record(server)
	c.logger.Debug("mcp server observed", "server", server)
}
