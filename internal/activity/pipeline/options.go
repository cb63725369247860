package pipeline

import (
	"time"

	"github.com/Iron-Ham/cclens/internal/clock"
	"github.com/Iron-Ham/cclens/internal/logging"
)

// Option configures a Pipeline. Zero or negative values keep the stage
// defaults.
type Option func(*options)

type options struct {
	clock           clock.Clock
	logger          *logging.Logger
	dedupWindow     time.Duration
	dedupKeyLength  int
	itemTimeout     time.Duration
	historyCapacity int
	historyRetain   int
	registryTTL     time.Duration
	ignore          []string
}

// WithClock sets the time source shared by every stage.
func WithClock(c clock.Clock) Option {
	return func(o *options) {
		o.clock = c
	}
}

// WithLogger sets the base logger. Each stage tags it with its component.
func WithLogger(l *logging.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithDedup sets the repeat-suppression window and key prefix length.
func WithDedup(window time.Duration, keyLength int) Option {
	return func(o *options) {
		o.dedupWindow = window
		o.dedupKeyLength = keyLength
	}
}

// WithItemTimeout sets how long an item stays active without a stop.
func WithItemTimeout(d time.Duration) Option {
	return func(o *options) {
		o.itemTimeout = d
	}
}

// WithHistory sets the history hard cap and the count kept after a trim.
func WithHistory(capacity, retain int) Option {
	return func(o *options) {
		o.historyCapacity = capacity
		o.historyRetain = retain
	}
}

// WithRegistryTTL sets how long a registry snapshot is served.
func WithRegistryTTL(ttl time.Duration) Option {
	return func(o *options) {
		o.registryTTL = ttl
	}
}

// WithIgnore sets glob patterns for lines that are never classified.
func WithIgnore(patterns ...string) Option {
	return func(o *options) {
		o.ignore = append(o.ignore, patterns...)
	}
}
