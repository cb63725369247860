package cmd

import (
	"context"
	"fmt"

	"github.com/Iron-Ham/cclens/internal/activity/pipeline"
	"github.com/Iron-Ham/cclens/internal/catalog"
	"github.com/Iron-Ham/cclens/internal/config"
	"github.com/Iron-Ham/cclens/internal/event"
	"github.com/Iron-Ham/cclens/internal/logging"
	"github.com/Iron-Ham/cclens/internal/status"
)

// app is the wiring shared by commands that run the pipeline.
type app struct {
	cfg      *config.Config
	logger   *logging.Logger
	bus      *event.Bus
	pipeline *pipeline.Pipeline
	watcher  *status.Watcher
}

// loadConfig loads and validates the configuration.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// newApp builds the logger, catalog, bus and pipeline from the loaded
// configuration. An interactive app shares the terminal with the wrapped
// CLI, so without a log file its logging is discarded instead of going to
// stderr.
func newApp(interactive bool) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	logger := logging.NopLogger()
	if !interactive || cfg.Logging.File != "" {
		if logger, err = cfg.Logging.NewLogger(); err != nil {
			return nil, err
		}
	}

	cat, err := catalog.New(cfg.Registry.ResolveClaudeDir(), cfg.Registry.ResolveProjectDir(), cfg.Registry.BuiltinAgents)
	if err != nil {
		_ = logger.Close()
		return nil, err
	}

	bus := event.NewBus(logger)
	p, err := pipeline.New(pipeline.Config{Bus: bus, Sources: cat.Sources()},
		pipeline.WithLogger(logger),
		pipeline.WithDedup(cfg.Activity.DedupWindow(), cfg.Activity.DedupKeyLength),
		pipeline.WithItemTimeout(cfg.Activity.ItemTimeout()),
		pipeline.WithHistory(cfg.Activity.HistoryCapacity, cfg.Activity.HistoryRetain),
		pipeline.WithRegistryTTL(cfg.Registry.TTL()),
		pipeline.WithIgnore(cfg.Activity.IgnoreLines...),
	)
	if err != nil {
		_ = logger.Close()
		return nil, err
	}

	return &app{cfg: cfg, logger: logger, bus: bus, pipeline: p}, nil
}

// start refreshes the registry and, when enabled, begins tailing the
// status inbox. Registry source failures are logged, not fatal.
func (a *app) start(ctx context.Context, watchStatus bool) error {
	if err := a.pipeline.Start(ctx); err != nil {
		a.logger.Warn("registry refresh incomplete", "error", err.Error())
	}
	if !watchStatus {
		return nil
	}

	w, err := status.NewWatcher(a.cfg.Status.ResolveInboxPath(), a.handleStatus, a.logger)
	if err != nil {
		return err
	}
	if err := w.Start(); err != nil {
		return fmt.Errorf("failed to watch status inbox: %w", err)
	}
	a.watcher = w
	return nil
}

func (a *app) handleStatus(r status.Report) {
	// Malformed reports are logged by the pipeline and dropped.
	_ = a.pipeline.HandleStatus(r)
}

// close releases everything in reverse order of creation.
func (a *app) close() {
	if a.watcher != nil {
		a.watcher.Stop()
	}
	a.pipeline.Close()
	a.bus.Clear()
	_ = a.logger.Close()
}
