// Package logging provides structured JSON logging for cclens.
//
// This package wraps Go's log/slog so every component of the activity
// pipeline (classifier, registry, tracker, status watcher) writes the same
// machine-readable format. Log output never goes to stdout, which is
// reserved for the event stream.
//
// # Features
//
//   - JSON-formatted structured logging via slog
//   - Configurable log levels (DEBUG, INFO, WARN, ERROR)
//   - Persistent attributes (component, source) on child loggers
//   - Size-based log rotation with optional gzip compression
//
// # Thread Safety
//
// All types in this package are safe for concurrent use. Child loggers
// created via With* methods share the parent's writer.
//
// # Basic Usage
//
//	logger, err := logging.NewLogger("/tmp/cclens.log", "INFO", logging.DefaultRotationConfig())
//	if err != nil {
//	    return err
//	}
//	defer logger.Close()
//
//	reg := logger.WithComponent("registry")
//	reg.Info("refreshed", "entries", 42, "duration_ms", 3)
//
// Output:
//
//	{"time":"...","level":"INFO","msg":"refreshed","component":"registry","entries":42,"duration_ms":3}
//
// An empty path logs to stderr. Rotated files are named cclens.log.1,
// cclens.log.2, and so on, where .1 is the most recent backup; with
// compression enabled they become cclens.log.1.gz, etc.
//
// # Testing
//
// Use [NopLogger] to discard output, or [NewWriterLogger] with a
// bytes.Buffer to assert on entries.
//
// # Configuration
//
//	logging:
//	  enabled: true
//	  level: info
//	  file: ~/.cache/cclens/cclens.log
//	  max_size_mb: 10
//	  max_backups: 3
package logging
