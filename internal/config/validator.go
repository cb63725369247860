package config

import (
	"fmt"
	"slices"
	"strings"

	"github.com/gobwas/glob"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "activity.item_timeout_ms")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// MinDedupKeyLength is the shortest content prefix that still separates
// distinct lines reliably.
const MinDedupKeyLength = 8

// maxPathLength is a reasonable limit; most filesystems cap paths near 4096
const maxPathLength = 4096

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	// Validate Activity config
	errors = append(errors, c.validateActivity()...)

	// Validate Registry config
	errors = append(errors, c.validateRegistry()...)

	// Validate Status config
	errors = append(errors, c.validateStatus()...)

	// Validate Logging config
	errors = append(errors, c.validateLogging()...)

	return errors
}

func (c *Config) validateActivity() []ValidationError {
	var errors []ValidationError
	a := c.Activity

	if a.DedupWindowMs <= 0 {
		errors = append(errors, ValidationError{
			Field:   "activity.dedup_window_ms",
			Value:   a.DedupWindowMs,
			Message: "must be positive",
		})
	}

	if a.DedupKeyLength < MinDedupKeyLength {
		errors = append(errors, ValidationError{
			Field:   "activity.dedup_key_length",
			Value:   a.DedupKeyLength,
			Message: fmt.Sprintf("must be at least %d", MinDedupKeyLength),
		})
	}

	if a.ItemTimeoutMs <= 0 {
		errors = append(errors, ValidationError{
			Field:   "activity.item_timeout_ms",
			Value:   a.ItemTimeoutMs,
			Message: "must be positive",
		})
	}

	if a.HistoryCapacity <= 0 {
		errors = append(errors, ValidationError{
			Field:   "activity.history_capacity",
			Value:   a.HistoryCapacity,
			Message: "must be positive",
		})
	}

	// Retain must leave room below capacity or every append would trim
	if a.HistoryRetain <= 0 {
		errors = append(errors, ValidationError{
			Field:   "activity.history_retain",
			Value:   a.HistoryRetain,
			Message: "must be positive",
		})
	} else if a.HistoryCapacity > 0 && a.HistoryRetain >= a.HistoryCapacity {
		errors = append(errors, ValidationError{
			Field:   "activity.history_retain",
			Value:   a.HistoryRetain,
			Message: fmt.Sprintf("must be less than history_capacity (%d)", a.HistoryCapacity),
		})
	}

	for i, pattern := range a.IgnoreLines {
		field := fmt.Sprintf("activity.ignore_lines[%d]", i)
		if strings.TrimSpace(pattern) == "" {
			errors = append(errors, ValidationError{
				Field:   field,
				Value:   pattern,
				Message: "pattern cannot be empty",
			})
			continue
		}
		if _, err := glob.Compile(pattern); err != nil {
			errors = append(errors, ValidationError{
				Field:   field,
				Value:   pattern,
				Message: fmt.Sprintf("invalid glob pattern: %v", err),
			})
		}
	}

	return errors
}

func (c *Config) validateRegistry() []ValidationError {
	var errors []ValidationError

	if c.Registry.TTLSeconds <= 0 {
		errors = append(errors, ValidationError{
			Field:   "registry.ttl_seconds",
			Value:   c.Registry.TTLSeconds,
			Message: "must be positive",
		})
	}

	errors = append(errors, validatePath("registry.claude_dir", c.Registry.ClaudeDir)...)
	errors = append(errors, validatePath("registry.project_dir", c.Registry.ProjectDir)...)

	for i, name := range c.Registry.BuiltinAgents {
		if strings.TrimSpace(name) == "" {
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("registry.builtin_agents[%d]", i),
				Value:   name,
				Message: "agent name cannot be empty",
			})
		}
	}

	return errors
}

func (c *Config) validateStatus() []ValidationError {
	return validatePath("status.inbox_path", c.Status.InboxPath)
}

func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	// Validate log level
	if c.Logging.Level != "" && !slices.Contains(ValidLogLevels(), strings.ToLower(c.Logging.Level)) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	// Max size must be positive
	if c.Logging.MaxSizeMB <= 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: "must be positive",
		})
	}

	// Reasonable upper bound for log file size
	const maxLogSizeMB = 1000 // 1GB
	if c.Logging.MaxSizeMB > maxLogSizeMB {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: fmt.Sprintf("exceeds maximum of %dMB", maxLogSizeMB),
		})
	}

	// Max backups must be non-negative
	if c.Logging.MaxBackups < 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_backups",
			Value:   c.Logging.MaxBackups,
			Message: "must be non-negative",
		})
	}

	errors = append(errors, validatePath("logging.file", c.Logging.File)...)

	return errors
}

// validatePath checks an optional filesystem path. Empty is always valid.
func validatePath(field, path string) []ValidationError {
	if path == "" {
		return nil
	}
	var errors []ValidationError

	// Check for null bytes which are invalid in paths
	if strings.ContainsRune(path, '\x00') {
		errors = append(errors, ValidationError{
			Field:   field,
			Value:   path,
			Message: "path contains invalid null character",
		})
	}

	if len(path) > maxPathLength {
		errors = append(errors, ValidationError{
			Field:   field,
			Value:   path,
			Message: fmt.Sprintf("path exceeds maximum length of %d characters", maxPathLength),
		})
	}

	return errors
}
