package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/Iron-Ham/cclens/internal/catalog"
	"github.com/Iron-Ham/cclens/internal/logging"
)

// EnvPrefix prefixes environment overrides, e.g. CCLENS_ACTIVITY_ITEM_TIMEOUT_MS.
const EnvPrefix = "CCLENS"

// Config represents the complete cclens configuration
type Config struct {
	Activity ActivityConfig `mapstructure:"activity" yaml:"activity"`
	Registry RegistryConfig `mapstructure:"registry" yaml:"registry"`
	Status   StatusConfig   `mapstructure:"status" yaml:"status"`
	Logging  LoggingConfig  `mapstructure:"logging" yaml:"logging"`
}

// ActivityConfig controls classification, de-duplication, item tracking
// and history.
type ActivityConfig struct {
	// DedupWindowMs suppresses identical events seen within this many milliseconds (default: 3000)
	DedupWindowMs int `mapstructure:"dedup_window_ms" yaml:"dedup_window_ms"`
	// DedupKeyLength is how many runes of content form the de-duplication key (default: 50)
	DedupKeyLength int `mapstructure:"dedup_key_length" yaml:"dedup_key_length"`
	// ItemTimeoutMs force-stops an active item after this many milliseconds without a stop (default: 10000)
	ItemTimeoutMs int `mapstructure:"item_timeout_ms" yaml:"item_timeout_ms"`
	// HistoryCapacity is the hard cap on retained events (default: 1000)
	HistoryCapacity int `mapstructure:"history_capacity" yaml:"history_capacity"`
	// HistoryRetain is how many events survive a trim (default: 500)
	HistoryRetain int `mapstructure:"history_retain" yaml:"history_retain"`
	// IgnoreLines are glob patterns; matching lines are never classified.
	// Examples: ["*Press Ctrl-C*", "Tip:*"]
	IgnoreLines []string `mapstructure:"ignore_lines" yaml:"ignore_lines"`
}

// DedupWindow returns the de-duplication window as a time.Duration
func (c *ActivityConfig) DedupWindow() time.Duration {
	return time.Duration(c.DedupWindowMs) * time.Millisecond
}

// ItemTimeout returns the active item timeout as a time.Duration
func (c *ActivityConfig) ItemTimeout() time.Duration {
	return time.Duration(c.ItemTimeoutMs) * time.Millisecond
}

// RegistryConfig controls where known names come from and how long they
// are cached.
type RegistryConfig struct {
	// TTLSeconds is how long a registry snapshot is served before refreshing (default: 30)
	TTLSeconds int `mapstructure:"ttl_seconds" yaml:"ttl_seconds"`
	// ClaudeDir is the user configuration directory. Empty means ~/.claude.
	// Supports ~ for home directory expansion.
	ClaudeDir string `mapstructure:"claude_dir" yaml:"claude_dir"`
	// ProjectDir is the project whose .claude and .mcp.json are read.
	// Empty means the working directory.
	ProjectDir string `mapstructure:"project_dir" yaml:"project_dir"`
	// BuiltinAgents are agent names the CLI ships with
	BuiltinAgents []string `mapstructure:"builtin_agents" yaml:"builtin_agents"`
}

// TTL returns the snapshot lifetime as a time.Duration
func (c *RegistryConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

// ResolveClaudeDir returns ClaudeDir with ~ expanded. Empty stays empty so
// the catalog applies its own default.
func (c *RegistryConfig) ResolveClaudeDir() string {
	return expandHome(c.ClaudeDir)
}

// ResolveProjectDir returns ProjectDir with ~ expanded, or the working
// directory when unset.
func (c *RegistryConfig) ResolveProjectDir() string {
	if c.ProjectDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return ""
		}
		return wd
	}
	return expandHome(c.ProjectDir)
}

// StatusConfig controls the out-of-band status inbox
type StatusConfig struct {
	// InboxPath is the JSONL file hooks append to. Empty means <config dir>/status.jsonl.
	InboxPath string `mapstructure:"inbox_path" yaml:"inbox_path"`
	// Watch enables tailing the inbox while watching output (default: true)
	Watch bool `mapstructure:"watch" yaml:"watch"`
}

// ResolveInboxPath returns the inbox path with defaults and ~ applied
func (c *StatusConfig) ResolveInboxPath() string {
	if c.InboxPath == "" {
		return filepath.Join(ConfigDir(), "status.jsonl")
	}
	return expandHome(c.InboxPath)
}

// LoggingConfig controls diagnostic logging behavior
type LoggingConfig struct {
	// Enabled controls whether logging is enabled (default: true)
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	// Level is the log level: "debug", "info", "warn", "error" (default: "info")
	Level string `mapstructure:"level" yaml:"level"`
	// File is the log file path. Empty means stderr.
	File string `mapstructure:"file" yaml:"file"`
	// MaxSizeMB is the maximum log file size in megabytes before rotation (default: 10)
	MaxSizeMB int `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	// MaxBackups is the number of backup log files to keep (default: 3)
	MaxBackups int `mapstructure:"max_backups" yaml:"max_backups"`
	// Compress gzips rotated backups (default: false)
	Compress bool `mapstructure:"compress" yaml:"compress"`
}

// Rotation returns the rotation settings for the log file
func (c *LoggingConfig) Rotation() logging.RotationConfig {
	return logging.RotationConfig{
		MaxSizeMB:  c.MaxSizeMB,
		MaxBackups: c.MaxBackups,
		Compress:   c.Compress,
	}
}

// ResolveFile returns the log file path with ~ expanded. Empty means stderr.
func (c *LoggingConfig) ResolveFile() string {
	return expandHome(c.File)
}

// NewLogger builds the configured logger. Disabled logging yields a logger
// that discards everything.
func (c *LoggingConfig) NewLogger() (*logging.Logger, error) {
	if !c.Enabled {
		return logging.NopLogger(), nil
	}
	return logging.NewLogger(c.ResolveFile(), c.Level, c.Rotation())
}

// expandHome expands a leading ~ to the user's home directory
func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[1:])
	}
	return path
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Activity: ActivityConfig{
			DedupWindowMs:   3000,
			DedupKeyLength:  50,
			ItemTimeoutMs:   10000,
			HistoryCapacity: 1000,
			HistoryRetain:   500,
			IgnoreLines:     []string{},
		},
		Registry: RegistryConfig{
			TTLSeconds:    30,
			ClaudeDir:     "", // Empty means ~/.claude
			ProjectDir:    "", // Empty means the working directory
			BuiltinAgents: append([]string(nil), catalog.DefaultBuiltinAgents...),
		},
		Status: StatusConfig{
			InboxPath: "",
			Watch:     true,
		},
		Logging: LoggingConfig{
			Enabled:    true,
			Level:      "info",
			File:       "",
			MaxSizeMB:  10,
			MaxBackups: 3,
			Compress:   false,
		},
	}
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	// Activity defaults
	viper.SetDefault("activity.dedup_window_ms", defaults.Activity.DedupWindowMs)
	viper.SetDefault("activity.dedup_key_length", defaults.Activity.DedupKeyLength)
	viper.SetDefault("activity.item_timeout_ms", defaults.Activity.ItemTimeoutMs)
	viper.SetDefault("activity.history_capacity", defaults.Activity.HistoryCapacity)
	viper.SetDefault("activity.history_retain", defaults.Activity.HistoryRetain)
	viper.SetDefault("activity.ignore_lines", defaults.Activity.IgnoreLines)

	// Registry defaults
	viper.SetDefault("registry.ttl_seconds", defaults.Registry.TTLSeconds)
	viper.SetDefault("registry.claude_dir", defaults.Registry.ClaudeDir)
	viper.SetDefault("registry.project_dir", defaults.Registry.ProjectDir)
	viper.SetDefault("registry.builtin_agents", defaults.Registry.BuiltinAgents)

	// Status defaults
	viper.SetDefault("status.inbox_path", defaults.Status.InboxPath)
	viper.SetDefault("status.watch", defaults.Status.Watch)

	// Logging defaults
	viper.SetDefault("logging.enabled", defaults.Logging.Enabled)
	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.file", defaults.Logging.File)
	viper.SetDefault("logging.max_size_mb", defaults.Logging.MaxSizeMB)
	viper.SetDefault("logging.max_backups", defaults.Logging.MaxBackups)
	viper.SetDefault("logging.compress", defaults.Logging.Compress)
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// Validate the configuration
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// Get returns the current configuration, falling back to defaults when the
// loaded values are invalid.
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		// Fall back to defaults if unmarshaling fails
		return Default()
	}
	return cfg
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	// Check XDG_CONFIG_HOME first
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "cclens")
	}
	// Fall back to ~/.config/cclens
	home, err := os.UserHomeDir()
	if err != nil {
		return ".cclens"
	}
	return filepath.Join(home, ".config", "cclens")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}
