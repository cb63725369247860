package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/Iron-Ham/cclens/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or modify cclens configuration",
	Long: `View or modify cclens configuration.

Without arguments, displays the current configuration.
Use subcommands to modify settings or create a config file.`,
	RunE: runConfigShow,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE:  runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set a configuration value in the user's config file.

Keys use dot notation, e.g.:
  cclens config set activity.item_timeout_ms 20000
  cclens config set logging.file ~/.cache/cclens/cclens.log
  cclens config set status.watch false

Valid keys:
  activity.dedup_window_ms   - Window in which repeated lines are dropped
  activity.dedup_key_length  - Characters of a line compared for duplicates
  activity.item_timeout_ms   - How long an item stays active without a stop
  activity.history_capacity  - Events kept before the history is trimmed
  activity.history_retain    - Events left after a trim
  registry.ttl_seconds       - Age at which the type registry is refreshed
  registry.claude_dir        - Claude configuration directory
  registry.project_dir       - Project whose .claude directory is read
  status.inbox_path          - Status inbox file
  status.watch               - Apply status reports while watching (true/false)
  logging.enabled            - Enable logging (true/false)
  logging.level              - debug, info, warn or error
  logging.file               - Log file; empty logs to stderr
  logging.max_size_mb        - Size at which the log file rotates
  logging.max_backups        - Rotated files to keep
  logging.compress           - Gzip rotated files (true/false)`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a default config file",
	Long:  `Create a default config file at ~/.config/cclens/config.yaml with all available options.`,
	RunE:  runConfigInit,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show the config file path",
	RunE:  runConfigPath,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the configuration for errors",
	RunE:  runConfigValidate,
}

var configInitForce bool

// settableKeys maps each key accepted by "config set" to its value type.
var settableKeys = map[string]string{
	"activity.dedup_window_ms":  "int",
	"activity.dedup_key_length": "int",
	"activity.item_timeout_ms":  "int",
	"activity.history_capacity": "int",
	"activity.history_retain":   "int",
	"registry.ttl_seconds":      "int",
	"registry.claude_dir":       "string",
	"registry.project_dir":      "string",
	"status.inbox_path":         "string",
	"status.watch":              "bool",
	"logging.enabled":           "bool",
	"logging.level":             "string",
	"logging.file":              "string",
	"logging.max_size_mb":       "int",
	"logging.max_backups":       "int",
	"logging.compress":          "bool",
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configValidateCmd)

	configInitCmd.Flags().BoolVar(&configInitForce, "force", false, "Overwrite an existing config file")
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	cfg := config.Get()

	_, _ = fmt.Fprintln(out, "Current configuration:")
	_, _ = fmt.Fprintln(out)

	// Show where config is being read from
	if viper.ConfigFileUsed() != "" {
		_, _ = fmt.Fprintf(out, "Config file: %s\n", viper.ConfigFileUsed())
	} else {
		_, _ = fmt.Fprintf(out, "Config file: (none - using defaults)\n")
	}
	_, _ = fmt.Fprintln(out)

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode configuration: %w", err)
	}
	_, err = out.Write(data)
	return err
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key := args[0]
	value := args[1]

	keyType, ok := settableKeys[key]
	if !ok {
		return fmt.Errorf("unknown configuration key: %s\nRun 'cclens config set --help' to see valid keys", key)
	}

	// Validate the value based on type
	var typedValue any
	switch keyType {
	case "string":
		typedValue = value
	case "bool":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid value for %s: expected true or false", key)
		}
		typedValue = b
	case "int":
		intVal, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for %s: expected integer", key)
		}
		typedValue = intVal
	}

	viper.Set(key, typedValue)
	if _, err := config.Load(); err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}

	// Ensure config directory exists
	configDir := config.ConfigDir()
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	configFile := config.ConfigFile()
	if err := viper.WriteConfigAs(configFile); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Set %s = %v\n", key, typedValue)
	_, _ = fmt.Fprintf(out, "Config saved to %s\n", configFile)
	return nil
}

// configTemplate is written by "config init". Values match config.Default.
const configTemplate = `# cclens configuration

activity:
  # Repeated lines inside this window are reported once
  dedup_window_ms: 3000
  # Leading characters of a line compared when detecting repeats
  dedup_key_length: 50
  # How long an agent or skill stays active without a stop
  item_timeout_ms: 10000
  # Events kept in memory; the oldest are dropped down to history_retain
  history_capacity: 1000
  history_retain: 500
  # Glob patterns for lines that are never classified, e.g. "*Thinking*"
  ignore_lines: []

registry:
  # Age at which the type registry is rebuilt from disk
  ttl_seconds: 30
  # Claude configuration directory (empty means ~/.claude)
  claude_dir: ""
  # Project whose .claude directory is read (empty means the working directory)
  project_dir: ""

status:
  # Inbox that hooks append start/stop reports to
  # (empty means ~/.config/cclens/status.jsonl)
  inbox_path: ""
  # Apply reports while watching or running the CLI
  watch: true

logging:
  enabled: true
  # debug, info, warn or error
  level: info
  # Log file; empty logs to stderr
  file: ""
  max_size_mb: 10
  max_backups: 3
  compress: false
`

func runConfigInit(cmd *cobra.Command, args []string) error {
	configDir := config.ConfigDir()
	configFile := config.ConfigFile()

	// Check if config file already exists
	if _, err := os.Stat(configFile); err == nil && !configInitForce {
		return fmt.Errorf("config file already exists at %s\nUse 'cclens config set' to modify values or --force to overwrite", configFile)
	}

	// Create config directory
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(configFile, []byte(configTemplate), 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Created config file at %s\n", configFile)
	_, _ = fmt.Fprintln(out, "Edit this file to customize cclens.")
	return nil
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	configFile := config.ConfigFile()

	if viper.ConfigFileUsed() != "" {
		_, _ = fmt.Fprintf(out, "Active config: %s\n", viper.ConfigFileUsed())
	} else {
		_, _ = fmt.Fprintf(out, "Default path: %s (not created)\n", configFile)
	}

	// Also show config search paths
	_, _ = fmt.Fprintln(out, "\nSearch paths:")
	_, _ = fmt.Fprintf(out, "  1. %s\n", filepath.Join(config.ConfigDir(), "config.yaml"))
	_, _ = fmt.Fprintf(out, "  2. ./config.yaml (current directory)\n")
	_, _ = fmt.Fprintf(out, "\nEnvironment variables: %s_* (e.g., %s_ACTIVITY_ITEM_TIMEOUT_MS)\n", config.EnvPrefix, config.EnvPrefix)
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	_, err := config.Load()
	if err == nil {
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Configuration is valid.")
		return nil
	}

	var verrs config.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := cmd.ErrOrStderr()
	for _, e := range verrs {
		_, _ = fmt.Fprintln(out, errorLine(out, "  "+e.Error()))
	}
	return fmt.Errorf("configuration has %d error(s)", len(verrs))
}
