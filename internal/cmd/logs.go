package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"regexp"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/bytedance/sonic"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/Iron-Ham/cclens/internal/config"
	"github.com/Iron-Ham/cclens/internal/logging"
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "View cclens logs",
	Long: `View and filter the cclens debug log.

Logs are only written to a file when logging.file is set; otherwise they
go to stderr and there is nothing to show here.

Examples:
  # Show the last 50 lines
  cclens logs

  # Follow logs in real-time
  cclens logs -f

  # Only the registry and status watcher
  cclens logs --component registry --component status

  # Show warnings from the last hour
  cclens logs --level warn --since 1h

  # Search for specific patterns
  cclens logs --grep "timeout|failed"`,
	RunE: runLogs,
}

var (
	logsFile       string
	logsTail       int
	logsFollow     bool
	logsLevel      string
	logsSince      string
	logsGrep       string
	logsComponents []string
)

func init() {
	rootCmd.AddCommand(logsCmd)

	logsCmd.Flags().StringVar(&logsFile, "file", "", "Log file (default from logging.file)")
	logsCmd.Flags().IntVarP(&logsTail, "tail", "n", 50, "Number of lines to show (0 for all)")
	logsCmd.Flags().BoolVarP(&logsFollow, "follow", "f", false, "Follow log output (like tail -f)")
	logsCmd.Flags().StringVar(&logsLevel, "level", "", "Filter by minimum level (debug/info/warn/error)")
	logsCmd.Flags().StringVar(&logsSince, "since", "", "Show logs since duration ago (e.g., 1h, 30m)")
	logsCmd.Flags().StringVar(&logsGrep, "grep", "", "Filter logs matching pattern (regex)")
	logsCmd.Flags().StringSliceVar(&logsComponents, "component", nil, "Only show these components (repeatable)")
}

// logEntry represents a parsed JSON log line
type logEntry struct {
	Time      time.Time      `json:"time"`
	Level     string         `json:"level"`
	Msg       string         `json:"msg"`
	Component string         `json:"component,omitempty"`
	Source    string         `json:"source,omitempty"`
	ItemID    string         `json:"item_id,omitempty"`
	Extra     map[string]any `json:"-"` // Captures additional fields
}

// parseLogEntry decodes a log line, keeping unknown fields in Extra.
func parseLogEntry(line []byte) (*logEntry, error) {
	var entry logEntry
	if err := sonic.Unmarshal(line, &entry); err != nil {
		return nil, err
	}

	var all map[string]any
	if err := sonic.Unmarshal(line, &all); err != nil {
		return nil, err
	}
	for _, known := range []string{"time", "level", "msg", "component", "source", "item_id"} {
		delete(all, known)
	}
	if len(all) > 0 {
		entry.Extra = all
	}
	return &entry, nil
}

// logFilter holds the parsed filter flags.
type logFilter struct {
	minLevel   int
	since      time.Time
	grep       *regexp.Regexp
	components map[string]bool
}

// levelPriority returns the priority of a log level for filtering
func levelPriority(level string) int {
	switch strings.ToUpper(level) {
	case logging.LevelDebug:
		return 0
	case logging.LevelInfo:
		return 1
	case logging.LevelWarn:
		return 2
	case logging.LevelError:
		return 3
	default:
		return -1
	}
}

// logFormatter renders entries with level colors when out is a terminal.
type logFormatter struct {
	muted  lipgloss.Style
	field  lipgloss.Style
	levels map[string]lipgloss.Style
}

func newLogFormatter(out io.Writer) *logFormatter {
	r := lipgloss.NewRenderer(out)
	return &logFormatter{
		muted: r.NewStyle().Foreground(mutedColor),
		field: r.NewStyle().Foreground(blueColor),
		levels: map[string]lipgloss.Style{
			logging.LevelDebug: r.NewStyle().Foreground(mutedColor),
			logging.LevelInfo:  r.NewStyle().Foreground(blueColor),
			logging.LevelWarn:  r.NewStyle().Foreground(warningColor),
			logging.LevelError: r.NewStyle().Foreground(errorColor).Bold(true),
		},
	}
}

// format formats a log entry for terminal output
func (f *logFormatter) format(entry *logEntry) string {
	var sb strings.Builder

	sb.WriteString(f.muted.Render("[" + entry.Time.Format("15:04:05.000") + "]"))

	level := strings.ToUpper(entry.Level)
	style, ok := f.levels[level]
	if !ok {
		style = f.muted
	}
	sb.WriteString(" ")
	sb.WriteString(style.Render("[" + level + "]"))

	if entry.Component != "" {
		sb.WriteString(" ")
		sb.WriteString(f.muted.Render(entry.Component + ":"))
	}

	sb.WriteString(" ")
	sb.WriteString(entry.Msg)

	if entry.ItemID != "" {
		sb.WriteString(" ")
		sb.WriteString(f.field.Render("item_id="))
		sb.WriteString(entry.ItemID)
	}
	if entry.Source != "" {
		sb.WriteString(" ")
		sb.WriteString(f.field.Render("source="))
		sb.WriteString(entry.Source)
	}

	// Extra fields in a stable order
	keys := make([]string, 0, len(entry.Extra))
	for key := range entry.Extra {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		sb.WriteString(" ")
		sb.WriteString(f.field.Render(key + "="))
		sb.WriteString(fmt.Sprintf("%v", entry.Extra[key]))
	}

	return sb.String()
}

func runLogs(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	logPath := logsFile
	if logPath == "" {
		logPath = config.Get().Logging.ResolveFile()
	}
	if logPath == "" {
		_, _ = fmt.Fprintln(out, "No log file configured; logs are written to stderr.")
		_, _ = fmt.Fprintln(out, "Set one with: cclens config set logging.file <path>")
		return nil
	}

	if _, err := os.Stat(logPath); os.IsNotExist(err) {
		_, _ = fmt.Fprintln(out, "No logs found at", logPath)
		return nil
	}

	filter := logFilter{minLevel: -1}
	if logsLevel != "" {
		filter.minLevel = levelPriority(logging.ParseLevel(logsLevel))
	}

	if logsSince != "" {
		duration, err := time.ParseDuration(logsSince)
		if err != nil {
			return fmt.Errorf("invalid duration format: %w", err)
		}
		filter.since = time.Now().Add(-duration)
	}

	if logsGrep != "" {
		re, err := regexp.Compile(logsGrep)
		if err != nil {
			return fmt.Errorf("invalid grep pattern: %w", err)
		}
		filter.grep = re
	}

	if len(logsComponents) > 0 {
		filter.components = make(map[string]bool, len(logsComponents))
		for _, c := range logsComponents {
			filter.components[c] = true
		}
	}

	f := newLogFormatter(out)

	// Follow mode
	if logsFollow {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return followLogs(ctx, out, f, logPath, filter)
	}

	// Non-follow mode: read and display logs
	return displayLogs(out, f, logPath, logsTail, filter)
}

// displayLogs reads the log file and displays filtered entries
func displayLogs(out io.Writer, f *logFormatter, logPath string, tail int, filter logFilter) error {
	file, err := os.Open(logPath)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var entries []string
	scanner := bufio.NewScanner(file)

	// Increase buffer size for potentially long log lines
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		entry, err := parseLogEntry(line)
		if err != nil {
			// If we can't parse as JSON, display raw line
			entries = append(entries, string(line))
			continue
		}

		if !filter.passes(entry) {
			continue
		}

		entries = append(entries, f.format(entry))
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading log file: %w", err)
	}

	// Apply tail limit
	if tail > 0 && len(entries) > tail {
		entries = entries[len(entries)-tail:]
	}

	for _, entry := range entries {
		_, _ = fmt.Fprintln(out, entry)
	}

	if len(entries) == 0 {
		_, _ = fmt.Fprintln(out, "No matching log entries found.")
	}

	return nil
}

// followLogs implements tail -f behavior for the log file
func followLogs(ctx context.Context, out io.Writer, f *logFormatter, logPath string, filter logFilter) error {
	file, err := os.Open(logPath)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer func() { _ = file.Close() }()

	// Seek to end of file
	if _, err := file.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("failed to seek to end: %w", err)
	}

	_, _ = fmt.Fprintf(out, "Following logs... (Ctrl+C to stop)\n\n")

	reader := bufio.NewReader(&followReader{ctx: ctx, r: file})
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return fmt.Errorf("error reading log file: %w", err)
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		entry, err := parseLogEntry([]byte(line))
		if err != nil {
			// If we can't parse as JSON, display raw line
			_, _ = fmt.Fprintln(out, line)
			continue
		}

		if !filter.passes(entry) {
			continue
		}

		_, _ = fmt.Fprintln(out, f.format(entry))
	}
}

// passes checks if a log entry passes all filter criteria
func (lf logFilter) passes(entry *logEntry) bool {
	// Level filter
	if lf.minLevel >= 0 && levelPriority(entry.Level) < lf.minLevel {
		return false
	}

	// Time filter
	if !lf.since.IsZero() && entry.Time.Before(lf.since) {
		return false
	}

	if lf.components != nil && !lf.components[entry.Component] {
		return false
	}

	// Grep filter - search in message and extra fields
	if lf.grep != nil {
		searchText := entry.Msg + " " + entry.ItemID
		for _, v := range entry.Extra {
			searchText += " " + fmt.Sprintf("%v", v)
		}
		if !lf.grep.MatchString(searchText) {
			return false
		}
	}

	return true
}
