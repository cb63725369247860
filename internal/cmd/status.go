package cmd

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/cclens/internal/registry"
	"github.com/Iron-Ham/cclens/internal/status"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Send and inspect out-of-band start/stop reports",
	Long: `Reports written to the status inbox start and stop items while
"cclens watch" or "cclens exec" is running. They are meant to be sent
from CLI hooks, which know exactly when an agent or skill begins and ends.`,
}

var statusSendCmd = &cobra.Command{
	Use:   "send [message|-]",
	Short: "Append a report to the status inbox",
	Long: `Append a start or stop report to the status inbox.

The report is built from flags, or parsed from a message given as the
argument or on standard input ("-"). Messages may be JSON objects or
free text such as "started agent reviewer".

Examples:
  cclens status send --event start --kind agent --id reviewer
  cclens status send "stopped skill commit"
  echo '{"event":"stop","id":"agent__reviewer"}' | cclens status send -`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStatusSend,
}

var statusTailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Print reports as they are appended to the inbox",
	Args:  cobra.NoArgs,
	RunE:  runStatusTail,
}

var statusListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print reports already in the inbox",
	Args:  cobra.NoArgs,
	RunE:  runStatusList,
}

var (
	statusEvent string
	statusKind  string
	statusID    string
	statusName  string
	statusInbox string
	statusJSON  bool
	statusLast  int
)

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.AddCommand(statusSendCmd, statusTailCmd, statusListCmd)

	statusCmd.PersistentFlags().StringVar(&statusInbox, "inbox", "", "Inbox file (default from status.inbox_path)")
	statusCmd.PersistentFlags().BoolVar(&statusJSON, "json", false, "Print reports as JSON lines")

	statusSendCmd.Flags().StringVar(&statusEvent, "event", "", "start or stop")
	statusSendCmd.Flags().StringVar(&statusKind, "kind", "", "Item kind: mcp, plugin, skill or agent")
	statusSendCmd.Flags().StringVar(&statusID, "id", "", "Item id, plain or namespaced (agent__reviewer)")
	statusSendCmd.Flags().StringVar(&statusName, "name", "", "Display name (default derived from id)")

	statusListCmd.Flags().IntVarP(&statusLast, "tail", "n", 20, "Number of reports to show (0 for all)")
}

// inboxPath returns --inbox or the configured inbox.
func inboxPath() (string, error) {
	if statusInbox != "" {
		return statusInbox, nil
	}
	cfg, err := loadConfig()
	if err != nil {
		return "", err
	}
	return cfg.Status.ResolveInboxPath(), nil
}

func runStatusSend(cmd *cobra.Command, args []string) error {
	var (
		r   status.Report
		err error
	)
	switch {
	case len(args) == 1 && args[0] == "-":
		data, readErr := io.ReadAll(cmd.InOrStdin())
		if readErr != nil {
			return fmt.Errorf("failed to read report: %w", readErr)
		}
		r, err = status.Parse(data)
	case len(args) == 1:
		r, err = status.Parse([]byte(args[0]))
	default:
		r = status.Report{
			Event:       status.EventType(statusEvent),
			ID:          statusID,
			DisplayName: statusName,
			Kind:        registry.Kind(statusKind),
		}
	}
	if err != nil {
		return err
	}

	path, err := inboxPath()
	if err != nil {
		return err
	}
	if err := status.NewStore(path).Append(r); err != nil {
		return fmt.Errorf("failed to send report: %w", err)
	}
	return nil
}

func runStatusTail(cmd *cobra.Command, _ []string) error {
	path, err := inboxPath()
	if err != nil {
		return err
	}

	p := newPrinter(cmd.OutOrStdout(), statusJSON)
	w, err := status.NewWatcher(path, p.report, nil)
	if err != nil {
		return err
	}
	if err := w.Start(); err != nil {
		return err
	}
	defer w.Stop()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if !statusJSON {
		_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Watching %s... (Ctrl+C to stop)\n\n", path)
	}

	select {
	case <-ctx.Done():
	case <-w.Done():
	}
	return nil
}

func runStatusList(cmd *cobra.Command, _ []string) error {
	path, err := inboxPath()
	if err != nil {
		return err
	}

	reports, err := status.NewStore(path).ReadAll()
	if err != nil {
		return err
	}
	if statusLast > 0 && len(reports) > statusLast {
		reports = reports[len(reports)-statusLast:]
	}

	if len(reports) == 0 && !statusJSON {
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No reports found.")
		return nil
	}

	p := newPrinter(cmd.OutOrStdout(), statusJSON)
	for _, r := range reports {
		p.report(r)
	}
	return nil
}
