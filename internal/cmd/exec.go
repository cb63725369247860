package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/cclens/internal/ingest"
)

var execCmd = &cobra.Command{
	Use:   "exec -- command [args...]",
	Short: "Run the assistant CLI and track its activity",
	Long: `Run a command under a pseudo-terminal, passing its output through
unchanged while classifying it.

The command keeps full control of the terminal. Activity is written to
the file given by --events, or discarded when no file is given, so it
never interleaves with the command's own screen. The exit status of the
command becomes the exit status of cclens.

Examples:
  # Run the assistant and record activity as JSON lines
  cclens exec --events activity.jsonl -- claude

  # Human-readable activity in another terminal
  cclens exec --events /tmp/activity.log --json=false -- claude
  tail -f /tmp/activity.log`,
	Args: cobra.MinimumNArgs(1),
	RunE: runExec,
}

var (
	execEvents string
	execJSON   bool
	execStatus bool
)

func init() {
	rootCmd.AddCommand(execCmd)

	execCmd.Flags().StringVarP(&execEvents, "events", "e", "", "Append activity to this file")
	execCmd.Flags().BoolVar(&execJSON, "json", true, "Write activity as JSON lines")
	execCmd.Flags().BoolVar(&execStatus, "status", true, "Apply reports from the status inbox")
}

func runExec(cmd *cobra.Command, args []string) error {
	a, err := newApp(true)
	if err != nil {
		return err
	}
	defer a.close()

	var out io.Writer = io.Discard
	if execEvents != "" {
		f, err := os.OpenFile(execEvents, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open events file: %w", err)
		}
		defer func() { _ = f.Close() }()
		out = f
	}
	if out != io.Discard {
		a.bus.SubscribeAll(newPrinter(out, execJSON).handle)
	}

	ctx := cmd.Context()
	if err := a.start(ctx, execStatus && a.cfg.Status.Watch); err != nil {
		return err
	}

	lw := ingest.NewLineWriter(func(chunk string) { a.pipeline.ProcessChunk(chunk) })
	code, err := ingest.RunCommand(ctx, ingest.RunConfig{
		Name:   args[0],
		Args:   args[1:],
		Stdin:  cmd.InOrStdin(),
		Stdout: cmd.OutOrStdout(),
		Sink:   lw,
		Logger: a.logger,
	})
	_ = lw.Close()
	if err != nil {
		return fmt.Errorf("failed to run %s: %w", args[0], err)
	}

	a.logger.Info("command exited", "command", args[0], "exit_code", code)
	if code != 0 {
		return &ExitError{Code: code}
	}
	return nil
}
