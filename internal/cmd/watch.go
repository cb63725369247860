package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/cclens/internal/ingest"
)

var watchCmd = &cobra.Command{
	Use:   "watch [file|-]",
	Short: "Classify captured terminal output",
	Long: `Read captured assistant CLI output and print the activity it contains.

The input is a file, or standard input when the argument is "-" or
omitted. Tool calls, skills, agents, plugins, MCP servers and plan
progress are printed as they are recognized, together with items
starting and stopping.

Examples:
  # Classify a saved session transcript
  cclens watch session.log

  # Follow a file another process is still writing
  cclens watch -f session.log

  # Pipe output in and emit JSON lines
  script -q /dev/null claude | cclens watch --json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runWatch,
}

var (
	watchFollow bool
	watchJSON   bool
	watchStatus bool
)

// followPollInterval is how long a followed file is left alone after EOF.
const followPollInterval = 100 * time.Millisecond

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().BoolVarP(&watchFollow, "follow", "f", false, "Keep reading as the file grows (like tail -f)")
	watchCmd.Flags().BoolVar(&watchJSON, "json", false, "Print one JSON object per line")
	watchCmd.Flags().BoolVar(&watchStatus, "status", true, "Apply reports from the status inbox")
}

func runWatch(cmd *cobra.Command, args []string) error {
	src := "-"
	if len(args) == 1 {
		src = args[0]
	}

	in, closeIn, err := openInput(cmd, src)
	if err != nil {
		return err
	}
	defer closeIn()

	a, err := newApp(false)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p := newPrinter(cmd.OutOrStdout(), watchJSON)
	a.bus.SubscribeAll(p.handle)

	if err := a.start(ctx, watchStatus && a.cfg.Status.Watch); err != nil {
		return err
	}

	lw := ingest.NewLineWriter(func(chunk string) { a.pipeline.ProcessChunk(chunk) })
	defer func() { _ = lw.Close() }()

	var r io.Reader = in
	if watchFollow && src != "-" {
		r = &followReader{ctx: ctx, r: in}
	}

	if _, err := copyContext(ctx, lw, r); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("failed to read %s: %w", src, err)
	}
	return nil
}

// openInput opens src for reading. "-" is the command's stdin.
func openInput(cmd *cobra.Command, src string) (io.Reader, func(), error) {
	if src == "-" {
		return cmd.InOrStdin(), func() {}, nil
	}
	f, err := os.Open(src)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open input: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}

// copyContext is io.Copy that stops between reads once ctx is done.
func copyContext(ctx context.Context, dst io.Writer, src io.Reader) (int64, error) {
	buf := make([]byte, 32*1024)
	var written int64
	for {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		n, err := src.Read(buf)
		if n > 0 {
			w, werr := dst.Write(buf[:n])
			written += int64(w)
			if werr != nil {
				return written, werr
			}
		}
		if errors.Is(err, io.EOF) {
			return written, nil
		}
		if err != nil {
			return written, err
		}
	}
}

// followReader turns EOF into a wait for more data, so a file that is
// still being written can be read to the end of the session.
type followReader struct {
	ctx context.Context
	r   io.Reader
}

func (f *followReader) Read(p []byte) (int, error) {
	for {
		n, err := f.r.Read(p)
		if n > 0 || !errors.Is(err, io.EOF) {
			return n, err
		}
		select {
		case <-f.ctx.Done():
			return 0, f.ctx.Err()
		case <-time.After(followPollInterval):
		}
	}
}
