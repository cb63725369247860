//go:build !windows

package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/creack/pty"
	"golang.org/x/term"
)

// RunCommand runs cfg.Name under a pseudo-terminal so the CLI renders as
// it would interactively. Output is copied to both Stdout and Sink; input
// is forwarded from Stdin, in raw mode when Stdin is a terminal. Cancelling
// ctx kills the command.
//
// The returned code is the command's exit status. err reports failures to
// start or supervise the command, not a non-zero exit.
func RunCommand(ctx context.Context, cfg RunConfig) (int, error) {
	cfg.defaults()
	logger := cfg.Logger.WithComponent("ingest")

	cmd := cfg.command()
	ptmx, err := pty.Start(cmd)
	if err != nil {
		return -1, fmt.Errorf("failed to start %s: %w", cfg.Name, err)
	}
	defer func() { _ = ptmx.Close() }()

	if f, ok := cfg.Stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		restore, err := attachTerminal(f, ptmx)
		if err != nil {
			logger.Warn("terminal setup failed", "error", err.Error())
		} else {
			defer restore()
		}
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = cmd.Process.Kill()
		case <-done:
		}
	}()

	go func() {
		// Ends when Stdin closes or the pty is closed on return.
		_, _ = io.Copy(ptmx, cfg.Stdin)
	}()

	// Reading the pty fails with EIO once the child exits on Linux.
	if _, err := io.Copy(io.MultiWriter(cfg.Stdout, cfg.Sink), ptmx); err != nil && !errors.Is(err, syscall.EIO) {
		logger.Debug("output copy ended", "error", err.Error())
	}

	code, err := exitCode(cmd.Wait())
	logger.Debug("command exited", "name", cfg.Name, "code", code)
	return code, err
}

// attachTerminal puts the local terminal in raw mode and keeps the pty
// size in sync with it. The returned func undoes both.
func attachTerminal(tty *os.File, ptmx *os.File) (func(), error) {
	resize := make(chan os.Signal, 1)
	signal.Notify(resize, syscall.SIGWINCH)
	go func() {
		for range resize {
			_ = pty.InheritSize(tty, ptmx)
		}
	}()
	resize <- syscall.SIGWINCH

	state, err := term.MakeRaw(int(tty.Fd()))
	if err != nil {
		signal.Stop(resize)
		close(resize)
		return nil, err
	}
	return func() {
		signal.Stop(resize)
		close(resize)
		_ = term.Restore(int(tty.Fd()), state)
	}, nil
}
