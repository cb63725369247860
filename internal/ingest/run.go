package ingest

import (
	"errors"
	"io"
	"os"
	"os/exec"

	"github.com/Iron-Ham/cclens/internal/logging"
)

// RunConfig describes how to run a command for RunCommand.
type RunConfig struct {
	Name string   // Executable to run
	Args []string // Arguments passed to the executable
	Dir  string   // Working directory; empty means the current one
	Env  []string // Extra KEY=VALUE pairs appended to the environment

	Stdin  io.Reader       // Forwarded to the command; nil means os.Stdin
	Stdout io.Writer       // Receives the raw output; nil means os.Stdout
	Sink   io.Writer       // Also receives the raw output, e.g. a LineWriter
	Logger *logging.Logger // Optional
}

func (c *RunConfig) command() *exec.Cmd {
	cmd := exec.Command(c.Name, c.Args...)
	cmd.Dir = c.Dir
	cmd.Env = append(os.Environ(), c.Env...)
	return cmd
}

func (c *RunConfig) defaults() {
	if c.Stdin == nil {
		c.Stdin = os.Stdin
	}
	if c.Stdout == nil {
		c.Stdout = os.Stdout
	}
	if c.Sink == nil {
		c.Sink = io.Discard
	}
	if c.Logger == nil {
		c.Logger = logging.NopLogger()
	}
}

// exitCode extracts the exit status from a Wait error. Errors other than a
// non-zero exit are returned as is.
func exitCode(err error) (int, error) {
	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	return -1, err
}
