package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/Iron-Ham/cclens/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		// The wrapped command already reported its own failure
		var exitErr *cmd.ExitError
		if !errors.As(err, &exitErr) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(cmd.ExitCode(err))
	}
}
