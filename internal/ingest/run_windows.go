//go:build windows

package ingest

import (
	"context"
	"errors"
)

// RunCommand is not available on Windows, which has no pty support here.
func RunCommand(ctx context.Context, cfg RunConfig) (int, error) {
	return -1, errors.ErrUnsupported
}
