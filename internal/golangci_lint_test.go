package internal

import (
	"os"
	"os/exec"
	"testing"

	"github.com/Iron-Ham/cclens/internal/testutil"
)

// TestGolangciLintCompliance runs golangci-lint over the module. It is
// skipped in -short mode and when golangci-lint is not installed.
//
// If this test fails, run: golangci-lint run
func TestGolangciLintCompliance(t *testing.T) {
	if testing.Short() {
		t.Skip("lint is slow; skipped in -short mode")
	}
	testutil.SkipIfNoGolangciLint(t)

	cmd := exec.Command("golangci-lint", "run", "--allow-parallel-runners", "./...")
	cmd.Dir = projectRoot(t)
	// A per-test build cache keeps the run working in read-only sandboxes
	cmd.Env = append(os.Environ(), "GOCACHE="+t.TempDir())

	if output, err := cmd.CombinedOutput(); err != nil {
		t.Errorf("golangci-lint found issues:\n%s", output)
	}
}
