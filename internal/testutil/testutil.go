// Package testutil provides fixtures shared by cclens tests.
package testutil

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"testing"

	"github.com/Iron-Ham/cclens/internal/registry"
)

// WriteFiles creates files under root. The files map contains relative
// paths to file contents.
func WriteFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()

	for path, content := range files {
		fullPath := filepath.Join(root, path)
		if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
			t.Fatalf("failed to create directory for %s: %v", path, err)
		}
		if err := os.WriteFile(fullPath, []byte(content), 0o644); err != nil {
			t.Fatalf("failed to write file %s: %v", path, err)
		}
	}
}

// ClaudeHome is a temporary home directory laid out like a Claude install.
type ClaudeHome struct {
	Home       string // Holds .claude.json
	ClaudeDir  string // Home/.claude
	ProjectDir string // A project root with its own .claude directory
}

// SetupClaudeHome creates an empty home and project directory. Use
// WriteHome and WriteProject to populate them.
func SetupClaudeHome(t *testing.T) *ClaudeHome {
	t.Helper()

	home := t.TempDir()
	project := t.TempDir()
	claudeDir := filepath.Join(home, ".claude")
	if err := os.MkdirAll(claudeDir, 0o755); err != nil {
		t.Fatalf("failed to create %s: %v", claudeDir, err)
	}
	return &ClaudeHome{Home: home, ClaudeDir: claudeDir, ProjectDir: project}
}

// WriteHome writes files relative to the home directory.
func (h *ClaudeHome) WriteHome(t *testing.T, files map[string]string) {
	t.Helper()
	WriteFiles(t, h.Home, files)
}

// WriteProject writes files relative to the project directory.
func (h *ClaudeHome) WriteProject(t *testing.T, files map[string]string) {
	t.Helper()
	WriteFiles(t, h.ProjectDir, files)
}

// SkillFile returns a SKILL.md body with the given frontmatter name.
func SkillFile(name, description string) string {
	return "---\nname: " + name + "\ndescription: " + description + "\n---\n\nInstructions.\n"
}

// StaticSource is a registry source with a mutable item list and a call
// counter.
type StaticSource struct {
	mu    sync.Mutex
	names []string
	err   error
	calls int
}

// NewStaticSource creates a source that reports names.
func NewStaticSource(names ...string) *StaticSource {
	return &StaticSource{names: names}
}

// List implements registry.Lister.
func (s *StaticSource) List(context.Context) ([]registry.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls++
	items := make([]registry.Item, len(s.names))
	for i, n := range s.names {
		items[i] = registry.Item{Name: n}
	}
	return items, s.err
}

// Set replaces the reported names.
func (s *StaticSource) Set(names ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.names = names
}

// Fail makes subsequent calls return err alongside the names.
func (s *StaticSource) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// Calls returns how many times List ran.
func (s *StaticSource) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// SkipIfNoGolangciLint skips the test if golangci-lint is not installed.
func SkipIfNoGolangciLint(t *testing.T) {
	t.Helper()

	if _, err := exec.LookPath("golangci-lint"); err != nil {
		t.Skip("golangci-lint not found in PATH, skipping test")
	}
}
