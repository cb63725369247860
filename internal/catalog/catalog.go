// Package catalog reads the agents, skills, plugins and MCP servers a Claude
// installation knows about. Each reader is a registry source: a missing
// file yields no items, a malformed file is an error for that source only.
package catalog

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Iron-Ham/cclens/internal/registry"
)

const (
	// claudeDirName is the per-user and per-project configuration directory.
	claudeDirName = ".claude"

	// userConfigFile holds user and per-project MCP servers, next to claudeDirName.
	userConfigFile = ".claude.json"

	// projectMCPFile holds MCP servers checked into a project.
	projectMCPFile = ".mcp.json"
)

// Metadata keys set on catalog items.
const (
	MetaPath        = "path"
	MetaScope       = "scope"
	MetaDescription = "description"
	MetaMarketplace = "marketplace"
	MetaPlugin      = "plugin"
)

// Scopes reported in MetaScope.
const (
	ScopeUser    = "user"
	ScopeProject = "project"
	ScopeLocal   = "local"
	ScopePlugin  = "plugin"
)

// DefaultBuiltinAgents are the agents the CLI ships with.
var DefaultBuiltinAgents = []string{
	"general-purpose",
	"Explore",
	"Plan",
	"statusline-setup",
	"output-style-setup",
}

// Catalog locates configuration for one user and, optionally, one project.
type Catalog struct {
	// ClaudeDir is the user configuration directory, usually ~/.claude.
	ClaudeDir string
	// UserConfig is the user settings file, usually ~/.claude.json.
	UserConfig string
	// ProjectDir is the project root; empty disables project sources.
	ProjectDir string
	// BuiltinAgents are reported by the agent source with origin builtin.
	BuiltinAgents []string
}

// New creates a Catalog. An empty claudeDir resolves to ~/.claude; the
// user config file is looked up beside it.
func New(claudeDir, projectDir string, builtinAgents []string) (*Catalog, error) {
	if claudeDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("catalog: resolve home directory: %w", err)
		}
		claudeDir = filepath.Join(home, claudeDirName)
	}
	if projectDir != "" {
		abs, err := filepath.Abs(projectDir)
		if err != nil {
			return nil, fmt.Errorf("catalog: resolve project directory: %w", err)
		}
		projectDir = abs
	}
	return &Catalog{
		ClaudeDir:     claudeDir,
		UserConfig:    filepath.Join(filepath.Dir(claudeDir), userConfigFile),
		ProjectDir:    projectDir,
		BuiltinAgents: builtinAgents,
	}, nil
}

// Sources wires the catalog readers into registry sources.
func (c *Catalog) Sources() registry.Sources {
	return registry.Sources{
		MCP:     registry.ListerFunc(c.MCPServers),
		Plugins: registry.ListerFunc(c.Plugins),
		Skills:  registry.ListerFunc(c.Skills),
		Agents:  registry.ListerFunc(c.Agents),
	}
}

// projectClaudeDir returns <project>/.claude, or "" without a project.
func (c *Catalog) projectClaudeDir() string {
	if c.ProjectDir == "" {
		return ""
	}
	return filepath.Join(c.ProjectDir, claudeDirName)
}

// readOptional returns the file contents, or nil when it does not exist.
func readOptional(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

// dedupe keeps the first item for each name.
func dedupe(items []registry.Item) []registry.Item {
	seen := make(map[string]bool, len(items))
	out := items[:0]
	for _, it := range items {
		if it.Name == "" || seen[it.Name] {
			continue
		}
		seen[it.Name] = true
		out = append(out, it)
	}
	return out
}

func checkContext(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("catalog: %w", err)
	}
	return nil
}
