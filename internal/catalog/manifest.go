package catalog

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bytedance/sonic"

	"github.com/Iron-Ham/cclens/internal/registry"
)

// userConfig is the subset of ~/.claude.json that names MCP servers.
type userConfig struct {
	MCPServers map[string]any `json:"mcpServers"`
	Projects   map[string]struct {
		MCPServers map[string]any `json:"mcpServers"`
	} `json:"projects"`
}

// projectMCP is the .mcp.json layout.
type projectMCP struct {
	MCPServers map[string]any `json:"mcpServers"`
}

// installedPlugins is plugins/installed_plugins.json. Version 1 maps each
// plugin to one install record, version 2 to a list of them.
type installedPlugins struct {
	Version int            `json:"version"`
	Plugins map[string]any `json:"plugins"`
}

// pluginInstall is an installed plugin with the directory it lives in.
type pluginInstall struct {
	Name        string
	Marketplace string
	InstallPath string
}

// MCPServers lists user, per-project local, and project-file MCP servers.
func (c *Catalog) MCPServers(ctx context.Context) ([]registry.Item, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	var items []registry.Item
	var errs []error

	data, err := readOptional(c.UserConfig)
	if err != nil {
		errs = append(errs, err)
	} else if data != nil {
		var cfg userConfig
		if err := sonic.Unmarshal(data, &cfg); err != nil {
			errs = append(errs, fmt.Errorf("parse %s: %w", c.UserConfig, err))
		} else {
			items = append(items, serverItems(cfg.MCPServers, ScopeUser, c.UserConfig)...)
			if c.ProjectDir != "" {
				if p, ok := cfg.Projects[c.ProjectDir]; ok {
					items = append(items, serverItems(p.MCPServers, ScopeLocal, c.UserConfig)...)
				}
			}
		}
	}

	if c.ProjectDir != "" {
		path := filepath.Join(c.ProjectDir, projectMCPFile)
		data, err := readOptional(path)
		if err != nil {
			errs = append(errs, err)
		} else if data != nil {
			var cfg projectMCP
			if err := sonic.Unmarshal(data, &cfg); err != nil {
				errs = append(errs, fmt.Errorf("parse %s: %w", path, err))
			} else {
				items = append(items, serverItems(cfg.MCPServers, ScopeProject, path)...)
			}
		}
	}

	return dedupe(items), errors.Join(errs...)
}

func serverItems(servers map[string]any, scope, path string) []registry.Item {
	names := make([]string, 0, len(servers))
	for name := range servers {
		names = append(names, name)
	}
	sort.Strings(names)

	items := make([]registry.Item, len(names))
	for i, name := range names {
		items[i] = registry.Item{
			Name:     name,
			Origin:   registry.OriginFile,
			Metadata: map[string]string{MetaScope: scope, MetaPath: path},
		}
	}
	return items
}

// Plugins lists installed plugins by name, without the marketplace suffix.
func (c *Catalog) Plugins(ctx context.Context) ([]registry.Item, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	installs, err := c.pluginInstalls()
	items := make([]registry.Item, len(installs))
	for i, p := range installs {
		meta := map[string]string{MetaMarketplace: p.Marketplace}
		if p.InstallPath != "" {
			meta[MetaPath] = p.InstallPath
		}
		items[i] = registry.Item{Name: p.Name, Origin: registry.OriginFile, Metadata: meta}
	}
	return dedupe(items), err
}

func (c *Catalog) pluginInstalls() ([]pluginInstall, error) {
	path := filepath.Join(c.ClaudeDir, "plugins", "installed_plugins.json")
	data, err := readOptional(path)
	if err != nil || data == nil {
		return nil, err
	}

	var manifest installedPlugins
	if err := sonic.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	keys := make([]string, 0, len(manifest.Plugins))
	for key := range manifest.Plugins {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	installs := make([]pluginInstall, 0, len(keys))
	for _, key := range keys {
		name, marketplace, _ := strings.Cut(key, "@")
		installs = append(installs, pluginInstall{
			Name:        name,
			Marketplace: marketplace,
			InstallPath: installPath(manifest.Plugins[key]),
		})
	}
	return installs, nil
}

// installPath extracts installPath from a version 1 record or the first
// version 2 record.
func installPath(record any) string {
	switch r := record.(type) {
	case map[string]any:
		if p, ok := r["installPath"].(string); ok {
			return p
		}
	case []any:
		for _, entry := range r {
			if p := installPath(entry); p != "" {
				return p
			}
		}
	}
	return ""
}
