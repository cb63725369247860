package catalog

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Iron-Ham/cclens/internal/registry"
)

const (
	skillsDir = "skills"
	agentsDir = "agents"
	skillFile = "SKILL.md"
	fence     = "---"
)

// frontmatter is the YAML header of a skill or agent definition.
type frontmatter struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

// parseFrontmatter decodes the YAML block between leading "---" lines.
// Files without a header return the zero value and no error.
func parseFrontmatter(data []byte) (frontmatter, error) {
	var fm frontmatter

	text := strings.TrimPrefix(string(data), "\ufeff")
	text = strings.ReplaceAll(text, "\r\n", "\n")
	rest, ok := strings.CutPrefix(text, fence+"\n")
	if !ok {
		return fm, nil
	}

	var header string
	if !strings.HasPrefix(rest, fence) {
		end := strings.Index(rest, "\n"+fence)
		if end < 0 {
			return fm, errors.New("unterminated frontmatter")
		}
		header = rest[:end]
	}

	if err := yaml.Unmarshal([]byte(header), &fm); err != nil {
		return fm, fmt.Errorf("parse frontmatter: %w", err)
	}
	fm.Name = strings.TrimSpace(fm.Name)
	return fm, nil
}

// definitionRoot is a directory holding skills/ and agents/ definitions.
type definitionRoot struct {
	dir    string
	scope  string
	plugin string // Non-empty for plugin roots; prefixes names as "plugin:name"
}

func (c *Catalog) definitionRoots() ([]definitionRoot, error) {
	var roots []definitionRoot
	if dir := c.projectClaudeDir(); dir != "" {
		roots = append(roots, definitionRoot{dir: dir, scope: ScopeProject})
	}
	roots = append(roots, definitionRoot{dir: c.ClaudeDir, scope: ScopeUser})

	installs, err := c.pluginInstalls()
	for _, p := range installs {
		if p.InstallPath != "" {
			roots = append(roots, definitionRoot{dir: p.InstallPath, scope: ScopePlugin, plugin: p.Name})
		}
	}
	return roots, err
}

func (r definitionRoot) item(name, path, description string) registry.Item {
	meta := map[string]string{MetaPath: path, MetaScope: r.scope}
	if description != "" {
		meta[MetaDescription] = description
	}
	if r.plugin != "" {
		name = r.plugin + ":" + name
		meta[MetaPlugin] = r.plugin
	}
	return registry.Item{Name: name, Origin: registry.OriginFile, Metadata: meta}
}

// Skills lists skills/<name>/SKILL.md definitions from the project, the
// user directory, and installed plugins.
func (c *Catalog) Skills(ctx context.Context) ([]registry.Item, error) {
	roots, err := c.definitionRoots()
	errs := []error{err}

	var items []registry.Item
	for _, root := range roots {
		if err := checkContext(ctx); err != nil {
			return nil, err
		}
		dir := filepath.Join(root.dir, skillsDir)
		entries, err := readDirOptional(dir)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		for _, e := range entries {
			if !e.IsDir() {
				continue
			}
			path := filepath.Join(dir, e.Name(), skillFile)
			data, err := readOptional(path)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			if data == nil {
				continue
			}
			fm, err := parseFrontmatter(data)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", path, err))
				continue
			}
			items = append(items, root.item(nameOr(fm.Name, e.Name()), path, fm.Description))
		}
	}
	return dedupe(items), errors.Join(errs...)
}

// Agents lists agents/<name>.md definitions from the project, the user
// directory, and installed plugins, followed by the built-in agents.
func (c *Catalog) Agents(ctx context.Context) ([]registry.Item, error) {
	roots, err := c.definitionRoots()
	errs := []error{err}

	var items []registry.Item
	for _, root := range roots {
		if err := checkContext(ctx); err != nil {
			return nil, err
		}
		dir := filepath.Join(root.dir, agentsDir)
		entries, err := readDirOptional(dir)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		for _, e := range entries {
			if e.IsDir() || filepath.Ext(e.Name()) != ".md" {
				continue
			}
			path := filepath.Join(dir, e.Name())
			data, err := os.ReadFile(path)
			if err != nil {
				errs = append(errs, fmt.Errorf("read %s: %w", path, err))
				continue
			}
			fm, err := parseFrontmatter(data)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", path, err))
				continue
			}
			stem := strings.TrimSuffix(e.Name(), ".md")
			items = append(items, root.item(nameOr(fm.Name, stem), path, fm.Description))
		}
	}

	for _, name := range c.BuiltinAgents {
		items = append(items, registry.Item{Name: name, Origin: registry.OriginBuiltin})
	}
	return dedupe(items), errors.Join(errs...)
}

func readDirOptional(dir string) ([]os.DirEntry, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", dir, err)
	}
	return entries, nil
}

func nameOr(name, fallback string) string {
	if name != "" {
		return name
	}
	return fallback
}
