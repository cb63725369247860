package cmd

import (
	"fmt"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/Iron-Ham/cclens/internal/registry"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <name>...",
	Short: "Show what kind of item a name refers to",
	Long: `Look names up in the type registry built from MCP servers, plugins,
skills and agents configured for the current user and project.

When a name is known under several kinds, the resolved kind follows the
priority mcp > plugin > skill > agent and every match is listed.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runResolve,
}

var resolveJSON bool

func init() {
	rootCmd.AddCommand(resolveCmd)

	resolveCmd.Flags().BoolVar(&resolveJSON, "json", false, "Print results as JSON")
}

// resolution is the result for one queried name.
type resolution struct {
	Name    string           `json:"name"`
	Kind    registry.Kind    `json:"kind"`
	Matches []registry.Entry `json:"matches"`
}

func runResolve(cmd *cobra.Command, args []string) error {
	a, err := newApp(false)
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.pipeline.RefreshCache(cmd.Context()); err != nil {
		a.logger.Warn("registry refresh incomplete", "error", err.Error())
	}

	results := make([]resolution, 0, len(args))
	for _, name := range args {
		results = append(results, resolution{
			Name:    name,
			Kind:    a.pipeline.ResolveType(name),
			Matches: a.pipeline.Lookup(name),
		})
	}

	out := cmd.OutOrStdout()
	if resolveJSON {
		data, err := sonic.ConfigStd.MarshalIndent(results, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode results: %w", err)
		}
		_, err = fmt.Fprintln(out, string(data))
		return err
	}

	r := lipgloss.NewRenderer(out)
	header := r.NewStyle().Bold(true).Foreground(primaryColor).Padding(0, 1)
	cell := r.NewStyle().Padding(0, 1)
	unknown := cell.Foreground(mutedColor)

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(r.NewStyle().Foreground(mutedColor)).
		Headers("NAME", "KIND", "ID", "ORIGIN", "ALSO")

	for _, res := range results {
		if len(res.Matches) == 0 {
			t.Row(res.Name, string(res.Kind), "", "", "")
			continue
		}
		best := res.Matches[0]
		var also []string
		for _, m := range res.Matches[1:] {
			also = append(also, string(m.Kind))
		}
		t.Row(res.Name, string(res.Kind), best.ID, string(best.Origin), strings.Join(also, ","))
	}

	t.StyleFunc(func(row, col int) lipgloss.Style {
		if row == table.HeaderRow {
			return header
		}
		if col == 1 && results[row].Kind == registry.KindUnknown {
			return unknown
		}
		return cell
	})

	_, err = fmt.Fprintln(out, t.Render())
	return err
}
