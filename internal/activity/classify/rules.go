package classify

import (
	"regexp"
	"strings"

	"github.com/Iron-Ham/cclens/internal/activity"
	"github.com/Iron-Ham/cclens/internal/registry"
)

const (
	bulletPrefix = `^[●⏺•]\s*`
	// descSuffix is the optional "(description)" tail shared by bulleted forms.
	descSuffix = `(?:\s*\((.*)\))?\s*$`
)

// Ordered rule cascade. The first matching rule wins.
var (
	skillMarker   = regexp.MustCompile(bulletPrefix + `/(\w[\w:.-]*)` + descSuffix)
	mcpMarker     = regexp.MustCompile(bulletPrefix + `mcp(?:__|:|\s+)([\w-]+?)(?:__([\w-]+))?` + descSuffix)
	mcpToolMarker = regexp.MustCompile(bulletPrefix + `([\w-]+)\s+-\s+([\w-]+)\s*\(MCP\)` + descSuffix)
	genericMarker = regexp.MustCompile(bulletPrefix + `([A-Za-z][\w:.-]*)` + descSuffix)
	legacyMarker  = regexp.MustCompile(`^\[(?i:(skill|agent))\]\s+([\w:./-]+):\s*(.*)$`)
	toolMarker    = regexp.MustCompile(`^\[([A-Z]\w*)\]\s+(\S.*)$`)
	planMarker    = regexp.MustCompile(`^(?:[⎿*-]\s*)?(\[[ xX]\]|[☐☒☑✔□■◻◼])\s*(?:(\d+)[.)]\s*)?(\S.*)$`)
)

// checkedGlyphs are plan checkboxes that mark a step as done.
var checkedGlyphs = map[string]bool{
	"[x]": true, "[X]": true, "☒": true, "☑": true, "✔": true, "■": true, "◼": true,
}

// rule pairs a line shape with the event it produces.
type rule struct {
	name    string
	pattern *regexp.Regexp
	build   func(c *Classifier, m []string, line string) activity.Event
}

func defaultRules() []rule {
	return []rule{
		{name: "skill", pattern: skillMarker, build: buildSkill},
		{name: "mcp", pattern: mcpMarker, build: buildMCP},
		{name: "mcp-tool", pattern: mcpToolMarker, build: buildMCP},
		{name: "bulleted", pattern: genericMarker, build: buildGeneric},
		{name: "legacy", pattern: legacyMarker, build: buildLegacy},
		{name: "tool", pattern: toolMarker, build: buildTool},
		{name: "plan", pattern: planMarker, build: buildPlan},
	}
}

func buildSkill(c *Classifier, m []string, line string) activity.Event {
	return c.itemEvent(activity.KindSkillCall, m[1], m[2], line, nil)
}

func buildMCP(c *Classifier, m []string, line string) activity.Event {
	server, tool, desc := m[1], m[2], m[3]
	c.observeMCP(server)

	var extra map[string]string
	display := server
	if tool != "" {
		extra = map[string]string{activity.DetailMCPTool: tool}
		display = server + "/" + tool
	}
	if desc == "" {
		desc = display
	}
	return c.itemEvent(activity.KindMCPCall, server, desc, line, extra)
}

func buildGeneric(c *Classifier, m []string, line string) activity.Event {
	name := m[1]
	kind := activity.CallKind(c.resolver.Resolve(name))
	return c.itemEvent(kind, name, m[2], line, nil)
}

func buildLegacy(c *Classifier, m []string, line string) activity.Event {
	kind := activity.KindAgentCall
	if registry.Kind(strings.ToLower(m[1])) == registry.KindSkill {
		kind = activity.KindSkillCall
	}
	return c.itemEvent(kind, m[2], m[3], line, nil)
}

func buildTool(c *Classifier, m []string, line string) activity.Event {
	return activity.NewEvent(activity.KindToolCall, c.clock.Now(), m[2], map[string]string{
		activity.DetailTool: m[1],
		activity.DetailRaw:  line,
	})
}

func buildPlan(c *Classifier, m []string, line string) activity.Event {
	completed := "false"
	if checkedGlyphs[m[1]] {
		completed = "true"
	}
	details := map[string]string{
		activity.DetailStep:      m[3],
		activity.DetailCompleted: completed,
		activity.DetailRaw:       line,
	}
	if m[2] != "" {
		details[activity.DetailNumber] = m[2]
	}
	return activity.NewEvent(activity.KindPlanProgress, c.clock.Now(), m[3], details)
}
