package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/Iron-Ham/cclens/internal/activity"
	"github.com/Iron-Ham/cclens/internal/activity/running"
	"github.com/Iron-Ham/cclens/internal/event"
	"github.com/Iron-Ham/cclens/internal/status"
	"github.com/Iron-Ham/cclens/internal/util"
)

// Colors meet WCAG AA contrast (4.5:1) on dark backgrounds
var (
	primaryColor   = lipgloss.Color("#A78BFA") // Purple
	secondaryColor = lipgloss.Color("#10B981") // Green
	warningColor   = lipgloss.Color("#F59E0B") // Amber
	errorColor     = lipgloss.Color("#F87171") // Red
	mutedColor     = lipgloss.Color("#9CA3AF") // Gray
	blueColor      = lipgloss.Color("#60A5FA") // Blue
	pinkColor      = lipgloss.Color("#F472B6") // Pink
	orangeColor    = lipgloss.Color("#FB923C") // Orange
)

const timeLayout = "15:04:05"

// record is the --json form of everything a printer shows.
type record struct {
	Type    string          `json:"type"`
	Time    time.Time       `json:"time"`
	Event   *activity.Event `json:"event,omitempty"`
	Change  *running.Change `json:"change,omitempty"`
	Report  *status.Report  `json:"report,omitempty"`
	Entries int             `json:"entries,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// printer renders bus events as styled lines or JSON lines. Color and
// truncation apply only when w is a terminal.
type printer struct {
	mu    sync.Mutex
	w     io.Writer
	json  bool
	width int

	muted   lipgloss.Style
	bold    lipgloss.Style
	kinds   map[activity.Kind]lipgloss.Style
	started lipgloss.Style
	stopped lipgloss.Style
	warning lipgloss.Style
}

func newPrinter(w io.Writer, asJSON bool) *printer {
	r := lipgloss.NewRenderer(w)
	p := &printer{
		w:       w,
		json:    asJSON,
		muted:   r.NewStyle().Foreground(mutedColor),
		bold:    r.NewStyle().Bold(true),
		started: r.NewStyle().Foreground(secondaryColor),
		stopped: r.NewStyle().Foreground(mutedColor),
		warning: r.NewStyle().Foreground(warningColor),
		kinds: map[activity.Kind]lipgloss.Style{
			activity.KindToolCall:     r.NewStyle().Foreground(blueColor),
			activity.KindSkillCall:    r.NewStyle().Foreground(primaryColor),
			activity.KindAgentCall:    r.NewStyle().Foreground(secondaryColor),
			activity.KindPluginCall:   r.NewStyle().Foreground(pinkColor),
			activity.KindMCPCall:      r.NewStyle().Foreground(orangeColor),
			activity.KindPlanProgress: r.NewStyle().Foreground(warningColor),
		},
	}
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		if width, _, err := term.GetSize(int(f.Fd())); err == nil {
			p.width = width
		}
	}
	return p
}

// handle is a bus subscriber.
func (p *printer) handle(e event.Event) {
	switch ev := e.(type) {
	case event.ActivityBatchEvent:
		for i := range ev.Events {
			p.activity(ev.Events[i])
		}
	case event.ItemStateEvent:
		p.state(ev)
	case event.RegistryRefreshedEvent:
		p.refreshed(ev)
	}
}

func (p *printer) activity(ev activity.Event) {
	if p.json {
		p.emitJSON(record{Type: event.TypeActivityBatch, Time: ev.Timestamp, Event: &ev})
		return
	}
	p.println(p.muted.Render(ev.Timestamp.Format(timeLayout)) + " " + p.describe(ev))
}

// describe formats an activity event without its timestamp.
func (p *printer) describe(ev activity.Event) string {
	style, ok := p.kinds[ev.Kind]
	if !ok {
		style = p.muted
	}
	label := style.Render(fmt.Sprintf("%-6s", kindLabel(ev.Kind)))

	switch {
	case ev.Kind.IsStart():
		name := ev.ItemName()
		if tool := ev.Detail(activity.DetailMCPTool); tool != "" {
			name += "/" + tool
		}
		text := label + " " + p.bold.Render(name)
		if ev.Content != name {
			text += " " + p.muted.Render("·") + " " + ev.Content
		}
		return text
	case ev.Kind == activity.KindToolCall:
		return label + " " + p.bold.Render(ev.Detail(activity.DetailTool)) + " " + ev.Content
	case ev.Kind == activity.KindPlanProgress:
		box := "☐"
		if ev.Detail(activity.DetailCompleted) == "true" {
			box = "☒"
		}
		if n := ev.Detail(activity.DetailNumber); n != "" {
			box += " " + n + "."
		}
		return label + " " + box + " " + ev.Content
	default:
		return label + " " + ev.Content
	}
}

func kindLabel(k activity.Kind) string {
	switch k {
	case activity.KindToolCall:
		return "tool"
	case activity.KindSkillCall:
		return "skill"
	case activity.KindAgentCall:
		return "agent"
	case activity.KindPluginCall:
		return "plugin"
	case activity.KindMCPCall:
		return "mcp"
	case activity.KindPlanProgress:
		return "plan"
	case activity.KindUserMessage:
		return "user"
	default:
		return "other"
	}
}

func (p *printer) state(ev event.ItemStateEvent) {
	c := ev.Change
	if p.json {
		p.emitJSON(record{Type: ev.EventType(), Time: c.At, Change: &c})
		return
	}

	var marker string
	if c.Transition == running.TransitionStart {
		marker = p.started.Render("▶ started")
	} else {
		marker = p.stopped.Render("■ stopped")
	}
	line := fmt.Sprintf("%s %s %s %s", p.muted.Render(c.At.Format(timeLayout)), marker, p.bold.Render(c.Item.DisplayName), p.muted.Render("("+string(c.Item.Kind)))
	if c.Transition == running.TransitionStop {
		line += p.muted.Render(", " + string(c.Reason))
	}
	line += p.muted.Render(", " + string(c.Source) + ")")
	p.println(line)
}

func (p *printer) refreshed(ev event.RegistryRefreshedEvent) {
	if p.json {
		rec := record{Type: ev.EventType(), Time: ev.Timestamp(), Entries: ev.Entries}
		if ev.Err != nil {
			rec.Error = ev.Err.Error()
		}
		p.emitJSON(rec)
		return
	}
	// Only failures are worth a line in the human-readable stream
	if ev.Err != nil {
		p.println(p.warning.Render("registry: " + strings.ReplaceAll(ev.Err.Error(), "\n", "; ")))
	}
}

// report prints a status report read from the inbox.
func (p *printer) report(r status.Report) {
	if p.json {
		p.emitJSON(record{Type: "status.report", Time: r.Timestamp, Report: &r})
		return
	}
	verb := p.started.Render(string(r.Event))
	if r.Event == status.EventStop {
		verb = p.stopped.Render(string(r.Event))
	}
	p.println(fmt.Sprintf("%s %-5s %s %s", p.muted.Render(r.Timestamp.Format(timeLayout)), verb, p.bold.Render(r.ID), p.muted.Render(r.DisplayName)))
}

func (p *printer) emitJSON(rec record) {
	data, err := sonic.Marshal(rec)
	if err != nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	_, _ = p.w.Write(append(data, '\n'))
}

func (p *printer) println(line string) {
	if p.width > 0 {
		line = util.TruncateANSI(line, p.width)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	_, _ = fmt.Fprintln(p.w, line)
}

// errorLine renders a one-line failure for stderr.
func errorLine(w io.Writer, msg string) string {
	return lipgloss.NewRenderer(w).NewStyle().Foreground(errorColor).Render(msg)
}
