package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Iron-Ham/cclens/internal/activity"
	"github.com/Iron-Ham/cclens/internal/activity/running"
	"github.com/Iron-Ham/cclens/internal/clock"
	"github.com/Iron-Ham/cclens/internal/event"
	"github.com/Iron-Ham/cclens/internal/registry"
	"github.com/Iron-Ham/cclens/internal/status"
	"github.com/Iron-Ham/cclens/internal/testutil"
)

// busRecorder collects everything published on a bus.
type busRecorder struct {
	mu     sync.Mutex
	events []event.Event
}

func (r *busRecorder) handle(e event.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *busRecorder) ofType(eventType string) []event.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []event.Event
	for _, e := range r.events {
		if e.EventType() == eventType {
			out = append(out, e)
		}
	}
	return out
}

func (r *busRecorder) stops() []running.Change {
	var out []running.Change
	for _, e := range r.ofType(event.TypeItemStopped) {
		out = append(out, e.(event.ItemStateEvent).Change)
	}
	return out
}

type harness struct {
	p   *Pipeline
	fc  *clock.Fake
	rec *busRecorder
}

func newHarness(t *testing.T, sources registry.Sources, opts ...Option) *harness {
	t.Helper()
	fc := clock.NewFake(time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC))
	bus := event.NewBus(nil)
	rec := &busRecorder{}
	bus.SubscribeAll(rec.handle)

	p, err := New(Config{Bus: bus, Sources: sources}, append([]Option{WithClock(fc)}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(p.Close)
	require.NoError(t, p.Start(context.Background()))
	return &harness{p: p, fc: fc, rec: rec}
}

func activeIDs(p *Pipeline) []string {
	var ids []string
	for _, it := range p.Active() {
		ids = append(ids, it.ID)
	}
	return ids
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Bus is required")

	_, err = New(Config{Bus: event.NewBus(nil)}, WithIgnore("[broken"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid ignore pattern")
}

func TestProcessChunk_SkillMarkerStartsItem(t *testing.T) {
	h := newHarness(t, registry.Sources{})

	events := h.p.ProcessChunk("● /commit(Create a git commit)\n")

	require.Len(t, events, 1)
	ev := events[0]
	assert.Equal(t, activity.KindSkillCall, ev.Kind)
	assert.Equal(t, "Create a git commit", ev.Content)
	assert.Equal(t, "commit", ev.Detail(activity.DetailSkill))

	active := h.p.Active()
	require.Len(t, active, 1)
	assert.Equal(t, "skill__commit", active[0].ID)
	assert.Equal(t, "commit", active[0].DisplayName)
	assert.Equal(t, registry.KindSkill, active[0].Kind)
	assert.Equal(t, running.SourceTerminal, active[0].Source)

	started := h.rec.ofType(event.TypeItemStarted)
	require.Len(t, started, 1)
	assert.Equal(t, "skill__commit", started[0].(event.ItemStateEvent).ID())

	batches := h.rec.ofType(event.TypeActivityBatch)
	require.Len(t, batches, 1)
	assert.Equal(t, events, batches[0].(event.ActivityBatchEvent).Events)
	assert.Equal(t, events, h.p.Events())
}

func TestProcessChunk_EndSignalStopsEveryActiveItem(t *testing.T) {
	h := newHarness(t, registry.Sources{})

	h.p.ProcessChunk("● reviewer(Check the diff)\n")
	h.p.ProcessChunk("● /lint(Run the linter)\n")
	require.ElementsMatch(t, []string{"agent__reviewer", "skill__lint"}, activeIDs(h.p))

	events := h.p.ProcessChunk("  ⎿ Done (3 tool uses · 4.2k tokens · 12s)\n")
	assert.Empty(t, events, "an end signal alone is not an activity event")
	assert.Empty(t, h.p.Active())

	stops := h.rec.stops()
	require.Len(t, stops, 2)
	for _, c := range stops {
		assert.Equal(t, running.ReasonEndSignal, c.Reason)
	}

	h.fc.Advance(time.Minute)
	assert.Len(t, h.rec.stops(), 2, "no timeout stop after an end signal")
	assert.Len(t, h.rec.ofType(event.TypeActivityBatch), 2, "no batch for the end-signal chunk")
}

func TestProcessChunk_AppliesLinesInOrder(t *testing.T) {
	h := newHarness(t, registry.Sources{})

	events := h.p.ProcessChunk("● /first\n⎿ Done (1 tool use)\n● /second(Next)\n")

	require.Len(t, events, 2)
	assert.Equal(t, []string{"skill__second"}, activeIDs(h.p))
	stops := h.rec.stops()
	require.Len(t, stops, 1)
	assert.Equal(t, "skill__first", stops[0].Item.ID)
}

func TestProcessChunk_StartLineIsNotAnEndSignal(t *testing.T) {
	h := newHarness(t, registry.Sources{})

	h.p.ProcessChunk("● /build(Compile everything)\n")
	h.p.ProcessChunk("● /verify(Check the build is complete)\n")

	assert.ElementsMatch(t, []string{"skill__build", "skill__verify"}, activeIDs(h.p))
	assert.Empty(t, h.rec.stops())
}

func TestProcessChunk_NonStartEventCanEndExecution(t *testing.T) {
	h := newHarness(t, registry.Sources{})
	h.p.ProcessChunk("● /deploy(Ship it)\n")

	events := h.p.ProcessChunk("☒ 2. Rollout complete\n")

	require.Len(t, events, 1)
	assert.Equal(t, activity.KindPlanProgress, events[0].Kind)
	assert.Equal(t, "true", events[0].Detail(activity.DetailCompleted))
	assert.Empty(t, h.p.Active())
}

func TestProcessChunk_Dedup(t *testing.T) {
	h := newHarness(t, registry.Sources{})
	line := "[Bash] go test ./...\n"

	require.Len(t, h.p.ProcessChunk(line), 1)
	h.fc.Advance(2 * time.Second)
	assert.Nil(t, h.p.ProcessChunk(line), "repeat inside the window is suppressed")

	h.fc.Advance(time.Second)
	assert.Len(t, h.p.ProcessChunk(line), 1, "repeat after the window is emitted")
	assert.Len(t, h.p.Events(), 2)
}

func TestProcessChunk_SuppressedStartDoesNotRearmTimeout(t *testing.T) {
	h := newHarness(t, registry.Sources{})

	h.p.ProcessChunk("● /commit\n")
	h.fc.Advance(2 * time.Second)
	h.p.ProcessChunk("● /commit\n")

	h.fc.Advance(8 * time.Second)
	stops := h.rec.stops()
	require.Len(t, stops, 1)
	assert.Equal(t, running.ReasonTimeout, stops[0].Reason)
}

func TestProcessChunk_TimeoutStopsItem(t *testing.T) {
	h := newHarness(t, registry.Sources{}, WithItemTimeout(5*time.Second))

	h.p.ProcessChunk("● researcher(Dig through the logs)\n")
	h.fc.Advance(4999 * time.Millisecond)
	assert.Empty(t, h.rec.stops())

	h.fc.Advance(time.Millisecond)
	stops := h.rec.stops()
	require.Len(t, stops, 1)
	assert.Equal(t, "agent__researcher", stops[0].Item.ID)
	assert.Equal(t, running.ReasonTimeout, stops[0].Reason)
	assert.Empty(t, h.p.Active())
}

func TestProcessChunk_ResolvesGenericBulletThroughRegistry(t *testing.T) {
	h := newHarness(t, registry.Sources{
		MCP:     testutil.NewStaticSource("github"),
		Plugins: testutil.NewStaticSource("github", "formatter"),
		Skills:  testutil.NewStaticSource("formatter", "release"),
	})

	tests := []struct {
		line string
		want activity.Kind
	}{
		{"● github(List open issues)", activity.KindMCPCall},
		{"● formatter(Format files)", activity.KindPluginCall},
		{"● release(Cut a release)", activity.KindSkillCall},
		{"● stranger(Unknown name)", activity.KindAgentCall},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			events := h.p.ProcessChunk(tt.line + "\n")
			require.Len(t, events, 1)
			assert.Equal(t, tt.want, events[0].Kind)
		})
	}
}

func TestProcessChunk_DiscoveredNamesSurviveRefresh(t *testing.T) {
	mcp := testutil.NewStaticSource("github")
	h := newHarness(t, registry.Sources{MCP: mcp})

	assert.Nil(t, h.p.ProcessChunk(`{"type":"mcp__linear_result_ok"}`+"\n"))
	assert.Equal(t, registry.KindMCP, h.p.ResolveType("linear"))
	assert.Equal(t, []string{"linear"}, h.p.Discovered())

	h.p.ProcessChunk("● mcp__sentry__search(Find the crash)\n")
	assert.Equal(t, registry.KindMCP, h.p.ResolveType("sentry"))

	mcp.Set("slack")
	require.NoError(t, h.p.RefreshCache(context.Background()))

	assert.Equal(t, registry.KindUnknown, h.p.ResolveType("github"), "refresh drops vanished entries")
	assert.Equal(t, registry.KindMCP, h.p.ResolveType("slack"))
	assert.Equal(t, registry.KindMCP, h.p.ResolveType("linear"), "discoveries are re-marked after refresh")
	assert.Equal(t, registry.KindMCP, h.p.ResolveType("sentry"))

	refreshed := h.rec.ofType(event.TypeRegistryRefreshed)
	require.Len(t, refreshed, 2, "Start and RefreshCache")
	last := refreshed[1].(event.RegistryRefreshedEvent)
	assert.Equal(t, 1, last.Entries)
	assert.NoError(t, last.Err)
}

func TestStart_ReportsSourceFailures(t *testing.T) {
	boom := errors.New("manifest unreadable")
	skills := testutil.NewStaticSource("commit")
	skills.Fail(boom)

	fc := clock.NewFake(time.Unix(0, 0))
	bus := event.NewBus(nil)
	p, err := New(Config{Bus: bus, Sources: registry.Sources{Skills: skills}}, WithClock(fc))
	require.NoError(t, err)
	defer p.Close()

	assert.ErrorIs(t, p.Start(context.Background()), boom)
	assert.Equal(t, registry.KindSkill, p.ResolveType("commit"), "partial results are still served")
}

func TestProcessChunk_SkipsUserInputAndIgnoredLines(t *testing.T) {
	h := newHarness(t, registry.Sources{}, WithIgnore("*secret*"))

	assert.Nil(t, h.p.ProcessChunk("> /commit(typed by the user)\n"))
	assert.Nil(t, h.p.ProcessChunk("● /secret-skill\n"))
	assert.Nil(t, h.p.ProcessChunk("Just some prose the CLI printed.\n"))
	assert.Empty(t, h.p.Active())
	assert.Empty(t, h.rec.ofType(event.TypeActivityBatch))
}

func TestProcessChunk_StripsEscapeSequences(t *testing.T) {
	h := newHarness(t, registry.Sources{})

	events := h.p.ProcessChunk("\x1b[1m\x1b[38;5;208m●\x1b[0m /review(Review changes)\r\n")

	require.Len(t, events, 1)
	assert.Equal(t, "review", events[0].Detail(activity.DetailSkill))
	assert.Equal(t, "● /review(Review changes)", events[0].Detail(activity.DetailRaw))
}

func TestHandleStatus(t *testing.T) {
	h := newHarness(t, registry.Sources{})

	require.NoError(t, h.p.HandleStatus(status.Report{Event: status.EventStart, ID: "reviewer", Kind: registry.KindAgent}))
	active := h.p.Active()
	require.Len(t, active, 1)
	assert.Equal(t, "agent__reviewer", active[0].ID)
	assert.Equal(t, running.SourceStatus, active[0].Source)

	// Terminal output naming the same item restarts it
	h.p.ProcessChunk("[agent] reviewer: second pass\n")
	require.Len(t, h.p.Active(), 1)
	assert.Equal(t, running.SourceTerminal, h.p.Active()[0].Source)

	require.NoError(t, h.p.HandleStatus(status.Report{Event: status.EventStop, ID: "agent__reviewer"}))
	assert.Empty(t, h.p.Active())
	require.NoError(t, h.p.HandleStatus(status.Report{Event: status.EventStop, ID: "agent__reviewer"}), "stop on inactive id is a no-op")

	stops := h.rec.stops()
	require.Len(t, stops, 1)
	assert.Equal(t, running.ReasonExplicit, stops[0].Reason)
	assert.Equal(t, running.SourceStatus, stops[0].Source)

	assert.Error(t, h.p.HandleStatus(status.Report{Event: "bounce", ID: "x"}))
	assert.Error(t, h.p.HandleStatus(status.Report{Event: status.EventStart, ID: "x"}), "bare id needs a kind")
}

func TestHistory_TrimAndClear(t *testing.T) {
	h := newHarness(t, registry.Sources{}, WithHistory(4, 2))

	for _, tool := range []string{"Read", "Edit", "Grep", "Glob", "Bash"} {
		h.p.ProcessChunk("[" + tool + "] " + tool + " step\n")
	}
	events := h.p.Events()
	require.Len(t, events, 2)
	assert.Equal(t, "Glob", events[0].Detail(activity.DetailTool))
	assert.Equal(t, "Bash", events[1].Detail(activity.DetailTool))

	h.p.ClearEvents()
	assert.Empty(t, h.p.Events())
}

func TestClose_CancelsTimers(t *testing.T) {
	h := newHarness(t, registry.Sources{})
	h.p.ProcessChunk("● /a\n● /b\n")
	require.Len(t, h.p.Active(), 2)

	h.p.Close()
	h.p.Close()

	assert.Empty(t, h.p.Active())
	assert.Zero(t, h.fc.Pending())
	h.fc.Advance(time.Minute)
	assert.Empty(t, h.rec.stops(), "close forgets items without notifying")

	assert.Nil(t, h.p.ProcessChunk("● /c\n"))
	assert.Len(t, h.p.Events(), 2, "history stays readable after close")
}
