package registry

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Iron-Ham/cclens/internal/clock"
)

func static(names ...string) Lister {
	return ListerFunc(func(context.Context) ([]Item, error) {
		items := make([]Item, len(names))
		for i, n := range names {
			items[i] = Item{Name: n}
		}
		return items, nil
	})
}

func failing(err error) Lister {
	return ListerFunc(func(context.Context) ([]Item, error) {
		return nil, err
	})
}

func newTestRegistry(t *testing.T, sources Sources, opts ...Option) (*Registry, *clock.Fake) {
	t.Helper()
	fc := clock.NewFake(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	r := New(sources, append([]Option{WithClock(fc)}, opts...)...)
	t.Cleanup(r.Close)
	return r, fc
}

func TestResolve_TieBreak(t *testing.T) {
	r, _ := newTestRegistry(t, Sources{
		MCP:     static("github"),
		Plugins: static("github", "linter"),
		Skills:  static("linter", "commit"),
		Agents:  static("commit", "reviewer"),
	})
	require.NoError(t, r.Refresh(context.Background()))

	tests := []struct {
		name string
		want Kind
	}{
		{"github", KindMCP},
		{"linter", KindPlugin},
		{"commit", KindSkill},
		{"reviewer", KindAgent},
		{"nobody", KindUnknown},
		{"Reviewer", KindUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, r.Resolve(tt.name))
		})
	}
}

func TestLookup_ReturnsAllCandidatesInPriorityOrder(t *testing.T) {
	r, _ := newTestRegistry(t, Sources{
		Skills: static("deploy"),
		Agents: static("deploy"),
		MCP:    static("deploy"),
	})
	require.NoError(t, r.Refresh(context.Background()))

	got := r.Lookup("deploy")
	require.Len(t, got, 3)
	assert.Equal(t, "mcp__deploy", got[0].ID)
	assert.Equal(t, "skill__deploy", got[1].ID)
	assert.Equal(t, "agent__deploy", got[2].ID)
	assert.Empty(t, r.Lookup("missing"))
}

func TestRefresh_IsolatesFailingSources(t *testing.T) {
	boom := errors.New("disk on fire")
	r, _ := newTestRegistry(t, Sources{
		MCP:     failing(boom),
		Plugins: ListerFunc(func(context.Context) ([]Item, error) { panic("bad plugin manifest") }),
		Skills:  static("commit"),
		Agents:  static("reviewer"),
	})

	err := r.Refresh(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "plugin source")

	assert.Equal(t, KindSkill, r.Resolve("commit"))
	assert.Equal(t, KindAgent, r.Resolve("reviewer"))
	assert.Equal(t, 2, r.Len())
	assert.False(t, r.IsStale(), "a partially failed refresh still resets the TTL")
}

func TestRefresh_KeepsPartialResults(t *testing.T) {
	bad := errors.New("skills/broken/SKILL.md: bad frontmatter")
	r, _ := newTestRegistry(t, Sources{
		Skills: ListerFunc(func(context.Context) ([]Item, error) {
			return []Item{{Name: "commit"}}, bad
		}),
	})

	err := r.Refresh(context.Background())
	assert.ErrorIs(t, err, bad)
	assert.Equal(t, KindSkill, r.Resolve("commit"))
}

func TestRefresh_ReplacesSnapshot(t *testing.T) {
	var generation atomic.Int32
	agents := ListerFunc(func(context.Context) ([]Item, error) {
		if generation.Load() == 0 {
			return []Item{{Name: "old"}}, nil
		}
		return []Item{{Name: "new", Origin: OriginBuiltin}}, nil
	})
	r, _ := newTestRegistry(t, Sources{Agents: agents})

	require.NoError(t, r.Refresh(context.Background()))
	r.MarkDynamic([]string{"observed"}, KindMCP)
	assert.Equal(t, KindMCP, r.Resolve("observed"))

	generation.Store(1)
	require.NoError(t, r.Refresh(context.Background()))

	assert.Equal(t, KindUnknown, r.Resolve("old"))
	assert.Equal(t, KindUnknown, r.Resolve("observed"), "dynamic entries do not survive a refresh")
	entries := r.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, OriginBuiltin, entries[0].Origin)
}

func TestRefresh_NoSources(t *testing.T) {
	r, _ := newTestRegistry(t, Sources{})
	assert.ErrorIs(t, r.Refresh(context.Background()), ErrNoSources)
	assert.Zero(t, r.Len())
}

func TestRefresh_OnRefreshHook(t *testing.T) {
	boom := errors.New("boom")
	var (
		r          *Registry
		gotEntries int
		gotErr     error
	)
	r, _ = newTestRegistry(t, Sources{Agents: static("a", "b"), Skills: failing(boom)}, WithOnRefresh(func(entries int, err error) {
		gotEntries, gotErr = entries, err
		r.MarkDynamic([]string{"sticky"}, KindMCP)
	}))

	require.ErrorIs(t, r.Refresh(context.Background()), boom)
	assert.Equal(t, 2, gotEntries)
	assert.ErrorIs(t, gotErr, boom)
	assert.Equal(t, KindMCP, r.Resolve("sticky"))
}

func TestMarkDynamic(t *testing.T) {
	r, fc := newTestRegistry(t, Sources{Skills: static("github")})
	require.NoError(t, r.Refresh(context.Background()))
	refreshed := r.RefreshedAt()

	fc.Advance(5 * time.Second)
	r.MarkDynamic([]string{"github", "", "slack"}, KindMCP)
	r.MarkDynamic([]string{"ignored"}, KindUnknown)

	assert.Equal(t, KindMCP, r.Resolve("github"))
	assert.Equal(t, KindMCP, r.Resolve("slack"))
	assert.Equal(t, KindUnknown, r.Resolve("ignored"))
	assert.Equal(t, refreshed, r.RefreshedAt(), "dynamic marks do not touch the TTL clock")

	got := r.Lookup("slack")
	require.Len(t, got, 1)
	assert.Equal(t, OriginDynamic, got[0].Origin)
}

func TestStaleLookupRefreshesInBackground(t *testing.T) {
	var calls atomic.Int32
	gate := make(chan struct{})
	agents := ListerFunc(func(context.Context) ([]Item, error) {
		if calls.Add(1) == 1 {
			return []Item{{Name: "first"}}, nil
		}
		<-gate
		return []Item{{Name: "second"}}, nil
	})
	r, fc := newTestRegistry(t, Sources{Agents: agents}, WithTTL(30*time.Second))
	require.NoError(t, r.Refresh(context.Background()))

	fc.Advance(29 * time.Second)
	assert.False(t, r.IsStale())
	assert.Equal(t, KindAgent, r.Resolve("first"))
	assert.Equal(t, int32(1), calls.Load())

	fc.Advance(time.Second)
	assert.True(t, r.IsStale())

	// The stale lookup answers from the old snapshot while the refresh runs.
	assert.Equal(t, KindAgent, r.Resolve("first"))
	require.Eventually(t, func() bool { return calls.Load() == 2 }, time.Second, time.Millisecond)
	assert.Equal(t, KindAgent, r.Resolve("first"))
	assert.Equal(t, int32(2), calls.Load(), "lookups during a refresh do not start another")

	close(gate)
	require.Eventually(t, func() bool {
		return r.Resolve("second") == KindAgent
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, KindUnknown, r.Resolve("first"))
}

func TestRefresh_ConcurrentCallersShareOneFetch(t *testing.T) {
	release := make(chan struct{})
	var calls atomic.Int32
	agents := ListerFunc(func(context.Context) ([]Item, error) {
		calls.Add(1)
		<-release
		return []Item{{Name: "a"}}, nil
	})
	r, _ := newTestRegistry(t, Sources{Agents: agents})

	errs := make(chan error, 3)
	go func() { errs <- r.Refresh(context.Background()) }()
	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, time.Millisecond)

	for range 2 {
		go func() { errs <- r.Refresh(context.Background()) }()
	}
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load(), "callers join the in-flight refresh")

	close(release)
	for range 3 {
		require.NoError(t, <-errs)
	}
	assert.Equal(t, KindAgent, r.Resolve("a"))
}

func TestRefresh_ContextCancelled(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	r, _ := newTestRegistry(t, Sources{Agents: ListerFunc(func(ctx context.Context) ([]Item, error) {
		select {
		case <-block:
		case <-ctx.Done():
		}
		return nil, ctx.Err()
	})})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, r.Refresh(ctx), context.Canceled)
}

func TestItemID(t *testing.T) {
	assert.Equal(t, "agent__reviewer", ItemID(KindAgent, "reviewer"))

	kind, name, ok := ParseItemID("mcp__github__create_issue")
	require.True(t, ok)
	assert.Equal(t, KindMCP, kind)
	assert.Equal(t, "github__create_issue", name)

	for _, bad := range []string{"reviewer", "agent__", "widget__x", ""} {
		_, _, ok := ParseItemID(bad)
		assert.False(t, ok, bad)
	}
}

func TestParseKind(t *testing.T) {
	k, ok := ParseKind(" Skill ")
	assert.True(t, ok)
	assert.Equal(t, KindSkill, k)

	k, ok = ParseKind("unknown")
	assert.False(t, ok)
	assert.Equal(t, KindUnknown, k)
}
