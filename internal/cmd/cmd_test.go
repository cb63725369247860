package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Iron-Ham/cclens/internal/activity"
	"github.com/Iron-Ham/cclens/internal/event"
	"github.com/Iron-Ham/cclens/internal/registry"
	"github.com/Iron-Ham/cclens/internal/testutil"
)

// executeCommand runs rootCmd with args and returns captured output
func executeCommand(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	resetFlags(rootCmd)
	viper.Reset()
	t.Cleanup(viper.Reset)

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

// resetFlags restores every flag to its default so runs don't leak into
// each other through the package-level flag variables.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

// isolate points configuration, home and the registry at temp dirs.
func isolate(t *testing.T) *testutil.ClaudeHome {
	t.Helper()

	home := testutil.SetupClaudeHome(t)
	t.Setenv("HOME", home.Home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home.Home, ".config"))
	t.Setenv("CCLENS_REGISTRY_CLAUDE_DIR", home.ClaudeDir)
	t.Setenv("CCLENS_REGISTRY_PROJECT_DIR", home.ProjectDir)
	t.Setenv("CCLENS_LOGGING_ENABLED", "false")
	return home
}

// decodeRecords parses JSON-lines output.
func decodeRecords(t *testing.T, output string) []record {
	t.Helper()

	var records []record
	for _, line := range strings.Split(strings.TrimSpace(output), "\n") {
		if line == "" {
			continue
		}
		var rec record
		require.NoError(t, sonic.Unmarshal([]byte(line), &rec), "line: %s", line)
		records = append(records, rec)
	}
	return records
}

func recordsOfType(records []record, typ string) []record {
	var out []record
	for _, r := range records {
		if r.Type == typ {
			out = append(out, r)
		}
	}
	return out
}

func TestRootCommand(t *testing.T) {
	assert.Equal(t, "cclens", rootCmd.Use)

	// Compare by Name(), not Use which includes args
	cmdMap := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		cmdMap[c.Name()] = true
	}
	for _, expected := range []string{"watch", "exec", "resolve", "status", "config", "logs"} {
		assert.True(t, cmdMap[expected], "expected subcommand %q", expected)
	}
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 0, ExitCode(nil))
	assert.Equal(t, 1, ExitCode(os.ErrNotExist))
	assert.Equal(t, 7, ExitCode(&ExitError{Code: 7}))
	assert.Equal(t, "exit status 7", (&ExitError{Code: 7}).Error())
}

func TestWatchCommand_JSONFromFile(t *testing.T) {
	isolate(t)

	input := filepath.Join(t.TempDir(), "session.log")
	require.NoError(t, os.WriteFile(input, []byte("● /commit(Create a git commit)\n  ⎿ Done (1 tool use)\n"), 0o644))

	output, err := executeCommand(t, "", "watch", "--json", "--status=false", input)
	require.NoError(t, err)

	records := decodeRecords(t, output)

	batches := recordsOfType(records, event.TypeActivityBatch)
	require.NotEmpty(t, batches)
	require.NotNil(t, batches[0].Event)
	assert.Equal(t, activity.KindSkillCall, batches[0].Event.Kind)
	assert.Equal(t, "commit", batches[0].Event.Detail(activity.DetailSkill))

	started := recordsOfType(records, event.TypeItemStarted)
	require.Len(t, started, 1)
	assert.Equal(t, "skill__commit", started[0].Change.Item.ID)

	stopped := recordsOfType(records, event.TypeItemStopped)
	require.Len(t, stopped, 1)
	assert.Equal(t, "skill__commit", stopped[0].Change.Item.ID)
}

func TestWatchCommand_Stdin(t *testing.T) {
	isolate(t)

	output, err := executeCommand(t, "● /lint(Run the linter)\n", "watch", "--status=false")
	require.NoError(t, err)
	assert.Contains(t, output, "skill")
	assert.Contains(t, output, "lint")
	assert.Contains(t, output, "Run the linter")
	assert.Contains(t, output, "started")
}

func TestWatchCommand_MissingFile(t *testing.T) {
	isolate(t)

	_, err := executeCommand(t, "", "watch", filepath.Join(t.TempDir(), "missing.log"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open input")
}

func TestExecCommand_RecordsActivityAndExitCode(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("exec needs a pseudo-terminal")
	}
	isolate(t)
	events := filepath.Join(t.TempDir(), "activity.jsonl")

	_, err := executeCommand(t, "", "exec", "--events", events, "--status=false", "--",
		"sh", "-c", "printf '● /commit(Create a git commit)\\n'; exit 3")
	require.Error(t, err)
	assert.Equal(t, 3, ExitCode(err))

	data, err := os.ReadFile(events)
	require.NoError(t, err)
	started := recordsOfType(decodeRecords(t, string(data)), event.TypeItemStarted)
	require.Len(t, started, 1)
	assert.Equal(t, "skill__commit", started[0].Change.Item.ID)
}

func TestResolveCommand_JSON(t *testing.T) {
	home := isolate(t)
	home.WriteHome(t, map[string]string{
		".claude/agents/reviewer.md":     "---\nname: code-reviewer\ndescription: Reviews diffs\n---\nYou review code.\n",
		".claude/skills/commit/SKILL.md": testutil.SkillFile("commit", "Create a git commit"),
	})

	output, err := executeCommand(t, "", "resolve", "--json", "code-reviewer", "commit", "nope")
	require.NoError(t, err)

	var results []resolution
	require.NoError(t, sonic.Unmarshal([]byte(output), &results))
	require.Len(t, results, 3)

	assert.Equal(t, registry.KindAgent, results[0].Kind)
	require.NotEmpty(t, results[0].Matches)
	assert.Equal(t, "agent__code-reviewer", results[0].Matches[0].ID)

	assert.Equal(t, registry.KindSkill, results[1].Kind)

	assert.Equal(t, registry.KindUnknown, results[2].Kind)
	assert.Empty(t, results[2].Matches)
}

func TestResolveCommand_Table(t *testing.T) {
	home := isolate(t)
	home.WriteHome(t, map[string]string{
		".claude/skills/commit/SKILL.md": testutil.SkillFile("commit", "Create a git commit"),
	})

	output, err := executeCommand(t, "", "resolve", "commit", "nope")
	require.NoError(t, err)
	assert.Contains(t, output, "NAME")
	assert.Contains(t, output, "skill__commit")
	assert.Contains(t, output, "unknown")
}

func TestStatusSendAndList(t *testing.T) {
	isolate(t)
	inbox := filepath.Join(t.TempDir(), "status.jsonl")

	_, err := executeCommand(t, "", "status", "send", "--inbox", inbox, "--event", "start", "--kind", "agent", "--id", "reviewer")
	require.NoError(t, err)

	_, err = executeCommand(t, "", "status", "send", "--inbox", inbox, "stopped skill commit")
	require.NoError(t, err)

	_, err = executeCommand(t, `{"event":"done","id":"agent__reviewer"}`, "status", "send", "--inbox", inbox, "-")
	require.NoError(t, err)

	output, err := executeCommand(t, "", "status", "list", "--inbox", inbox, "--json")
	require.NoError(t, err)

	records := decodeRecords(t, output)
	require.Len(t, records, 3)
	require.NotNil(t, records[0].Report)
	assert.Equal(t, "agent__reviewer", records[0].Report.ID)
	assert.Equal(t, "start", string(records[0].Report.Event))
	assert.Equal(t, "skill__commit", records[1].Report.ID)
	assert.Equal(t, "stop", string(records[2].Report.Event))
}

func TestStatusSend_Invalid(t *testing.T) {
	isolate(t)
	inbox := filepath.Join(t.TempDir(), "status.jsonl")

	_, err := executeCommand(t, "", "status", "send", "--inbox", inbox, "--event", "start", "--id", "reviewer")
	require.Error(t, err, "no kind and an un-namespaced id")

	_, err = executeCommand(t, "", "status", "send", "--inbox", inbox, "hello there")
	require.Error(t, err)

	_, statErr := os.Stat(inbox)
	assert.True(t, os.IsNotExist(statErr), "nothing is written for rejected reports")
}

func TestStatusList_Empty(t *testing.T) {
	isolate(t)

	output, err := executeCommand(t, "", "status", "list", "--inbox", filepath.Join(t.TempDir(), "none.jsonl"))
	require.NoError(t, err)
	assert.Contains(t, output, "No reports found.")
}

func TestConfigInit(t *testing.T) {
	isolate(t)

	output, err := executeCommand(t, "", "config", "init")
	require.NoError(t, err)
	assert.Contains(t, output, "Created config file")

	_, err = executeCommand(t, "", "config", "init")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	_, err = executeCommand(t, "", "config", "init", "--force")
	require.NoError(t, err)

	// The template must itself be a valid configuration
	output, err = executeCommand(t, "", "config", "validate")
	require.NoError(t, err)
	assert.Contains(t, output, "Configuration is valid.")
}

func TestConfigShow(t *testing.T) {
	isolate(t)

	output, err := executeCommand(t, "", "config", "show")
	require.NoError(t, err)
	assert.Contains(t, output, "Config file: (none - using defaults)")
	assert.Contains(t, output, "item_timeout_ms: 10000")
	assert.Contains(t, output, "dedup_window_ms: 3000")
}

func TestConfigSet(t *testing.T) {
	isolate(t)

	output, err := executeCommand(t, "", "config", "set", "activity.item_timeout_ms", "20000")
	require.NoError(t, err)
	assert.Contains(t, output, "Set activity.item_timeout_ms = 20000")

	data, err := os.ReadFile(filepath.Join(os.Getenv("XDG_CONFIG_HOME"), "cclens", "config.yaml"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "20000")

	tests := []struct {
		name  string
		key   string
		value string
		want  string
	}{
		{"unknown key", "activity.nope", "1", "unknown configuration key"},
		{"not an int", "activity.item_timeout_ms", "soon", "expected integer"},
		{"not a bool", "status.watch", "maybe", "expected true or false"},
		{"fails validation", "activity.history_retain", "5000", "history_retain"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := executeCommand(t, "", "config", "set", tt.key, tt.value)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestConfigValidate_ReportsErrors(t *testing.T) {
	isolate(t)
	t.Setenv("CCLENS_ACTIVITY_DEDUP_KEY_LENGTH", "2")

	output, err := executeCommand(t, "", "config", "validate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 error(s)")
	assert.Contains(t, output, "activity.dedup_key_length")
}

func TestConfigPath(t *testing.T) {
	isolate(t)

	output, err := executeCommand(t, "", "config", "path")
	require.NoError(t, err)
	assert.Contains(t, output, "Default path:")
	assert.Contains(t, output, "CCLENS_ACTIVITY_ITEM_TIMEOUT_MS")
}
