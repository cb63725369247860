package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, data []byte) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry), "line %q", line)
		out = append(out, entry)
	}
	return out
}

func TestNewLogger(t *testing.T) {
	t.Run("creates log file and parent directories", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "nested", "cclens.log")

		logger, err := NewLogger(path, LevelDebug, DefaultRotationConfig())
		require.NoError(t, err)
		defer func() { _ = logger.Close() }()

		_, err = os.Stat(path)
		assert.NoError(t, err)
	})

	t.Run("writes to stderr when path is empty", func(t *testing.T) {
		logger, err := NewLogger("", LevelInfo, DefaultRotationConfig())
		require.NoError(t, err)
		assert.Nil(t, logger.rotation)
		assert.NoError(t, logger.Close())
	})

	t.Run("invalid level defaults to INFO", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewWriterLogger(&buf, "verbose")

		logger.Debug("hidden")
		logger.Info("shown")

		entries := decodeLines(t, buf.Bytes())
		require.Len(t, entries, 1)
		assert.Equal(t, "shown", entries[0]["msg"])
	})
}

func TestLogLevels(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cclens.log")
	logger, err := NewLogger(path, LevelDebug, DefaultRotationConfig())
	require.NoError(t, err)

	logger.Debug("debug message", "key", "value")
	logger.Info("info message", "key", "value")
	logger.Warn("warn message", "key", "value")
	logger.Error("error message", "key", "value")
	require.NoError(t, logger.Close())

	content, err := os.ReadFile(path)
	require.NoError(t, err)

	entries := decodeLines(t, content)
	require.Len(t, entries, 4)

	levels := []string{"DEBUG", "INFO", "WARN", "ERROR"}
	for i, entry := range entries {
		assert.Equal(t, levels[i], entry["level"])
		assert.Equal(t, "value", entry["key"])
	}
}

func TestLogLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger(&buf, LevelWarn)

	logger.Debug("d")
	logger.Info("i")
	logger.Warn("w")
	logger.Error("e")

	entries := decodeLines(t, buf.Bytes())
	require.Len(t, entries, 2)
	assert.Equal(t, "w", entries[0]["msg"])
	assert.Equal(t, "e", entries[1]["msg"])

	assert.False(t, logger.Enabled(LevelInfo))
	assert.True(t, logger.Enabled(LevelError))
}

func TestWithComponentAndSource(t *testing.T) {
	var buf bytes.Buffer
	base := NewWriterLogger(&buf, LevelDebug)

	tracker := base.WithComponent("tracker").WithSource("status")
	tracker.Info("item started", "item_id", "skill__commit")
	base.Info("plain")

	entries := decodeLines(t, buf.Bytes())
	require.Len(t, entries, 2)

	assert.Equal(t, "tracker", entries[0]["component"])
	assert.Equal(t, "status", entries[0]["source"])
	assert.Equal(t, "skill__commit", entries[0]["item_id"])

	_, hasComponent := entries[1]["component"]
	assert.False(t, hasComponent, "parent logger must not inherit child attributes")
}

func TestWith(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger(&buf, LevelDebug)

	assert.Same(t, logger, logger.With(), "With() without args returns the receiver")

	logger.With("count", 3, 42, "ignored", "name", "x").Info("msg")

	entries := decodeLines(t, buf.Bytes())
	require.Len(t, entries, 1)
	assert.Equal(t, float64(3), entries[0]["count"])
	assert.Equal(t, "x", entries[0]["name"])
}

func TestNopLogger(t *testing.T) {
	logger := NopLogger()
	logger.Error("nothing")
	logger.WithComponent("x").Info("nothing")
	assert.NoError(t, logger.Close())
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"debug", LevelDebug},
		{"INFO", LevelInfo},
		{"Warn", LevelWarn},
		{"error", LevelError},
		{"", LevelInfo},
		{"trace", LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

func TestIsValidLevel(t *testing.T) {
	for _, lvl := range ValidLevels() {
		assert.True(t, IsValidLevel(strings.ToLower(lvl)))
	}
	assert.False(t, IsValidLevel("trace"))
}

func TestCloseSharedByChildren(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cclens.log")
	logger, err := NewLogger(path, LevelDebug, DefaultRotationConfig())
	require.NoError(t, err)

	child := logger.WithComponent("registry")
	assert.Same(t, logger.rotation, child.rotation)

	require.NoError(t, child.Close())
	require.NoError(t, logger.Close(), "second close is a no-op")
}

func TestConcurrentWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cclens.log")
	logger, err := NewLogger(path, LevelDebug, DefaultRotationConfig())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for g := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l := logger.WithComponent("worker").With("goroutine", g)
			for i := range 50 {
				l.Info("tick", "i", i)
			}
		}()
	}
	wg.Wait()
	require.NoError(t, logger.Close())

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Len(t, decodeLines(t, content), 400)
}
