package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBufferLogger(level LogLevel) (*StructuredLogger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	cfg := DefaultLoggerConfig()
	cfg.Level = level
	cfg.Output = buf
	return NewLogger(cfg), buf
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		out = append(out, m)
	}
	return out
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LogLevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, LogLevelWarn, ParseLevel("warning"))
	assert.Equal(t, LogLevelError, ParseLevel("error"))
	assert.Equal(t, LogLevelInfo, ParseLevel("bogus"))
}

func TestStructuredLogger_KeyValuesAndScope(t *testing.T) {
	l, buf := newBufferLogger(LogLevelInfo)
	scoped := l.WithComponent("orchestrator").WithTask("task-1", "coder")

	scoped.Debug("hidden")
	scoped.Info("task.started", "attempt", 2)

	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "task.started", lines[0]["msg"])
	assert.Equal(t, "orchestrator", lines[0]["component"])
	assert.Equal(t, "task-1", lines[0]["task_id"])
	assert.Equal(t, "coder", lines[0]["agent_id"])
	assert.EqualValues(t, 2, lines[0]["attempt"])

	// Scoping clones; the parent is unchanged.
	l.Info("plain")
	lines = decodeLines(t, buf)
	_, hasComponent := lines[1]["component"]
	assert.False(t, hasComponent)
}

func TestStructuredLogger_DomainHelpers(t *testing.T) {
	l, buf := newBufferLogger(LogLevelDebug)
	l.LogToolCall("shell_exec", 5*time.Millisecond, errors.New("exit status 1"))
	l.LogModelCall("gpt-4o-mini", 120, 0.002, time.Second, nil)
	l.LogTaskTransition("t1", "pending", "in_progress", 1, nil)

	lines := decodeLines(t, buf)
	require.Len(t, lines, 3)
	assert.Equal(t, "tool.call.failed", lines[0]["msg"])
	assert.Equal(t, "exit status 1", lines[0]["error"])
	assert.Equal(t, "model.call.completed", lines[1]["msg"])
	assert.EqualValues(t, 120, lines[1]["tokens"])
	assert.Equal(t, "task.transition", lines[2]["msg"])
	assert.Equal(t, "in_progress", lines[2]["to"])
}

func TestStructuredLogger_ConfigAttrs(t *testing.T) {
	buf := &bytes.Buffer{}
	l := NewLogger(&LoggerConfig{Level: LogLevelWarn, Output: buf, Component: "router", Attrs: map[string]any{"env": "test"}})
	l.Info("dropped")
	l.WithAgent("planner-1").Warn("kept")

	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "router", lines[0]["component"])
	assert.Equal(t, "test", lines[0]["env"])
	assert.Equal(t, "planner-1", lines[0]["agent_id"])
	assert.Equal(t, "WARN", LogLevelWarn.String())
}

func TestNewSlogAdapter(t *testing.T) {
	buf := &bytes.Buffer{}
	l := NewSlogAdapter(slog.New(slog.NewJSONHandler(buf, nil))).WithContext("repo", "svc")
	l.Info("memory.repo.created")

	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "svc", lines[0]["repo"])
}

func TestNoOpLogger(t *testing.T) {
	var l Logger = NoOpLogger{}
	l.Info("nothing", "k", "v")
}
