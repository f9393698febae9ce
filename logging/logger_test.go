package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]LogLevel{
		"debug": LogLevelDebug,
		"INFO":  LogLevelInfo,
		"":      LogLevelInfo,
		"warn":  LogLevelWarn,
		"Error": LogLevelError,
	} {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLevel("verbose")
	assert.Error(t, err)
}

func TestNewLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	l := NewSlogAdapter(NewLogger(&Config{Level: LogLevelDebug, Format: "json", Output: &buf, Component: "engine"}))

	LogToolCall(l, "search", "call_1", 5*time.Millisecond, nil)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "tool.call.success", rec["msg"])
	assert.Equal(t, "engine", rec["component"])
	assert.Equal(t, "search", rec["tool"])
}

func TestNewLogger_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	l := NewSlogAdapter(NewLogger(&Config{Level: LogLevelWarn, Format: "text", Output: &buf}))

	LogLLMCall(l, "gpt-4o", 0, time.Millisecond, nil)
	assert.Empty(t, buf.String())

	LogLLMCall(l, "gpt-4o", 1, time.Millisecond, errors.New("rate limited"))
	assert.Contains(t, buf.String(), "llm.call.failed")
	assert.Contains(t, buf.String(), "rate limited")
}

func TestNewLogger_Console(t *testing.T) {
	var buf bytes.Buffer
	l := NewSlogAdapter(NewLogger(&Config{Level: LogLevelInfo, Format: "console", Output: &buf}))

	LogWorkflowExecution(l, "wf", "exec-1", 2, time.Second, nil)
	assert.Contains(t, buf.String(), "engine.workflow.completed")
}

func TestOrNoOp(t *testing.T) {
	assert.IsType(t, NoOpLogger{}, OrNoOp(nil))
	custom := NewDefaultSlogLogger()
	assert.Same(t, custom, OrNoOp(custom))
}
