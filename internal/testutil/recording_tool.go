package testutil

import (
	"sync"

	"github.com/langswarm/langswarm/tool"
)

// RecordingTool is a tool that records every invocation and returns a fixed
// result (or error).
type RecordingTool struct {
	ToolName string
	Result   any
	Err      error

	mu    sync.Mutex
	calls []map[string]any
}

var _ tool.Tool = (*RecordingTool)(nil)

// NewRecordingTool creates a tool returning result.
func NewRecordingTool(name string, result any) *RecordingTool {
	return &RecordingTool{ToolName: name, Result: result}
}

func (t *RecordingTool) Name() string        { return t.ToolName }
func (t *RecordingTool) Description() string { return "records calls to " + t.ToolName }
func (t *RecordingTool) Parameters() map[string]any {
	return map[string]any{"type": "object", "properties": map[string]any{}}
}

// Execute records args and returns the configured outcome.
func (t *RecordingTool) Execute(_ tool.Context, args map[string]any) (any, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls = append(t.calls, args)
	return t.Result, t.Err
}

// Calls returns the recorded argument maps.
func (t *RecordingTool) Calls() []map[string]any {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]map[string]any(nil), t.calls...)
}

// CallCount returns the number of executions.
func (t *RecordingTool) CallCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.calls)
}
