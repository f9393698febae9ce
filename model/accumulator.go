package model

import (
	"slices"
	"strings"

	"github.com/langswarm/langswarm/core"
)

// Accumulator assembles streamed deltas into a complete assistant message.
// Tool call fragments are keyed by index; the zero value is ready to use.
type Accumulator struct {
	content strings.Builder
	calls   map[int]*core.ToolCall
	finish  string
	usage   *TokenUsage
}

// Add merges a delta into the accumulated state.
func (a *Accumulator) Add(d Delta) {
	a.content.WriteString(d.Content)
	for _, tc := range d.ToolCalls {
		a.addToolCall(tc)
	}
	if d.FinishReason != "" {
		a.finish = d.FinishReason
	}
	if d.Usage != nil {
		a.usage = d.Usage
	}
}

func (a *Accumulator) addToolCall(tc ToolCallDelta) {
	if a.calls == nil {
		a.calls = map[int]*core.ToolCall{}
	}
	call, ok := a.calls[tc.Index]
	if !ok {
		call = &core.ToolCall{Index: tc.Index, Type: core.ToolCallTypeFunction}
		a.calls[tc.Index] = call
	}
	if tc.ID != "" {
		call.ID = tc.ID
	}
	call.Function.Name += tc.Name
	call.Function.Arguments += tc.Arguments
}

// Content returns the text accumulated so far.
func (a *Accumulator) Content() string { return a.content.String() }

// FinishReason returns the last reported finish reason, if any.
func (a *Accumulator) FinishReason() string { return a.finish }

// HasToolCalls reports whether any tool call fragment was received.
func (a *Accumulator) HasToolCalls() bool { return len(a.calls) > 0 }

// ToolCalls returns the assembled calls ordered by index.
func (a *Accumulator) ToolCalls() []core.ToolCall {
	if len(a.calls) == 0 {
		return nil
	}
	idx := make([]int, 0, len(a.calls))
	for i := range a.calls {
		idx = append(idx, i)
	}
	slices.Sort(idx)
	out := make([]core.ToolCall, 0, len(idx))
	for _, i := range idx {
		out = append(out, *a.calls[i])
	}
	return out
}

// Message returns the assistant message for the accumulated state.
func (a *Accumulator) Message() core.Message {
	return core.NewAssistantMessage(a.Content(), a.ToolCalls()...)
}

// Response converts the accumulated state into a Response.
func (a *Accumulator) Response() Response {
	return Response{Message: a.Message(), FinishReason: a.finish, Usage: a.usage}
}

// Reset clears the state for the next provider round.
func (a *Accumulator) Reset() {
	a.content.Reset()
	a.calls = nil
	a.finish = ""
	a.usage = nil
}
