package testutil

import (
	"strings"

	"github.com/langswarm/langswarm/core"
	"github.com/langswarm/langswarm/model"
)

// TurnBuilder scripts the deltas of one provider response.
// Example:
//
//	deltas := NewTurnBuilder().Text("Hello ", "world").Stop().Deltas()
//	provider.AddTurn(deltas...)
type TurnBuilder struct {
	deltas []model.Delta
}

// NewTurnBuilder creates an empty builder.
func NewTurnBuilder() *TurnBuilder { return &TurnBuilder{} }

// Text appends one content delta per fragment (chainable).
func (b *TurnBuilder) Text(fragments ...string) *TurnBuilder {
	for _, f := range fragments {
		b.deltas = append(b.deltas, model.Delta{Content: f})
	}
	return b
}

// Empty appends a delta without content, tool calls or finish reason (chainable).
func (b *TurnBuilder) Empty() *TurnBuilder {
	b.deltas = append(b.deltas, model.Delta{})
	return b
}

// ToolCall appends a complete tool call fragment at index (chainable).
func (b *TurnBuilder) ToolCall(index int, id, name, args string) *TurnBuilder {
	b.deltas = append(b.deltas, model.Delta{ToolCalls: []model.ToolCallDelta{{
		Index: index, ID: id, Name: name, Arguments: args,
	}}})
	return b
}

// FragmentedToolCall streams a tool call as name then argument pieces of at
// most size bytes (chainable).
func (b *TurnBuilder) FragmentedToolCall(index int, id, name, args string, size int) *TurnBuilder {
	b.deltas = append(b.deltas, model.Delta{ToolCalls: []model.ToolCallDelta{{Index: index, ID: id, Name: name}}})
	for _, piece := range chunk(args, size) {
		b.deltas = append(b.deltas, model.Delta{ToolCalls: []model.ToolCallDelta{{Index: index, Arguments: piece}}})
	}
	return b
}

// Usage appends a delta carrying only token usage (chainable).
func (b *TurnBuilder) Usage(prompt, completion int) *TurnBuilder {
	b.deltas = append(b.deltas, model.Delta{Usage: &model.TokenUsage{
		PromptTokens:     prompt,
		CompletionTokens: completion,
		TotalTokens:      prompt + completion,
	}})
	return b
}

// Finish appends a finish reason delta (chainable).
func (b *TurnBuilder) Finish(reason string) *TurnBuilder {
	b.deltas = append(b.deltas, model.Delta{FinishReason: reason})
	return b
}

// Stop appends a "stop" finish (chainable).
func (b *TurnBuilder) Stop() *TurnBuilder { return b.Finish(core.FinishReasonStop) }

// ToolCalls appends a "tool_calls" finish (chainable).
func (b *TurnBuilder) ToolCalls() *TurnBuilder { return b.Finish(core.FinishReasonToolCalls) }

// Deltas returns the scripted deltas.
func (b *TurnBuilder) Deltas() []model.Delta {
	return append([]model.Delta(nil), b.deltas...)
}

func chunk(s string, size int) []string {
	if size <= 0 || len(s) <= size {
		return []string{s}
	}
	var out []string
	for len(s) > size {
		out = append(out, s[:size])
		s = s[size:]
	}
	if s != "" {
		out = append(out, s)
	}
	return out
}

// TextTurn is shorthand for a response that streams text word by word then stops.
func TextTurn(text string) []model.Delta {
	return NewTurnBuilder().Text(strings.SplitAfter(text, " ")...).Stop().Deltas()
}
