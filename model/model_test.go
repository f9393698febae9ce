package model

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/langswarm/langswarm/core"
)

func TestAccumulator_FragmentedToolCalls(t *testing.T) {
	var acc Accumulator
	acc.Add(Delta{ToolCalls: []ToolCallDelta{{Index: 1, ID: "call_b", Name: "lookup"}}})
	acc.Add(Delta{ToolCalls: []ToolCallDelta{{Index: 0, ID: "call_a", Name: "sea"}}})
	acc.Add(Delta{ToolCalls: []ToolCallDelta{{Index: 0, Name: "rch", Arguments: `{"q":`}}})
	acc.Add(Delta{ToolCalls: []ToolCallDelta{{Index: 0, Arguments: `"go"}`}, {Index: 1, Arguments: `{}`}}})
	acc.Add(Delta{FinishReason: core.FinishReasonToolCalls})

	calls := acc.ToolCalls()
	require.Len(t, calls, 2)
	assert.Equal(t, "call_a", calls[0].ID)
	assert.Equal(t, "search", calls[0].Function.Name)
	assert.Equal(t, `{"q":"go"}`, calls[0].Function.Arguments)
	assert.Equal(t, "lookup", calls[1].Function.Name)
	assert.Equal(t, core.FinishReasonToolCalls, acc.FinishReason())
	assert.True(t, acc.Message().HasToolCalls())

	acc.Reset()
	assert.False(t, acc.HasToolCalls())
	assert.Empty(t, acc.Content())
	assert.Empty(t, acc.FinishReason())
}

func TestDeltaEmpty(t *testing.T) {
	assert.True(t, Delta{}.Empty())
	assert.False(t, Delta{Content: "x"}.Empty())
	assert.False(t, Delta{FinishReason: "stop"}.Empty())
	assert.False(t, Delta{Usage: &TokenUsage{TotalTokens: 3}}.Empty())
}

func TestScriptedProvider_Fallback(t *testing.T) {
	p := NewScriptedProvider("mock")
	p.AddResponse("hello", "hi there")

	resp, err := p.Complete(context.Background(), Request{Messages: []core.Message{core.NewUserMessage("hello")}})
	require.NoError(t, err)
	assert.Equal(t, "hi there", resp.Message.Content)
	assert.Equal(t, core.FinishReasonStop, resp.FinishReason)

	resp, err = p.Complete(context.Background(), Request{Messages: []core.Message{core.NewUserMessage("ping")}})
	require.NoError(t, err)
	assert.Equal(t, "Mock response to: ping", resp.Message.Content)
	assert.Equal(t, 2, p.CallCount())
}

func TestScriptedProvider_ScriptAndError(t *testing.T) {
	boom := errors.New("boom")
	p := NewScriptedProvider("mock").
		AddTurn(Delta{Content: "a"}, Delta{FinishReason: core.FinishReasonStop}).
		AddError(boom, Delta{Content: "partial"})

	resp, err := p.Complete(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, "a", resp.Message.Content)

	_, err = p.Complete(context.Background(), Request{})
	assert.ErrorIs(t, err, boom)
}

func TestScriptedProvider_RecordsRequestCopies(t *testing.T) {
	p := NewScriptedProvider("mock")
	msgs := []core.Message{core.NewUserMessage("one")}
	_, err := p.Complete(context.Background(), Request{Messages: msgs})
	require.NoError(t, err)

	msgs[0].Content = "mutated"
	assert.Equal(t, "one", p.Requests()[0].Messages[0].Content)
}

func TestScriptedProvider_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	deltas := make([]Delta, 64)
	for i := range deltas {
		deltas[i] = Delta{Content: "x"}
	}
	p := NewScriptedProvider("mock").AddTurn(deltas...)

	out, errCh := p.Stream(ctx, Request{})
	for range out {
	}
	assert.ErrorIs(t, <-errCh, context.Canceled)
}
