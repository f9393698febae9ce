package model

import (
	"context"

	"github.com/langswarm/langswarm/core"
)

// ToolDefinition declaratively exposes a callable function to the model.
// Parameters is a JSON Schema object (draft agnostic, minimal subset expected).
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Request captures the normalized model input produced by agents.
type Request struct {
	SystemPrompt string           `json:"system_prompt,omitempty"`
	Messages     []core.Message   `json:"messages"`
	Tools        []ToolDefinition `json:"tools,omitempty"`
}

// TokenUsage captures token usage statistics for a response.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Add sums o into u.
func (u *TokenUsage) Add(o TokenUsage) {
	u.PromptTokens += o.PromptTokens
	u.CompletionTokens += o.CompletionTokens
	u.TotalTokens += o.TotalTokens
}

// ToolCallDelta is one streamed fragment of a tool call. Fragments sharing an
// Index belong to the same call; Name and Arguments are appended in order.
type ToolCallDelta struct {
	Index     int    `json:"index"`
	ID        string `json:"id,omitempty"`
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`
}

// Delta is one raw increment of a streaming response.
type Delta struct {
	Content      string          `json:"content,omitempty"`
	ToolCalls    []ToolCallDelta `json:"tool_calls,omitempty"`
	FinishReason string          `json:"finish_reason,omitempty"`
	Usage        *TokenUsage     `json:"usage,omitempty"`
}

// Empty reports whether the delta carries no content, tool call fragment,
// finish reason or usage.
func (d Delta) Empty() bool {
	return d.Content == "" && len(d.ToolCalls) == 0 && d.FinishReason == "" && d.Usage == nil
}

// Response is a complete (non-streaming) model answer.
type Response struct {
	Message      core.Message `json:"message"`
	FinishReason string       `json:"finish_reason"`
	Usage        *TokenUsage  `json:"usage,omitempty"`
}

// Info contains metadata about a provider implementation.
type Info struct {
	Name          string            `json:"name"`
	Provider      core.ProviderType `json:"provider"`
	SupportsTools bool              `json:"supports_tools"`
}

// Provider is the minimal interface required by agents and flows to drive
// generation.
//
// Stream emits deltas on the first channel and closes both channels when the
// response ends. At most one error is delivered on the buffered error channel
// before it is closed, so consumers drain the delta channel first and then
// receive from the error channel.
type Provider interface {
	Complete(ctx context.Context, req Request) (Response, error)
	Stream(ctx context.Context, req Request) (<-chan Delta, <-chan error)

	// Info returns information about the provider implementation.
	Info() Info
}

// CompleteFromStream drains a streaming response into a Response. Providers
// without a dedicated non-streaming endpoint use it to implement Complete.
func CompleteFromStream(ctx context.Context, p Provider, req Request) (Response, error) {
	out, errCh := p.Stream(ctx, req)
	var acc Accumulator
	for d := range out {
		acc.Add(d)
	}
	if err := <-errCh; err != nil {
		return Response{}, err
	}
	return acc.Response(), nil
}
