// Package anthropic provides a model.Provider for the Anthropic Claude
// Messages API, including streaming with tool use.
package anthropic

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/shared/constant"

	"github.com/langswarm/langswarm/core"
	"github.com/langswarm/langswarm/model"
)

// Options configures the Anthropic provider (temperature, model id,
// max tokens, API key). Extend via functional options to preserve stability.
type Options struct {
	Model       anthropic.Model
	Temperature float64
	MaxTokens   int64
	APIKey      string
}

// Provider wraps the Anthropic Messages API behind model.Provider.
type Provider struct {
	client *anthropic.Client
	opts   Options
}

// New creates a new Anthropic provider using the official client.
func New(optFns ...func(o *Options)) *Provider {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}

	client := anthropic.NewClient(clientOpts...)

	return &Provider{
		client: &client,
		opts:   opts,
	}
}

// NewFromClient creates a new Anthropic provider from an existing client.
func NewFromClient(client *anthropic.Client, optFns ...func(o *Options)) *Provider {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Provider{
		client: client,
		opts:   opts,
	}
}

func defaultOptions() Options {
	return Options{
		Model:       anthropic.ModelClaude3_5Sonnet20241022,
		Temperature: 0.7,
		MaxTokens:   4096,
	}
}

func (p *Provider) buildParams(req model.Request) anthropic.MessageNewParams {
	params := anthropic.MessageNewParams{
		Model:       p.opts.Model,
		Messages:    buildMessages(req.Messages),
		MaxTokens:   p.opts.MaxTokens,
		Temperature: anthropic.Float(p.opts.Temperature),
	}

	if systemBlocks := extractSystem(req); len(systemBlocks) > 0 {
		params.System = systemBlocks
	}

	if len(req.Tools) > 0 {
		params.Tools = buildTools(req.Tools)
	}

	return params
}

// Complete implements model.Provider with a single non-streaming request.
func (p *Provider) Complete(ctx context.Context, req model.Request) (model.Response, error) {
	resp, err := p.client.Messages.New(ctx, p.buildParams(req))
	if err != nil {
		return model.Response{}, p.wrap(fmt.Errorf("anthropic api error: %w", err))
	}

	var text string
	var calls []core.ToolCall

	for i, block := range resp.Content {
		switch block.Type {
		case "text":
			text += block.AsText().Text
		case "tool_use":
			toolBlock := block.AsToolUse()
			args := "{}"
			if argsBytes, err := json.Marshal(toolBlock.Input); err == nil && string(argsBytes) != "null" {
				args = string(argsBytes)
			}
			calls = append(calls, core.ToolCall{
				Index:    i,
				ID:       toolBlock.ID,
				Type:     core.ToolCallTypeFunction,
				Function: core.ToolCallFunction{Name: toolBlock.Name, Arguments: args},
			})
		}
	}

	return model.Response{
		Message:      core.NewAssistantMessage(text, calls...),
		FinishReason: finishReason(resp.StopReason),
		Usage: &model.TokenUsage{
			PromptTokens:     int(resp.Usage.InputTokens),
			CompletionTokens: int(resp.Usage.OutputTokens),
			TotalTokens:      int(resp.Usage.InputTokens + resp.Usage.OutputTokens),
		},
	}, nil
}

// Stream implements model.Provider. Content block indices double as tool call
// indices so interleaved text and tool_use blocks stay distinct.
func (p *Provider) Stream(ctx context.Context, req model.Request) (<-chan model.Delta, <-chan error) {
	out := make(chan model.Delta, 32)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		stream := p.client.Messages.NewStreaming(ctx, p.buildParams(req))
		defer stream.Close()

		for stream.Next() {
			d := toDelta(stream.Current())
			if d.Empty() {
				continue
			}
			select {
			case out <- d:
			case <-ctx.Done():
				errCh <- p.wrap(ctx.Err())
				return
			}
		}
		if err := stream.Err(); err != nil {
			errCh <- p.wrap(fmt.Errorf("anthropic streaming error: %w", err))
		}
	}()

	return out, errCh
}

func toDelta(event anthropic.MessageStreamEventUnion) model.Delta {
	switch ev := event.AsAny().(type) {
	case anthropic.ContentBlockStartEvent:
		if ev.ContentBlock.Type == "tool_use" {
			return model.Delta{ToolCalls: []model.ToolCallDelta{{
				Index: int(ev.Index),
				ID:    ev.ContentBlock.ID,
				Name:  ev.ContentBlock.Name,
			}}}
		}
	case anthropic.ContentBlockDeltaEvent:
		switch d := ev.Delta.AsAny().(type) {
		case anthropic.TextDelta:
			return model.Delta{Content: d.Text}
		case anthropic.InputJSONDelta:
			if d.PartialJSON == "" {
				return model.Delta{}
			}
			return model.Delta{ToolCalls: []model.ToolCallDelta{{
				Index:     int(ev.Index),
				Arguments: d.PartialJSON,
			}}}
		}
	case anthropic.MessageDeltaEvent:
		if ev.Delta.StopReason != "" {
			return model.Delta{FinishReason: finishReason(ev.Delta.StopReason)}
		}
	}
	return model.Delta{}
}

// finishReason maps Anthropic stop reasons onto the normalized set.
func finishReason(r anthropic.StopReason) string {
	switch r {
	case anthropic.StopReasonToolUse:
		return core.FinishReasonToolCalls
	case anthropic.StopReasonMaxTokens:
		return core.FinishReasonLength
	default:
		return core.FinishReasonStop
	}
}

func (p *Provider) wrap(err error) error {
	return &core.ProviderError{Provider: core.ProviderAnthropic, Err: err}
}

// buildMessages converts LangSwarm messages to Anthropic message format.
// Consecutive tool results are grouped into a single user turn.
func buildMessages(msgs []core.Message) []anthropic.MessageParam {
	var messages []anthropic.MessageParam
	var pendingResults []anthropic.ContentBlockParamUnion

	flush := func() {
		if len(pendingResults) > 0 {
			messages = append(messages, anthropic.NewUserMessage(pendingResults...))
			pendingResults = nil
		}
	}

	for _, m := range msgs {
		if m.Role == core.RoleTool {
			pendingResults = append(pendingResults, anthropic.NewToolResultBlock(m.ToolCallID, m.Content, false))
			continue
		}
		flush()

		switch m.Role {
		case core.RoleSystem:
			continue // handled by extractSystem
		case core.RoleAssistant:
			if content := buildAssistantContent(m); len(content) > 0 {
				messages = append(messages, anthropic.NewAssistantMessage(content...))
			}
		default:
			if m.Content != "" {
				messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
			}
		}
	}
	flush()

	return messages
}

// extractSystem collects the system prompt plus any system role messages.
func extractSystem(req model.Request) []anthropic.TextBlockParam {
	var systemBlocks []anthropic.TextBlockParam
	if req.SystemPrompt != "" {
		systemBlocks = append(systemBlocks, anthropic.TextBlockParam{Text: req.SystemPrompt})
	}
	for _, m := range req.Messages {
		if m.Role == core.RoleSystem && m.Content != "" {
			systemBlocks = append(systemBlocks, anthropic.TextBlockParam{Text: m.Content})
		}
	}
	return systemBlocks
}

// buildAssistantContent builds content for assistant messages.
func buildAssistantContent(m core.Message) []anthropic.ContentBlockParamUnion {
	var content []anthropic.ContentBlockParamUnion

	if m.Content != "" {
		content = append(content, anthropic.NewTextBlock(m.Content))
	}

	for _, tc := range m.ToolCalls {
		var input any = map[string]any{}
		if tc.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(tc.Function.Arguments), &input); err != nil {
				input = tc.Function.Arguments // fallback to string
			}
		}
		content = append(content, anthropic.NewToolUseBlock(tc.ID, input, tc.Function.Name))
	}

	return content
}

// buildTools converts tool definitions to the Anthropic tool format.
func buildTools(tools []model.ToolDefinition) []anthropic.ToolUnionParam {
	anthropicTools := make([]anthropic.ToolUnionParam, len(tools))

	for i, tool := range tools {
		inputSchema := anthropic.ToolInputSchemaParam{
			Type: constant.Object("object"),
		}

		if params := tool.Parameters; params != nil {
			if properties, exists := params["properties"]; exists {
				inputSchema.Properties = properties
			}
			switch req := params["required"].(type) {
			case []string:
				inputSchema.Required = req
			case []any:
				for _, r := range req {
					if s, ok := r.(string); ok {
						inputSchema.Required = append(inputSchema.Required, s)
					}
				}
			}
		}

		u := anthropic.ToolUnionParamOfTool(inputSchema, tool.Name)
		if tool.Description != "" && u.OfTool != nil {
			u.OfTool.Description = anthropic.String(tool.Description)
		}
		anthropicTools[i] = u
	}

	return anthropicTools
}

// Info returns metadata describing this provider.
func (p *Provider) Info() model.Info {
	return model.Info{
		Name:          string(p.opts.Model),
		Provider:      core.ProviderAnthropic,
		SupportsTools: true,
	}
}
