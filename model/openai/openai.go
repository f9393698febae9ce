// Package openai provides an implementation of model.Provider using the OpenAI
// Chat Completions API (including streaming + function/tool calling). The same
// adapter serves Azure OpenAI deployments through the SDK's azure options. It
// adapts LangSwarm's normalized Request/Delta structures into the SDK's
// message format and back.
package openai

import (
	"context"
	"errors"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/azure"
	"github.com/openai/openai-go/option"

	"github.com/langswarm/langswarm/core"
	"github.com/langswarm/langswarm/model"
)

// DefaultAzureAPIVersion is used when no API version is configured.
const DefaultAzureAPIVersion = "2024-10-21"

// Options configure the OpenAI provider adapter.
// Fields mirror a subset of Chat Completion parameters intentionally kept
// minimal; extend via functional options without breaking callers.
type Options struct {
	Model               string
	Temperature         float64
	MaxCompletionTokens int64
	APIKey              string
	// BaseURL overrides the API endpoint (OpenAI compatible gateways).
	BaseURL string
}

// Provider wraps the OpenAI Chat Completions API behind model.Provider.
type Provider struct {
	client *openai.Client
	opts   Options
	kind   core.ProviderType
}

// New creates a new OpenAI provider using the official client.
func New(optFns ...func(o *Options)) *Provider {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	if opts.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(opts.BaseURL))
	}

	client := openai.NewClient(clientOpts...)
	return &Provider{client: &client, opts: opts, kind: core.ProviderOpenAI}
}

// NewFromClient creates a new OpenAI provider from an existing client.
func NewFromClient(client *openai.Client, optFns ...func(o *Options)) *Provider {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Provider{client: client, opts: opts, kind: core.ProviderOpenAI}
}

// AzureOptions configure an Azure OpenAI deployment.
type AzureOptions struct {
	Options
	// Endpoint is the resource endpoint, e.g. https://<resource>.openai.azure.com.
	Endpoint   string
	APIVersion string
}

// NewAzure creates a provider for an Azure OpenAI deployment. Options.Model
// names the deployment. Without an API key the default Azure credential chain
// (environment, managed identity, az login) is used.
func NewAzure(optFns ...func(o *AzureOptions)) (*Provider, error) {
	opts := AzureOptions{Options: defaultOptions(), APIVersion: DefaultAzureAPIVersion}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Endpoint == "" {
		return nil, &core.ConfigError{Field: "endpoint", Message: "azure_openai requires an endpoint"}
	}

	clientOpts := []option.RequestOption{azure.WithEndpoint(opts.Endpoint, opts.APIVersion)}
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, azure.WithAPIKey(opts.APIKey))
	} else {
		cred, err := azidentity.NewDefaultAzureCredential(nil)
		if err != nil {
			return nil, &core.ConfigError{Field: "api_key", Message: fmt.Sprintf("no api key and azure credential unavailable: %v", err)}
		}
		clientOpts = append(clientOpts, azure.WithTokenCredential(cred))
	}

	client := openai.NewClient(clientOpts...)
	return &Provider{client: &client, opts: opts.Options, kind: core.ProviderAzureOpenAI}, nil
}

func defaultOptions() Options {
	return Options{
		Model:               openai.ChatModelGPT4oMini,
		Temperature:         0.7,
		MaxCompletionTokens: 4096,
	}
}

// Stream implements model.Provider, forwarding raw content and tool call
// deltas as they arrive.
func (p *Provider) Stream(ctx context.Context, req model.Request) (<-chan model.Delta, <-chan error) {
	out := make(chan model.Delta, 32)
	errCh := make(chan error, 1)
	go func() {
		defer close(out)
		defer close(errCh)
		params := p.buildParams(req)
		params.StreamOptions = openai.ChatCompletionStreamOptionsParam{IncludeUsage: openai.Bool(true)}
		if err := p.handleStreaming(ctx, params, out); err != nil {
			errCh <- p.wrap(err)
		}
	}()
	return out, errCh
}

// Complete implements model.Provider with a single non-streaming request.
func (p *Provider) Complete(ctx context.Context, req model.Request) (model.Response, error) {
	resp, err := p.client.Chat.Completions.New(ctx, p.buildParams(req))
	if err != nil {
		return model.Response{}, p.wrap(err)
	}
	if len(resp.Choices) == 0 {
		return model.Response{}, p.wrap(errors.New("no choices returned"))
	}
	ch0 := resp.Choices[0]
	calls := make([]core.ToolCall, 0, len(ch0.Message.ToolCalls))
	for i, tc := range ch0.Message.ToolCalls {
		calls = append(calls, core.ToolCall{
			Index: i,
			ID:    tc.ID,
			Type:  core.ToolCallTypeFunction,
			Function: core.ToolCallFunction{
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			},
		})
	}
	return model.Response{
		Message:      core.NewAssistantMessage(ch0.Message.Content, calls...),
		FinishReason: ch0.FinishReason,
		Usage: &model.TokenUsage{
			PromptTokens:     int(resp.Usage.PromptTokens),
			CompletionTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:      int(resp.Usage.TotalTokens),
		},
	}, nil
}

func (p *Provider) wrap(err error) error {
	return &core.ProviderError{Provider: p.kind, Err: err}
}

// buildMessages converts normalized messages into OpenAI chat messages.
func buildMessages(req model.Request) []openai.ChatCompletionMessageParamUnion {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages)+1)
	if req.SystemPrompt != "" {
		messages = append(messages, openai.SystemMessage(req.SystemPrompt))
	}
	for _, m := range req.Messages {
		switch m.Role {
		case core.RoleSystem:
			messages = append(messages, openai.SystemMessage(m.Content))
		case core.RoleUser:
			messages = append(messages, openai.UserMessage(m.Content))
		case core.RoleAssistant:
			if !m.HasToolCalls() {
				messages = append(messages, openai.AssistantMessage(m.Content))
				continue
			}
			asst := &openai.ChatCompletionAssistantMessageParam{ToolCalls: extractToolCalls(m)}
			if m.Content != "" {
				asst.Content.OfString = openai.String(m.Content)
			}
			messages = append(messages, openai.ChatCompletionMessageParamUnion{OfAssistant: asst})
		case core.RoleTool:
			messages = append(messages, openai.ToolMessage(m.Content, m.ToolCallID))
		default:
			if m.Content != "" {
				messages = append(messages, openai.UserMessage(m.Content))
			}
		}
	}
	return messages
}

// extractToolCalls returns OpenAI formatted tool calls for an assistant message.
func extractToolCalls(m core.Message) []openai.ChatCompletionMessageToolCallParam {
	toolCalls := make([]openai.ChatCompletionMessageToolCallParam, 0, len(m.ToolCalls))
	for _, tc := range m.ToolCalls {
		toolCalls = append(toolCalls, openai.ChatCompletionMessageToolCallParam{
			ID: tc.ID,
			Function: openai.ChatCompletionMessageToolCallFunctionParam{
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			},
		})
	}
	return toolCalls
}

// buildParams assembles the OpenAI request parameters including tool definitions.
func (p *Provider) buildParams(req model.Request) openai.ChatCompletionNewParams {
	params := openai.ChatCompletionNewParams{
		Messages:            buildMessages(req),
		Model:               p.opts.Model,
		Temperature:         openai.Float(p.opts.Temperature),
		MaxCompletionTokens: openai.Int(p.opts.MaxCompletionTokens),
	}
	if len(req.Tools) == 0 {
		return params
	}
	tools := make([]openai.ChatCompletionToolParam, len(req.Tools))
	for i, tdef := range req.Tools {
		tools[i] = openai.ChatCompletionToolParam{
			Function: openai.FunctionDefinitionParam{
				Name:        tdef.Name,
				Description: openai.String(tdef.Description),
				Parameters:  tdef.Parameters,
			},
		}
	}
	params.Tools = tools
	return params
}

// handleStreaming forwards chunk deltas until the stream ends. The finish
// reason is held back and sent last together with the usage chunk OpenAI
// emits after it.
func (p *Provider) handleStreaming(
	ctx context.Context,
	params openai.ChatCompletionNewParams,
	out chan<- model.Delta,
) error {
	stream := p.client.Chat.Completions.NewStreaming(ctx, params)
	defer stream.Close()

	send := func(d model.Delta) error {
		select {
		case out <- d:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	var last model.Delta
	for stream.Next() {
		ck := stream.Current()
		if u := ck.Usage; u.TotalTokens > 0 {
			last.Usage = &model.TokenUsage{
				PromptTokens:     int(u.PromptTokens),
				CompletionTokens: int(u.CompletionTokens),
				TotalTokens:      int(u.TotalTokens),
			}
		}
		for _, ch := range ck.Choices {
			d := toDelta(ch)
			if d.FinishReason != "" {
				last.FinishReason = d.FinishReason
				d.FinishReason = ""
			}
			if d.Empty() {
				continue
			}
			if err := send(d); err != nil {
				return err
			}
		}
	}
	if err := stream.Err(); err != nil {
		return fmt.Errorf("openai streaming error: %w", err)
	}
	if last.Empty() {
		return nil
	}
	return send(last)
}

func toDelta(ch openai.ChatCompletionChunkChoice) model.Delta {
	d := model.Delta{Content: ch.Delta.Content, FinishReason: ch.FinishReason}
	for _, tc := range ch.Delta.ToolCalls {
		d.ToolCalls = append(d.ToolCalls, model.ToolCallDelta{
			Index:     int(tc.Index),
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	return d
}

// Info returns metadata describing this provider.
func (p *Provider) Info() model.Info {
	return model.Info{
		Name:          p.opts.Model,
		Provider:      p.kind,
		SupportsTools: true,
	}
}
