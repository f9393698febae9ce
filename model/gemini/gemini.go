// Package gemini provides a model.Provider backed by the Google Gen AI SDK
// (Gemini API or Vertex AI).
package gemini

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/genai"

	"github.com/langswarm/langswarm/core"
	"github.com/langswarm/langswarm/model"
)

// Options configures the Gemini provider.
type Options struct {
	Model           string
	Temperature     float32
	MaxOutputTokens int32
	APIKey          string
}

// Provider wraps genai Models.GenerateContent behind model.Provider.
type Provider struct {
	client *genai.Client
	opts   Options
}

// New creates a Gemini API provider.
func New(ctx context.Context, optFns ...func(o *Options)) (*Provider, error) {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  opts.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, &core.ProviderError{Provider: core.ProviderGemini, Err: err}
	}

	return &Provider{client: client, opts: opts}, nil
}

// NewFromClient creates a provider from an existing client.
func NewFromClient(client *genai.Client, optFns ...func(o *Options)) *Provider {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Provider{client: client, opts: opts}
}

func defaultOptions() Options {
	return Options{
		Model:           "gemini-2.5-flash",
		Temperature:     0.7,
		MaxOutputTokens: 4096,
	}
}

func ptr[T any](v T) *T { return &v }

func toSchema(params map[string]any) (*genai.Schema, error) {
	encoded, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}
	decoded := &genai.Schema{}
	if err := json.Unmarshal(encoded, decoded); err != nil {
		return nil, err
	}
	return decoded, nil
}

func (p *Provider) buildConfig(req model.Request) (*genai.GenerateContentConfig, error) {
	cfg := &genai.GenerateContentConfig{
		Temperature:     ptr(p.opts.Temperature),
		MaxOutputTokens: p.opts.MaxOutputTokens,
	}

	if system := systemPrompt(req); system != "" {
		cfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}

	if len(req.Tools) > 0 {
		funcs := make([]*genai.FunctionDeclaration, 0, len(req.Tools))
		for _, d := range req.Tools {
			params, err := toSchema(d.Parameters)
			if err != nil {
				return nil, fmt.Errorf("failed to encode request schema for %s: %w", d.Name, err)
			}
			funcs = append(funcs, &genai.FunctionDeclaration{
				Name:        d.Name,
				Description: d.Description,
				Parameters:  params,
			})
		}
		cfg.Tools = []*genai.Tool{{FunctionDeclarations: funcs}}
	}

	return cfg, nil
}

func systemPrompt(req model.Request) string {
	prompt := req.SystemPrompt
	for _, m := range req.Messages {
		if m.Role == core.RoleSystem && m.Content != "" {
			if prompt != "" {
				prompt += "\n\n"
			}
			prompt += m.Content
		}
	}
	return prompt
}

// buildContents converts messages into genai contents. Consecutive tool
// results are grouped into one user turn of function responses.
func buildContents(msgs []core.Message) []*genai.Content {
	var contents []*genai.Content
	var pending []*genai.Part

	flush := func() {
		if len(pending) > 0 {
			contents = append(contents, &genai.Content{Role: genai.RoleUser, Parts: pending})
			pending = nil
		}
	}

	for _, m := range msgs {
		if m.Role == core.RoleTool {
			pending = append(pending, &genai.Part{FunctionResponse: &genai.FunctionResponse{
				ID:       m.ToolCallID,
				Name:     m.Name,
				Response: map[string]any{"output": m.Content},
			}})
			continue
		}
		flush()

		switch m.Role {
		case core.RoleSystem:
			continue
		case core.RoleAssistant:
			c := &genai.Content{Role: genai.RoleModel}
			if m.Content != "" {
				c.Parts = append(c.Parts, &genai.Part{Text: m.Content})
			}
			for _, tc := range m.ToolCalls {
				args := map[string]any{}
				if tc.Function.Arguments != "" {
					_ = json.Unmarshal([]byte(tc.Function.Arguments), &args)
				}
				c.Parts = append(c.Parts, &genai.Part{FunctionCall: &genai.FunctionCall{
					ID:   tc.ID,
					Name: tc.Function.Name,
					Args: args,
				}})
			}
			if len(c.Parts) > 0 {
				contents = append(contents, c)
			}
		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}
	flush()

	return contents
}

// callState numbers function calls across stream responses. Gemini delivers
// each call whole, so every call is emitted as one complete fragment.
type callState struct {
	next int
}

func (s *callState) toDelta(resp *genai.GenerateContentResponse) model.Delta {
	var d model.Delta
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return d
	}
	for _, part := range resp.Candidates[0].Content.Parts {
		if part.Thought {
			continue
		}
		if part.Text != "" {
			d.Content += part.Text
		}
		if fc := part.FunctionCall; fc != nil {
			args, err := json.Marshal(fc.Args)
			if err != nil || fc.Args == nil {
				args = []byte("{}")
			}
			id := fc.ID
			if id == "" {
				id = core.NewID()
			}
			d.ToolCalls = append(d.ToolCalls, model.ToolCallDelta{
				Index:     s.next,
				ID:        id,
				Name:      fc.Name,
				Arguments: string(args),
			})
			s.next++
		}
	}
	return d
}

func (s *callState) finishReason(r genai.FinishReason) string {
	if s.next > 0 {
		return core.FinishReasonToolCalls
	}
	if r == genai.FinishReasonMaxTokens {
		return core.FinishReasonLength
	}
	return core.FinishReasonStop
}

// Stream implements model.Provider.
func (p *Provider) Stream(ctx context.Context, req model.Request) (<-chan model.Delta, <-chan error) {
	out := make(chan model.Delta, 32)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		cfg, err := p.buildConfig(req)
		if err != nil {
			errCh <- p.wrap(err)
			return
		}

		var state callState
		var last genai.FinishReason
		send := func(d model.Delta) bool {
			select {
			case out <- d:
				return true
			case <-ctx.Done():
				errCh <- p.wrap(ctx.Err())
				return false
			}
		}

		for resp, err := range p.client.Models.GenerateContentStream(ctx, p.opts.Model, buildContents(req.Messages), cfg) {
			if err != nil {
				errCh <- p.wrap(err)
				return
			}
			if len(resp.Candidates) > 0 && resp.Candidates[0].FinishReason != "" {
				last = resp.Candidates[0].FinishReason
			}
			if d := state.toDelta(resp); !d.Empty() {
				if !send(d) {
					return
				}
			}
		}
		send(model.Delta{FinishReason: state.finishReason(last)})
	}()

	return out, errCh
}

// Complete implements model.Provider with a single non-streaming request.
func (p *Provider) Complete(ctx context.Context, req model.Request) (model.Response, error) {
	cfg, err := p.buildConfig(req)
	if err != nil {
		return model.Response{}, p.wrap(err)
	}
	resp, err := p.client.Models.GenerateContent(ctx, p.opts.Model, buildContents(req.Messages), cfg)
	if err != nil {
		return model.Response{}, p.wrap(err)
	}

	var state callState
	var acc model.Accumulator
	acc.Add(state.toDelta(resp))
	var reason genai.FinishReason
	if len(resp.Candidates) > 0 {
		reason = resp.Candidates[0].FinishReason
	}
	acc.Add(model.Delta{FinishReason: state.finishReason(reason)})

	out := acc.Response()
	if u := resp.UsageMetadata; u != nil {
		out.Usage = &model.TokenUsage{
			PromptTokens:     int(u.PromptTokenCount),
			CompletionTokens: int(u.CandidatesTokenCount),
			TotalTokens:      int(u.TotalTokenCount),
		}
	}
	return out, nil
}

func (p *Provider) wrap(err error) error {
	return &core.ProviderError{Provider: core.ProviderGemini, Err: err}
}

// Info returns metadata describing this provider.
func (p *Provider) Info() model.Info {
	return model.Info{
		Name:          p.opts.Model,
		Provider:      core.ProviderGemini,
		SupportsTools: true,
	}
}
