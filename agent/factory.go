package agent

import (
	"context"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"

	"github.com/langswarm/langswarm/core"
	"github.com/langswarm/langswarm/model"
	"github.com/langswarm/langswarm/model/anthropic"
	"github.com/langswarm/langswarm/model/gemini"
	"github.com/langswarm/langswarm/model/openai"
)

// NewProvider builds the provider adapter described by a normalized config.
// The mock provider is a model.ScriptedProvider that echoes its input.
func NewProvider(ctx context.Context, cfg Config) (model.Provider, error) {
	switch cfg.Provider {
	case core.ProviderOpenAI:
		return openai.New(func(o *openai.Options) {
			o.Model = cfg.Model
			o.APIKey = cfg.APIKey
			o.BaseURL = cfg.Endpoint
			if cfg.Temperature != nil {
				o.Temperature = *cfg.Temperature
			}
			if cfg.MaxTokens > 0 {
				o.MaxCompletionTokens = int64(cfg.MaxTokens)
			}
		}), nil
	case core.ProviderAzureOpenAI:
		return openai.NewAzure(func(o *openai.AzureOptions) {
			o.Model = cfg.Model
			o.APIKey = cfg.APIKey
			o.Endpoint = cfg.Endpoint
			if cfg.APIVersion != "" {
				o.APIVersion = cfg.APIVersion
			}
			if cfg.Temperature != nil {
				o.Temperature = *cfg.Temperature
			}
			if cfg.MaxTokens > 0 {
				o.MaxCompletionTokens = int64(cfg.MaxTokens)
			}
		})
	case core.ProviderAnthropic:
		return anthropic.New(func(o *anthropic.Options) {
			o.Model = anthropicsdk.Model(cfg.Model)
			o.APIKey = cfg.APIKey
			if cfg.Temperature != nil {
				o.Temperature = *cfg.Temperature
			}
			if cfg.MaxTokens > 0 {
				o.MaxTokens = int64(cfg.MaxTokens)
			}
		}), nil
	case core.ProviderGemini:
		return gemini.New(ctx, func(o *gemini.Options) {
			o.Model = cfg.Model
			o.APIKey = cfg.APIKey
			if cfg.Temperature != nil {
				o.Temperature = float32(*cfg.Temperature)
			}
			if cfg.MaxTokens > 0 {
				o.MaxOutputTokens = int32(cfg.MaxTokens)
			}
		})
	case core.ProviderMock:
		return model.NewScriptedProvider(cfg.Model), nil
	default:
		return nil, &core.ConfigError{Field: "provider", Message: "unsupported provider " + cfg.Provider.String()}
	}
}
