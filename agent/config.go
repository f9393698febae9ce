package agent

import (
	"fmt"
	"slices"
	"strings"

	"github.com/langswarm/langswarm/core"
)

// Config is the immutable description of an agent. New stores a copy and
// Agent.Config returns a copy, so callers may reuse or mutate their value
// freely.
type Config struct {
	Provider     core.ProviderType `json:"provider"`
	Model        string            `json:"model"`
	APIKey       string            `json:"-"`
	SystemPrompt string            `json:"system_prompt,omitempty"`
	// Temperature overrides the provider default when set.
	Temperature *float64 `json:"temperature,omitempty"`
	// MaxTokens overrides the provider default output limit when positive.
	MaxTokens int  `json:"max_tokens,omitempty"`
	Streaming bool `json:"streaming"`
	// ToolsEnabled binds tools to the agent. With an empty Tools list every
	// tool of the tool source is bound.
	ToolsEnabled bool     `json:"tools_enabled"`
	Tools        []string `json:"tools,omitempty"`
	// Endpoint is the Azure OpenAI resource endpoint, or a base URL override
	// for OpenAI compatible servers.
	Endpoint   string `json:"endpoint,omitempty"`
	APIVersion string `json:"api_version,omitempty"`
	// UseDefaultCredential lets azure_openai authenticate through the Azure
	// credential chain instead of an API key.
	UseDefaultCredential bool `json:"use_default_credential,omitempty"`
}

// Clone returns a deep copy of c.
func (c Config) Clone() Config {
	out := c
	out.Tools = slices.Clone(c.Tools)
	if c.Temperature != nil {
		t := *c.Temperature
		out.Temperature = &t
	}
	return out
}

// normalize validates c in place: the provider name is canonicalized and the
// API key is resolved from the environment when not given explicitly.
func (c *Config) normalize(getenv func(string) string) error {
	pt, err := core.ParseProviderType(string(c.Provider))
	if err != nil {
		return err
	}
	c.Provider = pt

	c.Model = strings.TrimSpace(c.Model)
	if c.Model == "" {
		return &core.ConfigError{Field: "model", Message: "model is required"}
	}

	if c.Temperature != nil && (*c.Temperature < 0 || *c.Temperature > 2) {
		return &core.ConfigError{Field: "temperature", Message: fmt.Sprintf("must be within [0, 2], got %g", *c.Temperature)}
	}

	if pt == core.ProviderAzureOpenAI && c.Endpoint == "" {
		return &core.ConfigError{Field: "endpoint", Message: "azure_openai requires an endpoint"}
	}

	if c.APIKey == "" && pt.RequiresAPIKey() {
		c.APIKey = getenv(pt.APIKeyEnv())
		if c.APIKey == "" && !(pt == core.ProviderAzureOpenAI && c.UseDefaultCredential) {
			return &core.ConfigError{
				Field:   "api_key",
				Message: fmt.Sprintf("no api key for provider %s: set api_key or %s", pt, pt.APIKeyEnv()),
			}
		}
	}

	return nil
}
