package core

import (
	"fmt"
	"strings"
)

// ProviderType identifies one member of the closed set of model providers.
type ProviderType string

const (
	ProviderOpenAI      ProviderType = "openai"
	ProviderAnthropic   ProviderType = "anthropic"
	ProviderGemini      ProviderType = "gemini"
	ProviderAzureOpenAI ProviderType = "azure_openai"
	// ProviderMock is an in-process scripted provider for tests and dry runs.
	ProviderMock ProviderType = "mock"
)

// ProviderTypes lists every supported provider.
var ProviderTypes = []ProviderType{
	ProviderOpenAI,
	ProviderAnthropic,
	ProviderGemini,
	ProviderAzureOpenAI,
	ProviderMock,
}

// ParseProviderType resolves a case-insensitive provider name.
func ParseProviderType(name string) (ProviderType, error) {
	p := ProviderType(strings.ToLower(strings.TrimSpace(name)))
	for _, known := range ProviderTypes {
		if p == known {
			return p, nil
		}
	}
	return "", &ConfigError{Field: "provider", Message: fmt.Sprintf("unsupported provider %q", name)}
}

// APIKeyEnv returns the environment variable conventionally holding the API
// key for the provider (e.g. OPENAI_API_KEY). The mock provider needs none.
func (p ProviderType) APIKeyEnv() string {
	if p == ProviderMock || p == "" {
		return ""
	}
	return strings.ToUpper(string(p)) + "_API_KEY"
}

// RequiresAPIKey reports whether construction must resolve an API key.
func (p ProviderType) RequiresAPIKey() bool { return p.APIKeyEnv() != "" }

func (p ProviderType) String() string { return string(p) }
