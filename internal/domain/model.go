// Package domain defines core business entities and value objects for opsagent.
//
// This file contains reasoning model and provider definitions used throughout the
// application. The domain layer is independent of infrastructure concerns.
package domain

// ProviderKind selects the reasoning backend implementation for a model.
type ProviderKind string

const (
	ProviderKindOpenAI    ProviderKind = "openai"
	ProviderKindAnthropic ProviderKind = "anthropic"
	ProviderKindQwen      ProviderKind = "qwen"
	ProviderKindOllama    ProviderKind = "ollama"
	ProviderKindHeuristic ProviderKind = "heuristic"
)

// ModelDefinition describes a reasoning backend declared in the config file.
type ModelDefinition struct {
	Name        string       `yaml:"name" json:"id"`
	DisplayName string       `yaml:"display_name,omitempty" json:"name,omitempty"`
	Provider    ProviderKind `yaml:"provider" json:"provider"`
	Endpoint    string       `yaml:"endpoint,omitempty" json:"-"`
	AuthEnvVar  string       `yaml:"auth_env_var,omitempty" json:"-"`
	ModelID     string       `yaml:"model_id" json:"model"`
	MaxTokens   int          `yaml:"max_tokens,omitempty" json:"max_tokens,omitempty"`
	// Temperature is nil when unset; an explicit 0 is kept.
	Temperature *float64     `yaml:"temperature,omitempty" json:"temperature,omitempty"`
}

// FallbackModel is used when neither the request, the active model, nor the
// default model names a configured entry.
func FallbackModel() ModelDefinition {
	return ModelDefinition{
		Name:        "openai",
		Provider:    ProviderKindOpenAI,
		ModelID:     "gpt-4",
		MaxTokens:   DefaultPlanMaxTokens,
		Temperature: Float64Ptr(DefaultPlanTemperature),
	}
}

// Float64Ptr is a small helper for optional sampling settings.
func Float64Ptr(v float64) *float64 {
	return &v
}

// Label returns a human readable model name.
func (m ModelDefinition) Label() string {
	if m.DisplayName != "" {
		return m.DisplayName
	}
	return m.Name
}

// PromptPair is the two-prompt shape every reasoning backend accepts.
type PromptPair struct {
	System string
	User   string
}

// GenerationParams overrides sampling settings for a single call.
type GenerationParams struct {
	MaxTokens   int
	Temperature float64
	JSONOutput  bool
}
