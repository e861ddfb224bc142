// Package ai adapts hosted and local language models to the ReasoningProvider port.
package ai

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/doeshing/opsagent/internal/domain"
	"github.com/doeshing/opsagent/internal/ports"
)

// Factory builds providers for model definitions. One HTTP client is shared
// across every provider it hands out.
type Factory struct {
	httpClient *http.Client
	keys       *KeyStore
}

// NewFactory creates a factory with the default client timeout.
func NewFactory(keys *KeyStore) *Factory {
	return NewFactoryWithClient(&http.Client{Timeout: domain.DefaultHTTPClientTimeout}, keys)
}

// NewFactoryWithClient lets callers supply the HTTP client (tests, proxies).
func NewFactoryWithClient(client *http.Client, keys *KeyStore) *Factory {
	if keys == nil {
		keys = NewKeyStore()
	}
	return &Factory{httpClient: client, keys: keys}
}

// ForModel implements ports.ProviderFactory.
func (f *Factory) ForModel(model domain.ModelDefinition) (ports.ReasoningProvider, error) {
	kind := ProviderKindFor(model)
	switch kind {
	case domain.ProviderKindOpenAI, domain.ProviderKindQwen, domain.ProviderKindOllama:
		return newHTTPProvider(string(kind), model, f.httpClient, chatCompletionAdapter(kind, f.keys)), nil
	case domain.ProviderKindAnthropic:
		return newHTTPProvider(string(kind), model, f.httpClient, anthropicAdapter(f.keys)), nil
	case domain.ProviderKindHeuristic:
		return newHeuristicProvider(model), nil
	default:
		return nil, fmt.Errorf("unsupported provider kind: %s", kind)
	}
}

// ProviderKindFor honours an explicit provider and otherwise guesses from the
// endpoint and name. Runtime keys must be stored under this kind.
func ProviderKindFor(model domain.ModelDefinition) domain.ProviderKind {
	if model.Provider != "" {
		return model.Provider
	}
	return inferProviderKind(model.Endpoint, model.Name)
}

func inferProviderKind(endpoint string, name string) domain.ProviderKind {
	nameLower := strings.ToLower(name)

	switch {
	case strings.Contains(endpoint, "anthropic.com"), strings.Contains(nameLower, "claude"):
		return domain.ProviderKindAnthropic
	case strings.Contains(endpoint, "qwen"), strings.Contains(nameLower, "qwen"):
		return domain.ProviderKindQwen
	case strings.Contains(nameLower, "ollama"), strings.Contains(endpoint, "11434"), strings.Contains(endpoint, "localhost"):
		return domain.ProviderKindOllama
	default:
		return domain.ProviderKindOpenAI
	}
}

var _ ports.ProviderFactory = (*Factory)(nil)
