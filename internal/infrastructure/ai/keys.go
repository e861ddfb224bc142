package ai

import (
	"sort"
	"sync"

	"github.com/doeshing/opsagent/internal/domain"
)

// defaultKeyEnv names the conventional API key variable per backend. Backends
// missing from the map need no key.
var defaultKeyEnv = map[domain.ProviderKind]string{
	domain.ProviderKindOpenAI:    "OPENAI_API_KEY",
	domain.ProviderKindAnthropic: "ANTHROPIC_API_KEY",
	domain.ProviderKindQwen:      "QWEN_API_KEY",
}

// KeyStore holds API keys supplied at runtime. They live in process memory only
// and take precedence over environment variables.
type KeyStore struct {
	mu   sync.RWMutex
	keys map[domain.ProviderKind]string
}

// NewKeyStore returns an empty store.
func NewKeyStore() *KeyStore {
	return &KeyStore{keys: make(map[domain.ProviderKind]string)}
}

// Set records the key for a provider kind. An empty key removes the override.
func (k *KeyStore) Set(kind domain.ProviderKind, key string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if key == "" {
		delete(k.keys, kind)
		return
	}
	k.keys[kind] = key
}

// Get returns the override for kind, if any.
func (k *KeyStore) Get(kind domain.ProviderKind) string {
	if k == nil {
		return ""
	}
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.keys[kind]
}

// Configured lists provider kinds that have an override.
func (k *KeyStore) Configured() []domain.ProviderKind {
	k.mu.RLock()
	defer k.mu.RUnlock()
	kinds := make([]domain.ProviderKind, 0, len(k.keys))
	for kind := range k.keys {
		kinds = append(kinds, kind)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// Check reports whether an API key is available for model, either set at
// runtime or present in the environment.
func (k *KeyStore) Check(model domain.ModelDefinition) error {
	kind := ProviderKindFor(model)
	envVar, needsKey := defaultKeyEnv[kind]
	if !needsKey {
		return nil
	}
	if resolveAuth(k.Get(kind), model.AuthEnvVar, envVar) == "" {
		return missingKeyError(model.AuthEnvVar, envVar)
	}
	return nil
}
