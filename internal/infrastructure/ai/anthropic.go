package ai

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/doeshing/opsagent/internal/domain"
)

const (
	anthropicBaseURL = "https://api.anthropic.com/v1"
	anthropicVersion = "2023-06-01"
	anthropicModel   = "claude-3-5-sonnet-20241022"
)

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float64            `json:"temperature"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

func anthropicAdapter(keys *KeyStore) providerAdapter {
	return providerAdapter{
		endpoint: func(model domain.ModelDefinition) string {
			return joinEndpoint(valueOrDefault(model.Endpoint, anthropicBaseURL), "/messages")
		},
		buildRequest: buildAnthropicRequest,
		parseResponse: parseAnthropicResponse,
		setHeaders: func(req *http.Request, model domain.ModelDefinition) error {
			envVar := defaultKeyEnv[domain.ProviderKindAnthropic]
			apiKey := resolveAuth(keys.Get(domain.ProviderKindAnthropic), model.AuthEnvVar, envVar)
			if apiKey == "" {
				return missingKeyError(model.AuthEnvVar, envVar)
			}
			req.Header.Set("x-api-key", apiKey)
			req.Header.Set("anthropic-version", anthropicVersion)
			return nil
		},
	}
}

// buildAnthropicRequest has no JSON mode; the plan parser extracts the object
// from fenced or bare text instead.
func buildAnthropicRequest(model domain.ModelDefinition, prompts domain.PromptPair, params domain.GenerationParams) ([]byte, error) {
	request := anthropicRequest{
		Model:       valueOrDefault(model.ModelID, anthropicModel),
		MaxTokens:   valueOrDefaultInt(params.MaxTokens, domain.DefaultPlanMaxTokens),
		Temperature: params.Temperature,
		System:      prompts.System,
		Messages:    []anthropicMessage{{Role: "user", Content: prompts.User}},
	}
	return json.Marshal(request)
}

func parseAnthropicResponse(body []byte) (string, error) {
	var response anthropicResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return "", err
	}
	var parts []string
	for _, block := range response.Content {
		if block.Type == "" || block.Type == "text" {
			parts = append(parts, block.Text)
		}
	}
	return strings.TrimSpace(strings.Join(parts, "")), nil
}
