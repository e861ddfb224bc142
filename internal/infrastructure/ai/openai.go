package ai

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/doeshing/opsagent/internal/domain"
)

const (
	openAIBaseURL = "https://api.openai.com/v1"
	qwenBaseURL   = "https://api.qwen.ai/v1"
	ollamaBaseURL = "http://localhost:11434/v1"
)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatCompletionRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	Temperature    float64         `json:"temperature"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// chatCompletionAdapter covers every OpenAI-compatible backend. Qwen and
// Ollama differ only in base URL and credentials.
func chatCompletionAdapter(kind domain.ProviderKind, keys *KeyStore) providerAdapter {
	base := openAIBaseURL
	switch kind {
	case domain.ProviderKindQwen:
		base = qwenBaseURL
	case domain.ProviderKindOllama:
		base = ollamaBaseURL
	}
	envVar := defaultKeyEnv[kind]

	return providerAdapter{
		endpoint: func(model domain.ModelDefinition) string {
			return joinEndpoint(valueOrDefault(model.Endpoint, base), "/chat/completions")
		},
		buildRequest: buildChatCompletionRequest,
		parseResponse: func(body []byte) (string, error) {
			var response chatCompletionResponse
			if err := json.Unmarshal(body, &response); err != nil {
				return "", err
			}
			if len(response.Choices) == 0 {
				return "", nil
			}
			return strings.TrimSpace(response.Choices[0].Message.Content), nil
		},
		setHeaders: func(req *http.Request, model domain.ModelDefinition) error {
			runtimeKey := keys.Get(kind)
			if runtimeKey == "" && envVar == "" && model.AuthEnvVar == "" {
				return nil
			}
			apiKey := resolveAuth(runtimeKey, model.AuthEnvVar, envVar)
			if apiKey == "" {
				if envVar == "" {
					return nil
				}
				return missingKeyError(model.AuthEnvVar, envVar)
			}
			req.Header.Set("authorization", "Bearer "+apiKey)
			return nil
		},
	}
}

func buildChatCompletionRequest(model domain.ModelDefinition, prompts domain.PromptPair, params domain.GenerationParams) ([]byte, error) {
	request := chatCompletionRequest{
		Model: valueOrDefault(model.ModelID, model.Name),
		Messages: []chatMessage{
			{Role: "system", Content: prompts.System},
			{Role: "user", Content: prompts.User},
		},
		MaxTokens:   params.MaxTokens,
		Temperature: params.Temperature,
	}
	if params.JSONOutput {
		request.ResponseFormat = &responseFormat{Type: "json_object"}
	}
	return json.Marshal(request)
}
