package ai

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/doeshing/opsagent/internal/domain"
	"github.com/doeshing/opsagent/internal/ports"
)

const errorBodyLimit = 512

var errEmptyResponse = errors.New("empty response from model")

type httpProvider struct {
	name       string
	model      domain.ModelDefinition
	httpClient *http.Client
	adapter    providerAdapter
}

type providerAdapter struct {
	endpoint      func(domain.ModelDefinition) string
	buildRequest  func(domain.ModelDefinition, domain.PromptPair, domain.GenerationParams) ([]byte, error)
	parseResponse func([]byte) (string, error)
	setHeaders    func(*http.Request, domain.ModelDefinition) error
}

func newHTTPProvider(name string, model domain.ModelDefinition, client *http.Client, adapter providerAdapter) ports.ReasoningProvider {
	return &httpProvider{
		name:       name,
		model:      model,
		httpClient: client,
		adapter:    adapter,
	}
}

func (p *httpProvider) Name() string {
	return p.name
}

// CreatePlan asks for JSON output where the backend supports it.
func (p *httpProvider) CreatePlan(ctx context.Context, prompts domain.PromptPair, params domain.GenerationParams) (string, error) {
	return p.complete(ctx, prompts, params)
}

// CreateAnalysis always requests free text.
func (p *httpProvider) CreateAnalysis(ctx context.Context, prompts domain.PromptPair, params domain.GenerationParams) (string, error) {
	params.JSONOutput = false
	return p.complete(ctx, prompts, params)
}

func (p *httpProvider) complete(ctx context.Context, prompts domain.PromptPair, params domain.GenerationParams) (string, error) {
	requestBody, err := p.adapter.buildRequest(p.model, prompts, params)
	if err != nil {
		return "", fmt.Errorf("%s: build request: %w", p.name, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.adapter.endpoint(p.model), bytes.NewReader(requestBody))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("content-type", "application/json")
	if err := p.adapter.setHeaders(httpReq, p.model); err != nil {
		return "", err
	}

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("%s: %w", p.name, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%s: read response: %w", p.name, err)
	}
	if resp.StatusCode >= 400 {
		snippet := strings.TrimSpace(string(body))
		if len(snippet) > errorBodyLimit {
			snippet = snippet[:errorBodyLimit]
		}
		return "", fmt.Errorf("%s: %s: %s", p.name, resp.Status, snippet)
	}

	content, err := p.adapter.parseResponse(body)
	if err != nil {
		return "", fmt.Errorf("%s: decode response: %w", p.name, err)
	}
	if strings.TrimSpace(content) == "" {
		return "", fmt.Errorf("%s: %w", p.name, errEmptyResponse)
	}
	return content, nil
}
