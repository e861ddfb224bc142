package analyzer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/doeshing/opsagent/internal/domain"
	"github.com/doeshing/opsagent/internal/pkg/logger"
	"github.com/doeshing/opsagent/internal/ports"
)

func TestAnalyzeBuildsPromptFromResults(t *testing.T) {
	provider := &stubProvider{analysis: "# Direct Answer\nYes."}
	svc := &Service{ProviderFactory: stubFactory{provider: provider}, Logger: logger.Nop()}

	got := svc.Analyze(context.Background(), Request{
		Instruction: "check disk space",
		Thinking:    []string{"Step 1: run df"},
		Actions:     []domain.Action{{Command: "df -h", Purpose: "show disk usage"}},
		Results: []domain.ExecutionResult{
			{Command: "df -h", Output: "/dev/sda1 40% /", ExitCode: domain.IntPtr(0)},
		},
		History: []domain.Interaction{{Instruction: "uptime?", Analysis: "up 3 days"}},
	})

	if got != "# Direct Answer\nYes." {
		t.Fatalf("unexpected analysis %q", got)
	}
	prompt := provider.lastPrompts.User
	for _, want := range []string{
		`Original Request: "check disk space"`,
		"Command: df -h",
		"Purpose: show disk usage",
		"Output: /dev/sda1 40% /",
		"Error: No errors",
		"Exit Code: 0",
		"Previous Interactions:",
		"User: uptime?",
		"Step 1: run df",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q\n%s", want, prompt)
		}
	}
	if !strings.Contains(provider.lastPrompts.System, "# Direct Answer") {
		t.Fatal("system prompt must request the report structure")
	}
	if provider.lastParams.MaxTokens != domain.DefaultAnalysisMaxTokens {
		t.Fatalf("unexpected params %+v", provider.lastParams)
	}
}

func TestAnalyzeReportsPartialExecution(t *testing.T) {
	provider := &stubProvider{analysis: "partial"}
	svc := &Service{ProviderFactory: stubFactory{provider: provider}, Logger: logger.Nop()}

	svc.Analyze(context.Background(), Request{
		Instruction: "restart nginx",
		Actions:     []domain.Action{{Command: "nginx -t"}, {Command: "systemctl restart nginx"}},
		Results:     []domain.ExecutionResult{{Command: "nginx -t", ExitCode: domain.IntPtr(0)}},
		AbortReason: "connection refused",
	})

	prompt := provider.lastPrompts.User
	if strings.Contains(prompt, "systemctl restart nginx") {
		t.Fatal("unexecuted action must not appear as a result")
	}
	if !strings.Contains(prompt, "Execution stopped early: connection refused") {
		t.Fatalf("expected abort note, got:\n%s", prompt)
	}
	if !strings.Contains(prompt, "Purpose: Not specified") {
		t.Fatal("expected default purpose")
	}
}

func TestAnalyzeNeverFails(t *testing.T) {
	provider := &stubProvider{err: errors.New("upstream 503")}
	svc := &Service{ProviderFactory: stubFactory{provider: provider}, Logger: logger.Nop()}

	got := svc.Analyze(context.Background(), Request{Instruction: "x"})
	if got != "Error analyzing results: upstream 503" {
		t.Fatalf("unexpected fallback text %q", got)
	}

	factoryErr := &Service{ProviderFactory: stubFactory{err: errors.New("no key")}, Logger: logger.Nop()}
	if got := factoryErr.Analyze(context.Background(), Request{}); !strings.HasPrefix(got, "Error analyzing results:") {
		t.Fatalf("unexpected fallback text %q", got)
	}
}

type stubFactory struct {
	provider ports.ReasoningProvider
	err      error
}

func (f stubFactory) ForModel(domain.ModelDefinition) (ports.ReasoningProvider, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.provider, nil
}

type stubProvider struct {
	analysis    string
	err         error
	lastPrompts domain.PromptPair
	lastParams  domain.GenerationParams
}

func (p *stubProvider) Name() string { return "stub" }

func (p *stubProvider) CreatePlan(context.Context, domain.PromptPair, domain.GenerationParams) (string, error) {
	return "", errors.New("not used")
}

func (p *stubProvider) CreateAnalysis(_ context.Context, prompts domain.PromptPair, params domain.GenerationParams) (string, error) {
	p.lastPrompts = prompts
	p.lastParams = params
	return p.analysis, p.err
}
