package domain_test

import (
	"strings"
	"testing"

	"github.com/doeshing/opsagent/internal/domain"
)

func TestFormatHistoryContext(t *testing.T) {
	if got := domain.FormatHistoryContext(nil); got != "" {
		t.Fatalf("expected empty context, got %q", got)
	}
	got := domain.FormatHistoryContext([]domain.Interaction{{
		Instruction: "check disk",
		Thinking:    []string{"a", "b"},
		Actions:     []domain.Action{{Command: "df -h"}, {Command: "du -sh /var"}},
		Results:     []domain.ExecutionResult{{Output: "40%"}},
		Analysis:    "fine",
	}})
	for _, want := range []string{
		"User: check disk",
		"AI Thought Process: a\nb",
		"Commands Executed: df -h, du -sh /var",
		"Results: 40%",
		"Analysis: fine",
		"---",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("context missing %q:\n%s", want, got)
		}
	}
}

func TestExitCodeString(t *testing.T) {
	if (domain.ExecutionResult{}).ExitCodeString() != "none" {
		t.Fatal("nil exit code should render as none")
	}
	if (domain.ExecutionResult{ExitCode: domain.IntPtr(2)}).ExitCodeString() != "2" {
		t.Fatal("unexpected exit code rendering")
	}
}
