package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/doeshing/opsagent/internal/domain"
	"github.com/doeshing/opsagent/internal/ports"
)

// TerminalSink renders agent progress for a one-shot run. Error events are
// not printed: the failing command returns the same message and main prints it.
type TerminalSink struct {
	mu      sync.Mutex
	out     io.Writer
	spinner *Spinner
}

// NewTerminalSink writes to out. The spinner only runs when animate is set,
// which callers tie to out being a terminal.
func NewTerminalSink(out io.Writer, animate bool) *TerminalSink {
	sink := &TerminalSink{out: out}
	if animate {
		sink.spinner = NewSpinner(out)
	}
	return sink
}

// Send implements ports.EventSink.
func (s *TerminalSink) Send(_ context.Context, envelope domain.Envelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopSpinner()

	update := envelope.Update
	if update == nil {
		return nil
	}
	switch update.Type {
	case domain.UpdateThinking, domain.UpdateAnalyzing:
		if s.spinner != nil {
			s.spinner.Start(update.Message)
		} else {
			fmt.Fprintln(s.out, update.Message)
		}
	case domain.UpdateThinkingComplete:
		fmt.Fprintln(s.out, "Plan:")
		for _, step := range update.Thinking {
			fmt.Fprintf(s.out, "  - %s\n", step)
		}
	case domain.UpdateExecuting:
		fmt.Fprintf(s.out, "\n$ %s\n", update.Command)
		if update.Risk != nil && update.Risk.Elevated() {
			fmt.Fprintf(s.out, "  [%s risk] %s\n", strings.ToUpper(string(update.Risk.Level)), strings.Join(update.Risk.Reasons, "; "))
		}
	case domain.UpdateExecutionResult:
		renderResult(s.out, update.Result)
	case domain.UpdateComplete:
		fmt.Fprintf(s.out, "\n%s\n", strings.TrimSpace(update.Analysis))
	}
	return nil
}

// Close stops any running animation.
func (s *TerminalSink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopSpinner()
}

func (s *TerminalSink) stopSpinner() {
	if s.spinner != nil {
		s.spinner.Stop()
	}
}

func renderResult(out io.Writer, result *domain.ExecutionResult) {
	if result == nil {
		return
	}
	for _, line := range strings.Split(strings.TrimRight(result.Output, "\n"), "\n") {
		if line != "" {
			fmt.Fprintf(out, "  %s\n", line)
		}
	}
	if result.Error != "" {
		fmt.Fprintf(out, "  stderr: %s\n", strings.TrimSpace(result.Error))
	}
	fmt.Fprintf(out, "  exit %s (%dms)\n", result.ExitCodeString(), result.DurationMS)
}

var _ ports.EventSink = (*TerminalSink)(nil)
