package domain

import (
	"fmt"
	"strings"
	"time"
)

// Action is one planned shell command plus the rationale for running it.
type Action struct {
	Command string `json:"command"`
	Purpose string `json:"purpose"`
}

// ExecutionResult is the outcome of one Action on the remote host.
// ExitCode is nil when the transport failed or the remote side exited without a status.
type ExecutionResult struct {
	Command    string `json:"command"`
	Output     string `json:"output"`
	Error      string `json:"error"`
	ExitCode   *int   `json:"exitCode"`
	DurationMS int64  `json:"durationMs,omitempty"`
}

// ExitCodeString renders the exit code for prompts and terminals.
func (r ExecutionResult) ExitCodeString() string {
	if r.ExitCode == nil {
		return "none"
	}
	return fmt.Sprintf("%d", *r.ExitCode)
}

// Interaction is the immutable record of one instruction.
type Interaction struct {
	Instruction string            `json:"instruction"`
	Target      string            `json:"serverName"`
	Model       string            `json:"model,omitempty"`
	Timestamp   time.Time         `json:"timestamp"`
	Thinking    []string          `json:"thinking"`
	Actions     []Action          `json:"actions"`
	Results     []ExecutionResult `json:"results"`
	Analysis    string            `json:"analysis"`
	Error       string            `json:"error,omitempty"`
	// Interrupted holds whatever the failing action printed before the
	// transport gave out. It is not part of Results.
	Interrupted *ExecutionResult `json:"interrupted,omitempty"`
}

// Aborted reports whether execution stopped before every action ran.
func (i Interaction) Aborted() bool {
	return i.Error != ""
}

// Clone returns a deep copy so callers can't mutate stored history.
func (i Interaction) Clone() Interaction {
	out := i
	out.Thinking = append([]string(nil), i.Thinking...)
	out.Actions = append([]Action(nil), i.Actions...)
	out.Results = make([]ExecutionResult, len(i.Results))
	for idx, result := range i.Results {
		if result.ExitCode != nil {
			code := *result.ExitCode
			result.ExitCode = &code
		}
		out.Results[idx] = result
	}
	if i.Interrupted != nil {
		partial := *i.Interrupted
		if partial.ExitCode != nil {
			code := *partial.ExitCode
			partial.ExitCode = &code
		}
		out.Interrupted = &partial
	}
	return out
}

// FormatHistoryContext condenses prior interactions into prompt context.
func FormatHistoryContext(history []Interaction) string {
	if len(history) == 0 {
		return ""
	}
	blocks := make([]string, 0, len(history))
	for _, interaction := range history {
		commands := make([]string, 0, len(interaction.Actions))
		for _, action := range interaction.Actions {
			commands = append(commands, action.Command)
		}
		outputs := make([]string, 0, len(interaction.Results))
		for _, result := range interaction.Results {
			outputs = append(outputs, result.Output)
		}
		if partial := interaction.Interrupted; partial != nil && partial.Output != "" {
			outputs = append(outputs, partial.Output)
		}
		var b strings.Builder
		fmt.Fprintf(&b, "User: %s\n", interaction.Instruction)
		fmt.Fprintf(&b, "AI Thought Process: %s\n", strings.Join(interaction.Thinking, "\n"))
		fmt.Fprintf(&b, "Commands Executed: %s\n", strings.Join(commands, ", "))
		fmt.Fprintf(&b, "Results: %s\n", strings.Join(outputs, "\n"))
		fmt.Fprintf(&b, "Analysis: %s\n", interaction.Analysis)
		b.WriteString("---")
		blocks = append(blocks, b.String())
	}
	return strings.Join(blocks, "\n")
}

// IntPtr is a small helper for building exit codes.
func IntPtr(v int) *int {
	return &v
}

// ArchivedInteraction is an Interaction as read back from the durable archive.
type ArchivedInteraction struct {
	SessionID string `json:"sessionId"`
	Interaction
}
