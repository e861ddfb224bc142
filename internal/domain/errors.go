package domain

import (
	"errors"
	"fmt"
)

// ValidationError rejects a malformed inbound request before any work starts.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// PlanningError aborts an instruction before anything executes.
type PlanningError struct {
	Err error
}

func (e *PlanningError) Error() string { return fmt.Sprintf("Failed to plan actions: %v", e.Err) }
func (e *PlanningError) Unwrap() error { return e.Err }

// ConnectionError is a transport-level connect or authentication failure.
type ConnectionError struct {
	Target string
	Err    error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("Failed to execute command: connect to %s: %v", e.Target, e.Err)
}
func (e *ConnectionError) Unwrap() error { return e.Err }

// CommandDispatchError means the remote exec request failed, which is distinct
// from a command that ran and exited non-zero.
type CommandDispatchError struct {
	Command string
	Err     error
}

func (e *CommandDispatchError) Error() string {
	return fmt.Sprintf("Failed to execute command: %s: %v", e.Command, e.Err)
}
func (e *CommandDispatchError) Unwrap() error { return e.Err }

// AnalysisError is never surfaced to clients; it is folded into the report text.
type AnalysisError struct {
	Err error
}

func (e *AnalysisError) Error() string { return fmt.Sprintf("Error analyzing results: %v", e.Err) }
func (e *AnalysisError) Unwrap() error { return e.Err }

// ErrTargetNotFound is returned by registries for unknown names.
var ErrTargetNotFound = errors.New("target not found")

// TargetNotFoundMessage is the client-facing text for an unknown target.
func TargetNotFoundMessage(name string) string {
	return fmt.Sprintf("Server %s not found", name)
}

// IsTransportError reports whether err aborts the remaining actions.
func IsTransportError(err error) bool {
	var connErr *ConnectionError
	var dispatchErr *CommandDispatchError
	return errors.As(err, &connErr) || errors.As(err, &dispatchErr)
}
