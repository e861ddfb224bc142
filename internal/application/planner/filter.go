package planner

import (
	"strings"

	"github.com/doeshing/opsagent/internal/domain"
)

// ConnectionWarning is appended to the thinking list when FilterActions drops anything.
const ConnectionWarning = "WARNING: Some SSH or connection commands were removed. The AI agent is already connected to the server and should only use local commands."

// FilterActions drops every action that would open a nested remote connection:
// commands containing "ssh", an "@" (user@host syntax), or the target's own name,
// all compared case-insensitively. It returns the kept actions in their original
// order and the number dropped.
func FilterActions(actions []domain.Action, targetName string) ([]domain.Action, int) {
	kept := make([]domain.Action, 0, len(actions))
	for _, action := range actions {
		if IsConnectionCommand(action.Command, targetName) {
			continue
		}
		kept = append(kept, action)
	}
	return kept, len(actions) - len(kept)
}

// IsConnectionCommand reports whether command violates the connection rule.
func IsConnectionCommand(command, targetName string) bool {
	cmd := strings.ToLower(command)
	if strings.Contains(cmd, "ssh") || strings.Contains(cmd, "@") {
		return true
	}
	name := strings.ToLower(strings.TrimSpace(targetName))
	return name != "" && strings.Contains(cmd, name)
}
