package planner

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/doeshing/opsagent/internal/domain"
)

var errNoJSON = errors.New("failed to parse AI response: no JSON object found")

type planPayload struct {
	Thinking []string        `json:"thinking"`
	Actions  []domain.Action `json:"actions"`
}

// parsePlan extracts the plan object from raw provider text. Accepted shapes:
// a ```json fenced block, a bare JSON object, or the widest {...} span.
func parsePlan(raw string) (planPayload, error) {
	candidate := extractJSON(raw)
	if candidate == "" {
		return planPayload{}, errNoJSON
	}

	var payload planPayload
	if err := json.Unmarshal([]byte(candidate), &payload); err != nil {
		return planPayload{}, fmt.Errorf("failed to parse AI response: %w", err)
	}

	actions := payload.Actions[:0]
	for _, action := range payload.Actions {
		action.Command = strings.TrimSpace(action.Command)
		if action.Command == "" {
			continue
		}
		actions = append(actions, action)
	}
	payload.Actions = actions
	return payload, nil
}

func extractJSON(raw string) string {
	content := strings.TrimSpace(raw)
	if block := extractFencedBlock(content); block != "" {
		return block
	}
	if strings.HasPrefix(content, "{") && json.Valid([]byte(content)) {
		return content
	}
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start == -1 || end <= start {
		return ""
	}
	return content[start : end+1]
}

func extractFencedBlock(content string) string {
	start := strings.Index(content, "```")
	if start == -1 {
		return ""
	}
	suffix := content[start+3:]
	end := strings.Index(suffix, "```")
	if end == -1 {
		return ""
	}
	block := suffix[:end]
	if nl := strings.Index(block, "\n"); nl != -1 && !strings.Contains(block[:nl], "{") {
		block = block[nl+1:]
	}
	block = strings.TrimSpace(block)
	if !strings.HasPrefix(block, "{") {
		return ""
	}
	return block
}
