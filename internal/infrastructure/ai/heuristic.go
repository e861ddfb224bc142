package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/doeshing/opsagent/internal/domain"
	"github.com/doeshing/opsagent/internal/ports"
)

// heuristicProvider plans from keywords without any network call. It keeps the
// pipeline usable offline and in demos.
type heuristicProvider struct {
	model domain.ModelDefinition
}

func newHeuristicProvider(model domain.ModelDefinition) ports.ReasoningProvider {
	return &heuristicProvider{model: model}
}

func (p *heuristicProvider) Name() string {
	return "heuristic"
}

type heuristicRule struct {
	keywords []string
	actions  []domain.Action
}

var heuristicRules = []heuristicRule{
	{keywords: []string{"disk", "space", "storage"}, actions: []domain.Action{
		{Command: "df -h", Purpose: "Show filesystem usage"},
	}},
	{keywords: []string{"memory", "ram"}, actions: []domain.Action{
		{Command: "free -m", Purpose: "Show memory usage in megabytes"},
	}},
	{keywords: []string{"cpu", "load", "uptime"}, actions: []domain.Action{
		{Command: "uptime", Purpose: "Show load averages"},
		{Command: "top -bn1 | head -15", Purpose: "Show the busiest processes"},
	}},
	{keywords: []string{"docker", "container"}, actions: []domain.Action{
		{Command: "docker ps", Purpose: "List running containers"},
	}},
	{keywords: []string{"nginx"}, actions: []domain.Action{
		{Command: "systemctl status nginx --no-pager", Purpose: "Check the nginx service state"},
	}},
	{keywords: []string{"log", "error"}, actions: []domain.Action{
		{Command: "journalctl -p err -n 50 --no-pager", Purpose: "Show recent error-level journal entries"},
	}},
	{keywords: []string{"port", "listen", "network"}, actions: []domain.Action{
		{Command: "ss -tulpn", Purpose: "List listening sockets"},
	}},
}

func (p *heuristicProvider) CreatePlan(_ context.Context, prompts domain.PromptPair, _ domain.GenerationParams) (string, error) {
	instruction := strings.ToLower(extractInstruction(prompts.User))
	var actions []domain.Action
	var matched []string
	for _, rule := range heuristicRules {
		for _, keyword := range rule.keywords {
			if strings.Contains(instruction, keyword) {
				actions = append(actions, rule.actions...)
				matched = append(matched, keyword)
				break
			}
		}
	}
	thinking := []string{"Offline heuristic planner: no reasoning backend configured."}
	if len(actions) == 0 {
		actions = []domain.Action{{Command: "uname -a", Purpose: "Identify the host"}}
		thinking = append(thinking, "No keyword matched; collecting basic host information.")
	} else {
		thinking = append(thinking, fmt.Sprintf("Matched keywords: %s.", strings.Join(matched, ", ")))
	}

	payload, err := json.Marshal(struct {
		Thinking []string        `json:"thinking"`
		Actions  []domain.Action `json:"actions"`
	}{Thinking: thinking, Actions: actions})
	if err != nil {
		return "", err
	}
	return string(payload), nil
}

func (p *heuristicProvider) CreateAnalysis(_ context.Context, prompts domain.PromptPair, _ domain.GenerationParams) (string, error) {
	var findings []string
	var command string
	for _, line := range strings.Split(prompts.User, "\n") {
		switch {
		case strings.HasPrefix(line, "Command: "):
			command = strings.TrimPrefix(line, "Command: ")
		case strings.HasPrefix(line, "Exit Code: "):
			findings = append(findings, fmt.Sprintf("- `%s` exited with %s", command, strings.TrimPrefix(line, "Exit Code: ")))
		}
	}
	if len(findings) == 0 {
		findings = append(findings, "- No commands were executed")
	}

	var b strings.Builder
	b.WriteString("# Direct Answer\nOffline analysis: review the raw command output above.\n\n")
	b.WriteString("## Findings\n")
	b.WriteString(strings.Join(findings, "\n"))
	b.WriteString("\n\n## Next Steps/Recommendations\n1. Configure a reasoning backend for a full analysis.")
	return b.String(), nil
}

// extractInstruction pulls the task text out of the planner's user prompt so
// prior history does not trigger keywords.
func extractInstruction(userPrompt string) string {
	const marker = "):\n\n"
	const tail = "\n\nPlease analyze"
	text := userPrompt
	if idx := strings.LastIndex(text, tail); idx >= 0 {
		text = text[:idx]
	}
	if idx := strings.LastIndex(text, marker); idx >= 0 {
		text = text[idx+len(marker):]
	}
	return strings.TrimSpace(text)
}
