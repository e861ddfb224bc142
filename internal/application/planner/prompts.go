package planner

import (
	"bytes"
	"strings"
	"text/template"
)

const systemDirective = `You are a DevOps AI agent that helps manage servers. You need to:
1. Understand the user's instruction
2. Break down the task into a series of steps using Chain of Thought reasoning
3. For each step, determine the exact command to run on the server
4. Explain why each command is necessary

Your output must be in this JSON format:
{
  "thinking": [
    "Step 1: First, I need to...",
    "Step 2: Next, I should...",
    ...
  ],
  "actions": [
    {
      "command": "actual linux command to run",
      "purpose": "explanation of what this command does and why it's needed"
    },
    ...
  ]
}

IMPORTANT RULES:
1. Be precise with your commands. Use standard Linux/Unix commands that would work on most distributions.
2. Do NOT include any ssh or connection commands - the user is already connected to the server.
3. Do NOT use user@host syntax and do NOT use the server name in your commands - use only local commands that would work on the server.
4. Don't use placeholder values - if you need to make assumptions, state them in your thinking.`

var userPromptTemplate = template.Must(template.New("plan").Parse(
	`{{if .History}}Previous Interactions:
{{.History}}

{{end}}I need you to help me with the following task on my server ({{.Identity}}):

{{.Instruction}}

Please analyze this request, break it down using Chain of Thought reasoning, and determine the exact commands needed.
Do NOT include any ssh or connection commands in your response - I'm already connected to the server.`))

type userPromptData struct {
	Identity    string
	History     string
	Instruction string
}

func renderUserPrompt(data userPromptData) (string, error) {
	var buf bytes.Buffer
	if err := userPromptTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return strings.TrimSpace(buf.String()), nil
}
