// Package analyzer turns execution results into a markdown report.
package analyzer

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"text/template"

	"github.com/doeshing/opsagent/internal/domain"
	"github.com/doeshing/opsagent/internal/ports"
)

const systemPrompt = `You are a DevOps AI assistant that analyzes command results and provides clear, actionable insights.

Your analysis should:
1. Directly answer the user's original question/request
2. Be specific about what was found or accomplished
3. Highlight any important findings or issues
4. Provide clear next steps or recommendations if needed

Format your response using Markdown with this structure:

# Direct Answer
[Clearly state whether the original request was fulfilled]

## Findings
- [Discovery 1]
- [Discovery 2]
...

## Issues (if any)
- [Problem 1]
- [Problem 2]
...

## Next Steps/Recommendations
1. [Action step 1]
2. [Action step 2]
...

Use proper Markdown formatting:
- Use ` + "`code`" + ` for commands and technical terms
- Use **bold** for emphasis
- Use > for important notes
- Use --- for separators where needed
- Use proper heading levels (#, ##, ###)`

var userTemplate = template.Must(template.New("analysis").Funcs(template.FuncMap{
	"orDefault": func(value, fallback string) string {
		if strings.TrimSpace(value) == "" {
			return fallback
		}
		return value
	},
	"join": strings.Join,
}).Parse(`{{if .History}}Previous Interactions:
{{.History}}

{{end}}Original Request: "{{.Instruction}}"

Commands Executed and Results:
{{range .Steps}}
Command: {{.Command}}
Purpose: {{orDefault .Purpose "Not specified"}}
Output: {{orDefault .Output "No output"}}
Error: {{orDefault .Error "No errors"}}
Exit Code: {{.ExitCode}}
{{end}}{{if .Aborted}}
Execution stopped early: {{.Aborted}}
{{end}}{{with .Interrupted}}
Output captured before the failure of "{{.Command}}":
Output: {{orDefault .Output "No output"}}
Error: {{orDefault .Error "No errors"}}
{{end}}
Chain of Thought Analysis:
{{join .Thinking "\n"}}

Please provide a comprehensive analysis that:
1. Uses the context from previous interactions if relevant
2. Directly addresses the original request
3. Explains what was found and any changes from previous states
4. Provides actionable insights based on the complete context

Remember to format your response according to the structure specified above.`))

var errNoFactory = errors.New("analyzer has no provider factory")

type step struct {
	Command  string
	Purpose  string
	Output   string
	Error    string
	ExitCode string
}

type promptData struct {
	History     string
	Instruction string
	Steps       []step
	Thinking    []string
	Aborted     string
	Interrupted *step
}

// Request carries one analysis call's inputs.
type Request struct {
	Instruction string
	Thinking    []string
	Actions     []domain.Action
	Results     []domain.ExecutionResult
	History     []domain.Interaction
	Model       domain.ModelDefinition
	// AbortReason is set when execution stopped before every action ran.
	AbortReason string
	// Interrupted is the partial output of the action that failed, if any.
	Interrupted *domain.ExecutionResult
}

// Service produces the final report. It never returns an error.
type Service struct {
	ProviderFactory ports.ProviderFactory
	Logger          ports.Logger
}

// Analyze returns the report text; provider failures become the report itself.
func (s *Service) Analyze(ctx context.Context, req Request) string {
	analysis, err := s.analyze(ctx, req)
	if err != nil {
		analysisErr := &domain.AnalysisError{Err: err}
		if s.Logger != nil {
			s.Logger.Error("analysis failed", err, map[string]interface{}{"model": req.Model.Name})
		}
		return analysisErr.Error()
	}
	return analysis
}

func (s *Service) analyze(ctx context.Context, req Request) (string, error) {
	if s.ProviderFactory == nil {
		return "", errNoFactory
	}
	provider, err := s.ProviderFactory.ForModel(req.Model)
	if err != nil {
		return "", err
	}

	userPrompt, err := renderUserPrompt(req)
	if err != nil {
		return "", err
	}

	params := domain.GenerationParams{
		MaxTokens:   req.Model.MaxTokens,
		Temperature: domain.DefaultAnalysisTemperature,
	}
	if params.MaxTokens == 0 {
		params.MaxTokens = domain.DefaultAnalysisMaxTokens
	}

	return provider.CreateAnalysis(ctx, domain.PromptPair{System: systemPrompt, User: userPrompt}, params)
}

func renderUserPrompt(req Request) (string, error) {
	data := promptData{
		History:     domain.FormatHistoryContext(req.History),
		Instruction: req.Instruction,
		Thinking:    req.Thinking,
		Aborted:     req.AbortReason,
	}
	if partial := req.Interrupted; partial != nil {
		data.Interrupted = &step{Command: partial.Command, Output: partial.Output, Error: partial.Error}
	}
	for i, result := range req.Results {
		purpose := ""
		if i < len(req.Actions) {
			purpose = req.Actions[i].Purpose
		}
		data.Steps = append(data.Steps, step{
			Command:  result.Command,
			Purpose:  purpose,
			Output:   result.Output,
			Error:    result.Error,
			ExitCode: result.ExitCodeString(),
		})
	}

	var buf bytes.Buffer
	if err := userTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
