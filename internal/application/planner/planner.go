// Package planner turns an instruction into an ordered, safety-filtered list of
// shell commands using a reasoning provider.
package planner

import (
	"context"
	"errors"
	"fmt"

	"github.com/doeshing/opsagent/internal/domain"
	"github.com/doeshing/opsagent/internal/ports"
)

// Plan is the planner's output: rationale plus the actions that passed the filter.
type Plan struct {
	Thinking []string
	Actions  []domain.Action
	Dropped  int
}

// Request carries everything one planning call needs.
type Request struct {
	Instruction string
	Target      domain.Target
	History     []domain.Interaction
	Model       domain.ModelDefinition
}

// Service builds planning prompts, calls the provider, and filters its output.
type Service struct {
	ProviderFactory ports.ProviderFactory
	Logger          ports.Logger
}

// Plan returns a filtered plan or a *domain.PlanningError.
func (s *Service) Plan(ctx context.Context, req Request) (Plan, error) {
	if s.ProviderFactory == nil || s.Logger == nil {
		return Plan{}, &domain.PlanningError{Err: errors.New("planner dependencies not satisfied")}
	}
	if req.Target.Name == "" {
		return Plan{}, &domain.PlanningError{Err: errors.New(domain.TargetNotFoundMessage(req.Target.Name))}
	}

	provider, err := s.ProviderFactory.ForModel(req.Model)
	if err != nil {
		return Plan{}, &domain.PlanningError{Err: fmt.Errorf("provider init: %w", err)}
	}

	userPrompt, err := renderUserPrompt(userPromptData{
		Identity:    req.Target.Identity(),
		History:     domain.FormatHistoryContext(req.History),
		Instruction: req.Instruction,
	})
	if err != nil {
		return Plan{}, &domain.PlanningError{Err: fmt.Errorf("render prompt: %w", err)}
	}

	s.Logger.Info("requesting plan", map[string]interface{}{
		"provider": provider.Name(),
		"model":    req.Model.ModelID,
		"target":   req.Target.Name,
	})

	raw, err := provider.CreatePlan(ctx, domain.PromptPair{System: systemDirective, User: userPrompt}, planParams(req.Model))
	if err != nil {
		return Plan{}, &domain.PlanningError{Err: err}
	}

	payload, err := parsePlan(raw)
	if err != nil {
		s.Logger.Debug("unparsable plan", map[string]interface{}{"raw": raw})
		return Plan{}, &domain.PlanningError{Err: err}
	}

	kept, dropped := FilterActions(payload.Actions, req.Target.Name)
	thinking := append([]string(nil), payload.Thinking...)
	if dropped > 0 {
		thinking = append(thinking, ConnectionWarning)
		s.Logger.Warn("dropped connection commands", map[string]interface{}{
			"target":  req.Target.Name,
			"dropped": dropped,
		})
	}

	return Plan{Thinking: thinking, Actions: kept, Dropped: dropped}, nil
}

func planParams(model domain.ModelDefinition) domain.GenerationParams {
	params := domain.GenerationParams{
		MaxTokens:   model.MaxTokens,
		Temperature: domain.DefaultPlanTemperature,
		JSONOutput:  true,
	}
	if params.MaxTokens == 0 {
		params.MaxTokens = domain.DefaultPlanMaxTokens
	}
	if model.Temperature != nil {
		params.Temperature = *model.Temperature
	}
	return params
}
