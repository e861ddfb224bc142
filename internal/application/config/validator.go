// Package config validates configuration before the pipeline starts.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/doeshing/opsagent/internal/domain"
)

// Validate ensures config structure is consistent.
func Validate(cfg domain.Config) error {
	if len(cfg.Models) == 0 {
		return errors.New("at least one model must be configured")
	}
	seen := make(map[string]bool, len(cfg.Models))
	for _, model := range cfg.Models {
		if err := validateModel(model); err != nil {
			return err
		}
		if seen[model.Name] {
			return fmt.Errorf("model %s is declared twice", model.Name)
		}
		seen[model.Name] = true
	}
	if err := cfg.ValidateConsistency(); err != nil {
		return err
	}
	if err := validateExecution(cfg.Execution); err != nil {
		return err
	}
	if err := validateHistory(cfg.History); err != nil {
		return err
	}
	return nil
}

func validateModel(model domain.ModelDefinition) error {
	if model.Name == "" {
		return errors.New("models[].name must be set")
	}
	switch model.Provider {
	case "", domain.ProviderKindOpenAI, domain.ProviderKindAnthropic, domain.ProviderKindQwen,
		domain.ProviderKindOllama, domain.ProviderKindHeuristic:
	default:
		return fmt.Errorf("model %s: unknown provider %s", model.Name, model.Provider)
	}
	if model.MaxTokens < 0 {
		return fmt.Errorf("model %s: max_tokens must be >= 0", model.Name)
	}
	if t := model.Temperature; t != nil && (*t < 0 || *t > 2) {
		return fmt.Errorf("model %s: temperature must be between 0 and 2", model.Name)
	}
	return nil
}

func validateExecution(exec domain.ExecutionSettings) error {
	for name, value := range map[string]string{
		"execution.command_timeout":     exec.CommandTimeout,
		"execution.connect_timeout":     exec.ConnectTimeout,
		"execution.instruction_timeout": exec.InstructionTimeout,
	} {
		if err := validateDuration(name, value); err != nil {
			return err
		}
	}
	return nil
}

func validateHistory(history domain.HistorySettings) error {
	if history.RecentInteractions < 0 {
		return fmt.Errorf("history.recent_interactions must be >= 0")
	}
	return validateDuration("history.grace_window", history.GraceWindow)
}

func validateDuration(name, value string) error {
	if value == "" {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("%s invalid: %w", name, err)
	}
	if d < 0 {
		return fmt.Errorf("%s must not be negative", name)
	}
	return nil
}
