package domain

import (
	"fmt"
	"time"
)

// FindModelByName searches for a model by its name
// Returns the model definition and true if found, empty model and false otherwise
func (c *Config) FindModelByName(name string) (ModelDefinition, bool) {
	if name == "" {
		return ModelDefinition{}, false
	}
	for _, model := range c.Models {
		if model.Name == name {
			return model, true
		}
	}
	return ModelDefinition{}, false
}

// HasModel checks if a model with the given name exists in the configuration
func (c *Config) HasModel(name string) bool {
	_, exists := c.FindModelByName(name)
	return exists
}

// ResolveModel picks the reasoning model for one instruction.
// Lookup order: request override, active model, default model, FallbackModel.
func (c *Config) ResolveModel(override string) ModelDefinition {
	for _, name := range []string{override, c.Preferences.ActiveModel, c.Preferences.DefaultModel} {
		if model, ok := c.FindModelByName(name); ok {
			return model
		}
	}
	return FallbackModel()
}

// CurrentModelName returns the active model, falling back to the default.
func (c *Config) CurrentModelName() string {
	if c.Preferences.ActiveModel != "" {
		return c.Preferences.ActiveModel
	}
	return c.Preferences.DefaultModel
}

// SetActiveModel changes the active model to the specified name
// Returns an error if the model doesn't exist
func (c *Config) SetActiveModel(name string) error {
	if !c.HasModel(name) {
		return fmt.Errorf("cannot set active model: model %s does not exist", name)
	}
	c.Preferences.ActiveModel = name
	return nil
}

// IsSecurityEnabled checks if advisory guardrails are enabled
func (c *Config) IsSecurityEnabled() bool {
	return c.Security.Enabled
}

// GetCommandTimeout returns the per-command bound; zero means unbounded.
func (c *Config) GetCommandTimeout() time.Duration {
	return parseDurationOr(c.Execution.CommandTimeout, DefaultCommandTimeout)
}

// GetConnectTimeout returns the SSH dial bound.
func (c *Config) GetConnectTimeout() time.Duration {
	timeout := parseDurationOr(c.Execution.ConnectTimeout, DefaultConnectTimeout)
	if timeout <= 0 {
		return DefaultConnectTimeout
	}
	return timeout
}

// GetInstructionTimeout returns the whole-pipeline bound; zero means unbounded.
func (c *Config) GetInstructionTimeout() time.Duration {
	return parseDurationOr(c.Execution.InstructionTimeout, 0)
}

// GetGraceWindow returns how long history survives a disconnect.
func (c *Config) GetGraceWindow() time.Duration {
	window := parseDurationOr(c.History.GraceWindow, DefaultGraceWindow)
	if window <= 0 {
		return DefaultGraceWindow
	}
	return window
}

// GetRecentInteractions returns the number of prior interactions used as context
func (c *Config) GetRecentInteractions() int {
	if c.History.RecentInteractions <= 0 {
		return DefaultRecentInteractions
	}
	return c.History.RecentInteractions
}

// ValidateConsistency checks the internal consistency of the configuration
func (c *Config) ValidateConsistency() error {
	if c.Preferences.DefaultModel != "" && !c.HasModel(c.Preferences.DefaultModel) {
		return fmt.Errorf("default model %s does not exist in models list", c.Preferences.DefaultModel)
	}
	if c.Preferences.ActiveModel != "" && !c.HasModel(c.Preferences.ActiveModel) {
		return fmt.Errorf("active model %s does not exist in models list", c.Preferences.ActiveModel)
	}
	return nil
}

func parseDurationOr(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}
