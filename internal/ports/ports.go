// Package ports defines the interfaces (ports) for the hexagonal architecture.
//
// This package establishes the contract between the application core and external
// adapters (infrastructure). The orchestration pipeline depends only on these
// abstractions, so reasoning backends, the SSH transport, the target registry and
// the client transport can each be replaced or stubbed independently.
package ports

import (
	"context"
	"time"

	"github.com/doeshing/opsagent/internal/domain"
)

// ConfigProvider loads the latest configuration from persistent storage.
// Implementations typically read from ~/.opsagent/config.yaml.
type ConfigProvider interface {
	Load(context.Context) (domain.Config, error)
}

// ConfigStore also persists changes such as the active model.
type ConfigStore interface {
	ConfigProvider
	Save(context.Context, domain.Config) error
}

// TargetRegistry resolves target names to connection parameters.
type TargetRegistry interface {
	Resolve(ctx context.Context, name string) (domain.Target, error)
	List(ctx context.Context) ([]domain.TargetSummary, error)
}

// TargetStore manages registered targets.
type TargetStore interface {
	TargetRegistry
	Register(ctx context.Context, target domain.Target) error
	Update(ctx context.Context, name string, patch domain.TargetPatch) (domain.Target, error)
	Delete(ctx context.Context, name string) error
}

// ProviderFactory builds reasoning providers based on model definitions.
type ProviderFactory interface {
	ForModel(domain.ModelDefinition) (ReasoningProvider, error)
}

// ReasoningProvider is the capability every reasoning backend implements.
// CreatePlan returns raw text expected to contain the plan JSON; CreateAnalysis
// returns free text.
type ReasoningProvider interface {
	Name() string
	CreatePlan(ctx context.Context, prompts domain.PromptPair, params domain.GenerationParams) (string, error)
	CreateAnalysis(ctx context.Context, prompts domain.PromptPair, params domain.GenerationParams) (string, error)
}

// RemoteRunner executes one command on a target over a fresh secure session.
type RemoteRunner interface {
	Run(ctx context.Context, target domain.Target, command string) (domain.ExecutionResult, error)
}

// SecurityService evaluates commands against advisory guardrail rules.
type SecurityService interface {
	Evaluate(command string) (domain.RiskAssessment, error)
}

// HistoryService owns per-session interaction logs. Append, ScheduleEviction and
// CancelEviction are its only mutators.
type HistoryService interface {
	Append(sessionID string, interaction domain.Interaction)
	Recent(sessionID string, n int) []domain.Interaction
	Snapshot(sessionID string) ([]domain.Interaction, bool)
	ScheduleEviction(sessionID string, after time.Duration)
	CancelEviction(sessionID string) bool
}

// InteractionArchive durably records finished interactions.
type InteractionArchive interface {
	Save(sessionID string, interaction domain.Interaction) error
}

// EventSink delivers frames to exactly one client session, in call order.
type EventSink interface {
	Send(ctx context.Context, envelope domain.Envelope) error
}

// Logger provides structured logging abstraction for the application layer.
// Implementations can route to different backends (stdout, files, external services).
type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, err error, fields map[string]interface{})
}
