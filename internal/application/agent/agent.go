// Package agent runs one instruction through plan, execute, and analyze while
// streaming progress events to the originating session.
package agent

import (
	"context"
	"errors"
	"time"

	"github.com/doeshing/opsagent/internal/application/analyzer"
	"github.com/doeshing/opsagent/internal/application/planner"
	"github.com/doeshing/opsagent/internal/domain"
	"github.com/doeshing/opsagent/internal/ports"
)

// Planner produces the filtered action list.
type Planner interface {
	Plan(ctx context.Context, req planner.Request) (planner.Plan, error)
}

// Analyzer produces the final report. It never fails.
type Analyzer interface {
	Analyze(ctx context.Context, req analyzer.Request) string
}

// Request is one instruction bound to a session, a resolved target and a model.
type Request struct {
	SessionID   string
	Instruction string
	Target      domain.Target
	Model       domain.ModelDefinition
}

// Service orchestrates a single instruction. It keeps no per-instruction
// state, so one value serves every session.
type Service struct {
	Planner  Planner
	Analyzer Analyzer
	Runner   ports.RemoteRunner
	History  ports.HistoryService
	Logger   ports.Logger

	// Optional collaborators.
	Security ports.SecurityService
	Archive  ports.InteractionArchive

	RecentInteractions int
	Now                func() time.Time
}

// analysisTimeout bounds the report call when the instruction context is
// already done.
const analysisTimeout = 2 * time.Minute

var errDependencies = errors.New("agent dependencies not satisfied")

// Run executes req and returns the interaction that was recorded, if any.
// Failures are reported to sink as a single error event and also returned.
func (s *Service) Run(ctx context.Context, req Request, sink ports.EventSink) (domain.Interaction, error) {
	if s.Planner == nil || s.Analyzer == nil || s.Runner == nil || s.History == nil || s.Logger == nil {
		return domain.Interaction{}, errDependencies
	}
	events := &emitter{
		// Frames still go out after the instruction deadline passes.
		ctx:     context.WithoutCancel(ctx),
		sink:    sink,
		logger:  s.Logger,
		session: req.SessionID,
	}

	events.send(domain.AgentUpdate{Type: domain.UpdateThinking, Message: "Analyzing your instruction..."})

	// Read before anything is appended so the in-flight instruction never
	// appears in its own context.
	history := s.History.Recent(req.SessionID, s.recentLimit())

	plan, err := s.Planner.Plan(ctx, planner.Request{
		Instruction: req.Instruction,
		Target:      req.Target,
		History:     history,
		Model:       req.Model,
	})
	if err != nil {
		s.Logger.Error("planning failed", err, map[string]interface{}{"session": req.SessionID, "target": req.Target.Name})
		events.fail(err.Error())
		return domain.Interaction{}, err
	}
	events.send(domain.AgentUpdate{Type: domain.UpdateThinkingComplete, Thinking: plan.Thinking})

	interaction := domain.Interaction{
		Instruction: req.Instruction,
		Target:      req.Target.Name,
		Model:       req.Model.Name,
		Timestamp:   s.now(),
		Thinking:    plan.Thinking,
		Actions:     plan.Actions,
		Results:     make([]domain.ExecutionResult, 0, len(plan.Actions)),
	}

	runErr := s.execute(ctx, req, plan.Actions, &interaction, events)

	analysisCtx, cancel := detachIfDone(ctx)
	defer cancel()

	analysisReq := analyzer.Request{
		Instruction: req.Instruction,
		Thinking:    interaction.Thinking,
		Actions:     interaction.Actions,
		Results:     interaction.Results,
		History:     history,
		Model:       req.Model,
	}

	if runErr != nil {
		interaction.Error = runErr.Error()
		events.fail(interaction.Error)
		analysisReq.AbortReason = interaction.Error
		analysisReq.Interrupted = interaction.Interrupted
		interaction.Analysis = s.Analyzer.Analyze(analysisCtx, analysisReq)
		s.record(req.SessionID, interaction)
		return interaction, runErr
	}

	events.send(domain.AgentUpdate{Type: domain.UpdateAnalyzing, Message: "Analyzing results..."})
	interaction.Analysis = s.Analyzer.Analyze(analysisCtx, analysisReq)
	s.record(req.SessionID, interaction)

	snapshot, _ := s.History.Snapshot(req.SessionID)
	events.send(domain.AgentUpdate{
		Type:     domain.UpdateComplete,
		Analysis: interaction.Analysis,
		History:  snapshot,
	})
	return interaction, nil
}

// execute runs actions in order and stops at the first transport failure.
// The failing action contributes no result; output it produced before failing
// is kept on interaction.Interrupted.
func (s *Service) execute(ctx context.Context, req Request, actions []domain.Action, interaction *domain.Interaction, events *emitter) error {
	for i, action := range actions {
		index := i
		events.send(domain.AgentUpdate{
			Type:    domain.UpdateExecuting,
			Message: "Executing: " + action.Command,
			Command: action.Command,
			Index:   &index,
			Risk:    s.assess(action.Command),
		})

		result, err := s.Runner.Run(ctx, req.Target, action.Command)
		if err != nil {
			if !domain.IsTransportError(err) {
				err = &domain.CommandDispatchError{Command: action.Command, Err: err}
			}
			if capturedOutput(result, err) {
				partial := result
				interaction.Interrupted = &partial
			}
			s.Logger.Error("remote execution failed", err, map[string]interface{}{
				"session": req.SessionID,
				"target":  req.Target.Name,
				"index":   index,
			})
			return err
		}

		interaction.Results = append(interaction.Results, result)
		events.send(domain.AgentUpdate{
			Type:   domain.UpdateExecutionResult,
			Index:  &index,
			Result: &result,
		})
	}
	return nil
}

// detachIfDone keeps ctx while it is live. Once the instruction deadline or a
// cancellation has hit, the report still gets its own bounded window.
func detachIfDone(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx.Err() == nil {
		return ctx, func() {}
	}
	return context.WithTimeout(context.WithoutCancel(ctx), analysisTimeout)
}

// capturedOutput reports whether a failed run produced anything beyond the
// error text itself.
func capturedOutput(result domain.ExecutionResult, err error) bool {
	if result.Output != "" {
		return true
	}
	return result.Error != "" && result.Error != err.Error()
}

func (s *Service) assess(command string) *domain.RiskAssessment {
	if s.Security == nil {
		return nil
	}
	assessment, err := s.Security.Evaluate(command)
	if err != nil {
		s.Logger.Warn("guardrail evaluation failed", map[string]interface{}{"error": err.Error()})
		return nil
	}
	if !assessment.Elevated() {
		return nil
	}
	return &assessment
}

func (s *Service) record(sessionID string, interaction domain.Interaction) {
	s.History.Append(sessionID, interaction)
	if s.Archive == nil {
		return
	}
	if err := s.Archive.Save(sessionID, interaction); err != nil {
		s.Logger.Warn("archive write failed", map[string]interface{}{
			"session": sessionID,
			"error":   err.Error(),
		})
	}
}

func (s *Service) recentLimit() int {
	if s.RecentInteractions > 0 {
		return s.RecentInteractions
	}
	return domain.DefaultRecentInteractions
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}
