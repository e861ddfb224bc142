// Package session binds client connections to the orchestrator: it validates
// inbound instructions, serializes them per session, and drives history
// retention across disconnects.
package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/doeshing/opsagent/internal/application/agent"
	"github.com/doeshing/opsagent/internal/domain"
	"github.com/doeshing/opsagent/internal/ports"
)

// MissingFieldsMessage is sent when an instruction lacks text or a target.
const MissingFieldsMessage = "Instruction and server name are required"

// Runner executes one instruction.
type Runner interface {
	Run(ctx context.Context, req agent.Request, sink ports.EventSink) (domain.Interaction, error)
}

// Service is shared by every transport (WebSocket, one-shot CLI).
type Service struct {
	Agent    Runner
	Registry ports.TargetRegistry
	Config   ports.ConfigProvider
	History  ports.HistoryService
	Logger   ports.Logger

	locks lockTable

	attachMu sync.Mutex
	attached map[string]int
}

// Connect attaches a client to sessionID. A pending eviction is cancelled and
// any retained history is replayed as a chat-history frame. Every Connect
// must be paired with one Disconnect.
func (s *Service) Connect(ctx context.Context, sessionID string, sink ports.EventSink) error {
	s.attachMu.Lock()
	if s.attached == nil {
		s.attached = make(map[string]int)
	}
	s.attached[sessionID]++
	resumed := s.History.CancelEviction(sessionID)
	s.attachMu.Unlock()

	if resumed {
		s.Logger.Info("session resumed", map[string]interface{}{"session": sessionID})
	}
	snapshot, ok := s.History.Snapshot(sessionID)
	if !ok || len(snapshot) == 0 {
		return nil
	}
	return sink.Send(ctx, domain.Envelope{Event: domain.ChannelChatHistory, History: snapshot})
}

// Disconnect detaches one client. When the last client of sessionID is gone
// the grace window starts, after which the session's history is dropped.
func (s *Service) Disconnect(ctx context.Context, sessionID string) {
	grace := domain.DefaultGraceWindow
	if cfg, err := s.Config.Load(ctx); err == nil {
		grace = cfg.GetGraceWindow()
	} else {
		s.Logger.Warn("config unavailable, using default grace window", map[string]interface{}{"error": err.Error()})
	}

	s.attachMu.Lock()
	remaining := s.attached[sessionID] - 1
	if remaining > 0 {
		s.attached[sessionID] = remaining
		s.attachMu.Unlock()
		s.Logger.Debug("session still attached", map[string]interface{}{
			"session":     sessionID,
			"connections": remaining,
		})
		return
	}
	delete(s.attached, sessionID)
	s.History.ScheduleEviction(sessionID, grace)
	s.attachMu.Unlock()

	s.Logger.Info("session detached", map[string]interface{}{
		"session": sessionID,
		"grace":   grace.String(),
	})
}

// Submit validates req and runs it. Instructions on the same session run one
// at a time; different sessions proceed independently.
// Validation failures produce exactly one error event.
func (s *Service) Submit(ctx context.Context, sessionID string, req domain.InstructionRequest, sink ports.EventSink) error {
	instruction := strings.TrimSpace(req.Instruction)
	serverName := strings.TrimSpace(req.ServerName)
	if instruction == "" || serverName == "" {
		return s.reject(ctx, sink, &domain.ValidationError{Message: MissingFieldsMessage})
	}

	target, err := s.Registry.Resolve(ctx, serverName)
	if err != nil {
		if errors.Is(err, domain.ErrTargetNotFound) {
			return s.reject(ctx, sink, &domain.ValidationError{Message: domain.TargetNotFoundMessage(serverName)})
		}
		return s.reject(ctx, sink, err)
	}

	cfg, err := s.Config.Load(ctx)
	if err != nil {
		return s.reject(ctx, sink, err)
	}
	model := cfg.ResolveModel(req.Model)

	unlock := s.locks.lock(sessionID)
	defer unlock()

	if timeout := cfg.GetInstructionTimeout(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	started := time.Now()
	s.Logger.Info("instruction started", map[string]interface{}{
		"session": sessionID,
		"target":  target.Name,
		"model":   model.Name,
	})
	_, err = s.Agent.Run(ctx, agent.Request{
		SessionID:   sessionID,
		Instruction: instruction,
		Target:      target,
		Model:       model,
	}, sink)
	s.Logger.Info("instruction finished", map[string]interface{}{
		"session":     sessionID,
		"duration_ms": time.Since(started).Milliseconds(),
		"failed":      err != nil,
	})
	return err
}

func (s *Service) reject(ctx context.Context, sink ports.EventSink, err error) error {
	if sendErr := sink.Send(ctx, domain.NewErrorUpdate(err.Error())); sendErr != nil {
		s.Logger.Warn("event delivery failed", map[string]interface{}{"error": sendErr.Error()})
	}
	return err
}

// lockTable hands out one mutex per session and forgets it once no caller holds
// or waits on it.
type lockTable struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func (t *lockTable) lock(key string) func() {
	t.mu.Lock()
	if t.entries == nil {
		t.entries = make(map[string]*lockEntry)
	}
	entry, ok := t.entries[key]
	if !ok {
		entry = &lockEntry{}
		t.entries[key] = entry
	}
	entry.refs++
	t.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		t.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(t.entries, key)
		}
		t.mu.Unlock()
	}
}

func (t *lockTable) size() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
