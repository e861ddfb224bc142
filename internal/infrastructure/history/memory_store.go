// Package history stores per-session interaction logs and archives them.
package history

import (
	"sync"
	"time"

	"github.com/doeshing/opsagent/internal/domain"
	"github.com/doeshing/opsagent/internal/ports"
)

// Timer is the cancellable handle returned by AfterFunc.
type Timer interface {
	Stop() bool
}

// AfterFunc schedules f after d. Production code uses time.AfterFunc; tests
// inject a fake to fire evictions deterministically.
type AfterFunc func(d time.Duration, f func()) Timer

func realAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// MemoryStore is the process-wide session history service.
type MemoryStore struct {
	mu        sync.Mutex
	sessions  map[string][]domain.Interaction
	evictions map[string]*eviction
	afterFunc AfterFunc
	logger    ports.Logger
}

type eviction struct {
	timer Timer
}

// Option customizes a MemoryStore.
type Option func(*MemoryStore)

// WithAfterFunc replaces the timer source.
func WithAfterFunc(fn AfterFunc) Option {
	return func(s *MemoryStore) { s.afterFunc = fn }
}

// WithLogger attaches a logger for eviction records.
func WithLogger(log ports.Logger) Option {
	return func(s *MemoryStore) { s.logger = log }
}

// NewMemoryStore builds an empty store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	s := &MemoryStore{
		sessions:  make(map[string][]domain.Interaction),
		evictions: make(map[string]*eviction),
		afterFunc: realAfterFunc,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Append records a finished interaction. Activity on a session cancels any
// pending eviction.
func (s *MemoryStore) Append(sessionID string, interaction domain.Interaction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelLocked(sessionID)
	s.sessions[sessionID] = append(s.sessions[sessionID], interaction.Clone())
}

// Recent returns copies of the last n interactions, oldest first.
func (s *MemoryStore) Recent(sessionID string, n int) []domain.Interaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	log := s.sessions[sessionID]
	if n > 0 && len(log) > n {
		log = log[len(log)-n:]
	}
	return cloneAll(log)
}

// Snapshot returns the full log and whether the session has any history.
func (s *MemoryStore) Snapshot(sessionID string) ([]domain.Interaction, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	log, ok := s.sessions[sessionID]
	if !ok {
		return nil, false
	}
	return cloneAll(log), true
}

// ScheduleEviction deletes the session's history after the grace window,
// replacing any timer already pending for it.
func (s *MemoryStore) ScheduleEviction(sessionID string, after time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelLocked(sessionID)

	entry := &eviction{}
	entry.timer = s.afterFunc(after, func() { s.evict(sessionID, entry) })
	s.evictions[sessionID] = entry
}

// CancelEviction stops a pending eviction. It reports whether one was pending.
func (s *MemoryStore) CancelEviction(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelLocked(sessionID)
}

// Sessions returns the number of sessions holding history.
func (s *MemoryStore) Sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *MemoryStore) evict(sessionID string, entry *eviction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	// A newer schedule or a cancel owns the slot now.
	if s.evictions[sessionID] != entry {
		return
	}
	delete(s.evictions, sessionID)
	if _, ok := s.sessions[sessionID]; !ok {
		return
	}
	delete(s.sessions, sessionID)
	if s.logger != nil {
		s.logger.Info("evicted session history", map[string]interface{}{"session": sessionID})
	}
}

func (s *MemoryStore) cancelLocked(sessionID string) bool {
	entry, ok := s.evictions[sessionID]
	if !ok {
		return false
	}
	entry.timer.Stop()
	delete(s.evictions, sessionID)
	return true
}

func cloneAll(log []domain.Interaction) []domain.Interaction {
	out := make([]domain.Interaction, len(log))
	for i, interaction := range log {
		out[i] = interaction.Clone()
	}
	return out
}

var _ ports.HistoryService = (*MemoryStore)(nil)
