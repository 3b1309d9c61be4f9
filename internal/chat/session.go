package chat

import (
	"context"
	"sync"
	"time"

	"randechat/internal/llm"
	"randechat/internal/model"
)

// Session is one user's conversation: the model dialogue, an append-only
// history and the places returned by the latest turn that found any.
type Session struct {
	ID      string
	Created time.Time

	// sem holds a single token; a turn runs while it owns the token
	sem  chan struct{}
	conv llm.Conversation

	mu            sync.RWMutex
	history       []model.Turn
	lastLocations []model.PlaceResult
}

func newSession(id string, conv llm.Conversation, now time.Time) *Session {
	s := &Session{
		ID:      id,
		Created: now,
		sem:     make(chan struct{}, 1),
		conv:    conv,
	}
	s.sem <- struct{}{}
	return s
}

func (s *Session) acquire(ctx context.Context) error {
	select {
	case <-s.sem:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) release() {
	select {
	case s.sem <- struct{}{}:
	default:
	}
}

func (s *Session) record(user, assistant model.Turn, locations []model.PlaceResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.history = append(s.history, copyTurn(user), copyTurn(assistant))
	if len(locations) > 0 {
		s.lastLocations = append([]model.PlaceResult(nil), locations...)
	}
}

// Snapshot returns a copy of the history and the last locations
func (s *Session) Snapshot() model.SessionSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := model.SessionSnapshot{
		History:       make([]model.Turn, len(s.history)),
		LastLocations: append([]model.PlaceResult{}, s.lastLocations...),
	}
	for i, t := range s.history {
		snap.History[i] = copyTurn(t)
	}
	return snap
}

// Len returns the number of history entries
func (s *Session) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.history)
}

func copyTurn(t model.Turn) model.Turn {
	if t.Locations != nil {
		t.Locations = append([]model.PlaceResult(nil), t.Locations...)
	}
	if t.ToolCalls != nil {
		calls := make([]model.ToolCallRecord, len(t.ToolCalls))
		for i, c := range t.ToolCalls {
			args := make(map[string]any, len(c.Arguments))
			for k, v := range c.Arguments {
				args[k] = v
			}
			calls[i] = model.ToolCallRecord{Function: c.Function, Arguments: args}
		}
		t.ToolCalls = calls
	}
	return t
}
