// Package chat runs conversational turns: it keeps per-session state and
// drives the model through function calls until it produces an answer.
package chat

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"randechat/internal/llm"
	"randechat/internal/model"
)

// Manager owns every live session
type Manager struct {
	model        llm.Model
	tools        ToolSet
	loop         *ToolLoop
	systemPrompt string
	logger       *zap.Logger
	now          func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session
}

// Option configures a Manager
type Option func(*managerOptions)

type managerOptions struct {
	guard        LeakDetector
	loop         LoopConfig
	systemPrompt string
	logger       *zap.Logger
	now          func() time.Time
}

// WithLeakDetector replaces the default pattern guard
func WithLeakDetector(d LeakDetector) Option {
	return func(o *managerOptions) { o.guard = d }
}

// WithLoopConfig sets the per-turn limits
func WithLoopConfig(cfg LoopConfig) Option {
	return func(o *managerOptions) { o.loop = cfg }
}

// WithSystemPrompt sets the prompt given to every new conversation
func WithSystemPrompt(prompt string) Option {
	return func(o *managerOptions) { o.systemPrompt = prompt }
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(o *managerOptions) { o.logger = l }
}

// WithClock overrides time.Now for turn timestamps
func WithClock(now func() time.Time) Option {
	return func(o *managerOptions) { o.now = now }
}

// NewManager creates a session manager over the given model and tools
func NewManager(m llm.Model, toolset ToolSet, opts ...Option) *Manager {
	o := managerOptions{
		loop:         DefaultLoopConfig(),
		systemPrompt: llm.DefaultSystemPrompt(),
		logger:       zap.NewNop(),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &Manager{
		model:        m,
		tools:        toolset,
		loop:         NewToolLoop(toolset, o.guard, o.loop, o.logger),
		systemPrompt: o.systemPrompt,
		logger:       o.logger,
		now:          o.now,
		sessions:     make(map[string]*Session),
	}
}

// GetOrCreate returns the session for id, creating it on first use
func (m *Manager) GetOrCreate(id string) *Session {
	if id == "" {
		id = model.DefaultSessionID
	}

	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if ok {
		return s
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok {
		return s
	}
	s = newSession(id, m.model.NewConversation(m.systemPrompt, m.tools.Declarations()), m.now())
	m.sessions[id] = s
	m.logger.Info("session created", zap.String("session_id", id))
	return s
}

// Get returns an existing session
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// History returns the session's history and last locations. Unknown sessions
// yield empty values and are not created.
func (m *Manager) History(id string) model.SessionSnapshot {
	if s, ok := m.Get(id); ok {
		return s.Snapshot()
	}
	return model.SessionSnapshot{History: []model.Turn{}, LastLocations: []model.PlaceResult{}}
}

// Reset forgets the session. Resetting an unknown session is a no-op.
func (m *Manager) Reset(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; ok {
		delete(m.sessions, id)
		m.logger.Info("session reset", zap.String("session_id", id))
	}
}

// Len returns the number of live sessions
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Send runs one turn for the session
func (m *Manager) Send(ctx context.Context, sessionID, text string) model.TurnResult {
	return m.SendWithEvents(ctx, sessionID, text, nil)
}

// SendWithEvents runs one turn and reports tool activity to onEvent. Turns of
// one session run one at a time; failures yield a degraded result and never
// leave the session unusable.
func (m *Manager) SendWithEvents(ctx context.Context, sessionID, text string, onEvent EventFunc) model.TurnResult {
	s := m.GetOrCreate(sessionID)
	logger := m.logger.With(zap.String("session_id", s.ID))

	if err := s.acquire(ctx); err != nil {
		logger.Warn("turn abandoned while waiting for the session", zap.Error(err))
		return degraded(err)
	}
	defer s.release()

	user := model.Turn{Role: model.RoleUser, Content: text, Timestamp: m.now()}
	start := time.Now()

	out, err := m.loop.Run(ctx, s.ID, s.conv, text, onEvent)
	if err != nil {
		logger.Error("turn failed", zap.Error(err), zap.Duration("latency", time.Since(start)))
		s.record(user, model.Turn{
			Role:      model.RoleAssistant,
			Content:   ApologyError,
			Timestamp: m.now(),
			Error:     true,
		}, nil)
		return degraded(err)
	}

	s.record(user, model.Turn{
		Role:      model.RoleAssistant,
		Content:   out.Text,
		Timestamp: m.now(),
		Locations: out.Locations,
		ToolCalls: out.ToolCalls,
	}, out.Locations)

	logger.Info("turn completed",
		zap.Int("round", out.Rounds),
		zap.Int("count", len(out.Locations)),
		zap.Duration("latency", time.Since(start)))

	return model.TurnResult{
		Response:  out.Text,
		Locations: out.Locations,
		ToolCalls: out.ToolCalls,
	}
}

func degraded(err error) model.TurnResult {
	return model.TurnResult{
		Response:  ApologyError,
		Locations: []model.PlaceResult{},
		ToolCalls: []model.ToolCallRecord{},
		Error:     err.Error(),
	}
}
