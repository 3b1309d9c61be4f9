package chat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"randechat/internal/llm"
	"randechat/internal/model"
	"randechat/internal/tools"
)

// ToolSet is the closed set of functions offered to the model
type ToolSet interface {
	Declarations() []llm.Tool
	Execute(ctx context.Context, sessionID, name string, args map[string]any) (*model.ToolResponse, error)
}

// EventKind names a progress event emitted while a turn runs
type EventKind string

const (
	EventToolCall   EventKind = "tool_call"
	EventToolResult EventKind = "tool_result"
)

// Event reports tool activity during a turn. Events are delivered on the
// goroutine running the turn, in request order.
type Event struct {
	Kind   EventKind
	Round  int
	Call   model.ToolCallRecord
	Result *model.ToolResponse
}

// EventFunc receives turn progress events
type EventFunc func(Event)

// LoopConfig bounds a single turn
type LoopConfig struct {
	MaxRounds   int
	Concurrency int
	LLMTimeout  time.Duration
}

// DefaultLoopConfig returns the limits used when none are configured
func DefaultLoopConfig() LoopConfig {
	return LoopConfig{
		MaxRounds:   5,
		Concurrency: 4,
		LLMTimeout:  30 * time.Second,
	}
}

// Outcome is the resolved result of one turn
type Outcome struct {
	Text      string
	Locations []model.PlaceResult
	ToolCalls []model.ToolCallRecord
	Rounds    int
	Leaked    bool
}

// ToolLoop drives the model through function calls until it produces text
type ToolLoop struct {
	tools  ToolSet
	guard  LeakDetector
	cfg    LoopConfig
	logger *zap.Logger
}

// NewToolLoop creates a loop over the given tools. A nil guard uses the default patterns.
func NewToolLoop(toolset ToolSet, guard LeakDetector, cfg LoopConfig, logger *zap.Logger) *ToolLoop {
	def := DefaultLoopConfig()
	if cfg.MaxRounds <= 0 {
		cfg.MaxRounds = def.MaxRounds
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = def.Concurrency
	}
	if guard == nil {
		guard = NewPatternDetector()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ToolLoop{tools: toolset, guard: guard, cfg: cfg, logger: logger}
}

// Run sends text on conv and executes function calls until the model answers
// with text. On error the conversation is rewound to where it was before Run.
func (l *ToolLoop) Run(ctx context.Context, sessionID string, conv llm.Conversation, text string, onEvent EventFunc) (*Outcome, error) {
	mark := conv.Mark()
	out, err := l.run(ctx, sessionID, conv, text, onEvent)
	if err != nil {
		conv.Rewind(mark)
		return nil, err
	}
	return out, nil
}

func (l *ToolLoop) run(ctx context.Context, sessionID string, conv llm.Conversation, text string, onEvent EventFunc) (*Outcome, error) {
	if onEvent == nil {
		onEvent = func(Event) {}
	}
	out := &Outcome{Locations: []model.PlaceResult{}, ToolCalls: []model.ToolCallRecord{}}
	seen := make(map[string]bool)
	msg := llm.UserText(text)

	for round := 1; ; round++ {
		resp, err := l.send(ctx, conv, msg)
		if err != nil {
			return nil, err
		}
		out.Rounds = round

		calls := resp.FunctionCalls()
		if len(calls) == 0 {
			out.Text = l.resolveText(sessionID, resp.Text(), out)
			return out, nil
		}
		if round >= l.cfg.MaxRounds {
			return nil, fmt.Errorf("%w: %d rounds", ErrToolLoopExceeded, l.cfg.MaxRounds)
		}

		l.logger.Debug("executing tool calls",
			zap.String("session_id", sessionID),
			zap.Int("round", round),
			zap.Int("count", len(calls)))

		responses, err := l.executeAll(ctx, sessionID, round, calls, onEvent)
		if err != nil {
			return nil, err
		}

		results := make([]llm.FunctionResult, len(calls))
		for i, call := range calls {
			results[i], err = llm.NewFunctionResult(call, responses[i])
			if err != nil {
				return nil, err
			}
			out.ToolCalls = append(out.ToolCalls, toolCallRecord(call))
			for _, p := range responses[i].Places {
				if p.ID != model.NotAvailable {
					if seen[p.ID] {
						continue
					}
					seen[p.ID] = true
				}
				out.Locations = append(out.Locations, p)
			}
			onEvent(Event{Kind: EventToolResult, Round: round, Call: toolCallRecord(call), Result: responses[i]})
		}
		msg = llm.Results(results...)
	}
}

func (l *ToolLoop) resolveText(sessionID, text string, out *Outcome) string {
	if text == "" {
		return ApologyEmpty
	}
	if l.guard.Leaks(text) {
		l.logger.Warn("model reply exposed tool syntax, replacing it",
			zap.String("session_id", sessionID),
			zap.String("reply", text))
		out.Leaked = true
		return ApologyLeak
	}
	return text
}

func (l *ToolLoop) send(ctx context.Context, conv llm.Conversation, msg llm.Message) (*llm.Response, error) {
	if l.cfg.LLMTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.cfg.LLMTimeout)
		defer cancel()
	}
	resp, err := conv.Send(ctx, msg)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, &TimeoutError{Op: "llm", Timeout: l.cfg.LLMTimeout, Err: err}
		}
		return nil, fmt.Errorf("llm: %w", err)
	}
	return resp, nil
}

// executeAll runs one batch of calls concurrently; responses keep request order
func (l *ToolLoop) executeAll(ctx context.Context, sessionID string, round int, calls []llm.FunctionCall, onEvent EventFunc) ([]*model.ToolResponse, error) {
	responses := make([]*model.ToolResponse, len(calls))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.cfg.Concurrency)
	for i, call := range calls {
		onEvent(Event{Kind: EventToolCall, Round: round, Call: toolCallRecord(call)})
		g.Go(func() error {
			resp, err := l.execute(gctx, sessionID, call)
			if err != nil {
				return err
			}
			responses[i] = resp
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return responses, nil
}

func (l *ToolLoop) execute(ctx context.Context, sessionID string, call llm.FunctionCall) (*model.ToolResponse, error) {
	start := time.Now()
	resp, err := l.tools.Execute(ctx, sessionID, call.Name, call.Args)
	switch {
	case errors.Is(err, tools.ErrUnknownOperation):
		l.logger.Warn("model called unknown function",
			zap.String("session_id", sessionID),
			zap.String("tool", call.Name))
		return model.FailedToolResponse(fmt.Sprintf("unknown function: %s", call.Name)), nil
	case errors.Is(err, context.DeadlineExceeded):
		return nil, &TimeoutError{Op: "tool " + call.Name, Err: err}
	case err != nil:
		return nil, fmt.Errorf("tool %s: %w", call.Name, err)
	case resp == nil:
		return model.FailedToolResponse("empty result"), nil
	}

	l.logger.Debug("tool call finished",
		zap.String("session_id", sessionID),
		zap.String("tool", call.Name),
		zap.Int("count", resp.Count),
		zap.Duration("latency", time.Since(start)))
	return resp, nil
}

func toolCallRecord(call llm.FunctionCall) model.ToolCallRecord {
	args := make(map[string]any, len(call.Args))
	for k, v := range call.Args {
		args[k] = v
	}
	return model.ToolCallRecord{Function: call.Name, Arguments: args}
}
