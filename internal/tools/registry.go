// Package tools holds the closed set of functions the model may call and
// dispatches model function calls to them.
package tools

import (
	"context"
	"errors"
	"fmt"

	"randechat/internal/llm"
	"randechat/internal/model"
)

// ErrUnknownOperation is returned for function names outside the registry
var ErrUnknownOperation = errors.New("unknown function")

// Operation is a function the model may call
type Operation string

const (
	OpSearchPlaces Operation = "search_places"
)

// ParseOperation maps a function name onto a known operation
func ParseOperation(name string) (Operation, error) {
	switch Operation(name) {
	case OpSearchPlaces:
		return OpSearchPlaces, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownOperation, name)
}

// Searcher executes a search intent
type Searcher interface {
	Search(ctx context.Context, sessionID string, in model.SearchIntent) (*model.ToolResponse, error)
}

type handler func(ctx context.Context, sessionID string, args map[string]any) (*model.ToolResponse, error)

// Registry dispatches function calls to their handlers
type Registry struct {
	handlers map[Operation]handler
	decls    []llm.Tool
}

// NewRegistry creates the registry of every supported operation
func NewRegistry(searcher Searcher) *Registry {
	r := &Registry{handlers: make(map[Operation]handler)}

	r.handlers[OpSearchPlaces] = func(ctx context.Context, sessionID string, args map[string]any) (*model.ToolResponse, error) {
		return searcher.Search(ctx, sessionID, DecodeSearchArgs(args))
	}
	r.decls = append(r.decls, SearchPlacesTool())

	return r
}

// Declarations returns the tool declarations handed to the model
func (r *Registry) Declarations() []llm.Tool {
	return append([]llm.Tool(nil), r.decls...)
}

// Execute runs the named operation. Unknown names fail with ErrUnknownOperation;
// other errors come from the handler itself.
func (r *Registry) Execute(ctx context.Context, sessionID, name string, args map[string]any) (*model.ToolResponse, error) {
	op, err := ParseOperation(name)
	if err != nil {
		return nil, err
	}
	h, ok := r.handlers[op]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownOperation, name)
	}
	return h(ctx, sessionID, args)
}
