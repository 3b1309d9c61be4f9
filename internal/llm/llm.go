// Package llm abstracts the chat model behind a small conversation API with
// function calling. Gemini and OpenAI-compatible backends are provided.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrDisabled is returned when the selected backend has no credentials
var ErrDisabled = errors.New("llm backend is not configured")

// Tool declares a function the model may call. Parameters is a JSON schema object.
type Tool struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// FunctionCall is a function invocation requested by the model
type FunctionCall struct {
	ID   string
	Name string
	Args map[string]any
}

// FunctionResult answers one FunctionCall. Response must marshal to a JSON object.
type FunctionResult struct {
	ID       string
	Name     string
	Response map[string]any
}

// Part is one element of a model response: text or a function call
type Part struct {
	Text string
	Call *FunctionCall
}

// Response is a single model reply
type Response struct {
	Parts []Part
}

// FunctionCalls returns every function call of the response in order
func (r *Response) FunctionCalls() []FunctionCall {
	var calls []FunctionCall
	for _, p := range r.Parts {
		if p.Call != nil {
			calls = append(calls, *p.Call)
		}
	}
	return calls
}

// Text joins the text parts of the response
func (r *Response) Text() string {
	var texts []string
	for _, p := range r.Parts {
		if p.Call == nil && p.Text != "" {
			texts = append(texts, p.Text)
		}
	}
	return strings.TrimSpace(strings.Join(texts, "\n"))
}

// Message is what the caller sends: a user text or a batch of function results
type Message struct {
	Text    string
	Results []FunctionResult
}

// UserText builds a plain user message
func UserText(text string) Message {
	return Message{Text: text}
}

// Results builds the follow-up message answering a batch of function calls
func Results(results ...FunctionResult) Message {
	return Message{Results: results}
}

// Conversation is a stateful dialogue with the model. Send appends the message
// and the model reply to the dialogue. A failed Send leaves the history unchanged.
// A Conversation is not safe for concurrent use.
type Conversation interface {
	Send(ctx context.Context, msg Message) (*Response, error)

	// Mark returns a position in the dialogue that Rewind can return to.
	Mark() int
	// Rewind drops everything sent or received after mark.
	Rewind(mark int)
}

// Model creates conversations bound to a system prompt and a tool set
type Model interface {
	Name() string
	NewConversation(systemPrompt string, tools []Tool) Conversation
}

// NewFunctionResult answers call with v, which must marshal to a JSON object
func NewFunctionResult(call FunctionCall, v any) (FunctionResult, error) {
	resp, err := asObject(v)
	if err != nil {
		return FunctionResult{}, fmt.Errorf("function %s: result is not a JSON object: %w", call.Name, err)
	}
	return FunctionResult{ID: call.ID, Name: call.Name, Response: resp}, nil
}

func asObject(v any) (map[string]any, error) {
	if m, ok := v.(map[string]any); ok {
		return m, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}
