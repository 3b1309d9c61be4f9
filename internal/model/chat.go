package model

import "time"

// Turn roles
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ToolCallRecord records one function call made by the model during a turn
type ToolCallRecord struct {
	Function  string         `json:"function"`
	Arguments map[string]any `json:"arguments"`
}

// Turn is one entry of a session's append-only history
type Turn struct {
	Role      string           `json:"role"`
	Content   string           `json:"content"`
	Timestamp time.Time        `json:"timestamp"`
	Locations []PlaceResult    `json:"locations,omitempty"`
	ToolCalls []ToolCallRecord `json:"tool_calls,omitempty"`
	Error     bool             `json:"error,omitempty"`
}

// TurnResult is returned to the caller for every user message
type TurnResult struct {
	Response  string           `json:"response"`
	Locations []PlaceResult    `json:"locations"`
	ToolCalls []ToolCallRecord `json:"tool_calls"`
	Error     string           `json:"error,omitempty"`
}

// SessionSnapshot is a read-only copy of a session's history and location cache
type SessionSnapshot struct {
	History       []Turn        `json:"history"`
	LastLocations []PlaceResult `json:"last_locations"`
}
