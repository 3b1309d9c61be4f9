package model

// ChatMessageRequest represents a chat message request
type ChatMessageRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message" binding:"required"`
}

// ChatResetRequest represents a session reset request
type ChatResetRequest struct {
	SessionID string `json:"session_id"`
}

// ChatResetResponse represents a session reset response
type ChatResetResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// DefaultSessionID is used when the caller does not supply a session identifier
const DefaultSessionID = "default"

// PlaceBatchRequest carries places to upsert
type PlaceBatchRequest struct {
	Places []Place `json:"places"`
}

// PlaceBatchResponse reports the result of a batch upsert
type PlaceBatchResponse struct {
	Success int      `json:"success"`
	Failed  int      `json:"failed"`
	Errors  []string `json:"errors,omitempty"`
}
