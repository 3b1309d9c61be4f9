package handler

import (
	"net/http"

	"randechat/internal/chat"
	"randechat/internal/middleware"
	"randechat/internal/model"

	"github.com/gin-gonic/gin"
)

// ChatHandler handles chat-related HTTP requests
type ChatHandler struct {
	manager *chat.Manager
	limiter *middleware.KeyedRateLimiter
}

// NewChatHandler creates a chat handler. A nil manager answers 503 on every
// turn; a nil limiter disables the per-session budget.
func NewChatHandler(manager *chat.Manager, limiter *middleware.KeyedRateLimiter) *ChatHandler {
	return &ChatHandler{
		manager: manager,
		limiter: limiter,
	}
}

// Message handles POST /api/v1/chat/message
func (h *ChatHandler) Message(c *gin.Context) {
	req, ok := h.bindTurn(c)
	if !ok {
		return
	}

	result := h.manager.Send(c.Request.Context(), req.SessionID, req.Message)
	c.JSON(http.StatusOK, result)
}

// Stream handles POST /api/v1/chat/stream - SSE progress of one turn
func (h *ChatHandler) Stream(c *gin.Context) {
	req, ok := h.bindTurn(c)
	if !ok {
		return
	}

	// Set SSE headers
	c.Header("Content-Type", "text/event-stream; charset=utf-8")
	c.Header("Cache-Control", "no-cache, no-store, must-revalidate")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	// a client that went away stops the stream, the turn itself still completes
	var streamErr error
	emit := func(event string, data any) {
		if streamErr != nil {
			return
		}
		streamErr = writeEvent(c.Writer, event, data)
	}

	emit("start", gin.H{"session_id": req.SessionID})

	result := h.manager.SendWithEvents(c.Request.Context(), req.SessionID, req.Message, func(e chat.Event) {
		switch e.Kind {
		case chat.EventToolCall:
			emit(string(e.Kind), gin.H{
				"round":     e.Round,
				"function":  e.Call.Function,
				"arguments": e.Call.Arguments,
			})
		case chat.EventToolResult:
			emit(string(e.Kind), gin.H{
				"round":                      e.Round,
				"function":                   e.Call.Function,
				"success":                    e.Result.Success,
				"count":                      e.Result.Count,
				"matched_filter_description": e.Result.FilterDescription,
			})
		}
	})

	emit("response", result)
	emit("done", nil)
}

// History handles GET /api/v1/chat/history?session_id=
func (h *ChatHandler) History(c *gin.Context) {
	if !h.available(c) {
		return
	}
	c.JSON(http.StatusOK, h.manager.History(sessionOrDefault(c.Query("session_id"))))
}

// Reset handles POST /api/v1/chat/reset
func (h *ChatHandler) Reset(c *gin.Context) {
	if !h.available(c) {
		return
	}

	var req model.ChatResetRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
			return
		}
	}
	if req.SessionID == "" {
		req.SessionID = c.Query("session_id")
	}

	h.manager.Reset(sessionOrDefault(req.SessionID))

	c.JSON(http.StatusOK, model.ChatResetResponse{
		Success: true,
		Message: "Konverzace byla resetována",
	})
}

// Sessions returns the number of live sessions, zero when chat is unavailable
func (h *ChatHandler) Sessions() int {
	if h.manager == nil {
		return 0
	}
	return h.manager.Len()
}

func (h *ChatHandler) bindTurn(c *gin.Context) (model.ChatMessageRequest, bool) {
	var req model.ChatMessageRequest
	if !h.available(c) {
		return req, false
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return req, false
	}
	req.SessionID = sessionOrDefault(req.SessionID)

	if !h.limiter.Allow(req.SessionID) {
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "Too many messages, slow down"})
		return req, false
	}
	return req, true
}

func (h *ChatHandler) available(c *gin.Context) bool {
	if h.manager == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Chat is disabled: no language model is configured"})
		return false
	}
	return true
}

func sessionOrDefault(id string) string {
	if id == "" {
		return model.DefaultSessionID
	}
	return id
}
