package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Context keys set by the middleware
const (
	ContextKeyRequestID = "request_id"
	HeaderRequestID     = "X-Request-ID"
)

// RequestID injects an identifier for traceability if the caller did not provide one.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(HeaderRequestID)
		if rid == "" {
			rid = uuid.NewString()
		}

		c.Set(ContextKeyRequestID, rid)
		c.Header(HeaderRequestID, rid)

		c.Next()
	}
}

// RequestIDFromContext extracts the request identifier if available.
func RequestIDFromContext(c *gin.Context) string {
	return c.GetString(ContextKeyRequestID)
}
