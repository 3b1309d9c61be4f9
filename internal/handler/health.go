package handler

import (
	"net/http"

	"randechat/internal/service"

	"github.com/gin-gonic/gin"
)

// BuildInfo is reported by the health and version endpoints
type BuildInfo struct {
	Version   string
	BuildTime string
	GitCommit string
}

// HealthHandler reports service status
type HealthHandler struct {
	searchService *service.SearchService
	chat          *ChatHandler
	build         BuildInfo
	model         string
}

// NewHealthHandler creates a new health handler. modelName is empty when chat is disabled.
func NewHealthHandler(searchService *service.SearchService, chat *ChatHandler, build BuildInfo, modelName string) *HealthHandler {
	return &HealthHandler{
		searchService: searchService,
		chat:          chat,
		build:         build,
		model:         modelName,
	}
}

// Health handles GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	count, err := h.searchService.Count(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unhealthy",
			"error":  err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":          "healthy",
		"service":         "rande-chat",
		"version":         h.build.Version,
		"places":          count,
		"active_sessions": h.chat.Sessions(),
		"chat_enabled":    h.model != "",
		"model":           h.model,
	})
}

// Version handles GET /version
func (h *HealthHandler) Version(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"version":    h.build.Version,
		"build_time": h.build.BuildTime,
		"git_commit": h.build.GitCommit,
	})
}
