package handler

import (
	"errors"
	"net/http"
	"strings"

	"randechat/internal/model"
	"randechat/internal/repository"
	"randechat/internal/service"
	"randechat/internal/tools"

	"github.com/gin-gonic/gin"
)

// SearchHandler exposes the search tool and place lookup over HTTP
type SearchHandler struct {
	searchService *service.SearchService
	registry      *tools.Registry
}

// NewSearchHandler creates a new search handler
func NewSearchHandler(searchService *service.SearchService, registry *tools.Registry) *SearchHandler {
	return &SearchHandler{
		searchService: searchService,
		registry:      registry,
	}
}

// Search handles POST /api/v1/search. The body carries search_places arguments.
func (h *SearchHandler) Search(c *gin.Context) {
	var args map[string]any
	if err := c.ShouldBindJSON(&args); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	sessionID := c.Query("session_id")
	if sessionID == "" {
		sessionID = model.DefaultSessionID
	}

	response, err := h.registry.Execute(c.Request.Context(), sessionID, string(tools.OpSearchPlaces), args)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Search failed: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, response)
}

// GetPlace handles GET /api/v1/places/:id
func (h *SearchHandler) GetPlace(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid place ID"})
		return
	}

	place, err := h.searchService.GetPlace(c.Request.Context(), id)
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Place not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get place: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, place)
}
