package handler

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"randechat/internal/model"

	"github.com/gin-gonic/gin"
)

// maxBatchPlaces bounds a single upsert request
const maxBatchPlaces = 1000

// PlaceWriter upserts places
type PlaceWriter interface {
	InsertPlaces(ctx context.Context, places []model.Place) (int, error)
}

// PlaceHandler handles place maintenance requests
type PlaceHandler struct {
	writer PlaceWriter
}

// NewPlaceHandler creates a new place handler
func NewPlaceHandler(writer PlaceWriter) *PlaceHandler {
	return &PlaceHandler{
		writer: writer,
	}
}

// BatchUpsert handles POST /api/v1/places/batch
func (h *PlaceHandler) BatchUpsert(c *gin.Context) {
	var req model.PlaceBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	if len(req.Places) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No places provided"})
		return
	}
	if len(req.Places) > maxBatchPlaces {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Too many places, at most %d per request", maxBatchPlaces)})
		return
	}

	// Places without an id cannot be upserted
	var valid []model.Place
	var errors []string
	for i, p := range req.Places {
		if strings.TrimSpace(p.ID) == "" {
			errors = append(errors, fmt.Sprintf("place at index %d has no id", i))
			continue
		}
		valid = append(valid, p)
	}

	success := 0
	if len(valid) > 0 {
		n, err := h.writer.InsertPlaces(c.Request.Context(), valid)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store places: " + err.Error()})
			return
		}
		success = n
	}

	response := model.PlaceBatchResponse{
		Success: success,
		Failed:  len(req.Places) - success,
		Errors:  errors,
	}

	if len(errors) > 0 {
		c.JSON(http.StatusPartialContent, response)
	} else {
		c.JSON(http.StatusOK, response)
	}
}
