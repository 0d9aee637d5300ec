package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/halton/ai-answer-ninja-sub000/pkg/analysis"
	"github.com/halton/ai-answer-ninja-sub000/pkg/dialogue"
	"github.com/halton/ai-answer-ninja-sub000/pkg/services"
)

// mapServiceError converts service-layer errors into one JSON error
// response. Unexpected errors are logged and collapsed to 500.
func (s *Server) mapServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, dialogue.ErrStateClosed):
		c.JSON(http.StatusConflict, gin.H{"error": "conversation already ended"})
	case errors.Is(err, dialogue.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
	case errors.Is(err, services.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "resource not found"})
	case errors.Is(err, analysis.ErrBatchNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "batch not found"})
	case errors.Is(err, analysis.ErrQueueFull):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "analysis queue full"})
	default:
		s.logger.Error("unexpected service error", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

// badRequest rejects malformed input.
func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}
