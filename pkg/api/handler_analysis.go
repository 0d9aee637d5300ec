package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/halton/ai-answer-ninja-sub000/pkg/analysis"
	"github.com/halton/ai-answer-ninja-sub000/pkg/models"
)

func (s *Server) queueStats(c *gin.Context) {
	stats, err := s.queue.Stats(c.Request.Context())
	if err != nil {
		s.mapServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"queues": stats})
}

type submitBatchRequest struct {
	UserID      string   `json:"user_id"`
	CallIDs     []string `json:"call_ids"`
	Priority    string   `json:"priority,omitempty"`
	CallbackURL string   `json:"callback_url,omitempty"`
}

func (s *Server) submitBatch(c *gin.Context) {
	var req submitBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "malformed request body")
		return
	}
	if len(req.CallIDs) == 0 {
		badRequest(c, "call_ids is required")
		return
	}

	job, err := s.batches.Submit(c.Request.Context(), req.UserID, req.CallIDs, models.Priority(req.Priority), req.CallbackURL)
	if err != nil && job == nil {
		s.mapServiceError(c, err)
		return
	}

	body := gin.H{"batch": job}
	if err != nil {
		// Some children hit the queue bound; the batch still tracks the
		// ones that made it.
		body["enqueue_error"] = err.Error()
	}
	c.JSON(http.StatusAccepted, body)
}

func (s *Server) getBatch(c *gin.Context) {
	job, err := s.batches.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.mapServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

type analyzeCallRequest struct {
	Type     string `json:"type,omitempty"`
	Priority string `json:"priority,omitempty"`
}

func (s *Server) analyzeCall(c *gin.Context) {
	callID := c.Param("id")

	// The body is optional; absent means a full analysis at normal
	// priority.
	var req analyzeCallRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "malformed request body")
			return
		}
	}
	taskType := models.TaskType(req.Type)
	if req.Type == "" {
		taskType = models.TaskFullAnalysis
	}
	priority := models.Priority(req.Priority)
	if req.Priority == "" {
		priority = models.PriorityNormal
	}

	task := &models.QueuedTask{
		ID:        uuid.NewString(),
		CallID:    callID,
		Type:      taskType,
		Priority:  priority,
		CreatedAt: time.Now(),
	}
	if err := s.queue.Enqueue(c.Request.Context(), task); err != nil {
		if errors.Is(err, analysis.ErrQueueFull) {
			s.mapServiceError(c, err)
			return
		}
		badRequest(c, err.Error())
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"task_id": task.ID, "call_id": callID, "type": taskType})
}

func (s *Server) callAnalysis(c *gin.Context) {
	results, err := s.analytics.AnalysisResults(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.mapServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"call_id": c.Param("id"), "results": results})
}
