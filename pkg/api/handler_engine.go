package api

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/halton/ai-answer-ninja-sub000/pkg/analysis"
	"github.com/halton/ai-answer-ninja-sub000/pkg/engine"
	"github.com/halton/ai-answer-ninja-sub000/pkg/models"
)

// analysisScore derives a call's effectiveness score for learning.
func analysisScore(ctx context.Context, record *models.CallRecord) (float64, error) {
	report, err := analysis.EvaluateEffectiveness(ctx, record)
	if err != nil {
		return 0, err
	}
	return report.Overall, nil
}

// learnGrace bounds the asynchronous learning work kicked off by the
// learn endpoints.
const learnGrace = 30 * time.Second

type processConversationRequest struct {
	InputText   string              `json:"input_text"`
	CallID      string              `json:"call_id"`
	UserID      string              `json:"user_id"`
	CallerPhone string              `json:"caller_phone,omitempty"`
	UserProfile *models.UserProfile `json:"user_profile,omitempty"`
}

func (s *Server) processConversation(c *gin.Context) {
	var req processConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "malformed request body")
		return
	}
	if req.CallID == "" {
		badRequest(c, "call_id is required")
		return
	}
	if strings.TrimSpace(req.InputText) == "" {
		badRequest(c, "input_text is required")
		return
	}

	out, err := s.engine.ProcessTurn(c.Request.Context(), engine.TurnInput{
		CallID:      req.CallID,
		UserID:      req.UserID,
		CallerPhone: req.CallerPhone,
		Text:        req.InputText,
		Profile:     req.UserProfile,
	})
	if err != nil {
		s.mapServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

type classifyIntentRequest struct {
	Transcript string `json:"transcript"`
	CallID     string `json:"call_id,omitempty"`
	UserID     string `json:"user_id,omitempty"`
}

func (s *Server) classifyIntent(c *gin.Context) {
	var req classifyIntentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "malformed request body")
		return
	}
	if strings.TrimSpace(req.Transcript) == "" {
		badRequest(c, "transcript is required")
		return
	}

	start := time.Now()
	result := s.engine.ClassifyIntent(c.Request.Context(), req.Transcript, req.CallID)
	c.JSON(http.StatusOK, gin.H{
		"intent":             result.Intent,
		"confidence":         result.Confidence,
		"sub_category":       result.SubCategory,
		"emotional_tone":     result.EmotionalTone,
		"keywords_matched":   result.KeywordsMatched,
		"context_influenced": result.ContextInfluenced,
		"processing_time_ms": time.Since(start).Milliseconds(),
	})
}

type checkTerminationRequest struct {
	CallID string `json:"call_id"`
}

func (s *Server) checkTermination(c *gin.Context) {
	var req checkTerminationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "malformed request body")
		return
	}
	if req.CallID == "" {
		badRequest(c, "call_id is required")
		return
	}

	decision, err := s.engine.CheckTermination(c.Request.Context(), req.CallID)
	if err != nil {
		s.mapServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, decision)
}

type learnRequest struct {
	CallRecord *models.CallRecord `json:"call_record"`
}

func (s *Server) learn(c *gin.Context) {
	var req learnRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.CallRecord == nil || req.CallRecord.CallID == "" {
		badRequest(c, "call_record with call_id is required")
		return
	}

	go s.learnFromRecords(req.CallRecord)
	c.JSON(http.StatusAccepted, gin.H{"status": "accepted", "call_id": req.CallRecord.CallID})
}

type batchLearnRequest struct {
	CallRecords []*models.CallRecord `json:"call_records"`
}

func (s *Server) batchLearn(c *gin.Context) {
	var req batchLearnRequest
	if err := c.ShouldBindJSON(&req); err != nil || len(req.CallRecords) == 0 {
		badRequest(c, "call_records is required")
		return
	}

	go s.learnFromRecords(req.CallRecords...)
	c.JSON(http.StatusAccepted, gin.H{"status": "accepted", "count": len(req.CallRecords)})
}

// learnFromRecords scores each call, folds it into the learning system,
// and lets the termination decider adapt to the updated rates.
func (s *Server) learnFromRecords(records ...*models.CallRecord) {
	ctx, cancel := context.WithTimeout(context.Background(), learnGrace)
	defer cancel()

	for _, record := range records {
		score := 0.5
		if report, err := analysisScore(ctx, record); err == nil {
			score = report
		}
		s.learning.RecordCall(record, score)
	}
	s.learning.GenerateInsights(time.Now())

	if s.decider != nil {
		successRate, terminationRate := s.learning.AdaptationInputs()
		s.decider.Adapt(successRate, terminationRate, time.Now())
	}
}

func (s *Server) performanceMetrics(c *gin.Context) {
	metrics := s.learning.PerformanceMetrics()
	if s.engine != nil {
		metrics["active_calls"] = s.engine.ActiveCalls()
	}
	if s.decider != nil {
		maxTurns, persistenceThreshold := s.decider.Thresholds()
		metrics["thresholds"] = gin.H{
			"max_turns":             maxTurns,
			"persistence_threshold": persistenceThreshold,
		}
	}
	c.JSON(http.StatusOK, metrics)
}

func (s *Server) conversationSummary(c *gin.Context) {
	callID := c.Param("call_id")
	state, err := s.engine.ConversationSnapshot(c.Request.Context(), callID)
	if err != nil {
		s.mapServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"call_id":          state.CallID,
		"user_id":          state.UserID,
		"stage":            state.Stage,
		"turn_count":       state.TurnCount,
		"caller_turns":     state.CallerTurns(),
		"intent_history":   state.IntentHistory,
		"key_points":       state.KeyPoints,
		"duration_seconds": state.DurationSeconds(time.Now()),
	})
}

func (s *Server) exportLearningModel(c *gin.Context) {
	raw, err := s.learning.Export(time.Now())
	if err != nil {
		s.mapServiceError(c, err)
		return
	}
	c.Data(http.StatusOK, "application/json", raw)
}

func (s *Server) importLearningModel(c *gin.Context) {
	raw, err := io.ReadAll(c.Request.Body)
	if err != nil || len(raw) == 0 {
		badRequest(c, "model body is required")
		return
	}
	if err := s.learning.Import(raw); err != nil {
		badRequest(c, "model body is not a valid learning model")
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "imported"})
}
