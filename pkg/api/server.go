// Package api exposes the dialogue core and the analysis pipeline over
// HTTP. One gin engine, JSON in and out, service errors mapped to status
// codes in errors.go.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/halton/ai-answer-ninja-sub000/pkg/analysis"
	"github.com/halton/ai-answer-ninja-sub000/pkg/database"
	"github.com/halton/ai-answer-ninja-sub000/pkg/engine"
	"github.com/halton/ai-answer-ninja-sub000/pkg/learning"
	"github.com/halton/ai-answer-ninja-sub000/pkg/models"
	"github.com/halton/ai-answer-ninja-sub000/pkg/termination"
)

// AnalyticsStore is the read side the analysis endpoints need.
// *services.Store satisfies it.
type AnalyticsStore interface {
	CallRecord(ctx context.Context, callID string) (*models.CallRecord, error)
	AnalysisResults(ctx context.Context, callID string) (map[string]map[string]any, error)
}

// redisPinger is the health-check slice of the Redis client.
type redisPinger interface {
	Ping(ctx context.Context) *redis.StatusCmd
}

// dbHealther is the health-check slice of the database client.
type dbHealther interface {
	Health(ctx context.Context) (*database.HealthStatus, error)
}

// Server holds the handler dependencies. Optional collaborators are nil
// tolerant; the routes that need them respond 503.
type Server struct {
	engine    *engine.Engine
	learning  *learning.System
	decider   *termination.Decider
	queue     *analysis.Queue
	batches   *analysis.BatchManager
	analytics AnalyticsStore
	rdb       redisPinger
	db        dbHealther
	logger    *slog.Logger
}

// NewServer assembles the HTTP surface.
func NewServer(eng *engine.Engine, learn *learning.System, decider *termination.Decider, queue *analysis.Queue, batches *analysis.BatchManager, analytics AnalyticsStore, rdb redisPinger, db dbHealther, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		engine:    eng,
		learning:  learn,
		decider:   decider,
		queue:     queue,
		batches:   batches,
		analytics: analytics,
		rdb:       rdb,
		db:        db,
		logger:    logger.With("component", "api"),
	}
}

// Router builds the gin engine with middleware and all routes.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(requestLogger(s.logger), gin.Recovery(), securityHeaders())

	r.GET("/health", s.health)

	eng := r.Group("/engine")
	{
		eng.POST("/process-conversation", s.processConversation)
		eng.POST("/classify-intent", s.classifyIntent)
		eng.POST("/check-termination", s.checkTermination)
		eng.POST("/learn", s.learn)
		eng.POST("/batch-learn", s.batchLearn)
		eng.GET("/performance-metrics", s.performanceMetrics)
		eng.GET("/conversation-summary/:call_id", s.conversationSummary)
		eng.POST("/export-learning-model", s.exportLearningModel)
		eng.POST("/import-learning-model", s.importLearningModel)
	}

	an := r.Group("/analysis")
	{
		an.POST("/batch", s.submitBatch)
		an.GET("/batch/:id", s.getBatch)
		an.POST("/call/:id", s.analyzeCall)
		an.GET("/call/:id", s.callAnalysis)
	}

	r.GET("/api/v1/queue/stats", s.queueStats)
	return r
}

// health reports redis, database, and engine liveness.
func (s *Server) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	status := http.StatusOK
	body := gin.H{"status": "healthy"}

	if s.rdb != nil {
		if err := s.rdb.Ping(ctx).Err(); err != nil {
			status = http.StatusServiceUnavailable
			body["status"] = "unhealthy"
			body["redis"] = gin.H{"status": "unhealthy", "error": err.Error()}
		} else {
			body["redis"] = gin.H{"status": "healthy"}
		}
	}

	if s.db != nil {
		dbHealth, err := s.db.Health(ctx)
		body["database"] = dbHealth
		if err != nil {
			status = http.StatusServiceUnavailable
			body["status"] = "unhealthy"
		}
	}

	if s.engine != nil {
		body["active_calls"] = s.engine.ActiveCalls()
	}
	c.JSON(status, body)
}
