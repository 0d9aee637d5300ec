// Answer-ninja server — runs the dialogue engine HTTP API and the
// post-call analysis worker pool.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/halton/ai-answer-ninja-sub000/pkg/analysis"
	"github.com/halton/ai-answer-ninja-sub000/pkg/api"
	"github.com/halton/ai-answer-ninja-sub000/pkg/cache"
	"github.com/halton/ai-answer-ninja-sub000/pkg/config"
	"github.com/halton/ai-answer-ninja-sub000/pkg/database"
	"github.com/halton/ai-answer-ninja-sub000/pkg/dialogue"
	"github.com/halton/ai-answer-ninja-sub000/pkg/engine"
	"github.com/halton/ai-answer-ninja-sub000/pkg/fingerprint"
	"github.com/halton/ai-answer-ninja-sub000/pkg/intent"
	"github.com/halton/ai-answer-ninja-sub000/pkg/learning"
	"github.com/halton/ai-answer-ninja-sub000/pkg/llm"
	"github.com/halton/ai-answer-ninja-sub000/pkg/models"
	"github.com/halton/ai-answer-ninja-sub000/pkg/redisx"
	"github.com/halton/ai-answer-ninja-sub000/pkg/responder"
	"github.com/halton/ai-answer-ninja-sub000/pkg/sentiment"
	"github.com/halton/ai-answer-ninja-sub000/pkg/services"
	"github.com/halton/ai-answer-ninja-sub000/pkg/termination"
	"github.com/halton/ai-answer-ninja-sub000/pkg/textanalytics"
	"github.com/halton/ai-answer-ninja-sub000/pkg/version"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	configDir := flag.String("config-dir",
		getEnv("CONFIG_DIR", "./deploy/config"),
		"Path to configuration directory")
	flag.Parse()

	// Load .env file from config directory
	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		slog.Warn("Could not load .env file, continuing with existing environment",
			"path", envPath, "error", err)
	} else {
		slog.Info("Loaded environment", "path", envPath)
	}

	httpPort := getEnv("HTTP_PORT", "8080")

	slog.Info("Starting answer-ninja",
		"version", version.Full(),
		"http_port", httpPort,
		"config_dir", *configDir)

	ctx := context.Background()

	// 1. Initialize configuration
	cfg, err := config.Initialize(ctx, *configDir)
	if err != nil {
		slog.Error("Failed to initialize configuration", "error", err)
		os.Exit(1)
	}

	// 2. Initialize database (runs embedded migrations)
	dbClient, err := database.NewClient(ctx, cfg.Database, nil)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer dbClient.Close()
	slog.Info("Connected to PostgreSQL database")

	// 3. Initialize Redis
	rdb, err := redisx.NewClient(ctx, cfg.Redis)
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			slog.Error("Error closing Redis client", "error", err)
		}
	}()

	// 4. Optional LLM backend. Without an API key the responder serves
	// stage templates and the summarizer falls back to its template path.
	var completer llm.Completer
	if cfg.LLM.APIKey != "" {
		llmClient, err := llm.NewClient(cfg.LLM)
		if err != nil {
			slog.Error("Failed to initialize LLM client", "error", err)
			os.Exit(1)
		}
		completer = llmClient
		slog.Info("LLM client initialized", "model", cfg.LLM.Model)
	} else {
		slog.Warn("LLM api key not configured, template responses only")
	}

	// 5. Optional remote sentiment backend
	var remote textanalytics.Analyzer
	if cfg.TextAnalytics.Endpoint != "" {
		remote = textanalytics.NewClient(cfg.TextAnalytics)
		slog.Info("Text analytics client initialized", "endpoint", cfg.TextAnalytics.Endpoint)
	}

	// 6. Caches over the shared Redis client
	intentCache := cache.New[models.IntentResult](rdb, intent.CachePrefix, cfg.Redis.IntentCacheTTL)
	sentimentCache := cache.New[models.ConversationAnalysis](rdb, sentiment.CachePrefix, cfg.Redis.SentimentCacheTTL)
	responseCache := cache.New[responder.CachedResponse](rdb, responder.CachePrefix, cfg.Redis.ResponseCacheTTL)
	stateCache := cache.New[models.DialogueState](rdb, "dialogue_state", cfg.Redis.DialogueStateTTL)
	analysisCache := cache.New[map[string]any](rdb, analysis.CachePrefix, cfg.Redis.AnalysisCacheTTL)

	// 7. Domain services
	store := services.NewStore(dbClient.Pool())
	queue := analysis.NewQueue(rdb, cfg.Redis.MaxQueueLength, cfg.Redis.DequeueBlockTimeout)
	endSink := services.NewCallEndSink(store, queue, nil)

	learningSystem := learning.NewSystem(cfg.Learning, nil)

	tracker := dialogue.NewTracker(stateCache, nil)
	classifier := intent.NewClassifier(intentCache, learningSystem, nil)
	analyzer := sentiment.NewAnalyzer(cfg.TextAnalytics.LocalModelPath, remote, cfg.TextAnalytics.Language, sentimentCache, nil)
	analyzer.Warmup()
	generator := responder.NewGenerator(completer, responseCache, cfg.Engine.MaxTurns, cfg.Engine.CacheConfidenceMin, nil)
	decider := termination.NewDecider(cfg.Engine, cfg.Learning.AdaptationWindow, nil)
	hasher := fingerprint.NewHasher(cfg.Privacy.PhoneSalt)

	eng := engine.New(tracker, classifier, analyzer, generator, decider, hasher, store, endSink, cfg.Engine, nil)
	slog.Info("Dialogue engine initialized")

	// 8. Post-call analysis pipeline and worker pool
	summarizer := analysis.NewSummaryGenerator(completer)
	pipeline := analysis.NewPipeline(store, store, classifier, analyzer, summarizer, analysisCache, nil)
	batches := analysis.NewBatchManager(rdb, queue, cfg.Redis.BatchTTL, cfg.Pipeline.CallbackRetries, nil)
	batches.SetDurableStore(store)

	workerPool := analysis.NewWorkerPool(queue, pipeline, batches, rdb, cfg.Redis.ResultChannel, cfg.Pipeline, nil)
	workerPool.Start(ctx)

	// 9. HTTP server
	server := api.NewServer(eng, learningSystem, decider, queue, batches, store, rdb, dbClient, nil)
	httpServer := &http.Server{
		Addr:              ":" + httpPort,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			errCh <- err
		}
	}()

	slog.Info("Answer-ninja started successfully", "workers", cfg.Pipeline.WorkerCount)

	// 10. Wait for shutdown signal or server error
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		slog.Info("Shutdown signal received", "signal", sig)
	case err := <-errCh:
		slog.Error("Server error triggered shutdown", "error", err)
	}

	// 11. Graceful shutdown: stop accepting requests first, then drain the
	// workers, then release the stores via the deferred closers.
	httpShutdownCtx, httpCancel := context.WithTimeout(ctx, 5*time.Second)
	defer httpCancel()
	if err := httpServer.Shutdown(httpShutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	workerPool.Stop()

	slog.Info("Shutdown complete")
}
