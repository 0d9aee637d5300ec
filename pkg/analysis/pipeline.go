package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/halton/ai-answer-ninja-sub000/pkg/cache"
	"github.com/halton/ai-answer-ninja-sub000/pkg/intent"
	"github.com/halton/ai-answer-ninja-sub000/pkg/models"
	"github.com/halton/ai-answer-ninja-sub000/pkg/sentiment"
)

// CachePrefix is the Redis namespace for per-type analysis results.
const CachePrefix = "analysis"

// CallSource loads completed call records for analysis.
type CallSource interface {
	CallRecord(ctx context.Context, callID string) (*models.CallRecord, error)
}

// ResultStore persists analysis rows. Nil disables persistence.
type ResultStore interface {
	SaveAnalysisResult(ctx context.Context, callID string, typ models.TaskType, payload map[string]any) error
}

// Pipeline routes tasks to their handlers. The analysis cache is
// read-through at (call_id, analysis_type) granularity.
type Pipeline struct {
	calls      CallSource
	results    ResultStore
	classifier *intent.Classifier
	analyzer   *sentiment.Analyzer
	summarizer *SummaryGenerator
	cache      *cache.Cache[map[string]any] // nil disables caching
	logger     *slog.Logger
}

// NewPipeline assembles the handler set.
func NewPipeline(calls CallSource, results ResultStore, classifier *intent.Classifier, analyzer *sentiment.Analyzer, summarizer *SummaryGenerator, c *cache.Cache[map[string]any], logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		calls:      calls,
		results:    results,
		classifier: classifier,
		analyzer:   analyzer,
		summarizer: summarizer,
		cache:      c,
		logger:     logger.With("component", "analysis.pipeline"),
	}
}

// Handle executes one claimed task. The switch is exhaustive over the
// task types the queue admits.
func (p *Pipeline) Handle(ctx context.Context, task *models.QueuedTask) (map[string]any, error) {
	record, err := p.calls.CallRecord(ctx, task.CallID)
	if err != nil {
		return nil, fmt.Errorf("load call %s: %w", task.CallID, err)
	}

	switch task.Type {
	case models.TaskTranscription:
		return p.runTyped(ctx, task.CallID, models.TaskTranscription, func() (map[string]any, error) {
			return p.transcription(record), nil
		})
	case models.TaskContentAnalysis:
		return p.runTyped(ctx, task.CallID, models.TaskContentAnalysis, func() (map[string]any, error) {
			return p.contentAnalysis(ctx, record), nil
		})
	case models.TaskEffectiveness:
		return p.runTyped(ctx, task.CallID, models.TaskEffectiveness, func() (map[string]any, error) {
			return p.effectiveness(ctx, record)
		})
	case models.TaskSummary:
		return p.runTyped(ctx, task.CallID, models.TaskSummary, func() (map[string]any, error) {
			return p.summary(ctx, record, nil, nil), nil
		})
	case models.TaskFullAnalysis:
		return p.fullAnalysis(ctx, record)
	default:
		return nil, fmt.Errorf("unroutable task type %q", task.Type)
	}
}

// fullAnalysis fans out: content and effectiveness in parallel, then the
// summary strictly after both, consuming their outputs.
func (p *Pipeline) fullAnalysis(ctx context.Context, record *models.CallRecord) (map[string]any, error) {
	var content, effectiveness map[string]any
	var contentErr, effErr error

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		content, contentErr = p.runTyped(gctx, record.CallID, models.TaskContentAnalysis, func() (map[string]any, error) {
			return p.contentAnalysis(gctx, record), nil
		})
		return nil
	})
	g.Go(func() error {
		effectiveness, effErr = p.runTyped(gctx, record.CallID, models.TaskEffectiveness, func() (map[string]any, error) {
			return p.effectiveness(gctx, record)
		})
		return nil
	})
	_ = g.Wait()

	// A failed sub-analysis becomes an error field in the combined
	// payload; it never aborts the run.
	payload := map[string]any{}
	if contentErr != nil {
		payload["content_analysis"] = map[string]any{"error": contentErr.Error()}
	} else {
		payload["content_analysis"] = content
	}
	if effErr != nil {
		payload["effectiveness"] = map[string]any{"error": effErr.Error()}
	} else {
		payload["effectiveness"] = effectiveness
	}

	var report *EffectivenessReport
	if effErr == nil {
		report = reportFromMap(effectiveness)
	}
	summaryPayload, err := p.runTyped(ctx, record.CallID, models.TaskSummary, func() (map[string]any, error) {
		return p.summary(ctx, record, content, report), nil
	})
	if err != nil {
		payload["summary"] = map[string]any{"error": err.Error()}
	} else {
		payload["summary"] = summaryPayload
	}
	return payload, nil
}

// runTyped wraps one analysis type with read-through caching and result
// persistence.
func (p *Pipeline) runTyped(ctx context.Context, callID string, typ models.TaskType, compute func() (map[string]any, error)) (map[string]any, error) {
	key := callID + ":" + string(typ)
	if p.cache != nil {
		cached, found, err := p.cache.Get(ctx, key)
		if err != nil {
			p.logger.Warn("analysis cache read failed", "type", typ, "error", err)
		} else if found {
			return cached, nil
		}
	}

	payload, err := compute()
	if err != nil {
		return nil, err
	}

	if p.cache != nil {
		if err := p.cache.Set(ctx, key, payload); err != nil {
			p.logger.Warn("analysis cache write failed", "type", typ, "error", err)
		}
	}
	if p.results != nil {
		if err := p.results.SaveAnalysisResult(ctx, callID, typ, payload); err != nil {
			p.logger.Warn("analysis result persistence failed", "type", typ, "error", err)
		}
	}
	return payload, nil
}

// transcription finalizes the transcript into its exported form.
func (p *Pipeline) transcription(record *models.CallRecord) map[string]any {
	lines := make([]string, 0, len(record.Transcript))
	for _, turn := range record.Transcript {
		role := "caller"
		if turn.Speaker == models.SpeakerAI {
			role = "ai"
		}
		lines = append(lines, role+": "+turn.Text)
	}
	return map[string]any{
		"text":             strings.Join(lines, "\n"),
		"turn_count":       len(record.Transcript),
		"caller_turns":     len(record.CallerTurns()),
		"ai_turns":         len(record.AITurns()),
		"duration_seconds": record.DurationSeconds(),
	}
}

// contentAnalysis re-classifies the caller side of the transcript and
// aggregates categories, keywords, and emotional signals.
func (p *Pipeline) contentAnalysis(ctx context.Context, record *models.CallRecord) map[string]any {
	categoryCounts := map[string]int{}
	keywords := map[string]struct{}{}
	var persistenceSignals []string
	var peakIntensity float64

	for _, turn := range record.CallerTurns() {
		result := p.classifier.Classify(ctx, turn.Text, nil, nil)
		if result.Intent != models.IntentUnknown {
			categoryCounts[result.Intent]++
		}
		for _, kw := range result.KeywordsMatched {
			keywords[kw] = struct{}{}
		}

		analysis := p.analyzer.Analyze(ctx, turn.Text)
		persistenceSignals = append(persistenceSignals, analysis.PersistenceIndicators...)
		if analysis.EmotionalIntensity > peakIntensity {
			peakIntensity = analysis.EmotionalIntensity
		}
	}

	category := ""
	best := 0
	for _, c := range models.KnownIntents {
		if categoryCounts[c] > best {
			category = c
			best = categoryCounts[c]
		}
	}

	keywordList := make([]string, 0, len(keywords))
	for kw := range keywords {
		keywordList = append(keywordList, kw)
	}

	return map[string]any{
		"category":            category,
		"category_counts":     categoryCounts,
		"keywords":            keywordList,
		"persistence_signals": persistenceSignals,
		"peak_intensity":      peakIntensity,
	}
}

func (p *Pipeline) effectiveness(ctx context.Context, record *models.CallRecord) (map[string]any, error) {
	report, err := EvaluateEffectiveness(ctx, record)
	if err != nil {
		return nil, err
	}
	return reportToMap(report), nil
}

func (p *Pipeline) summary(ctx context.Context, record *models.CallRecord, content map[string]any, report *EffectivenessReport) map[string]any {
	text := p.summarizer.Summarize(ctx, record, content, report, SummaryComprehensive)
	return map[string]any{
		"text":  text,
		"style": string(SummaryComprehensive),
	}
}

func reportToMap(report *EffectivenessReport) map[string]any {
	raw, _ := json.Marshal(report)
	var m map[string]any
	_ = json.Unmarshal(raw, &m)
	return m
}

func reportFromMap(m map[string]any) *EffectivenessReport {
	raw, _ := json.Marshal(m)
	var report EffectivenessReport
	_ = json.Unmarshal(raw, &report)
	return &report
}
