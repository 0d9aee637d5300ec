package services

import (
	"context"
	"crypto/rand"
	stdsql "database/sql"
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/halton/ai-answer-ninja-sub000/pkg/analysis"
	"github.com/halton/ai-answer-ninja-sub000/pkg/database"
	"github.com/halton/ai-answer-ninja-sub000/pkg/models"
)

var (
	sharedConnStr string
	containerOnce sync.Once
	containerErr  error
)

// sharedDatabase returns a Postgres connection string: CI_DATABASE_URL if
// set, otherwise a package-shared testcontainer. Tests skip when neither
// is available.
func sharedDatabase(t *testing.T) string {
	t.Helper()
	if ciDatabaseURL := os.Getenv("CI_DATABASE_URL"); ciDatabaseURL != "" {
		return ciDatabaseURL
	}

	containerOnce.Do(func() {
		ctx := context.Background()
		pgContainer, err := postgres.Run(ctx,
			"postgres:17-alpine",
			postgres.WithDatabase("test"),
			postgres.WithUsername("test"),
			postgres.WithPassword("test"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(30*time.Second)),
		)
		if err != nil {
			containerErr = fmt.Errorf("start postgres container: %w", err)
			return
		}
		connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
		if err != nil {
			containerErr = fmt.Errorf("container connection string: %w", err)
			return
		}
		sharedConnStr = connStr
	})
	if containerErr != nil {
		t.Skipf("postgres unavailable (set CI_DATABASE_URL or run Docker): %v", containerErr)
	}
	return sharedConnStr
}

func schemaName(t *testing.T) string {
	name := strings.ToLower(t.Name())
	name = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			return r
		}
		return '_'
	}, name)
	if len(name) > 40 {
		name = name[:40]
	}
	randomBytes := make([]byte, 4)
	_, err := rand.Read(randomBytes)
	require.NoError(t, err)
	return fmt.Sprintf("test_%s_%s", name, hex.EncodeToString(randomBytes))
}

// setupTestStore creates an isolated schema, migrates it, and returns a
// store over a pool scoped to that schema.
func setupTestStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()
	connStr := sharedDatabase(t)
	schema := schemaName(t)

	db, err := stdsql.Open("pgx", connStr)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, fmt.Sprintf("CREATE SCHEMA %s", schema))
	require.NoError(t, err)
	require.NoError(t, db.Close())

	sep := "?"
	if strings.Contains(connStr, "?") {
		sep = "&"
	}
	schemaConnStr := fmt.Sprintf("%s%ssearch_path=%s", connStr, sep, schema)

	require.NoError(t, database.MigrateDSN(ctx, schemaConnStr, "test"))

	pool, err := pgxpool.New(ctx, schemaConnStr)
	require.NoError(t, err)

	t.Cleanup(func() {
		pool.Close()
		cleanDB, err := stdsql.Open("pgx", connStr)
		if err != nil {
			return
		}
		_, _ = cleanDB.ExecContext(context.Background(), fmt.Sprintf("DROP SCHEMA IF EXISTS %s CASCADE", schema))
		_ = cleanDB.Close()
	})
	return NewStore(pool)
}

func sampleCallRecord(callID string) *models.CallRecord {
	start := time.Date(2026, 4, 1, 9, 30, 0, 0, time.UTC)
	return &models.CallRecord{
		CallID:            callID,
		UserID:            "user-1",
		CallerFingerprint: "fp-abc",
		StartedAt:         start,
		EndedAt:           start.Add(75 * time.Second),
		EndReason:         models.ReasonExplicitTermination,
		FinalStage:        models.StageCallEnd,
		Transcript: []models.TurnRecord{
			{Speaker: models.SpeakerCaller, Text: "您好，有贷款需求吗？", Timestamp: start, Intent: models.IntentLoanOffer, IntentConfidence: 0.9, Emotion: "neutral"},
			{Speaker: models.SpeakerAI, Text: "谢谢，不需要。", Timestamp: start.Add(2 * time.Second), Strategy: models.StrategyGentleDecline},
		},
	}
}

func TestCallRecordRoundTrip(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	record := sampleCallRecord("call-rt-1")
	require.NoError(t, store.SaveCallRecord(ctx, record))

	got, err := store.CallRecord(ctx, "call-rt-1")
	require.NoError(t, err)
	assert.Equal(t, record.UserID, got.UserID)
	assert.Equal(t, record.CallerFingerprint, got.CallerFingerprint)
	assert.Equal(t, record.EndReason, got.EndReason)
	assert.Equal(t, record.FinalStage, got.FinalStage)
	assert.WithinDuration(t, record.StartedAt, got.StartedAt, time.Millisecond)
	require.Len(t, got.Transcript, 2)
	assert.Equal(t, record.Transcript[0].Text, got.Transcript[0].Text)
	assert.Equal(t, record.Transcript[1].Strategy, got.Transcript[1].Strategy)

	// Upsert replaces the terminal fields.
	record.EndReason = models.ReasonMaxTurnsExceeded
	require.NoError(t, store.SaveCallRecord(ctx, record))
	got, err = store.CallRecord(ctx, "call-rt-1")
	require.NoError(t, err)
	assert.Equal(t, models.ReasonMaxTurnsExceeded, got.EndReason)
}

func TestCallRecordNotFound(t *testing.T) {
	store := setupTestStore(t)

	_, err := store.CallRecord(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestAnalysisResultsRoundTrip(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveCallRecord(ctx, sampleCallRecord("call-ar-1")))
	require.NoError(t, store.SaveAnalysisResult(ctx, "call-ar-1", models.TaskContentAnalysis, map[string]any{"category": "loan_offer"}))
	require.NoError(t, store.SaveAnalysisResult(ctx, "call-ar-1", models.TaskSummary, map[string]any{"text": "一通贷款推销来电。"}))
	// Upsert overwrites.
	require.NoError(t, store.SaveAnalysisResult(ctx, "call-ar-1", models.TaskContentAnalysis, map[string]any{"category": "insurance_sales"}))

	results, err := store.AnalysisResults(ctx, "call-ar-1")
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "insurance_sales", results[string(models.TaskContentAnalysis)]["category"])
	assert.Equal(t, "一通贷款推销来电。", results[string(models.TaskSummary)]["text"])

	_, err = store.AnalysisResults(ctx, "call-without-results")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestUserProfileRoundTrip(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	_, err := store.UserProfile(ctx, "user-np")
	require.ErrorIs(t, err, ErrNotFound)

	profile := &models.UserProfile{
		UserID:        "user-rt",
		Personality:   models.PersonalityHumorous,
		SpeechStyle:   models.StyleBrief,
		Preferences:   map[string]string{"quiet_hours": "22:00-08:00"},
		Effectiveness: map[string]float64{"witty_response": 0.82},
	}
	require.NoError(t, store.SaveUserProfile(ctx, profile))

	got, err := store.UserProfile(ctx, "user-rt")
	require.NoError(t, err)
	assert.Equal(t, profile.Personality, got.Personality)
	assert.Equal(t, profile.SpeechStyle, got.SpeechStyle)
	assert.Equal(t, profile.Preferences, got.Preferences)
	assert.Equal(t, profile.Effectiveness, got.Effectiveness)
}

func TestBatchJobRoundTrip(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	_, err := store.BatchJob(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)

	job := &models.BatchJob{
		ID:             "batch-rt",
		UserID:         "user-1",
		CallIDs:        []string{"c1", "c2"},
		AnalysisTypes:  []models.TaskType{models.TaskFullAnalysis},
		Priority:       models.PriorityHigh,
		TotalCalls:     2,
		CompletedCalls: 0,
		Status:         models.BatchStatusProcessing,
		CallbackURL:    "http://localhost/cb",
		CreatedAt:      time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC),
	}
	require.NoError(t, store.SaveBatchJob(ctx, job))

	// Completion flip is an upsert on the same row.
	job.CompletedCalls = 2
	job.Status = models.BatchStatusCompleted
	require.NoError(t, store.SaveBatchJob(ctx, job))

	got, err := store.BatchJob(ctx, "batch-rt")
	require.NoError(t, err)
	assert.Equal(t, job.CallIDs, got.CallIDs)
	assert.Equal(t, models.PriorityHigh, got.Priority)
	assert.Equal(t, 2, got.CompletedCalls)
	assert.Equal(t, models.BatchStatusCompleted, got.Status)
	assert.WithinDuration(t, job.CreatedAt, got.CreatedAt, time.Millisecond)
}

func TestSpamProfileRoundTrip(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	_, err := store.SpamProfile(ctx, "fp-none")
	require.ErrorIs(t, err, ErrNotFound)

	profile := &models.SpamProfile{
		Fingerprint:    "fp-rt",
		Category:       models.IntentLoanOffer,
		RiskScore:      0.7,
		Confidence:     0.9,
		Reports:        12,
		Blocked:        3,
		BypassAttempts: 1,
		LastActivity:   time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC),
	}
	require.NoError(t, store.SaveSpamProfile(ctx, profile))

	got, err := store.SpamProfile(ctx, "fp-rt")
	require.NoError(t, err)
	assert.Equal(t, profile.Category, got.Category)
	assert.InDelta(t, profile.RiskScore, got.RiskScore, 1e-9)
	assert.Equal(t, profile.Reports, got.Reports)
	assert.Equal(t, profile.Blocked, got.Blocked)
	assert.WithinDuration(t, profile.LastActivity, got.LastActivity, time.Millisecond)
}

// sinkQueueRedis is the minimal list fake behind the sink's queue.
type sinkQueueRedis struct {
	mu    sync.Mutex
	lists map[string][]string
}

func newSinkQueueRedis() *sinkQueueRedis { return &sinkQueueRedis{lists: map[string][]string{}} }

func (f *sinkQueueRedis) LPush(_ context.Context, key string, values ...interface{}) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, v := range values {
		f.lists[key] = append([]string{string(v.([]byte))}, f.lists[key]...)
	}
	return redis.NewIntResult(int64(len(f.lists[key])), nil)
}

func (f *sinkQueueRedis) BRPop(_ context.Context, _ time.Duration, keys ...string) *redis.StringSliceCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, key := range keys {
		list := f.lists[key]
		if len(list) == 0 {
			continue
		}
		v := list[len(list)-1]
		f.lists[key] = list[:len(list)-1]
		return redis.NewStringSliceResult([]string{key, v}, nil)
	}
	return redis.NewStringSliceResult(nil, redis.Nil)
}

func (f *sinkQueueRedis) LLen(_ context.Context, key string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	return redis.NewIntResult(int64(len(f.lists[key])), nil)
}

func TestCallEndSinkPersistsAndSchedules(t *testing.T) {
	store := setupTestStore(t)
	queue := analysis.NewQueue(newSinkQueueRedis(), 100, time.Second)
	sink := NewCallEndSink(store, queue, nil)
	ctx := context.Background()

	start := time.Date(2026, 4, 2, 8, 0, 0, 0, time.UTC)
	summary := &models.CallSummary{
		CallID:          "call-sink-1",
		UserID:          "user-1",
		EndReason:       models.ReasonExplicitTermination,
		FinalStage:      models.StageCallEnd,
		TurnCount:       2,
		CallerTurns:     1,
		DurationSeconds: 42,
		StartedAt:       start,
		EndedAt:         start.Add(42 * time.Second),
	}
	state := &models.DialogueState{
		CallID:            "call-sink-1",
		UserID:            "user-1",
		CallerFingerprint: "fp-sink",
		Stage:             models.StageCallEnd,
		StartedAt:         start,
		Turns: []models.TurnRecord{
			{Speaker: models.SpeakerCaller, Text: "再见。", Timestamp: start},
			{Speaker: models.SpeakerAI, Text: "再见。", Timestamp: start.Add(time.Second)},
		},
	}

	sink.OnCallEnd(ctx, summary, state)

	record, err := store.CallRecord(ctx, "call-sink-1")
	require.NoError(t, err)
	assert.Equal(t, "fp-sink", record.CallerFingerprint)
	assert.Len(t, record.Transcript, 2)

	task, err := queue.Dequeue(ctx)
	require.NoError(t, err)
	require.NotNil(t, task)
	assert.Equal(t, models.TaskFullAnalysis, task.Type)
	assert.Equal(t, "call-sink-1", task.CallID)
	assert.Equal(t, "user-1", task.Args[models.ArgUserID])
}
