package textanalytics

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halton/ai-answer-ninja-sub000/pkg/config"
)

func TestAnalyzeSentiment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "key-1", r.Header.Get("Ocp-Apim-Subscription-Key"))

		var req analyzeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Documents, 1)
		assert.Equal(t, "zh-Hans", req.Documents[0].Language)

		_ = json.NewEncoder(w).Encode(analyzeResponse{Documents: []DocumentResult{{
			ID:        req.Documents[0].ID,
			Sentiment: "negative",
			ConfidenceScores: map[string]float64{
				"positive": 0.05, "neutral": 0.15, "negative": 0.8,
			},
		}}})
	}))
	defer srv.Close()

	c := NewClient(&config.TextAnalyticsConfig{
		Endpoint:       srv.URL,
		APIKey:         "key-1",
		Language:       "zh-Hans",
		RequestTimeout: time.Second,
	})

	results, err := c.AnalyzeSentiment(context.Background(), []Document{
		{ID: "1", Text: "别再打电话了", Language: c.Language()},
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "negative", results[0].Sentiment)
	assert.InDelta(t, 0.8, results[0].ConfidenceScores["negative"], 1e-9)
}

func TestAnalyzeSentimentHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient(&config.TextAnalyticsConfig{Endpoint: srv.URL})
	_, err := c.AnalyzeSentiment(context.Background(), []Document{{ID: "1", Text: "x"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestAnalyzeSentimentNoEndpoint(t *testing.T) {
	c := NewClient(&config.TextAnalyticsConfig{})
	_, err := c.AnalyzeSentiment(context.Background(), nil)
	require.Error(t, err)
}
