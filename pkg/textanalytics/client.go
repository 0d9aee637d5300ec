// Package textanalytics calls the remote sentiment endpoint. The contract
// is a bare JSON POST: documents in, per-class confidences out.
package textanalytics

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/halton/ai-answer-ninja-sub000/pkg/config"
)

// Document is one text submitted for analysis.
type Document struct {
	ID       string `json:"id"`
	Text     string `json:"text"`
	Language string `json:"language"`
}

// DocumentResult is the per-document sentiment verdict.
type DocumentResult struct {
	ID               string             `json:"id"`
	Sentiment        string             `json:"sentiment"` // positive, negative, neutral, mixed
	ConfidenceScores map[string]float64 `json:"confidenceScores"`
}

type analyzeRequest struct {
	Documents []Document `json:"documents"`
}

type analyzeResponse struct {
	Documents []DocumentResult `json:"documents"`
}

// Analyzer is the narrow interface the sentiment backend chain depends on.
type Analyzer interface {
	AnalyzeSentiment(ctx context.Context, docs []Document) ([]DocumentResult, error)
}

// Client implements Analyzer over HTTP.
type Client struct {
	endpoint string
	apiKey   string
	language string
	http     *http.Client
}

// NewClient constructs a Client from configuration. Endpoint may be empty,
// in which case every call fails and the caller falls through to the
// lexicon backend.
func NewClient(cfg *config.TextAnalyticsConfig) *Client {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Client{
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		language: cfg.Language,
		http:     &http.Client{Timeout: timeout},
	}
}

// Language returns the configured document language tag.
func (c *Client) Language() string { return c.language }

// AnalyzeSentiment submits docs and returns per-document results.
func (c *Client) AnalyzeSentiment(ctx context.Context, docs []Document) ([]DocumentResult, error) {
	if c.endpoint == "" {
		return nil, fmt.Errorf("textanalytics: endpoint not configured")
	}

	body, err := json.Marshal(analyzeRequest{Documents: docs})
	if err != nil {
		return nil, fmt.Errorf("textanalytics: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("textanalytics: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Ocp-Apim-Subscription-Key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("textanalytics: request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("textanalytics: status %d: %s", resp.StatusCode, string(raw))
	}

	var parsed analyzeResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("textanalytics: decode response: %w", err)
	}
	return parsed.Documents, nil
}
