// Package trace talks to the run tracing service: it collects run
// identifiers reported during streaming and submits user feedback scores
// against them.
package trace

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Feedback is the tracing service's record of a submitted score.
type Feedback struct {
	ID string `json:"id"`
}

// Client is a thin HTTP client for the tracing service.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	logger  *zap.Logger
}

// NewClient builds a tracing client. A nil logger is replaced with a no-op
// logger.
func NewClient(baseURL, apiKey string, timeout time.Duration, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

type feedbackRequest struct {
	RunID   string  `json:"run_id"`
	Key     string  `json:"key"`
	Score   float64 `json:"score"`
	Comment string  `json:"comment,omitempty"`
}

// CreateFeedback submits a scored feedback record for a traced run and
// returns the service's identifier for it.
func (c *Client) CreateFeedback(ctx context.Context, runID, key string, score float64, comment string) (Feedback, error) {
	body, err := json.Marshal(feedbackRequest{RunID: runID, Key: key, Score: score, Comment: comment})
	if err != nil {
		return Feedback{}, fmt.Errorf("encode feedback: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/feedback", bytes.NewReader(body))
	if err != nil {
		return Feedback{}, fmt.Errorf("build feedback request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return Feedback{}, fmt.Errorf("submit feedback: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Feedback{}, fmt.Errorf("tracing service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var fb Feedback
	if err := json.NewDecoder(resp.Body).Decode(&fb); err != nil {
		return Feedback{}, fmt.Errorf("decode feedback response: %w", err)
	}

	c.logger.Info("feedback submitted",
		zap.String("run_id", runID),
		zap.String("feedback_id", fb.ID),
		zap.Float64("score", score))
	return fb, nil
}

// RunCollector records run identifiers reported while a turn streams. The
// last identifier reported before the turn completes is the one feedback
// binds to.
type RunCollector struct {
	mu    sync.Mutex
	runID string
	seen  bool
}

// NewRunCollector returns an empty collector.
func NewRunCollector() *RunCollector {
	return &RunCollector{}
}

// RunStarted records a reported run identifier, replacing any earlier one.
func (rc *RunCollector) RunStarted(runID string) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	if runID == "" {
		return
	}
	rc.runID = runID
	rc.seen = true
}

// LastRunID returns the most recently reported run identifier.
func (rc *RunCollector) LastRunID() (string, bool) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return rc.runID, rc.seen
}

// Reset clears the collector for the next turn.
func (rc *RunCollector) Reset() {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.runID = ""
	rc.seen = false
}
