// Package pipeline streams retrieval-augmented answer events from the
// answer pipeline service over newline-delimited JSON.
package pipeline

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"gamer/internal/chat"
)

// maxLineBytes bounds a single NDJSON line; tool output payloads can carry
// whole documents.
const maxLineBytes = 4 * 1024 * 1024

// Client implements chat.Pipeline against the streaming HTTP API.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	logger  *zap.Logger
}

// NewClient builds a pipeline client. The HTTP client carries no overall
// timeout; a turn lives as long as its context does.
func NewClient(baseURL, apiKey string, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{},
		logger:  logger,
	}
}

type streamRequest struct {
	Messages        []chat.Message `json:"messages"`
	PriorGeneration string         `json:"prior_generation,omitempty"`
	DataRoute       string         `json:"data_route,omitempty"`
}

// wireEvent is one NDJSON line from the service. A run identifier may ride
// on any event and is reported to the run callbacks rather than surfaced as
// stream content.
type wireEvent struct {
	Type    string          `json:"type"`
	Content json.RawMessage `json:"content"`
	RunID   string          `json:"run_id,omitempty"`
}

// Stream posts the conversation to the service and relays decoded events to
// emit until the response body is exhausted. Decode and transport faults are
// returned to the caller; the executor owns turning them into a terminal
// error event.
func (c *Client) Stream(ctx context.Context, in chat.StreamInput, cfg chat.RunConfig, emit func(chat.StreamEvent) error) error {
	body, err := json.Marshal(streamRequest{
		Messages:        in.Messages,
		PriorGeneration: in.PriorGeneration,
		DataRoute:       cfg.DataRoute,
	})
	if err != nil {
		return fmt.Errorf("encode stream request: %w", err)
	}

	url := fmt.Sprintf("%s/threads/%s/stream", c.baseURL, cfg.ThreadID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build stream request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/x-ndjson")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("open stream: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("pipeline returned %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)

	events := 0
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var we wireEvent
		if err := json.Unmarshal(line, &we); err != nil {
			return fmt.Errorf("decode stream event: %w", err)
		}

		if we.RunID != "" {
			for _, cb := range cfg.Callbacks {
				cb.RunStarted(we.RunID)
			}
		}

		ev := chat.StreamEvent{Type: chat.EventType(we.Type), Content: decodeContent(we.Content)}
		if err := emit(ev); err != nil {
			return err
		}
		events++
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read stream: %w", err)
	}

	c.logger.Debug("stream drained",
		zap.String("thread_id", cfg.ThreadID),
		zap.Int("events", events),
		zap.Duration("elapsed", time.Since(started)))
	return nil
}

// decodeContent keeps string payloads as their literal text and leaves any
// other JSON value in serialized form for the renderer to interpret.
func decodeContent(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
