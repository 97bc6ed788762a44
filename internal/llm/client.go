// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package llm streams chat completions from the Anthropic Messages API.
package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/ManuGH/shotline/internal/log"
	"github.com/ManuGH/shotline/internal/metrics"
)

const (
	DefaultBaseURL   = "https://api.anthropic.com"
	DefaultModel     = "claude-sonnet-4-20250514"
	DefaultMaxTokens = 4096
	APIVersion       = "2023-06-01"
)

// Message is one turn of the conversation sent upstream.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Config configures a Client.
type Config struct {
	BaseURL   string
	APIKey    string
	Model     string
	MaxTokens int
	// Timeout bounds the whole streamed exchange.
	Timeout   time.Duration
	Transport http.RoundTripper
}

// Client streams completions. It is safe for concurrent use.
type Client struct {
	base      string
	key       string
	model     string
	maxTokens int
	system    string
	http      *http.Client
	logger    zerolog.Logger
}

// New builds a client. An empty key is accepted; Stream then fails with ErrNotConfigured.
func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}
	if cfg.Transport == nil {
		cfg.Transport = http.DefaultTransport
	}
	return &Client{
		base:      strings.TrimRight(cfg.BaseURL, "/"),
		key:       cfg.APIKey,
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		system:    SystemPrompt,
		http:      &http.Client{Timeout: cfg.Timeout, Transport: otelhttp.NewTransport(cfg.Transport)},
		logger:    log.WithComponent("llm"),
	}
}

// Configured reports whether an API key is set.
func (c *Client) Configured() bool { return c.key != "" }

type requestBody struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	System    string    `json:"system"`
	Messages  []Message `json:"messages"`
	Stream    bool      `json:"stream"`
}

type streamEvent struct {
	Type  string `json:"type"`
	Delta struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"delta"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Stream sends messages and calls fn with each text delta as it arrives.
// It returns the concatenated reply. An error from fn aborts the stream.
func (c *Client) Stream(ctx context.Context, messages []Message, fn func(delta string) error) (reply string, err error) {
	start := time.Now()
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = outcomeOf(err)
			c.logger.Warn().Err(err).Str(log.FieldOperation, "stream").Msg("chat completion failed")
		}
		metrics.ObserveProviderRequest("llm", "stream", outcome, time.Since(start))
	}()

	if c.key == "" {
		return "", &APIError{Sentinel: ErrNotConfigured}
	}
	turns := make([]Message, 0, len(messages))
	for _, m := range messages {
		if strings.TrimSpace(m.Content) == "" {
			continue
		}
		turns = append(turns, m)
	}
	if len(turns) == 0 {
		return "", &APIError{Sentinel: ErrInvalidRequest, Err: errors.New("no non-empty messages")}
	}

	payload, err := json.Marshal(requestBody{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		System:    c.system,
		Messages:  turns,
		Stream:    true,
	})
	if err != nil {
		return "", &APIError{Sentinel: ErrInvalidRequest, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/v1/messages", bytes.NewReader(payload))
	if err != nil {
		return "", &APIError{Sentinel: ErrInvalidRequest, Err: err}
	}
	req.Header.Set("x-api-key", c.key)
	req.Header.Set("anthropic-version", APIVersion)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	res, err := c.http.Do(req)
	if err != nil {
		return "", &APIError{Sentinel: ErrUnavailable, Err: err}
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return "", &APIError{Sentinel: statusSentinel(res.StatusCode), Status: res.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	return readStream(res.Body, fn)
}

// readStream consumes server-sent events and collects text deltas.
func readStream(r io.Reader, fn func(string) error) (string, error) {
	var out strings.Builder
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)

	for sc.Scan() {
		line := sc.Text()
		data, ok := strings.CutPrefix(line, "data:")
		if !ok {
			continue
		}
		data = strings.TrimSpace(data)
		if data == "" || data == "[DONE]" {
			continue
		}

		var ev streamEvent
		if err := json.Unmarshal([]byte(data), &ev); err != nil {
			return out.String(), &APIError{Sentinel: ErrBadResponse, Err: fmt.Errorf("decode event: %w", err)}
		}
		switch ev.Type {
		case "content_block_delta":
			if ev.Delta.Type != "text_delta" || ev.Delta.Text == "" {
				continue
			}
			out.WriteString(ev.Delta.Text)
			if fn != nil {
				if err := fn(ev.Delta.Text); err != nil {
					return out.String(), err
				}
			}
		case "error":
			msg := "stream error"
			if ev.Error != nil {
				msg = ev.Error.Type + ": " + ev.Error.Message
			}
			return out.String(), &APIError{Sentinel: ErrUpstream, Body: msg}
		case "message_stop":
			return out.String(), nil
		}
	}
	if err := sc.Err(); err != nil {
		return out.String(), &APIError{Sentinel: ErrUnavailable, Err: err}
	}
	return out.String(), nil
}

func outcomeOf(err error) string {
	switch {
	case errors.Is(err, ErrNotConfigured):
		return "not_configured"
	case errors.Is(err, ErrInvalidRequest):
		return "invalid_request"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrUpstream):
		return "upstream"
	case errors.Is(err, ErrBadResponse):
		return "bad_response"
	case errors.Is(err, ErrUnavailable):
		return "unavailable"
	default:
		return "error"
	}
}
