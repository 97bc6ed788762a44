// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package runway is the client for the Runway text-to-video task API.
package runway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"

	"github.com/ManuGH/shotline/internal/log"
	"github.com/ManuGH/shotline/internal/metrics"
	"github.com/ManuGH/shotline/internal/resilience"
	"github.com/ManuGH/shotline/internal/storyboard"
)

// Config configures a Client. Zero values take the package defaults.
type Config struct {
	BaseURL          string
	APISecret        string
	Version          string
	Model            string
	Ratio            string
	Timeout          time.Duration
	RateLimitRPS     float64
	RateLimitBurst   int
	BreakerThreshold int
	BreakerReset     time.Duration

	// Transport is the base round tripper; defaults to http.DefaultTransport.
	Transport http.RoundTripper
}

// Client talks to the Runway API. It is safe for concurrent use.
type Client struct {
	base    string
	secret  string
	version string
	model   string
	ratio   string

	http    *http.Client
	limiter *rate.Limiter
	breaker *resilience.CircuitBreaker
	logger  zerolog.Logger
}

// New builds a client. An empty secret is accepted; every call then fails
// with ErrNotConfigured.
func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Version == "" {
		cfg.Version = DefaultVersion
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Transport == nil {
		cfg.Transport = http.DefaultTransport
	}

	limit := rate.Inf
	if cfg.RateLimitRPS > 0 {
		limit = rate.Limit(cfg.RateLimitRPS)
	}
	burst := cfg.RateLimitBurst
	if burst <= 0 {
		burst = 1
	}

	return &Client{
		base:    strings.TrimRight(cfg.BaseURL, "/"),
		secret:  cfg.APISecret,
		version: cfg.Version,
		model:   cfg.Model,
		ratio:   PixelRatio(cfg.Ratio, DefaultRatio),
		http: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(cfg.Transport),
		},
		limiter: rate.NewLimiter(limit, burst),
		breaker: resilience.NewCircuitBreaker("runway", cfg.BreakerThreshold, cfg.BreakerReset,
			resilience.WithFailurePredicate(countsAsFailure)),
		logger: log.WithComponent("runway"),
	}
}

// Configured reports whether an API secret is set.
func (c *Client) Configured() bool { return c.secret != "" }

// BreakerState exposes the circuit breaker state for health checks.
func (c *Client) BreakerState() resilience.State { return c.breaker.State() }

// Generate submits a text-to-video task.
func (c *Client) Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, error) {
	const op = "generate"
	prompt, err := NormalizePrompt(req.Prompt)
	if err != nil {
		return GenerateResponse{}, &APIError{Sentinel: ErrInvalidRequest, Operation: op, Err: err}
	}
	if err := validateRequest(req); err != nil {
		return GenerateResponse{}, &APIError{Sentinel: ErrInvalidRequest, Operation: op, Err: err}
	}

	body := textToVideoBody{
		Model:       c.model,
		PromptText:  prompt,
		Ratio:       PixelRatio(req.Ratio, c.ratio),
		Duration:    req.Duration,
		Seed:        req.Seed,
		Watermark:   req.Watermark,
		PromptImage: req.ImageURL,
	}

	var task taskPayload
	if err := c.do(ctx, op, http.MethodPost, "/text_to_video", body, &task); err != nil {
		return GenerateResponse{}, err
	}
	if task.id() == "" {
		return GenerateResponse{}, &APIError{Sentinel: ErrBadResponse, Operation: op, Err: errors.New("response carries no task id")}
	}
	status := task.Status
	if status == "" {
		status = storyboard.StatusPending
	}
	return GenerateResponse{TaskID: task.id(), Status: status, CreatedAt: task.CreatedAt}, nil
}

// Status fetches the state of a task.
func (c *Client) Status(ctx context.Context, taskID string) (TaskStatus, error) {
	const op = "status"
	if taskID == "" {
		return TaskStatus{}, &APIError{Sentinel: ErrInvalidRequest, Operation: op, Err: errors.New("task id is required")}
	}
	var task taskPayload
	if err := c.do(ctx, op, http.MethodGet, "/tasks/"+url.PathEscape(taskID), nil, &task); err != nil {
		return TaskStatus{}, err
	}
	st := task.toStatus()
	if st.TaskID == "" {
		st.TaskID = taskID
	}
	return st, nil
}

// Cancel cancels or deletes a task.
func (c *Client) Cancel(ctx context.Context, taskID string) error {
	const op = "cancel"
	if taskID == "" {
		return &APIError{Sentinel: ErrInvalidRequest, Operation: op, Err: errors.New("task id is required")}
	}
	return c.do(ctx, op, http.MethodDelete, "/tasks/"+url.PathEscape(taskID), nil, nil)
}

func (c *Client) do(ctx context.Context, op, method, path string, in, out any) (err error) {
	start := time.Now()
	defer func() {
		outcome := Outcome(err)
		metrics.ObserveProviderRequest("runway", op, outcome, time.Since(start))
		ev := c.logger.Debug()
		if err != nil {
			ev = c.logger.Warn().Err(err)
		}
		ev.Str(log.FieldOperation, op).
			Str(log.FieldMethod, method).
			Str(log.FieldPath, path).
			Str("outcome", outcome).
			Int64(log.FieldDuration, time.Since(start).Milliseconds()).
			Msg("runway request")
	}()

	if c.secret == "" {
		return &APIError{Sentinel: ErrNotConfigured, Operation: op}
	}
	if err := c.limiter.Wait(ctx); err != nil {
		metrics.IncRateLimitRejected("runway_outbound")
		return wrapError(op, 0, "", err)
	}

	var payload []byte
	if in != nil {
		payload, err = json.Marshal(in)
		if err != nil {
			return &APIError{Sentinel: ErrInvalidRequest, Operation: op, Err: err}
		}
	}

	err = c.breaker.Execute(func() error {
		return c.roundTrip(ctx, op, method, path, payload, out)
	})
	if errors.Is(err, resilience.ErrCircuitOpen) {
		return wrapError(op, 0, "", err)
	}
	return err
}

func (c *Client) roundTrip(ctx context.Context, op, method, path string, payload []byte, out any) error {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return &APIError{Sentinel: ErrInvalidRequest, Operation: op, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+c.secret)
	req.Header.Set("X-Runway-Version", c.version)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := c.http.Do(req)
	if err != nil {
		return wrapError(op, 0, "", err)
	}
	defer func() { _ = res.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return wrapError(op, 0, "", err)
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return wrapError(op, res.StatusCode, strings.TrimSpace(string(raw)), nil)
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &APIError{Sentinel: ErrBadResponse, Operation: op, Status: res.StatusCode, Err: fmt.Errorf("decode: %w", err)}
	}
	return nil
}
