// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package health provides liveness and readiness checks with per-component
// status for container probes.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/ManuGH/shotline/internal/log"
	"github.com/ManuGH/shotline/internal/resilience"
)

// Status represents the overall health/readiness status
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// CheckResult represents the result of a component health check
type CheckResult struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// HealthResponse represents the full health check response
type HealthResponse struct {
	Status    Status                 `json:"status"`
	Version   string                 `json:"version,omitempty"`
	Uptime    int64                  `json:"uptime_seconds"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
}

// ReadinessResponse represents the readiness check response
type ReadinessResponse struct {
	Ready     bool                   `json:"ready"`
	Status    Status                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
}

// Checker defines the interface for health checks
type Checker interface {
	Name() string
	Check(ctx context.Context) CheckResult
}

// Manager manages health and readiness checks
type Manager struct {
	version   string
	startedAt time.Time

	mu       sync.RWMutex
	checkers []Checker
	ready    bool
}

// NewManager creates a new health check manager. It reports not ready until
// SetReady(true) is called.
func NewManager(version string) *Manager {
	return &Manager{
		version:   version,
		startedAt: time.Now(),
		checkers:  make([]Checker, 0),
	}
}

// RegisterChecker adds a health checker to the manager
func (m *Manager) RegisterChecker(checker Checker) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkers = append(m.checkers, checker)
}

// SetReady flips the startup gate. The daemon sets it once the listener is
// up and clears it when shutdown begins.
func (m *Manager) SetReady(ready bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ready = ready
}

func (m *Manager) snapshot() ([]Checker, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Checker, len(m.checkers))
	copy(out, m.checkers)
	return out, m.ready
}

// runChecks evaluates every checker and folds the results into one status.
func runChecks(ctx context.Context, checkers []Checker) (Status, map[string]CheckResult) {
	if len(checkers) == 0 {
		return StatusHealthy, nil
	}
	results := make(map[string]CheckResult, len(checkers))
	overall := StatusHealthy
	for _, checker := range checkers {
		result := checker.Check(ctx)
		results[checker.Name()] = result
		switch result.Status {
		case StatusUnhealthy:
			overall = StatusUnhealthy
		case StatusDegraded:
			if overall == StatusHealthy {
				overall = StatusDegraded
			}
		}
	}
	return overall, results
}

// Health performs a liveness check. Component checks are only evaluated
// when verbose is set; the process is alive regardless of their outcome.
func (m *Manager) Health(ctx context.Context, verbose bool) HealthResponse {
	resp := HealthResponse{
		Status:    StatusHealthy,
		Version:   m.version,
		Uptime:    int64(time.Since(m.startedAt).Seconds()),
		Timestamp: time.Now(),
	}
	if verbose {
		checkers, _ := m.snapshot()
		resp.Status, resp.Checks = runChecks(ctx, checkers)
	}
	return resp
}

// Ready performs a readiness check. Any unhealthy component, or a closed
// startup gate, makes the service not ready; degraded components do not.
func (m *Manager) Ready(ctx context.Context) ReadinessResponse {
	checkers, gate := m.snapshot()
	status, checks := runChecks(ctx, checkers)
	return ReadinessResponse{
		Ready:     gate && status != StatusUnhealthy,
		Status:    status,
		Timestamp: time.Now(),
		Checks:    checks,
	}
}

// ServeHealth handles HTTP health check requests
func (m *Manager) ServeHealth(w http.ResponseWriter, r *http.Request) {
	logger := log.WithComponentFromContext(r.Context(), "health")
	verbose := r.URL.Query().Get("verbose") == "true"

	resp := m.Health(r.Context(), verbose)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK) // Always 200 for liveness
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger.Error().Err(err).Str(log.FieldEvent, "health.encode_error").Msg("failed to encode health response")
	}
}

// ServeReady handles HTTP readiness check requests
func (m *Manager) ServeReady(w http.ResponseWriter, r *http.Request) {
	logger := log.WithComponentFromContext(r.Context(), "readiness")

	resp := m.Ready(r.Context())

	w.Header().Set("Content-Type", "application/json")
	if resp.Ready {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger.Error().Err(err).Str(log.FieldEvent, "readiness.encode_error").Msg("failed to encode readiness response")
	}

	logger.Debug().
		Str(log.FieldEvent, "readiness.checked").
		Str("status", string(resp.Status)).
		Bool("ready", resp.Ready).
		Msg("readiness check performed")
}

// CredentialChecker reports whether an upstream credential is present.
// A missing credential only degrades the service: requests that need it fail
// individually with a configuration error.
type CredentialChecker struct {
	name       string
	configured func() bool
}

// NewCredentialChecker creates a checker backed by configured.
func NewCredentialChecker(name string, configured func() bool) *CredentialChecker {
	return &CredentialChecker{name: name, configured: configured}
}

func (c *CredentialChecker) Name() string { return c.name }

func (c *CredentialChecker) Check(context.Context) CheckResult {
	if c.configured() {
		return CheckResult{Status: StatusHealthy, Message: "credential configured"}
	}
	return CheckResult{Status: StatusDegraded, Message: "credential not configured"}
}

// BreakerChecker reports the state of an outbound circuit breaker.
type BreakerChecker struct {
	name  string
	state func() resilience.State
}

// NewBreakerChecker creates a checker backed by state.
func NewBreakerChecker(name string, state func() resilience.State) *BreakerChecker {
	return &BreakerChecker{name: name, state: state}
}

func (c *BreakerChecker) Name() string { return c.name }

func (c *BreakerChecker) Check(context.Context) CheckResult {
	switch st := c.state(); st {
	case resilience.StateClosed:
		return CheckResult{Status: StatusHealthy, Message: "circuit closed"}
	case resilience.StateHalfOpen:
		return CheckResult{Status: StatusDegraded, Message: "circuit half-open, probing upstream"}
	default:
		return CheckResult{Status: StatusDegraded, Message: "circuit " + string(st)}
	}
}
