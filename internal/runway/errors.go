// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package runway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/ManuGH/shotline/internal/resilience"
)

var (
	// Sentinel errors for errors.Is checks at the boundary.
	ErrNotConfigured  = errors.New("runway: API secret not configured")
	ErrInvalidRequest = errors.New("runway: invalid request")
	ErrUnauthorized   = errors.New("runway: unauthorized")
	ErrNotFound       = errors.New("runway: task not found")
	ErrRateLimited    = errors.New("runway: rate limited")
	ErrUpstream       = errors.New("runway: upstream error (5xx)")
	ErrBadResponse    = errors.New("runway: invalid response format")
	ErrUnavailable    = errors.New("runway: host unreachable or transport failure")
	ErrTimeout        = errors.New("runway: request timed out")
)

// maxErrorBody bounds the upstream body kept on an APIError.
const maxErrorBody = 512

// APIError wraps a sentinel with the failing operation and upstream response.
type APIError struct {
	Sentinel  error
	Operation string
	Status    int
	Body      string
	Err       error // lower-level cause, e.g. a net.Error or context error
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("runway: %s: %v", e.Operation, e.Sentinel)
	if e.Status > 0 {
		msg = fmt.Sprintf("%s (HTTP %d)", msg, e.Status)
	}
	if e.Body != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Body)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap exposes both the sentinel and the lower-level cause.
func (e *APIError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Sentinel}
	}
	return []error{e.Sentinel, e.Err}
}

// Message is the human readable text shown next to a failed shot.
func (e *APIError) Message() string {
	if e.Body != "" {
		return fmt.Sprintf("Runway API error: %d - %s", e.Status, e.Body)
	}
	return e.Error()
}

func statusSentinel(status int) error {
	switch {
	case status == http.StatusBadRequest, status == http.StatusUnprocessableEntity:
		return ErrInvalidRequest
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return ErrUnauthorized
	case status == http.StatusNotFound:
		return ErrNotFound
	case status == http.StatusTooManyRequests:
		return ErrRateLimited
	case status >= 500:
		return ErrUpstream
	default:
		return ErrBadResponse
	}
}

// wrapError classifies a failed request. status is 0 when no response was received.
func wrapError(op string, status int, body string, err error) error {
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}
	if status > 0 {
		return &APIError{Sentinel: statusSentinel(status), Operation: op, Status: status, Body: body, Err: err}
	}

	sentinel := ErrUnavailable
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		sentinel = ErrTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		sentinel = ErrTimeout
	case errors.Is(err, resilience.ErrCircuitOpen):
		sentinel = ErrUnavailable
	}
	return &APIError{Sentinel: sentinel, Operation: op, Err: err}
}

// countsAsFailure reports whether err should count against the circuit breaker.
func countsAsFailure(err error) bool {
	return errors.Is(err, ErrUpstream) ||
		errors.Is(err, ErrUnavailable) ||
		errors.Is(err, ErrTimeout)
}

// Outcome returns a low-cardinality metrics label for err.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotConfigured):
		return "not_configured"
	case errors.Is(err, ErrInvalidRequest):
		return "invalid_request"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrUpstream):
		return "upstream"
	case errors.Is(err, ErrBadResponse):
		return "bad_response"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrUnavailable):
		return "unavailable"
	default:
		return "error"
	}
}
