// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package llm

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNotConfigured  = errors.New("llm: API key not configured")
	ErrInvalidRequest = errors.New("llm: invalid request")
	ErrUnauthorized   = errors.New("llm: unauthorized")
	ErrRateLimited    = errors.New("llm: rate limited")
	ErrUpstream       = errors.New("llm: upstream error")
	ErrBadResponse    = errors.New("llm: invalid stream")
	ErrUnavailable    = errors.New("llm: host unreachable or transport failure")
)

// APIError wraps a sentinel with the upstream status and body.
type APIError struct {
	Sentinel error
	Status   int
	Body     string
	Err      error
}

func (e *APIError) Error() string {
	msg := e.Sentinel.Error()
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

func (e *APIError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Sentinel}
	}
	return []error{e.Sentinel, e.Err}
}

func statusSentinel(status int) error {
	switch {
	case status == http.StatusBadRequest:
		return ErrInvalidRequest
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return ErrUnauthorized
	case status == http.StatusTooManyRequests:
		return ErrRateLimited
	case status >= 500:
		return ErrUpstream
	default:
		return ErrBadResponse
	}
}
