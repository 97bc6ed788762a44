// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package storyboard

import (
	"errors"
	"fmt"
)

var (
	// Sentinel errors for errors.Is checks at the boundary.
	ErrNotFound      = errors.New("storyboard: no storyboard JSON in content")
	ErrMalformedJSON = errors.New("storyboard: malformed JSON")
	ErrInvalidShape  = errors.New("storyboard: JSON has no shots array")
)

// ParseError wraps a sentinel with the extracted payload stage that failed.
type ParseError struct {
	Sentinel error
	Stage    string // extract|decode|validate
	Err      error  // underlying decoder error, if any
}

func (e *ParseError) Error() string {
	msg := fmt.Sprintf("%v (stage %s)", e.Sentinel, e.Stage)
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *ParseError) Unwrap() error {
	return e.Sentinel
}

// Outcome returns a stable low-cardinality label for metrics.
func (e *ParseError) Outcome() string {
	switch {
	case errors.Is(e.Sentinel, ErrNotFound):
		return "not_found"
	case errors.Is(e.Sentinel, ErrMalformedJSON):
		return "malformed_json"
	case errors.Is(e.Sentinel, ErrInvalidShape):
		return "invalid_shape"
	default:
		return "error"
	}
}

// ParseOutcome maps a Parse result to a metrics label.
func ParseOutcome(err error) string {
	if err == nil {
		return "success"
	}
	var pe *ParseError
	if errors.As(err, &pe) {
		return pe.Outcome()
	}
	return "error"
}
