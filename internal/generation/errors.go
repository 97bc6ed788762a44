// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package generation

import (
	"errors"
	"fmt"

	"github.com/ManuGH/shotline/internal/runway"
)

var (
	ErrClosed = errors.New("generation: controller closed")
	// ErrSuperseded is returned when a start was cancelled or replaced while
	// the provider request was in flight.
	ErrSuperseded = errors.New("generation: start superseded")
	ErrNoTask     = errors.New("generation: shot has no task")

	// errStale aborts a store update whose task no longer owns the shot.
	errStale = errors.New("generation: stale task")
)

// StartError reports a provider submission failure for a shot.
type StartError struct {
	ShotID string
	Err    error
}

func (e *StartError) Error() string {
	return fmt.Sprintf("generation start for shot %s: %v", e.ShotID, e.Err)
}

func (e *StartError) Unwrap() error { return e.Err }

// PollError reports that a status query failed after all retries.
type PollError struct {
	ShotID   string
	TaskID   string
	Attempts int
	Err      error
}

func (e *PollError) Error() string {
	return fmt.Sprintf("status poll for task %s failed after %d attempts: %v", e.TaskID, e.Attempts, e.Err)
}

func (e *PollError) Unwrap() error { return e.Err }

// userMessage is the text stored on a shot when generation fails.
func userMessage(err error) string {
	var apiErr *runway.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message()
	}
	return err.Error()
}
