// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package storyboard

// Status is the generation state of a shot. The zero value means no
// generation was ever started.
type Status string

const (
	StatusNone      Status = ""
	StatusPending   Status = "PENDING"
	StatusRunning   Status = "RUNNING"
	StatusThrottled Status = "THROTTLED"
	StatusSucceeded Status = "SUCCEEDED"
	StatusFailed    Status = "FAILED"
	StatusCancelled Status = "CANCELLED"
)

// IsTerminal reports whether no further transition is expected.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusSucceeded, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// InFlight reports whether a remote generation is still progressing.
func (s Status) InFlight() bool {
	switch s {
	case StatusPending, StatusRunning, StatusThrottled:
		return true
	default:
		return false
	}
}

// Known reports whether s is one of the provider's status values.
func (s Status) Known() bool {
	return s.InFlight() || s.IsTerminal()
}

func (s Status) String() string {
	if s == StatusNone {
		return "NONE"
	}
	return string(s)
}
