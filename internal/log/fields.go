// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldRequestID     = "request_id"
	FieldCorrelationID = "correlation_id"
	FieldStoryboardID  = "storyboard_id"
	FieldShotID        = "shot_id"
	FieldTaskID        = "task_id"
	FieldMessageID     = "message_id"

	// Process fields
	FieldEvent     = "event"
	FieldComponent = "component"
	FieldOperation = "operation"

	// State fields
	FieldOldState = "old_state"
	FieldNewState = "new_state"
	FieldProgress = "progress"

	// HTTP fields
	FieldMethod   = "method"
	FieldPath     = "path"
	FieldStatus   = "status"
	FieldDuration = "duration_ms"
	FieldRemote   = "remote_addr"
)
