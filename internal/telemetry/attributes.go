// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Common attribute keys for consistent tracing across the application.
const (
	StoryboardIDKey = "storyboard.id"
	ShotIDKey       = "shot.id"
	ShotNumberKey   = "shot.number"

	GenerationTaskIDKey   = "generation.task_id"
	GenerationStatusKey   = "generation.status"
	GenerationDurationKey = "generation.duration_s"
	GenerationRatioKey    = "generation.ratio"
	GenerationAttemptsKey = "generation.poll_attempts"

	ErrorKey     = "error"
	ErrorTypeKey = "error.type"
)

// ShotAttributes identifies a shot; empty values are omitted.
func ShotAttributes(storyboardID, shotID string, number int) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 3)
	if storyboardID != "" {
		attrs = append(attrs, attribute.String(StoryboardIDKey, storyboardID))
	}
	if shotID != "" {
		attrs = append(attrs, attribute.String(ShotIDKey, shotID))
	}
	if number > 0 {
		attrs = append(attrs, attribute.Int(ShotNumberKey, number))
	}
	return attrs
}

// GenerationAttributes describes a provider task.
func GenerationAttributes(taskID, status string, durationSeconds int, ratio string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(GenerationStatusKey, status),
	}
	if taskID != "" {
		attrs = append(attrs, attribute.String(GenerationTaskIDKey, taskID))
	}
	if durationSeconds > 0 {
		attrs = append(attrs, attribute.Int(GenerationDurationKey, durationSeconds))
	}
	if ratio != "" {
		attrs = append(attrs, attribute.String(GenerationRatioKey, ratio))
	}
	return attrs
}

// ErrorAttributes marks a span with an error classification.
func ErrorAttributes(err error, errType string) []attribute.KeyValue {
	if err == nil {
		return nil
	}
	return []attribute.KeyValue{
		attribute.Bool(ErrorKey, true),
		attribute.String(ErrorTypeKey, errType),
	}
}
