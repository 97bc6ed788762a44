// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package telemetry

import (
	"errors"
	"testing"

	"go.opentelemetry.io/otel/attribute"
)

func find(attrs []attribute.KeyValue, key string) (attribute.Value, bool) {
	for _, a := range attrs {
		if string(a.Key) == key {
			return a.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestShotAttributesOmitEmpty(t *testing.T) {
	tests := []struct {
		name    string
		sb      string
		shot    string
		number  int
		wantLen int
	}{
		{"all fields", "sb-1", "shot-1", 2, 3},
		{"shot only", "", "shot-1", 0, 1},
		{"nothing", "", "", 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := len(ShotAttributes(tt.sb, tt.shot, tt.number)); got != tt.wantLen {
				t.Errorf("len = %d, want %d", got, tt.wantLen)
			}
		})
	}
}

func TestGenerationAttributes(t *testing.T) {
	attrs := GenerationAttributes("task-1", "PENDING", 6, "1280:720")
	if v, ok := find(attrs, GenerationTaskIDKey); !ok || v.AsString() != "task-1" {
		t.Errorf("task id missing: %v", attrs)
	}
	if v, ok := find(attrs, GenerationDurationKey); !ok || v.AsInt64() != 6 {
		t.Errorf("duration missing: %v", attrs)
	}
	if len(GenerationAttributes("", "FAILED", 0, "")) != 1 {
		t.Error("expected only status attribute")
	}
}

func TestErrorAttributes(t *testing.T) {
	if ErrorAttributes(nil, "x") != nil {
		t.Error("nil error should yield no attributes")
	}
	attrs := ErrorAttributes(errors.New("boom"), "upstream")
	if v, _ := find(attrs, ErrorTypeKey); v.AsString() != "upstream" {
		t.Errorf("error type = %q", v.AsString())
	}
}
