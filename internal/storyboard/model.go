// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package storyboard holds the storyboard aggregate, the assistant-message
// parser and the timing engine. It has no I/O dependencies.
package storyboard

import "time"

// DefaultShotDuration is substituted by the parser for absent or zero durations.
const DefaultShotDuration = 5.0

// Defaults applied during normalization.
const (
	DefaultTitle       = "Untitled Storyboard"
	DefaultCameraAngle = "Medium Shot"
)

// Timing is a shot's window in seconds relative to the whole storyboard.
type Timing struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Shot is one planned video segment.
type Shot struct {
	ID           string  `json:"id"`
	Number       int     `json:"number"`
	Duration     float64 `json:"duration"`
	Timing       Timing  `json:"timing"`
	Description  string  `json:"description"`
	RunwayPrompt string  `json:"runwayPrompt"`
	CameraAngle  string  `json:"cameraAngle"`
	Mood         string  `json:"mood,omitempty"`
	Notes        string  `json:"notes,omitempty"`

	TaskID          string  `json:"taskId,omitempty"`
	Status          Status  `json:"status,omitempty"`
	ProgressRatio   float64 `json:"progressRatio,omitempty"`
	ProgressText    string  `json:"progressText,omitempty"`
	VideoURL        string  `json:"videoUrl,omitempty"`
	ThumbnailURL    string  `json:"thumbnailUrl,omitempty"`
	GenerationError string  `json:"generationError,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Storyboard is an ordered collection of shots plus descriptive metadata.
type Storyboard struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	Style         string    `json:"style,omitempty"`
	Mood          string    `json:"mood,omitempty"`
	TotalDuration float64   `json:"totalDuration"`
	Shots         []Shot    `json:"shots"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Clone returns a copy that shares no shot storage with sb.
func (sb *Storyboard) Clone() *Storyboard {
	if sb == nil {
		return nil
	}
	out := *sb
	out.Shots = make([]Shot, len(sb.Shots))
	copy(out.Shots, sb.Shots)
	return &out
}

// ShotIndex returns the position of the shot with the given id, or -1.
func (sb *Storyboard) ShotIndex(id string) int {
	if sb == nil {
		return -1
	}
	for i := range sb.Shots {
		if sb.Shots[i].ID == id {
			return i
		}
	}
	return -1
}

// Role identifies the author of a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Message is one chat transcript entry.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}
