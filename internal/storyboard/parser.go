// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package storyboard

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
)

var (
	// fencedJSON matches a ```json fenced block and captures its body.
	fencedJSON = regexp.MustCompile("```json\\s*([\\s\\S]*?)\\s*```")

	// bareShotsObject is a best-effort scan for an object carrying a "shots" array.
	// It is not brace-balanced: nested objects after the first ']' can truncate the match.
	bareShotsObject = regexp.MustCompile(`\{[\s\S]*?"shots"\s*:\s*\[[\s\S]*?\]\s*[\s\S]*?\}`)
)

// ShotDraft is the assistant-provided shape of a shot before normalization.
type ShotDraft struct {
	Description  string   `json:"description"`
	RunwayPrompt string   `json:"runwayPrompt"`
	CameraAngle  string   `json:"cameraAngle"`
	Duration     *float64 `json:"duration"`
	Mood         string   `json:"mood"`
	Notes        string   `json:"notes"`
}

type storyboardDraft struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Style       string          `json:"style"`
	Mood        string          `json:"mood"`
	Shots       json.RawMessage `json:"shots"`
}

// Parser converts assistant text into a Storyboard. Zero value is usable.
type Parser struct {
	Now   func() time.Time
	NewID func() string
}

var defaultParser Parser

// Parse extracts and normalizes a storyboard using the default clock and uuid ids.
// Any failure is a *ParseError; callers treat it as "no storyboard in this message".
func Parse(content string) (*Storyboard, error) {
	return defaultParser.Parse(content)
}

func (p Parser) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

func (p Parser) newID() string {
	if p.NewID != nil {
		return p.NewID()
	}
	return uuid.NewString()
}

// Parse extracts and normalizes a storyboard from content.
func (p Parser) Parse(content string) (sb *Storyboard, err error) {
	defer func() {
		if r := recover(); r != nil {
			sb = nil
			err = &ParseError{Sentinel: ErrMalformedJSON, Stage: "decode", Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	payload, ok := Extract(content)
	if !ok {
		return nil, &ParseError{Sentinel: ErrNotFound, Stage: "extract"}
	}

	draft, shots, err := decode([]byte(payload))
	if err != nil {
		return nil, err
	}

	now := p.now()
	out := &Storyboard{
		ID:          p.newID(),
		Title:       draft.Title,
		Description: draft.Description,
		Style:       draft.Style,
		Mood:        draft.Mood,
		Shots:       make([]Shot, 0, len(shots)),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if out.Title == "" {
		out.Title = DefaultTitle
	}

	offset := 0.0
	for i, d := range shots {
		shot := p.NewShot(d, now)
		shot.Number = i + 1
		shot.Timing = Timing{Start: offset, End: offset + shot.Duration}
		offset += shot.Duration
		out.Shots = append(out.Shots, shot)
	}
	out.TotalDuration = offset
	return out, nil
}

// NewShot normalizes a draft into a shot with a fresh id. Number and Timing
// are left for the caller to derive from the shot's position.
func (p Parser) NewShot(d ShotDraft, now time.Time) Shot {
	duration := DefaultShotDuration
	if d.Duration != nil && *d.Duration != 0 {
		duration = *d.Duration
	}

	prompt := d.RunwayPrompt
	if prompt == "" {
		prompt = d.Description
	}

	angle := d.CameraAngle
	if angle == "" {
		angle = DefaultCameraAngle
	}

	return Shot{
		ID:           p.newID(),
		Duration:     duration,
		Description:  d.Description,
		RunwayPrompt: prompt,
		CameraAngle:  angle,
		Mood:         d.Mood,
		Notes:        d.Notes,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// Extract returns the JSON payload embedded in content: the body of the first
// ```json fence, otherwise the first bare object with a "shots" array.
func Extract(content string) (string, bool) {
	if m := fencedJSON.FindStringSubmatch(content); m != nil {
		return m[1], true
	}
	if m := bareShotsObject.FindString(content); m != "" {
		return m, true
	}
	return "", false
}

func decode(payload []byte) (storyboardDraft, []ShotDraft, error) {
	var draft storyboardDraft

	if !json.Valid(payload) {
		var probe any
		err := json.Unmarshal(payload, &probe)
		return draft, nil, &ParseError{Sentinel: ErrMalformedJSON, Stage: "decode", Err: err}
	}

	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return draft, nil, &ParseError{Sentinel: ErrInvalidShape, Stage: "validate", Err: fmt.Errorf("top-level value is not an object")}
	}

	if err := json.Unmarshal(trimmed, &draft); err != nil {
		return draft, nil, &ParseError{Sentinel: ErrInvalidShape, Stage: "validate", Err: err}
	}

	shotsRaw := bytes.TrimSpace(draft.Shots)
	if len(shotsRaw) == 0 || shotsRaw[0] != '[' {
		return draft, nil, &ParseError{Sentinel: ErrInvalidShape, Stage: "validate", Err: fmt.Errorf("shots is missing or not an array")}
	}

	var elems []json.RawMessage
	if err := json.Unmarshal(shotsRaw, &elems); err != nil {
		return draft, nil, &ParseError{Sentinel: ErrInvalidShape, Stage: "validate", Err: err}
	}

	shots := make([]ShotDraft, 0, len(elems))
	for i, raw := range elems {
		raw = bytes.TrimSpace(raw)
		if len(raw) == 0 || raw[0] != '{' {
			return draft, nil, &ParseError{Sentinel: ErrInvalidShape, Stage: "validate", Err: fmt.Errorf("shots[%d] is not an object", i)}
		}
		var d ShotDraft
		if err := json.Unmarshal(raw, &d); err != nil {
			return draft, nil, &ParseError{Sentinel: ErrInvalidShape, Stage: "validate", Err: fmt.Errorf("shots[%d]: %w", i, err)}
		}
		shots = append(shots, d)
	}
	return draft, shots, nil
}
