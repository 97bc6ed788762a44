// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package store is the single state container for the chat transcript, the
// current storyboard and the selected shot. All mutations are serialized and
// announced on the bus after the lock is released.
package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ManuGH/shotline/internal/bus"
	"github.com/ManuGH/shotline/internal/log"
	"github.com/ManuGH/shotline/internal/metrics"
	"github.com/ManuGH/shotline/internal/storyboard"
)

// Store holds in-memory application state.
type Store struct {
	mu       sync.RWMutex
	messages []storyboard.Message
	board    *storyboard.Storyboard
	selected string

	bus    bus.Bus
	parser storyboard.Parser
	now    func() time.Time
	newID  func() string
	logger zerolog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithBus publishes state events on b.
func WithBus(b bus.Bus) Option {
	return func(s *Store) { s.bus = b }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithIDs overrides id generation for messages and shots.
func WithIDs(newID func() string) Option {
	return func(s *Store) { s.newID = newID }
}

// New returns an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		now:    time.Now,
		newID:  uuid.NewString,
		logger: log.WithComponent("store"),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.parser = storyboard.Parser{Now: s.now, NewID: s.newID}
	return s
}

func (s *Store) publish(ctx context.Context, topic string, msg bus.Message) {
	if s.bus == nil {
		return
	}
	msg.At = s.now()
	if err := s.bus.Publish(context.WithoutCancel(ctx), topic, msg); err != nil {
		s.logger.Debug().Err(err).Str("topic", topic).Str(log.FieldEvent, msg.Type).Msg("event not published")
	}
}

// Messages returns a copy of the transcript.
func (s *Store) Messages() []storyboard.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]storyboard.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// AddMessage appends a message and returns it with its generated id and timestamp.
func (s *Store) AddMessage(ctx context.Context, role storyboard.Role, content string) (storyboard.Message, error) {
	if !role.Valid() {
		return storyboard.Message{}, fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}
	msg := storyboard.Message{ID: s.newID(), Role: role, Content: content, Timestamp: s.now()}

	s.mu.Lock()
	s.messages = append(s.messages, msg)
	s.mu.Unlock()

	metrics.IncChatMessage(string(role))
	s.publish(ctx, bus.TopicChat, bus.Message{Type: bus.EventMessageAdded, Payload: msg})
	return msg, nil
}

// UpdateMessage replaces the content of message id.
func (s *Store) UpdateMessage(ctx context.Context, id, content string) (storyboard.Message, error) {
	s.mu.Lock()
	idx := -1
	for i := range s.messages {
		if s.messages[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return storyboard.Message{}, fmt.Errorf("%w: %s", ErrMessageNotFound, id)
	}
	s.messages[idx].Content = content
	msg := s.messages[idx]
	s.mu.Unlock()

	s.publish(ctx, bus.TopicChat, bus.Message{Type: bus.EventMessageUpdated, Payload: msg})
	return msg, nil
}

// ClearMessages empties the transcript.
func (s *Store) ClearMessages(ctx context.Context) {
	s.mu.Lock()
	s.messages = nil
	s.mu.Unlock()
	s.publish(ctx, bus.TopicChat, bus.Message{Type: bus.EventMessagesCleared})
}

// Storyboard returns a copy of the current storyboard.
func (s *Store) Storyboard() (*storyboard.Storyboard, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.board == nil {
		return nil, false
	}
	return s.board.Clone(), true
}

// SetStoryboard replaces the current storyboard. The selection is kept only
// if the selected shot exists in the new storyboard.
func (s *Store) SetStoryboard(ctx context.Context, sb *storyboard.Storyboard) {
	if sb == nil {
		return
	}
	next := sb.Clone()

	s.mu.Lock()
	s.board = next
	if s.selected != "" && next.ShotIndex(s.selected) < 0 {
		s.selected = ""
	}
	snapshot := next.Clone()
	s.mu.Unlock()

	metrics.RecordStoryboard(len(snapshot.Shots), snapshot.TotalDuration)
	metrics.IncStoryboardMutation("replace")
	s.logger.Info().
		Str(log.FieldEvent, "storyboard.replaced").
		Str(log.FieldStoryboardID, snapshot.ID).
		Int("shots", len(snapshot.Shots)).
		Float64("total_duration", snapshot.TotalDuration).
		Msg("storyboard replaced")
	s.publish(ctx, bus.TopicStoryboard, bus.Message{Type: bus.EventStoryboardReplaced, StoryboardID: snapshot.ID, Payload: snapshot})
}

// ApplyAssistantMessage parses content and, on success, replaces the current
// storyboard. A parse failure leaves the state untouched.
func (s *Store) ApplyAssistantMessage(ctx context.Context, content string) (*storyboard.Storyboard, error) {
	sb, err := s.parser.Parse(content)
	metrics.RecordParse(storyboard.ParseOutcome(err))
	if err != nil {
		log.FromContext(ctx).Debug().
			Err(err).
			Str(log.FieldEvent, "storyboard.parse_skipped").
			Str("outcome", storyboard.ParseOutcome(err)).
			Msg("assistant message carries no storyboard")
		return nil, err
	}
	s.SetStoryboard(ctx, sb)
	return sb, nil
}

// Shot returns a copy of shot id.
func (s *Store) Shot(id string) (storyboard.Shot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx := s.board.ShotIndex(id)
	if idx < 0 {
		return storyboard.Shot{}, false
	}
	return s.board.Shots[idx], true
}

// Shots returns a copy of the current shot sequence.
func (s *Store) Shots() []storyboard.Shot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.board == nil {
		return nil
	}
	out := make([]storyboard.Shot, len(s.board.Shots))
	copy(out, s.board.Shots)
	return out
}

// UpdateShot applies fn to a copy of shot id and commits it if fn returns nil.
// Identity fields are restored after fn runs. A changed duration retimes the
// whole storyboard.
func (s *Store) UpdateShot(ctx context.Context, id string, fn func(*storyboard.Shot) error) (storyboard.Shot, error) {
	s.mu.Lock()
	if s.board == nil {
		s.mu.Unlock()
		return storyboard.Shot{}, ErrNoStoryboard
	}
	idx := s.board.ShotIndex(id)
	if idx < 0 {
		s.mu.Unlock()
		return storyboard.Shot{}, fmt.Errorf("%w: %s", ErrShotNotFound, id)
	}

	prev := s.board.Shots[idx]
	next := prev
	if err := fn(&next); err != nil {
		s.mu.Unlock()
		return prev, err
	}
	next.ID = prev.ID
	next.Number = prev.Number
	next.Timing = prev.Timing
	next.CreatedAt = prev.CreatedAt

	now := s.now()
	next.UpdatedAt = now
	s.board.Shots[idx] = next
	if next.Duration != prev.Duration {
		s.reflowLocked(now)
	}
	s.board.UpdatedAt = now
	shot := s.board.Shots[idx]
	boardID := s.board.ID
	s.mu.Unlock()

	s.publish(ctx, bus.TopicStoryboard, bus.Message{Type: bus.EventShotUpdated, StoryboardID: boardID, ShotID: shot.ID, Payload: shot})
	return shot, nil
}

// ShotPatch carries the user-editable fields of a shot. Nil fields are left unchanged.
type ShotPatch struct {
	Description  *string  `json:"description,omitempty"`
	RunwayPrompt *string  `json:"runwayPrompt,omitempty"`
	CameraAngle  *string  `json:"cameraAngle,omitempty"`
	Mood         *string  `json:"mood,omitempty"`
	Notes        *string  `json:"notes,omitempty"`
	Duration     *float64 `json:"duration,omitempty"`
	ThumbnailURL *string  `json:"thumbnailUrl,omitempty"`
}

// Apply copies the set fields of p onto shot.
func (p ShotPatch) Apply(shot *storyboard.Shot) error {
	if p.Duration != nil && *p.Duration < 0 {
		return fmt.Errorf("%w: duration must not be negative", ErrInvalidShot)
	}
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	set(&shot.Description, p.Description)
	set(&shot.RunwayPrompt, p.RunwayPrompt)
	set(&shot.CameraAngle, p.CameraAngle)
	set(&shot.Mood, p.Mood)
	set(&shot.Notes, p.Notes)
	set(&shot.ThumbnailURL, p.ThumbnailURL)
	if p.Duration != nil {
		shot.Duration = *p.Duration
	}
	return nil
}

// PatchShot applies user edits to shot id.
func (s *Store) PatchShot(ctx context.Context, id string, p ShotPatch) (storyboard.Shot, error) {
	shot, err := s.UpdateShot(ctx, id, p.Apply)
	if err == nil {
		metrics.IncStoryboardMutation("patch")
	}
	return shot, err
}

// Reorder arranges the shots in the order of ids, which must name every
// current shot exactly once.
func (s *Store) Reorder(ctx context.Context, ids []string) (*storyboard.Storyboard, error) {
	s.mu.Lock()
	if s.board == nil {
		s.mu.Unlock()
		return nil, ErrNoStoryboard
	}
	if len(ids) != len(s.board.Shots) {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: got %d ids for %d shots", ErrInvalidOrder, len(ids), len(s.board.Shots))
	}
	byID := make(map[string]storyboard.Shot, len(s.board.Shots))
	for _, shot := range s.board.Shots {
		byID[shot.ID] = shot
	}
	ordered := make([]storyboard.Shot, 0, len(ids))
	for _, id := range ids {
		shot, ok := byID[id]
		if !ok {
			s.mu.Unlock()
			return nil, fmt.Errorf("%w: unknown or repeated id %q", ErrInvalidOrder, id)
		}
		delete(byID, id)
		ordered = append(ordered, shot)
	}
	s.board.Shots = ordered
	s.reflowLocked(s.now())
	snapshot := s.board.Clone()
	s.mu.Unlock()

	metrics.IncStoryboardMutation("reorder")
	s.publish(ctx, bus.TopicStoryboard, bus.Message{Type: bus.EventStoryboardReordered, StoryboardID: snapshot.ID, Payload: snapshot})
	return snapshot, nil
}

// AddShot normalizes d like the parser and appends it.
func (s *Store) AddShot(ctx context.Context, d storyboard.ShotDraft) (storyboard.Shot, error) {
	if d.Duration != nil && *d.Duration < 0 {
		return storyboard.Shot{}, fmt.Errorf("%w: duration must not be negative", ErrInvalidShot)
	}
	s.mu.Lock()
	if s.board == nil {
		s.mu.Unlock()
		return storyboard.Shot{}, ErrNoStoryboard
	}
	now := s.now()
	shot := s.parser.NewShot(d, now)
	s.board.Shots = append(s.board.Shots, shot)
	s.reflowLocked(now)
	shot = s.board.Shots[len(s.board.Shots)-1]
	boardID := s.board.ID
	s.mu.Unlock()

	metrics.IncStoryboardMutation("add")
	s.publish(ctx, bus.TopicStoryboard, bus.Message{Type: bus.EventShotAdded, StoryboardID: boardID, ShotID: shot.ID, Payload: shot})
	return shot, nil
}

// RemoveShot deletes shot id and clears the selection if it pointed at it.
func (s *Store) RemoveShot(ctx context.Context, id string) error {
	s.mu.Lock()
	if s.board == nil {
		s.mu.Unlock()
		return ErrNoStoryboard
	}
	idx := s.board.ShotIndex(id)
	if idx < 0 {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrShotNotFound, id)
	}
	shots := make([]storyboard.Shot, 0, len(s.board.Shots)-1)
	shots = append(shots, s.board.Shots[:idx]...)
	shots = append(shots, s.board.Shots[idx+1:]...)
	s.board.Shots = shots
	s.reflowLocked(s.now())
	if s.selected == id {
		s.selected = ""
	}
	boardID := s.board.ID
	s.mu.Unlock()

	metrics.IncStoryboardMutation("remove")
	s.publish(ctx, bus.TopicStoryboard, bus.Message{Type: bus.EventShotRemoved, StoryboardID: boardID, ShotID: id})
	return nil
}

// Select marks shot id as selected. An empty id clears the selection.
func (s *Store) Select(ctx context.Context, id string) error {
	s.mu.Lock()
	if id != "" && s.board.ShotIndex(id) < 0 {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrShotNotFound, id)
	}
	s.selected = id
	s.mu.Unlock()

	s.publish(ctx, bus.TopicStoryboard, bus.Message{Type: bus.EventSelectionChanged, ShotID: id})
	return nil
}

// Selected returns the selected shot id, or "".
func (s *Store) Selected() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selected
}

// reflowLocked renumbers and retimes the shots. Caller holds s.mu.
func (s *Store) reflowLocked(now time.Time) {
	s.board.Shots = storyboard.Reflow(s.board.Shots, now)
	s.board.TotalDuration = storyboard.TotalDuration(s.board.Shots)
	s.board.UpdatedAt = now
	metrics.RecordStoryboard(len(s.board.Shots), s.board.TotalDuration)
}
