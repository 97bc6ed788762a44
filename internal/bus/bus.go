// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package bus fans out state change events to in-process subscribers such as
// the websocket event stream.
package bus

import (
	"context"
	"time"
)

// Topics carried on the bus.
const (
	TopicStoryboard = "storyboard"
	TopicChat       = "chat"
	TopicGeneration = "generation"
)

// Topics lists every topic in publication order.
var Topics = []string{TopicStoryboard, TopicChat, TopicGeneration}

// Event types.
const (
	EventStoryboardReplaced  = "storyboard.replaced"
	EventStoryboardReordered = "storyboard.reordered"
	EventShotAdded           = "shot.added"
	EventShotUpdated         = "shot.updated"
	EventShotRemoved         = "shot.removed"
	EventSelectionChanged    = "selection.changed"
	EventMessageAdded        = "message.added"
	EventMessageUpdated      = "message.updated"
	EventMessagesCleared     = "messages.cleared"
	EventGenerationChanged   = "generation.changed"
)

// Message is a single state change notification.
type Message struct {
	Topic        string    `json:"topic"`
	Type         string    `json:"type"`
	StoryboardID string    `json:"storyboardId,omitempty"`
	ShotID       string    `json:"shotId,omitempty"`
	Payload      any       `json:"payload,omitempty"`
	At           time.Time `json:"at"`
}

// Subscriber receives messages for one topic until closed.
type Subscriber interface {
	C() <-chan Message
	Close() error
}

// Bus is a topic-keyed publish/subscribe channel.
type Bus interface {
	Publish(ctx context.Context, topic string, msg Message) error
	Subscribe(ctx context.Context, topic string) (Subscriber, error)
}
