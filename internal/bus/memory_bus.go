// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package bus

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/ManuGH/shotline/internal/log"
	"github.com/ManuGH/shotline/internal/metrics"
)

// DefaultBuffer is the per-subscriber channel capacity.
const DefaultBuffer = 64

// MemoryBus is a lossy in-memory pub/sub. Publish never blocks on a slow
// subscriber: a full subscriber channel drops the message and counts it.
type MemoryBus struct {
	mu     sync.RWMutex
	subs   map[string][]*memSub
	buffer int
}

const dropLogEvery = 100

var dropCount atomic.Uint64

// NewMemoryBus returns a bus with DefaultBuffer sized subscriber channels.
func NewMemoryBus() *MemoryBus {
	return NewMemoryBusWithBuffer(DefaultBuffer)
}

// NewMemoryBusWithBuffer returns a bus whose subscriber channels hold buffer messages.
func NewMemoryBusWithBuffer(buffer int) *MemoryBus {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &MemoryBus{subs: make(map[string][]*memSub), buffer: buffer}
}

func publishDropReason(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "context_done"
	}
}

func noteDrop(topic, reason string) {
	metrics.IncBusDropReason(topic, reason)
	count := dropCount.Add(1)
	if count%dropLogEvery == 0 {
		log.L().Warn().
			Str("topic", topic).
			Str("reason", reason).
			Uint64("dropped", count).
			Msg("memory bus dropped messages")
	}
}

// Publish delivers msg to every current subscriber of topic.
func (b *MemoryBus) Publish(ctx context.Context, topic string, msg Message) error {
	if ctx == nil {
		return fmt.Errorf("publish context is nil")
	}
	if err := ctx.Err(); err != nil {
		noteDrop(topic, publishDropReason(err))
		return fmt.Errorf("publish topic %q: %w", topic, err)
	}
	if msg.Topic == "" {
		msg.Topic = topic
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, s := range b.subs[topic] {
		select {
		case s.ch <- msg:
		default:
			noteDrop(topic, "full")
		}
	}
	metrics.IncBusPublished(topic)
	return nil
}

// Subscribe registers a subscriber on topic. The subscription is closed
// when ctx is done or Close is called, whichever happens first.
func (b *MemoryBus) Subscribe(ctx context.Context, topic string) (Subscriber, error) {
	if ctx == nil {
		return nil, fmt.Errorf("subscribe context is nil")
	}
	s := &memSub{b: b, topic: topic, ch: make(chan Message, b.buffer), done: make(chan struct{})}

	b.mu.Lock()
	b.subs[topic] = append(b.subs[topic], s)
	b.mu.Unlock()

	if ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
				_ = s.Close()
			case <-s.done:
			}
		}()
	}
	return s, nil
}

// Subscribers returns the number of subscribers on topic.
func (b *MemoryBus) Subscribers(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[topic])
}

type memSub struct {
	b     *MemoryBus
	topic string
	ch    chan Message
	once  sync.Once
	done  chan struct{}
}

func (s *memSub) C() <-chan Message {
	return s.ch
}

func (s *memSub) Close() error {
	s.once.Do(func() {
		s.b.mu.Lock()
		defer s.b.mu.Unlock()

		lst := s.b.subs[s.topic]
		out := lst[:0]
		for _, c := range lst {
			if c != s {
				out = append(out, c)
			}
		}
		if len(out) == 0 {
			delete(s.b.subs, s.topic)
		} else {
			s.b.subs[s.topic] = out
		}
		// Publish holds the read lock while sending, so closing under the
		// write lock cannot race a send.
		close(s.ch)
		close(s.done)
	})
	return nil
}

var _ Bus = (*MemoryBus)(nil)
