// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package api

import (
	"context"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ManuGH/shotline/internal/api/problem"
	"github.com/ManuGH/shotline/internal/bus"
	"github.com/ManuGH/shotline/internal/log"
	"github.com/ManuGH/shotline/internal/metrics"
)

const (
	eventWriteWait = 10 * time.Second
	// EventSnapshot is the first message on every event stream.
	EventSnapshot = "snapshot"
)

// snapshotPayload is the state a client needs before applying deltas.
type snapshotPayload struct {
	Storyboard     any    `json:"storyboard"`
	Messages       any    `json:"messages"`
	SelectedShotID string `json:"selectedShotId,omitempty"`
}

// originChecker admits same-origin upgrades plus the configured origins.
// "*" admits every origin.
func originChecker(allowed []string) func(*http.Request) bool {
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		set[o] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || set["*"] || set[origin] {
			return true
		}
		u, err := url.Parse(origin)
		return err == nil && u.Host == r.Host
	}
}

// handleEvents upgrades to a websocket and forwards every bus message as a
// JSON text frame, preceded by a state snapshot. Slow clients lose messages
// rather than stall publishers.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.bus == nil {
		problem.Write(w, r, http.StatusServiceUnavailable, problem.TypeUnavailable, "Service Unavailable", "EVENTS_DISABLED", "event stream is not enabled", nil)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		log.FromContext(r.Context()).Debug().Err(err).Str(log.FieldEvent, "events.upgrade_failed").Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()
	defer metrics.EventStreamConnected()()

	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	defer cancel()
	logger := log.WithComponentFromContext(ctx, "events")

	merged := make(chan bus.Message, len(bus.Topics)*bus.DefaultBuffer)
	var wg sync.WaitGroup
	for _, topic := range bus.Topics {
		sub, err := s.bus.Subscribe(ctx, topic)
		if err != nil {
			logger.Error().Err(err).Str("topic", topic).Msg("event subscription failed")
			return
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { _ = sub.Close() }()
			for {
				select {
				case <-ctx.Done():
					return
				case msg, ok := <-sub.C():
					if !ok {
						return
					}
					select {
					case merged <- msg:
					case <-ctx.Done():
						return
					}
				}
			}
		}()
	}
	defer wg.Wait()
	defer cancel()

	// Reader: the client sends nothing meaningful; a read error means it left.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	board, _ := s.currentStoryboard()
	snapshot := bus.Message{
		Type: EventSnapshot,
		Payload: snapshotPayload{
			Storyboard:     board.Storyboard,
			Messages:       s.store.Messages(),
			SelectedShotID: board.SelectedShotID,
		},
		At: time.Now(),
	}
	if err := writeEvent(conn, snapshot); err != nil {
		return
	}
	logger.Debug().Str(log.FieldEvent, "events.connected").Msg("event stream client connected")

	ping := time.NewTicker(s.cfg.EventPing)
	defer ping.Stop()
	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
			return
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(eventWriteWait)); err != nil {
				return
			}
		case msg := <-merged:
			if err := writeEvent(conn, msg); err != nil {
				logger.Debug().Err(err).Str(log.FieldEvent, "events.write_failed").Msg("event stream client gone")
				return
			}
		}
	}
}

func writeEvent(conn *websocket.Conn, msg bus.Message) error {
	_ = conn.SetWriteDeadline(time.Now().Add(eventWriteWait))
	return conn.WriteJSON(msg)
}
