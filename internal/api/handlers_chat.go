// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/ManuGH/shotline/internal/llm"
	"github.com/ManuGH/shotline/internal/log"
	"github.com/ManuGH/shotline/internal/storyboard"
)

// Stream line prefixes of the chat response.
const (
	prefixText       = "0:"
	prefixError      = "3:"
	prefixStoryboard = "s:"
)

type chatRequest struct {
	Content string `json:"content"`
	// Messages is accepted for clients that send the whole transcript; only
	// the last user turn is taken, the server owns the history.
	Messages []llm.Message `json:"messages"`
}

func (req chatRequest) userContent() string {
	if c := strings.TrimSpace(req.Content); c != "" {
		return c
	}
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == string(storyboard.RoleUser) {
			return strings.TrimSpace(req.Messages[i].Content)
		}
	}
	return ""
}

// chatStream writes the line-oriented reply stream.
type chatStream struct {
	w       http.ResponseWriter
	flusher http.Flusher
	started bool
}

func (cs *chatStream) begin() {
	if cs.started {
		return
	}
	cs.started = true
	h := cs.w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	cs.w.WriteHeader(http.StatusOK)
}

// text writes delta as one "0:" line per newline-separated segment.
func (cs *chatStream) text(delta string) error {
	cs.begin()
	for _, line := range strings.Split(delta, "\n") {
		if _, err := fmt.Fprintf(cs.w, "%s%s\n", prefixText, line); err != nil {
			return err
		}
	}
	cs.flush()
	return nil
}

func (cs *chatStream) line(prefix, value string) {
	cs.begin()
	_, _ = fmt.Fprintf(cs.w, "%s%s\n", prefix, value)
	cs.flush()
}

func (cs *chatStream) flush() {
	if cs.flusher != nil {
		cs.flusher.Flush()
	}
}

// handleChat appends the user's turn, streams the assistant reply and, when
// the reply carries a storyboard, replaces the current storyboard. The final
// "s:<id>" line announces the new storyboard.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeBadRequest(w, r, err.Error())
		return
	}
	content := req.userContent()
	if content == "" {
		writeBadRequest(w, r, "message content is required")
		return
	}

	ctx := r.Context()
	logger := log.WithComponentFromContext(ctx, "chat")
	if _, err := s.store.AddMessage(ctx, storyboard.RoleUser, content); err != nil {
		writeError(w, r, err, nil)
		return
	}

	history := make([]llm.Message, 0, len(s.store.Messages()))
	for _, m := range s.store.Messages() {
		history = append(history, llm.Message{Role: string(m.Role), Content: m.Content})
	}

	flusher, _ := w.(http.Flusher)
	stream := &chatStream{w: w, flusher: flusher}

	// The assistant message is created on the first delta and completed at
	// the end, so subscribers see the reply appear.
	persist := context.WithoutCancel(ctx)
	var assistantID string
	var partial strings.Builder
	reply, err := s.chat.Stream(ctx, history, func(delta string) error {
		partial.WriteString(delta)
		if assistantID == "" {
			msg, addErr := s.store.AddMessage(persist, storyboard.RoleAssistant, delta)
			if addErr != nil {
				return addErr
			}
			assistantID = msg.ID
		}
		return stream.text(delta)
	})

	if err != nil {
		if assistantID != "" {
			_, _ = s.store.UpdateMessage(persist, assistantID, partial.String())
		}
		if !stream.started {
			writeError(w, r, err, nil)
			return
		}
		if !errors.Is(err, context.Canceled) {
			logger.Warn().Err(err).Str(log.FieldEvent, "chat.stream_failed").Msg("chat stream aborted")
			stream.line(prefixError, strconv.Quote(detailOf(err)))
		}
		return
	}

	stream.begin()
	if assistantID == "" {
		// Nothing streamed; record the (possibly empty) reply anyway.
		msg, addErr := s.store.AddMessage(persist, storyboard.RoleAssistant, reply)
		if addErr == nil {
			assistantID = msg.ID
		}
	} else {
		_, _ = s.store.UpdateMessage(persist, assistantID, reply)
	}

	sb, parseErr := s.store.ApplyAssistantMessage(persist, reply)
	if parseErr != nil {
		return
	}
	logger.Info().
		Str(log.FieldEvent, "chat.storyboard_produced").
		Str(log.FieldStoryboardID, sb.ID).
		Str(log.FieldMessageID, assistantID).
		Int("shots", len(sb.Shots)).
		Msg("assistant reply produced a storyboard")
	stream.line(prefixStoryboard, sb.ID)
}

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]any{"messages": s.store.Messages()})
}

func (s *Server) handleClearMessages(w http.ResponseWriter, r *http.Request) {
	s.store.ClearMessages(r.Context())
	w.WriteHeader(http.StatusNoContent)
}
