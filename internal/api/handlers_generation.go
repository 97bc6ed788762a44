// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ManuGH/shotline/internal/generation"
	"github.com/ManuGH/shotline/internal/store"
)

type startGenerationRequest struct {
	Prompt string `json:"prompt"`
}

// handleStartGeneration submits the shot and answers 202 with the
// generation view. A provider rejection leaves the shot FAILED and is
// reported with the view attached.
func (s *Server) handleStartGeneration(w http.ResponseWriter, r *http.Request) {
	shotID := chi.URLParam(r, "shotID")

	var req startGenerationRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil && !errors.Is(err, errEmptyBody) {
			writeBadRequest(w, r, err.Error())
			return
		}
	}

	if err := s.gen.StartGeneration(r.Context(), shotID, req.Prompt); err != nil {
		var extra map[string]any
		var startErr *generation.StartError
		if errors.As(err, &startErr) {
			if view, ok := s.gen.View(shotID); ok {
				extra = map[string]any{"generation": view}
			}
		}
		writeError(w, r, err, extra)
		return
	}

	view, ok := s.gen.View(shotID)
	if !ok {
		writeError(w, r, store.ErrShotNotFound, nil)
		return
	}
	writeJSON(w, r, http.StatusAccepted, view)
}

func (s *Server) handleGetGeneration(w http.ResponseWriter, r *http.Request) {
	view, ok := s.gen.View(chi.URLParam(r, "shotID"))
	if !ok {
		writeError(w, r, store.ErrShotNotFound, nil)
		return
	}
	writeJSON(w, r, http.StatusOK, view)
}

// handleCancelGeneration stops local polling. With ?remote=true the
// provider task is cancelled as well.
func (s *Server) handleCancelGeneration(w http.ResponseWriter, r *http.Request) {
	shotID := chi.URLParam(r, "shotID")
	remote := false
	if v := r.URL.Query().Get("remote"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			writeBadRequest(w, r, "remote must be a boolean")
			return
		}
		remote = parsed
	}

	if remote {
		if err := s.gen.CancelRemote(r.Context(), shotID); err != nil {
			writeError(w, r, err, nil)
			return
		}
	} else {
		if _, ok := s.gen.View(shotID); !ok {
			writeError(w, r, store.ErrShotNotFound, nil)
			return
		}
		s.gen.Cancel(shotID)
	}

	view, ok := s.gen.View(shotID)
	if !ok {
		writeError(w, r, store.ErrShotNotFound, nil)
		return
	}
	writeJSON(w, r, http.StatusOK, view)
}
