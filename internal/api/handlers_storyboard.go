// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ManuGH/shotline/internal/store"
	"github.com/ManuGH/shotline/internal/storyboard"
)

func (s *Server) handleGetStoryboard(w http.ResponseWriter, r *http.Request) {
	view, ok := s.currentStoryboard()
	if !ok {
		writeError(w, r, store.ErrNoStoryboard, nil)
		return
	}
	writeJSON(w, r, http.StatusOK, view)
}

type parseRequest struct {
	Content string `json:"content"`
}

// handleParseStoryboard replaces the storyboard from assistant-style text.
func (s *Server) handleParseStoryboard(w http.ResponseWriter, r *http.Request) {
	var req parseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeBadRequest(w, r, err.Error())
		return
	}
	if _, err := s.store.ApplyAssistantMessage(r.Context(), req.Content); err != nil {
		writeError(w, r, err, map[string]any{"outcome": storyboard.ParseOutcome(err)})
		return
	}
	view, _ := s.currentStoryboard()
	writeJSON(w, r, http.StatusOK, view)
}

type reorderRequest struct {
	ShotIDs []string `json:"shotIds"`
}

func (s *Server) handleReorder(w http.ResponseWriter, r *http.Request) {
	var req reorderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeBadRequest(w, r, err.Error())
		return
	}
	if _, err := s.store.Reorder(r.Context(), req.ShotIDs); err != nil {
		writeError(w, r, err, nil)
		return
	}
	view, _ := s.currentStoryboard()
	writeJSON(w, r, http.StatusOK, view)
}

type selectionRequest struct {
	ShotID *string `json:"shotId"`
}

// handleSelect sets the selected shot. A null or empty shotId clears it.
func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	var req selectionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeBadRequest(w, r, err.Error())
		return
	}
	id := ""
	if req.ShotID != nil {
		id = *req.ShotID
	}
	if err := s.store.Select(r.Context(), id); err != nil {
		writeError(w, r, err, nil)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"selectedShotId": s.store.Selected()})
}

// handleAddShot appends a shot normalised the same way as parsed shots.
func (s *Server) handleAddShot(w http.ResponseWriter, r *http.Request) {
	var draft storyboard.ShotDraft
	if err := decodeJSON(w, r, &draft); err != nil {
		writeBadRequest(w, r, err.Error())
		return
	}
	shot, err := s.store.AddShot(r.Context(), draft)
	if err != nil {
		writeError(w, r, err, nil)
		return
	}
	writeJSON(w, r, http.StatusCreated, shot)
}

func (s *Server) handlePatchShot(w http.ResponseWriter, r *http.Request) {
	var patch store.ShotPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		writeBadRequest(w, r, err.Error())
		return
	}
	shot, err := s.store.PatchShot(r.Context(), chi.URLParam(r, "shotID"), patch)
	if err != nil {
		writeError(w, r, err, nil)
		return
	}
	writeJSON(w, r, http.StatusOK, shot)
}

// handleRemoveShot stops any local polling for the shot before removing it.
func (s *Server) handleRemoveShot(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "shotID")
	if _, ok := s.store.Shot(id); !ok {
		writeError(w, r, store.ErrShotNotFound, map[string]any{"shotId": id})
		return
	}
	s.gen.Cancel(id)
	if err := s.store.RemoveShot(r.Context(), id); err != nil {
		writeError(w, r, err, nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
