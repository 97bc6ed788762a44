// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/ManuGH/shotline/internal/log"
	"github.com/ManuGH/shotline/internal/runway"
)

// handleRunwayGenerate forwards a raw generation request to the provider.
func (s *Server) handleRunwayGenerate(w http.ResponseWriter, r *http.Request) {
	var req runway.GenerateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeBadRequest(w, r, err.Error())
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		writeBadRequest(w, r, "Prompt is required")
		return
	}

	res, err := s.provider.Generate(r.Context(), req)
	if err != nil {
		writeError(w, r, err, nil)
		return
	}
	writeJSON(w, r, http.StatusOK, res)
}

// handleRunwayStatus returns the provider's view of a task. Concurrent
// queries for the same task share one upstream request.
func (s *Server) handleRunwayStatus(w http.ResponseWriter, r *http.Request) {
	taskID := strings.TrimSpace(r.URL.Query().Get("taskId"))
	if taskID == "" {
		writeBadRequest(w, r, "Task ID is required")
		return
	}

	ctx := context.WithoutCancel(r.Context())
	v, err, shared := s.statusGroup.Do(taskID, func() (any, error) {
		return s.provider.Status(ctx, taskID)
	})
	if err != nil {
		writeError(w, r, err, map[string]any{"taskId": taskID})
		return
	}
	if shared {
		log.FromContext(r.Context()).Debug().
			Str(log.FieldTaskID, taskID).
			Str(log.FieldEvent, "runway.status_shared").
			Msg("status query served from in-flight request")
	}
	writeJSON(w, r, http.StatusOK, v.(runway.TaskStatus))
}
