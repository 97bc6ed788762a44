// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/ManuGH/shotline/internal/api/problem"
	"github.com/ManuGH/shotline/internal/generation"
	"github.com/ManuGH/shotline/internal/llm"
	"github.com/ManuGH/shotline/internal/log"
	"github.com/ManuGH/shotline/internal/runway"
	"github.com/ManuGH/shotline/internal/store"
	"github.com/ManuGH/shotline/internal/storyboard"
)

// errorSpec is the HTTP rendering of a domain error.
type errorSpec struct {
	status int
	typ    string
	title  string
	code   string
}

// classify maps err onto a problem. Order matters: the more specific
// sentinels are checked first.
func classify(err error) errorSpec {
	switch {
	case errors.Is(err, store.ErrNoStoryboard):
		return errorSpec{http.StatusNotFound, problem.TypeNotFound, "Not Found", "NO_STORYBOARD"}
	case errors.Is(err, store.ErrShotNotFound):
		return errorSpec{http.StatusNotFound, problem.TypeNotFound, "Not Found", "SHOT_NOT_FOUND"}
	case errors.Is(err, store.ErrMessageNotFound):
		return errorSpec{http.StatusNotFound, problem.TypeNotFound, "Not Found", "MESSAGE_NOT_FOUND"}
	case errors.Is(err, store.ErrInvalidOrder):
		return errorSpec{http.StatusBadRequest, problem.TypeInvalidInput, "Bad Request", "INVALID_ORDER"}
	case errors.Is(err, store.ErrInvalidShot), errors.Is(err, store.ErrInvalidRole):
		return errorSpec{http.StatusBadRequest, problem.TypeInvalidInput, "Bad Request", "INVALID_INPUT"}

	case errors.Is(err, storyboard.ErrNotFound),
		errors.Is(err, storyboard.ErrMalformedJSON),
		errors.Is(err, storyboard.ErrInvalidShape):
		return errorSpec{http.StatusUnprocessableEntity, problem.TypeUnprocessable, "Unprocessable Entity", "NO_STORYBOARD_IN_CONTENT"}

	case errors.Is(err, generation.ErrSuperseded):
		return errorSpec{http.StatusConflict, problem.TypeConflict, "Conflict", "GENERATION_SUPERSEDED"}
	case errors.Is(err, generation.ErrNoTask):
		return errorSpec{http.StatusConflict, problem.TypeConflict, "Conflict", "NO_GENERATION_TASK"}
	case errors.Is(err, generation.ErrClosed):
		return errorSpec{http.StatusServiceUnavailable, problem.TypeUnavailable, "Service Unavailable", "SHUTTING_DOWN"}

	case errors.Is(err, runway.ErrNotConfigured), errors.Is(err, llm.ErrNotConfigured):
		return errorSpec{http.StatusServiceUnavailable, problem.TypeNotConfigured, "Service Unavailable", "NOT_CONFIGURED"}
	case errors.Is(err, runway.ErrInvalidRequest), errors.Is(err, llm.ErrInvalidRequest):
		return errorSpec{http.StatusBadRequest, problem.TypeInvalidInput, "Bad Request", "INVALID_REQUEST"}
	case errors.Is(err, runway.ErrNotFound):
		return errorSpec{http.StatusNotFound, problem.TypeNotFound, "Not Found", "TASK_NOT_FOUND"}
	case errors.Is(err, runway.ErrRateLimited), errors.Is(err, llm.ErrRateLimited):
		return errorSpec{http.StatusTooManyRequests, problem.TypeRateLimited, "Too Many Requests", "UPSTREAM_RATE_LIMITED"}
	case errors.Is(err, runway.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return errorSpec{http.StatusGatewayTimeout, problem.TypeUpstream, "Gateway Timeout", "UPSTREAM_TIMEOUT"}
	case errors.Is(err, runway.ErrUnavailable), errors.Is(err, llm.ErrUnavailable):
		return errorSpec{http.StatusServiceUnavailable, problem.TypeUnavailable, "Service Unavailable", "UPSTREAM_UNAVAILABLE"}
	case errors.Is(err, runway.ErrUnauthorized), errors.Is(err, llm.ErrUnauthorized),
		errors.Is(err, runway.ErrUpstream), errors.Is(err, llm.ErrUpstream),
		errors.Is(err, runway.ErrBadResponse), errors.Is(err, llm.ErrBadResponse):
		return errorSpec{http.StatusBadGateway, problem.TypeUpstream, "Bad Gateway", "UPSTREAM_ERROR"}
	}
	return errorSpec{http.StatusInternalServerError, problem.TypeInternal, "Internal Server Error", "INTERNAL"}
}

// detailOf returns the user-facing text for err.
func detailOf(err error) string {
	var runwayErr *runway.APIError
	if errors.As(err, &runwayErr) {
		return runwayErr.Message()
	}
	return err.Error()
}

// writeError renders err as a problem document. Internal errors are logged
// and their text is not exposed.
func writeError(w http.ResponseWriter, r *http.Request, err error, extra map[string]any) {
	c := classify(err)
	detail := detailOf(err)
	if c.status >= http.StatusInternalServerError {
		log.FromContext(r.Context()).Error().
			Err(err).
			Str(log.FieldEvent, "request.failed").
			Str("code", c.code).
			Msg("request failed")
		if c.status == http.StatusInternalServerError {
			detail = "An unexpected error occurred."
		}
	}
	problem.Write(w, r, c.status, c.typ, c.title, c.code, detail, extra)
}

// writeBadRequest reports a malformed or incomplete request.
func writeBadRequest(w http.ResponseWriter, r *http.Request, detail string) {
	problem.Write(w, r, http.StatusBadRequest, problem.TypeInvalidInput, "Bad Request", "INVALID_INPUT", detail, nil)
}
