// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package problem writes RFC 7807 problem documents.
package problem

import (
	"encoding/json"
	"net/http"

	"github.com/ManuGH/shotline/internal/log"
)

const (
	// HeaderRequestID carries the request correlation id in both directions.
	HeaderRequestID = "X-Request-ID"
	// JSONKeyRequestID is the problem extension member holding the request id.
	JSONKeyRequestID = "requestId"
	// ContentType is the media type of every problem response.
	ContentType = "application/problem+json"
)

// Problem types.
const (
	TypeNotFound       = "shotline/not_found"
	TypeInvalidInput   = "shotline/invalid_input"
	TypeUnprocessable  = "shotline/unprocessable"
	TypeConflict       = "shotline/conflict"
	TypeNotConfigured  = "shotline/not_configured"
	TypeUpstream       = "shotline/upstream"
	TypeRateLimited    = "shotline/rate_limited"
	TypeUnavailable    = "shotline/unavailable"
	TypeInternal       = "shotline/internal"
	TypeMethodNotAllow = "shotline/method_not_allowed"
)

// Write writes an RFC 7807 problem details response.
//
//   - type: canonical machine identifier (e.g. "shotline/not_found").
//   - title: short human-readable label (e.g. "Not Found").
//   - code: stable machine-readable short code (e.g. "SHOT_NOT_FOUND").
//   - detail: explanation of this occurrence.
//
// Reserved members in extra are ignored.
func Write(w http.ResponseWriter, r *http.Request, status int, problemType, title, code, detail string, extra map[string]any) {
	instance := ""
	reqID := ""
	if r != nil {
		instance = r.URL.EscapedPath()
		reqID = log.RequestIDFromContext(r.Context())
	} else {
		log.L().Error().Str("type", problemType).Int("status", status).Msg("problem.Write called with nil request")
	}
	if reqID == "" {
		reqID = w.Header().Get(HeaderRequestID)
	}

	res := map[string]any{
		"type":   problemType,
		"title":  title,
		"status": status,
		"code":   code,
	}
	if reqID != "" {
		res[JSONKeyRequestID] = reqID
	}
	if detail != "" {
		res["detail"] = detail
	}
	if instance != "" {
		res["instance"] = instance
	}

	for k, v := range extra {
		switch k {
		case "type", "title", "status", "detail", "instance", "code", JSONKeyRequestID:
			log.L().Warn().Str("key", k).Str("problem_type", problemType).Msg("ignoring reserved key in problem extras")
			continue
		}
		res[k] = v
	}

	if reqID != "" {
		w.Header().Set(HeaderRequestID, reqID)
	}
	w.Header().Set("Content-Type", ContentType)
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(res); err != nil {
		log.L().Error().
			Err(err).
			Str("type", problemType).
			Int("status", status).
			Msg("failed to encode problem response")
	}
}
