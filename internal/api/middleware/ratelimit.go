// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/httprate"

	"github.com/ManuGH/shotline/internal/api/problem"
	"github.com/ManuGH/shotline/internal/metrics"
)

// RateLimitConfig holds configuration for rate limiting middleware.
type RateLimitConfig struct {
	// Scope labels rejections in metrics, e.g. "api" or "chat".
	Scope string
	// RequestLimit is the maximum number of requests allowed in the window.
	RequestLimit int
	// WindowSize is the time window for rate limiting.
	WindowSize time.Duration
	// KeyFunc extracts the rate limit key from the request. Defaults to the
	// client IP.
	KeyFunc func(r *http.Request) (string, error)
}

// RateLimit creates a sliding-window rate limiter backed by httprate.
// Rejections are answered with a 429 problem and a Retry-After header.
func RateLimit(cfg RateLimitConfig) func(http.Handler) http.Handler {
	keyFunc := cfg.KeyFunc
	if keyFunc == nil {
		keyFunc = httprate.KeyByIP
	}
	scope := cfg.Scope
	if scope == "" {
		scope = "api"
	}

	return httprate.Limit(
		cfg.RequestLimit,
		cfg.WindowSize,
		httprate.WithKeyFuncs(keyFunc),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			metrics.IncRateLimitRejected(scope)
			w.Header().Set("Retry-After", strconv.Itoa(int(cfg.WindowSize.Seconds())))
			problem.Write(w, r, http.StatusTooManyRequests, problem.TypeRateLimited,
				"Too Many Requests", "RATE_LIMITED", "Too many requests. Please try again later.",
				map[string]any{"scope": scope})
		}),
	)
}

// APIRateLimit limits general API traffic per client IP.
func APIRateLimit(perMinute int) func(http.Handler) http.Handler {
	return RateLimit(RateLimitConfig{Scope: "api", RequestLimit: perMinute, WindowSize: time.Minute})
}

// ChatRateLimit limits the expensive chat and generation endpoints per client IP.
func ChatRateLimit(perMinute int) func(http.Handler) http.Handler {
	return RateLimit(RateLimitConfig{Scope: "chat", RequestLimit: perMinute, WindowSize: time.Minute})
}
