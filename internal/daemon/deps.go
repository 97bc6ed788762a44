// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package daemon

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/ManuGH/shotline/internal/health"
)

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	ListenAddr      string
	MetricsAddr     string // empty disables the separate metrics listener
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	MaxHeaderBytes  int
	ShutdownTimeout time.Duration
}

// Deps contains dependencies required by the daemon Manager.
type Deps struct {
	Logger zerolog.Logger

	// APIHandler serves the API listener.
	APIHandler http.Handler

	// MetricsHandler serves ServerConfig.MetricsAddr, if set.
	MetricsHandler http.Handler

	// Health is opened once the API listener is bound and closed when
	// shutdown begins. Optional.
	Health *health.Manager
}

// Validate checks if the dependencies are valid.
func (d *Deps) Validate() error {
	if d.Logger.GetLevel() == zerolog.Disabled {
		return ErrMissingLogger
	}
	if d.APIHandler == nil {
		return ErrMissingAPIHandler
	}
	return nil
}
