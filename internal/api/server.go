// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package api serves the storyboard HTTP API: chat streaming, storyboard
// editing, per-shot generation control, the provider proxy and the live
// event stream.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/ManuGH/shotline/internal/api/middleware"
	"github.com/ManuGH/shotline/internal/bus"
	"github.com/ManuGH/shotline/internal/generation"
	"github.com/ManuGH/shotline/internal/health"
	"github.com/ManuGH/shotline/internal/llm"
	"github.com/ManuGH/shotline/internal/log"
	"github.com/ManuGH/shotline/internal/store"
	"github.com/ManuGH/shotline/internal/storyboard"
)

// ChatModel streams an assistant reply. *llm.Client implements it.
type ChatModel interface {
	Stream(ctx context.Context, messages []llm.Message, fn func(delta string) error) (string, error)
}

// Generator controls per-shot generation. *generation.Controller implements it.
type Generator interface {
	StartGeneration(ctx context.Context, shotID, prompt string) error
	Cancel(shotID string)
	CancelRemote(ctx context.Context, shotID string) error
	View(shotID string) (generation.View, bool)
}

// Config tunes the HTTP surface.
type Config struct {
	Stack middleware.StackConfig
	// ChatPerMinute limits chat and generation requests per client IP. Zero disables.
	ChatPerMinute int
	// ServeMetrics exposes /metrics on the API router.
	ServeMetrics bool
	// EventPing is the websocket keepalive interval.
	EventPing time.Duration
	// AllowedOrigins gates websocket upgrades; empty allows same-origin only.
	AllowedOrigins []string
}

// Deps are the collaborators the server delegates to.
type Deps struct {
	Store      *store.Store
	Generation Generator
	Provider   generation.Provider
	Chat       ChatModel
	Bus        bus.Bus
	Health     *health.Manager
}

// Server is the HTTP API.
type Server struct {
	cfg      Config
	store    *store.Store
	gen      Generator
	provider generation.Provider
	chat     ChatModel
	bus      bus.Bus
	health   *health.Manager

	statusGroup singleflight.Group
	upgrader    websocket.Upgrader
	logger      zerolog.Logger
	handler     http.Handler
}

// New creates the API server.
func New(cfg Config, deps Deps) (*Server, error) {
	switch {
	case deps.Store == nil:
		return nil, errors.New("api: store is required")
	case deps.Generation == nil:
		return nil, errors.New("api: generation controller is required")
	case deps.Provider == nil:
		return nil, errors.New("api: video provider is required")
	case deps.Chat == nil:
		return nil, errors.New("api: chat model is required")
	}
	if deps.Health == nil {
		deps.Health = health.NewManager("")
	}
	if cfg.EventPing <= 0 {
		cfg.EventPing = 30 * time.Second
	}

	s := &Server{
		cfg:      cfg,
		store:    deps.Store,
		gen:      deps.Generation,
		provider: deps.Provider,
		chat:     deps.Chat,
		bus:      deps.Bus,
		health:   deps.Health,
		logger:   log.WithComponent("api"),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     originChecker(cfg.AllowedOrigins),
	}
	s.handler = s.routes()
	return s, nil
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler { return s.handler }

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// storyboardView is the storyboard as served, with the current selection.
type storyboardView struct {
	*storyboard.Storyboard
	SelectedShotID string `json:"selectedShotId,omitempty"`
}

func (s *Server) currentStoryboard() (storyboardView, bool) {
	sb, ok := s.store.Storyboard()
	if !ok {
		return storyboardView{}, false
	}
	return storyboardView{Storyboard: sb, SelectedShotID: s.store.Selected()}, true
}
