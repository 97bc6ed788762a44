// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package daemon wires the shotline components together and runs the
// HTTP listeners until shutdown.
package daemon

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/ManuGH/shotline/internal/api"
	"github.com/ManuGH/shotline/internal/api/middleware"
	"github.com/ManuGH/shotline/internal/bus"
	"github.com/ManuGH/shotline/internal/config"
	"github.com/ManuGH/shotline/internal/generation"
	"github.com/ManuGH/shotline/internal/health"
	"github.com/ManuGH/shotline/internal/llm"
	"github.com/ManuGH/shotline/internal/log"
	"github.com/ManuGH/shotline/internal/runway"
	"github.com/ManuGH/shotline/internal/store"
	"github.com/ManuGH/shotline/internal/telemetry"
)

// Runtime is a fully wired daemon ready to run.
type Runtime struct {
	Manager    Manager
	API        *api.Server
	Store      *store.Store
	Generation *generation.Controller
	Health     *health.Manager
}

// Build constructs every component from cfg and registers their cleanup
// as shutdown hooks on the returned manager.
func Build(ctx context.Context, cfg config.AppConfig) (*Runtime, error) {
	logger := log.WithComponent("daemon")

	tp, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    cfg.LogService,
		ServiceVersion: cfg.Version,
		Environment:    cfg.Telemetry.Environment,
		ExporterType:   cfg.Telemetry.Exporter,
		Endpoint:       cfg.Telemetry.Endpoint,
		SamplingRate:   cfg.Telemetry.SamplingRate,
	})
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	events := bus.NewMemoryBus()
	st := store.New(store.WithBus(events))

	provider := runway.New(runway.Config{
		BaseURL:          cfg.Runway.BaseURL,
		APISecret:        cfg.Runway.APISecret,
		Version:          cfg.Runway.Version,
		Model:            cfg.Runway.Model,
		Ratio:            cfg.Runway.Ratio,
		Timeout:          cfg.Runway.Timeout,
		RateLimitRPS:     cfg.Runway.RateLimitRPS,
		RateLimitBurst:   cfg.Runway.RateLimitBurst,
		BreakerThreshold: cfg.Runway.BreakerThreshold,
		BreakerReset:     cfg.Runway.BreakerReset,
	})
	controller := generation.NewController(provider, st, generation.Options{
		PollInterval: cfg.Runway.PollInterval,
		PollRetries:  cfg.Runway.PollRetries,
		RetryBackoff: cfg.Runway.RetryBackoff,
		Ratio:        cfg.Runway.Ratio,
		Bus:          events,
	})
	chat := llm.New(llm.Config{
		BaseURL:   cfg.LLM.BaseURL,
		APIKey:    cfg.LLM.APIKey,
		Model:     cfg.LLM.Model,
		MaxTokens: cfg.LLM.MaxTokens,
		Timeout:   cfg.LLM.Timeout,
	})

	hm := health.NewManager(cfg.Version)
	hm.RegisterChecker(health.NewCredentialChecker("runway_credentials", provider.Configured))
	hm.RegisterChecker(health.NewCredentialChecker("llm_credentials", chat.Configured))
	hm.RegisterChecker(health.NewBreakerChecker("runway_breaker", provider.BreakerState))

	if !provider.Configured() {
		logger.Warn().Str(log.FieldEvent, "runway.unconfigured").Msg("RUNWAYML_API_SECRET not set, generation will be rejected")
	}
	if !chat.Configured() {
		logger.Warn().Str(log.FieldEvent, "llm.unconfigured").Msg("ANTHROPIC_API_KEY not set, chat will be rejected")
	}

	apiCfg := api.Config{
		Stack:          stackConfig(cfg),
		ServeMetrics:   cfg.MetricsAddr == "",
		EventPing:      cfg.Server.EventPing,
		AllowedOrigins: cfg.CORSOrigins,
	}
	if cfg.RateLimit.Enabled {
		apiCfg.ChatPerMinute = cfg.RateLimit.ChatPerMinute
	}
	srv, err := api.New(apiCfg, api.Deps{
		Store:      st,
		Generation: controller,
		Provider:   provider,
		Chat:       chat,
		Bus:        events,
		Health:     hm,
	})
	if err != nil {
		controller.Close()
		_ = tp.Shutdown(ctx)
		return nil, fmt.Errorf("init api: %w", err)
	}

	deps := Deps{
		Logger:     logger,
		APIHandler: srv.Handler(),
		Health:     hm,
	}
	if cfg.MetricsAddr != "" {
		deps.MetricsHandler = metricsMux()
	}
	mgr, err := NewManager(ServerConfig{
		ListenAddr:      cfg.ListenAddr,
		MetricsAddr:     cfg.MetricsAddr,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		IdleTimeout:     cfg.Server.IdleTimeout,
		MaxHeaderBytes:  1 << 20,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, deps)
	if err != nil {
		controller.Close()
		_ = tp.Shutdown(ctx)
		return nil, err
	}

	// LIFO: pollers stop before the tracer flushes their last spans.
	mgr.RegisterShutdownHook("telemetry", tp.Shutdown)
	mgr.RegisterShutdownHook("generation", func(context.Context) error {
		controller.Close()
		return nil
	})

	logBuild(logger, cfg)

	return &Runtime{
		Manager:    mgr,
		API:        srv,
		Store:      st,
		Generation: controller,
		Health:     hm,
	}, nil
}

func stackConfig(cfg config.AppConfig) middleware.StackConfig {
	sc := middleware.StackConfig{
		EnableCORS:            len(cfg.CORSOrigins) > 0,
		AllowedOrigins:        cfg.CORSOrigins,
		EnableSecurityHeaders: true,
		EnableMetrics:         true,
		EnableLogging:         true,
	}
	if cfg.Telemetry.Enabled {
		sc.TracingService = cfg.LogService
	}
	if cfg.RateLimit.Enabled {
		sc.RateLimitPerMinute = cfg.RateLimit.RequestsPerMinute
	}
	return sc
}

func metricsMux() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

func logBuild(logger zerolog.Logger, cfg config.AppConfig) {
	logger.Info().
		Str(log.FieldEvent, "daemon.configured").
		Str("version", cfg.Version).
		Str("listen", cfg.ListenAddr).
		Str("metrics_listen", cfg.MetricsAddr).
		Str("runway_model", cfg.Runway.Model).
		Str("ratio", cfg.Runway.Ratio).
		Dur("poll_interval", cfg.Runway.PollInterval).
		Str("llm_model", cfg.LLM.Model).
		Bool("tracing", cfg.Telemetry.Enabled).
		Msg("daemon wired")
}
