// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"fmt"
	"regexp"
	"time"

	"github.com/ManuGH/shotline/internal/validate"
)

// ratioPattern accepts both aspect ratios ("16:9") and pixel formats ("1280:720").
var ratioPattern = regexp.MustCompile(`^\d{1,4}:\d{1,4}$`)

// Validate checks cfg and reports every problem at once.
func Validate(cfg AppConfig) error {
	v := validate.New()

	v.ListenAddr("listen", cfg.ListenAddr)
	if cfg.MetricsAddr != "" {
		v.ListenAddr("metricsListen", cfg.MetricsAddr)
		if cfg.MetricsAddr == cfg.ListenAddr {
			v.AddError("metricsListen", "must differ from listen", cfg.MetricsAddr)
		}
	}
	if _, err := validate.ParseLogLevel(cfg.LogLevel); err != nil {
		v.AddError("logLevel", validate.ErrInvalidLogLevel.Message, cfg.LogLevel)
	}

	r := cfg.Runway
	v.URL("runway.baseUrl", r.BaseURL, []string{"http", "https"})
	v.NotEmpty("runway.version", r.Version)
	v.NotEmpty("runway.model", r.Model)
	if !ratioPattern.MatchString(r.Ratio) {
		v.AddError("runway.ratio", fmt.Sprintf("must look like W:H, got %q", r.Ratio), r.Ratio)
	}
	v.MinDuration("runway.timeout", r.Timeout, time.Second)
	v.MinDuration("runway.pollInterval", r.PollInterval, 100*time.Millisecond)
	v.Range("runway.pollRetries", r.PollRetries, 0, 20)
	v.MinDuration("runway.retryBackoff", r.RetryBackoff, 0)
	if r.RateLimitRPS < 0 {
		v.AddError("runway.rateLimitRps", "cannot be negative", r.RateLimitRPS)
	}
	v.NonNegative("runway.rateLimitBurst", r.RateLimitBurst)
	v.NonNegative("runway.breakerThreshold", r.BreakerThreshold)
	v.MinDuration("runway.breakerReset", r.BreakerReset, 0)

	v.URL("llm.baseUrl", cfg.LLM.BaseURL, []string{"http", "https"})
	v.NotEmpty("llm.model", cfg.LLM.Model)
	v.Range("llm.maxTokens", cfg.LLM.MaxTokens, 1, 64000)
	v.MinDuration("llm.timeout", cfg.LLM.Timeout, time.Second)

	s := cfg.Server
	v.MinDuration("server.readTimeout", s.ReadTimeout, 0)
	v.MinDuration("server.writeTimeout", s.WriteTimeout, 0)
	v.MinDuration("server.idleTimeout", s.IdleTimeout, 0)
	v.MinDuration("server.shutdownTimeout", s.ShutdownTimeout, time.Second)
	v.MinDuration("server.eventPing", s.EventPing, time.Second)

	if cfg.RateLimit.Enabled {
		v.Positive("rateLimit.requestsPerMinute", cfg.RateLimit.RequestsPerMinute)
		v.NonNegative("rateLimit.chatPerMinute", cfg.RateLimit.ChatPerMinute)
	}

	if cfg.Telemetry.Enabled {
		v.OneOf("telemetry.exporter", cfg.Telemetry.Exporter, []string{"grpc", "http"})
		v.NotEmpty("telemetry.endpoint", cfg.Telemetry.Endpoint)
		v.FloatRange("telemetry.samplingRate", cfg.Telemetry.SamplingRate, 0, 1)
	}

	return v.Err()
}
