// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import "time"

// Defaults returns the configuration used when neither file nor ENV set a value.
func Defaults() AppConfig {
	return AppConfig{
		ListenAddr: ":8080",
		LogLevel:   "info",
		LogService: "shotline",
		Runway: RunwaySettings{
			BaseURL:          "https://api.dev.runwayml.com/v1",
			Version:          "2024-11-06",
			Model:            "veo3.1_fast",
			Ratio:            "1280:720",
			Timeout:          30 * time.Second,
			PollInterval:     3 * time.Second,
			PollRetries:      3,
			RetryBackoff:     time.Second,
			RateLimitRPS:     5,
			RateLimitBurst:   5,
			BreakerThreshold: 5,
			BreakerReset:     30 * time.Second,
		},
		LLM: LLMSettings{
			BaseURL:   "https://api.anthropic.com",
			Model:     "claude-sonnet-4-20250514",
			MaxTokens: 4096,
			Timeout:   2 * time.Minute,
		},
		Server: ServerSettings{
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    3 * time.Minute,
			IdleTimeout:     2 * time.Minute,
			ShutdownTimeout: 10 * time.Second,
			EventPing:       30 * time.Second,
		},
		RateLimit: RateLimitSettings{
			Enabled:           true,
			RequestsPerMinute: 300,
			ChatPerMinute:     20,
		},
		Telemetry: TelemetrySettings{
			Exporter:     "grpc",
			Endpoint:     "localhost:4317",
			SamplingRate: 1.0,
			Environment:  "development",
		},
	}
}
