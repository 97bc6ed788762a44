// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ManuGH/shotline/internal/log"
)

// Environment variables read by the loader.
const (
	EnvListen        = "SHOTLINE_LISTEN"
	EnvMetricsListen = "SHOTLINE_METRICS_LISTEN"
	EnvLogLevel      = "SHOTLINE_LOG_LEVEL"
	EnvLogService    = "SHOTLINE_LOG_SERVICE"
	EnvCORSOrigins   = "SHOTLINE_CORS_ORIGINS"

	EnvRunwaySecret       = "RUNWAYML_API_SECRET"
	EnvRunwayBaseURL      = "SHOTLINE_RUNWAY_BASE_URL"
	EnvRunwayModel        = "SHOTLINE_RUNWAY_MODEL"
	EnvRunwayRatio        = "SHOTLINE_RUNWAY_RATIO"
	EnvRunwayTimeout      = "SHOTLINE_RUNWAY_TIMEOUT"
	EnvPollInterval       = "SHOTLINE_POLL_INTERVAL"
	EnvPollRetries        = "SHOTLINE_POLL_RETRIES"
	EnvRunwayRateLimitRPS = "SHOTLINE_RUNWAY_RATE_LIMIT_RPS"

	EnvLLMKey     = "ANTHROPIC_API_KEY"
	EnvLLMBaseURL = "SHOTLINE_LLM_BASE_URL"
	EnvLLMModel   = "SHOTLINE_LLM_MODEL"
	EnvLLMTimeout = "SHOTLINE_LLM_TIMEOUT"

	EnvShutdownTimeout = "SHOTLINE_SHUTDOWN_TIMEOUT"

	EnvRateLimitEnabled = "SHOTLINE_RATE_LIMIT_ENABLED"
	EnvRateLimitRPM     = "SHOTLINE_RATE_LIMIT_RPM"
	EnvChatRateLimitRPM = "SHOTLINE_CHAT_RATE_LIMIT_RPM"

	EnvTracingEnabled  = "SHOTLINE_TRACING_ENABLED"
	EnvTracingExporter = "SHOTLINE_TRACING_EXPORTER"
	EnvTracingEndpoint = "SHOTLINE_TRACING_ENDPOINT"
	EnvTracingSampling = "SHOTLINE_TRACING_SAMPLING_RATE"
)

func isSensitiveKey(key string) bool {
	k := strings.ToLower(key)
	for _, s := range []string{"secret", "key", "token", "password"} {
		if strings.Contains(k, s) {
			return true
		}
	}
	return false
}

// ParseString reads a string from environment variable or returns default value.
// Values of sensitive keys are never logged.
func ParseString(key, defaultValue string) string {
	return parseStringWithLogger(log.WithComponent("config"), key, defaultValue)
}

func parseStringWithLogger(logger zerolog.Logger, key, defaultValue string) string {
	value, exists := os.LookupEnv(key)
	switch {
	case !exists:
		logger.Debug().Str("key", key).Str("source", "default").Msg("using default value")
		return defaultValue
	case value == "":
		logger.Debug().Str("key", key).Str("source", "default").Msg("using default value (environment variable is empty)")
		return defaultValue
	case isSensitiveKey(key):
		logger.Debug().Str("key", key).Str("source", "environment").Bool("sensitive", true).Msg("using environment variable")
	default:
		logger.Debug().Str("key", key).Str("value", value).Str("source", "environment").Msg("using environment variable")
	}
	return value
}

// ParseInt reads an integer from environment variable or returns default value.
// It falls back to default on parse errors.
func ParseInt(key string, defaultValue int) int {
	v, ok := lookupNonEmpty(key)
	if !ok {
		return defaultValue
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		logger := log.WithComponent("config")
		logger.Warn().
			Str("key", key).
			Str("value", v).
			Int("default", defaultValue).
			Msg("invalid integer in environment variable, using default")
		return defaultValue
	}
	return i
}

// ParseFloat reads a float64 from environment variable or returns default value.
func ParseFloat(key string, defaultValue float64) float64 {
	v, ok := lookupNonEmpty(key)
	if !ok {
		return defaultValue
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		logger := log.WithComponent("config")
		logger.Warn().
			Str("key", key).
			Str("value", v).
			Float64("default", defaultValue).
			Msg("invalid float in environment variable, using default")
		return defaultValue
	}
	return f
}

// ParseDuration reads a duration in Go syntax (e.g. "5s").
func ParseDuration(key string, defaultValue time.Duration) time.Duration {
	v, ok := lookupNonEmpty(key)
	if !ok {
		return defaultValue
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		logger := log.WithComponent("config")
		logger.Warn().
			Str("key", key).
			Str("value", v).
			Dur("default", defaultValue).
			Msg("invalid duration in environment variable, using default")
		return defaultValue
	}
	return d
}

// ParseBool accepts "true", "false", "1", "0", "yes", "no" (case-insensitive).
func ParseBool(key string, defaultValue bool) bool {
	v, ok := lookupNonEmpty(key)
	if !ok {
		return defaultValue
	}
	switch strings.ToLower(v) {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	}
	logger := log.WithComponent("config")
	logger.Warn().
		Str("key", key).
		Str("value", v).
		Bool("default", defaultValue).
		Msg("invalid boolean in environment variable, using default")
	return defaultValue
}

// ParseList reads a comma separated list. Blank entries are dropped.
func ParseList(key string, defaultValue []string) []string {
	v, ok := lookupNonEmpty(key)
	if !ok {
		return defaultValue
	}
	return splitCSV(v)
}

func lookupNonEmpty(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return strings.TrimSpace(v), true
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
