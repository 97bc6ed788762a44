// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Loader handles configuration loading with precedence
type Loader struct {
	configPath      string
	version         string
	ConsumedEnvKeys map[string]struct{}
}

// NewLoader creates a new configuration loader. An empty path loads from
// defaults and ENV only.
func NewLoader(configPath, version string) *Loader {
	return &Loader{
		configPath:      configPath,
		version:         version,
		ConsumedEnvKeys: make(map[string]struct{}),
	}
}

// Path returns the configuration file path, or "".
func (l *Loader) Path() string { return l.configPath }

func (l *Loader) envString(key, defaultVal string) string {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseString(key, defaultVal)
}

func (l *Loader) envBool(key string, defaultVal bool) bool {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseBool(key, defaultVal)
}

func (l *Loader) envInt(key string, defaultVal int) int {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseInt(key, defaultVal)
}

func (l *Loader) envFloat(key string, defaultVal float64) float64 {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseFloat(key, defaultVal)
}

func (l *Loader) envDuration(key string, defaultVal time.Duration) time.Duration {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseDuration(key, defaultVal)
}

func (l *Loader) envList(key string, defaultVal []string) []string {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseList(key, defaultVal)
}

// Load loads configuration with precedence: ENV > File > Defaults, then validates it.
func (l *Loader) Load() (AppConfig, error) {
	cfg := Defaults()

	if l.configPath != "" {
		fileCfg, err := l.loadFile(l.configPath)
		if err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
		if err := mergeFileConfig(&cfg, fileCfg); err != nil {
			return cfg, fmt.Errorf("merge file config: %w", err)
		}
	}

	l.mergeEnvConfig(&cfg)
	cfg.Version = l.version

	if err := Validate(cfg); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// loadFile decodes the YAML file strictly: unknown keys are rejected.
func (l *Loader) loadFile(path string) (*FileConfig, error) {
	path = filepath.Clean(path)

	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("unsupported config format: %s (only YAML supported)", ext)
	}

	// #nosec G304 -- configuration file paths are provided by the operator via CLI/ENV
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return parseFile(data)
}

func parseFile(data []byte) (*FileConfig, error) {
	var fileCfg FileConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(&fileCfg); err != nil {
		if errors.Is(err, io.EOF) {
			return &FileConfig{}, nil
		}
		return nil, fmt.Errorf("strict config parse error: %w", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return nil, errors.New("config file contains multiple documents or trailing content")
	}
	return &fileCfg, nil
}

// mergeFileConfig overlays the set file values onto cfg.
func mergeFileConfig(cfg *AppConfig, f *FileConfig) error {
	setString(&cfg.ListenAddr, f.Listen)
	setString(&cfg.MetricsAddr, f.MetricsListen)
	setString(&cfg.LogLevel, f.LogLevel)
	setString(&cfg.LogService, f.LogService)
	if len(f.CORSOrigins) > 0 {
		cfg.CORSOrigins = append([]string(nil), f.CORSOrigins...)
	}

	r := &cfg.Runway
	setString(&r.BaseURL, f.Runway.BaseURL)
	setString(&r.APISecret, f.Runway.APISecret)
	setString(&r.Version, f.Runway.Version)
	setString(&r.Model, f.Runway.Model)
	setString(&r.Ratio, f.Runway.Ratio)
	setPtr(&r.PollRetries, f.Runway.PollRetries)
	setPtr(&r.RateLimitRPS, f.Runway.RateLimitRPS)
	setPtr(&r.RateLimitBurst, f.Runway.RateLimitBurst)
	setPtr(&r.BreakerThreshold, f.Runway.BreakerThreshold)

	setString(&cfg.LLM.BaseURL, f.LLM.BaseURL)
	setString(&cfg.LLM.APIKey, f.LLM.APIKey)
	setString(&cfg.LLM.Model, f.LLM.Model)
	setPtr(&cfg.LLM.MaxTokens, f.LLM.MaxTokens)

	setPtr(&cfg.RateLimit.Enabled, f.RateLimit.Enabled)
	setPtr(&cfg.RateLimit.RequestsPerMinute, f.RateLimit.RequestsPerMinute)
	setPtr(&cfg.RateLimit.ChatPerMinute, f.RateLimit.ChatPerMinute)

	t := &cfg.Telemetry
	setPtr(&t.Enabled, f.Telemetry.Enabled)
	setString(&t.Exporter, f.Telemetry.Exporter)
	setString(&t.Endpoint, f.Telemetry.Endpoint)
	setPtr(&t.SamplingRate, f.Telemetry.SamplingRate)
	setString(&t.Environment, f.Telemetry.Environment)

	durations := []struct {
		field string
		raw   string
		dst   *time.Duration
	}{
		{"runway.timeout", f.Runway.Timeout, &r.Timeout},
		{"runway.pollInterval", f.Runway.PollInterval, &r.PollInterval},
		{"runway.retryBackoff", f.Runway.RetryBackoff, &r.RetryBackoff},
		{"runway.breakerReset", f.Runway.BreakerReset, &r.BreakerReset},
		{"llm.timeout", f.LLM.Timeout, &cfg.LLM.Timeout},
		{"server.readTimeout", f.Server.ReadTimeout, &cfg.Server.ReadTimeout},
		{"server.writeTimeout", f.Server.WriteTimeout, &cfg.Server.WriteTimeout},
		{"server.idleTimeout", f.Server.IdleTimeout, &cfg.Server.IdleTimeout},
		{"server.shutdownTimeout", f.Server.ShutdownTimeout, &cfg.Server.ShutdownTimeout},
		{"server.eventPing", f.Server.EventPing, &cfg.Server.EventPing},
	}
	for _, d := range durations {
		if d.raw == "" {
			continue
		}
		parsed, err := time.ParseDuration(d.raw)
		if err != nil {
			return fmt.Errorf("%s: invalid duration %q: %w", d.field, d.raw, err)
		}
		*d.dst = parsed
	}
	return nil
}

// mergeEnvConfig overlays environment variables onto cfg.
func (l *Loader) mergeEnvConfig(cfg *AppConfig) {
	cfg.ListenAddr = l.envString(EnvListen, cfg.ListenAddr)
	cfg.MetricsAddr = l.envString(EnvMetricsListen, cfg.MetricsAddr)
	cfg.LogLevel = l.envString(EnvLogLevel, cfg.LogLevel)
	cfg.LogService = l.envString(EnvLogService, cfg.LogService)
	cfg.CORSOrigins = l.envList(EnvCORSOrigins, cfg.CORSOrigins)

	r := &cfg.Runway
	r.APISecret = l.envString(EnvRunwaySecret, r.APISecret)
	r.BaseURL = l.envString(EnvRunwayBaseURL, r.BaseURL)
	r.Model = l.envString(EnvRunwayModel, r.Model)
	r.Ratio = l.envString(EnvRunwayRatio, r.Ratio)
	r.Timeout = l.envDuration(EnvRunwayTimeout, r.Timeout)
	r.PollInterval = l.envDuration(EnvPollInterval, r.PollInterval)
	r.PollRetries = l.envInt(EnvPollRetries, r.PollRetries)
	r.RateLimitRPS = l.envFloat(EnvRunwayRateLimitRPS, r.RateLimitRPS)

	cfg.LLM.APIKey = l.envString(EnvLLMKey, cfg.LLM.APIKey)
	cfg.LLM.BaseURL = l.envString(EnvLLMBaseURL, cfg.LLM.BaseURL)
	cfg.LLM.Model = l.envString(EnvLLMModel, cfg.LLM.Model)
	cfg.LLM.Timeout = l.envDuration(EnvLLMTimeout, cfg.LLM.Timeout)

	cfg.Server.ShutdownTimeout = l.envDuration(EnvShutdownTimeout, cfg.Server.ShutdownTimeout)

	cfg.RateLimit.Enabled = l.envBool(EnvRateLimitEnabled, cfg.RateLimit.Enabled)
	cfg.RateLimit.RequestsPerMinute = l.envInt(EnvRateLimitRPM, cfg.RateLimit.RequestsPerMinute)
	cfg.RateLimit.ChatPerMinute = l.envInt(EnvChatRateLimitRPM, cfg.RateLimit.ChatPerMinute)

	t := &cfg.Telemetry
	t.Enabled = l.envBool(EnvTracingEnabled, t.Enabled)
	t.Exporter = l.envString(EnvTracingExporter, t.Exporter)
	t.Endpoint = l.envString(EnvTracingEndpoint, t.Endpoint)
	t.SamplingRate = l.envFloat(EnvTracingSampling, t.SamplingRate)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setPtr[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}
