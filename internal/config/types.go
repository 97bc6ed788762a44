// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import "time"

// AppConfig is the fully resolved configuration.
type AppConfig struct {
	Version     string
	ListenAddr  string
	MetricsAddr string // empty serves /metrics on the API listener
	LogLevel    string
	LogService  string
	CORSOrigins []string

	Runway    RunwaySettings
	LLM       LLMSettings
	Server    ServerSettings
	RateLimit RateLimitSettings
	Telemetry TelemetrySettings
}

// RunwaySettings configure the video provider client and the poller.
type RunwaySettings struct {
	BaseURL   string
	APISecret string
	Version   string
	Model     string
	Ratio     string
	Timeout   time.Duration

	PollInterval time.Duration
	PollRetries  int
	RetryBackoff time.Duration

	RateLimitRPS     float64
	RateLimitBurst   int
	BreakerThreshold int
	BreakerReset     time.Duration
}

// LLMSettings configure the chat completion client.
type LLMSettings struct {
	BaseURL   string
	APIKey    string
	Model     string
	MaxTokens int
	Timeout   time.Duration
}

// ServerSettings are the HTTP server timeouts. WriteTimeout also bounds a
// streamed chat reply, so it must cover the longest completion.
type ServerSettings struct {
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	EventPing       time.Duration
}

// RateLimitSettings are per-client-IP request budgets.
type RateLimitSettings struct {
	Enabled           bool
	RequestsPerMinute int
	ChatPerMinute     int
}

// TelemetrySettings configure OTLP tracing.
type TelemetrySettings struct {
	Enabled      bool
	Exporter     string // grpc|http
	Endpoint     string
	SamplingRate float64
	Environment  string
}

// FileConfig is the YAML shape of the configuration file.
type FileConfig struct {
	Listen        string   `yaml:"listen,omitempty"`
	MetricsListen string   `yaml:"metricsListen,omitempty"`
	LogLevel      string   `yaml:"logLevel,omitempty"`
	LogService    string   `yaml:"logService,omitempty"`
	CORSOrigins   []string `yaml:"corsOrigins,omitempty"`

	Runway    RunwayFileConfig    `yaml:"runway,omitempty"`
	LLM       LLMFileConfig       `yaml:"llm,omitempty"`
	Server    ServerFileConfig    `yaml:"server,omitempty"`
	RateLimit RateLimitFileConfig `yaml:"rateLimit,omitempty"`
	Telemetry TelemetryFileConfig `yaml:"telemetry,omitempty"`
}

// RunwayFileConfig holds the video provider section. Secrets are accepted
// here but ENV is preferred.
type RunwayFileConfig struct {
	BaseURL          string   `yaml:"baseUrl,omitempty"`
	APISecret        string   `yaml:"apiSecret,omitempty"`
	Version          string   `yaml:"version,omitempty"`
	Model            string   `yaml:"model,omitempty"`
	Ratio            string   `yaml:"ratio,omitempty"`
	Timeout          string   `yaml:"timeout,omitempty"`
	PollInterval     string   `yaml:"pollInterval,omitempty"`
	PollRetries      *int     `yaml:"pollRetries,omitempty"`
	RetryBackoff     string   `yaml:"retryBackoff,omitempty"`
	RateLimitRPS     *float64 `yaml:"rateLimitRps,omitempty"`
	RateLimitBurst   *int     `yaml:"rateLimitBurst,omitempty"`
	BreakerThreshold *int     `yaml:"breakerThreshold,omitempty"`
	BreakerReset     string   `yaml:"breakerReset,omitempty"`
}

// LLMFileConfig holds the chat model section.
type LLMFileConfig struct {
	BaseURL   string `yaml:"baseUrl,omitempty"`
	APIKey    string `yaml:"apiKey,omitempty"`
	Model     string `yaml:"model,omitempty"`
	MaxTokens *int   `yaml:"maxTokens,omitempty"`
	Timeout   string `yaml:"timeout,omitempty"`
}

// ServerFileConfig holds HTTP server timeouts.
type ServerFileConfig struct {
	ReadTimeout     string `yaml:"readTimeout,omitempty"`
	WriteTimeout    string `yaml:"writeTimeout,omitempty"`
	IdleTimeout     string `yaml:"idleTimeout,omitempty"`
	ShutdownTimeout string `yaml:"shutdownTimeout,omitempty"`
	EventPing       string `yaml:"eventPing,omitempty"`
}

// RateLimitFileConfig holds the ingress limits.
type RateLimitFileConfig struct {
	Enabled           *bool `yaml:"enabled,omitempty"`
	RequestsPerMinute *int  `yaml:"requestsPerMinute,omitempty"`
	ChatPerMinute     *int  `yaml:"chatPerMinute,omitempty"`
}

// TelemetryFileConfig holds the tracing section.
type TelemetryFileConfig struct {
	Enabled      *bool    `yaml:"enabled,omitempty"`
	Exporter     string   `yaml:"exporter,omitempty"`
	Endpoint     string   `yaml:"endpoint,omitempty"`
	SamplingRate *float64 `yaml:"samplingRate,omitempty"`
	Environment  string   `yaml:"environment,omitempty"`
}
