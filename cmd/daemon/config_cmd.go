// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ManuGH/shotline/internal/config"
	"github.com/ManuGH/shotline/internal/version"
)

const redacted = "***"

func runConfigCLI(args []string) int {
	return configCLI(args, os.Stdout, os.Stderr)
}

func configCLI(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		printConfigUsage(stderr)
		return 0
	}

	switch args[0] {
	case "validate":
		return runConfigValidate(args[1:], stdout, stderr)
	case "dump":
		return runConfigDump(args[1:], stdout, stderr)
	default:
		fmt.Fprintf(stderr, "Unknown subcommand: %s\n\n", args[0])
		printConfigUsage(stderr)
		return 2
	}
}

func printConfigUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  shotline config validate [--file|-f config.yaml]")
	fmt.Fprintln(w, "  shotline config dump [--file|-f config.yaml] [--format=yaml|json]")
}

func runConfigValidate(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("shotline config validate", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var file string
	fs.StringVar(&file, "file", "", "path to YAML configuration file")
	fs.StringVar(&file, "f", "", "path to YAML configuration file (shorthand)")

	if err := fs.Parse(args); err != nil {
		return 2
	}

	configPath := resolveConfigPath(file)
	loader := config.NewLoader(configPath, version.Version)
	if _, err := loader.Load(); err != nil {
		fmt.Fprintf(stderr, "Configuration error in %s:\n  %v\n", describeSource(configPath), err)
		return 1
	}

	fmt.Fprintf(stdout, "✓ %s is valid\n", describeSource(configPath))
	return 0
}

// runConfigDump prints the effective configuration (defaults + file + env)
// in file syntax with secrets redacted.
func runConfigDump(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("shotline config dump", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var file, format string
	fs.StringVar(&file, "file", "", "path to YAML configuration file")
	fs.StringVar(&file, "f", "", "path to YAML configuration file (shorthand)")
	fs.StringVar(&format, "format", "yaml", "output format: yaml or json")

	if err := fs.Parse(args); err != nil {
		return 2
	}

	configPath := resolveConfigPath(file)
	loader := config.NewLoader(configPath, version.Version)
	cfg, err := loader.Load()
	if err != nil {
		fmt.Fprintf(stderr, "Configuration error in %s:\n  %v\n", describeSource(configPath), err)
		return 1
	}

	fileCfg := fileConfigFromAppConfig(cfg)
	redactFileConfigSecrets(&fileCfg)

	switch strings.ToLower(strings.TrimSpace(format)) {
	case "yaml", "yml":
		enc := yaml.NewEncoder(stdout)
		enc.SetIndent(2)
		if err := enc.Encode(fileCfg); err != nil {
			fmt.Fprintf(stderr, "Failed to encode YAML: %v\n", err)
			return 1
		}
		_ = enc.Close()
		return 0
	case "json":
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(fileCfg); err != nil {
			fmt.Fprintf(stderr, "Failed to encode JSON: %v\n", err)
			return 1
		}
		return 0
	default:
		fmt.Fprintf(stderr, "Unknown format: %s\n", format)
		return 2
	}
}

func describeSource(path string) string {
	if path == "" {
		return "environment and defaults"
	}
	return path
}

func fileConfigFromAppConfig(cfg config.AppConfig) config.FileConfig {
	dur := func(d time.Duration) string { return d.String() }
	return config.FileConfig{
		Listen:        cfg.ListenAddr,
		MetricsListen: cfg.MetricsAddr,
		LogLevel:      cfg.LogLevel,
		LogService:    cfg.LogService,
		CORSOrigins:   cfg.CORSOrigins,
		Runway: config.RunwayFileConfig{
			BaseURL:          cfg.Runway.BaseURL,
			APISecret:        cfg.Runway.APISecret,
			Version:          cfg.Runway.Version,
			Model:            cfg.Runway.Model,
			Ratio:            cfg.Runway.Ratio,
			Timeout:          dur(cfg.Runway.Timeout),
			PollInterval:     dur(cfg.Runway.PollInterval),
			PollRetries:      &cfg.Runway.PollRetries,
			RetryBackoff:     dur(cfg.Runway.RetryBackoff),
			RateLimitRPS:     &cfg.Runway.RateLimitRPS,
			RateLimitBurst:   &cfg.Runway.RateLimitBurst,
			BreakerThreshold: &cfg.Runway.BreakerThreshold,
			BreakerReset:     dur(cfg.Runway.BreakerReset),
		},
		LLM: config.LLMFileConfig{
			BaseURL:   cfg.LLM.BaseURL,
			APIKey:    cfg.LLM.APIKey,
			Model:     cfg.LLM.Model,
			MaxTokens: &cfg.LLM.MaxTokens,
			Timeout:   dur(cfg.LLM.Timeout),
		},
		Server: config.ServerFileConfig{
			ReadTimeout:     dur(cfg.Server.ReadTimeout),
			WriteTimeout:    dur(cfg.Server.WriteTimeout),
			IdleTimeout:     dur(cfg.Server.IdleTimeout),
			ShutdownTimeout: dur(cfg.Server.ShutdownTimeout),
			EventPing:       dur(cfg.Server.EventPing),
		},
		RateLimit: config.RateLimitFileConfig{
			Enabled:           &cfg.RateLimit.Enabled,
			RequestsPerMinute: &cfg.RateLimit.RequestsPerMinute,
			ChatPerMinute:     &cfg.RateLimit.ChatPerMinute,
		},
		Telemetry: config.TelemetryFileConfig{
			Enabled:      &cfg.Telemetry.Enabled,
			Exporter:     cfg.Telemetry.Exporter,
			Endpoint:     cfg.Telemetry.Endpoint,
			SamplingRate: &cfg.Telemetry.SamplingRate,
			Environment:  cfg.Telemetry.Environment,
		},
	}
}

func redactFileConfigSecrets(f *config.FileConfig) {
	if f.Runway.APISecret != "" {
		f.Runway.APISecret = redacted
	}
	if f.LLM.APIKey != "" {
		f.LLM.APIKey = redacted
	}
}
