// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package main

import (
	"context"
	"flag"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ManuGH/shotline/internal/config"
	"github.com/ManuGH/shotline/internal/daemon"
	sllog "github.com/ManuGH/shotline/internal/log"
	"github.com/ManuGH/shotline/internal/version"
)

// envConfigPath names the config file when --config is not given.
const envConfigPath = "SHOTLINE_CONFIG"

// maskURL removes user info from a URL string for safe logging.
func maskURL(rawURL string) string {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return "invalid-url-redacted"
	}
	parsedURL.User = nil
	return parsedURL.String()
}

func resolveConfigPath(explicit string) string {
	if p := strings.TrimSpace(explicit); p != "" {
		return p
	}
	return strings.TrimSpace(config.ParseString(envConfigPath, ""))
}

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "config":
			os.Exit(runConfigCLI(os.Args[2:]))
		case "healthcheck":
			os.Exit(runHealthcheckCLI(os.Args[2:]))
		case "export":
			os.Exit(runExportCLI(os.Args[2:]))
		}
	}

	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "path to config file (YAML)")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		os.Exit(0)
	}

	// Safe defaults until config is loaded
	sllog.Configure(sllog.Config{
		Level:   "info",
		Service: "shotline",
		Version: version.Version,
	})
	logger := sllog.WithComponent("daemon")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Precedence: ENV > File > Defaults
	effectiveConfigPath := resolveConfigPath(*configPath)
	loader := config.NewLoader(effectiveConfigPath, version.Version)
	cfg, err := loader.Load()
	if err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "config.load_failed").
			Str("config_path", effectiveConfigPath).
			Msg("failed to load configuration")
	}

	sllog.Configure(sllog.Config{
		Level:   cfg.LogLevel,
		Service: cfg.LogService,
		Version: cfg.Version,
	})
	logger = sllog.WithComponent("daemon")

	if effectiveConfigPath != "" {
		logger.Info().
			Str("event", "config.loaded").
			Str("source", "file").
			Str("path", effectiveConfigPath).
			Msg("loaded configuration from file")
	} else {
		logger.Info().
			Str("event", "config.loaded").
			Str("source", "env+defaults").
			Msg("loaded configuration from environment and defaults")
	}
	logger.Info().
		Str("runway_base_url", maskURL(cfg.Runway.BaseURL)).
		Str("llm_base_url", maskURL(cfg.LLM.BaseURL)).
		Msg("upstreams")

	rt, err := daemon.Build(ctx, cfg)
	if err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "daemon.build_failed").
			Msg("failed to initialize daemon")
	}

	var holder *config.ConfigHolder
	if effectiveConfigPath != "" {
		holder = config.NewConfigHolder(cfg, loader)
	}

	logger.Info().
		Str("version", version.Version).
		Str("commit", version.Commit).
		Str("build_date", version.Date).
		Msg("starting shotline")

	app := daemon.NewApp(logger, rt.Manager, holder)
	if err := app.Run(ctx); err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "daemon.failed").
			Msg("daemon stopped with error")
	}
	logger.Info().Msg("shotline stopped")
}
