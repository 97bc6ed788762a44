// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/ManuGH/shotline/internal/log"
	"github.com/ManuGH/shotline/internal/metrics"
)

// DefaultReloadDebounce coalesces the burst of events an editor save produces.
const DefaultReloadDebounce = 500 * time.Millisecond

// ConfigHolder holds configuration with atomic reloading capability.
type ConfigHolder struct {
	mu      sync.RWMutex
	current AppConfig
	loader  *Loader
	logger  zerolog.Logger

	debounce time.Duration
	watcher  *fsnotify.Watcher
	done     chan struct{}

	reloadMu        sync.RWMutex
	reloadListeners []chan<- AppConfig
}

// NewConfigHolder creates a new configuration holder with initial config.
func NewConfigHolder(initial AppConfig, loader *Loader) *ConfigHolder {
	return &ConfigHolder{
		current:  initial,
		loader:   loader,
		logger:   log.WithComponent("config"),
		debounce: DefaultReloadDebounce,
	}
}

// Get returns the current configuration.
func (h *ConfigHolder) Get() AppConfig {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current
}

// Reload loads and validates the configuration again. On failure the
// previous configuration stays active.
func (h *ConfigHolder) Reload(_ context.Context) error {
	h.logger.Info().Str(log.FieldEvent, "config.reload_start").Msg("reloading configuration")

	newCfg, err := h.loader.Load()
	if err != nil {
		metrics.IncConfigReload("failed")
		h.logger.Error().
			Err(err).
			Str(log.FieldEvent, "config.reload_failed").
			Msg("failed to load new configuration")
		return fmt.Errorf("load config: %w", err)
	}

	h.mu.Lock()
	oldCfg := h.current
	h.current = newCfg
	h.mu.Unlock()

	h.applyLive(oldCfg, newCfg)
	h.notifyListeners(newCfg)
	metrics.IncConfigReload("success")

	h.logger.Info().
		Str(log.FieldEvent, "config.reload_success").
		Msg("configuration reloaded successfully")
	return nil
}

// applyLive applies the settings that can change without a restart and
// reports the rest.
func (h *ConfigHolder) applyLive(old, next AppConfig) {
	if old.LogLevel != next.LogLevel {
		if err := log.SetLevel(next.LogLevel); err != nil {
			h.logger.Warn().Err(err).Str("level", next.LogLevel).Msg("log level not applied")
		} else {
			h.logger.Info().
				Str("old", old.LogLevel).
				Str("new", next.LogLevel).
				Msg("config changed: LogLevel")
		}
	}

	var restart []string
	if old.ListenAddr != next.ListenAddr {
		restart = append(restart, "listen")
	}
	if old.MetricsAddr != next.MetricsAddr {
		restart = append(restart, "metricsListen")
	}
	if old.Runway != next.Runway {
		restart = append(restart, "runway")
	}
	if old.LLM != next.LLM {
		restart = append(restart, "llm")
	}
	if old.Server != next.Server {
		restart = append(restart, "server")
	}
	if old.RateLimit != next.RateLimit {
		restart = append(restart, "rateLimit")
	}
	if old.Telemetry != next.Telemetry {
		restart = append(restart, "telemetry")
	}
	if !slices.Equal(old.CORSOrigins, next.CORSOrigins) {
		restart = append(restart, "corsOrigins")
	}
	if len(restart) > 0 {
		h.logger.Warn().
			Str(log.FieldEvent, "config.restart_required").
			Strs("sections", restart).
			Msg("changed settings take effect after restart")
	}
}

// StartWatcher watches the config file for changes. Without a file it is a no-op.
// The directory is watched so that atomic replace-by-rename is seen.
func (h *ConfigHolder) StartWatcher(ctx context.Context) error {
	path := h.loader.Path()
	if path == "" {
		h.logger.Info().
			Str(log.FieldEvent, "config.watcher_disabled").
			Msg("config file watcher disabled (using ENV-only configuration)")
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watch config dir: %w", err)
	}
	h.watcher = watcher
	h.done = make(chan struct{})

	h.logger.Info().
		Str(log.FieldEvent, "config.watcher_started").
		Str("path", path).
		Msg("watching config file for changes")

	go h.watchLoop(ctx, filepath.Clean(path))
	return nil
}

func (h *ConfigHolder) watchLoop(ctx context.Context, path string) {
	defer close(h.done)

	var debounceTimer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			h.logger.Info().Str(log.FieldEvent, "config.watcher_stopped").Msg("config watcher stopped")
			_ = h.watcher.Close()
			return

		case event, ok := <-h.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			h.logger.Debug().
				Str(log.FieldEvent, "config.file_changed").
				Str("op", event.Op.String()).
				Msg("config file changed")
			if debounceTimer == nil {
				debounceTimer = time.NewTimer(h.debounce)
			} else {
				debounceTimer.Reset(h.debounce)
			}
			fire = debounceTimer.C

		case <-fire:
			fire = nil
			if err := h.Reload(ctx); err != nil {
				h.logger.Error().
					Err(err).
					Str(log.FieldEvent, "config.auto_reload_failed").
					Msg("automatic config reload failed")
			}

		case err, ok := <-h.watcher.Errors:
			if !ok {
				return
			}
			h.logger.Error().
				Err(err).
				Str(log.FieldEvent, "config.watcher_error").
				Msg("config watcher error")
		}
	}
}

// Stop stops the watcher and waits for its goroutine.
func (h *ConfigHolder) Stop() {
	if h.watcher == nil {
		return
	}
	_ = h.watcher.Close()
	<-h.done
}

// RegisterListener registers a channel to receive config reload notifications.
// Sends are non-blocking; the caller owns the channel.
func (h *ConfigHolder) RegisterListener(ch chan<- AppConfig) {
	h.reloadMu.Lock()
	defer h.reloadMu.Unlock()
	h.reloadListeners = append(h.reloadListeners, ch)
}

func (h *ConfigHolder) notifyListeners(newCfg AppConfig) {
	h.reloadMu.RLock()
	defer h.reloadMu.RUnlock()

	for _, ch := range h.reloadListeners {
		select {
		case ch <- newCfg:
		default:
			h.logger.Warn().
				Str(log.FieldEvent, "config.listener_skip").
				Msg("skipped notifying listener (channel full)")
		}
	}
}
