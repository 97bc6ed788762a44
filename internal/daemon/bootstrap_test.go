// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package daemon

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/shotline/internal/config"
)

func testAppConfig(t *testing.T) config.AppConfig {
	t.Helper()
	cfg := config.Defaults()
	cfg.Version = "test"
	cfg.ListenAddr = reserveListenAddr(t)
	cfg.Server.ShutdownTimeout = 2 * time.Second
	return cfg
}

func TestBuild_WiresRunnableDaemon(t *testing.T) {
	cfg := testAppConfig(t)

	rt, err := Build(context.Background(), cfg)
	require.NoError(t, err)
	require.NotNil(t, rt.API)
	require.NotNil(t, rt.Store)
	require.NotNil(t, rt.Generation)
	assert.False(t, rt.Health.Ready(context.Background()).Ready, "not ready before listening")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- rt.Manager.Start(ctx) }()
	require.NoError(t, waitForListen(cfg.ListenAddr, 2*time.Second))

	code, body := get(t, "http://"+cfg.ListenAddr+"/readyz")
	assert.Equal(t, http.StatusOK, code)

	var ready struct {
		Ready  bool                       `json:"ready"`
		Status string                     `json:"status"`
		Checks map[string]json.RawMessage `json:"checks"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &ready))
	assert.True(t, ready.Ready)
	assert.Equal(t, "degraded", ready.Status, "missing credentials degrade readiness")
	assert.Contains(t, ready.Checks, "runway_credentials")
	assert.Contains(t, ready.Checks, "llm_credentials")
	assert.Contains(t, ready.Checks, "runway_breaker")

	code, _ = get(t, "http://"+cfg.ListenAddr+"/metrics")
	assert.Equal(t, http.StatusOK, code, "metrics served on the API listener without a metrics address")

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("daemon did not stop")
	}
}

func TestBuild_SeparateMetricsListener(t *testing.T) {
	cfg := testAppConfig(t)
	cfg.MetricsAddr = reserveListenAddr(t)

	rt, err := Build(context.Background(), cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- rt.Manager.Start(ctx) }()
	defer func() {
		cancel()
		<-done
	}()
	require.NoError(t, waitForListen(cfg.ListenAddr, 2*time.Second))
	require.NoError(t, waitForListen(cfg.MetricsAddr, 2*time.Second))

	code, _ := get(t, "http://"+cfg.ListenAddr+"/metrics")
	assert.Equal(t, http.StatusNotFound, code)
	code, _ = get(t, "http://"+cfg.MetricsAddr+"/metrics")
	assert.Equal(t, http.StatusOK, code)
}

func TestStackConfig(t *testing.T) {
	cfg := config.Defaults()
	sc := stackConfig(cfg)
	assert.False(t, sc.EnableCORS)
	assert.Empty(t, sc.TracingService)
	assert.Equal(t, 300, sc.RateLimitPerMinute)

	cfg.CORSOrigins = []string{"https://app.example.com"}
	cfg.Telemetry.Enabled = true
	cfg.RateLimit.Enabled = false
	sc = stackConfig(cfg)
	assert.True(t, sc.EnableCORS)
	assert.Equal(t, "shotline", sc.TracingService)
	assert.Zero(t, sc.RateLimitPerMinute)
}
