// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package daemon

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"go.uber.org/goleak"

	"github.com/ManuGH/shotline/internal/health"
	"github.com/ManuGH/shotline/internal/log"
)

func reserveListenAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to reserve listen addr: %v", err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()
	return addr
}

func waitForListen(addr string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("tcp", addr, 50*time.Millisecond)
		if err == nil {
			_ = conn.Close()
			return nil
		}
		time.Sleep(10 * time.Millisecond)
	}
	return errors.New("listen timeout")
}

func testServerConfig(addr string) ServerConfig {
	return ServerConfig{
		ListenAddr:      addr,
		ReadTimeout:     5 * time.Second,
		WriteTimeout:    10 * time.Second,
		IdleTimeout:     30 * time.Second,
		MaxHeaderBytes:  1 << 20,
		ShutdownTimeout: 5 * time.Second,
	}
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	client := &http.Client{Transport: &http.Transport{DisableKeepAlives: true}}
	resp, err := client.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(body)
}

func TestNewManager_ValidDeps(t *testing.T) {
	deps := Deps{
		Logger:     log.WithComponent("test"),
		APIHandler: http.NotFoundHandler(),
	}

	mgr, err := NewManager(testServerConfig("127.0.0.1:0"), deps)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	if mgr == nil {
		t.Fatal("NewManager() returned nil manager")
	}
	if mgr.Addr() != nil {
		t.Errorf("Addr() before Start = %v, want nil", mgr.Addr())
	}
}

func TestNewManager_MissingLogger(t *testing.T) {
	deps := Deps{
		Logger:     zerolog.Nop(),
		APIHandler: http.NotFoundHandler(),
	}

	_, err := NewManager(testServerConfig("127.0.0.1:0"), deps)
	if !errors.Is(err, ErrMissingLogger) {
		t.Fatalf("NewManager() error = %v, want ErrMissingLogger", err)
	}
}

func TestNewManager_MissingAPIHandler(t *testing.T) {
	deps := Deps{Logger: log.WithComponent("test")}

	_, err := NewManager(testServerConfig("127.0.0.1:0"), deps)
	if !errors.Is(err, ErrMissingAPIHandler) {
		t.Fatalf("NewManager() error = %v, want ErrMissingAPIHandler", err)
	}
}

func TestManager_ShutdownBeforeStart(t *testing.T) {
	mgr, err := NewManager(testServerConfig("127.0.0.1:0"), Deps{
		Logger:     log.WithComponent("test"),
		APIHandler: http.NotFoundHandler(),
	})
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	if err := mgr.Shutdown(context.Background()); !errors.Is(err, ErrManagerNotStarted) {
		t.Fatalf("Shutdown() error = %v, want ErrManagerNotStarted", err)
	}
}

func TestManager_StartServesAndStops(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	addr := reserveListenAddr(t)
	hm := health.NewManager("test")
	mux := http.NewServeMux()
	mux.HandleFunc("/readyz", hm.ServeReady)
	mux.HandleFunc("/hello", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "hi")
	})

	mgr, err := NewManager(testServerConfig(addr), Deps{
		Logger:     log.WithComponent("test"),
		APIHandler: mux,
		Health:     hm,
	})
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}

	var (
		mu    sync.Mutex
		order []string
	)
	record := func(name string) ShutdownHook {
		return func(context.Context) error {
			mu.Lock()
			defer mu.Unlock()
			order = append(order, name)
			return nil
		}
	}
	mgr.RegisterShutdownHook("first", record("first"))
	mgr.RegisterShutdownHook("second", record("second"))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- mgr.Start(ctx) }()

	if err := waitForListen(addr, 2*time.Second); err != nil {
		cancel()
		t.Fatalf("server did not start: %v", err)
	}
	if got := mgr.Addr(); got == nil || got.String() != addr {
		t.Errorf("Addr() = %v, want %s", got, addr)
	}

	if code, body := get(t, "http://"+addr+"/hello"); code != http.StatusOK || body != "hi" {
		t.Errorf("GET /hello = %d %q", code, body)
	}
	if code, _ := get(t, "http://"+addr+"/readyz"); code != http.StatusOK {
		t.Errorf("GET /readyz = %d, want 200 once listening", code)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Start() returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Start() did not return after cancel")
	}

	mu.Lock()
	defer mu.Unlock()
	if strings.Join(order, ",") != "second,first" {
		t.Errorf("hook order = %v, want LIFO", order)
	}
	if hm.Ready(context.Background()).Ready {
		t.Error("health still ready after shutdown")
	}
}

func TestManager_StartFailsOnBusyAddr(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	mgr, err := NewManager(testServerConfig(ln.Addr().String()), Deps{
		Logger:     log.WithComponent("test"),
		APIHandler: http.NotFoundHandler(),
	})
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}

	err = mgr.Start(context.Background())
	if err == nil || !strings.Contains(err.Error(), "failed to start API server") {
		t.Fatalf("Start() error = %v, want bind failure", err)
	}
}

func TestManager_HookErrorsAreJoined(t *testing.T) {
	addr := reserveListenAddr(t)
	mgr, err := NewManager(testServerConfig(addr), Deps{
		Logger:     log.WithComponent("test"),
		APIHandler: http.NotFoundHandler(),
	})
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	boom := errors.New("boom")
	ran := false
	mgr.RegisterShutdownHook("ok", func(context.Context) error { ran = true; return nil })
	mgr.RegisterShutdownHook("bad", func(context.Context) error { return boom })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- mgr.Start(ctx) }()
	if err := waitForListen(addr, 2*time.Second); err != nil {
		cancel()
		t.Fatalf("server did not start: %v", err)
	}
	cancel()

	err = <-done
	if !errors.Is(err, boom) {
		t.Fatalf("Start() error = %v, want hook error", err)
	}
	if !ran {
		t.Error("later hooks must still run after a failing one")
	}
	// Second shutdown is a no-op.
	if err := mgr.Shutdown(context.Background()); err != nil {
		t.Errorf("second Shutdown() = %v", err)
	}
}

func TestManager_MetricsListener(t *testing.T) {
	addr := reserveListenAddr(t)
	metricsAddr := reserveListenAddr(t)
	cfg := testServerConfig(addr)
	cfg.MetricsAddr = metricsAddr

	mgr, err := NewManager(cfg, Deps{
		Logger:         log.WithComponent("test"),
		APIHandler:     http.NotFoundHandler(),
		MetricsHandler: metricsMux(),
	})
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- mgr.Start(ctx) }()
	defer func() {
		cancel()
		<-done
	}()

	if err := waitForListen(addr, 2*time.Second); err != nil {
		t.Fatalf("api did not start: %v", err)
	}
	code, body := get(t, "http://"+metricsAddr+"/metrics")
	if code != http.StatusOK || !strings.Contains(body, "go_goroutines") {
		t.Errorf("GET /metrics = %d, body missing go_goroutines", code)
	}
}
