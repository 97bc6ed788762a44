// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package daemon

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ManuGH/shotline/internal/log"
)

type stubManager struct {
	startErr  error
	shutdowns atomic.Int32
}

func (s *stubManager) Start(ctx context.Context) error {
	if s.startErr != nil {
		return s.startErr
	}
	<-ctx.Done()
	return nil
}

func (s *stubManager) Shutdown(context.Context) error {
	s.shutdowns.Add(1)
	return nil
}

func (s *stubManager) RegisterShutdownHook(string, ShutdownHook) {}

func (s *stubManager) Addr() net.Addr { return nil }

func TestApp_RunRequiresManager(t *testing.T) {
	app := NewApp(log.WithComponent("test"), nil, nil)
	if err := app.Run(context.Background()); !errors.Is(err, ErrMissingManager) {
		t.Fatalf("Run() error = %v, want ErrMissingManager", err)
	}
}

func TestApp_RunStopsOnCancel(t *testing.T) {
	mgr := &stubManager{}
	app := NewApp(log.WithComponent("test"), mgr, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := app.Run(ctx); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if mgr.shutdowns.Load() != 0 {
		t.Error("clean stop must not force a second shutdown")
	}
}

func TestApp_RunShutsDownOnStartFailure(t *testing.T) {
	boom := errors.New("bind failed")
	mgr := &stubManager{startErr: boom}
	app := NewApp(log.WithComponent("test"), mgr, nil)

	if err := app.Run(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("Run() error = %v, want %v", err, boom)
	}
	if mgr.shutdowns.Load() != 1 {
		t.Errorf("shutdowns = %d, want 1", mgr.shutdowns.Load())
	}
}
