// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
)

func TestHealthcheck(t *testing.T) {
	var ready atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/healthz":
			w.WriteHeader(http.StatusOK)
		case "/readyz":
			if ready.Load() {
				w.WriteHeader(http.StatusOK)
				return
			}
			w.WriteHeader(http.StatusServiceUnavailable)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()
	addr := strings.TrimPrefix(srv.URL, "http://")

	var stdout, stderr bytes.Buffer
	if code := healthcheck([]string{"-addr", addr, "-mode", "live"}, &stdout, &stderr); code != 0 {
		t.Fatalf("live check = %d, stderr %q", code, stderr.String())
	}
	if code := healthcheck([]string{"-addr", addr}, &stdout, &stderr); code != 1 {
		t.Errorf("ready check while not ready = %d, want 1", code)
	}
	if !strings.Contains(stderr.String(), "503") {
		t.Errorf("stderr = %q, want status", stderr.String())
	}

	ready.Store(true)
	stdout.Reset()
	if code := healthcheck([]string{"-addr", addr}, &stdout, &stderr); code != 0 {
		t.Errorf("ready check = %d, want 0", code)
	}
	if !strings.Contains(stdout.String(), "successful (ready)") {
		t.Errorf("stdout = %q", stdout.String())
	}
}

func TestHealthcheck_Unreachable(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if code := healthcheck([]string{"-addr", "127.0.0.1:1", "-timeout", "200ms"}, &stdout, &stderr); code != 1 {
		t.Errorf("code = %d, want 1", code)
	}
}
