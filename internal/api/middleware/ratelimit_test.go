// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/ManuGH/shotline/internal/api/problem"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
}

func TestRateLimit_EnforcesLimit(t *testing.T) {
	limitedHandler := RateLimit(RateLimitConfig{
		Scope:        "test-enforce",
		RequestLimit: 3,
		WindowSize:   time.Second,
	})(okHandler())

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.RemoteAddr = "192.168.1.1:12345"
		w := httptest.NewRecorder()
		limitedHandler.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Errorf("Request %d: expected status 200, got %d", i+1, w.Code)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.RemoteAddr = "192.168.1.1:12345"
	w := httptest.NewRecorder()
	limitedHandler.ServeHTTP(w, req)

	if w.Code != http.StatusTooManyRequests {
		t.Errorf("4th request: expected status 429, got %d", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("Expected Retry-After header in rate limit response")
	}
	if ct := w.Header().Get("Content-Type"); ct != problem.ContentType {
		t.Errorf("Expected Content-Type %s, got %s", problem.ContentType, ct)
	}
}

func TestRateLimit_DifferentIPsIndependent(t *testing.T) {
	limitedHandler := RateLimit(RateLimitConfig{
		Scope:        "test-ips",
		RequestLimit: 2,
		WindowSize:   time.Second,
	})(okHandler())

	serve := func(addr string) int {
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.RemoteAddr = addr
		w := httptest.NewRecorder()
		limitedHandler.ServeHTTP(w, req)
		return w.Code
	}

	for i := 0; i < 2; i++ {
		if code := serve("192.168.1.1:12345"); code != http.StatusOK {
			t.Errorf("IP1 request %d: expected 200, got %d", i+1, code)
		}
	}
	if code := serve("192.168.1.2:12345"); code != http.StatusOK {
		t.Errorf("IP2 request: expected 200, got %d", code)
	}
	if code := serve("192.168.1.1:12345"); code != http.StatusTooManyRequests {
		t.Errorf("IP1 3rd request: expected 429, got %d", code)
	}
}

func TestChatRateLimit_CountsRejections(t *testing.T) {
	before := rejectedCount(t, "chat")
	limitedHandler := ChatRateLimit(2)(okHandler())

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/chat", nil)
		req.RemoteAddr = "10.1.1.1:1000"
		limitedHandler.ServeHTTP(httptest.NewRecorder(), req)
	}

	if got := rejectedCount(t, "chat") - before; got != 1 {
		t.Errorf("expected 1 rejection recorded, got %v", got)
	}
}

// rejectedCount reads shotline_rate_limit_rejected_total{scope} from the
// default registry.
func rejectedCount(t *testing.T, scope string) float64 {
	t.Helper()
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != "shotline_rate_limit_rejected_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			if labelValue(m, "scope") == scope {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func labelValue(m *dto.Metric, name string) string {
	for _, lp := range m.GetLabel() {
		if lp.GetName() == name {
			return lp.GetValue()
		}
	}
	return ""
}
