// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	providerRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shotline_provider_requests_total",
		Help: "Outbound provider requests by provider, operation and outcome",
	}, []string{"provider", "operation", "outcome"})

	providerRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "shotline_provider_request_duration_seconds",
		Help:    "Outbound provider request latency",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"provider", "operation"})

	rateLimitRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shotline_rate_limit_rejected_total",
		Help: "Requests rejected by a rate limiter by scope",
	}, []string{"scope"})

	configReloadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shotline_config_reloads_total",
		Help: "Configuration reload attempts by outcome",
	}, []string{"outcome"})
)

// ObserveProviderRequest records one outbound request.
func ObserveProviderRequest(provider, operation, outcome string, d time.Duration) {
	providerRequestsTotal.WithLabelValues(provider, operation, outcome).Inc()
	providerRequestDuration.WithLabelValues(provider, operation).Observe(d.Seconds())
}

// IncRateLimitRejected counts a rejection by a limiter.
func IncRateLimitRejected(scope string) {
	rateLimitRejectedTotal.WithLabelValues(scope).Inc()
}

// IncConfigReload counts a config reload attempt.
func IncConfigReload(outcome string) {
	configReloadsTotal.WithLabelValues(outcome).Inc()
}
