// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	generationStartsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shotline_generation_starts_total",
		Help: "Video generation start requests by outcome",
	}, []string{"outcome"}) // outcome=accepted|failed

	generationPollsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shotline_generation_polls_total",
		Help: "Generation status polls by outcome",
	}, []string{"outcome"}) // outcome=ok|retry|exhausted|stale

	generationTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shotline_generation_transitions_total",
		Help: "Shot generation status transitions by target status",
	}, []string{"status"})

	generationActivePollers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "shotline_generation_active_pollers",
		Help: "Number of running per-shot poll loops",
	})
)

// IncGenerationStart counts a start attempt.
func IncGenerationStart(outcome string) {
	generationStartsTotal.WithLabelValues(outcome).Inc()
}

// IncGenerationPoll counts one poll tick.
func IncGenerationPoll(outcome string) {
	generationPollsTotal.WithLabelValues(outcome).Inc()
}

// IncGenerationTransition counts a status change applied to a shot.
func IncGenerationTransition(status string) {
	if status == "" {
		status = "NONE"
	}
	generationTransitionsTotal.WithLabelValues(status).Inc()
}

// PollerStarted increments the active poller gauge and returns the matching decrement.
func PollerStarted() func() {
	generationActivePollers.Inc()
	return generationActivePollers.Dec
}
