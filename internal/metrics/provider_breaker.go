// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	providerBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "shotline_provider_breaker_state",
		Help: "Breaker state guarding calls to a video provider; the current state reads 1",
	}, []string{"provider", "state"})

	providerBreakerTrips = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shotline_provider_breaker_trips_total",
		Help: "Times a provider breaker opened, by provider and trigger",
	}, []string{"provider", "trigger"})

	providerBreakerRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shotline_provider_breaker_rejected_total",
		Help: "Provider calls refused without contacting the provider because its breaker was open",
	}, []string{"provider"})
)

var breakerStates = [...]string{"closed", "half-open", "open"}

// SetProviderBreakerState marks state as the provider's current breaker state.
func SetProviderBreakerState(provider, state string) {
	for _, s := range breakerStates {
		v := 0.0
		if s == state {
			v = 1
		}
		providerBreakerState.WithLabelValues(provider, s).Set(v)
	}
}

// RecordProviderBreakerTrip counts a transition to open.
func RecordProviderBreakerTrip(provider, trigger string) {
	providerBreakerTrips.WithLabelValues(provider, trigger).Inc()
}

func RecordProviderBreakerRejection(provider string) {
	providerBreakerRejected.WithLabelValues(provider).Inc()
}
