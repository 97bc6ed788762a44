// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	busPublishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shotline_bus_published_total",
		Help: "Total number of state events published on the in-memory bus",
	}, []string{"topic"})

	busDroppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shotline_bus_dropped_total",
		Help: "Total number of in-memory bus message drops by topic and reason",
	}, []string{"topic", "reason"})

	eventStreamClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "shotline_event_stream_clients",
		Help: "Number of connected websocket event stream clients",
	})
)

// IncBusPublished records a published bus message.
func IncBusPublished(topic string) {
	if topic == "" {
		topic = "unknown"
	}
	busPublishedTotal.WithLabelValues(topic).Inc()
}

// IncBusDrop records a dropped bus message for the given topic.
func IncBusDrop(topic string) {
	IncBusDropReason(topic, "full")
}

// IncBusDropReason records a dropped bus message with a concrete reason.
func IncBusDropReason(topic, reason string) {
	if topic == "" {
		topic = "unknown"
	}
	if reason == "" {
		reason = "unknown"
	}
	busDroppedTotal.WithLabelValues(topic, reason).Inc()
}

// EventStreamConnected adjusts the connected client gauge by +1 and returns
// the matching decrement.
func EventStreamConnected() func() {
	eventStreamClients.Inc()
	return eventStreamClients.Dec
}
