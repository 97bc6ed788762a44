// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	storyboardParseTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shotline_storyboard_parse_total",
		Help: "Storyboard extraction attempts on assistant messages by outcome",
	}, []string{"outcome"}) // outcome=success|not_found|malformed_json|invalid_shape

	storyboardShots = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "shotline_storyboard_shots",
		Help: "Number of shots in the current storyboard",
	})

	storyboardDuration = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "shotline_storyboard_duration_seconds",
		Help: "Total planned duration of the current storyboard",
	})

	storyboardMutationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shotline_storyboard_mutations_total",
		Help: "Storyboard mutations by operation",
	}, []string{"op"})

	chatMessagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shotline_chat_messages_total",
		Help: "Chat transcript messages appended by role",
	}, []string{"role"})
)

// RecordParse counts one storyboard parse attempt.
func RecordParse(outcome string) {
	storyboardParseTotal.WithLabelValues(outcome).Inc()
}

// RecordStoryboard publishes the size of the committed storyboard.
func RecordStoryboard(shots int, totalSeconds float64) {
	storyboardShots.Set(float64(shots))
	storyboardDuration.Set(totalSeconds)
}

// IncStoryboardMutation counts a storyboard mutation.
func IncStoryboardMutation(op string) {
	storyboardMutationsTotal.WithLabelValues(op).Inc()
}

// IncChatMessage counts a transcript append.
func IncChatMessage(role string) {
	chatMessagesTotal.WithLabelValues(role).Inc()
}
