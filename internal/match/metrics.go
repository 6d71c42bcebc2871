package match

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics with bounded cardinality (event types and drop reasons are closed
// sets; no per-player or per-session labels).
var (
	tickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "match_tick_duration_seconds",
		Help:    "Time spent in one server tick",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05},
	})

	playerGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "match_player_count",
		Help: "Current number of players in the match",
	})

	eventsConsumed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "match_events_consumed_total",
		Help: "Events validated and applied to the match state",
	}, []string{"type"})

	eventsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "match_events_rejected_total",
		Help: "Inbound messages dropped before reaching the state",
	}, []string{"reason"}) // Bounded: "malformed", "invalid"

	joinsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "match_joins_rejected_total",
		Help: "Connection attempts turned away",
	}, []string{"reason"}) // Bounded: "stage", "full", "ids", "spawns"
)
