package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Transport metrics with bounded cardinality (no per-session labels).
var (
	sessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "transport_sessions_active",
		Help: "Currently connected game sessions",
	})

	messagesSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "transport_messages_sent_total",
		Help: "Messages written to session sockets",
	})

	messagesReceived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "transport_messages_received_total",
		Help: "Messages read from session sockets",
	})

	messagesDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "transport_messages_dropped_total",
		Help: "Outbound messages dropped because a session queue was full",
	})

	connectionRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "transport_connections_rejected_total",
		Help: "Connections rejected before a session was created",
	}, []string{"reason"}) // Bounded: "rate_limit", "total_limit", "ip_limit"
)

// UpdateSessionCount sets the active session gauge.
func UpdateSessionCount(count int) {
	sessionsActive.Set(float64(count))
}

// IncrementMessagesSent counts one delivered outbound message.
func IncrementMessagesSent() {
	messagesSent.Inc()
}

// IncrementMessagesReceived counts one inbound message.
func IncrementMessagesReceived() {
	messagesReceived.Inc()
}

// IncrementMessagesDropped counts one message lost to backpressure.
func IncrementMessagesDropped() {
	messagesDropped.Inc()
}

// RecordConnectionRejected counts a turned-away connection attempt.
func RecordConnectionRejected(reason string) {
	connectionRejected.WithLabelValues(reason).Inc()
}
