// Package metrics exposes the Prometheus collectors of the light client.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	paymentsCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "light_client",
			Subsystem: "payments",
			Name:      "created_total",
			Help:      "Payments successfully created.",
		},
	)

	paymentFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "light_client",
			Subsystem: "payments",
			Name:      "creation_failures_total",
			Help:      "Payment creation failures by reason.",
		},
		[]string{"reason"},
	)

	messagesSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "light_client",
			Subsystem: "payments",
			Name:      "messages_sent_total",
			Help:      "Protocol messages produced, by type and transport outcome.",
		},
		[]string{"type", "outcome"},
	)

	watchtowerSubmissions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "light_client",
			Subsystem: "watchtower",
			Name:      "submissions_total",
			Help:      "Non-closing balance proof submissions by outcome.",
		},
		[]string{"outcome"},
	)

	snapshotsSaved = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "light_client",
			Subsystem: "storage",
			Name:      "snapshots_saved_total",
			Help:      "Full-state snapshots written to durable storage.",
		},
	)
)

func init() {
	Registry.MustRegister(
		paymentsCreated,
		paymentFailures,
		messagesSent,
		watchtowerSubmissions,
		snapshotsSaved,
	)
}

// PaymentCreated counts one successful payment creation.
func PaymentCreated() { paymentsCreated.Inc() }

// PaymentFailed counts one failed creation with its reason label.
func PaymentFailed(reason string) { paymentFailures.WithLabelValues(reason).Inc() }

// MessageSent counts a produced protocol message and its transport outcome.
func MessageSent(msgType, outcome string) { messagesSent.WithLabelValues(msgType, outcome).Inc() }

// WatchtowerSubmission counts a delegation submission outcome.
func WatchtowerSubmission(outcome string) { watchtowerSubmissions.WithLabelValues(outcome).Inc() }

// SnapshotSaved counts one persisted snapshot.
func SnapshotSaved() { snapshotsSaved.Inc() }

// Handler serves the registry over HTTP.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
