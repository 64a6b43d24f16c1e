// Package metrics exposes Prometheus counters for the ladder service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Custom registry to avoid the default Go runtime collectors.
var registry = prometheus.NewRegistry()

var (
	operations = promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: "rll",
		Subsystem: "ladder",
		Name:      "operations_total",
		Help:      "Challenge lifecycle operations by operation and outcome.",
	}, []string{"op", "outcome"})

	consistencyErrors = promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: "rll",
		Subsystem: "ladder",
		Name:      "consistency_errors_total",
		Help:      "Broken-invariant detections; any increase warrants paging an admin.",
	}, []string{"op"})

	announcementsQueued = promauto.With(registry).NewCounter(prometheus.CounterOpts{
		Namespace: "rll",
		Subsystem: "announce",
		Name:      "queued_total",
		Help:      "Announcement payloads pushed onto the delivery queue.",
	})
)

// Operation records one lifecycle operation and its outcome.
func Operation(op string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	operations.WithLabelValues(op, outcome).Inc()
}

// ConsistencyError counts a broken-invariant detection.
func ConsistencyError(op string) { consistencyErrors.WithLabelValues(op).Inc() }

// AnnouncementQueued counts a queued announcement.
func AnnouncementQueued() { announcementsQueued.Inc() }

// Handler serves the registry in Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
