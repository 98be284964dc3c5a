// Package metrics exposes the service's Prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "heartlog",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "heartlog",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
		},
		[]string{"method", "route"},
	)

	// path is "llm" or "keyword"; reason explains a keyword result.
	EmotionClassificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "heartlog",
			Subsystem: "emotion",
			Name:      "classifications_total",
			Help:      "Emotion classifications by path taken",
		},
		[]string{"path", "reason"},
	)

	EmotionQueueDroppedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "heartlog",
			Subsystem: "emotion",
			Name:      "queue_dropped_total",
			Help:      "Messages not enqueued for classification because the queue was full",
		},
	)

	JourneyDegradedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "heartlog",
			Subsystem: "journey",
			Name:      "degraded_total",
			Help:      "Journey requests answered with zeroed statistics after a read failure",
		},
	)
)

// Handler returns the Prometheus metrics handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordRequest records an HTTP request
func RecordRequest(method, route, status string, durationSec float64) {
	RequestsTotal.WithLabelValues(method, route, status).Inc()
	RequestDuration.WithLabelValues(method, route).Observe(durationSec)
}

// RecordClassification records which path produced an emotion result.
func RecordClassification(path, reason string) {
	EmotionClassificationsTotal.WithLabelValues(path, reason).Inc()
}

func RecordQueueDrop() {
	EmotionQueueDroppedTotal.Inc()
}

func RecordJourneyDegraded() {
	JourneyDegradedTotal.Inc()
}
