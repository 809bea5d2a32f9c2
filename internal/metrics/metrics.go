package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	WorkflowTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autosign_workflow_transitions_total",
			Help: "Total number of signing workflow operations by outcome.",
		},
		[]string{"operation", "result"},
	)

	NotificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autosign_notifications_total",
			Help: "Total number of notification emails by template and result.",
		},
		[]string{"template", "result"},
	)

	ExportsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autosign_exports_total",
			Help: "Total number of external storage exports by provider and result.",
		},
		[]string{"provider", "result"},
	)
)

// MustRegister registers every collector on the default registry. Call it once per process.
func MustRegister() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDurationSeconds,
		WorkflowTransitionsTotal,
		NotificationsTotal,
		ExportsTotal,
	)
}
