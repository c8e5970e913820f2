package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Event recording metrics
	EventsRecorded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "secmon_events_recorded_total",
			Help: "Total number of security events recorded",
		},
		[]string{"kind", "severity"},
	)

	UnknownEventKinds = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "secmon_unknown_event_kinds_total",
			Help: "Total number of recording attempts with an unknown event kind",
		},
	)

	// Store metrics
	StoreAppendErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "secmon_store_append_errors_total",
			Help: "Total number of failed durable log appends",
		},
	)

	LogFilesArchived = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "secmon_log_files_archived_total",
			Help: "Total number of log files moved to the archive",
		},
	)

	// Rate limiting metrics
	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "secmon_rate_limit_hits_total",
			Help: "Total number of rate limit rejections",
		},
		[]string{"key"},
	)

	// Request pipeline metrics
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "secmon_request_duration_seconds",
			Help:    "Duration of intercepted requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "status"},
	)

	PermissionDenials = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "secmon_permission_denials_total",
			Help: "Total number of requests rejected by the permission check",
		},
	)
)
