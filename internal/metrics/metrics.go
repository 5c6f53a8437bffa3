package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RFQRequestsTotal tracks outbound calls to the RFQ API.
	RFQRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rfq_api_requests_total",
			Help: "Total number of RFQ API requests made (by endpoint, method, and status).",
		},
		[]string{"endpoint", "method", "status"}, // status = HTTP code or "transport_error"
	)

	// RFQRequestDuration measures RFQ API call latency.
	RFQRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rfq_api_request_duration_seconds",
			Help:    "Duration of RFQ API requests in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 15), // 1ms → ~16s
		},
		[]string{"endpoint", "method"},
	)

	// QuoteCacheTotal counts GetValidQuote outcomes.
	QuoteCacheTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rfq_quote_cache_total",
			Help: "Quote tracker lookups by result.",
		},
		[]string{"result"}, // hit | miss | expired | consumed
	)

	// ExecutionAttemptsTotal counts each ExecuteQuote attempt made by the retry controller.
	ExecutionAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rfq_execution_attempts_total",
			Help: "Quote execution attempts by result.",
		},
		[]string{"result"}, // ok | retryable | fatal | exhausted | cancelled
	)

	// BackoffSeconds records the delays slept between execution attempts.
	BackoffSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "rfq_execution_backoff_seconds",
			Help:    "Backoff delay before each execution retry.",
			Buckets: prometheus.LinearBuckets(0.5, 0.5, 12),
		},
	)

	// WorkflowRunsTotal counts completed workflow runs per profile and outcome.
	WorkflowRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rfq_workflow_runs_total",
			Help: "Quote-to-order workflow runs by profile and outcome.",
		},
		[]string{"profile", "outcome"},
	)

	// WorkflowRunDuration measures end-to-end run time.
	WorkflowRunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rfq_workflow_run_duration_seconds",
			Help:    "Duration of quote-to-order workflow runs.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		},
		[]string{"profile"},
	)

	// LastRunTimestamp gauges the last finished run (unix seconds).
	LastRunTimestamp = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "rfq_workflow_last_run_timestamp",
			Help: "Timestamp (unix seconds) of the last finished run.",
		},
		[]string{"profile", "outcome"},
	)

	// EventPublishTotal tracks event sink publishes by sink and result.
	EventPublishTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rfq_event_publish_total",
			Help: "Workflow events published by sink and result.",
		},
		[]string{"sink", "result"}, // result = "ok" | "error"
	)

	// EventPublishDuration measures per-sink publish latency.
	EventPublishDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rfq_event_publish_duration_seconds",
			Help:    "Latency of workflow event publishes by sink.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
		},
		[]string{"sink"},
	)

	// ErrorsTotal tracks errors by component.
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rfq_checker_errors_total",
			Help: "Count of checker-level errors by component.",
		},
		[]string{"component", "reason"},
	)
)

// ObserveDuration records elapsed time since start into a HistogramVec or SummaryVec.
func ObserveDuration(v any, start time.Time, labels ...string) {
	duration := time.Since(start).Seconds()
	switch metric := v.(type) {
	case *prometheus.HistogramVec:
		metric.WithLabelValues(labels...).Observe(duration)
	case *prometheus.SummaryVec:
		metric.WithLabelValues(labels...).Observe(duration)
	}
}

func IncRFQRequest(endpoint, method, status string) {
	RFQRequestsTotal.WithLabelValues(endpoint, method, status).Inc()
}

func IncQuoteCache(result string) {
	QuoteCacheTotal.WithLabelValues(result).Inc()
}

func IncExecutionAttempt(result string) {
	ExecutionAttemptsTotal.WithLabelValues(result).Inc()
}

func ObserveBackoff(d time.Duration) {
	BackoffSeconds.Observe(d.Seconds())
}

func IncEventPublish(sink, result string) {
	EventPublishTotal.WithLabelValues(sink, result).Inc()
}

func IncError(component, reason string) {
	ErrorsTotal.WithLabelValues(component, reason).Inc()
}

// RecordRun updates the run counters, duration histogram and last-run gauge.
func RecordRun(profile, outcome string, started, finished time.Time) {
	WorkflowRunsTotal.WithLabelValues(profile, outcome).Inc()
	WorkflowRunDuration.WithLabelValues(profile).Observe(finished.Sub(started).Seconds())
	LastRunTimestamp.WithLabelValues(profile, outcome).Set(float64(finished.Unix()))
}
