// Package metrics tracks interpretation outcomes: an in-process windowed
// aggregator backing the health view, mirrored into Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsTotal counts interpretation requests by outcome.
	// Labels: outcome (success, failure, timeout)
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mispesos",
			Subsystem: "interpret",
			Name:      "requests_total",
			Help:      "Total number of interpretation requests by outcome",
		},
		[]string{"outcome"},
	)

	// RequestDuration tracks interpretation latency.
	RequestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "mispesos",
			Subsystem: "interpret",
			Name:      "request_duration_seconds",
			Help:      "Duration of interpretation requests in seconds",
			Buckets:   []float64{.1, .5, 1, 2.5, 5, 10, 30, 60, 90, 120},
		},
	)

	// CacheLookups counts cache hits and misses.
	// Labels: result (hit, miss)
	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mispesos",
			Subsystem: "interpret",
			Name:      "cache_lookups_total",
			Help:      "Total number of response cache lookups",
		},
		[]string{"result"},
	)

	// FallbacksTotal counts requests resolved by the pattern fallback.
	FallbacksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "mispesos",
			Subsystem: "interpret",
			Name:      "fallbacks_total",
			Help:      "Total number of requests that used the pattern fallback",
		},
	)

	// ActiveRequests gauges in-flight interpretation requests.
	ActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "mispesos",
			Subsystem: "interpret",
			Name:      "active_requests",
			Help:      "Number of interpretation requests currently in flight",
		},
	)

	// Confidence tracks the confidence of accepted results.
	Confidence = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "mispesos",
			Subsystem: "interpret",
			Name:      "confidence",
			Help:      "Confidence of accepted interpretation results",
			Buckets:   []float64{.1, .2, .3, .4, .5, .6, .7, .8, .9, 1},
		},
	)

	// TasksTotal counts extraction tasks by terminal state.
	// Labels: state (SUCCESS, FAILURE, REVOKED)
	TasksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mispesos",
			Subsystem: "taskqueue",
			Name:      "tasks_total",
			Help:      "Total number of extraction tasks by terminal state",
		},
		[]string{"state"},
	)
)

// observeRequest mirrors an aggregated outcome into Prometheus.
func observeRequest(out RequestOutcome) {
	switch {
	case out.Timeout:
		RequestsTotal.WithLabelValues("timeout").Inc()
	case out.Success:
		RequestsTotal.WithLabelValues("success").Inc()
	default:
		RequestsTotal.WithLabelValues("failure").Inc()
	}

	RequestDuration.Observe(out.Latency.Seconds())

	if out.FromCache {
		CacheLookups.WithLabelValues("hit").Inc()
	} else {
		CacheLookups.WithLabelValues("miss").Inc()
	}

	if out.UsedFallback {
		FallbacksTotal.Inc()
	}

	if out.Success && out.HasConfidence {
		Confidence.Observe(out.Confidence)
	}
}
