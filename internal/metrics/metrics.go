// LogSentinel - Streaming Security Log Monitor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/logsentinel

// Package metrics holds the Prometheus collectors for the monitoring pipeline.
//
// Collectors register with the default registry through promauto and are
// exposed by the status server at /metrics:
//
//	curl http://127.0.0.1:9464/metrics
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Ingestion
	LinesProcessed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "logsentinel_lines_processed_total",
			Help: "Total number of log lines processed",
		},
	)

	SourceRotations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "logsentinel_source_rotations_total",
			Help: "Total number of log rotations or truncations detected in tail mode",
		},
	)

	// Detection
	EventsDetected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "logsentinel_events_detected_total",
			Help: "Total number of detected events by cause",
		},
		[]string{"cause"}, // "pattern", "anomaly", "privilege_escalation"
	)

	ActionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "logsentinel_actions_total",
			Help: "Total number of response attempts by throttle outcome",
		},
		[]string{"outcome"}, // "dispatched", "suppressed"
	)

	// Anomaly model
	ModelRetrains = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "logsentinel_model_retrains_total",
			Help: "Total number of anomaly model fits",
		},
	)

	ModelScoreErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "logsentinel_model_score_errors_total",
			Help: "Total number of failed scoring attempts",
		},
	)

	TrainingWindowSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "logsentinel_model_training_window",
			Help: "Current number of feature vectors in the training window",
		},
	)

	// Sinks
	SinkDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "logsentinel_sink_deliveries_total",
			Help: "Total number of sink deliveries by sink and outcome",
		},
		[]string{"sink", "outcome"}, // outcome: "success", "failure"
	)

	SinkDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "logsentinel_sink_duration_seconds",
			Help:    "Duration of sink deliveries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"sink"},
	)

	ReputationLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "logsentinel_reputation_lookups_total",
			Help: "Total number of reputation lookups by result",
		},
		[]string{"result"}, // "malicious", "clean", "cached", "error"
	)

	AnalysisRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "logsentinel_analysis_requests_total",
			Help: "Total number of LLM analysis requests by outcome",
		},
		[]string{"outcome"}, // "success", "failure", "dropped"
	)

	// Circuit breakers
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "logsentinel_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "logsentinel_circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // result: "success", "failure", "rejected"
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "logsentinel_circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// Action history
	HistoryWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "logsentinel_history_writes_total",
			Help: "Total number of action history writes by outcome",
		},
		[]string{"outcome"},
	)

	// Status API
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "logsentinel_api_requests_total",
			Help: "Total number of status API requests",
		},
		[]string{"method", "route", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "logsentinel_api_request_duration_seconds",
			Help:    "Status API request latency",
			Buckets: []float64{.001, .005, .01, .05, .1, .5, 1},
		},
		[]string{"method", "route"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "logsentinel_api_active_requests",
			Help: "Number of status API requests in flight",
		},
	)
)

// RecordEvent counts one detected event.
func RecordEvent(cause string) {
	EventsDetected.WithLabelValues(cause).Inc()
}

// RecordThrottle counts one throttle decision.
func RecordThrottle(dispatched bool) {
	if dispatched {
		ActionsTotal.WithLabelValues("dispatched").Inc()
		return
	}
	ActionsTotal.WithLabelValues("suppressed").Inc()
}

// RecordSinkDelivery records the outcome and latency of one sink call.
func RecordSinkDelivery(sink string, duration time.Duration, err error) {
	SinkDuration.WithLabelValues(sink).Observe(duration.Seconds())
	if err != nil {
		SinkDeliveries.WithLabelValues(sink, "failure").Inc()
		return
	}
	SinkDeliveries.WithLabelValues(sink, "success").Inc()
}

// RecordRetrain records a model fit and the window it was fitted on.
func RecordRetrain(windowSize int) {
	ModelRetrains.Inc()
	TrainingWindowSize.Set(float64(windowSize))
}

// RecordAPIRequest records one status API request. route is the matched
// pattern, not the raw path, to keep cardinality bounded.
func RecordAPIRequest(method, route, status string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, route, status).Inc()
	APIRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// TrackActiveRequest adjusts the in-flight gauge.
func TrackActiveRequest(start bool) {
	if start {
		APIActiveRequests.Inc()
		return
	}
	APIActiveRequests.Dec()
}
