// Multiplex - Dual-Server Plex Viewing Statistics
// Copyright 2026 Multiplex contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/multiplexstats/multiplex

// Package metrics provides Prometheus instrumentation for the sync
// engine: run outcomes, record counters, export polling, and circuit
// breaker state.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Sync run metrics

	SyncRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "multiplex_sync_runs_total",
			Help: "Total number of sync runs by domain and outcome",
		},
		[]string{"domain", "outcome"}, // outcome: success, failed, rejected
	)

	SyncRunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "multiplex_sync_run_duration_seconds",
			Help:    "Duration of completed sync runs in seconds",
			Buckets: []float64{1, 5, 15, 60, 300, 900, 1800, 3600},
		},
		[]string{"domain"},
	)

	SyncRecordsFetched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "multiplex_sync_records_fetched_total",
			Help: "Total records fetched from remote servers",
		},
		[]string{"domain", "server"},
	)

	SyncRecordsInserted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "multiplex_sync_records_inserted_total",
			Help: "Total records inserted into local storage",
		},
		[]string{"domain", "server"},
	)

	SyncRecordsSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "multiplex_sync_records_skipped_total",
			Help: "Total duplicate records skipped during sync",
		},
		[]string{"domain", "server"},
	)

	SyncRunning = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "multiplex_sync_running",
			Help: "Whether a sync run is active for a domain (0 or 1)",
		},
		[]string{"domain"},
	)

	// Export poller metrics

	ExportJobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "multiplex_export_jobs_total",
			Help: "Total export jobs by outcome",
		},
		[]string{"server", "outcome"}, // outcome: complete, timeout, failed
	)

	ExportPollCycles = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "multiplex_export_poll_cycles_total",
			Help: "Total export status poll requests issued",
		},
	)

	// Tautulli client metrics

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "multiplex_tautulli_request_duration_seconds",
			Help:    "Duration of Tautulli API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"server", "command"},
	)

	APIRequestErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "multiplex_tautulli_request_errors_total",
			Help: "Total Tautulli API request errors",
		},
		[]string{"server", "command"},
	)

	RateLimitRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "multiplex_tautulli_rate_limit_retries_total",
			Help: "Total retries triggered by HTTP 429 responses",
		},
		[]string{"server"},
	)

	// HTTP server metrics

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "multiplex_http_request_duration_seconds",
			Help:    "HTTP request latency by method, route, and status",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	// Circuit breaker metrics

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "multiplex_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"server"},
	)

	CircuitBreakerTrips = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "multiplex_circuit_breaker_trips_total",
			Help: "Total circuit breaker open transitions",
		},
		[]string{"server"},
	)
)

// ObserveSyncRun records one finished run's outcome and duration.
func ObserveSyncRun(domain, outcome string, started time.Time) {
	SyncRunsTotal.WithLabelValues(domain, outcome).Inc()
	if outcome != "rejected" {
		SyncRunDuration.WithLabelValues(domain).Observe(time.Since(started).Seconds())
	}
}
