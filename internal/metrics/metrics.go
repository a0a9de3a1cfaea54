// Package metrics holds the Prometheus collectors for perlnav. Collectors
// register with the default registry at init; Handler exposes them.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// =============================================================================
// Parse cache
// =============================================================================

var (
	// CacheRequests counts parse cache lookups by result (hit, miss, error).
	CacheRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "perlnav_parse_cache_requests_total",
		Help: "Parse cache lookups by result",
	}, []string{"result"})

	// CacheEvictions counts entries dropped by the TTL sweep.
	CacheEvictions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "perlnav_parse_cache_evictions_total",
		Help: "Parse cache entries evicted after their TTL",
	})

	// CacheEntries tracks the number of live parse cache entries.
	CacheEntries = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "perlnav_parse_cache_entries",
		Help: "Live parse cache entries",
	})
)

// =============================================================================
// Workspace index
// =============================================================================

var (
	IndexFiles = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "perlnav_index_files",
		Help: "Files currently held in the workspace index",
	})

	IndexEntries = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "perlnav_index_entries",
		Help: "Index entries by kind",
	}, []string{"kind"})

	// IndexDuration tracks how long a batch of files takes to index.
	IndexDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "perlnav_index_batch_duration_seconds",
		Help:    "Duration of index_files batches in seconds",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
	})
)

// =============================================================================
// Diagnostics
// =============================================================================

var (
	// DiagnosticsDuration tracks each check's run time, labelled by check
	// (syntax, lint).
	DiagnosticsDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "perlnav_diagnostics_duration_seconds",
		Help:    "Diagnostics check duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
	}, []string{"check"})

	// DiagnosticsFailures counts external tool failures by check.
	DiagnosticsFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "perlnav_diagnostics_tool_failures_total",
		Help: "External tool failures by check",
	}, []string{"check"})

	// LintQueueWait tracks how long a lint request waits for the worker.
	LintQueueWait = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "perlnav_lint_queue_wait_seconds",
		Help:    "Time a lint request waits for the lint worker",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
	})
)

// =============================================================================
// Definitions and change processing
// =============================================================================

var (
	// Resolutions counts definition requests by the rule that answered
	// them, or "miss".
	Resolutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "perlnav_definition_resolutions_total",
		Help: "Definition requests by resolving rule",
	}, []string{"rule"})

	// ChangeEvents counts watched-file events by kind.
	ChangeEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "perlnav_change_events_total",
		Help: "Watched-file change events by kind",
	}, []string{"kind"})
)

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}
