// Package metrics provides Prometheus metrics collection for revlens.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector holds all Prometheus metrics for revlens.
type Collector struct {
	// Request metrics
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge

	// Report metrics
	ReportsBuilt        *prometheus.CounterVec
	ReportBuildDuration prometheus.Histogram
	DataQualityWarnings prometheus.Counter
	UnattributedEvents  prometheus.Counter

	// Ingestion metrics
	EventsIngested prometheus.Counter
	EventsRejected *prometheus.CounterVec
	EventsCoerced  prometheus.Counter
	EventsDropped  prometheus.Counter
	BufferedEvents prometheus.Gauge

	// Cache metrics
	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter

	// Config metrics
	ConfigReloads      prometheus.Counter
	ConfigReloadErrors prometheus.Counter
}

// New creates a new metrics collector registered with the default registry.
func New() *Collector {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates a new metrics collector with a custom registry.
// Useful for testing to avoid global state.
func NewWithRegistry(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "revlens",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests processed",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "revlens",
				Name:      "request_duration_seconds",
				Help:      "Request duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path", "status"},
		),
		RequestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "revlens",
				Name:      "requests_in_flight",
				Help:      "Number of requests currently being processed",
			},
		),

		ReportsBuilt: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "revlens",
				Name:      "reports_built_total",
				Help:      "Total number of reports built, by output format",
			},
			[]string{"format"},
		),
		ReportBuildDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "revlens",
				Name:      "report_build_duration_seconds",
				Help:      "Time spent fetching and aggregating a report",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
		),
		DataQualityWarnings: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "revlens",
				Name:      "data_quality_warnings_total",
				Help:      "Total data-quality warnings surfaced on built reports",
			},
		),
		UnattributedEvents: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "revlens",
				Name:      "unattributed_events_total",
				Help:      "Usage events dropped from per-tier costs because their user is unknown",
			},
		),

		EventsIngested: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "revlens",
				Name:      "events_ingested_total",
				Help:      "Total usage and cost events accepted by the metering API",
			},
		),
		EventsRejected: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "revlens",
				Name:      "events_rejected_total",
				Help:      "Total metering events rejected, by reason",
			},
			[]string{"reason"},
		),
		EventsCoerced: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "revlens",
				Name:      "events_coerced_total",
				Help:      "Total events whose cost was recovered from a malformed value",
			},
		),
		EventsDropped: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "revlens",
				Name:      "events_dropped_total",
				Help:      "Accepted events shed from a full ingest buffer during a store outage",
			},
		),
		BufferedEvents: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "revlens",
				Name:      "buffered_events",
				Help:      "Events currently waiting in the ingest buffer",
			},
		),

		CacheHits: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "revlens",
				Name:      "report_cache_hits_total",
				Help:      "Rendered reports served from the cache",
			},
		),
		CacheMisses: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "revlens",
				Name:      "report_cache_misses_total",
				Help:      "Report renders that missed the cache",
			},
		),

		ConfigReloads: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "revlens",
				Name:      "config_reloads_total",
				Help:      "Total number of successful config reloads",
			},
		),
		ConfigReloadErrors: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "revlens",
				Name:      "config_reload_errors_total",
				Help:      "Total number of config reload errors",
			},
		),
	}
}

// NormalizePath reduces label cardinality for request metrics by collapsing
// overly long paths.
func NormalizePath(path string) string {
	if len(path) > 50 {
		return path[:50] + "..."
	}
	return path
}
