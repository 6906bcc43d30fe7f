// Package metrics provides Prometheus instrumentation for monitor runs.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// MetricsNamespace is the namespace for all monitor metrics.
	MetricsNamespace = "masq"

	// MetricsSubsystem is the subsystem for monitor metrics.
	MetricsSubsystem = "monitor"
)

// Metrics holds all Prometheus metrics for the monitor.
type Metrics struct {
	// Run metrics
	RunsTotal          *prometheus.CounterVec
	RunDurationSeconds *prometheus.HistogramVec

	// Record metrics
	RecordsProcessedTotal *prometheus.CounterVec

	// IOC metrics
	IOCsExtractedTotal *prometheus.CounterVec

	// Screenshot metrics
	ScreenshotsDownloadedTotal prometheus.Counter
}

// New creates and registers all monitor metrics.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	factory := promauto.With(reg)

	return &Metrics{
		RunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: MetricsNamespace,
				Subsystem: MetricsSubsystem,
				Name:      "runs_total",
				Help:      "Total number of query runs",
			},
			[]string{"query", "status"},
		),
		RunDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: MetricsNamespace,
				Subsystem: MetricsSubsystem,
				Name:      "run_duration_seconds",
				Help:      "Duration of a query run in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.5, 2, 11), // 0.5s to ~8.5min
			},
			[]string{"query"},
		),
		RecordsProcessedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: MetricsNamespace,
				Subsystem: MetricsSubsystem,
				Name:      "records_processed_total",
				Help:      "Total scan records classified, by data type",
			},
			[]string{"data_type"},
		),
		IOCsExtractedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: MetricsNamespace,
				Subsystem: MetricsSubsystem,
				Name:      "iocs_extracted_total",
				Help:      "Total indicators extracted from run results, by type",
			},
			[]string{"type"},
		),
		ScreenshotsDownloadedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: MetricsNamespace,
				Subsystem: MetricsSubsystem,
				Name:      "screenshots_downloaded_total",
				Help:      "Total screenshots downloaded from urlscan",
			},
		),
	}
}

// RecordRun records a completed query run.
func (m *Metrics) RecordRun(query, status string, duration time.Duration) {
	m.RunsTotal.WithLabelValues(query, status).Inc()
	m.RunDurationSeconds.WithLabelValues(query).Observe(duration.Seconds())
}

// RecordRecords adds processed record counts for a data type.
func (m *Metrics) RecordRecords(dataType string, count int) {
	if dataType == "" {
		dataType = "urlscan"
	}
	m.RecordsProcessedTotal.WithLabelValues(dataType).Add(float64(count))
}

// RecordIOCs adds extracted indicator counts for an indicator type.
func (m *Metrics) RecordIOCs(iocType string, count int) {
	m.IOCsExtractedTotal.WithLabelValues(iocType).Add(float64(count))
}

// RecordScreenshot records a downloaded screenshot.
func (m *Metrics) RecordScreenshot() {
	m.ScreenshotsDownloadedTotal.Inc()
}
