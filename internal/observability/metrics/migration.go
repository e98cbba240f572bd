package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// MigrationMetrics contains the Prometheus metrics of a migration run.
// A nil *MigrationMetrics is valid and records nothing.
type MigrationMetrics struct {
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	errorsTotal       *prometheus.CounterVec

	documentsTotal     *prometheus.CounterVec
	sinkWritesTotal    *prometheus.CounterVec
	sinkWriteDuration  *prometheus.HistogramVec
	ledgerEntriesGauge prometheus.Gauge
	lookupsTotal       *prometheus.CounterVec
	cacheSizeGauge     *prometheus.GaugeVec
	lastRunTimestamp   prometheus.Gauge

	collectors []prometheus.Collector
}

// NewMigrationMetrics creates and registers the migration metrics.
func NewMigrationMetrics(registry prometheus.Registerer) (*MigrationMetrics, error) {
	m := &MigrationMetrics{}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *MigrationMetrics) initMetrics() {
	m.operationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "migration_operations_total",
			Help: "Total number of pipeline operations",
		},
		[]string{"operation", "status"},
	)

	m.operationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "migration_operation_duration_seconds",
			Help:    "Time taken by pipeline operations",
			Buckets: prometheus.ExponentialBuckets(BucketStart1ms, BucketFactor2, BucketCount15), // 1ms to ~16s
		},
		[]string{"operation"},
	)

	m.errorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "migration_errors_total",
			Help: "Total number of pipeline errors by category",
		},
		[]string{"operation", "error_type"},
	)

	m.documentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "migration_documents_total",
			Help: "Documents processed by outcome",
		},
		[]string{"kind", "outcome"}, // kind: challenge, challenge_type
	)

	m.sinkWritesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "migration_sink_writes_total",
			Help: "Writes to the document store and the search index",
		},
		[]string{"sink", "status"},
	)

	m.sinkWriteDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "migration_sink_write_duration_seconds",
			Help:    "Time taken by a single sink write",
			Buckets: prometheus.ExponentialBuckets(BucketStart1ms, BucketFactor2, BucketCount12),
		},
		[]string{"sink"},
	)

	m.ledgerEntriesGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "migration_ledger_entries",
		Help: "Failed writes currently recorded in the error ledger",
	})

	m.lookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "migration_reference_lookups_total",
			Help: "Reference data lookups by result",
		},
		[]string{"lookup", "result"}, // result: found, none, error
	)

	m.cacheSizeGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "migration_reference_cache_entries",
			Help: "Entries held by the reference caches",
		},
		[]string{"cache"},
	)

	m.lastRunTimestamp = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "migration_last_run_timestamp_seconds",
		Help: "Unix time the last run finished",
	})

	m.collectors = []prometheus.Collector{
		m.operationsTotal,
		m.operationDuration,
		m.errorsTotal,
		m.documentsTotal,
		m.sinkWritesTotal,
		m.sinkWriteDuration,
		m.ledgerEntriesGauge,
		m.lookupsTotal,
		m.cacheSizeGauge,
		m.lastRunTimestamp,
	}
}

// Describe implements the Collector interface
func (m *MigrationMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, collector := range m.collectors {
		collector.Describe(ch)
	}
}

// Collect implements the Collector interface
func (m *MigrationMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, collector := range m.collectors {
		collector.Collect(ch)
	}
}

// RecordOperation implements Recorder.
func (m *MigrationMetrics) RecordOperation(operation, status string) {
	if m == nil {
		return
	}
	m.operationsTotal.WithLabelValues(operation, status).Inc()
}

// RecordDuration implements Recorder.
func (m *MigrationMetrics) RecordDuration(operation string, seconds float64) {
	if m == nil {
		return
	}
	m.operationDuration.WithLabelValues(operation).Observe(seconds)
}

// RecordError implements Recorder.
func (m *MigrationMetrics) RecordError(operation, errorType string) {
	if m == nil {
		return
	}
	m.errorsTotal.WithLabelValues(operation, errorType).Inc()
}

// RecordDocument counts one processed document.
func (m *MigrationMetrics) RecordDocument(kind, outcome string) {
	if m == nil {
		return
	}
	m.documentsTotal.WithLabelValues(kind, outcome).Inc()
}

// RecordSinkWrite counts one sink write and its duration.
func (m *MigrationMetrics) RecordSinkWrite(sink, status string, seconds float64) {
	if m == nil {
		return
	}
	m.sinkWritesTotal.WithLabelValues(sink, status).Inc()
	m.sinkWriteDuration.WithLabelValues(sink).Observe(seconds)
}

// SetLedgerEntries sets the ledger size gauge.
func (m *MigrationMetrics) SetLedgerEntries(n int64) {
	if m == nil {
		return
	}
	m.ledgerEntriesGauge.Set(float64(n))
}

// RecordLookup counts one reference lookup.
func (m *MigrationMetrics) RecordLookup(lookup, result string) {
	if m == nil {
		return
	}
	m.lookupsTotal.WithLabelValues(lookup, result).Inc()
}

// SetCacheSize sets the size gauge of one reference cache.
func (m *MigrationMetrics) SetCacheSize(cache string, n int) {
	if m == nil {
		return
	}
	m.cacheSizeGauge.WithLabelValues(cache).Set(float64(n))
}

// MarkRunFinished stamps the end of a run.
func (m *MigrationMetrics) MarkRunFinished(unixSeconds float64) {
	if m == nil {
		return
	}
	m.lastRunTimestamp.Set(unixSeconds)
}
