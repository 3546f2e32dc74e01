// Package metrics provides Prometheus metrics for the storage engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// StorageMetrics contains Prometheus metrics for frame storage, the query
// result cache, and maintenance jobs.
type StorageMetrics struct {
	// Frame asset operations
	FrameWrites        prometheus.Counter
	FrameWriteErrors   prometheus.Counter
	FrameWriteDuration prometheus.Histogram
	FrameReads         prometheus.Counter

	// Query result cache
	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter

	// Maintenance
	MaintenanceRuns   *prometheus.CounterVec
	MaintenanceErrors *prometheus.CounterVec
	OrphansRemoved    prometheus.Counter
}

// NewStorageMetrics creates the metric set and registers it on the given
// registerer.
func NewStorageMetrics(reg prometheus.Registerer) (*StorageMetrics, error) {
	m := &StorageMetrics{
		FrameWrites: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "camf_frame_writes_total",
			Help: "Total number of frame assets written",
		}),
		FrameWriteErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "camf_frame_write_errors_total",
			Help: "Total number of failed frame asset writes",
		}),
		FrameWriteDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "camf_frame_write_duration_seconds",
			Help:    "Duration of frame asset writes",
			Buckets: prometheus.DefBuckets,
		}),
		FrameReads: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "camf_frame_reads_total",
			Help: "Total number of frame assets read",
		}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "camf_query_cache_hits_total",
			Help: "Query result cache hits",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "camf_query_cache_misses_total",
			Help: "Query result cache misses",
		}),
		MaintenanceRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "camf_maintenance_runs_total",
			Help: "Maintenance job executions by task",
		}, []string{"task"}),
		MaintenanceErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "camf_maintenance_errors_total",
			Help: "Maintenance job failures by task",
		}, []string{"task"}),
		OrphansRemoved: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "camf_orphan_rows_removed_total",
			Help: "Orphaned metadata rows removed by sweeps",
		}),
	}

	collectors := []prometheus.Collector{
		m.FrameWrites, m.FrameWriteErrors, m.FrameWriteDuration, m.FrameReads,
		m.CacheHits, m.CacheMisses,
		m.MaintenanceRuns, m.MaintenanceErrors, m.OrphansRemoved,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}
