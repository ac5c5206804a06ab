// Package prometheus provides the Prometheus-backed implementation of the
// metrics interfaces.
package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/marmos91/objfs/pkg/metrics"
)

// fsMetrics is the Prometheus implementation of metrics.FSMetrics.
type fsMetrics struct {
	operations  *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	ioBytes     *prometheus.CounterVec
	openHandles prometheus.Gauge
	cacheHits   prometheus.Gauge
	cacheMisses prometheus.Gauge
	cacheSize   prometheus.Gauge
}

// NewFSMetrics registers the filesystem metric families with reg and returns
// the recorder. Pass prometheus.DefaultRegisterer to use the default
// registry.
func NewFSMetrics(reg prometheus.Registerer) metrics.FSMetrics {
	return &fsMetrics{
		operations: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "objfs_operations_total",
				Help: "Total number of filesystem operations by name and error code",
			},
			[]string{"op", "error"},
		),
		duration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "objfs_operation_duration_milliseconds",
				Help: "Duration of filesystem operations in milliseconds",
				Buckets: []float64{
					0.1,  // 100us - cache hits
					0.5,  // 500us
					1,    // 1ms
					5,    // 5ms
					10,   // 10ms - one store round-trip
					50,   // 50ms
					100,  // 100ms
					500,  // 500ms - deep resolution over a remote store
					1000, // 1s
				},
			},
			[]string{"op"},
		),
		ioBytes: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "objfs_io_bytes_total",
				Help: "Total payload bytes moved by direction",
			},
			[]string{"direction"},
		),
		openHandles: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "objfs_open_handles",
				Help: "Current number of open object handles",
			},
		),
		cacheHits: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "objfs_lookup_cache_hits_total",
				Help: "Cumulative lookup cache hits",
			},
		),
		cacheMisses: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "objfs_lookup_cache_misses_total",
				Help: "Cumulative lookup cache misses",
			},
		),
		cacheSize: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "objfs_lookup_cache_entries",
				Help: "Current number of cached lookup entries",
			},
		),
	}
}

func (m *fsMetrics) RecordOperation(op string, duration time.Duration, errorCode string) {
	m.operations.WithLabelValues(op, errorCode).Inc()
	m.duration.WithLabelValues(op).Observe(float64(duration.Microseconds()) / 1000.0)
}

func (m *fsMetrics) RecordIOBytes(direction string, bytes int) {
	m.ioBytes.WithLabelValues(direction).Add(float64(bytes))
}

func (m *fsMetrics) SetOpenHandles(count int64) {
	m.openHandles.Set(float64(count))
}

func (m *fsMetrics) RecordCacheStats(hits, misses uint64, size int) {
	m.cacheHits.Set(float64(hits))
	m.cacheMisses.Set(float64(misses))
	m.cacheSize.Set(float64(size))
}
