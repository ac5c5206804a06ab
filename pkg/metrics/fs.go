// Package metrics defines the observability interfaces for filesystem
// operations.
//
// The interfaces are optional everywhere they appear: passing nil disables
// collection with zero overhead. The Prometheus-backed implementation lives
// in the prometheus subpackage.
package metrics

import (
	"time"
)

// FSMetrics provides observability for filesystem operations.
//
// Implementations collect per-operation counts, latencies, payload volumes,
// and handle accounting. This interface is optional - pass nil to disable
// metrics collection with zero overhead.
type FSMetrics interface {
	// RecordOperation records a completed filesystem operation with its
	// name, duration, and outcome. errorCode is the symbolic error code
	// ("NotFound", "WrongType", ...), empty on success.
	RecordOperation(op string, duration time.Duration, errorCode string)

	// RecordIOBytes records payload bytes moved by a read or write.
	// direction is "read" or "write".
	RecordIOBytes(direction string, bytes int)

	// SetOpenHandles updates the current open handle count.
	SetOpenHandles(count int64)

	// RecordCacheStats updates the lookup cache hit/miss counters.
	RecordCacheStats(hits, misses uint64, size int)
}

// RecordOperation records an operation if metrics are enabled.
func RecordOperation(m FSMetrics, op string, start time.Time, errorCode string) {
	if m != nil {
		m.RecordOperation(op, time.Since(start), errorCode)
	}
}

// RecordIOBytes records transferred bytes if metrics are enabled.
func RecordIOBytes(m FSMetrics, direction string, bytes int) {
	if m != nil {
		m.RecordIOBytes(direction, bytes)
	}
}

// SetOpenHandles updates the handle gauge if metrics are enabled.
func SetOpenHandles(m FSMetrics, count int64) {
	if m != nil {
		m.SetOpenHandles(count)
	}
}

// RecordCacheStats updates the cache counters if metrics are enabled.
func RecordCacheStats(m FSMetrics, hits, misses uint64, size int) {
	if m != nil {
		m.RecordCacheStats(hits, misses, size)
	}
}
