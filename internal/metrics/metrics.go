// Package metrics defines the minimal instrumentation seam the pipeline
// records against. The core packages depend only on Backend; concrete
// backends (Datadog, nop) live in subpackages or here.
package metrics

import "sync"

// Labels are free-form metric tags, e.g. {"stage": "profile", "status": "ok"}.
type Labels map[string]string

// Backend receives pipeline metrics. Implementations must be safe for
// concurrent use.
type Backend interface {
	// IncCounter adds delta to a named counter. Non-positive deltas are ignored.
	IncCounter(name string, delta float64, labels Labels)

	// ObserveHistogram records one sample of a named distribution.
	ObserveHistogram(name string, value float64, labels Labels)

	// Flush pushes buffered metrics to the backing system.
	Flush() error

	// Close flushes once more and releases backend resources.
	Close() error
}

// Metric names shared between emitters and backends. Backends key their
// buffering on these, so they are constants rather than ad-hoc strings.
const (
	MetricStageTotal           = "pipeline_stage_total"
	MetricStageDurationSeconds = "pipeline_stage_duration_seconds"
	MetricRecordsTotal         = "pipeline_records_total"
	MetricChunksTotal          = "pipeline_chunks_total"
	MetricAnomaliesTotal       = "pipeline_anomalies_total"
	MetricMemoryBytes          = "pipeline_memory_bytes"
)

// Nop is the default backend. It discards everything.
type Nop struct{}

func (Nop) IncCounter(string, float64, Labels)       {}
func (Nop) ObserveHistogram(string, float64, Labels) {}
func (Nop) Flush() error                             { return nil }
func (Nop) Close() error                             { return nil }

var (
	mu      sync.RWMutex
	backend Backend = Nop{}
)

// SetBackend installs the process-wide backend. Call once at startup,
// before any pipeline work begins.
func SetBackend(b Backend) {
	mu.Lock()
	defer mu.Unlock()
	if b == nil {
		b = Nop{}
	}
	backend = b
}

// Default returns the installed backend.
func Default() Backend {
	mu.RLock()
	defer mu.RUnlock()
	return backend
}

// IncCounter records on the installed backend.
func IncCounter(name string, delta float64, labels Labels) {
	Default().IncCounter(name, delta, labels)
}

// ObserveHistogram records on the installed backend.
func ObserveHistogram(name string, value float64, labels Labels) {
	Default().ObserveHistogram(name, value, labels)
}
