package types

import "time"

// Run lifecycle states reported by the profiler.
const (
	RunStateRunning   = "running"
	RunStateCompleted = "completed"
	RunStateFailed    = "failed"
)

// MetricValue is one named metric observed for a run configuration.
type MetricValue struct {
	// Tag is the canonical metric name, e.g. "perf_latency_avg",
	// "perf_throughput", "gpu_used_memory".
	Tag string `json:"tag"`

	// Value is the observed value in the metric's native unit
	// (milliseconds for latencies, infer/sec for throughput, MB for memory).
	Value float64 `json:"value"`
}

// RunMeasurement is the result of profiling a single run configuration
// (one model at one batch size and concurrency level).
type RunMeasurement struct {
	// ID uniquely identifies this measurement.
	ID string `json:"id"`

	// RunID groups all measurements belonging to one profiling sweep.
	RunID string `json:"run_id"`

	Model       string `json:"model"`
	BatchSize   int    `json:"batch_size"`
	Concurrency int    `json:"concurrency"`

	// Metrics holds every metric collected for this configuration.
	Metrics []MetricValue `json:"metrics"`

	// Passed reports whether the measurement satisfied all configured
	// constraints. Always false when Error is set.
	Passed bool `json:"passed"`

	// Error is the perf-analyzer or harness failure for this configuration,
	// empty on success. A TLS handshake failure against a corrupted client
	// certificate pair surfaces here.
	Error string `json:"error,omitempty"`

	MeasuredAt time.Time `json:"measured_at"`
}

// Metric returns the value for tag and whether it was present.
func (m *RunMeasurement) Metric(tag string) (float64, bool) {
	for _, mv := range m.Metrics {
		if mv.Tag == tag {
			return mv.Value, true
		}
	}
	return 0, false
}

// RunSummary describes one profiling sweep as tracked by the results server.
type RunSummary struct {
	RunID        string    `json:"run_id"`
	State        string    `json:"state"`
	Models       []string  `json:"models"`
	Total        int       `json:"total_configs"`
	Completed    int       `json:"completed_configs"`
	Failed       int       `json:"failed_configs"`
	StartedAt    time.Time `json:"started_at"`
	LastUpdateAt time.Time `json:"last_update_at"`
}
