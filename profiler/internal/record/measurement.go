package record

import (
	"time"

	"github.com/google/uuid"

	"github.com/modelperf/modelperf/pkg/types"
)

// Measurement is the full metric set observed for one run configuration.
type Measurement struct {
	ID          string
	RunID       string
	Model       string
	BatchSize   int
	Concurrency int

	// Metrics maps metric tag to observed value.
	Metrics map[string]float64

	// Passed is set by the constraint manager after evaluation.
	Passed bool

	// Err is the perf-analyzer or harness failure for this configuration.
	// A measurement with a non-nil Err carries no usable metrics.
	Err error

	MeasuredAt time.Time
}

// NewMeasurement allocates a Measurement for the given run configuration
// with a fresh ID.
func NewMeasurement(runID, model string, batchSize, concurrency int) *Measurement {
	return &Measurement{
		ID:          uuid.NewString(),
		RunID:       runID,
		Model:       model,
		BatchSize:   batchSize,
		Concurrency: concurrency,
		Metrics:     make(map[string]float64),
		MeasuredAt:  time.Now().UTC(),
	}
}

// Get returns the value for tag and whether it was observed.
func (m *Measurement) Get(tag string) (float64, bool) {
	v, ok := m.Metrics[tag]
	return v, ok
}

// Set records a metric value.
func (m *Measurement) Set(tag string, value float64) {
	m.Metrics[tag] = value
}

// Wire converts the measurement to its JSON wire representation. Metric
// order follows the canonical tag order for stable output.
func (m *Measurement) Wire() *types.RunMeasurement {
	out := &types.RunMeasurement{
		ID:          m.ID,
		RunID:       m.RunID,
		Model:       m.Model,
		BatchSize:   m.BatchSize,
		Concurrency: m.Concurrency,
		Passed:      m.Passed,
		MeasuredAt:  m.MeasuredAt,
	}
	if m.Err != nil {
		out.Error = m.Err.Error()
	}
	for _, tag := range wireTagOrder {
		if v, ok := m.Metrics[tag]; ok {
			out.Metrics = append(out.Metrics, types.MetricValue{Tag: tag, Value: v})
		}
	}
	return out
}

// wireTagOrder fixes metric ordering in wire output.
var wireTagOrder = []string{
	TagThroughput,
	TagLatencyAvg,
	TagLatencyP50,
	TagLatencyP95,
	TagLatencyP99,
	TagGPUUsedMemory,
	TagGPUUtilization,
	TagQueueTimeAvg,
	TagInferCount,
}

// Best returns the passing measurement with the best value for the objective
// tag, or nil when no measurement passes or carries the objective metric.
func Best(measurements []*Measurement, objective string) *Measurement {
	var best *Measurement
	var bestVal float64
	for _, m := range measurements {
		if m.Err != nil || !m.Passed {
			continue
		}
		v, ok := m.Get(objective)
		if !ok {
			continue
		}
		if best == nil || Better(objective, v, bestVal) {
			best = m
			bestVal = v
		}
	}
	return best
}
