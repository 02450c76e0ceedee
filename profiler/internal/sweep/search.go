package sweep

import (
	"log/slog"

	"github.com/modelperf/modelperf/profiler/internal/config"
	"github.com/modelperf/modelperf/profiler/internal/record"
)

// throughputGainPct is the minimum relative throughput improvement (in
// percent) required to keep advancing a search dimension.
const throughputGainPct = 5.0

// search walks the (batch size, concurrency) space per model by doubling.
// The concurrency dimension advances while throughput keeps improving; when
// it stalls, the batch dimension doubles and concurrency restarts at its
// minimum. A model's search ends when batch stops improving too.
type search struct {
	bounds config.SearchConfig
	models []string

	modelIdx int
	batch    int
	conc     int

	// bestConc is the best throughput seen in the current concurrency sweep;
	// bestBatch is the best across completed concurrency sweeps for the
	// current batch dimension.
	bestConc  float64
	bestBatch float64

	done bool
}

func newSearch(cfg *config.Config) *search {
	return &search{
		bounds:   cfg.Search,
		models:   cfg.ProfileModels,
		batch:    1,
		conc:     cfg.Search.MinConcurrency,
		bestConc: -1,
	}
}

func (s *search) Next() (RunConfig, bool) {
	if s.done || s.modelIdx >= len(s.models) {
		return RunConfig{}, false
	}
	return RunConfig{
		Model:       s.models[s.modelIdx],
		BatchSize:   s.batch,
		Concurrency: s.conc,
	}, true
}

func (s *search) Observe(m *record.Measurement) {
	if s.done || s.modelIdx >= len(s.models) {
		return
	}

	if m.Err != nil {
		// A failing configuration ends this model's search; larger
		// configurations will not fare better against a broken setup.
		slog.Warn("search: configuration failed, ending model search",
			"model", s.models[s.modelIdx], "batch", s.batch, "concurrency", s.conc,
			"err", m.Err)
		s.nextModel()
		return
	}

	throughput, _ := m.Get(record.TagThroughput)

	if improves(throughput, s.bestConc) && s.conc*2 <= s.bounds.MaxConcurrency {
		s.bestConc = maxf(s.bestConc, throughput)
		s.conc *= 2
		return
	}

	// Concurrency sweep for this batch size is finished.
	s.bestConc = maxf(s.bestConc, throughput)
	if improves(s.bestConc, s.bestBatch) && s.batch*2 <= s.bounds.MaxBatchSize {
		s.bestBatch = maxf(s.bestBatch, s.bestConc)
		s.batch *= 2
		s.conc = s.bounds.MinConcurrency
		s.bestConc = -1
		return
	}

	s.nextModel()
}

func (s *search) nextModel() {
	s.modelIdx++
	s.batch = 1
	s.conc = s.bounds.MinConcurrency
	s.bestConc = -1
	s.bestBatch = 0
	if s.modelIdx >= len(s.models) {
		s.done = true
	}
}

// improves reports whether current beats best by at least the gain threshold.
// Any positive value improves on an unset best.
func improves(current, best float64) bool {
	if best <= 0 {
		return current > 0
	}
	return (current-best)/best*100 >= throughputGainPct
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
