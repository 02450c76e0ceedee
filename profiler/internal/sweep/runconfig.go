package sweep

import (
	"fmt"

	"github.com/modelperf/modelperf/profiler/internal/config"
	"github.com/modelperf/modelperf/profiler/internal/record"
)

// RunConfig identifies one configuration to measure: a model at a batch size
// and concurrency level.
type RunConfig struct {
	Model       string
	BatchSize   int
	Concurrency int
}

func (rc RunConfig) String() string {
	return fmt.Sprintf("%s b%d c%d", rc.Model, rc.BatchSize, rc.Concurrency)
}

// Generator yields run configurations one at a time. Callers must report each
// configuration's measurement through Observe before requesting the next —
// the search generator steers on that feedback, the manual generator ignores
// it.
type Generator interface {
	// Next returns the next configuration to measure, or ok == false when
	// the sweep is exhausted.
	Next() (rc RunConfig, ok bool)

	// Observe feeds back the measurement for the configuration most recently
	// returned by Next.
	Observe(m *record.Measurement)
}

// New returns the Generator selected by the profile config: the manual
// cartesian sweep when run_config_search_disable is set, the doubling search
// otherwise.
func New(cfg *config.Config) Generator {
	if cfg.RunConfigSearchDisable {
		return newManual(cfg)
	}
	return newSearch(cfg)
}

// manual is the cartesian-product generator: every configured batch size and
// concurrency value for every model, in document order.
type manual struct {
	configs []RunConfig
	next    int
}

func newManual(cfg *config.Config) *manual {
	m := &manual{}
	for _, model := range cfg.ProfileModels {
		for _, b := range cfg.BatchSizes {
			for _, c := range cfg.Concurrency {
				m.configs = append(m.configs, RunConfig{
					Model:       model,
					BatchSize:   b,
					Concurrency: c,
				})
			}
		}
	}
	return m
}

func (m *manual) Next() (RunConfig, bool) {
	if m.next >= len(m.configs) {
		return RunConfig{}, false
	}
	rc := m.configs[m.next]
	m.next++
	return rc, true
}

// Observe is a no-op: the manual sweep runs every configured combination
// regardless of outcome.
func (m *manual) Observe(*record.Measurement) {}

// Total returns the number of configurations in the manual sweep.
func (m *manual) Total() int {
	return len(m.configs)
}
