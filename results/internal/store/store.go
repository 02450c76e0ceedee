package store

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/modelperf/modelperf/pkg/types"
)

// Entry is one run's accumulated state: the summary plus every measurement
// received so far, and the time of the last ingest.
type Entry struct {
	Summary      types.RunSummary
	Measurements []types.RunMeasurement
	UpdatedAt    time.Time
}

// Store is a thread-safe in-memory run store, keyed by run_id.
// A background goroutine (Run) periodically evicts entries that have not
// received a measurement within the configured TTL.
type Store struct {
	mu   sync.RWMutex
	data map[string]*Entry
	ttl  time.Duration
	now  func() time.Time // injectable for deterministic tests
}

// New creates a Store with the given TTL.
func New(ttl time.Duration) *Store {
	return &Store{
		data: make(map[string]*Entry),
		ttl:  ttl,
		now:  time.Now,
	}
}

// TTL returns the configured retention TTL.
func (s *Store) TTL() time.Duration { return s.ttl }

// Ingest records a measurement, creating the run entry on first sight and
// updating the summary's counters and state on every call.
// Callers must not modify m after calling Ingest.
func (s *Store) Ingest(m *types.RunMeasurement) *Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	e, ok := s.data[m.RunID]
	if !ok {
		e = &Entry{
			Summary: types.RunSummary{
				RunID:     m.RunID,
				State:     types.RunStateRunning,
				StartedAt: m.MeasuredAt,
			},
		}
		s.data[m.RunID] = e
	}

	e.Measurements = append(e.Measurements, *m)
	e.UpdatedAt = now

	sum := &e.Summary
	sum.Total++
	if m.Error != "" {
		sum.Failed++
	} else {
		sum.Completed++
	}
	if !containsModel(sum.Models, m.Model) {
		sum.Models = append(sum.Models, m.Model)
	}
	if m.MeasuredAt.Before(sum.StartedAt) {
		sum.StartedAt = m.MeasuredAt
	}
	sum.LastUpdateAt = now

	return e
}

// Get returns the Entry for the given run ID and whether it was found.
// The entry may be stale if TTL has elapsed.
func (s *Store) Get(runID string) (*Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.data[runID]
	return e, ok
}

// List returns all entries whose UpdatedAt is within the TTL, most recently
// updated first. Stale entries that have not yet been evicted are excluded.
func (s *Store) List() []*Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cutoff := s.now().Add(-s.ttl)
	out := make([]*Entry, 0, len(s.data))
	for _, e := range s.data {
		if e.UpdatedAt.After(cutoff) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out
}

// Count returns the total number of runs currently held, including stale ones.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// Evict removes runs whose UpdatedAt is older than now minus TTL.
// It returns the number of runs removed.
func (s *Store) Evict(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := now.Add(-s.ttl)
	removed := 0
	for id, e := range s.data {
		if !e.UpdatedAt.After(cutoff) {
			delete(s.data, id)
			removed++
		}
	}
	return removed
}

// Run starts the background TTL eviction loop. It ticks at half the TTL
// interval (minimum 1 second). Run blocks until ctx is cancelled.
func (s *Store) Run(ctx context.Context) {
	interval := s.ttl / 2
	if interval < time.Second {
		interval = time.Second
	}
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			if n := s.Evict(now); n > 0 {
				slog.Debug("store: evicted stale runs", "count", n)
			}
		}
	}
}

func containsModel(models []string, model string) bool {
	for _, m := range models {
		if m == model {
			return true
		}
	}
	return false
}
