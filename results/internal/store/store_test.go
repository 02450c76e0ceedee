package store

import (
	"sync"
	"testing"
	"time"

	"github.com/modelperf/modelperf/pkg/types"
)

func meas(runID, model string, failed bool) *types.RunMeasurement {
	m := &types.RunMeasurement{
		ID:          runID + "-" + model,
		RunID:       runID,
		Model:       model,
		BatchSize:   1,
		Concurrency: 1,
		Passed:      !failed,
		MeasuredAt:  time.Now().UTC(),
	}
	if failed {
		m.Error = "analyzer failed"
	}
	return m
}

// fixedClock returns a func() time.Time that always returns t.
func fixedClock(t time.Time) func() time.Time { return func() time.Time { return t } }

func TestIngestAndGet(t *testing.T) {
	st := New(time.Hour)
	st.Ingest(meas("run-1", "resnet50", false))

	e, ok := st.Get("run-1")
	if !ok {
		t.Fatal("Get: expected entry, got none")
	}
	if e.Summary.RunID != "run-1" {
		t.Errorf("RunID: got %q, want run-1", e.Summary.RunID)
	}
	if e.Summary.State != types.RunStateRunning {
		t.Errorf("State: got %q, want running", e.Summary.State)
	}
	if len(e.Measurements) != 1 {
		t.Errorf("Measurements: got %d, want 1", len(e.Measurements))
	}
}

func TestGet_Missing(t *testing.T) {
	st := New(time.Hour)
	if _, ok := st.Get("unknown"); ok {
		t.Fatal("Get on empty store: expected false, got true")
	}
}

func TestIngest_AccumulatesCounters(t *testing.T) {
	st := New(time.Hour)
	st.Ingest(meas("run-1", "resnet50", false))
	st.Ingest(meas("run-1", "resnet50", false))
	st.Ingest(meas("run-1", "bert", true))

	e, _ := st.Get("run-1")
	sum := e.Summary
	if sum.Total != 3 || sum.Completed != 2 || sum.Failed != 1 {
		t.Errorf("counters: total=%d completed=%d failed=%d, want 3/2/1",
			sum.Total, sum.Completed, sum.Failed)
	}
	if len(sum.Models) != 2 {
		t.Errorf("Models: got %v, want 2 distinct", sum.Models)
	}
	if len(e.Measurements) != 3 {
		t.Errorf("Measurements: got %d, want 3", len(e.Measurements))
	}
}

func TestIngest_ModelsDeduplicated(t *testing.T) {
	st := New(time.Hour)
	for i := 0; i < 4; i++ {
		st.Ingest(meas("run-1", "resnet50", false))
	}
	e, _ := st.Get("run-1")
	if len(e.Summary.Models) != 1 {
		t.Errorf("Models: got %v, want [resnet50]", e.Summary.Models)
	}
}

func TestList_ExcludesStale(t *testing.T) {
	base := time.Now()
	st := New(5 * time.Minute)

	st.now = fixedClock(base.Add(-10 * time.Minute)) // stale
	st.Ingest(meas("old", "m", false))

	st.now = fixedClock(base) // live
	st.Ingest(meas("new", "m", false))

	st.now = fixedClock(base)
	entries := st.List()

	if len(entries) != 1 {
		t.Fatalf("List: got %d entries, want 1", len(entries))
	}
	if entries[0].Summary.RunID != "new" {
		t.Errorf("List[0].RunID: got %q, want new", entries[0].Summary.RunID)
	}
}

func TestList_MostRecentFirst(t *testing.T) {
	base := time.Now()
	st := New(time.Hour)

	st.now = fixedClock(base.Add(-2 * time.Minute))
	st.Ingest(meas("older", "m", false))
	st.now = fixedClock(base.Add(-1 * time.Minute))
	st.Ingest(meas("newer", "m", false))

	st.now = fixedClock(base)
	entries := st.List()
	if len(entries) != 2 {
		t.Fatalf("List: got %d entries, want 2", len(entries))
	}
	if entries[0].Summary.RunID != "newer" {
		t.Errorf("List order: got %q first, want newer", entries[0].Summary.RunID)
	}
}

func TestEvict_RemovesStale(t *testing.T) {
	base := time.Now()
	st := New(5 * time.Minute)

	st.now = fixedClock(base.Add(-10 * time.Minute))
	st.Ingest(meas("old1", "m", false))
	st.Ingest(meas("old2", "m", false))

	st.now = fixedClock(base)
	st.Ingest(meas("live", "m", false))

	if removed := st.Evict(base); removed != 2 {
		t.Errorf("Evict: removed %d, want 2", removed)
	}
	if st.Count() != 1 {
		t.Errorf("Count after evict: got %d, want 1", st.Count())
	}
}

func TestEvict_NoOp_AllLive(t *testing.T) {
	base := time.Now()
	st := New(5 * time.Minute)

	st.now = fixedClock(base)
	st.Ingest(meas("run", "m", false))

	if removed := st.Evict(base); removed != 0 {
		t.Errorf("Evict on live entry: removed %d, want 0", removed)
	}
}

func TestConcurrentIngest(t *testing.T) {
	st := New(time.Hour)
	var wg sync.WaitGroup

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			st.Ingest(meas("concurrent", "m", false))
		}()
	}
	wg.Wait()

	e, ok := st.Get("concurrent")
	if !ok {
		t.Fatal("Get: expected entry")
	}
	if e.Summary.Total != 100 {
		t.Errorf("Total after concurrent ingests: got %d, want 100", e.Summary.Total)
	}
}

func TestConcurrentMixedOps(t *testing.T) {
	st := New(time.Hour)
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			st.Ingest(meas("run-a", "m", false))
		}()
		go func() {
			defer wg.Done()
			st.List()
		}()
	}
	wg.Wait()
}
