package metrics

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"

	"github.com/modelperf/modelperf/profiler/internal/record"
)

const defaultScrapeTimeout = 10 * time.Second

// Server metric names we track.
const (
	// GPU utilization gauge, 0.0–1.0 per device.
	gpuUtilization = "nv_gpu_utilization"

	// GPU memory in use, bytes per device.
	gpuMemoryUsed = "nv_gpu_memory_used_bytes"

	// Successful inference counter per model.
	inferCount = "nv_inference_count"

	// Cumulative time requests spent queued, microseconds.
	queueDuration = "nv_inference_queue_duration_us"
)

// Snapshot holds the raw values of one metrics scrape. Counter fields hold
// cumulative totals; Window derives per-measurement deltas.
type Snapshot struct {
	ScrapedAt time.Time

	// Gauges.
	GPUUtilization float64 // fraction, summed across devices
	GPUMemoryBytes float64

	// Counters.
	InferCount      float64
	QueueDurationUs float64
}

// Scraper fetches and parses the server's metrics endpoint.
type Scraper struct {
	url    string
	client *http.Client
}

// New creates a Scraper for the given metrics URL.
func New(url string) *Scraper {
	return &Scraper{
		url:    url,
		client: &http.Client{Timeout: defaultScrapeTimeout},
	}
}

// Scrape fetches the metrics endpoint and returns a Snapshot.
func (s *Scraper) Scrape(ctx context.Context) (*Snapshot, error) {
	mfs, err := fetchMetrics(ctx, s.client, s.url)
	if err != nil {
		return nil, fmt.Errorf("metrics: scrape %q: %w", s.url, err)
	}

	return &Snapshot{
		ScrapedAt:       time.Now().UTC(),
		GPUUtilization:  sumFamily(mfs[gpuUtilization]),
		GPUMemoryBytes:  sumFamily(mfs[gpuMemoryUsed]),
		InferCount:      sumFamily(mfs[inferCount]),
		QueueDurationUs: sumFamily(mfs[queueDuration]),
	}, nil
}

// Window derives record metrics for a measurement window bounded by the
// before and after snapshots. Gauge tags come from the closing snapshot;
// counter tags are deltas. Queue time is averaged per inference and reported
// in milliseconds.
func Window(before, after *Snapshot) map[string]float64 {
	out := map[string]float64{
		record.TagGPUUtilization: after.GPUUtilization * 100,
		record.TagGPUUsedMemory:  after.GPUMemoryBytes / (1 << 20),
	}

	infers := deltaOf(after.InferCount, before.InferCount)
	out[record.TagInferCount] = infers
	if infers > 0 {
		queueUs := deltaOf(after.QueueDurationUs, before.QueueDurationUs)
		out[record.TagQueueTimeAvg] = queueUs / infers / 1000
	}
	return out
}

// fetchMetrics performs an HTTP GET to url and returns parsed metric families.
func fetchMetrics(ctx context.Context, client *http.Client, url string) (map[string]*dto.MetricFamily, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", string(expfmt.NewFormat(expfmt.TypeTextPlain)))

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return parseMetrics(resp.Body)
}

// parseMetrics decodes a Prometheus text exposition from r into metric families.
// A partial result with a non-fatal parse warning is still returned successfully.
func parseMetrics(r io.Reader) (map[string]*dto.MetricFamily, error) {
	var parser expfmt.TextParser
	mfs, err := parser.TextToMetricFamilies(r)
	if err != nil && len(mfs) == 0 {
		return nil, fmt.Errorf("parse prometheus text: %w", err)
	}
	// Non-empty result with a non-nil err means partial parse (trailing lines,
	// format warnings). Treat as success.
	return mfs, nil
}

// sumFamily adds up all counter, gauge, or untyped values in a MetricFamily.
// Returns 0 if mf is nil (metric not present in the scrape).
func sumFamily(mf *dto.MetricFamily) float64 {
	if mf == nil {
		return 0
	}
	var total float64
	for _, m := range mf.GetMetric() {
		switch {
		case m.Counter != nil:
			total += m.Counter.GetValue()
		case m.Gauge != nil:
			total += m.Gauge.GetValue()
		case m.Untyped != nil:
			total += m.Untyped.GetValue()
		}
	}
	return total
}

// deltaOf returns the positive counter delta between current and previous.
// If current < previous (counter reset after restart), returns 0.
func deltaOf(current, previous float64) float64 {
	d := current - previous
	if d < 0 {
		return 0
	}
	return d
}
