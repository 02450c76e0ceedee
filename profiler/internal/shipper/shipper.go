package shipper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"time"

	"github.com/modelperf/modelperf/pkg/types"
	"github.com/modelperf/modelperf/profiler/internal/config"
)

const (
	backoffInitial    = 1 * time.Second
	backoffMax        = 60 * time.Second
	backoffMultiplier = 2.0
	sendTimeout       = 10 * time.Second

	// IngestPath is the results-server route measurements are posted to.
	IngestPath = "/api/v1/measurements"
)

// Shipper buffers types.RunMeasurement values and posts them to the results
// server. Ship() is non-blocking; when the buffer is full the oldest
// measurement is evicted. Run() must be called in a goroutine to drain the
// buffer and retry after delivery failures.
type Shipper struct {
	cfg    config.ResultsConfig
	buf    chan *types.RunMeasurement
	client *http.Client // injectable for tests
}

// New creates a Shipper posting to the results config's endpoint.
func New(cfg config.ResultsConfig) *Shipper {
	size := cfg.BufferSize
	if size <= 0 {
		size = 1
	}
	return &Shipper{
		cfg:    cfg,
		buf:    make(chan *types.RunMeasurement, size),
		client: &http.Client{Timeout: sendTimeout},
	}
}

// Ship enqueues a measurement for delivery.
// If the buffer is full the oldest entry is evicted to make room.
func (s *Shipper) Ship(m *types.RunMeasurement) {
	select {
	case s.buf <- m:
	default:
		// Buffer full — drop the oldest measurement, keep the newest.
		select {
		case <-s.buf:
			slog.Warn("shipper: buffer full, evicted oldest measurement",
				"model", m.Model, "buffer_cap", cap(s.buf))
		default:
		}
		s.buf <- m
	}
}

// Pending reports how many measurements are waiting for delivery.
func (s *Shipper) Pending() int { return len(s.buf) }

// Run drains the buffer, posting measurements to the server.
// Failed deliveries are retried with exponential backoff.
// Run blocks until ctx is cancelled.
func (s *Shipper) Run(ctx context.Context) {
	bo := newBackoff()

	for {
		select {
		case <-ctx.Done():
			return

		case m := <-s.buf:
			err := s.send(ctx, m)
			if err == nil {
				bo.reset()
				slog.Debug("shipper: measurement delivered",
					"model", m.Model, "run", m.RunID)
				continue
			}

			if perr, ok := err.(*permanentError); ok {
				// The server rejected this measurement; retrying the same
				// payload cannot succeed. Log and discard.
				slog.Error("shipper: permanent send error, discarding measurement",
					"model", m.Model, "run", m.RunID, "err", perr)
				continue
			}

			// Put the measurement back at the front if there's room.
			select {
			case s.buf <- m:
			default:
				// Buffer full — measurement lost; the server catches up from
				// the next sweep's data once it is reachable again.
			}

			wait := bo.next()
			slog.Warn("shipper: delivery failed, will retry",
				"endpoint", s.cfg.Endpoint, "err", err, "retry_in", wait)
			select {
			case <-ctx.Done():
				return
			case <-time.After(wait):
			}
		}
	}
}

// send posts one measurement as JSON, attaching the API key header when the
// results config carries one.
func (s *Shipper) send(ctx context.Context, m *types.RunMeasurement) error {
	body, err := json.Marshal(m)
	if err != nil {
		return &permanentError{fmt.Errorf("marshal measurement: %w", err)}
	}

	sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(sendCtx, http.MethodPost,
		s.cfg.Endpoint+IngestPath, bytes.NewReader(body))
	if err != nil {
		return &permanentError{fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	if s.cfg.Header != "" && s.cfg.KeyEnv != "" {
		req.Header.Set(s.cfg.Header, s.cfg.Key())
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("post: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10)) //nolint:errcheck

	switch {
	case resp.StatusCode < 300:
		return nil
	case isPermanentStatus(resp.StatusCode):
		return &permanentError{fmt.Errorf("server rejected measurement: %s", resp.Status)}
	default:
		return fmt.Errorf("server error: %s", resp.Status)
	}
}

// permanentError marks delivery failures that must not be retried.
type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// isPermanentStatus returns true for HTTP statuses that indicate the
// measurement itself was rejected and should not be retried. 408 and 429 stay
// retryable.
func isPermanentStatus(code int) bool {
	if code == http.StatusRequestTimeout || code == http.StatusTooManyRequests {
		return false
	}
	return code >= 400 && code < 500
}

// backoff implements truncated exponential backoff with jitter.
type backoff struct {
	current time.Duration
}

func newBackoff() *backoff {
	return &backoff{current: backoffInitial}
}

// next returns the current backoff duration and advances the internal state.
func (b *backoff) next() time.Duration {
	d := b.current
	// Apply ±25 % jitter.
	jitter := time.Duration(float64(b.current) * 0.25 * (rand.Float64()*2 - 1)) //nolint:gosec // not crypto
	d += jitter
	if d < 0 {
		d = 0
	}

	b.current = time.Duration(float64(b.current) * backoffMultiplier)
	if b.current > backoffMax {
		b.current = backoffMax
	}
	return d
}

func (b *backoff) reset() {
	b.current = backoffInitial
}
