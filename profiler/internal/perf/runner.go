package perf

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/modelperf/modelperf/profiler/internal/config"
	"github.com/modelperf/modelperf/profiler/internal/sweep"
)

// reservedFlags are managed per run and must not be overridden by the
// profile's pass-through flag map.
var reservedFlags = map[string]bool{
	"m":                 true,
	"b":                 true,
	"concurrency-range": true,
	"u":                 true,
	"i":                 true,
	"f":                 true,
}

// Runner executes perf-analyzer once per run configuration.
type Runner struct {
	cfg *config.Config

	// runCommand is injectable for tests.
	runCommand func(ctx context.Context, name string, args []string) ([]byte, error)
}

// NewRunner creates a Runner for the given profile config.
func NewRunner(cfg *config.Config) *Runner {
	return &Runner{cfg: cfg, runCommand: defaultRunCommand}
}

// Measure runs perf-analyzer for rc and returns the parsed metrics keyed by
// record tag. The binary's combined output is included in any error so a TLS
// or certificate failure is attributable from the measurement alone.
func (r *Runner) Measure(ctx context.Context, rc sweep.RunConfig) (map[string]float64, error) {
	dir, err := os.MkdirTemp("", "modelperf-perf-")
	if err != nil {
		return nil, fmt.Errorf("perf: temp dir: %w", err)
	}
	defer os.RemoveAll(dir)
	csvPath := filepath.Join(dir, "latency-report.csv")

	args := r.buildArgs(rc, csvPath)
	slog.Debug("perf: running analyzer",
		"binary", r.cfg.PerfAnalyzerPath, "model", rc.Model,
		"batch", rc.BatchSize, "concurrency", rc.Concurrency)

	runCtx, cancel := context.WithTimeout(ctx, r.cfg.MeasurementTimeout)
	defer cancel()

	out, err := r.runCommand(runCtx, r.cfg.PerfAnalyzerPath, args)
	if err != nil {
		return nil, fmt.Errorf("perf: analyzer failed for %s: %w: %s",
			rc, err, truncate(string(out), 512))
	}

	report, err := os.ReadFile(csvPath)
	if err != nil {
		return nil, fmt.Errorf("perf: analyzer wrote no latency report for %s: %w", rc, err)
	}
	metrics, err := ParseCSV(report)
	if err != nil {
		return nil, fmt.Errorf("perf: %s: %w", rc, err)
	}
	return metrics, nil
}

// buildArgs assembles the perf-analyzer argv: managed per-run flags first,
// then the profile's pass-through flags in document order.
func (r *Runner) buildArgs(rc sweep.RunConfig, csvPath string) []string {
	args := []string{
		"-m", rc.Model,
		"-b", strconv.Itoa(rc.BatchSize),
		"--concurrency-range", strconv.Itoa(rc.Concurrency),
		"-u", r.cfg.TritonGRPCEndpoint,
		"-i", "grpc",
		"-f", csvPath,
	}
	for _, flag := range r.cfg.PerfAnalyzerFlags.Keys() {
		if reservedFlags[flag] {
			slog.Warn("perf: ignoring reserved pass-through flag", "flag", flag)
			continue
		}
		args = append(args, "--"+flag+"="+r.cfg.PerfAnalyzerFlags.Get(flag))
	}
	return args
}

func defaultRunCommand(ctx context.Context, name string, args []string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
