package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/cheggaaa/pb/v3"
	"github.com/google/uuid"

	"github.com/modelperf/modelperf/pkg/types"
	"github.com/modelperf/modelperf/profiler/internal/certs"
	"github.com/modelperf/modelperf/profiler/internal/config"
	"github.com/modelperf/modelperf/profiler/internal/harness"
	"github.com/modelperf/modelperf/profiler/internal/metrics"
	"github.com/modelperf/modelperf/profiler/internal/perf"
	"github.com/modelperf/modelperf/profiler/internal/record"
	"github.com/modelperf/modelperf/profiler/internal/shipper"
	"github.com/modelperf/modelperf/profiler/internal/sweep"
)

const stopGrace = 10 * time.Second

func main() {
	configPath := flag.String("config", "profile.yaml", "path to profile config file")
	verbose := flag.Bool("v", false, "enable debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	slog.Info("modelperf-profiler starting", "config", *configPath)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	slog.Info("config loaded",
		"models", cfg.ProfileModels,
		"endpoint", cfg.TritonGRPCEndpoint,
		"launch_mode", cfg.TritonLaunchMode,
		"search_disabled", cfg.RunConfigSearchDisable,
		"ssl", cfg.SSLEnabled(),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// SSL profiles get their certificate material checked up front so a
	// corrupted file fails here with its path, not as an opaque handshake
	// error mid-sweep.
	if cfg.SSLEnabled() {
		if err := precheckCertFiles(cfg); err != nil {
			slog.Error("certificate precheck failed", "err", err)
			os.Exit(1)
		}
		slog.Info("certificate precheck passed")
	}

	srv, err := harness.Launch(ctx, cfg)
	if err != nil {
		slog.Error("failed to launch inference server", "err", err)
		os.Exit(1)
	}
	defer func() {
		if err := srv.Stop(stopGrace); err != nil {
			slog.Warn("server shutdown", "err", err)
		}
	}()

	// Watch config file for hot-reload. Sweep-shaping fields apply from the
	// next run; a reload mid-measurement does not disturb the current one.
	reloaded := make(chan *config.Config, 1)
	go func() {
		if err := config.Watch(ctx, *configPath, func(updated *config.Config) {
			select {
			case reloaded <- updated:
			default:
			}
		}); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("config watcher stopped", "err", err)
		}
	}()

	var ship *shipper.Shipper
	if cfg.Results.Endpoint != "" {
		ship = shipper.New(cfg.Results)
		go ship.Run(ctx)
	}

	report, err := runSweep(ctx, cfg, ship, reloaded)
	if err != nil {
		slog.Error("sweep failed", "err", err)
		os.Exit(1)
	}

	if cfg.ExportPath != "" {
		path, err := exportReport(cfg.ExportPath, report)
		if err != nil {
			slog.Error("export failed", "err", err)
			os.Exit(1)
		}
		slog.Info("summary exported", "path", path)
	}

	slog.Info("modelperf-profiler done",
		"run", report.RunID,
		"measurements", len(report.Measurements),
		"state", report.State,
	)
}

// runReport is the JSON export document: the run summary plus every
// measurement and the best passing configuration.
type runReport struct {
	types.RunSummary
	BestID       string                 `json:"best_id,omitempty"`
	Measurements []types.RunMeasurement `json:"measurements"`
}

// precheckCertFiles validates every certificate and key file the profile's
// SSL flags reference.
func precheckCertFiles(cfg *config.Config) error {
	checks := []struct {
		flag     string
		validate func(string) error
	}{
		{"ssl-grpc-root-certifications-file", certs.ValidateCertFile},
		{"ssl-grpc-certificate-chain-file", certs.ValidateCertFile},
		{"ssl-grpc-private-key-file", certs.ValidateKeyFile},
	}
	for _, c := range checks {
		path, ok := cfg.PerfAnalyzerFlags.Lookup(c.flag)
		if !ok || path == "" {
			continue
		}
		if err := c.validate(path); err != nil {
			return fmt.Errorf("%s: %w", c.flag, err)
		}
	}
	return nil
}

// runSweep drives the run-config generator over the measurement pipeline and
// assembles the run summary.
func runSweep(ctx context.Context, cfg *config.Config, ship *shipper.Shipper, reloaded <-chan *config.Config) (*runReport, error) {
	runID := uuid.NewString()
	gen := sweep.New(cfg)
	runner := perf.NewRunner(cfg)
	scraper := metrics.New(cfg.TritonMetricsURL)
	cm := record.NewConstraintManager(cfg)

	// Manual sweeps know their size up front and get a progress bar.
	var bar *pb.ProgressBar
	if sized, ok := gen.(interface{ Total() int }); ok {
		bar = pb.StartNew(sized.Total())
		defer bar.Finish()
	}

	var all []*record.Measurement
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case updated := <-reloaded:
			cfg.Constraints = updated.Constraints
			cfg.ModelConstraints = updated.ModelConstraints
			cfg.Objective = updated.Objective
			slog.Info("config hot-reloaded", "objective", cfg.Objective)
		default:
		}

		rc, ok := gen.Next()
		if !ok {
			break
		}

		m := measureOne(ctx, runner, scraper, rc, runID)
		if violations := cm.Evaluate(m); len(violations) > 0 {
			for _, v := range violations {
				slog.Warn("constraint violated", "config", rc.String(), "violation", v.String())
			}
		}
		gen.Observe(m)
		all = append(all, m)

		if ship != nil {
			ship.Ship(m.Wire())
		}
		if bar != nil {
			bar.Increment()
		}

		if m.Err != nil {
			slog.Warn("measurement failed", "config", rc.String(), "err", m.Err)
		} else {
			slog.Info("measurement complete",
				"config", rc.String(),
				"passed", m.Passed,
				"throughput", m.Metrics[record.TagThroughput],
			)
		}
	}

	report := &runReport{
		RunSummary: types.RunSummary{
			RunID:        runID,
			State:        types.RunStateCompleted,
			Models:       cfg.ProfileModels,
			Total:        len(all),
			StartedAt:    earliest(all),
			LastUpdateAt: time.Now().UTC(),
		},
	}
	for _, m := range all {
		report.Measurements = append(report.Measurements, *m.Wire())
		if m.Err != nil {
			report.Failed++
		} else {
			report.Completed++
		}
	}
	if len(all) > 0 && report.Completed == 0 {
		report.State = types.RunStateFailed
	}
	if best := record.Best(all, cfg.Objective); best != nil {
		report.BestID = best.ID
		slog.Info("best configuration",
			"model", best.Model,
			"batch", best.BatchSize,
			"concurrency", best.Concurrency,
			"objective", cfg.Objective,
			"value", best.Metrics[cfg.Objective],
		)
	}
	return report, nil
}

// measureOne runs perf-analyzer for one configuration, bracketing it with
// metrics scrapes. Scrape failures degrade the measurement to perf-analyzer
// metrics only.
func measureOne(ctx context.Context, runner *perf.Runner, scraper *metrics.Scraper, rc sweep.RunConfig, runID string) *record.Measurement {
	m := record.NewMeasurement(runID, rc.Model, rc.BatchSize, rc.Concurrency)

	before, scrapeErr := scraper.Scrape(ctx)
	if scrapeErr != nil {
		slog.Debug("metrics scrape unavailable", "err", scrapeErr)
	}

	perfMetrics, err := runner.Measure(ctx, rc)
	if err != nil {
		m.Err = err
		return m
	}
	for tag, v := range perfMetrics {
		m.Set(tag, v)
	}

	if scrapeErr == nil {
		if after, err := scraper.Scrape(ctx); err == nil {
			for tag, v := range metrics.Window(before, after) {
				m.Set(tag, v)
			}
		}
	}
	return m
}

func earliest(all []*record.Measurement) time.Time {
	if len(all) == 0 {
		return time.Now().UTC()
	}
	t := all[0].MeasuredAt
	for _, m := range all[1:] {
		if m.MeasuredAt.Before(t) {
			t = m.MeasuredAt
		}
	}
	return t
}

// exportReport writes the run report as JSON under dir and returns the
// written path.
func exportReport(dir string, report *runReport) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("export dir: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("run-%s.json", report.RunID))
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal summary: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write summary: %w", err)
	}
	return path, nil
}
