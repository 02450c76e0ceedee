package perf

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/modelperf/modelperf/profiler/internal/config"
	"github.com/modelperf/modelperf/profiler/internal/record"
	"github.com/modelperf/modelperf/profiler/internal/sweep"
)

const sampleCSV = `Concurrency,Inferences/Second,Avg latency,p50 latency,p95 latency,p99 latency
4,310.5,12876,11950,17020,21340
`

func TestParseCSV(t *testing.T) {
	m, err := ParseCSV([]byte(sampleCSV))
	if err != nil {
		t.Fatalf("ParseCSV: %v", err)
	}
	if got := m[record.TagThroughput]; got != 310.5 {
		t.Errorf("throughput: got %g", got)
	}
	if got := m[record.TagLatencyAvg]; math.Abs(got-12.876) > 1e-9 {
		t.Errorf("avg latency: got %g ms, want 12.876", got)
	}
	if got := m[record.TagLatencyP99]; math.Abs(got-21.34) > 1e-9 {
		t.Errorf("p99 latency: got %g ms, want 21.34", got)
	}
}

func TestParseCSV_LastRowWins(t *testing.T) {
	data := sampleCSV + "8,450.2,15000,14000,19000,25000\n"
	m, err := ParseCSV([]byte(data))
	if err != nil {
		t.Fatalf("ParseCSV: %v", err)
	}
	if got := m[record.TagThroughput]; got != 450.2 {
		t.Errorf("throughput: got %g, want last row's 450.2", got)
	}
}

func TestParseCSV_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"empty", ""},
		{"header only", "Concurrency,Inferences/Second\n"},
		{"missing throughput column", "Concurrency,p99 latency\n1,5000\n"},
		{"non-numeric value", "Inferences/Second\nfast\n"},
		{"ragged row", "Concurrency,Inferences/Second\n1\n"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := ParseCSV([]byte(tc.data)); err == nil {
				t.Fatal("expected error, got nil")
			}
		})
	}
}

func testConfig(t *testing.T, flagsYAML string) *config.Config {
	t.Helper()
	dir := t.TempDir()
	content := `
profile_models: [resnet50_libtorch]
batch_sizes: [1]
concurrency: [4]
run_config_search_disable: true
` + flagsYAML
	path := filepath.Join(dir, "profile.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	return cfg
}

func TestMeasure_ParsesReport(t *testing.T) {
	cfg := testConfig(t, "")
	r := NewRunner(cfg)

	// Fake analyzer: find the -f argument and write the report there.
	r.runCommand = func(_ context.Context, name string, args []string) ([]byte, error) {
		for i, a := range args {
			if a == "-f" && i+1 < len(args) {
				return nil, os.WriteFile(args[i+1], []byte(sampleCSV), 0o600)
			}
		}
		return nil, errors.New("no -f argument")
	}

	rc := sweep.RunConfig{Model: "resnet50_libtorch", BatchSize: 1, Concurrency: 4}
	m, err := r.Measure(context.Background(), rc)
	if err != nil {
		t.Fatalf("Measure: %v", err)
	}
	if m[record.TagThroughput] != 310.5 {
		t.Errorf("throughput: got %g", m[record.TagThroughput])
	}
}

func TestMeasure_AnalyzerFailureIncludesOutput(t *testing.T) {
	cfg := testConfig(t, "")
	r := NewRunner(cfg)
	r.runCommand = func(context.Context, string, []string) ([]byte, error) {
		return []byte("error: failed to create secure channel: invalid certificate"), errors.New("exit status 1")
	}

	rc := sweep.RunConfig{Model: "resnet50_libtorch", BatchSize: 1, Concurrency: 4}
	_, err := r.Measure(context.Background(), rc)
	if err == nil {
		t.Fatal("Measure: expected error, got nil")
	}
	if !strings.Contains(err.Error(), "invalid certificate") {
		t.Errorf("error should carry analyzer output, got: %v", err)
	}
}

func TestBuildArgs_SSLFlagsForwarded(t *testing.T) {
	cfg := testConfig(t, `
perf_analyzer_flags:
  ssl-grpc-use-ssl: true
  ssl-grpc-certificate-chain-file: client2.crt
  ssl-grpc-private-key-file: client2.key
  ssl-grpc-root-certifications-file: ca.crt
`)
	r := NewRunner(cfg)
	rc := sweep.RunConfig{Model: "resnet50_libtorch", BatchSize: 2, Concurrency: 8}
	args := r.buildArgs(rc, "/tmp/report.csv")

	joined := strings.Join(args, " ")
	for _, want := range []string{
		"-m resnet50_libtorch",
		"-b 2",
		"--concurrency-range 8",
		"-i grpc",
		"--ssl-grpc-use-ssl=true",
		"--ssl-grpc-certificate-chain-file=client2.crt",
		"--ssl-grpc-private-key-file=client2.key",
		"--ssl-grpc-root-certifications-file=ca.crt",
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("args missing %q: %v", want, args)
		}
	}

	// Pass-through flags follow the managed per-run flags.
	if !strings.HasPrefix(joined, "-m resnet50_libtorch") {
		t.Errorf("managed flags should lead: %v", args)
	}
}

func TestBuildArgs_ReservedFlagsIgnored(t *testing.T) {
	cfg := testConfig(t, `
perf_analyzer_flags:
  u: evil-endpoint:9999
  percentile: '95'
`)
	r := NewRunner(cfg)
	args := r.buildArgs(sweep.RunConfig{Model: "m", BatchSize: 1, Concurrency: 1}, "out.csv")

	joined := strings.Join(args, " ")
	if strings.Contains(joined, "evil-endpoint") {
		t.Errorf("reserved flag leaked into args: %v", args)
	}
	if !strings.Contains(joined, "--percentile=95") {
		t.Errorf("non-reserved flag missing: %v", args)
	}
}

func TestMeasure_Timeout(t *testing.T) {
	cfg := testConfig(t, "measurement_timeout: 10ms\n")
	r := NewRunner(cfg)
	r.runCommand = func(ctx context.Context, _ string, _ []string) ([]byte, error) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(5 * time.Second):
			return nil, fmt.Errorf("fake analyzer was not cancelled")
		}
	}

	start := time.Now()
	_, err := r.Measure(context.Background(), sweep.RunConfig{Model: "m", BatchSize: 1, Concurrency: 1})
	if err == nil {
		t.Fatal("Measure: expected timeout error")
	}
	if time.Since(start) > 2*time.Second {
		t.Errorf("Measure did not respect measurement_timeout")
	}
}
