package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestLoad_SSLFixture(t *testing.T) {
	cfg, err := Load(filepath.Join("testdata", "profile-ssl-corrupt.yaml"))
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}

	if got, want := cfg.BatchSizes, []int{1, 2}; !reflect.DeepEqual(got, want) {
		t.Errorf("batch_sizes: got %v, want %v", got, want)
	}
	if got, want := cfg.Concurrency, []int{1, 2}; !reflect.DeepEqual(got, want) {
		t.Errorf("concurrency: got %v, want %v", got, want)
	}
	if got, want := cfg.ProfileModels, []string{"resnet50_libtorch"}; !reflect.DeepEqual(got, want) {
		t.Errorf("profile_models: got %v, want %v", got, want)
	}
	if !cfg.RunConfigSearchDisable {
		t.Error("run_config_search_disable: got false, want true")
	}

	if !cfg.SSLEnabled() {
		t.Error("SSLEnabled(): got false, want true")
	}
	if got := cfg.PerfAnalyzerFlags.Get("ssl-grpc-certificate-chain-file"); got != "client2.crt" {
		t.Errorf("ssl-grpc-certificate-chain-file: got %q", got)
	}
	if got := cfg.PerfAnalyzerFlags.Get("ssl-grpc-private-key-file"); got != "client2.key" {
		t.Errorf("ssl-grpc-private-key-file: got %q", got)
	}
	if got := cfg.PerfAnalyzerFlags.Get("ssl-grpc-root-certifications-file"); got != "ca.crt" {
		t.Errorf("ssl-grpc-root-certifications-file: got %q", got)
	}

	// The quoted '1' server flag values must survive as the literal "1".
	if got := cfg.TritonServerFlags.Get("grpc-use-ssl"); got != "1" {
		t.Errorf("grpc-use-ssl: got %q, want %q", got, "1")
	}
	if !cfg.TritonServerFlags.Bool("grpc-use-ssl-mutual") {
		t.Error("grpc-use-ssl-mutual: Bool() got false, want true")
	}
	if got := cfg.TritonServerFlags.Get("grpc-server-cert"); got != "server.crt" {
		t.Errorf("grpc-server-cert: got %q", got)
	}
	if got := cfg.TritonServerFlags.Get("grpc-server-key"); got != "server.key" {
		t.Errorf("grpc-server-key: got %q", got)
	}
	if got := cfg.TritonServerFlags.Get("grpc-root-cert"); got != "ca.crt" {
		t.Errorf("grpc-root-cert: got %q", got)
	}
}

func TestLoad_Defaults(t *testing.T) {
	yaml := `
profile_models:
  - densenet_onnx
batch_sizes: [1]
concurrency: [4]
run_config_search_disable: true
`
	cfg := loadFromString(t, yaml)

	if cfg.PerfAnalyzerPath != DefaultPerfAnalyzerPath {
		t.Errorf("default perf_analyzer_path: got %q", cfg.PerfAnalyzerPath)
	}
	if cfg.TritonLaunchMode != DefaultLaunchMode {
		t.Errorf("default triton_launch_mode: got %q", cfg.TritonLaunchMode)
	}
	if cfg.TritonGRPCEndpoint != DefaultServerGRPCEndpoint {
		t.Errorf("default triton_grpc_endpoint: got %q", cfg.TritonGRPCEndpoint)
	}
	if cfg.MeasurementTimeout != DefaultMeasurementTimeout {
		t.Errorf("default measurement_timeout: got %v", cfg.MeasurementTimeout)
	}
	if cfg.Search.MaxConcurrency != DefaultSearchMaxConc {
		t.Errorf("default search max_concurrency: got %d", cfg.Search.MaxConcurrency)
	}
	if cfg.Objective != DefaultObjective {
		t.Errorf("default objective: got %q", cfg.Objective)
	}
	if cfg.SSLEnabled() {
		t.Error("SSLEnabled() with no flags: got true, want false")
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{
			name: "no models",
			yaml: `
batch_sizes: [1]
concurrency: [1]
`,
		},
		{
			name: "zero batch size",
			yaml: `
profile_models: [m]
batch_sizes: [0]
concurrency: [1]
`,
		},
		{
			name: "negative concurrency",
			yaml: `
profile_models: [m]
batch_sizes: [1]
concurrency: [-2]
`,
		},
		{
			name: "search disabled without sweep values",
			yaml: `
profile_models: [m]
run_config_search_disable: true
`,
		},
		{
			name: "unknown launch mode",
			yaml: `
profile_models: [m]
triton_launch_mode: docker-compose
`,
		},
		{
			name: "bad ssl toggle value",
			yaml: `
profile_models: [m]
perf_analyzer_flags:
  ssl-grpc-use-ssl: yes please
`,
		},
		{
			name: "non-scalar flag value",
			yaml: `
profile_models: [m]
triton_server_flags:
  grpc-use-ssl: [1, 2]
`,
		},
		{
			name: "duplicate flag",
			yaml: `
profile_models: [m]
triton_server_flags:
  grpc-use-ssl: '1'
  grpc-use-ssl: '0'
`,
		},
		{
			name: "search bounds inverted",
			yaml: `
profile_models: [m]
run_config_search:
  max_concurrency: 2
  min_concurrency: 8
`,
		},
		{
			name: "negative constraint bound",
			yaml: `
profile_models: [m]
constraints:
  perf_latency_p99:
    max: -5
`,
		},
		{
			name: "constraint min exceeds max",
			yaml: `
profile_models: [m]
model_constraints:
  resnet50:
    perf_throughput:
      min: 200
      max: 100
`,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := loadStringErr(t, tc.yaml); err == nil {
				t.Fatal("expected error, got nil")
			}
		})
	}
}

func TestFlagMap_LiteralValues(t *testing.T) {
	yaml := `
profile_models: [m]
perf_analyzer_flags:
  ssl-grpc-use-ssl: true
  measurement-interval: 5000
  percentile: '95'
`
	cfg := loadFromString(t, yaml)

	tests := []struct {
		flag string
		want string
	}{
		{"ssl-grpc-use-ssl", "true"},
		{"measurement-interval", "5000"},
		{"percentile", "95"},
	}
	for _, tc := range tests {
		if got := cfg.PerfAnalyzerFlags.Get(tc.flag); got != tc.want {
			t.Errorf("flag %s: got %q, want %q", tc.flag, got, tc.want)
		}
	}

	want := []string{"ssl-grpc-use-ssl", "measurement-interval", "percentile"}
	if got := cfg.PerfAnalyzerFlags.Keys(); !reflect.DeepEqual(got, want) {
		t.Errorf("Keys(): got %v, want %v (document order)", got, want)
	}
}

func TestFlagMap_Bool(t *testing.T) {
	tests := []struct {
		value string
		want  bool
	}{
		{"true", true},
		{"1", true},
		{"false", false},
		{"0", false},
		{"", false},
	}
	for _, tc := range tests {
		fm := FlagMap{
			keys:   []string{"grpc-use-ssl"},
			values: map[string]string{"grpc-use-ssl": tc.value},
		}
		if got := fm.Bool("grpc-use-ssl"); got != tc.want {
			t.Errorf("Bool(%q): got %v, want %v", tc.value, got, tc.want)
		}
	}
}

func TestConstraintsFor(t *testing.T) {
	yaml := `
profile_models: [a, b]
constraints:
  perf_latency_p99:
    max: 100
model_constraints:
  b:
    perf_throughput:
      min: 50
`
	cfg := loadFromString(t, yaml)

	def := cfg.ConstraintsFor("a")
	if c, ok := def["perf_latency_p99"]; !ok || c.Max != 100 {
		t.Errorf("ConstraintsFor(a): got %+v, want perf_latency_p99 max 100", def)
	}

	over := cfg.ConstraintsFor("b")
	if c, ok := over["perf_throughput"]; !ok || c.Min != 50 {
		t.Errorf("ConstraintsFor(b): got %+v, want perf_throughput min 50", over)
	}
	if _, ok := over["perf_latency_p99"]; ok {
		t.Error("ConstraintsFor(b): default constraint leaked into override set")
	}
}

func TestResultsConfig_Key(t *testing.T) {
	t.Setenv("TEST_RESULTS_KEY", "supersecret")
	r := ResultsConfig{KeyEnv: "TEST_RESULTS_KEY"}
	if got := r.Key(); got != "supersecret" {
		t.Errorf("Key(): got %q, want %q", got, "supersecret")
	}

	r = ResultsConfig{}
	if got := r.Key(); got != "" {
		t.Errorf("Key() with no KeyEnv: got %q, want empty", got)
	}
}

// loadFromString writes yaml to a temp file and calls Load, failing on error.
func loadFromString(t *testing.T, content string) *Config {
	t.Helper()
	cfg, err := loadStringErr(t, content)
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}
	return cfg
}

// loadStringErr writes yaml to a temp file and calls Load, returning any error.
func loadStringErr(t *testing.T, content string) (*Config, error) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "profile.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return Load(path)
}
