package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values applied when fields are absent from the config file.
const (
	DefaultPerfAnalyzerPath   = "perf_analyzer"
	DefaultServerPath         = "tritonserver"
	DefaultServerGRPCEndpoint = "localhost:8001"
	DefaultServerMetricsURL   = "http://localhost:8002/metrics"
	DefaultLaunchMode         = "local"
	DefaultMeasurementTimeout = 10 * time.Minute
	DefaultSearchMaxConc      = 1024
	DefaultSearchMaxBatch     = 128
	DefaultObjective          = "perf_throughput"
)

// Config is the top-level profile configuration. Sweep fields map 1:1 to the
// profile YAML; flag maps are passed through to the external processes they
// name without interpretation beyond SSL validation.
type Config struct {
	// BatchSizes is the ordered list of batch sizes to sweep.
	BatchSizes []int `yaml:"batch_sizes"`

	// Concurrency is the ordered list of concurrent request counts to sweep.
	Concurrency []int `yaml:"concurrency"`

	// ProfileModels is the ordered list of model names to profile.
	ProfileModels []string `yaml:"profile_models"`

	// RunConfigSearchDisable turns off automatic run-config search. When true
	// the sweep is exactly the cartesian product of BatchSizes × Concurrency
	// per model, and a failing configuration is reported as-is — the profiler
	// never retries with alternate configurations.
	RunConfigSearchDisable bool `yaml:"run_config_search_disable"`

	// PerfAnalyzerFlags are passed verbatim to the perf-analyzer command line.
	// Includes the client-side gRPC SSL flags (ssl-grpc-use-ssl,
	// ssl-grpc-certificate-chain-file, ssl-grpc-private-key-file,
	// ssl-grpc-root-certifications-file).
	PerfAnalyzerFlags FlagMap `yaml:"perf_analyzer_flags"`

	// TritonServerFlags configure the launched inference server process
	// (grpc-use-ssl, grpc-use-ssl-mutual, grpc-server-cert, grpc-server-key,
	// grpc-root-cert, ...).
	TritonServerFlags FlagMap `yaml:"triton_server_flags"`

	// PerfAnalyzerPath is the perf-analyzer binary to execute.
	PerfAnalyzerPath string `yaml:"perf_analyzer_path"`

	// TritonServerPath is the inference-server binary, used when
	// TritonLaunchMode is "local".
	TritonServerPath string `yaml:"triton_server_path"`

	// TritonLaunchMode is "local" (the profiler launches the server) or
	// "remote" (the server is already running at TritonGRPCEndpoint).
	TritonLaunchMode string `yaml:"triton_launch_mode"`

	// TritonGRPCEndpoint is the host:port of the server's gRPC service.
	TritonGRPCEndpoint string `yaml:"triton_grpc_endpoint"`

	// TritonMetricsURL is the server's Prometheus metrics endpoint, scraped
	// once per measurement window. Empty disables metrics collection.
	TritonMetricsURL string `yaml:"triton_metrics_url"`

	// MeasurementTimeout bounds one perf-analyzer invocation.
	MeasurementTimeout time.Duration `yaml:"measurement_timeout"`

	// ExportPath is a directory for the JSON sweep summary. Empty disables
	// the export.
	ExportPath string `yaml:"export_path"`

	// Search bounds the automatic run-config search. Ignored when
	// RunConfigSearchDisable is true.
	Search SearchConfig `yaml:"run_config_search"`

	// Constraints apply to every profiled model unless overridden per model
	// in ModelConstraints.
	Constraints map[string]MetricConstraint `yaml:"constraints"`

	// ModelConstraints override Constraints for the named model.
	ModelConstraints map[string]map[string]MetricConstraint `yaml:"model_constraints"`

	// Objective is the metric tag used to rank passing configurations.
	Objective string `yaml:"objective"`

	// Results configures shipping of measurements to a results server.
	// An empty endpoint disables shipping.
	Results ResultsConfig `yaml:"results"`
}

// SearchConfig bounds the automatic run-config search dimensions.
type SearchConfig struct {
	// MaxConcurrency caps the concurrency dimension (default 1024).
	MaxConcurrency int `yaml:"max_concurrency"`

	// MinConcurrency floors the concurrency dimension (default 1).
	MinConcurrency int `yaml:"min_concurrency"`

	// MaxBatchSize caps the batch-size dimension (default 128).
	MaxBatchSize int `yaml:"max_batch_size"`
}

// MetricConstraint bounds one metric. Zero-valued bounds are inactive.
type MetricConstraint struct {
	// Min is the smallest acceptable value (e.g. a throughput floor).
	Min float64 `yaml:"min"`

	// Max is the largest acceptable value (e.g. a latency ceiling).
	Max float64 `yaml:"max"`
}

// ResultsConfig configures delivery of measurements to the results server.
type ResultsConfig struct {
	// Endpoint is the results server base URL, e.g. "http://localhost:8080".
	Endpoint string `yaml:"endpoint"`

	// BufferSize is the maximum number of measurements held in memory while
	// the server is unreachable (default 256).
	BufferSize int `yaml:"buffer_size"`

	// Header is the HTTP header name the API key is sent in.
	Header string `yaml:"header"`

	// KeyEnv is the name of the environment variable holding the key value.
	KeyEnv string `yaml:"key_env"`
}

// Key returns the API key resolved from the environment.
// Returns empty string if KeyEnv is unset or the variable is not found.
func (r ResultsConfig) Key() string {
	if r.KeyEnv == "" {
		return ""
	}
	return os.Getenv(r.KeyEnv)
}

// FlagMap is an ordered flag-name → value mapping. Values keep the literal
// scalar text from the YAML document: `grpc-use-ssl: true` yields "true" and
// `ssl-grpc-use-ssl: '1'` yields "1", so flags reach the external process
// exactly as the profile author wrote them.
type FlagMap struct {
	keys   []string
	values map[string]string
}

// UnmarshalYAML decodes a YAML mapping node, preserving key order and the
// literal text of every scalar value.
func (f *FlagMap) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("flag map: expected mapping, got %s", nodeKind(node))
	}
	f.keys = nil
	f.values = make(map[string]string, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		k, v := node.Content[i], node.Content[i+1]
		if v.Kind != yaml.ScalarNode {
			return fmt.Errorf("flag map: value for %q must be a scalar", k.Value)
		}
		if _, dup := f.values[k.Value]; dup {
			return fmt.Errorf("flag map: duplicate flag %q", k.Value)
		}
		f.keys = append(f.keys, k.Value)
		f.values[k.Value] = v.Value
	}
	return nil
}

// Get returns the value for flag, or empty string when absent.
func (f FlagMap) Get(flag string) string {
	return f.values[flag]
}

// Lookup returns the value for flag and whether it is present.
func (f FlagMap) Lookup(flag string) (string, bool) {
	v, ok := f.values[flag]
	return v, ok
}

// Bool reports whether flag is set to a truthy value ("true" or "1").
func (f FlagMap) Bool(flag string) bool {
	switch f.values[flag] {
	case "true", "1":
		return true
	}
	return false
}

// Keys returns the flag names in document order.
func (f FlagMap) Keys() []string {
	out := make([]string, len(f.keys))
	copy(out, f.keys)
	return out
}

// Len returns the number of flags.
func (f FlagMap) Len() int {
	return len(f.keys)
}

func nodeKind(n *yaml.Node) string {
	switch n.Kind {
	case yaml.ScalarNode:
		return "scalar"
	case yaml.SequenceNode:
		return "sequence"
	case yaml.MappingNode:
		return "mapping"
	default:
		return "node"
	}
}

// Load reads and parses the YAML profile config at path.
// Missing optional fields are filled with sensible defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file: %w", err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		PerfAnalyzerPath:   DefaultPerfAnalyzerPath,
		TritonServerPath:   DefaultServerPath,
		TritonLaunchMode:   DefaultLaunchMode,
		TritonGRPCEndpoint: DefaultServerGRPCEndpoint,
		TritonMetricsURL:   DefaultServerMetricsURL,
		MeasurementTimeout: DefaultMeasurementTimeout,
		Objective:          DefaultObjective,
		Search: SearchConfig{
			MaxConcurrency: DefaultSearchMaxConc,
			MinConcurrency: 1,
			MaxBatchSize:   DefaultSearchMaxBatch,
		},
		Results: ResultsConfig{
			BufferSize: 256,
		},
	}
}

// validate checks required fields and structural constraints.
func validate(cfg *Config) error {
	if len(cfg.ProfileModels) == 0 {
		return fmt.Errorf("profile_models must name at least one model")
	}
	for i, m := range cfg.ProfileModels {
		if m == "" {
			return fmt.Errorf("profile_models[%d] is empty", i)
		}
	}
	for i, b := range cfg.BatchSizes {
		if b <= 0 {
			return fmt.Errorf("batch_sizes[%d] = %d must be positive", i, b)
		}
	}
	for i, c := range cfg.Concurrency {
		if c <= 0 {
			return fmt.Errorf("concurrency[%d] = %d must be positive", i, c)
		}
	}
	if cfg.RunConfigSearchDisable && (len(cfg.BatchSizes) == 0 || len(cfg.Concurrency) == 0) {
		return fmt.Errorf("batch_sizes and concurrency are required when run_config_search_disable is set")
	}

	switch cfg.TritonLaunchMode {
	case "local", "remote":
	default:
		return fmt.Errorf("unknown triton_launch_mode %q", cfg.TritonLaunchMode)
	}

	if err := validateBoolFlags(cfg.PerfAnalyzerFlags, "perf_analyzer_flags",
		"ssl-grpc-use-ssl"); err != nil {
		return err
	}
	if err := validateBoolFlags(cfg.TritonServerFlags, "triton_server_flags",
		"grpc-use-ssl", "grpc-use-ssl-mutual"); err != nil {
		return err
	}

	if cfg.Search.MaxConcurrency < cfg.Search.MinConcurrency {
		return fmt.Errorf("run_config_search.max_concurrency %d is below min_concurrency %d",
			cfg.Search.MaxConcurrency, cfg.Search.MinConcurrency)
	}
	if cfg.Search.MinConcurrency <= 0 {
		return fmt.Errorf("run_config_search.min_concurrency must be positive")
	}
	if cfg.Search.MaxBatchSize <= 0 {
		return fmt.Errorf("run_config_search.max_batch_size must be positive")
	}

	if err := validateConstraints("constraints", cfg.Constraints); err != nil {
		return err
	}
	for model, set := range cfg.ModelConstraints {
		if err := validateConstraints("model_constraints."+model, set); err != nil {
			return err
		}
	}

	if cfg.MeasurementTimeout <= 0 {
		return fmt.Errorf("measurement_timeout must be positive")
	}
	if cfg.Results.Endpoint != "" && cfg.Results.BufferSize <= 0 {
		return fmt.Errorf("results.buffer_size must be positive")
	}
	return nil
}

// validateConstraints rejects structurally invalid bounds: negative values,
// or a min above max when both are set.
func validateConstraints(section string, set map[string]MetricConstraint) error {
	for tag, bound := range set {
		if bound.Min < 0 || bound.Max < 0 {
			return fmt.Errorf("%s.%s: bounds must not be negative", section, tag)
		}
		if bound.Min != 0 && bound.Max != 0 && bound.Min > bound.Max {
			return fmt.Errorf("%s.%s: min %v exceeds max %v", section, tag, bound.Min, bound.Max)
		}
	}
	return nil
}

// validateBoolFlags rejects values other than true/false/1/0 for flags that
// toggle SSL behaviour. A typo here would silently disable TLS.
func validateBoolFlags(m FlagMap, section string, flags ...string) error {
	for _, flag := range flags {
		v, ok := m.Lookup(flag)
		if !ok {
			continue
		}
		switch v {
		case "true", "false", "1", "0":
		default:
			return fmt.Errorf("%s: %s must be true/false/1/0, got %q", section, flag, v)
		}
	}
	return nil
}

// SSLEnabled reports whether the perf-analyzer side requests gRPC SSL.
func (c *Config) SSLEnabled() bool {
	return c.PerfAnalyzerFlags.Bool("ssl-grpc-use-ssl")
}

// ConstraintsFor returns the effective constraint set for model: the
// per-model overrides when present, otherwise the default constraints.
func (c *Config) ConstraintsFor(model string) map[string]MetricConstraint {
	if mc, ok := c.ModelConstraints[model]; ok {
		return mc
	}
	return c.Constraints
}
