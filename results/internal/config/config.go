package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values for the results-server configuration.
const (
	DefaultHTTPPort = 8080
	DefaultRunTTL   = 24 * time.Hour
)

// Config holds the server-side configuration parsed from the `results:`
// section of the config file. Other top-level keys in the same file are
// ignored.
type Config struct {
	Results ResultsConfig `yaml:"results"`
}

// ResultsConfig holds all results-server settings.
type ResultsConfig struct {
	// HTTPPort is the port the REST API and WebSocket hub listen on
	// (default 8080).
	HTTPPort int `yaml:"http_port"`

	// Auth configures how incoming HTTP clients are authenticated.
	Auth AuthConfig `yaml:"auth"`

	// Retention controls in-memory run retention.
	Retention RetentionConfig `yaml:"retention"`
}

// AuthConfig controls client authentication.
type AuthConfig struct {
	// Mode is one of: apikey | none.
	Mode string `yaml:"mode"`

	// KeyEnv is the name of the environment variable holding the expected
	// API key. Used when Mode == "apikey".
	KeyEnv string `yaml:"key_env"`

	// Header is the HTTP header name to read the key from.
	// Defaults to "x-api-key" if empty.
	Header string `yaml:"header"`
}

// Key returns the expected API key resolved from the environment.
func (a AuthConfig) Key() string {
	if a.KeyEnv == "" {
		return ""
	}
	return os.Getenv(a.KeyEnv)
}

// EffectiveHeader returns the configured header name, or the default "x-api-key".
func (a AuthConfig) EffectiveHeader() string {
	if a.Header != "" {
		return a.Header
	}
	return "x-api-key"
}

// RetentionConfig controls in-memory run retention.
type RetentionConfig struct {
	// TTL is how long a run remains in the store after its last measurement.
	// When TTL elapses without a new measurement for a run, the entry is
	// evicted. Default: 24h.
	TTL time.Duration `yaml:"ttl"`
}

// Load reads and parses the config file at path.
// Missing fields are filled with defaults before validation.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("results config: read %q: %w", path, err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("results config: parse yaml: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("results config: %w", err)
	}

	return cfg, nil
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		Results: ResultsConfig{
			HTTPPort: DefaultHTTPPort,
			Retention: RetentionConfig{
				TTL: DefaultRunTTL,
			},
		},
	}
}

// validate checks structural constraints on the parsed configuration.
func validate(cfg *Config) error {
	if cfg.Results.HTTPPort <= 0 || cfg.Results.HTTPPort > 65535 {
		return fmt.Errorf("results.http_port %d is out of range [1, 65535]", cfg.Results.HTTPPort)
	}
	switch cfg.Results.Auth.Mode {
	case "apikey", "none", "":
	default:
		return fmt.Errorf("results.auth.mode %q unknown: want apikey|none", cfg.Results.Auth.Mode)
	}
	if cfg.Results.Retention.TTL < 0 {
		return fmt.Errorf("results.retention.ttl must not be negative")
	}
	return nil
}
