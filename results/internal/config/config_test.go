package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	p := filepath.Join(dir, "results.yaml")
	if err := os.WriteFile(p, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return p
}

func TestLoad_Defaults(t *testing.T) {
	p := writeConfig(t, `results: {}
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Results.HTTPPort != DefaultHTTPPort {
		t.Errorf("http_port: got %d, want %d", cfg.Results.HTTPPort, DefaultHTTPPort)
	}
	if cfg.Results.Retention.TTL != DefaultRunTTL {
		t.Errorf("retention.ttl: got %v, want %v", cfg.Results.Retention.TTL, DefaultRunTTL)
	}
}

func TestLoad_Full(t *testing.T) {
	p := writeConfig(t, `results:
  http_port: 9091
  auth:
    mode: apikey
    key_env: MY_KEY
    header: x-perf-key
  retention:
    ttl: 10m
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Results.HTTPPort != 9091 {
		t.Errorf("http_port: got %d, want 9091", cfg.Results.HTTPPort)
	}
	if cfg.Results.Auth.Mode != "apikey" {
		t.Errorf("auth.mode: got %q, want apikey", cfg.Results.Auth.Mode)
	}
	if cfg.Results.Auth.EffectiveHeader() != "x-perf-key" {
		t.Errorf("header: got %q, want x-perf-key", cfg.Results.Auth.EffectiveHeader())
	}
	if cfg.Results.Retention.TTL != 10*time.Minute {
		t.Errorf("retention.ttl: got %v, want 10m", cfg.Results.Retention.TTL)
	}
}

func TestLoad_DefaultHeader(t *testing.T) {
	p := writeConfig(t, `results:
  auth:
    mode: apikey
    key_env: K
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if h := cfg.Results.Auth.EffectiveHeader(); h != "x-api-key" {
		t.Errorf("EffectiveHeader: got %q, want x-api-key", h)
	}
}

func TestLoad_KeyEnvResolution(t *testing.T) {
	t.Setenv("TEST_RESULTS_KEY", "supersecret")
	p := writeConfig(t, `results:
  auth:
    mode: apikey
    key_env: TEST_RESULTS_KEY
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if k := cfg.Results.Auth.Key(); k != "supersecret" {
		t.Errorf("Key(): got %q, want supersecret", k)
	}
}

func TestLoad_UnknownAuthMode(t *testing.T) {
	p := writeConfig(t, `results:
  auth:
    mode: oauth2
`)
	if _, err := Load(p); err == nil {
		t.Fatal("expected error for unknown auth mode, got nil")
	}
}

func TestLoad_BadPort(t *testing.T) {
	p := writeConfig(t, `results:
  http_port: 70000
`)
	if _, err := Load(p); err == nil {
		t.Fatal("expected error for out-of-range port, got nil")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/path/results.yaml"); err == nil {
		t.Fatal("expected error for missing file, got nil")
	}
}
