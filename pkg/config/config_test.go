package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	if cfg.Orchestrator.BatchSize != 5 {
		t.Errorf("default batch_size = %d, want 5", cfg.Orchestrator.BatchSize)
	}
	if cfg.Orchestrator.TimeoutMs != 30000 {
		t.Errorf("default timeout_ms = %d, want 30000", cfg.Orchestrator.TimeoutMs)
	}
	if !cfg.Observability.Metrics.Enabled {
		t.Error("metrics disabled by default, want enabled")
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("default log level = %q, want info", cfg.Logging.Level)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Defaults() does not validate: %v", err)
	}
}

func TestLoadYAMLFile(t *testing.T) {
	path := writeTempConfig(t, `
orchestrator:
  batch_size: 3
  timeout_ms: 10000
backends:
  - provider: openai
    base_url: http://localhost:8000
logging:
  level: debug
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}

	if cfg.Orchestrator.BatchSize != 3 {
		t.Errorf("batch_size = %d, want 3", cfg.Orchestrator.BatchSize)
	}
	if cfg.Orchestrator.TimeoutMs != 10000 {
		t.Errorf("timeout_ms = %d, want 10000", cfg.Orchestrator.TimeoutMs)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("log level = %q, want debug", cfg.Logging.Level)
	}
	// Fields absent from the file keep their defaults.
	if cfg.Logging.Format != "text" {
		t.Errorf("log format = %q, want default text", cfg.Logging.Format)
	}
	if len(cfg.Backends) != 1 || cfg.Backends[0].Provider != "openai" {
		t.Errorf("backends = %+v", cfg.Backends)
	}
}

func TestLoadMissingExplicitPath(t *testing.T) {
	// An explicit path that does not exist is a hard error.
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("Load of a missing explicit path succeeded")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("MCLUHAN_BATCH_SIZE", "7")
	t.Setenv("MCLUHAN_TIMEOUT_MS", "5000")
	t.Setenv("MCLUHAN_LOG_LEVEL", "warn")

	path := writeTempConfig(t, "orchestrator:\n  batch_size: 2\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}

	if cfg.Orchestrator.BatchSize != 7 {
		t.Errorf("batch_size = %d, want env override 7", cfg.Orchestrator.BatchSize)
	}
	if cfg.Orchestrator.TimeoutMs != 5000 {
		t.Errorf("timeout_ms = %d, want 5000", cfg.Orchestrator.TimeoutMs)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("log level = %q, want warn", cfg.Logging.Level)
	}
}

func TestEnvOverrideInvalidNumberIgnored(t *testing.T) {
	t.Setenv("MCLUHAN_BATCH_SIZE", "not-a-number")

	path := writeTempConfig(t, "orchestrator:\n  batch_size: 4\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Orchestrator.BatchSize != 4 {
		t.Errorf("batch_size = %d, want file value 4", cfg.Orchestrator.BatchSize)
	}
}

func TestAPIKeyFileReference(t *testing.T) {
	keyPath := filepath.Join(t.TempDir(), "key")
	if err := os.WriteFile(keyPath, []byte("  sk-secret\n"), 0o600); err != nil {
		t.Fatalf("write key file: %v", err)
	}

	path := writeTempConfig(t, `
backends:
  - provider: anthropic
    base_url: http://localhost:8001
    api_key_file: `+keyPath+`
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Backends[0].APIKey != "sk-secret" {
		t.Errorf("api_key = %q, want trimmed file content", cfg.Backends[0].APIKey)
	}
}

func TestAPIKeyFileDoesNotOverrideExplicit(t *testing.T) {
	keyPath := filepath.Join(t.TempDir(), "key")
	os.WriteFile(keyPath, []byte("from-file"), 0o600)

	path := writeTempConfig(t, `
backends:
  - provider: openai
    base_url: http://localhost:8000
    api_key: explicit
    api_key_file: `+keyPath+`
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Backends[0].APIKey != "explicit" {
		t.Errorf("api_key = %q, explicit value must win", cfg.Backends[0].APIKey)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults valid", func(c *Config) {}, false},
		{"negative batch size", func(c *Config) { c.Orchestrator.BatchSize = -1 }, true},
		{"negative timeout", func(c *Config) { c.Orchestrator.TimeoutMs = -1 }, true},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }, true},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, true},
		{"backend missing provider", func(c *Config) {
			c.Backends = []BackendConfig{{BaseURL: "http://x"}}
		}, true},
		{"backend missing base url", func(c *Config) {
			c.Backends = []BackendConfig{{Provider: "openai"}}
		}, true},
		{"duplicate backend provider", func(c *Config) {
			c.Backends = []BackendConfig{
				{Provider: "openai", BaseURL: "http://a"},
				{Provider: "openai", BaseURL: "http://b"},
			}
		}, true},
		{"bad metrics port", func(c *Config) { c.Observability.Metrics.Port = 70000 }, true},
		{"metrics port ignored when disabled", func(c *Config) {
			c.Observability.Metrics.Enabled = false
			c.Observability.Metrics.Port = 0
		}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestTimeoutConversion(t *testing.T) {
	cfg := Defaults()
	if got := time.Duration(cfg.Orchestrator.TimeoutMs) * time.Millisecond; got != 30*time.Second {
		t.Errorf("default timeout = %v, want 30s", got)
	}
}
