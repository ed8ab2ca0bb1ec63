// Package config provides unified configuration for the mcluhan engine.
//
// Configuration is loaded with a layered approach:
//  1. Built-in defaults
//  2. YAML config file (discovered or explicitly specified)
//  3. Environment variable overrides (MCLUHAN_ prefix)
//  4. File reference resolution (_file suffix fields)
//  5. Validation
package config

// Config holds all configuration for the engine.
type Config struct {
	Orchestrator  OrchestratorConfig  `yaml:"orchestrator"`
	Backends      []BackendConfig     `yaml:"backends"`
	Observability ObservabilityConfig `yaml:"observability"`
	Logging       LoggingConfig       `yaml:"logging"`
}

// OrchestratorConfig holds batch scheduling and timeout settings.
type OrchestratorConfig struct {
	BatchSize  int `yaml:"batch_size"`  // default: 5
	TimeoutMs  int `yaml:"timeout_ms"`  // per-unit timeout, default: 30000
	WatchdogMs int `yaml:"watchdog_ms"` // inter-event watchdog, 0 keeps the built-in default
}

// BackendConfig describes one upstream model backend.
type BackendConfig struct {
	// Provider names the stream format this backend speaks; requests
	// carrying this provider are routed here.
	Provider   string            `yaml:"provider"`
	BaseURL    string            `yaml:"base_url"` // required
	Path       string            `yaml:"path"`     // default: "/v1/chat/completions"
	APIKey     string            `yaml:"api_key"`  // optional
	APIKeyFile string            `yaml:"api_key_file"`
	Headers    map[string]string `yaml:"headers"`
}

// ObservabilityConfig holds monitoring and instrumentation settings.
type ObservabilityConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`
}

// MetricsConfig holds Prometheus metrics endpoint settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"` // default: true
	Port    int    `yaml:"port"`    // default: 9090
	Path    string `yaml:"path"`    // default: "/metrics"
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // "trace", "debug", "info", "warn", "error", default: "info"
	Format string `yaml:"format"` // "text" or "json", default: "text"

	// Debug lists enabled debug categories, comma-separated. The
	// MCLUHAN_DEBUG environment variable takes precedence.
	Debug string `yaml:"debug"`
}

// Defaults returns a Config populated with built-in defaults.
func Defaults() Config {
	return Config{
		Orchestrator: OrchestratorConfig{
			BatchSize: 5,
			TimeoutMs: 30000,
		},
		Observability: ObservabilityConfig{
			Metrics: MetricsConfig{
				Enabled: true,
				Port:    9090,
				Path:    "/metrics",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}
