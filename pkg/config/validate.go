package config

import "fmt"

var validLogLevels = map[string]bool{
	"trace": true,
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validLogFormats = map[string]bool{
	"text": true,
	"json": true,
}

// Validate checks the configuration for invalid or inconsistent values.
func (c *Config) Validate() error {
	if c.Orchestrator.BatchSize < 0 {
		return fmt.Errorf("orchestrator.batch_size must not be negative, got %d", c.Orchestrator.BatchSize)
	}
	if c.Orchestrator.TimeoutMs < 0 {
		return fmt.Errorf("orchestrator.timeout_ms must not be negative, got %d", c.Orchestrator.TimeoutMs)
	}
	if c.Orchestrator.WatchdogMs < 0 {
		return fmt.Errorf("orchestrator.watchdog_ms must not be negative, got %d", c.Orchestrator.WatchdogMs)
	}

	seen := make(map[string]bool)
	for i, b := range c.Backends {
		if b.Provider == "" {
			return fmt.Errorf("backends[%d].provider is required", i)
		}
		if b.BaseURL == "" {
			return fmt.Errorf("backends[%d].base_url is required", i)
		}
		if seen[b.Provider] {
			return fmt.Errorf("backends[%d]: duplicate provider %q", i, b.Provider)
		}
		seen[b.Provider] = true
	}

	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of debug, info, warn, error; got %q", c.Logging.Level)
	}
	if !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}

	if c.Observability.Metrics.Enabled {
		if c.Observability.Metrics.Port <= 0 || c.Observability.Metrics.Port > 65535 {
			return fmt.Errorf("observability.metrics.port must be in 1..65535, got %d", c.Observability.Metrics.Port)
		}
	}

	return nil
}
