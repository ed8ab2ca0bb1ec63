package engine

import "time"

// DefaultBatchSize bounds peak concurrency when the config leaves it unset.
const DefaultBatchSize = 5

// DefaultTimeout is the per-unit timeout when the config and the request
// both leave it unset.
const DefaultTimeout = 30 * time.Second

// Config holds configuration for the orchestrator.
type Config struct {
	// BatchSize is the maximum number of units dispatched concurrently.
	// Zero or negative means the default of 5.
	BatchSize int

	// Timeout bounds each unit from dispatch to terminal resolution.
	// A request-level timeout takes precedence. Zero or negative means
	// the default of 30s.
	Timeout time.Duration

	// Watchdog overrides the stream-level watchdog timer. Zero keeps
	// the stream package default.
	Watchdog time.Duration
}

// batchSize returns the effective batch size.
func (c Config) batchSize() int {
	if c.BatchSize <= 0 {
		return DefaultBatchSize
	}
	return c.BatchSize
}

// timeout returns the effective per-unit timeout for a request-level
// override (zero means no override).
func (c Config) timeout(override time.Duration) time.Duration {
	if override > 0 {
		return override
	}
	if c.Timeout <= 0 {
		return DefaultTimeout
	}
	return c.Timeout
}
