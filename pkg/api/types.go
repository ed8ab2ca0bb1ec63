package api

import "time"

// Role identifies the author of a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
)

// Message is one entry in the conversation history sent with a request.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// SamplingParams holds optional generation parameters. Nil pointer fields
// are omitted from provider payloads so backend defaults apply.
type SamplingParams struct {
	Temperature *float64 `json:"temperature,omitempty"`
	TopP        *float64 `json:"top_p,omitempty"`
	MaxTokens   *int     `json:"max_tokens,omitempty"`
	Stop        []string `json:"stop,omitempty"`
}

// StreamRequest describes one model's single streaming generation request
// as scheduled within a batch.
type StreamRequest struct {
	// Model identifies the model to generate with.
	Model string `json:"model"`

	// Provider selects the adapter that understands the backend's framing.
	Provider string `json:"provider"`

	// Messages is the ordered conversation history.
	Messages []Message `json:"messages"`

	// System is an optional system prompt, prepended by the transport.
	System string `json:"system,omitempty"`

	// Params holds optional sampling parameters.
	Params *SamplingParams `json:"params,omitempty"`

	// Timeout bounds this unit's whole stream. Zero means the
	// orchestrator's configured default applies.
	Timeout time.Duration `json:"-"`

	// Cancel, when non-nil, cancels this unit externally. Affected units
	// still resolve to a ModelStreamResult marked failed.
	Cancel <-chan struct{} `json:"-"`
}

// Validate checks the request for structural problems before dispatch.
func (r *StreamRequest) Validate() *StreamError {
	if r.Model == "" {
		return NewProtocolError(r.Provider, "model is required")
	}
	if r.Provider == "" {
		return NewProtocolError("", "provider is required")
	}
	if len(r.Messages) == 0 && r.System == "" {
		return NewProtocolError(r.Provider, "at least one message is required")
	}
	return nil
}

// StreamMetrics holds per-unit latency and volume measurements.
type StreamMetrics struct {
	// TimeToFirstToken is the wall-clock time from dispatch to the first
	// TokenDelta. Nil when no TokenDelta was ever observed.
	TimeToFirstToken *time.Duration `json:"time_to_first_token,omitempty"`

	// TotalDuration is measured from unit dispatch to terminal resolution,
	// inclusive of failure and timeout paths.
	TotalDuration time.Duration `json:"total_duration"`

	// OutputTokens counts generated content fragments.
	OutputTokens int `json:"output_tokens"`
}

// ModelStreamResult is the terminal outcome of exactly one StreamRequest.
// It is created once by the orchestrator and never mutated afterward.
type ModelStreamResult struct {
	// Model is the model identifier from the originating request.
	Model string `json:"model"`

	// Provider is the provider identifier from the originating request.
	Provider string `json:"provider"`

	// Content is the accumulated text. On mid-stream failure any partial
	// content is preserved here.
	Content string `json:"content"`

	// Success reports whether the stream completed normally.
	Success bool `json:"success"`

	// ErrorMessage holds a human-readable failure description when
	// Success is false.
	ErrorMessage string `json:"error,omitempty"`

	// Duration is the elapsed time from dispatch to resolution.
	Duration time.Duration `json:"duration"`

	// ChunkCount is the number of TokenDelta events observed.
	ChunkCount int `json:"chunk_count"`

	// Metrics holds the latency and volume record for this unit.
	Metrics StreamMetrics `json:"metrics"`
}
