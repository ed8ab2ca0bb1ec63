package api

import "fmt"

// ErrorType represents the category of a stream failure.
type ErrorType string

const (
	// ErrorTypeTransport covers network and socket failures before or
	// during a stream.
	ErrorTypeTransport ErrorType = "transport_error"

	// ErrorTypeProtocol covers unparseable or unexpected framing that
	// prevents any further progress. A single malformed line is swallowed
	// by adapters and never surfaces as an error.
	ErrorTypeProtocol ErrorType = "protocol_error"

	// ErrorTypeTimeout means the watchdog fired before a terminal event.
	ErrorTypeTimeout ErrorType = "timeout"

	// ErrorTypeEmptyStream means the stream closed with zero content and
	// no explicit upstream error. Flagged distinctly from a legitimate
	// empty response because it typically masks a hidden upstream failure.
	ErrorTypeEmptyStream ErrorType = "empty_stream"

	// ErrorTypeUpstream means the provider explicitly signaled an error.
	ErrorTypeUpstream ErrorType = "upstream_error"

	// ErrorTypeCancelled means the caller cancelled the unit externally.
	ErrorTypeCancelled ErrorType = "cancelled"
)

// StreamError represents a structured stream failure with type, provider,
// and message. It is the only error kind adapters and the stream consumer
// produce, so the orchestrator can classify failures without string matching.
type StreamError struct {
	Type     ErrorType `json:"type"`
	Provider string    `json:"provider,omitempty"`
	Message  string    `json:"message"`
	Cause    error     `json:"-"`
}

// Error implements the error interface.
func (e *StreamError) Error() string {
	if e.Provider != "" {
		return fmt.Sprintf("%s: %s (provider: %s)", e.Type, e.Message, e.Provider)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap exposes the underlying cause, if any.
func (e *StreamError) Unwrap() error {
	return e.Cause
}

// NewTransportError creates a StreamError for network-level failures.
func NewTransportError(provider, message string, cause error) *StreamError {
	return &StreamError{
		Type:     ErrorTypeTransport,
		Provider: provider,
		Message:  message,
		Cause:    cause,
	}
}

// NewProtocolError creates a StreamError for framing corruption that
// prevents further progress.
func NewProtocolError(provider, message string) *StreamError {
	return &StreamError{
		Type:     ErrorTypeProtocol,
		Provider: provider,
		Message:  message,
	}
}

// NewTimeoutError creates a StreamError for a fired watchdog.
func NewTimeoutError(provider, message string) *StreamError {
	return &StreamError{
		Type:     ErrorTypeTimeout,
		Provider: provider,
		Message:  message,
	}
}

// NewEmptyStreamError creates a StreamError for a stream that closed
// without producing any content.
func NewEmptyStreamError(provider string) *StreamError {
	return &StreamError{
		Type:     ErrorTypeEmptyStream,
		Provider: provider,
		Message:  "stream ended with no content",
	}
}

// NewUpstreamError creates a StreamError for an explicit provider error event.
func NewUpstreamError(provider, message string) *StreamError {
	return &StreamError{
		Type:     ErrorTypeUpstream,
		Provider: provider,
		Message:  message,
	}
}

// NewCancelledError creates a StreamError for external cancellation.
func NewCancelledError(provider string) *StreamError {
	return &StreamError{
		Type:     ErrorTypeCancelled,
		Provider: provider,
		Message:  "request cancelled by caller",
	}
}
