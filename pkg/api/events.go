package api

import "time"

// EventType classifies a unified streaming event. The set is closed:
// consumers are expected to switch exhaustively over it.
type EventType int

const (
	EventTokenDelta      EventType = iota // Incremental text content
	EventMessagePart                      // A completed non-text message part
	EventToolCallStarted                  // Tool call opened (carries id and name)
	EventToolCallDelta                    // Incremental tool call arguments
	EventToolCallReady                    // Tool call arguments complete
	EventToolResult                       // Tool result surfaced by the provider
	EventFinalMessage                     // Full accumulated text, exactly once
	EventError                            // Stream failed, exactly once, nothing follows
	EventComplete                         // Stream finished, exactly once, nothing follows
)

// String returns the event type name for logging and test output.
func (t EventType) String() string {
	switch t {
	case EventTokenDelta:
		return "token_delta"
	case EventMessagePart:
		return "message_part"
	case EventToolCallStarted:
		return "tool_call_started"
	case EventToolCallDelta:
		return "tool_call_delta"
	case EventToolCallReady:
		return "tool_call_ready"
	case EventToolResult:
		return "tool_result"
	case EventFinalMessage:
		return "final_message"
	case EventError:
		return "error"
	case EventComplete:
		return "complete"
	default:
		return "unknown"
	}
}

// StreamEvent is a single event in the unified streaming sequence
// produced by a provider adapter.
//
// Sequence invariants, enforced by adapters:
//   - no event follows EventComplete or EventError
//   - EventFinalMessage immediately precedes EventComplete
type StreamEvent struct {
	// Type indicates what kind of event this is.
	Type EventType

	// Timestamp records when the event was produced by the adapter.
	Timestamp time.Time

	// Provider tags the adapter that produced the event.
	Provider string

	// Delta contains incremental text (EventTokenDelta) or incremental
	// tool call arguments (EventToolCallDelta).
	Delta string

	// Text carries the full accumulated text on EventFinalMessage, or a
	// completed part's text on EventMessagePart.
	Text string

	// ToolCallID identifies the tool call for tool call events.
	ToolCallID string

	// ToolName is the tool name (populated on EventToolCallStarted and
	// EventToolCallReady).
	ToolName string

	// ToolArgs carries the complete argument payload on EventToolCallReady,
	// and the result payload on EventToolResult.
	ToolArgs string

	// Err is populated on EventError.
	Err error
}

// NewEvent creates a StreamEvent of the given type stamped with the
// current time and the producing provider's tag.
func NewEvent(t EventType, provider string) StreamEvent {
	return StreamEvent{
		Type:      t,
		Timestamp: time.Now(),
		Provider:  provider,
	}
}

// Terminal reports whether no further events may follow this one.
func (e StreamEvent) Terminal() bool {
	return e.Type == EventComplete || e.Type == EventError
}
