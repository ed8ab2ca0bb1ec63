package api

import "fmt"

// Phase is a state in the single-stream consumption lifecycle.
type Phase string

const (
	// PhaseCreated is the initial state: a handle exists but no I/O has
	// happened yet.
	PhaseCreated Phase = "created"

	// PhaseAwaitingFirstByte means the network call has started but no
	// event of any kind has been received.
	PhaseAwaitingFirstByte Phase = "awaiting_first_byte"

	// PhaseStreaming means at least one event has been received.
	PhaseStreaming Phase = "streaming"

	// PhaseDraining means a FinalMessage has been flushed and the stream
	// is winding down toward Complete.
	PhaseDraining Phase = "draining"

	// PhaseCompleted is the successful terminal state.
	PhaseCompleted Phase = "completed"

	// PhaseFailed is the failure terminal state, reachable from any
	// non-terminal phase.
	PhaseFailed Phase = "failed"
)

// Terminal reports whether the phase allows no outgoing transitions.
func (p Phase) Terminal() bool {
	return p == PhaseCompleted || p == PhaseFailed
}

var validPhaseTransitions = map[Phase][]Phase{
	PhaseCreated:           {PhaseAwaitingFirstByte, PhaseFailed},
	PhaseAwaitingFirstByte: {PhaseStreaming, PhaseFailed},
	PhaseStreaming:         {PhaseStreaming, PhaseDraining, PhaseCompleted, PhaseFailed},
	PhaseDraining:          {PhaseCompleted, PhaseFailed},
	PhaseCompleted:         {}, // terminal
	PhaseFailed:            {}, // terminal
}

// ValidatePhaseTransition checks whether a consumption-phase transition is
// valid. Terminal phases (completed, failed) do not allow outgoing
// transitions.
func ValidatePhaseTransition(from, to Phase) error {
	allowed, exists := validPhaseTransitions[from]
	if !exists {
		return fmt.Errorf("unknown phase %q", from)
	}
	for _, p := range allowed {
		if p == to {
			return nil
		}
	}
	return fmt.Errorf("invalid phase transition from %s to %s", from, to)
}
