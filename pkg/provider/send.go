package provider

import (
	"context"

	"github.com/PaulJPhilp/mcluhan/pkg/api"
)

// Send delivers an event on ch unless ctx is cancelled first. It returns
// false when the context won the race, which tells the adapter to stop
// producing. Without the select an adapter could block forever on a
// consumer that gave up after a watchdog timeout.
func Send(ctx context.Context, ch chan<- api.StreamEvent, ev api.StreamEvent) bool {
	select {
	case <-ctx.Done():
		return false
	case ch <- ev:
		return true
	}
}
