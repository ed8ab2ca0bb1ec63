package engine

import "github.com/PaulJPhilp/mcluhan/pkg/api"

// Callbacks are the per-unit lifecycle hooks invoked by RunBatch. All
// fields are optional; nil callbacks are skipped.
//
// Ordering per unit, strictly:
//
//	OnStart -> zero or more OnChunk -> exactly one OnComplete ->
//	OnError iff the result's Success flag is false
//
// OnStart fires before the unit's network call begins. The accumulated
// text passed to OnChunk is monotonically non-decreasing in length
// across consecutive calls for the same unit. Callbacks are invoked from
// the unit's own goroutine; units execute independently, so callers need
// no cross-unit locking as long as their callbacks only touch per-unit
// state (or synchronize shared state themselves).
type Callbacks struct {
	// OnStart is invoked before the unit's network call begins.
	OnStart func(model string)

	// OnChunk is invoked for every token delta with the delta and the
	// text accumulated so far.
	OnChunk func(model, delta, accumulated string)

	// OnComplete is invoked exactly once with the unit's terminal result,
	// for successes and failures alike.
	OnComplete func(result api.ModelStreamResult)

	// OnError is invoked after OnComplete when the result is a failure.
	OnError func(model string, err error)
}

func (c Callbacks) fireStart(model string) {
	if c.OnStart != nil {
		c.OnStart(model)
	}
}

func (c Callbacks) fireChunk(model, delta, accumulated string) {
	if c.OnChunk != nil {
		c.OnChunk(model, delta, accumulated)
	}
}

func (c Callbacks) fireComplete(result api.ModelStreamResult) {
	if c.OnComplete != nil {
		c.OnComplete(result)
	}
}

func (c Callbacks) fireError(model string, err error) {
	if c.OnError != nil {
		c.OnError(model, err)
	}
}
