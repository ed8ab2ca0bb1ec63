package provider

import (
	"context"
	"io"

	"github.com/PaulJPhilp/mcluhan/pkg/api"
)

// Transport opens an already-authenticated byte stream for a request.
// It either returns a readable stream of UTF-8 bytes or fails before
// yielding any bytes. The engine makes no assumptions about auth,
// retries, or rate limiting at this layer.
//
// Implementations must be safe for concurrent use by multiple goroutines.
type Transport interface {
	// Open starts the network call for the given request and returns the
	// raw response body. The caller owns the ReadCloser and must close it
	// on every exit path.
	Open(ctx context.Context, req *api.StreamRequest) (io.ReadCloser, error)
}

// Adapter translates one provider's wire framing into the unified event
// sequence. The contract, enforced by every implementation:
//
//   - on finalization, emit exactly one EventFinalMessage carrying the
//     full text, then exactly one EventComplete, then stop
//   - on transport failure at any point, emit exactly one EventError and
//     stop; no further reads are attempted
//   - a single malformed line is skipped, never surfaced as an error
//
// The events channel is NOT closed by the adapter; the caller is
// responsible for closing it.
type Adapter interface {
	// Name returns the provider identifier this adapter serves
	// (e.g., "anthropic", "openai").
	Name() string

	// Parse reads raw bytes from body until a terminal event is emitted,
	// the stream ends, or ctx is cancelled, sending unified events on ch.
	Parse(ctx context.Context, body io.Reader, ch chan<- api.StreamEvent)
}
