package stream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/PaulJPhilp/mcluhan/pkg/api"
	"github.com/PaulJPhilp/mcluhan/pkg/provider"
)

// DefaultWatchdog is the default independent timeout that forcibly fails
// a stream when no terminal event arrives in time. It is separate from
// any transport-level timeout.
const DefaultWatchdog = 30 * time.Second

// eventBufferSize is the adapter event channel capacity. Buffering keeps
// the adapter from blocking on every single delta.
const eventBufferSize = 16

// OnChunkFunc observes each token delta together with the text
// accumulated so far. The accumulated text never shrinks between calls.
type OnChunkFunc func(delta, accumulated string)

// Option configures a Stream at construction time.
type Option func(*Stream)

// WithLogger sets the logger used for lifecycle trace events.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Stream) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithWatchdog overrides the watchdog timeout. Non-positive values keep
// the default.
func WithWatchdog(d time.Duration) Option {
	return func(s *Stream) {
		if d > 0 {
			s.watchdog = d
		}
	}
}

// WithOnChunk registers a per-delta observer.
func WithOnChunk(fn OnChunkFunc) Option {
	return func(s *Stream) {
		s.onChunk = fn
	}
}

// Outcome is what a consumed stream produced, populated on success and
// failure alike so partial content is never discarded.
type Outcome struct {
	// Text is the accumulated content.
	Text string

	// ChunkCount is the number of token deltas observed.
	ChunkCount int

	// TimeToFirstToken is the latency from consume start to the first
	// token delta. Nil when no delta was ever observed.
	TimeToFirstToken *time.Duration
}

// Stream is a handle over one streaming generation request. Construction
// is side-effect-free; the network call begins in Consume. A Stream makes
// a single forward pass and is not restartable.
type Stream struct {
	req       *api.StreamRequest
	adapter   provider.Adapter
	transport provider.Transport

	logger   *slog.Logger
	watchdog time.Duration
	onChunk  OnChunkFunc

	phase    api.Phase
	consumed bool
}

// New builds a stream handle. No I/O happens until Consume is called.
func New(req *api.StreamRequest, adapter provider.Adapter, transport provider.Transport, opts ...Option) *Stream {
	s := &Stream{
		req:       req,
		adapter:   adapter,
		transport: transport,
		logger:    slog.Default(),
		watchdog:  DefaultWatchdog,
		phase:     api.PhaseCreated,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Phase returns the current consumption phase.
func (s *Stream) Phase() api.Phase {
	return s.phase
}

// transition moves the stream to the next phase, logging any violation
// of the transition table instead of failing the unit.
func (s *Stream) transition(to api.Phase) {
	if err := api.ValidatePhaseTransition(s.phase, to); err != nil {
		s.logger.Error("phase transition violation",
			"provider", s.req.Provider,
			"model", s.req.Model,
			"error", err.Error(),
		)
	}
	s.phase = to
}

// Consume opens the transport and drives the adapter's event sequence to
// a terminal phase. The returned Outcome is non-nil on every path; the
// error is nil exactly when the stream completed normally.
//
// The underlying reader is released on every exit path: normal
// completion, observed error, and watchdog-triggered cancellation.
func (s *Stream) Consume(ctx context.Context) (*Outcome, error) {
	if s.consumed {
		return &Outcome{}, api.NewProtocolError(s.req.Provider, "stream already consumed")
	}
	s.consumed = true

	outcome := &Outcome{}
	start := time.Now()

	// The network call begins here, not at construction.
	s.transition(api.PhaseAwaitingFirstByte)
	body, err := s.transport.Open(ctx, s.req)
	if err != nil {
		s.transition(api.PhaseFailed)
		return outcome, s.classifyOpenError(ctx, err)
	}
	defer body.Close()

	// The parse context lets the watchdog stop the adapter without
	// affecting the caller's context.
	parseCtx, cancelParse := context.WithCancel(ctx)
	defer cancelParse()

	ch := make(chan api.StreamEvent, eventBufferSize)
	go func() {
		defer close(ch)
		defer func() {
			// A panicking adapter fails this unit, not the process.
			if r := recover(); r != nil {
				s.logger.Error("adapter panic",
					"provider", s.req.Provider,
					"model", s.req.Model,
					"panic", r,
				)
				ev := api.NewEvent(api.EventError, s.req.Provider)
				ev.Err = api.NewProtocolError(s.req.Provider,
					"adapter panic: "+fmt.Sprint(r))
				provider.Send(ctx, ch, ev)
			}
		}()
		s.adapter.Parse(parseCtx, body, ch)
	}()

	watchdog := time.NewTimer(s.watchdog)
	defer watchdog.Stop()

	var text strings.Builder
	finalFlushed := false

	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return s.onChannelClosed(outcome, &text, finalFlushed)
			}
			if s.phase == api.PhaseAwaitingFirstByte {
				s.transition(api.PhaseStreaming)
			}

			switch ev.Type {
			case api.EventTokenDelta:
				if outcome.TimeToFirstToken == nil {
					ttft := time.Since(start)
					outcome.TimeToFirstToken = &ttft
					s.logger.Debug("first token",
						"provider", s.req.Provider,
						"model", s.req.Model,
						"ttft", ttft,
					)
				}
				outcome.ChunkCount++
				text.WriteString(ev.Delta)
				if s.onChunk != nil {
					s.onChunk(ev.Delta, text.String())
				}

			case api.EventFinalMessage:
				// The adapter's final text is authoritative; it equals
				// the concatenated deltas by adapter contract.
				text.Reset()
				text.WriteString(ev.Text)
				finalFlushed = true
				s.transition(api.PhaseDraining)

			case api.EventComplete:
				s.transition(api.PhaseCompleted)
				outcome.Text = text.String()
				return outcome, nil

			case api.EventError:
				s.transition(api.PhaseFailed)
				outcome.Text = text.String()
				if ev.Err == nil {
					return outcome, api.NewUpstreamError(s.req.Provider, "provider signaled an error")
				}
				return outcome, ev.Err

			default:
				// Tool call and message part events do not affect the
				// text buffer; they still count as received content for
				// lifecycle purposes.
			}

		case <-watchdog.C:
			s.transition(api.PhaseFailed)
			cancelParse()
			outcome.Text = text.String()
			s.logger.Warn("watchdog timeout",
				"provider", s.req.Provider,
				"model", s.req.Model,
				"watchdog", s.watchdog,
			)
			return outcome, api.NewTimeoutError(s.req.Provider,
				"no terminal event within "+s.watchdog.String())

		case <-ctx.Done():
			s.transition(api.PhaseFailed)
			outcome.Text = text.String()
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return outcome, api.NewTimeoutError(s.req.Provider, "unit timeout elapsed")
			}
			return outcome, api.NewCancelledError(s.req.Provider)
		}
	}
}

// onChannelClosed resolves the stream when the adapter stops producing
// without a terminal event.
func (s *Stream) onChannelClosed(outcome *Outcome, text *strings.Builder, finalFlushed bool) (*Outcome, error) {
	outcome.Text = text.String()

	// Natural close after the final message was flushed counts as
	// completion even if the Complete event was lost.
	if finalFlushed {
		s.transition(api.PhaseCompleted)
		return outcome, nil
	}

	// No event of any kind arrived before the close.
	if s.phase == api.PhaseAwaitingFirstByte {
		s.transition(api.PhaseFailed)
		return outcome, api.NewEmptyStreamError(s.req.Provider)
	}

	s.transition(api.PhaseFailed)
	return outcome, api.NewTransportError(s.req.Provider, "stream closed before completion", nil)
}

// classifyOpenError maps a transport open failure to the taxonomy.
func (s *Stream) classifyOpenError(ctx context.Context, err error) error {
	var streamErr *api.StreamError
	if errors.As(err, &streamErr) {
		return err
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return api.NewTimeoutError(s.req.Provider, "unit timeout elapsed before stream opened")
	}
	if ctx.Err() != nil {
		return api.NewCancelledError(s.req.Provider)
	}
	return api.NewTransportError(s.req.Provider, "failed to open stream: "+err.Error(), err)
}
