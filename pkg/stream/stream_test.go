package stream

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/PaulJPhilp/mcluhan/pkg/api"
	"github.com/PaulJPhilp/mcluhan/pkg/provider"
)

// scriptAdapter replays a fixed event sequence, optionally hanging
// afterward until the context is cancelled.
type scriptAdapter struct {
	name   string
	events []api.StreamEvent
	hang   bool
}

func (a *scriptAdapter) Name() string { return a.name }

func (a *scriptAdapter) Parse(ctx context.Context, body io.Reader, ch chan<- api.StreamEvent) {
	for _, ev := range a.events {
		if !provider.Send(ctx, ch, ev) {
			return
		}
	}
	if a.hang {
		<-ctx.Done()
	}
}

// trackedBody records whether the stream body was released.
type trackedBody struct {
	io.Reader
	closed atomic.Bool
}

func (b *trackedBody) Close() error {
	b.closed.Store(true)
	return nil
}

// fakeTransport returns a fixed body or error and records whether Open
// was ever called.
type fakeTransport struct {
	body   *trackedBody
	err    error
	opened atomic.Bool
}

func (t *fakeTransport) Open(ctx context.Context, req *api.StreamRequest) (io.ReadCloser, error) {
	t.opened.Store(true)
	if t.err != nil {
		return nil, t.err
	}
	return t.body, nil
}

func testRequest() *api.StreamRequest {
	return &api.StreamRequest{
		Model:    "test-model",
		Provider: "test",
		Messages: []api.Message{{Role: api.RoleUser, Content: "hi"}},
	}
}

func deltaEvent(text string) api.StreamEvent {
	ev := api.NewEvent(api.EventTokenDelta, "test")
	ev.Delta = text
	return ev
}

func finalEvent(text string) api.StreamEvent {
	ev := api.NewEvent(api.EventFinalMessage, "test")
	ev.Text = text
	return ev
}

func TestConsumeSuccess(t *testing.T) {
	adapter := &scriptAdapter{name: "test", events: []api.StreamEvent{
		deltaEvent("Hel"),
		deltaEvent("lo"),
		finalEvent("Hello"),
		api.NewEvent(api.EventComplete, "test"),
	}}
	transport := &fakeTransport{body: &trackedBody{Reader: strings.NewReader("")}}

	s := New(testRequest(), adapter, transport)
	outcome, err := s.Consume(context.Background())
	if err != nil {
		t.Fatalf("Consume error: %v", err)
	}
	if outcome.Text != "Hello" {
		t.Errorf("Text = %q, want Hello", outcome.Text)
	}
	if outcome.ChunkCount != 2 {
		t.Errorf("ChunkCount = %d, want 2", outcome.ChunkCount)
	}
	if outcome.TimeToFirstToken == nil {
		t.Error("TimeToFirstToken is nil, want a value")
	}
	if s.Phase() != api.PhaseCompleted {
		t.Errorf("Phase = %s, want completed", s.Phase())
	}
	if !transport.body.closed.Load() {
		t.Error("stream body was not released on completion")
	}
}

func TestNewPerformsNoIO(t *testing.T) {
	transport := &fakeTransport{body: &trackedBody{Reader: strings.NewReader("")}}
	New(testRequest(), &scriptAdapter{name: "test"}, transport)

	if transport.opened.Load() {
		t.Error("New opened the transport; construction must be side-effect-free")
	}
}

func TestConsumeEmptyStream(t *testing.T) {
	adapter := &scriptAdapter{name: "test"} // no events at all
	transport := &fakeTransport{body: &trackedBody{Reader: strings.NewReader("")}}

	s := New(testRequest(), adapter, transport)
	outcome, err := s.Consume(context.Background())
	if err == nil {
		t.Fatal("Consume = nil error, want empty stream failure")
	}
	var streamErr *api.StreamError
	if !errors.As(err, &streamErr) || streamErr.Type != api.ErrorTypeEmptyStream {
		t.Errorf("error = %v, want empty_stream", err)
	}
	if outcome.TimeToFirstToken != nil {
		t.Error("TimeToFirstToken set for a stream with no tokens")
	}
	if s.Phase() != api.PhaseFailed {
		t.Errorf("Phase = %s, want failed", s.Phase())
	}
	if !transport.body.closed.Load() {
		t.Error("stream body was not released on failure")
	}
}

func TestConsumeUpstreamError(t *testing.T) {
	errEvent := api.NewEvent(api.EventError, "test")
	errEvent.Err = api.NewUpstreamError("test", "overloaded")
	adapter := &scriptAdapter{name: "test", events: []api.StreamEvent{
		deltaEvent("partial"),
		errEvent,
	}}
	transport := &fakeTransport{body: &trackedBody{Reader: strings.NewReader("")}}

	s := New(testRequest(), adapter, transport)
	outcome, err := s.Consume(context.Background())
	if err == nil {
		t.Fatal("Consume = nil error, want upstream error")
	}
	var streamErr *api.StreamError
	if !errors.As(err, &streamErr) || streamErr.Type != api.ErrorTypeUpstream {
		t.Errorf("error = %v, want upstream_error", err)
	}
	// Partial content is preserved, never discarded.
	if outcome.Text != "partial" {
		t.Errorf("Text = %q, want partial", outcome.Text)
	}
}

func TestConsumeWatchdogTimeout(t *testing.T) {
	adapter := &scriptAdapter{name: "test", events: []api.StreamEvent{deltaEvent("par")}, hang: true}
	transport := &fakeTransport{body: &trackedBody{Reader: strings.NewReader("")}}

	s := New(testRequest(), adapter, transport, WithWatchdog(30*time.Millisecond))
	outcome, err := s.Consume(context.Background())
	if err == nil {
		t.Fatal("Consume = nil error, want timeout")
	}
	var streamErr *api.StreamError
	if !errors.As(err, &streamErr) || streamErr.Type != api.ErrorTypeTimeout {
		t.Errorf("error = %v, want timeout", err)
	}
	if outcome.Text != "par" {
		t.Errorf("Text = %q, want par (partial preserved)", outcome.Text)
	}
	if s.Phase() != api.PhaseFailed {
		t.Errorf("Phase = %s, want failed", s.Phase())
	}
	if !transport.body.closed.Load() {
		t.Error("stream body was not released after watchdog fired")
	}
}

func TestConsumeUnitDeadline(t *testing.T) {
	adapter := &scriptAdapter{name: "test", hang: true}
	transport := &fakeTransport{body: &trackedBody{Reader: strings.NewReader("")}}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	s := New(testRequest(), adapter, transport)
	outcome, err := s.Consume(ctx)
	if err == nil {
		t.Fatal("Consume = nil error, want timeout")
	}
	var streamErr *api.StreamError
	if !errors.As(err, &streamErr) || streamErr.Type != api.ErrorTypeTimeout {
		t.Errorf("error = %v, want timeout", err)
	}
	if outcome.TimeToFirstToken != nil {
		t.Error("TimeToFirstToken set despite total pre-first-byte failure")
	}
}

func TestConsumeExternalCancellation(t *testing.T) {
	adapter := &scriptAdapter{name: "test", events: []api.StreamEvent{deltaEvent("x")}, hang: true}
	transport := &fakeTransport{body: &trackedBody{Reader: strings.NewReader("")}}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	s := New(testRequest(), adapter, transport)
	_, err := s.Consume(ctx)
	var streamErr *api.StreamError
	if !errors.As(err, &streamErr) || streamErr.Type != api.ErrorTypeCancelled {
		t.Errorf("error = %v, want cancelled", err)
	}
}

func TestConsumeOpenFailure(t *testing.T) {
	transport := &fakeTransport{err: errors.New("connection refused")}

	s := New(testRequest(), &scriptAdapter{name: "test"}, transport)
	outcome, err := s.Consume(context.Background())
	if err == nil {
		t.Fatal("Consume = nil error, want transport error")
	}
	var streamErr *api.StreamError
	if !errors.As(err, &streamErr) || streamErr.Type != api.ErrorTypeTransport {
		t.Errorf("error = %v, want transport_error", err)
	}
	if outcome.Text != "" || outcome.TimeToFirstToken != nil {
		t.Errorf("outcome = %+v, want zero outcome", outcome)
	}
	if s.Phase() != api.PhaseFailed {
		t.Errorf("Phase = %s, want failed", s.Phase())
	}
}

func TestConsumeNaturalEndAfterFinalMessage(t *testing.T) {
	// The adapter flushed a final message but the Complete event never
	// arrived before the channel closed. Still a completion.
	adapter := &scriptAdapter{name: "test", events: []api.StreamEvent{
		deltaEvent("done"),
		finalEvent("done"),
	}}
	transport := &fakeTransport{body: &trackedBody{Reader: strings.NewReader("")}}

	s := New(testRequest(), adapter, transport)
	outcome, err := s.Consume(context.Background())
	if err != nil {
		t.Fatalf("Consume error: %v", err)
	}
	if outcome.Text != "done" {
		t.Errorf("Text = %q, want done", outcome.Text)
	}
	if s.Phase() != api.PhaseCompleted {
		t.Errorf("Phase = %s, want completed", s.Phase())
	}
}

func TestConsumeMidStreamClose(t *testing.T) {
	// Channel closes while streaming, before any final message.
	adapter := &scriptAdapter{name: "test", events: []api.StreamEvent{deltaEvent("half")}}
	transport := &fakeTransport{body: &trackedBody{Reader: strings.NewReader("")}}

	s := New(testRequest(), adapter, transport)
	outcome, err := s.Consume(context.Background())
	var streamErr *api.StreamError
	if !errors.As(err, &streamErr) || streamErr.Type != api.ErrorTypeTransport {
		t.Errorf("error = %v, want transport_error", err)
	}
	if outcome.Text != "half" {
		t.Errorf("Text = %q, want half (partial preserved)", outcome.Text)
	}
}

func TestConsumeSingleForwardPass(t *testing.T) {
	adapter := &scriptAdapter{name: "test", events: []api.StreamEvent{
		finalEvent(""),
		api.NewEvent(api.EventComplete, "test"),
	}}
	transport := &fakeTransport{body: &trackedBody{Reader: strings.NewReader("")}}

	s := New(testRequest(), adapter, transport)
	if _, err := s.Consume(context.Background()); err != nil {
		t.Fatalf("first Consume error: %v", err)
	}
	if _, err := s.Consume(context.Background()); err == nil {
		t.Error("second Consume = nil error, want already-consumed failure")
	}
}

func TestOnChunkAccumulatedMonotonic(t *testing.T) {
	adapter := &scriptAdapter{name: "test", events: []api.StreamEvent{
		deltaEvent("a"),
		deltaEvent("bb"),
		deltaEvent("ccc"),
		finalEvent("abbccc"),
		api.NewEvent(api.EventComplete, "test"),
	}}
	transport := &fakeTransport{body: &trackedBody{Reader: strings.NewReader("")}}

	var lengths []int
	var lastAccumulated string
	s := New(testRequest(), adapter, transport, WithOnChunk(func(delta, accumulated string) {
		lengths = append(lengths, len(accumulated))
		lastAccumulated = accumulated
	}))

	outcome, err := s.Consume(context.Background())
	if err != nil {
		t.Fatalf("Consume error: %v", err)
	}
	for i := 1; i < len(lengths); i++ {
		if lengths[i] < lengths[i-1] {
			t.Errorf("accumulated length shrank: %v", lengths)
		}
	}
	// The content seen by the last chunk callback equals the outcome text.
	if lastAccumulated != outcome.Text {
		t.Errorf("last accumulated %q != outcome text %q", lastAccumulated, outcome.Text)
	}
}

// crashAdapter panics partway through its event sequence.
type crashAdapter struct{}

func (crashAdapter) Name() string { return "test" }

func (crashAdapter) Parse(ctx context.Context, body io.Reader, ch chan<- api.StreamEvent) {
	provider.Send(ctx, ch, deltaEvent("par"))
	panic("parser bug")
}

func TestConsumeAdapterPanic(t *testing.T) {
	body := &trackedBody{Reader: strings.NewReader("")}
	s := New(testRequest(), crashAdapter{}, &fakeTransport{body: body})

	outcome, err := s.Consume(context.Background())
	if err == nil {
		t.Fatal("Consume returned nil error after an adapter panic")
	}
	var streamErr *api.StreamError
	if !errors.As(err, &streamErr) || streamErr.Type != api.ErrorTypeProtocol {
		t.Errorf("error = %v, want protocol_error", err)
	}
	if outcome.Text != "par" {
		t.Errorf("outcome text = %q, want partial content preserved", outcome.Text)
	}
	if s.Phase() != api.PhaseFailed {
		t.Errorf("phase = %v, want failed", s.Phase())
	}
	if !body.closed.Load() {
		t.Error("body not closed after panic")
	}
}
