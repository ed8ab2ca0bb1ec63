// Package textstream adapts backends that stream plain incremental text
// with no framing at all: every read's bytes are decoded and emitted
// immediately as token deltas.
package textstream

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/PaulJPhilp/mcluhan/pkg/api"
	"github.com/PaulJPhilp/mcluhan/pkg/provider"
)

// Name is the provider identifier this adapter registers under.
const Name = "text"

// readBufferSize is the chunk size for raw reads.
const readBufferSize = 4096

// Adapter emits each non-empty decoded fragment as a TokenDelta the
// moment it arrives.
type Adapter struct {
	name   string
	logger *slog.Logger
}

var _ provider.Adapter = (*Adapter)(nil)

// New creates an Adapter registered under the default "text" name.
// A nil logger falls back to slog.Default().
func New(logger *slog.Logger) *Adapter {
	return NewNamed(Name, logger)
}

// NewNamed creates an Adapter under a custom provider name.
func NewNamed(name string, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{name: name, logger: logger}
}

// Name returns the provider identifier.
func (a *Adapter) Name() string { return a.name }

// Parse reads raw bytes from body and emits each decoded fragment as a
// TokenDelta. There is no terminal signal on the wire: the sequence is
// closed with FinalMessage and Complete only when the stream ends.
//
// A multi-byte UTF-8 sequence split across reads is carried over to the
// next read rather than emitted as a mangled fragment.
func (a *Adapter) Parse(ctx context.Context, body io.Reader, ch chan<- api.StreamEvent) {
	var text strings.Builder

	// carry holds an incomplete trailing UTF-8 sequence between reads.
	var carry []byte
	buf := make([]byte, readBufferSize)

	for {
		if ctx.Err() != nil {
			return
		}

		n, err := body.Read(buf)
		if n > 0 {
			chunk := append(carry, buf[:n]...)
			complete, rest := splitCompleteUTF8(chunk)
			carry = append([]byte(nil), rest...)

			if len(complete) > 0 {
				fragment := string(complete)
				text.WriteString(fragment)
				ev := api.NewEvent(api.EventTokenDelta, a.name)
				ev.Delta = fragment
				if !provider.Send(ctx, ch, ev) {
					return
				}
			}
		}

		if err == io.EOF {
			// Flush any dangling bytes as-is; better a replacement rune
			// in the transcript than silently dropped output.
			if len(carry) > 0 {
				fragment := string(carry)
				text.WriteString(fragment)
				ev := api.NewEvent(api.EventTokenDelta, a.name)
				ev.Delta = fragment
				if !provider.Send(ctx, ch, ev) {
					return
				}
			}
			if text.Len() == 0 {
				// Nothing at all arrived. Emit nothing and let the
				// consumer flag the empty stream.
				return
			}
			final := api.NewEvent(api.EventFinalMessage, a.name)
			final.Text = text.String()
			if !provider.Send(ctx, ch, final) {
				return
			}
			provider.Send(ctx, ch, api.NewEvent(api.EventComplete, a.name))
			return
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			ev := api.NewEvent(api.EventError, a.name)
			ev.Err = api.NewTransportError(a.name, "stream read error: "+err.Error(), err)
			provider.Send(ctx, ch, ev)
			return
		}
	}
}

// splitCompleteUTF8 splits b into the longest prefix of complete UTF-8
// sequences and the incomplete remainder (at most utf8.UTFMax-1 bytes).
func splitCompleteUTF8(b []byte) (complete, rest []byte) {
	// Walk back at most three bytes looking for the start of an
	// incomplete final rune.
	end := len(b)
	for back := 1; back <= utf8.UTFMax-1 && back <= len(b); back++ {
		i := len(b) - back
		c := b[i]
		if c < utf8.RuneSelf {
			break // ASCII tail byte: everything is complete
		}
		if c&0xC0 == 0xC0 {
			// Start byte of a multi-byte sequence. Incomplete if the
			// sequence extends past the end of the buffer.
			if !utf8.FullRune(b[i:]) {
				end = i
			}
			break
		}
		// Continuation byte: keep walking back.
	}
	return b[:end], b[end:]
}
