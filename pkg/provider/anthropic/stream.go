// Package anthropic adapts the Messages API SSE framing (content_block
// events discriminated by a "type" field, message_stop terminal marker)
// to the unified event sequence.
package anthropic

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"

	"github.com/PaulJPhilp/mcluhan/pkg/api"
	"github.com/PaulJPhilp/mcluhan/pkg/provider"
)

// Name is the provider identifier this adapter registers under.
const Name = "anthropic"

// Adapter parses Messages API SSE events into unified events.
type Adapter struct {
	logger *slog.Logger
}

var _ provider.Adapter = (*Adapter)(nil)

// New creates an Adapter. A nil logger falls back to slog.Default().
func New(logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{logger: logger}
}

// Name returns the provider identifier.
func (a *Adapter) Name() string { return Name }

// Parse reads Messages API SSE events from body and sends unified events
// on ch. The channel is NOT closed by this function; the caller is
// responsible for closing it.
//
// Recognized discriminators:
//
//	content_block_delta + text_delta        -> TokenDelta
//	content_block_start (tool_use)          -> ToolCallStarted
//	content_block_delta + input_json_delta  -> ToolCallDelta
//	content_block_stop (after tool_use)     -> ToolCallReady
//	message_stop                            -> FinalMessage + Complete
//	error                                   -> Error
//
// Lines that are not "data: " payloads and events with unknown types are
// silently discarded (robustness over strictness). Malformed JSON lines
// are logged and skipped.
func (a *Adapter) Parse(ctx context.Context, body io.Reader, ch chan<- api.StreamEvent) {
	scanner := bufio.NewScanner(body)

	var text strings.Builder

	// Open tool call block, if any. The Messages API streams one block at
	// a time, so a single buffer suffices.
	var tool *toolBuffer

	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}

		line := scanner.Text()

		// "event: ..." lines duplicate the type discriminator inside the
		// data payload, so only "data: " lines matter here.
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		payload := strings.TrimPrefix(line, "data: ")

		var ev sseEvent
		if err := json.Unmarshal([]byte(payload), &ev); err != nil {
			a.logger.Warn("skipping malformed SSE event",
				"provider", Name,
				"error", err.Error(),
				"data", truncate(payload, 200),
			)
			continue
		}

		switch ev.Type {
		case "content_block_delta":
			if ev.Delta == nil {
				continue
			}
			switch ev.Delta.Type {
			case "", "text_delta":
				// Scenario payloads may omit delta.type; treat a bare
				// text field as a text delta.
				if ev.Delta.Text == "" {
					continue
				}
				text.WriteString(ev.Delta.Text)
				out := api.NewEvent(api.EventTokenDelta, Name)
				out.Delta = ev.Delta.Text
				if !provider.Send(ctx, ch, out) {
					return
				}
			case "input_json_delta":
				if tool == nil {
					continue
				}
				tool.args.WriteString(ev.Delta.PartialJSON)
				out := api.NewEvent(api.EventToolCallDelta, Name)
				out.ToolCallID = tool.id
				out.Delta = ev.Delta.PartialJSON
				if !provider.Send(ctx, ch, out) {
					return
				}
			}

		case "content_block_start":
			if ev.ContentBlock == nil || ev.ContentBlock.Type != "tool_use" {
				continue
			}
			tool = &toolBuffer{id: ev.ContentBlock.ID, name: ev.ContentBlock.Name}
			out := api.NewEvent(api.EventToolCallStarted, Name)
			out.ToolCallID = tool.id
			out.ToolName = tool.name
			if !provider.Send(ctx, ch, out) {
				return
			}

		case "content_block_stop":
			if tool == nil {
				continue
			}
			out := api.NewEvent(api.EventToolCallReady, Name)
			out.ToolCallID = tool.id
			out.ToolName = tool.name
			out.ToolArgs = tool.args.String()
			tool = nil
			if !provider.Send(ctx, ch, out) {
				return
			}

		case "message_stop":
			a.finalize(ctx, &text, &ev, ch)
			return

		case "error":
			msg := "provider signaled an error"
			if ev.Error != nil && ev.Error.Message != "" {
				msg = ev.Error.Message
			}
			out := api.NewEvent(api.EventError, Name)
			out.Err = api.NewUpstreamError(Name, msg)
			provider.Send(ctx, ch, out)
			return

		default:
			// message_start, message_delta, ping, and anything unknown.
		}
	}

	if err := scanner.Err(); err != nil {
		if ctx.Err() != nil {
			return
		}
		out := api.NewEvent(api.EventError, Name)
		out.Err = api.NewTransportError(Name, "SSE stream read error: "+err.Error(), err)
		provider.Send(ctx, ch, out)
		return
	}

	// Natural end of stream without message_stop. Close out the sequence
	// if any content was transmitted; an entirely silent stream is left
	// for the consumer to flag.
	if text.Len() > 0 {
		a.finalize(ctx, &text, nil, ch)
	}
}

// finalize reconciles the terminal payload's full text (if any) against
// the incrementally accumulated buffer, then emits exactly one
// FinalMessage followed by exactly one Complete.
//
// When the terminal text extends the buffer, only the untransmitted
// suffix is emitted as one last TokenDelta; already-sent text is never
// re-emitted. A terminal text that is not an extension of the buffer is
// logged and ignored, keeping the buffer authoritative.
func (a *Adapter) finalize(ctx context.Context, text *strings.Builder, stop *sseEvent, ch chan<- api.StreamEvent) {
	if stop != nil && stop.Message != nil {
		var final strings.Builder
		for _, block := range stop.Message.Content {
			if block.Type == "" || block.Type == "text" {
				final.WriteString(block.Text)
			}
		}
		if f := final.String(); f != "" && f != text.String() {
			if strings.HasPrefix(f, text.String()) {
				suffix := f[text.Len():]
				text.WriteString(suffix)
				out := api.NewEvent(api.EventTokenDelta, Name)
				out.Delta = suffix
				if !provider.Send(ctx, ch, out) {
					return
				}
			} else {
				a.logger.Warn("terminal message text does not extend streamed text, ignoring",
					"provider", Name,
					"streamed_len", text.Len(),
					"terminal_len", len(f),
				)
			}
		}
	}

	finalEv := api.NewEvent(api.EventFinalMessage, Name)
	finalEv.Text = text.String()
	if !provider.Send(ctx, ch, finalEv) {
		return
	}
	provider.Send(ctx, ch, api.NewEvent(api.EventComplete, Name))
}

// toolBuffer assembles one streamed tool_use block.
type toolBuffer struct {
	id   string
	name string
	args strings.Builder
}

// truncate limits a string to maxLen characters for log output.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
