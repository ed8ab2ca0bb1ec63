// Package openaicompat adapts the Chat Completions SSE framing used by
// OpenAI-compatible backends (vLLM, LiteLLM, OpenRouter, ...) to the
// unified event sequence.
package openaicompat

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sort"
	"strings"

	"github.com/PaulJPhilp/mcluhan/pkg/api"
	"github.com/PaulJPhilp/mcluhan/pkg/provider"
)

// Name is the provider identifier this adapter registers under.
const Name = "openai"

// toolCallBuffer tracks incremental tool call argument assembly across
// multiple SSE chunks for a single tool call index.
type toolCallBuffer struct {
	ID   string
	Name string
	Args strings.Builder
}

// Adapter parses Chat Completions SSE chunks into unified events.
type Adapter struct {
	name   string
	logger *slog.Logger
}

var _ provider.Adapter = (*Adapter)(nil)

// New creates an Adapter registered under the default "openai" name.
// A nil logger falls back to slog.Default().
func New(logger *slog.Logger) *Adapter {
	return NewNamed(Name, logger)
}

// NewNamed creates an Adapter under a custom provider name, for backends
// that speak the same framing but should be tagged separately.
func NewNamed(name string, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{name: name, logger: logger}
}

// Name returns the provider identifier.
func (a *Adapter) Name() string { return a.name }

// Parse reads Chat Completions SSE chunks from body and sends unified
// events on ch. The channel is NOT closed by this function; the caller
// is responsible for closing it.
//
// SSE format expected:
//
//	data: {"id":"...","choices":[...]}\n
//	\n
//	data: [DONE]\n
//	\n
//
// Malformed chunks are logged and skipped. Context cancellation stops
// reading immediately.
func (a *Adapter) Parse(ctx context.Context, body io.Reader, ch chan<- api.StreamEvent) {
	scanner := bufio.NewScanner(body)

	// Accumulated text across the whole stream, for the final message.
	var text strings.Builder

	// Track tool call argument buffers across chunks (keyed by tool call index).
	toolCalls := make(map[int]*toolCallBuffer)

	for scanner.Scan() {
		// Check for context cancellation between lines.
		if ctx.Err() != nil {
			return
		}

		line := scanner.Text()

		// SSE lines that don't start with "data: " are ignored
		// (e.g., empty lines, comments starting with ":").
		if !strings.HasPrefix(line, "data: ") {
			continue
		}

		payload := strings.TrimPrefix(line, "data: ")

		// Handle the [DONE] sentinel: finalize even when no finish_reason
		// was seen, so well-formed streams always close with a final message.
		if payload == "[DONE]" {
			a.finalize(ctx, &text, toolCalls, ch)
			return
		}

		// Parse the JSON chunk.
		var chunk chatCompletionChunk
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			a.logger.Warn("skipping malformed SSE chunk",
				"provider", a.name,
				"error", err.Error(),
				"data", truncate(payload, 200),
			)
			continue
		}

		if done := a.translateChunk(ctx, &chunk, &text, toolCalls, ch); done {
			return
		}
	}

	// Scanner error (e.g., connection dropped).
	if err := scanner.Err(); err != nil {
		// Context cancellation is not an error from our perspective.
		if ctx.Err() != nil {
			return
		}
		ev := api.NewEvent(api.EventError, a.name)
		ev.Err = api.NewTransportError(a.name, "SSE stream read error: "+err.Error(), err)
		provider.Send(ctx, ch, ev)
		return
	}

	// Natural end of stream without a terminal signal. If any content was
	// transmitted, close out the sequence; otherwise emit nothing and let
	// the consumer flag the empty stream.
	if text.Len() > 0 || len(toolCalls) > 0 {
		a.finalize(ctx, &text, toolCalls, ch)
	}
}

// translateChunk converts a single chatCompletionChunk into unified events.
// It returns true once a terminal event has been emitted.
func (a *Adapter) translateChunk(ctx context.Context, chunk *chatCompletionChunk, text *strings.Builder, toolCalls map[int]*toolCallBuffer, ch chan<- api.StreamEvent) bool {
	// No choices means nothing to translate (e.g., a usage-only final chunk).
	if len(chunk.Choices) == 0 {
		return false
	}

	choice := chunk.Choices[0]
	delta := choice.Delta

	// finish_reason signals stream completion for this choice.
	if choice.FinishReason != nil {
		if delta.Content != nil && *delta.Content != "" {
			if !a.emitDelta(ctx, *delta.Content, text, ch) {
				return true
			}
		}
		a.finalize(ctx, text, toolCalls, ch)
		return true
	}

	// Tool call deltas.
	if len(delta.ToolCalls) > 0 {
		for _, tc := range delta.ToolCalls {
			buf, exists := toolCalls[tc.Index]
			if !exists {
				// First chunk for this tool call index: carries id and name.
				buf = &toolCallBuffer{
					ID:   tc.ID,
					Name: tc.Function.Name,
				}
				toolCalls[tc.Index] = buf

				ev := api.NewEvent(api.EventToolCallStarted, a.name)
				ev.ToolCallID = tc.ID
				ev.ToolName = tc.Function.Name
				ev.Delta = tc.Function.Arguments
				if !provider.Send(ctx, ch, ev) {
					return true
				}
			} else {
				// Continuation chunk: accumulate arguments.
				ev := api.NewEvent(api.EventToolCallDelta, a.name)
				ev.ToolCallID = buf.ID
				ev.Delta = tc.Function.Arguments
				if !provider.Send(ctx, ch, ev) {
					return true
				}
			}
			buf.Args.WriteString(tc.Function.Arguments)
		}
		return false
	}

	// Text content delta.
	if delta.Content != nil && *delta.Content != "" {
		if !a.emitDelta(ctx, *delta.Content, text, ch) {
			return true
		}
		return false
	}

	// Role-only first chunk, or an empty delta some backends send.
	// Nothing to emit.
	return false
}

// emitDelta sends one TokenDelta and appends it to the running buffer.
func (a *Adapter) emitDelta(ctx context.Context, delta string, text *strings.Builder, ch chan<- api.StreamEvent) bool {
	text.WriteString(delta)
	ev := api.NewEvent(api.EventTokenDelta, a.name)
	ev.Delta = delta
	return provider.Send(ctx, ch, ev)
}

// finalize flushes buffered tool calls as ready events, then emits exactly
// one FinalMessage followed by exactly one Complete.
func (a *Adapter) finalize(ctx context.Context, text *strings.Builder, toolCalls map[int]*toolCallBuffer, ch chan<- api.StreamEvent) {
	// Flush tool calls in index order for a deterministic sequence.
	indexes := make([]int, 0, len(toolCalls))
	for idx := range toolCalls {
		indexes = append(indexes, idx)
	}
	sort.Ints(indexes)
	for _, idx := range indexes {
		buf := toolCalls[idx]
		ev := api.NewEvent(api.EventToolCallReady, a.name)
		ev.ToolCallID = buf.ID
		ev.ToolName = buf.Name
		ev.ToolArgs = buf.Args.String()
		if !provider.Send(ctx, ch, ev) {
			return
		}
		delete(toolCalls, idx)
	}

	final := api.NewEvent(api.EventFinalMessage, a.name)
	final.Text = text.String()
	if !provider.Send(ctx, ch, final) {
		return
	}
	provider.Send(ctx, ch, api.NewEvent(api.EventComplete, a.name))
}

// truncate limits a string to maxLen characters for log output.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
