// Package provider defines the protocol-agnostic contract between the
// streaming engine and LLM backends. Each adapter implementation (e.g.,
// anthropic, openaicompat, textstream) handles its own wire framing
// internally and emits the unified event sequence from pkg/api, keeping
// protocol details invisible to the stream consumer and the orchestrator.
package provider
