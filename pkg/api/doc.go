// Package api defines the core types of the mcluhan streaming engine.
//
// This package provides the unified stream event model shared by all
// provider adapters and consumers, the request/result types exchanged
// with the orchestrator, the error taxonomy, consumption-phase
// validation, and ID generation.
//
// The package has zero external dependencies (Go standard library only)
// and performs no I/O.
//
// Core types:
//   - [StreamEvent]: Single event in the unified streaming sequence
//   - [StreamRequest]: One model's streaming generation request
//   - [ModelStreamResult]: Terminal outcome of exactly one StreamRequest
//   - [StreamError]: Structured error with type, provider, and message
//
// Every provider adapter translates its own wire framing into the closed
// [EventType] set. Consumers switch exhaustively over that set, so adding
// a new provider never changes the event model, only a new adapter.
package api
