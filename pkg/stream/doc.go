// Package stream drives a single provider adapter's output through a
// bounded, timeout-guarded lifecycle, accumulating text along the way.
//
// The interface is two-phase: [New] builds a handle without performing
// any I/O, and [Stream.Consume] starts the network call and runs the
// stream to a terminal phase.
package stream
