// Package engine orchestrates many streaming generation requests at
// once. Requests are partitioned into consecutive batches; batches run
// strictly sequentially while units within a batch run concurrently,
// each racing its own consumption state machine against its own timeout.
//
// Failure isolation is total: every submitted request resolves to
// exactly one ModelStreamResult, and no per-unit failure (provider
// error, transport error, protocol corruption, timeout, or panic)
// escapes RunBatch or affects sibling units.
package engine
