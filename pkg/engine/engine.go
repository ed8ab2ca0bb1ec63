package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/PaulJPhilp/mcluhan/pkg/api"
	"github.com/PaulJPhilp/mcluhan/pkg/history"
	"github.com/PaulJPhilp/mcluhan/pkg/observability"
	"github.com/PaulJPhilp/mcluhan/pkg/provider"
	"github.com/PaulJPhilp/mcluhan/pkg/stream"
)

// Engine dispatches streaming requests across providers with bounded
// concurrency and full failure isolation.
type Engine struct {
	registry  *provider.Registry
	transport provider.Transport
	cfg       Config

	logger   *slog.Logger
	recorder *observability.Recorder
	history  *history.Store
}

// Option configures an Engine at construction time.
type Option func(*Engine)

// WithLogger sets the logger for orchestration trace events.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithRecorder sets the metrics recorder. Without one, no metrics are
// recorded.
func WithRecorder(r *observability.Recorder) Option {
	return func(e *Engine) {
		e.recorder = r
	}
}

// WithHistory sets the store that keeps a record of each resolved
// batch. Without one, no records are kept.
func WithHistory(h *history.Store) Option {
	return func(e *Engine) {
		e.history = h
	}
}

// New creates an Engine. The registry and transport must not be nil.
func New(registry *provider.Registry, transport provider.Transport, cfg Config, opts ...Option) (*Engine, error) {
	if registry == nil {
		return nil, fmt.Errorf("engine: registry must not be nil")
	}
	if transport == nil {
		return nil, fmt.Errorf("engine: transport must not be nil")
	}
	e := &Engine{
		registry:  registry,
		transport: transport,
		cfg:       cfg,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// RunBatch processes the given requests in consecutive batches of at
// most the configured batch size, preserving input order across batch
// boundaries. Units within one batch run concurrently; batch k+1 is not
// dispatched until every unit in batch k has resolved.
//
// Exactly one ModelStreamResult is returned per request, regardless of
// individual failures; RunBatch itself never returns an error for a
// per-unit failure. The returned slice is ordered by completion, not by
// input; callers needing input-order alignment match on the Model field.
func (e *Engine) RunBatch(ctx context.Context, requests []api.StreamRequest, cb Callbacks) []api.ModelStreamResult {
	if len(requests) == 0 {
		return nil
	}

	startedAt := time.Now()
	batchSize := e.cfg.batchSize()
	results := make([]api.ModelStreamResult, 0, len(requests))
	var mu sync.Mutex

	for offset := 0; offset < len(requests); offset += batchSize {
		end := offset + batchSize
		if end > len(requests) {
			end = len(requests)
		}
		batch := requests[offset:end]

		e.logger.Debug("dispatching batch",
			"batch_start", offset,
			"batch_size", len(batch),
			"total", len(requests),
		)

		var wg sync.WaitGroup
		for i := range batch {
			wg.Add(1)
			go func(req *api.StreamRequest) {
				defer wg.Done()
				result, unitErr := e.runUnit(ctx, req, cb)

				// Results become visible only after the unit has
				// fully resolved.
				mu.Lock()
				results = append(results, result)
				mu.Unlock()

				cb.fireComplete(result)
				if !result.Success {
					cb.fireError(result.Model, unitErr)
				}
			}(&batch[i])
		}
		wg.Wait()
	}

	if e.history != nil {
		record := &history.BatchRecord{
			ID:         api.NewBatchID(),
			StartedAt:  startedAt,
			FinishedAt: time.Now(),
			Results:    results,
		}
		if err := e.history.Save(record); err != nil {
			e.logger.Warn("saving batch record failed", "error", err)
		}
	}

	return results
}

// runUnit resolves one request to its terminal result. Every failure
// mode (validation, unknown provider, transport, protocol, timeout,
// external cancellation, even a panic in an adapter) lands here as a
// failed result, never as an escaping error.
func (e *Engine) runUnit(ctx context.Context, req *api.StreamRequest, cb Callbacks) (result api.ModelStreamResult, unitErr error) {
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("panic in streaming unit",
				"model", req.Model,
				"provider", req.Provider,
				"panic", r,
			)
			unitErr = fmt.Errorf("internal panic: %v", r)
			result = e.failedResult(req, start, unitErr.Error())
		}
	}()

	cb.fireStart(req.Model)

	if err := req.Validate(); err != nil {
		return e.failedResult(req, start, err.Error()), err
	}

	adapter, err := e.registry.Lookup(req.Provider)
	if err != nil {
		return e.failedResult(req, start, err.Error()), err
	}

	// Each unit owns its own timeout; cancelling it never affects
	// siblings.
	unitCtx, cancel := context.WithTimeout(ctx, e.cfg.timeout(req.Timeout))
	defer cancel()

	// An external cancellation signal on the request cancels just this
	// unit's transport.
	if req.Cancel != nil {
		stop := make(chan struct{})
		defer close(stop)
		go func() {
			select {
			case <-req.Cancel:
				cancel()
			case <-stop:
			}
		}()
	}

	opts := []stream.Option{
		stream.WithLogger(e.logger),
		stream.WithOnChunk(func(delta, accumulated string) {
			cb.fireChunk(req.Model, delta, accumulated)
		}),
	}
	if e.cfg.Watchdog > 0 {
		opts = append(opts, stream.WithWatchdog(e.cfg.Watchdog))
	}

	s := stream.New(req, adapter, e.transport, opts...)
	outcome, consumeErr := s.Consume(unitCtx)
	duration := time.Since(start)

	result = api.ModelStreamResult{
		Model:      req.Model,
		Provider:   req.Provider,
		Content:    outcome.Text,
		Success:    consumeErr == nil,
		Duration:   duration,
		ChunkCount: outcome.ChunkCount,
		Metrics: api.StreamMetrics{
			TimeToFirstToken: outcome.TimeToFirstToken,
			TotalDuration:    duration,
			OutputTokens:     outcome.ChunkCount,
		},
	}
	if consumeErr != nil {
		result.ErrorMessage = consumeErr.Error()
		e.logger.Warn("streaming unit failed",
			"model", req.Model,
			"provider", req.Provider,
			"duration", duration,
			"error", consumeErr.Error(),
		)
	} else {
		e.logger.Debug("streaming unit completed",
			"model", req.Model,
			"provider", req.Provider,
			"duration", duration,
			"chunks", outcome.ChunkCount,
		)
	}

	if e.recorder != nil {
		e.recorder.Record(&result)
	}
	return result, consumeErr
}

// failedResult builds a terminal result for a unit that failed before
// stream consumption ever started (validation, unknown provider, panic).
func (e *Engine) failedResult(req *api.StreamRequest, start time.Time, message string) api.ModelStreamResult {
	duration := time.Since(start)
	result := api.ModelStreamResult{
		Model:        req.Model,
		Provider:     req.Provider,
		Success:      false,
		ErrorMessage: message,
		Duration:     duration,
		Metrics: api.StreamMetrics{
			TotalDuration: duration,
		},
	}
	if e.recorder != nil {
		e.recorder.Record(&result)
	}
	return result
}
