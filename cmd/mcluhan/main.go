// Command mcluhan streams one prompt through several models at once and
// prints each model's tokens as they arrive, followed by a per-model
// summary.
//
// Models are given as provider:model pairs, with one backend per
// provider configured in the YAML config file:
//
//	mcluhan -config config.yaml -models openai:gpt-4o,anthropic:claude-sonnet "Explain LLM streaming"
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/PaulJPhilp/mcluhan/pkg/api"
	"github.com/PaulJPhilp/mcluhan/pkg/config"
	"github.com/PaulJPhilp/mcluhan/pkg/debug"
	"github.com/PaulJPhilp/mcluhan/pkg/engine"
	"github.com/PaulJPhilp/mcluhan/pkg/observability"
	"github.com/PaulJPhilp/mcluhan/pkg/provider"
	"github.com/PaulJPhilp/mcluhan/pkg/provider/anthropic"
	"github.com/PaulJPhilp/mcluhan/pkg/provider/openaicompat"
	"github.com/PaulJPhilp/mcluhan/pkg/provider/textstream"
	"github.com/PaulJPhilp/mcluhan/pkg/transport"
)

func main() {
	if err := run(); err != nil {
		slog.Error("mcluhan failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to config file")
	models := flag.String("models", "", "comma-separated provider:model pairs")
	system := flag.String("system", "", "optional system prompt")
	flag.Parse()

	if *models == "" {
		return fmt.Errorf("-models is required")
	}
	prompt := strings.Join(flag.Args(), " ")
	if prompt == "" {
		return fmt.Errorf("a prompt argument is required")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.Logging)
	if err != nil {
		return err
	}

	registry := provider.NewRegistry()
	registry.Register(openaicompat.New(logger))
	registry.Register(anthropic.New(logger))
	registry.Register(textstream.New(logger))

	router := transport.NewRouter(nil)
	for _, b := range cfg.Backends {
		router.Route(b.Provider, transport.NewClient(transport.Config{
			BaseURL: b.BaseURL,
			Path:    b.Path,
			APIKey:  b.APIKey,
			Headers: b.Headers,
		}))
		logger.Debug("backend configured", "provider", b.Provider, "base_url", b.BaseURL)
	}

	recorder := observability.NewRecorder(prometheus.DefaultRegisterer)
	if cfg.Observability.Metrics.Enabled {
		startMetricsServer(cfg.Observability.Metrics, logger)
	}

	eng, err := engine.New(registry, router, engine.Config{
		BatchSize: cfg.Orchestrator.BatchSize,
		Timeout:   time.Duration(cfg.Orchestrator.TimeoutMs) * time.Millisecond,
		Watchdog:  time.Duration(cfg.Orchestrator.WatchdogMs) * time.Millisecond,
	}, engine.WithLogger(logger), engine.WithRecorder(recorder))
	if err != nil {
		return fmt.Errorf("creating engine: %w", err)
	}

	requests, err := parseModels(*models, prompt, *system)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	results := eng.RunBatch(ctx, requests, engine.Callbacks{
		OnStart: func(model string) {
			fmt.Fprintf(os.Stderr, "[%s] started\n", model)
		},
		OnChunk: func(model, delta, accumulated string) {
			fmt.Printf("[%s] %s", model, delta)
		},
	})

	fmt.Println()
	printSummary(results)

	for _, r := range results {
		if !r.Success {
			return fmt.Errorf("%d of %d streams failed", countFailed(results), len(results))
		}
	}
	return nil
}

// parseModels splits "openai:gpt-4o,anthropic:claude" into one request
// per pair, all sharing the same prompt.
func parseModels(spec, prompt, system string) ([]api.StreamRequest, error) {
	var requests []api.StreamRequest
	for _, pair := range strings.Split(spec, ",") {
		providerName, model, ok := strings.Cut(strings.TrimSpace(pair), ":")
		if !ok || providerName == "" || model == "" {
			return nil, fmt.Errorf("invalid model spec %q, want provider:model", pair)
		}
		requests = append(requests, api.StreamRequest{
			Model:    model,
			Provider: providerName,
			System:   system,
			Messages: []api.Message{{Role: api.RoleUser, Content: prompt}},
		})
	}
	return requests, nil
}

func printSummary(results []api.ModelStreamResult) {
	for _, r := range results {
		status := "ok"
		if !r.Success {
			status = "FAILED: " + r.ErrorMessage
		}
		ttft := "-"
		if r.Metrics.TimeToFirstToken != nil {
			ttft = r.Metrics.TimeToFirstToken.Round(time.Millisecond).String()
		}
		fmt.Printf("%-30s %-10s chunks=%-5d ttft=%-8s total=%s\n",
			r.Model, status, r.ChunkCount, ttft, r.Duration.Round(time.Millisecond))
	}
}

func countFailed(results []api.ModelStreamResult) int {
	n := 0
	for _, r := range results {
		if !r.Success {
			n++
		}
	}
	return n
}

func newLogger(cfg config.LoggingConfig) (*slog.Logger, error) {
	debug.Init(cfg.Debug)
	opts := &slog.HandlerOptions{Level: debug.ParseLevel(cfg.Level)}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger, nil
}

func startMetricsServer(cfg config.MetricsConfig, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle(cfg.Path, promhttp.Handler())
	srv := &http.Server{Addr: fmt.Sprintf(":%d", cfg.Port), Handler: mux}
	go func() {
		logger.Info("metrics server starting", "port", cfg.Port, "path", cfg.Path)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server failed", "error", err)
		}
	}()
}
