// Package observability provides Prometheus metrics for the mcluhan
// streaming engine.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/PaulJPhilp/mcluhan/pkg/api"
)

// LLMBuckets defines histogram buckets suited for LLM inference latencies,
// ranging from 100ms to 120s.
var LLMBuckets = []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120}

// TTFTBuckets defines histogram buckets for time-to-first-token, which
// typically lands well below full-response latency.
var TTFTBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30}

// Recorder holds the per-(model, provider) streaming instruments. It is
// constructed against an injected registry rather than package globals,
// so tests and embedders control registration.
type Recorder struct {
	// TimeToFirstToken records TTFT in seconds. It receives an
	// observation only for units that produced at least one token.
	TimeToFirstToken *prometheus.HistogramVec

	// StreamDuration records total unit duration in seconds, inclusive
	// of failure and timeout paths.
	StreamDuration *prometheus.HistogramVec

	// OutputTokens counts generated content fragments.
	OutputTokens *prometheus.CounterVec

	// StreamsTotal counts resolved units by outcome.
	StreamsTotal *prometheus.CounterVec
}

// NewRecorder creates the streaming instruments and registers them with
// reg. A nil reg falls back to the default Prometheus registerer.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	r := &Recorder{
		TimeToFirstToken: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mcluhan_stream_time_to_first_token_seconds",
				Help:    "Time to first token",
				Buckets: TTFTBuckets,
			},
			[]string{"model", "provider"},
		),
		StreamDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mcluhan_stream_duration_seconds",
				Help:    "Total stream duration",
				Buckets: LLMBuckets,
			},
			[]string{"model", "provider"},
		),
		OutputTokens: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mcluhan_stream_output_tokens_total",
				Help: "Output token count",
			},
			[]string{"model", "provider"},
		),
		StreamsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mcluhan_streams_total",
				Help: "Resolved streaming units",
			},
			[]string{"model", "provider", "status"},
		),
	}

	reg.MustRegister(r.TimeToFirstToken, r.StreamDuration, r.OutputTokens, r.StreamsTotal)
	return r
}

// Record observes one resolved unit. Called exactly once per
// ModelStreamResult; the TTFT histogram is skipped when the unit never
// produced a token.
func (r *Recorder) Record(result *api.ModelStreamResult) {
	labels := prometheus.Labels{"model": result.Model, "provider": result.Provider}

	r.StreamDuration.With(labels).Observe(result.Metrics.TotalDuration.Seconds())
	r.OutputTokens.With(labels).Add(float64(result.Metrics.OutputTokens))

	if ttft := result.Metrics.TimeToFirstToken; ttft != nil {
		r.TimeToFirstToken.With(labels).Observe(ttft.Seconds())
	}

	status := "success"
	if !result.Success {
		status = "error"
	}
	r.StreamsTotal.WithLabelValues(result.Model, result.Provider, status).Inc()
}

// ObserveDuration is a convenience for recording an ad hoc duration
// against the stream duration histogram.
func (r *Recorder) ObserveDuration(model, provider string, d time.Duration) {
	r.StreamDuration.WithLabelValues(model, provider).Observe(d.Seconds())
}
