package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	agentDuration *prometheus.HistogramVec
	agentFailures *prometheus.CounterVec
	eventsEmitted *prometheus.CounterVec
	llmLatency    *prometheus.HistogramVec
	llmErrors     *prometheus.CounterVec
	analyses      *prometheus.CounterVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		agentDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "stocksage_agent_duration_seconds",
				Help:    "Duration of one analysis agent run",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"agent"},
		),
		agentFailures: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stocksage_agent_failures_total",
				Help: "Agent failures by agent and kind (error, timeout, panic)",
			},
			[]string{"agent", "kind"},
		),
		eventsEmitted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stocksage_progress_events_total",
				Help: "Progress events emitted on the analysis stream",
			},
			[]string{"agent", "status"},
		),
		llmLatency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "stocksage_llm_call_duration_seconds",
				Help:    "Latency of text-generation calls",
				Buckets: []float64{.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"provider"},
		),
		llmErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stocksage_llm_errors_total",
				Help: "Failed text-generation calls",
			},
			[]string{"provider"},
		),
		analyses: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stocksage_analyses_total",
				Help: "Completed analysis requests by style",
			},
			[]string{"style"},
		),
	}
}

// RecordAgentDuration records the wall time of one agent run.
func (r *Recorder) RecordAgentDuration(agent string, seconds float64) {
	r.agentDuration.WithLabelValues(agent).Observe(seconds)
}

// RecordAgentFailure records an agent failure occurrence.
func (r *Recorder) RecordAgentFailure(agent, kind string) {
	r.agentFailures.WithLabelValues(agent, kind).Inc()
}

// RecordEventEmitted records a progress event emission.
func (r *Recorder) RecordEventEmitted(agent, status string) {
	r.eventsEmitted.WithLabelValues(agent, status).Inc()
}

// RecordLLMCall records latency and outcome of a text-generation call.
func (r *Recorder) RecordLLMCall(provider string, seconds float64, err bool) {
	r.llmLatency.WithLabelValues(provider).Observe(seconds)
	if err {
		r.llmErrors.WithLabelValues(provider).Inc()
	}
}

// RecordAnalysis records a completed analysis request.
func (r *Recorder) RecordAnalysis(style string) {
	r.analyses.WithLabelValues(style).Inc()
}
