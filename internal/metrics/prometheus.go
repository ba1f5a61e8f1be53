// Package metrics exposes relay session metrics to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "ema_relay"

// Metrics contains all Prometheus metrics for the relay. It satisfies the
// orchestrator's metrics hook.
type Metrics struct {
	registry *prometheus.Registry

	ActiveSessions     prometheus.Gauge
	SessionsTotal      prometheus.Counter
	SessionDuration    prometheus.Histogram
	Utterances         *prometheus.CounterVec
	Failures           *prometheus.CounterVec
	AudioChunksSent    prometheus.Counter
	ResponseLatencySec prometheus.Histogram
}

// NewMetrics creates a registry holding the relay metrics plus the standard
// Go and process collectors.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		ActiveSessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Current number of connected voice sessions",
		}),
		SessionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "Total number of voice sessions started",
		}),
		SessionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "session_duration_seconds",
			Help:      "Duration of voice sessions in seconds",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12), // 1s to ~1 hour
		}),
		Utterances: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "utterances_total",
			Help:      "Completed transcripts by outcome",
		}, []string{"outcome"}),
		Failures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_failures_total",
			Help:      "Failed generation and synthesis stages",
		}, []string{"stage"}),
		AudioChunksSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_chunks_sent_total",
			Help:      "Total number of synthesized audio chunks sent to clients",
		}),
		ResponseLatencySec: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "response_latency_seconds",
			Help:      "Time from a completed transcript to the first audio chunk of its reply",
			Buckets:   []float64{0.25, 0.5, 1, 1.5, 2, 3, 5, 8, 13},
		}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) SessionStarted() {
	m.ActiveSessions.Inc()
	m.SessionsTotal.Inc()
}

func (m *Metrics) SessionEnded() {
	m.ActiveSessions.Dec()
}

// ObserveSession records the length of a finished session.
func (m *Metrics) ObserveSession(duration time.Duration) {
	m.SessionDuration.Observe(duration.Seconds())
}

func (m *Metrics) UtteranceDispatched() {
	m.Utterances.WithLabelValues("dispatched").Inc()
}

func (m *Metrics) UtteranceDropped() {
	m.Utterances.WithLabelValues("dropped").Inc()
}

func (m *Metrics) GenerationFailed() {
	m.Failures.WithLabelValues("generation").Inc()
}

func (m *Metrics) SynthesisFailed() {
	m.Failures.WithLabelValues("synthesis").Inc()
}

func (m *Metrics) AudioChunkSent() {
	m.AudioChunksSent.Inc()
}

func (m *Metrics) ResponseLatency(latency time.Duration) {
	m.ResponseLatencySec.Observe(latency.Seconds())
}
