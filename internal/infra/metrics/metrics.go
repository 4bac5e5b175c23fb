// Package metrics provides Prometheus metrics for the gateway.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "aiweb"

// Metrics holds all Prometheus collectors. Each instance owns its registry so
// several can coexist in one process (tests build one per server).
type Metrics struct {
	registry *prometheus.Registry

	// HTTP request metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Provider call metrics
	ProviderCallsTotal   *prometheus.CounterVec
	ProviderCallDuration *prometheus.HistogramVec

	// Answer outcomes: no_retrieval | enriched | fallback
	AnswerOutcomesTotal     *prometheus.CounterVec
	RetrievalFallbacksTotal *prometheus.CounterVec
	StreamFragmentsTotal    prometheus.Counter

	// Knowledge admin
	KnowledgeUploadsTotal *prometheus.CounterVec
	KnowledgeUploadBytes  prometheus.Counter
}

// New creates and registers all collectors on a fresh registry, together with
// the Go runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	m := &Metrics{registry: reg}

	m.HTTPRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"route", "method", "status"},
	)

	m.HTTPRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"route"},
	)

	m.HTTPRequestsInFlight = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_requests_in_flight",
			Help:      "Number of HTTP requests currently being served",
		},
	)

	m.ProviderCallsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_calls_total",
			Help:      "Total number of LLM provider calls",
		},
		[]string{"operation", "provider", "status"},
	)

	m.ProviderCallDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_call_duration_seconds",
			Help:      "Duration of LLM provider calls in seconds",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"operation", "provider"},
	)

	m.AnswerOutcomesTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "answer_outcomes_total",
			Help:      "Retrieval-augmented answers by final state",
		},
		[]string{"state"},
	)

	m.RetrievalFallbacksTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retrieval_fallbacks_total",
			Help:      "Enriched answers that fell back to a plain completion, by reason",
		},
		[]string{"reason"},
	)

	m.StreamFragmentsTotal = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_fragments_total",
			Help:      "Text fragments delivered on streaming responses",
		},
	)

	m.KnowledgeUploadsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "knowledge_uploads_total",
			Help:      "Total number of knowledge file uploads",
		},
		[]string{"status"},
	)

	m.KnowledgeUploadBytes = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "knowledge_upload_bytes_total",
			Help:      "Bytes accepted for knowledge ingestion",
		},
	)

	return m
}

// Handler serves this instance's registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry (tests gather from it).
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordHTTPRequest records a served HTTP request.
func (m *Metrics) RecordHTTPRequest(route, method, status string, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(route, method, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(route).Observe(duration.Seconds())
}

// RecordProviderCall records one LLM provider call.
func (m *Metrics) RecordProviderCall(operation, provider string, err error, duration time.Duration) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.ProviderCallsTotal.WithLabelValues(operation, provider, status).Inc()
	m.ProviderCallDuration.WithLabelValues(operation, provider).Observe(duration.Seconds())
}

// RecordAnswer records the final state of a retrieval-augmented answer.
func (m *Metrics) RecordAnswer(state string) {
	m.AnswerOutcomesTotal.WithLabelValues(state).Inc()
}

// RecordFallback records why an enriched answer fell back.
func (m *Metrics) RecordFallback(reason string) {
	m.RetrievalFallbacksTotal.WithLabelValues(reason).Inc()
}

// RecordFragment counts one streamed fragment.
func (m *Metrics) RecordFragment() {
	m.StreamFragmentsTotal.Inc()
}

// RecordUpload records a knowledge upload attempt.
func (m *Metrics) RecordUpload(size int, err error) {
	if err != nil {
		m.KnowledgeUploadsTotal.WithLabelValues("error").Inc()
		return
	}
	m.KnowledgeUploadsTotal.WithLabelValues("success").Inc()
	m.KnowledgeUploadBytes.Add(float64(size))
}

// TrackInFlight increments the in-flight gauge and returns the matching decrement.
func (m *Metrics) TrackInFlight() func() {
	m.HTTPRequestsInFlight.Inc()
	return m.HTTPRequestsInFlight.Dec
}
