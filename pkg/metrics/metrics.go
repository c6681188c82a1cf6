// Package metrics defines the Prometheus collectors shared by the crawler,
// the indexer and the assistant, and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the platform.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	PagesFetchedTotal   *prometheus.CounterVec
	RecordsTotal        *prometheus.CounterVec
	FrontierQueueLength prometheus.Gauge

	AnswersTotal     *prometheus.CounterVec
	AnswerLatency    *prometheus.HistogramVec
	UpstreamLatency  *prometheus.HistogramVec
	RetrievedHits    prometheus.Histogram
	CacheHitsTotal   prometheus.Counter
	CacheMissesTotal prometheus.Counter

	VectorsIndexedTotal prometheus.Counter
	CircuitBreakerState *prometheus.GaugeVec
}

// New creates all collectors and registers them with the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates all collectors and registers them with reg.
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		PagesFetchedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_pages_fetched_total",
				Help: "Pages fetched by the crawler by outcome (ok, error, robots_denied).",
			},
			[]string{"outcome"},
		),
		RecordsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_records_total",
				Help: "Extracted records by disposition (accepted, duplicate, empty, filtered).",
			},
			[]string{"disposition"},
		),
		FrontierQueueLength: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "crawler_frontier_queue_length",
				Help: "URLs waiting in the crawl frontier.",
			},
		),
		AnswersTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "assistant_answers_total",
				Help: "Answers produced by outcome (ok, embedding_error, retrieval_error, generation_error).",
			},
			[]string{"outcome"},
		),
		AnswerLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "assistant_answer_latency_seconds",
				Help:    "End-to-end answer latency in seconds.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 4, 8, 16, 32},
			},
			[]string{"cache_status"},
		),
		UpstreamLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "assistant_upstream_latency_seconds",
				Help:    "Latency of hosted model calls in seconds.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 4, 8, 16},
			},
			[]string{"call"},
		),
		RetrievedHits: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "assistant_retrieved_hits",
				Help:    "Context passages retrieved per question.",
				Buckets: []float64{0, 1, 2, 3, 5, 10},
			},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "answer_cache_hits_total",
				Help: "Total number of answer cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "answer_cache_misses_total",
				Help: "Total number of answer cache misses.",
			},
		),
		VectorsIndexedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "indexer_vectors_total",
				Help: "Corpus records embedded into the vector index.",
			},
		),
		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=open, 2=half-open).",
			},
			[]string{"name"},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.PagesFetchedTotal,
		m.RecordsTotal,
		m.FrontierQueueLength,
		m.AnswersTotal,
		m.AnswerLatency,
		m.UpstreamLatency,
		m.RetrievedHits,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.VectorsIndexedTotal,
		m.CircuitBreakerState,
	)

	return m
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
