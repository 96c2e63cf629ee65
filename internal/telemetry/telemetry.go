package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "newsrag"

// Metrics groups the service's Prometheus collectors. A nil *Metrics is valid
// and records nothing, so components can be built without telemetry.
type Metrics struct {
	registry *prometheus.Registry

	ingestRuns        *prometheus.CounterVec
	ingestArticles    prometheus.Counter
	ingestDuration    prometheus.Histogram
	embeddingAttempts *prometheus.CounterVec
	embeddingRetries  prometheus.Counter
	queryDuration     prometheus.Histogram
	queryFailures     *prometheus.CounterVec
	socketClients     prometheus.Gauge
}

// New builds a fresh registry with process and Go runtime collectors attached.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		ingestRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "runs_total",
			Help:      "Ingestion runs by result.",
		}, []string{"result"}),
		ingestArticles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "articles_total",
			Help:      "Articles upserted into the vector index.",
		}),
		ingestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "duration_seconds",
			Help:      "Wall time of ingestion runs.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}),
		embeddingAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "embedding",
			Name:      "attempts_total",
			Help:      "Embedding provider calls by outcome.",
		}, []string{"outcome"}),
		embeddingRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "embedding",
			Name:      "retries_total",
			Help:      "Embedding retries after a failed attempt.",
		}),
		queryDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "query",
			Name:      "duration_seconds",
			Help:      "End-to-end chat query latency.",
			Buckets:   prometheus.DefBuckets,
		}),
		queryFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "query",
			Name:      "failures_total",
			Help:      "Chat queries that aborted, by failing stage.",
		}, []string{"stage"}),
		socketClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "socket",
			Name:      "clients",
			Help:      "Connected WebSocket clients.",
		}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.ingestRuns,
		m.ingestArticles,
		m.ingestDuration,
		m.embeddingAttempts,
		m.embeddingRetries,
		m.queryDuration,
		m.queryFailures,
		m.socketClients,
	)
	return m
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) IngestRun(count int, took time.Duration, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.ingestRuns.WithLabelValues(result).Inc()
	m.ingestArticles.Add(float64(count))
	m.ingestDuration.Observe(took.Seconds())
}

func (m *Metrics) EmbeddingAttempt(err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.embeddingAttempts.WithLabelValues(outcome).Inc()
}

func (m *Metrics) EmbeddingRetry() {
	if m == nil {
		return
	}
	m.embeddingRetries.Inc()
}

func (m *Metrics) QueryDone(took time.Duration) {
	if m == nil {
		return
	}
	m.queryDuration.Observe(took.Seconds())
}

func (m *Metrics) QueryFailed(stage string) {
	if m == nil {
		return
	}
	m.queryFailures.WithLabelValues(stage).Inc()
}

func (m *Metrics) SocketClients(delta int) {
	if m == nil {
		return
	}
	m.socketClients.Add(float64(delta))
}
