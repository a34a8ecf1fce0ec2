package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the engine's Prometheus collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	ingestedChunks     prometheus.Counter
	ingestFailures     *prometheus.CounterVec
	ingestDuration     prometheus.Histogram
	queryDuration      prometheus.Histogram
	generationDuration *prometheus.HistogramVec
	storeChunks        prometheus.Gauge
	rateLimited        *prometheus.CounterVec
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ingestedChunks: f.NewCounter(prometheus.CounterOpts{
			Name: "ragchat_ingested_chunks_total",
			Help: "Chunks committed to the document store",
		}),
		ingestFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ragchat_ingest_failures_total",
			Help: "Failed ingestions by error kind",
		}, []string{"kind"}),
		ingestDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "ragchat_ingest_duration_seconds",
			Help:    "Wall time of a document ingestion",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
		queryDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "ragchat_query_duration_seconds",
			Help:    "Wall time of a retrieval query including query embedding",
			Buckets: prometheus.DefBuckets,
		}),
		generationDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ragchat_generation_duration_seconds",
			Help:    "Wall time of text generation calls",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		}, []string{"outcome"}),
		storeChunks: f.NewGauge(prometheus.GaugeOpts{
			Name: "ragchat_store_chunks",
			Help: "Chunks currently held in memory",
		}),
		rateLimited: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ragchat_rate_limited_total",
			Help: "Requests rejected by the rate limiter",
		}, []string{"route"}),
	}
}

func (m *Metrics) IngestSucceeded(chunks, total int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.ingestedChunks.Add(float64(chunks))
	m.storeChunks.Set(float64(total))
	m.ingestDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) IngestFailed(kind string) {
	if m == nil {
		return
	}
	m.ingestFailures.WithLabelValues(kind).Inc()
}

func (m *Metrics) QueryObserved(elapsed time.Duration) {
	if m == nil {
		return
	}
	m.queryDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) GenerationObserved(elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.generationDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

func (m *Metrics) RateLimited(route string) {
	if m == nil {
		return
	}
	m.rateLimited.WithLabelValues(route).Inc()
}
