package crawler

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exposes crawl progress to Prometheus. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	FetchAttempts  prometheus.Counter
	FetchFailures  *prometheus.CounterVec
	FetchDuration  prometheus.Histogram
	PagesExtracted prometheus.Counter
	FrontierSize   prometheus.Gauge
	BatchDuration  prometheus.Histogram
}

// NewMetrics registers the crawler metrics with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		FetchAttempts: factory.NewCounter(prometheus.CounterOpts{
			Name: "linkharvest_fetch_attempts_total",
			Help: "Total number of HTTP fetch attempts, retries included.",
		}),
		FetchFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "linkharvest_fetch_failures_total",
			Help: "URLs given up on, by reason.",
		}, []string{"reason"}),
		FetchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "linkharvest_fetch_duration_seconds",
			Help:    "Duration of single fetch attempts.",
			Buckets: prometheus.DefBuckets,
		}),
		PagesExtracted: factory.NewCounter(prometheus.CounterOpts{
			Name: "linkharvest_pages_extracted_total",
			Help: "Pages turned into records.",
		}),
		FrontierSize: factory.NewGauge(prometheus.GaugeOpts{
			Name: "linkharvest_frontier_size",
			Help: "Entries waiting in the frontier.",
		}),
		BatchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "linkharvest_batch_duration_seconds",
			Help:    "Wall time of one batch, barrier included.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}),
	}
}

func (m *Metrics) attempt(d time.Duration) {
	if m == nil {
		return
	}
	m.FetchAttempts.Inc()
	m.FetchDuration.Observe(d.Seconds())
}

func (m *Metrics) failure(reason string) {
	if m == nil {
		return
	}
	m.FetchFailures.WithLabelValues(reason).Inc()
}

func (m *Metrics) extracted() {
	if m == nil {
		return
	}
	m.PagesExtracted.Inc()
}

func (m *Metrics) frontier(n int) {
	if m == nil {
		return
	}
	m.FrontierSize.Set(float64(n))
}

func (m *Metrics) batch(d time.Duration) {
	if m == nil {
		return
	}
	m.BatchDuration.Observe(d.Seconds())
}
