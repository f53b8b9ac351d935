package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// search pipeline and the incident ingest loop.
type Metrics struct {
	SearchRequests *prometheus.CounterVec // labels: data_source={real,cache,fallback,error}
	SearchDuration prometheus.Histogram
	ItemsPersisted prometheus.Counter

	// Per-adapter fan-out metrics.
	AdapterFetches  *prometheus.CounterVec   // labels: adapter, outcome={success,error,empty}
	AdapterDuration *prometheus.HistogramVec // labels: adapter

	// Incident ingest metrics.
	ReportsConsumed prometheus.Counter
	ReportErrors    prometheus.Counter
	IngestRunning   prometheus.Gauge
}

// NewMetrics creates and registers all metrics with the default registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.SearchRequests,
		m.SearchDuration,
		m.ItemsPersisted,
		m.AdapterFetches,
		m.AdapterDuration,
		m.ReportsConsumed,
		m.ReportErrors,
		m.IngestRunning,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		SearchRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flood_search",
			Name:      "requests_total",
			Help:      "Search requests by result data source.",
		}, []string{"data_source"}),
		SearchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "flood_search",
			Name:      "request_duration_seconds",
			Help:      "End-to-end search request duration.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 20},
		}),
		ItemsPersisted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "flood_search",
			Name:      "items_persisted_total",
			Help:      "Content items written to the store.",
		}),
		AdapterFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flood_search",
			Name:      "adapter_fetches_total",
			Help:      "Source adapter fetches by adapter and outcome.",
		}, []string{"adapter", "outcome"}),
		AdapterDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "flood_search",
			Name:      "adapter_fetch_duration_seconds",
			Help:      "Source adapter fetch duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2.5, 5, 10, 15},
		}, []string{"adapter"}),
		ReportsConsumed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "flood_ingest",
			Name:      "reports_consumed_total",
			Help:      "Incident reports read from the source topic.",
		}),
		ReportErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "flood_ingest",
			Name:      "report_errors_total",
			Help:      "Incident reports dropped due to parse or store failures.",
		}),
		IngestRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "flood_ingest",
			Name:      "running",
			Help:      "1 when the incident ingest loop is active, 0 when shut down.",
		}),
	}
}
