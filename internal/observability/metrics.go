package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges shared by the
// store adapters, the analysis service, and the run watcher.
type Metrics struct {
	ChunkFetches       prometheus.Counter
	ChunkFetchErrors   prometheus.Counter
	ChunkBytes         prometheus.Counter
	ChunkFetchDuration prometheus.Histogram
	ChunkCache         *prometheus.CounterVec // labels: result={hit,miss}

	// Analysis request metrics.
	AnalysisRequests *prometheus.CounterVec // labels: stat={mean,std}, outcome={success,error}
	AnalysisDuration prometheus.Histogram

	// Run watcher metrics.
	RunsDiscovered  prometheus.Counter
	EventsPublished prometheus.Counter
	WatcherRunning  prometheus.Gauge
}

// NewMetrics creates and registers all service metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		ChunkFetches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hrrr_zarr",
			Name:      "chunk_fetches_total",
			Help:      "Total object reads issued against the archive store.",
		}),
		ChunkFetchErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hrrr_zarr",
			Name:      "chunk_fetch_errors_total",
			Help:      "Store reads that failed for reasons other than a missing key.",
		}),
		ChunkBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hrrr_zarr",
			Name:      "chunk_bytes_total",
			Help:      "Total compressed bytes read from the archive store.",
		}),
		ChunkFetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "hrrr_zarr",
			Name:      "chunk_fetch_duration_seconds",
			Help:      "Latency of individual store reads.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		ChunkCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hrrr_zarr",
			Name:      "chunk_cache_total",
			Help:      "Chunk cache lookups by result.",
		}, []string{"result"}),
		AnalysisRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hrrr_zarr",
			Name:      "analysis_requests_total",
			Help:      "Analysis requests by statistic and outcome.",
		}, []string{"stat", "outcome"}),
		AnalysisDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "hrrr_zarr",
			Name:      "analysis_duration_seconds",
			Help:      "Duration of a complete fetch-combine-reduce cycle.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		RunsDiscovered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hrrr_zarr",
			Name:      "runs_discovered_total",
			Help:      "Model runs found in the archive by the watcher.",
		}),
		EventsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hrrr_zarr",
			Name:      "events_published_total",
			Help:      "Run availability events written to Kafka.",
		}),
		WatcherRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "hrrr_zarr",
			Name:      "watcher_running",
			Help:      "1 when the run watcher is active, 0 when shut down.",
		}),
	}

	prometheus.MustRegister(
		m.ChunkFetches,
		m.ChunkFetchErrors,
		m.ChunkBytes,
		m.ChunkFetchDuration,
		m.ChunkCache,
		m.AnalysisRequests,
		m.AnalysisDuration,
		m.RunsDiscovered,
		m.EventsPublished,
		m.WatcherRunning,
	)

	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		ChunkFetches:       prometheus.NewCounter(prometheus.CounterOpts{Namespace: "hrrr_zarr", Name: "chunk_fetches_total"}),
		ChunkFetchErrors:   prometheus.NewCounter(prometheus.CounterOpts{Namespace: "hrrr_zarr", Name: "chunk_fetch_errors_total"}),
		ChunkBytes:         prometheus.NewCounter(prometheus.CounterOpts{Namespace: "hrrr_zarr", Name: "chunk_bytes_total"}),
		ChunkFetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "hrrr_zarr", Name: "chunk_fetch_duration_seconds"}),
		ChunkCache:         prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "hrrr_zarr", Name: "chunk_cache_total"}, []string{"result"}),
		AnalysisRequests:   prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "hrrr_zarr", Name: "analysis_requests_total"}, []string{"stat", "outcome"}),
		AnalysisDuration:   prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "hrrr_zarr", Name: "analysis_duration_seconds"}),
		RunsDiscovered:     prometheus.NewCounter(prometheus.CounterOpts{Namespace: "hrrr_zarr", Name: "runs_discovered_total"}),
		EventsPublished:    prometheus.NewCounter(prometheus.CounterOpts{Namespace: "hrrr_zarr", Name: "events_published_total"}),
		WatcherRunning:     prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "hrrr_zarr", Name: "watcher_running"}),
	}
}
