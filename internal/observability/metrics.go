package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "pws_feed"

// Metrics holds the Prometheus counters, histograms, and gauges for the feed.
type Metrics struct {
	// Fetch metrics.
	FetchesTotal   *prometheus.CounterVec // labels: outcome={array_end,capacity,connection_failure,...}
	RecordsDecoded prometheus.Counter
	FetchDuration  prometheus.Histogram

	// Pipeline metrics.
	RecordsPublished    prometheus.Counter
	DuplicatesSkipped   prometheus.Counter
	LoadErrors          prometheus.Counter
	PipelineRunning     prometheus.Gauge
	LastSuccessfulFetch prometheus.Gauge
}

// NewMetrics creates and registers all feed metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.FetchesTotal,
		m.RecordsDecoded,
		m.FetchDuration,
		m.RecordsPublished,
		m.DuplicatesSkipped,
		m.LoadErrors,
		m.PipelineRunning,
		m.LastSuccessfulFetch,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		FetchesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetches_total",
			Help:      "Fetch attempts against the WU API by outcome.",
		}, []string{"outcome"}),
		RecordsDecoded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_decoded_total",
			Help:      "Total observation records decoded from the stream.",
		}),
		FetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Duration of a complete fetch from dial to connection close.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		RecordsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_published_total",
			Help:      "Total observations written to the sink.",
		}),
		DuplicatesSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "duplicates_skipped_total",
			Help:      "Observations dropped because they were already published.",
		}),
		LoadErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "load_errors_total",
			Help:      "Total failed writes to the sink.",
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 when the pipeline is active, 0 when shut down.",
		}),
		LastSuccessfulFetch: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_successful_fetch_timestamp_seconds",
			Help:      "Unix time of the last fetch that reached the observation array.",
		}),
	}
}
