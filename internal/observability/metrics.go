package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "heatwave"

// Metrics holds the Prometheus counters, histograms, and gauges for the
// threshold, detection, and tracking pipelines.
type Metrics struct {
	PipelineRunning prometheus.Gauge

	// Threshold stage.
	ThresholdMissingDays prometheus.Counter

	// Detection stage.
	DaysProcessed    prometheus.Counter
	DayFailures      prometheus.Counter
	ClustersDetected prometheus.Counter
	DayDuration      prometheus.Histogram

	// Tracking stage.
	TracksOpened  prometheus.Counter
	EventsEmitted prometheus.Counter
	Lineage       *prometheus.CounterVec // labels: kind={split,merge}
	DataGaps      prometheus.Counter
	SinkErrors    *prometheus.CounterVec // labels: sink={json,sqlite,kafka,plot}

	// Geocoding metrics.
	GeocodeRequests    *prometheus.CounterVec   // labels: method={reverse}, outcome={success,error,empty}
	GeocodeCache       *prometheus.CounterVec   // labels: method={reverse}, result={hit,miss}
	GeocodeAPIDuration *prometheus.HistogramVec // labels: method={reverse}
	GeocodeEnabled     prometheus.Gauge
}

var (
	dayDurationBuckets     = []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5}
	geocodeDurationBuckets = []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5}
)

func newMetrics() *Metrics {
	return &Metrics{
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 while a pipeline is active, 0 once it has finished.",
		}),
		ThresholdMissingDays: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "threshold_missing_days_total",
			Help:      "Dates with no climatology samples for their calendar day.",
		}),
		DaysProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "days_processed_total",
			Help:      "Dates whose cluster artifacts were written.",
		}),
		DayFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "day_failures_total",
			Help:      "Dates whose detection failed.",
		}),
		ClustersDetected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "clusters_detected_total",
			Help:      "Clusters kept after the area filter.",
		}),
		DayDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "day_duration_seconds",
			Help:      "Time to detect, filter, attribute, and persist one date.",
			Buckets:   dayDurationBuckets,
		}),
		TracksOpened: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tracks_opened_total",
			Help:      "Tracks created by the tracker.",
		}),
		EventsEmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_emitted_total",
			Help:      "Event summaries handed to the sinks.",
		}),
		Lineage: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lineage_total",
			Help:      "Track splits and merges.",
		}, []string{"kind"}),
		DataGaps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "data_gaps_total",
			Help:      "Dates with missing or unreadable artifacts during tracking.",
		}),
		SinkErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sink_errors_total",
			Help:      "Event sink write failures by sink.",
		}, []string{"sink"}),
		GeocodeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_requests_total",
			Help:      "Geocoding API requests by method and outcome.",
		}, []string{"method", "outcome"}),
		GeocodeCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_cache_total",
			Help:      "Geocoding cache lookups by method and result.",
		}, []string{"method", "result"}),
		GeocodeAPIDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "geocode_api_duration_seconds",
			Help:      "Mapbox API request duration in seconds.",
			Buckets:   geocodeDurationBuckets,
		}, []string{"method"}),
		GeocodeEnabled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "geocode_enabled",
			Help:      "1 when geocoding enrichment is enabled, 0 otherwise.",
		}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.PipelineRunning,
		m.ThresholdMissingDays,
		m.DaysProcessed,
		m.DayFailures,
		m.ClustersDetected,
		m.DayDuration,
		m.TracksOpened,
		m.EventsEmitted,
		m.Lineage,
		m.DataGaps,
		m.SinkErrors,
		m.GeocodeRequests,
		m.GeocodeCache,
		m.GeocodeAPIDuration,
		m.GeocodeEnabled,
	}
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates Metrics registered with a fresh registry to
// avoid "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	m := newMetrics()
	prometheus.NewRegistry().MustRegister(m.collectors()...)
	return m
}
