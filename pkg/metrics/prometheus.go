// Package metrics provides Prometheus metrics for the overlay loading pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Fetch outcome status label values.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// Manager owns the overlay metrics. A nil *Manager is valid and records nothing.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         *prometheus.Registry

	fetchOutcomes      *prometheus.CounterVec
	fetchDuration      prometheus.Histogram
	loadProgress       prometheus.Gauge
	layersRegistered   prometheus.Gauge
	layersVisible      prometheus.Gauge
	visibilityChanges  *prometheus.CounterVec
	searchQueries      prometheus.Counter
	clusteringDegraded prometheus.Counter
}

// NewManager creates a metrics manager on its own registry.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "plat",
		subsystem:        "overlay",
		histogramBuckets: prometheus.DefBuckets,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.registry == nil {
		m.registry = prometheus.NewRegistry()
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.fetchOutcomes = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "fetch_outcomes_total",
		Help:      "Dataset retrievals by terminal status",
	}, []string{"status"})

	m.fetchDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "fetch_duration_seconds",
		Help:      "Time from retrieval start to settle, per dataset",
		Buckets:   m.histogramBuckets,
	})

	m.loadProgress = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "load_progress_percent",
		Help:      "Percentage of datasets settled in the current session",
	})

	m.layersRegistered = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "layers_registered",
		Help:      "Layers present in the registry",
	})

	m.layersVisible = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "layers_visible",
		Help:      "Layers currently attached to the rendering surface",
	})

	m.visibilityChanges = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "visibility_changes_total",
		Help:      "Visibility change events emitted by the registry",
	}, []string{"layer"})

	m.searchQueries = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "search_queries_total",
		Help:      "Search scans over visible layers",
	})

	m.clusteringDegraded = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "clustering_degraded_total",
		Help:      "Point layers rendered unclustered because clustering was unavailable",
	})
}

// RecordFetch records one settled retrieval.
func (m *Manager) RecordFetch(success bool, took time.Duration) {
	if m == nil {
		return
	}
	status := StatusFailure
	if success {
		status = StatusSuccess
	}
	m.fetchOutcomes.WithLabelValues(status).Inc()
	m.fetchDuration.Observe(took.Seconds())
}

// SetProgress records the current load percentage.
func (m *Manager) SetProgress(percent int) {
	if m == nil {
		return
	}
	m.loadProgress.Set(float64(percent))
}

// SetLayers records registry size and visible count.
func (m *Manager) SetLayers(registered, visible int) {
	if m == nil {
		return
	}
	m.layersRegistered.Set(float64(registered))
	m.layersVisible.Set(float64(visible))
}

// RecordVisibilityChange counts one emitted visibility event.
func (m *Manager) RecordVisibilityChange(layer string) {
	if m == nil {
		return
	}
	m.visibilityChanges.WithLabelValues(layer).Inc()
}

// RecordSearch counts one search scan.
func (m *Manager) RecordSearch() {
	if m == nil {
		return
	}
	m.searchQueries.Inc()
}

// RecordClusteringDegraded counts one clustering fallback.
func (m *Manager) RecordClusteringDegraded() {
	if m == nil {
		return
	}
	m.clusteringDegraded.Inc()
}

// Registry returns the underlying Prometheus registry.
func (m *Manager) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Manager) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
