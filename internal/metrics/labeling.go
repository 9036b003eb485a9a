package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// LabelingMetrics records page loads and label submissions. It satisfies
// labeling.Observer.
type LabelingMetrics struct {
	registry *prometheus.Registry

	pageLoadsTotal    *prometheus.CounterVec
	pageLoadDuration  *prometheus.HistogramVec
	labelsTotal       *prometheus.CounterVec
	pageAdvances      *prometheus.CounterVec
	datasetsCompleted *prometheus.CounterVec
}

// NewLabelingMetrics creates and registers the labeling metrics.
func NewLabelingMetrics(registry *prometheus.Registry) (*LabelingMetrics, error) {
	m := &LabelingMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *LabelingMetrics) initMetrics() {
	m.pageLoadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "labeling_page_loads_total",
			Help: "Total number of labeling page loads",
		},
		[]string{"outcome", "cache_hit"}, // outcome: ok, recovered, empty, stale
	)

	m.pageLoadDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "labeling_page_load_duration_seconds",
			Help:    "Time taken to load a labeling page",
			Buckets: prometheus.ExponentialBuckets(BucketStart1ms, BucketFactor2, BucketCount12),
		},
		[]string{"outcome"},
	)

	m.labelsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "labeling_labels_total",
			Help: "Total number of labels written",
		},
		[]string{"dataset_id", "kind"}, // kind: inserted, updated, redirected
	)

	m.pageAdvances = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "labeling_page_advances_total",
			Help: "Total number of automatic page advances after a full page was labeled",
		},
		[]string{"dataset_id"},
	)

	m.datasetsCompleted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "labeling_datasets_completed_total",
			Help: "Total number of users that finished a dataset",
		},
		[]string{"dataset_id"},
	)
}

func (m *LabelingMetrics) getCollectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.pageLoadsTotal,
		m.pageLoadDuration,
		m.labelsTotal,
		m.pageAdvances,
		m.datasetsCompleted,
	}
}

// Describe implements the Collector interface
func (m *LabelingMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, collector := range m.getCollectors() {
		collector.Describe(ch)
	}
}

// Collect implements the Collector interface
func (m *LabelingMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, collector := range m.getCollectors() {
		collector.Collect(ch)
	}
}

// PageLoaded records one page load.
func (m *LabelingMetrics) PageLoaded(outcome string, cacheHit bool, elapsed time.Duration) {
	m.pageLoadsTotal.WithLabelValues(outcome, strconv.FormatBool(cacheHit)).Inc()
	m.pageLoadDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

// LabelsSubmitted records the rows one submission wrote.
func (m *LabelingMetrics) LabelsSubmitted(datasetID string, inserted, updated, redirected int) {
	m.labelsTotal.WithLabelValues(datasetID, KindInserted).Add(float64(inserted))
	m.labelsTotal.WithLabelValues(datasetID, KindUpdated).Add(float64(updated))
	m.labelsTotal.WithLabelValues(datasetID, KindRedirected).Add(float64(redirected))
}

// PageAdvanced records an automatic move to the next page.
func (m *LabelingMetrics) PageAdvanced(datasetID string) {
	m.pageAdvances.WithLabelValues(datasetID).Inc()
}

// DatasetCompleted records a user reaching completed == total.
func (m *LabelingMetrics) DatasetCompleted(datasetID string) {
	m.datasetsCompleted.WithLabelValues(datasetID).Inc()
}

// ForgetDataset drops every series labeled with the dataset id.
func (m *LabelingMetrics) ForgetDataset(datasetID string) {
	match := prometheus.Labels{"dataset_id": datasetID}
	m.labelsTotal.DeletePartialMatch(match)
	m.pageAdvances.DeletePartialMatch(match)
	m.datasetsCompleted.DeletePartialMatch(match)
}
