package metrics

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentilabel/sentilabel-server/internal/labeling"
)

var _ labeling.Observer = (*LabelingMetrics)(nil)

func histogramCount(t *testing.T, o prometheus.Observer) uint64 {
	t.Helper()
	var metric dto.Metric
	require.NoError(t, o.(prometheus.Metric).Write(&metric))
	return metric.GetHistogram().GetSampleCount()
}

func TestLabelingMetrics_PageLoaded(t *testing.T) {
	registry := prometheus.NewRegistry()
	m, err := NewLabelingMetrics(registry)
	require.NoError(t, err)

	m.PageLoaded(labeling.OutcomeOK, true, 3*time.Millisecond)
	m.PageLoaded(labeling.OutcomeOK, false, 5*time.Millisecond)
	m.PageLoaded(labeling.OutcomeRecovered, false, time.Millisecond)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.pageLoadsTotal.WithLabelValues("ok", "true")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.pageLoadsTotal.WithLabelValues("ok", "false")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.pageLoadsTotal.WithLabelValues("recovered", "false")))
	assert.Equal(t, uint64(2), histogramCount(t, m.pageLoadDuration.WithLabelValues("ok")))
}

func TestLabelingMetrics_LabelsSubmitted(t *testing.T) {
	registry := prometheus.NewRegistry()
	m, err := NewLabelingMetrics(registry)
	require.NoError(t, err)

	m.LabelsSubmitted("ds-1", 8, 1, 1)
	m.LabelsSubmitted("ds-1", 2, 0, 0)
	m.PageAdvanced("ds-1")
	m.DatasetCompleted("ds-1")

	assert.Equal(t, float64(10), testutil.ToFloat64(m.labelsTotal.WithLabelValues("ds-1", KindInserted)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.labelsTotal.WithLabelValues("ds-1", KindUpdated)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.labelsTotal.WithLabelValues("ds-1", KindRedirected)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.pageAdvances.WithLabelValues("ds-1")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.datasetsCompleted.WithLabelValues("ds-1")))

	m.ForgetDataset("ds-1")
	assert.Equal(t, 0, testutil.CollectAndCount(m.labelsTotal))
	assert.Equal(t, 0, testutil.CollectAndCount(m.pageAdvances))
}

func TestHTTPMetrics_MiddlewareUsesRoutePattern(t *testing.T) {
	registry := prometheus.NewRegistry()
	m, err := NewHTTPMetrics(registry)
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/datasets/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	for _, id := range []string{"a", "b"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/datasets/"+id, nil))
		assert.Equal(t, http.StatusTeapot, rec.Code)
	}

	assert.Equal(t, float64(2), testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues("GET", "/datasets/{id}", "418")))
}

func TestMetrics_Handler(t *testing.T) {
	m, err := New(slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	m.Labeling.PageAdvanced("ds-1")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `labeling_page_advances_total{dataset_id="ds-1"} 1`)
	assert.Contains(t, body, "go_goroutines")
}
