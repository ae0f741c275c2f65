package telemetry

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}

func TestMetrics_Record(t *testing.T) {
	m := New()

	m.RecordUpload(120)
	m.RecordTraining("classification", time.Second, nil)
	m.RecordTraining("classification", time.Second, errors.New("boom"))
	m.RecordPrediction("regression", nil)
	m.SetStoreSize("datasets", 3)
	m.ObserveRequest(http.MethodGet, "/health", http.StatusOK, 10*time.Millisecond)
	m.ObserveRequest(http.MethodGet, "", http.StatusNotFound, time.Millisecond)

	body := scrape(t, m)
	for _, line := range []string{
		"mlapi_datasets_uploads_total 1",
		`mlapi_models_trainings_total{status="success",task_type="classification"} 1`,
		`mlapi_models_trainings_total{status="error",task_type="classification"} 1`,
		`mlapi_models_training_duration_seconds_count{task_type="classification"} 1`,
		`mlapi_models_predictions_total{status="success",task_type="regression"} 1`,
		`mlapi_store_items{store="datasets"} 3`,
		`mlapi_http_requests_total{method="GET",route="/health",status="200"} 1`,
		`mlapi_http_requests_total{method="GET",route="unmatched",status="404"} 1`,
	} {
		assert.Contains(t, body, line)
	}
}

func TestMetrics_InFlight(t *testing.T) {
	m := New()

	done := m.RequestStarted()
	assert.Contains(t, scrape(t, m), "mlapi_http_inflight_requests 1")
	done()
	assert.Contains(t, scrape(t, m), "mlapi_http_inflight_requests 0")
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordUpload(1)
		m.RecordTraining("regression", time.Second, nil)
		m.RecordPrediction("regression", nil)
		m.SetStoreSize("models", 1)
		m.ObserveRequest(http.MethodGet, "/", http.StatusOK, time.Millisecond)
		m.RequestStarted()()
	})
}
