package router

import (
	"bytes"
	"encoding/json"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/mlapi/internal/config"
	"github.com/YuminosukeSato/mlapi/internal/handler"
	"github.com/YuminosukeSato/mlapi/internal/middleware"
	"github.com/YuminosukeSato/mlapi/internal/service/dataset"
	"github.com/YuminosukeSato/mlapi/internal/service/ml"
	"github.com/YuminosukeSato/mlapi/internal/store"
	"github.com/YuminosukeSato/mlapi/internal/telemetry"
	"github.com/YuminosukeSato/mlapi/pkg/log"
)

const exampleCSV = "a,b,target\n1,2,0\n3,4,1\n5,6,0\n7,8,1\n"

func newTestRouter(t *testing.T, limiter *middleware.RateLimiter) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	metrics := telemetry.New()
	datasets := dataset.NewService(store.NewMemory[*dataset.Dataset]("Dataset", store.DatasetIDs), metrics)
	registry := ml.NewRegistry(store.NewMemory[*ml.Record]("Model", store.ModelIDs), t.TempDir(), true, metrics)
	models := ml.NewService(datasets, ml.NewTrainer(ml.WithNEstimators(10)), registry, metrics)

	h := handler.NewHandlers("1.0.0", 1<<20, datasets, models)
	cors := config.CORSConfig{AllowedOrigins: []string{"*"}, AllowCredentials: true}
	return SetupRouter(h, metrics, cors, limiter)
}

func do(r *gin.Engine, method, path string, body *bytes.Buffer, contentType string) *httptest.ResponseRecorder {
	if body == nil {
		body = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func upload(t *testing.T, r *gin.Engine, filename, content string) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return do(r, http.MethodPost, "/api/v1/analysis/upload", &body, w.FormDataContentType())
}

func postJSON(r *gin.Engine, path, body string) *httptest.ResponseRecorder {
	return do(r, http.MethodPost, path, bytes.NewBufferString(body), "application/json")
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestRootAndHealth(t *testing.T) {
	r := newTestRouter(t, nil)

	rec := do(r, http.MethodGet, "/", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"Welcome to ML & Data Analysis API","version":"1.0.0"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get(middleware.RequestIDHeader))

	rec = do(r, http.MethodGet, "/health", nil, "")
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestAnalysisFlow(t *testing.T) {
	r := newTestRouter(t, nil)

	rec := upload(t, r, "example.csv", exampleCSV)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Equal(t, "Dataset uploaded successfully", body["message"])
	assert.Equal(t, "1", body["dataset_id"])
	info := body["analysis"].(map[string]any)["info"].(map[string]any)
	assert.Equal(t, 4.0, info["rows"])
	assert.Equal(t, 3.0, info["columns"])
	var uploaded struct {
		Analysis json.RawMessage `json:"analysis"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &uploaded))

	rec = do(r, http.MethodGet, "/api/v1/analysis/1/summary", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	again := do(r, http.MethodGet, "/api/v1/analysis/1/summary", nil, "")
	require.Equal(t, http.StatusOK, again.Code)
	assert.True(t, bytes.Equal(rec.Body.Bytes(), again.Body.Bytes()), "summary responses differ")
	assert.Equal(t, string(uploaded.Analysis), rec.Body.String())
	cols := decode(t, rec)["columns"].([]any)
	first := cols[0].(map[string]any)
	assert.Equal(t, "a", first["name"])
	assert.Equal(t, 4.0, first["mean"])

	rec = do(r, http.MethodGet, "/api/v1/analysis/1/histogram/a", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"type":"histogram","column":"a","bins":[1,3,5,7],"counts":[1,1,2]}`, rec.Body.String())

	rec = do(r, http.MethodGet, "/api/v1/analysis/1/histogram/a/plot", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	_, err := png.Decode(rec.Body)
	assert.NoError(t, err)

	rec = do(r, http.MethodGet, "/api/v1/analysis/datasets", nil, "")
	datasets := decode(t, rec)["datasets"].([]any)
	require.Len(t, datasets, 1)
	assert.Equal(t, "example.csv", datasets[0].(map[string]any)["filename"])
}

func TestAnalysisErrors(t *testing.T) {
	r := newTestRouter(t, nil)
	require.Equal(t, http.StatusOK, upload(t, r, "example.csv", exampleCSV).Code)

	tests := []struct {
		name   string
		rec    *httptest.ResponseRecorder
		status int
		detail string
	}{
		{"non csv", upload(t, r, "example.txt", exampleCSV), http.StatusBadRequest, "Only CSV files are allowed"},
		{"no file", do(r, http.MethodPost, "/api/v1/analysis/upload", nil, ""), http.StatusBadRequest, "No file uploaded"},
		{"unknown dataset", do(r, http.MethodGet, "/api/v1/analysis/99/summary", nil, ""), http.StatusNotFound, "Dataset not found"},
		{"malformed dataset id", do(r, http.MethodGet, "/api/v1/analysis/abc/histogram/a", nil, ""), http.StatusNotFound, "Dataset not found"},
		{"unknown column", do(r, http.MethodGet, "/api/v1/analysis/1/histogram/zzz", nil, ""), http.StatusBadRequest, "Column zzz not found"},
		{"unknown column plot", do(r, http.MethodGet, "/api/v1/analysis/1/histogram/zzz/plot", nil, ""), http.StatusBadRequest, "Column zzz not found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.status, tt.rec.Code)
			assert.Equal(t, tt.detail, decode(t, tt.rec)["detail"])
		})
	}
}

func TestMLFlow(t *testing.T) {
	r := newTestRouter(t, nil)
	require.Equal(t, http.StatusOK, upload(t, r, "example.csv", exampleCSV).Code)

	rec := postJSON(r, "/api/v1/ml/1/train",
		`{"target_column":"target","feature_columns":["a","b"],"model_type":"classification"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Equal(t, "model_1", body["model_id"])
	metrics := body["metrics"].(map[string]any)
	assert.Contains(t, metrics, "accuracy")
	assert.Contains(t, metrics, "confusion_matrix")

	rec = postJSON(r, "/api/v1/ml/predict/model_1", `{"features":{"a":1,"b":2}}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	pred := decode(t, rec)
	assert.Contains(t, []any{0.0, 1.0}, pred["prediction"])
	prob := pred["probability"].(float64)
	assert.GreaterOrEqual(t, prob, 0.5)
	assert.LessOrEqual(t, prob, 1.0)

	rec = postJSON(r, "/api/v1/ml/1/train",
		`{"target_column":"a","feature_columns":["b"],"model_type":"regression","test_size":0.5}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "model_2", decode(t, rec)["model_id"])

	rec = postJSON(r, "/api/v1/ml/predict/model_2", `{"features":{"b":4}}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	pred = decode(t, rec)
	assert.IsType(t, 0.0, pred["prediction"])
	assert.NotContains(t, pred, "probability")

	rec = do(r, http.MethodGet, "/api/v1/ml/models", nil, "")
	models := decode(t, rec)["models"].([]any)
	require.Len(t, models, 2)
	assert.Equal(t, "classification", models[0].(map[string]any)["model_type"])
	assert.Equal(t, "regression", models[1].(map[string]any)["model_type"])

	rec = do(r, http.MethodGet, "/api/v1/ml/models/model_2", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "a", decode(t, rec)["target_column"])
}

func TestMLErrors(t *testing.T) {
	r := newTestRouter(t, nil)
	require.Equal(t, http.StatusOK, upload(t, r, "example.csv", exampleCSV).Code)

	tests := []struct {
		name   string
		rec    *httptest.ResponseRecorder
		status int
		detail string
	}{
		{"unknown dataset", postJSON(r, "/api/v1/ml/7/train", `{"target_column":"target","feature_columns":["a"]}`), http.StatusNotFound, "Dataset not found"},
		{"unknown target", postJSON(r, "/api/v1/ml/1/train", `{"target_column":"nope","feature_columns":["a"]}`), http.StatusBadRequest, "Target column nope not found"},
		{"unknown feature", postJSON(r, "/api/v1/ml/1/train", `{"target_column":"target","feature_columns":["zz"]}`), http.StatusBadRequest, "Feature column zz not found"},
		{"bad model type", postJSON(r, "/api/v1/ml/1/train", `{"target_column":"target","feature_columns":["a"],"model_type":"svm"}`), http.StatusBadRequest, "Unsupported model type"},
		{"unknown model", postJSON(r, "/api/v1/ml/predict/model_42", `{"features":{"a":1}}`), http.StatusNotFound, "Model not found"},
		{"unknown model metadata", do(r, http.MethodGet, "/api/v1/ml/models/model_42", nil, ""), http.StatusNotFound, "Model not found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.status, tt.rec.Code)
			assert.Equal(t, tt.detail, decode(t, tt.rec)["detail"])
		})
	}

	t.Run("malformed json", func(t *testing.T) {
		rec := postJSON(r, "/api/v1/ml/1/train", `{"target_column":`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.NotEmpty(t, decode(t, rec)["detail"])
	})

	t.Run("missing required field", func(t *testing.T) {
		rec := postJSON(r, "/api/v1/ml/1/train", `{"feature_columns":["a"]}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestCORSPreflight(t *testing.T) {
	r := newTestRouter(t, nil)
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/ml/1/train", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
}

func TestMetricsEndpoint(t *testing.T) {
	r := newTestRouter(t, nil)
	require.Equal(t, http.StatusOK, upload(t, r, "example.csv", exampleCSV).Code)

	rec := do(r, http.MethodGet, "/metrics", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	text := rec.Body.String()
	assert.Contains(t, text, "mlapi_datasets_uploads_total 1")
	assert.True(t, strings.Contains(text, `route="/api/v1/analysis/upload"`))
}

func TestRateLimit(t *testing.T) {
	logger, _ := log.NewTestLogger(log.LevelDebug)
	r := newTestRouter(t, middleware.NewRateLimiter(0.001, 1, logger))

	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/health", nil, "").Code)
	rec := do(r, http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.JSONEq(t, `{"detail":"Too Many Requests"}`, rec.Body.String())
}
