package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campuseats/preptime/internal/config"
	"github.com/campuseats/preptime/internal/model"
	"github.com/campuseats/preptime/internal/monitoring"
)

// mockPredictor implements Predictor with a canned result or error.
type mockPredictor struct {
	result *model.PredictionResult
	err    error
	panics bool
}

func (m *mockPredictor) Predict(_ context.Context, _ model.PredictionRequest) (*model.PredictionResult, error) {
	if m.panics {
		panic("boom")
	}
	return m.result, m.err
}

// mockTrainer implements Trainer, signalling ran for each Run call.
type mockTrainer struct {
	report model.TrainingReport
	last   *model.TrainingReport
	ran    chan struct{}
}

func (m *mockTrainer) Run(_ context.Context) model.TrainingReport {
	if m.ran != nil {
		m.ran <- struct{}{}
	}
	return m.report
}

func (m *mockTrainer) LatestReport() *model.TrainingReport { return m.last }

func newTestServer(p Predictor, t Trainer) *Server {
	return New(p, t, func() bool { return true },
		config.ServerConfig{AllowedOrigins: []string{"http://localhost:5173"}},
		config.TrainingConfig{CooldownSeconds: 60},
		monitoring.New(prometheus.NewRegistry()),
	)
}

func postJSON(t *testing.T, handler http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func TestHandlePredict_Success(t *testing.T) {
	readyTime := time.Date(2025, 6, 10, 12, 30, 0, 0, time.UTC)
	p := &mockPredictor{result: &model.PredictionResult{
		PredictedReadyTime: readyTime,
		Confidence:         model.ConfidenceML,
		EstimatedMinutes:   27.5,
		QueuePosition:      5,
		Method:             model.MethodMLModel,
		RushDetected:       true,
	}}
	srv := newTestServer(p, &mockTrainer{})

	w := postJSON(t, srv.Router(), "/predict", model.PredictionRequest{VendorID: "vendor-1"})

	require.Equal(t, http.StatusOK, w.Code)
	var got model.PredictionResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, model.MethodMLModel, got.Method)
	assert.Equal(t, 0.85, got.Confidence)
	assert.Equal(t, 27.5, got.EstimatedMinutes)
	assert.Equal(t, 5, got.QueuePosition)
	assert.True(t, got.RushDetected)
	assert.True(t, got.PredictedReadyTime.Equal(readyTime))
}

func TestHandlePredict_InvalidBody(t *testing.T) {
	srv := newTestServer(&mockPredictor{}, &mockTrainer{})

	req := httptest.NewRequest(http.MethodPost, "/predict", strings.NewReader("{not json"))
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid request body")
}

func TestHandlePredict_MissingVendorID(t *testing.T) {
	srv := newTestServer(&mockPredictor{}, &mockTrainer{})

	w := postJSON(t, srv.Router(), "/predict", model.PredictionRequest{OrderID: "order-1"})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "vendor_id is required")
}

func TestHandlePredict_EmergencyFallbackOnError(t *testing.T) {
	p := &mockPredictor{err: eris.New("pipeline exploded")}
	srv := newTestServer(p, &mockTrainer{})
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	srv.now = func() time.Time { return now }

	w := postJSON(t, srv.Router(), "/predict", model.PredictionRequest{
		VendorID:             "vendor-1",
		TotalBaseTimeMinutes: 20,
	})

	require.Equal(t, http.StatusOK, w.Code)
	var got model.PredictionResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, model.MethodEmergencyFallback, got.Method)
	assert.Equal(t, 0.1, got.Confidence)
	assert.Equal(t, 30.0, got.EstimatedMinutes)
	assert.Equal(t, -1, got.QueuePosition)
	assert.False(t, got.RushDetected)
	assert.True(t, got.PredictedReadyTime.Equal(now))
}

func TestHandlePredict_EmergencyFallbackOnPanic(t *testing.T) {
	srv := newTestServer(&mockPredictor{panics: true}, &mockTrainer{})

	w := postJSON(t, srv.Router(), "/predict", model.PredictionRequest{
		VendorID:             "vendor-1",
		TotalBaseTimeMinutes: 10,
	})

	require.Equal(t, http.StatusOK, w.Code)
	var got model.PredictionResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, model.MethodEmergencyFallback, got.Method)
	assert.Equal(t, 15.0, got.EstimatedMinutes)
}

func TestHandleTrain(t *testing.T) {
	tr := &mockTrainer{
		report: model.TrainingReport{Status: model.TrainingStatusSuccess},
		ran:    make(chan struct{}, 1),
	}
	srv := newTestServer(&mockPredictor{}, tr)

	w := postJSON(t, srv.Router(), "/train", map[string]string{})

	require.Equal(t, http.StatusOK, w.Code)
	var got map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "Training task started in background", got["message"])
	assert.Equal(t, "processing", got["status"])

	select {
	case <-tr.ran:
	case <-time.After(2 * time.Second):
		t.Fatal("training run never started")
	}
}

func TestHandleTrain_CooldownDropsSecondTrigger(t *testing.T) {
	tr := &mockTrainer{ran: make(chan struct{}, 2)}
	srv := newTestServer(&mockPredictor{}, tr)
	router := srv.Router()

	first := postJSON(t, router, "/train", map[string]string{})
	second := postJSON(t, router, "/train", map[string]string{})

	// Both respond processing; only the first actually kicks a run.
	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, http.StatusOK, second.Code)
	assert.Contains(t, second.Body.String(), "processing")

	select {
	case <-tr.ran:
	case <-time.After(2 * time.Second):
		t.Fatal("training run never started")
	}
	select {
	case <-tr.ran:
		t.Fatal("cooldown did not drop the second trigger")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestHandleMetrics_NoMetrics(t *testing.T) {
	srv := newTestServer(&mockPredictor{}, &mockTrainer{})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"no_metrics"}`, w.Body.String())
}

func TestHandleMetrics_LastReport(t *testing.T) {
	tr := &mockTrainer{last: &model.TrainingReport{
		Status: model.TrainingStatusSuccess,
		Metrics: &model.TrainingMetrics{
			MeanAbsoluteError: 3.2,
			R2:                0.74,
			SampleCount:       180,
		},
	}}
	srv := newTestServer(&mockPredictor{}, tr)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var got model.TrainingReport
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, model.TrainingStatusSuccess, got.Status)
	require.NotNil(t, got.Metrics)
	assert.Equal(t, 180, got.Metrics.SampleCount)
}

func TestHandleHealth(t *testing.T) {
	srv := newTestServer(&mockPredictor{}, &mockTrainer{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var got map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "healthy", got["status"])
	assert.Equal(t, true, got["model_loaded"])
	assert.Equal(t, Version, got["version"])
}

func TestRouter_CORSPreflight(t *testing.T) {
	srv := newTestServer(&mockPredictor{}, &mockTrainer{})

	req := httptest.NewRequest(http.MethodOptions, "/predict", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))
}
