package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"energy-insights/internal/backend"
	"energy-insights/internal/models"
	"energy-insights/internal/repository"
	"energy-insights/internal/services"
	"energy-insights/pkg/logging"
	"energy-insights/pkg/metrics"
)

type stubBackend struct {
	outliers   []models.OutlierResult
	analysis   *models.SeriesAnalysis
	analyzeErr error
	chatReply  string
}

func (s *stubBackend) SearchOutliers(ctx context.Context, req models.OutlierRequest) (*models.OutlierResponse, error) {
	return &models.OutlierResponse{Outliers: s.outliers}, nil
}

func (s *stubBackend) AnalyzeDay(ctx context.Context, req models.AnalyzeRequest) (*models.SeriesAnalysis, error) {
	if s.analyzeErr != nil {
		return nil, s.analyzeErr
	}
	return s.analysis, nil
}

func (s *stubBackend) Chat(ctx context.Context, req models.ChatRequest) (*models.ChatResponse, error) {
	return &models.ChatResponse{Response: s.chatReply}, nil
}

func newTestRouter(t *testing.T, b services.Backend) *mux.Router {
	t.Helper()
	return newTestRouterWithQueryLog(t, b, nil)
}

func newTestRouterWithQueryLog(t *testing.T, b services.Backend, queryLog repository.QueryLogRepository) *mux.Router {
	t.Helper()

	logger := logging.NewStructuredLogger("handlers-test", "test", logging.ErrorLevel)
	logger.SetOutput(io.Discard)
	collector := metrics.NewCollector("test", prometheus.NewRegistry())

	svc := services.NewAnalyticsService(b, queryLog, services.Options{}, logger, collector)
	router := mux.NewRouter()
	NewDashboardHandler(svc, logger, collector).RegisterRoutes(router)
	return router
}

func do(t *testing.T, router http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

const analysisBody = `{
  "device_id": "123",
  "day_name": "Lunes",
  "medidor_info": {"description": "Planta Norte"},
  "chart_data": [
    {"time_str": "00:00", "value": 10, "mean": 10},
    {"time_str": "00:15", "value": 30, "mean": 10},
    {"time_str": "12:00", "value": 9, "mean": 10}
  ],
  "analysis": {"estado_general": "CRITICO"}
}`

func TestBuildDashboard(t *testing.T) {
	router := newTestRouter(t, &stubBackend{})

	rec := do(t, router, http.MethodPost, "/api/dashboard", analysisBody)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp struct {
		DeviceID      string `json:"device_id"`
		BackendStatus string `json:"backend_status"`
		Dashboard     struct {
			Metrics struct {
				MaxDeviationPct float64 `json:"max_deviation_pct"`
				PeakTime        string  `json:"peak_time"`
			} `json:"metrics"`
			PeriodBuckets []json.RawMessage `json:"period_buckets"`
			Distribution  []json.RawMessage `json:"distribution"`
			TopDeviations []json.RawMessage `json:"top_deviations"`
			Status        string            `json:"status"`
		} `json:"dashboard"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	assert.Equal(t, "123", resp.DeviceID)
	assert.Equal(t, "CRITICO", resp.BackendStatus)
	assert.InDelta(t, 200.0, resp.Dashboard.Metrics.MaxDeviationPct, 1e-9)
	assert.Equal(t, "00:15", resp.Dashboard.Metrics.PeakTime)
	assert.Len(t, resp.Dashboard.PeriodBuckets, 4)
	assert.Len(t, resp.Dashboard.Distribution, 6)
	assert.Len(t, resp.Dashboard.TopDeviations, 3)
	assert.Equal(t, "CRITICO", resp.Dashboard.Status)
}

func TestBuildDashboard_Errors(t *testing.T) {
	router := newTestRouter(t, &stubBackend{})

	tests := []struct {
		name string
		body string
		code int
	}{
		{"malformed json", `{"chart_data": [`, http.StatusBadRequest},
		{"bad time label", `{"chart_data":[{"time_str":"25:00","value":1,"mean":1}]}`, http.StatusBadRequest},
		{"empty series", `{"chart_data":[]}`, http.StatusUnprocessableEntity},
		{"zero expected", `{"chart_data":[{"time_str":"00:00","value":1,"mean":0}]}`, http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, router, http.MethodPost, "/api/dashboard", tt.body)
			assert.Equal(t, tt.code, rec.Code, rec.Body.String())

			var errResp ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errResp))
			assert.Equal(t, tt.code, errResp.Code)
			assert.NotEmpty(t, errResp.Message)
		})
	}
}

func TestGetDeviceDashboard(t *testing.T) {
	var analysis models.SeriesAnalysis
	require.NoError(t, json.Unmarshal([]byte(analysisBody), &analysis))
	router := newTestRouter(t, &stubBackend{analysis: &analysis})

	rec := do(t, router, http.MethodGet, "/api/dashboard/123?base_year=2024&target_date=2025-03-10", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"day_name":"Lunes"`)

	rec = do(t, router, http.MethodGet, "/api/dashboard/123?base_year=abc&target_date=2025-03-10", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, router, http.MethodGet, "/api/dashboard/123?base_year=2024&target_date=10/03/2025", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetDeviceDashboard_BackendErrors(t *testing.T) {
	notFound := newTestRouter(t, &stubBackend{analyzeErr: &backend.StatusError{Path: "/analyze", StatusCode: 404, Detail: "No hay datos"}})
	rec := do(t, notFound, http.MethodGet, "/api/dashboard/9?base_year=2024&target_date=2025-03-10", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "No hay datos")

	failing := newTestRouter(t, &stubBackend{analyzeErr: &backend.StatusError{Path: "/analyze", StatusCode: 500}})
	rec = do(t, failing, http.MethodGet, "/api/dashboard/9?base_year=2024&target_date=2025-03-10", "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestExportCSV(t *testing.T) {
	router := newTestRouter(t, &stubBackend{})

	rec := do(t, router, http.MethodPost, "/api/dashboard/export", analysisBody)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "energy_analysis_123_Lunes.csv")

	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "Hora,Demanda Real (kW),Demanda Esperada (kW),Desviación (%)", lines[0])
	assert.Equal(t, "00:15,30.00,10.00,200.00", lines[2])
	assert.Equal(t, "12:00,9.00,10.00,-10.00", lines[3])
}

func TestExtractIntent(t *testing.T) {
	router := newTestRouter(t, &stubBackend{})

	body := `{"message":"Busca medidores con desviaciones mayores al 50% en el año base 2024 entre enero y octubre de 2025"}`
	rec := do(t, router, http.MethodPost, "/api/query/extract", body)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		IntentKind string `json:"intent_kind"`
		Intent     struct {
			ThresholdPct float64 `json:"threshold_pct"`
			BaseYear     int     `json:"base_year"`
			StartDate    string  `json:"start_date"`
			EndDate      string  `json:"end_date"`
		} `json:"intent"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "outlier_search", resp.IntentKind)
	assert.Equal(t, 50.0, resp.Intent.ThresholdPct)
	assert.Equal(t, 2024, resp.Intent.BaseYear)
	assert.Equal(t, "2025-01-01", resp.Intent.StartDate)
	assert.Equal(t, "2025-10-31", resp.Intent.EndDate)

	rec = do(t, router, http.MethodPost, "/api/query/extract", `{"message":"hola"}`)
	assert.Contains(t, rec.Body.String(), `"intent_kind":"unrecognized"`)
}

func TestAsk(t *testing.T) {
	router := newTestRouter(t, &stubBackend{
		outliers: []models.OutlierResult{
			{DeviceID: "A", Date: "2025-02-01", MaxDeviation: 77.777, MeterInfo: models.MeterInfo{Description: "Norte"}},
		},
		chatReply: "Respuesta del asistente",
	})

	body := `{"message":"desviaciones mayores al 50% en el año base 2024 entre enero y octubre de 2025"}`
	rec := do(t, router, http.MethodPost, "/api/query", body)
	require.Equal(t, http.StatusOK, rec.Code)

	var answer struct {
		IntentKind string `json:"intent_kind"`
		Reply      string `json:"reply"`
		Failed     bool   `json:"failed"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &answer))
	assert.Equal(t, "outlier_search", answer.IntentKind)
	assert.Contains(t, answer.Reply, "- A (Norte) — 2025-02-01 — desviación máxima 77.78%")
	assert.False(t, answer.Failed)

	rec = do(t, router, http.MethodPost, "/api/query", `{"message":"¿Qué es la demanda máxima?","context":{"device_id":"A"}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Respuesta del asistente")

	rec = do(t, router, http.MethodPost, "/api/query", `{"message":"   "}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSummarizeOutliers(t *testing.T) {
	router := newTestRouter(t, &stubBackend{})

	rec := do(t, router, http.MethodPost, "/api/outliers/summary", `{"outliers":[]}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp SummaryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, services.NoOutliersMessage, resp.Summary)
	assert.Equal(t, 0, resp.Count)
}

func TestQueryLogDisabled(t *testing.T) {
	router := newTestRouter(t, &stubBackend{})

	rec := do(t, router, http.MethodGet, "/api/queries", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = do(t, router, http.MethodGet, "/api/queries?failed=maybe", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

type memoryQueryLog struct {
	entries map[string]*models.QueryLogEntry
}

func (m *memoryQueryLog) Record(ctx context.Context, entry *models.QueryLogEntry) error {
	m.entries[entry.ID] = entry
	return nil
}

func (m *memoryQueryLog) Get(ctx context.Context, id string) (*models.QueryLogEntry, error) {
	entry, ok := m.entries[id]
	if !ok {
		return nil, &repository.NotFoundError{Resource: "query_log", ID: id}
	}
	return entry, nil
}

func (m *memoryQueryLog) List(ctx context.Context, filter repository.QueryLogFilter) ([]*models.QueryLogEntry, int, error) {
	out := make([]*models.QueryLogEntry, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e)
	}
	return out, len(out), nil
}

func (m *memoryQueryLog) HealthCheck(ctx context.Context) error {
	return nil
}

func TestGetQuery(t *testing.T) {
	const id = "7f1c2d9e-5b7a-4c1e-9f3a-2b6d8e0a4c11"
	queryLog := &memoryQueryLog{entries: map[string]*models.QueryLogEntry{
		id: {ID: id, Message: "hola", IntentKind: "unrecognized"},
	}}
	router := newTestRouterWithQueryLog(t, &stubBackend{}, queryLog)

	rec := do(t, router, http.MethodGet, "/api/queries/"+id, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var entry models.QueryLogEntry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entry))
	assert.Equal(t, "hola", entry.Message)

	for _, missing := range []string{"not-a-uuid", "00000000-0000-0000-0000-000000000000"} {
		rec = do(t, router, http.MethodGet, "/api/queries/"+missing, "")
		assert.Equal(t, http.StatusNotFound, rec.Code, missing)

		var errResp ErrorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errResp))
		assert.Equal(t, http.StatusNotFound, errResp.Code)
	}

	rec = do(t, router, http.MethodGet, "/api/queries", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"total":1`)
}

func TestHealthAndDocs(t *testing.T) {
	router := newTestRouter(t, &stubBackend{})

	rec := do(t, router, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"healthy"`)

	rec = do(t, router, http.MethodGet, "/api/docs/openapi.json", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	paths := doc["paths"].(map[string]interface{})
	for _, path := range []string{"/api/dashboard", "/api/dashboard/{device_id}", "/api/dashboard/export", "/api/query", "/api/query/extract", "/api/outliers/summary", "/api/queries"} {
		assert.Contains(t, paths, path)
	}

	rec = do(t, router, http.MethodGet, "/api/docs", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Energy Insights API Documentation")
}

func TestRequestID(t *testing.T) {
	var seen string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = logging.RequestIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", seen)
	assert.Equal(t, "abc-123", rec.Header().Get(RequestIDHeader))

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", bytes.NewReader(nil)))
	assert.Len(t, seen, 36)
	assert.Equal(t, seen, rec.Header().Get(RequestIDHeader))
}
