package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"energy-insights/internal/analytics"
	"energy-insights/internal/backend"
	"energy-insights/internal/models"
	"energy-insights/internal/repository"
	"energy-insights/internal/services"
	"energy-insights/pkg/logging"
	"energy-insights/pkg/metrics"
)

const maxBodyBytes = 10 << 20

// DashboardHandler handles the dashboard, chat and query log endpoints
type DashboardHandler struct {
	service *services.AnalyticsService
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewDashboardHandler creates a new dashboard handler
func NewDashboardHandler(
	service *services.AnalyticsService,
	logger *logging.StructuredLogger,
	metricsCollector *metrics.Collector,
) *DashboardHandler {
	return &DashboardHandler{
		service: service,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// PaginatedResponse represents a paginated API response
type PaginatedResponse struct {
	Data       interface{} `json:"data"`
	Total      int         `json:"total"`
	Page       int         `json:"page"`
	Limit      int         `json:"limit"`
	TotalPages int         `json:"total_pages"`
}

// DashboardResponse is the dashboard of one submitted or fetched series
type DashboardResponse struct {
	DeviceID      string                  `json:"device_id"`
	DayName       string                  `json:"day_name,omitempty"`
	MeterInfo     *models.MeterInfo       `json:"medidor_info,omitempty"`
	Dashboard     *services.DashboardView `json:"dashboard"`
	BackendStatus models.OverallStatus    `json:"backend_status"`
	Analysis      *models.AIAnalysis      `json:"analysis,omitempty"`
}

// QueryRequest is the body of the query endpoints
type QueryRequest struct {
	Message string      `json:"message"`
	Context interface{} `json:"context,omitempty"`
}

// SummaryRequest is the body of POST /api/outliers/summary
type SummaryRequest struct {
	Outliers []models.OutlierResult `json:"outliers"`
	Limit    int                    `json:"limit"`
}

// SummaryResponse is the rendered outlier summary
type SummaryResponse struct {
	Summary string `json:"summary"`
	Count   int    `json:"count"`
}

// BuildDashboard handles POST /api/dashboard
func (h *DashboardHandler) BuildDashboard(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/api/dashboard"
	defer h.observe(endpoint, time.Now())
	ctx := r.Context()

	var analysis models.SeriesAnalysis
	if !h.decodeBody(w, r, endpoint, &analysis) {
		return
	}

	series, err := analysis.ToSeries()
	if err != nil {
		h.metrics.RecordAPIError("validation_error", endpoint)
		h.sendError(w, r, endpoint, err.Error(), http.StatusBadRequest)
		return
	}

	view, err := h.service.BuildDashboardView(ctx, series)
	if err != nil {
		h.sendServiceError(w, r, endpoint, err)
		return
	}

	meterInfo := analysis.MeterInfo
	h.metrics.RecordAPIRequest(endpoint, r.Method, "200")
	h.sendJSON(w, DashboardResponse{
		DeviceID:      analysis.DeviceID,
		DayName:       analysis.DayName,
		MeterInfo:     &meterInfo,
		Dashboard:     view,
		BackendStatus: analysis.Status(),
	}, http.StatusOK)
}

// GetDeviceDashboard handles GET /api/dashboard/{device_id}
func (h *DashboardHandler) GetDeviceDashboard(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/api/dashboard/{device_id}"
	defer h.observe(endpoint, time.Now())
	ctx := r.Context()

	deviceID := mux.Vars(r)["device_id"]
	baseYearStr := r.URL.Query().Get("base_year")
	targetDate := r.URL.Query().Get("target_date")

	baseYear, err := strconv.Atoi(baseYearStr)
	if err != nil || baseYear < 1900 || baseYear > 9999 {
		h.sendError(w, r, endpoint, "invalid base_year, expected a 4-digit year", http.StatusBadRequest)
		return
	}

	if _, err := time.Parse("2006-01-02", targetDate); err != nil {
		h.sendError(w, r, endpoint, "invalid target_date format, expected YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	result, err := h.service.AnalyzeDevice(ctx, deviceID, baseYear, targetDate)
	if err != nil {
		h.sendServiceError(w, r, endpoint, err)
		return
	}

	h.metrics.RecordAPIRequest(endpoint, r.Method, "200")
	h.sendJSON(w, DashboardResponse{
		DeviceID:      result.DeviceID,
		DayName:       result.DayName,
		MeterInfo:     &result.MeterInfo,
		Dashboard:     result.Dashboard,
		BackendStatus: result.BackendStatus,
		Analysis:      &result.Analysis,
	}, http.StatusOK)
}

// ExportCSV handles POST /api/dashboard/export
func (h *DashboardHandler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/api/dashboard/export"
	defer h.observe(endpoint, time.Now())

	var analysis models.SeriesAnalysis
	if !h.decodeBody(w, r, endpoint, &analysis) {
		return
	}

	series, err := analysis.ToSeries()
	if err != nil {
		h.metrics.RecordAPIError("validation_error", endpoint)
		h.sendError(w, r, endpoint, err.Error(), http.StatusBadRequest)
		return
	}

	var buf bytes.Buffer
	if err := analytics.WriteCSV(&buf, series); err != nil {
		h.sendServiceError(w, r, endpoint, err)
		return
	}

	h.metrics.RecordAPIRequest(endpoint, r.Method, "200")
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", services.ExportFileName(series)))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// ExtractIntent handles POST /api/query/extract
func (h *DashboardHandler) ExtractIntent(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/api/query/extract"
	defer h.observe(endpoint, time.Now())

	var req QueryRequest
	if !h.decodeBody(w, r, endpoint, &req) {
		return
	}

	it := h.service.HandleQuery(r.Context(), req.Message)

	h.metrics.RecordAPIRequest(endpoint, r.Method, "200")
	h.sendJSON(w, map[string]interface{}{
		"intent_kind": it.Kind(),
		"intent":      it,
	}, http.StatusOK)
}

// Ask handles POST /api/query
func (h *DashboardHandler) Ask(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/api/query"
	defer h.observe(endpoint, time.Now())

	var req QueryRequest
	if !h.decodeBody(w, r, endpoint, &req) {
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		h.sendError(w, r, endpoint, "message is required", http.StatusBadRequest)
		return
	}

	answer, err := h.service.Ask(r.Context(), req.Message, req.Context)
	if err != nil {
		h.sendServiceError(w, r, endpoint, err)
		return
	}

	h.metrics.RecordAPIRequest(endpoint, r.Method, "200")
	h.sendJSON(w, answer, http.StatusOK)
}

// SummarizeOutliers handles POST /api/outliers/summary
func (h *DashboardHandler) SummarizeOutliers(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/api/outliers/summary"
	defer h.observe(endpoint, time.Now())

	var req SummaryRequest
	if !h.decodeBody(w, r, endpoint, &req) {
		return
	}

	h.metrics.RecordAPIRequest(endpoint, r.Method, "200")
	h.sendJSON(w, SummaryResponse{
		Summary: h.service.SummarizeOutliers(req.Outliers, req.Limit),
		Count:   len(req.Outliers),
	}, http.StatusOK)
}

// ListQueries handles GET /api/queries
func (h *DashboardHandler) ListQueries(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/api/queries"
	defer h.observe(endpoint, time.Now())
	ctx := r.Context()

	intentKind := r.URL.Query().Get("intent_kind")
	failedStr := r.URL.Query().Get("failed")
	pageStr := r.URL.Query().Get("page")
	limitStr := r.URL.Query().Get("limit")

	page := 1
	limit := 50

	if pageStr != "" {
		if p, err := strconv.Atoi(pageStr); err == nil && p > 0 {
			page = p
		}
	}

	if limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 500 {
			limit = l
		}
	}

	filter := repository.QueryLogFilter{
		Limit:  limit,
		Offset: (page - 1) * limit,
	}

	if intentKind != "" {
		filter.IntentKind = &intentKind
	}

	if failedStr != "" {
		failed, err := strconv.ParseBool(failedStr)
		if err != nil {
			h.sendError(w, r, endpoint, "invalid failed flag, expected true or false", http.StatusBadRequest)
			return
		}
		filter.Failed = &failed
	}

	entries, total, err := h.service.ListQueries(ctx, filter)
	if err != nil {
		h.sendServiceError(w, r, endpoint, err)
		return
	}

	h.metrics.RecordAPIRequest(endpoint, r.Method, "200")
	h.sendJSON(w, PaginatedResponse{
		Data:       entries,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: (total + limit - 1) / limit,
	}, http.StatusOK)
}

// GetQuery handles GET /api/queries/{id}
func (h *DashboardHandler) GetQuery(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/api/queries/{id}"
	defer h.observe(endpoint, time.Now())

	entry, err := h.service.GetQuery(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.sendServiceError(w, r, endpoint, err)
		return
	}

	h.metrics.RecordAPIRequest(endpoint, r.Method, "200")
	h.sendJSON(w, entry, http.StatusOK)
}

// HealthCheck handles GET /health
func (h *DashboardHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	status := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"query_log": h.service.QueryLogEnabled(),
	}

	if err := h.service.HealthCheck(ctx); err != nil {
		h.logger.Error(ctx, "[HEALTH_CHECK_ERROR] Query log store unhealthy", logging.Fields{}, err)
		status["status"] = "unhealthy"
		h.sendJSON(w, status, http.StatusServiceUnavailable)
		return
	}

	h.logger.Debug(ctx, "[HEALTH_CHECK] Health check requested", logging.Fields{})
	h.sendJSON(w, status, http.StatusOK)
}

func (h *DashboardHandler) observe(endpoint string, start time.Time) {
	h.metrics.APIRequestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
}

// decodeBody decodes the JSON body into dst, answering 400 on failure
func (h *DashboardHandler) decodeBody(w http.ResponseWriter, r *http.Request, endpoint string, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.metrics.RecordAPIError("decode_error", endpoint)
		h.sendError(w, r, endpoint, "invalid JSON body: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

// sendServiceError maps service errors onto HTTP statuses
func (h *DashboardHandler) sendServiceError(w http.ResponseWriter, r *http.Request, endpoint string, err error) {
	var (
		validationErr *models.ValidationError
		notFoundErr   *repository.NotFoundError
		statusErr     *backend.StatusError
	)

	switch {
	case errors.Is(err, analytics.ErrInvalidSeries):
		h.metrics.RecordAPIError("invalid_series", endpoint)
		h.sendError(w, r, endpoint, err.Error(), http.StatusUnprocessableEntity)
	case errors.As(err, &validationErr):
		h.metrics.RecordAPIError("validation_error", endpoint)
		h.sendError(w, r, endpoint, err.Error(), http.StatusUnprocessableEntity)
	case errors.As(err, &notFoundErr):
		h.sendError(w, r, endpoint, err.Error(), http.StatusNotFound)
	case errors.Is(err, services.ErrQueryLogDisabled):
		h.sendError(w, r, endpoint, err.Error(), http.StatusServiceUnavailable)
	case errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound:
		h.metrics.RecordAPIError("backend_not_found", endpoint)
		h.sendError(w, r, endpoint, statusErr.Detail, http.StatusNotFound)
	case statusErr != nil:
		h.metrics.RecordAPIError("backend_error", endpoint)
		h.sendError(w, r, endpoint, err.Error(), http.StatusBadGateway)
	default:
		h.logger.Error(r.Context(), "[API_ERROR] Request failed", logging.Fields{
			"endpoint": endpoint,
		}, err)
		h.metrics.RecordAPIError("internal_error", endpoint)
		h.sendError(w, r, endpoint, "internal error", http.StatusInternalServerError)
	}
}

// sendJSON sends a JSON response
func (h *DashboardHandler) sendJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// sendError sends an error response
func (h *DashboardHandler) sendError(w http.ResponseWriter, r *http.Request, endpoint, message string, statusCode int) {
	h.metrics.RecordAPIRequest(endpoint, r.Method, strconv.Itoa(statusCode))

	response := ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	}

	h.sendJSON(w, response, statusCode)
}

// RegisterRoutes registers all dashboard API routes
func (h *DashboardHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/dashboard", h.BuildDashboard).Methods("POST")
	router.HandleFunc("/api/dashboard/export", h.ExportCSV).Methods("POST")
	router.HandleFunc("/api/dashboard/{device_id}", h.GetDeviceDashboard).Methods("GET")
	router.HandleFunc("/api/query/extract", h.ExtractIntent).Methods("POST")
	router.HandleFunc("/api/query", h.Ask).Methods("POST")
	router.HandleFunc("/api/outliers/summary", h.SummarizeOutliers).Methods("POST")
	router.HandleFunc("/api/queries", h.ListQueries).Methods("GET")
	router.HandleFunc("/api/queries/{id}", h.GetQuery).Methods("GET")
	router.HandleFunc("/health", h.HealthCheck).Methods("GET")
	router.HandleFunc("/api/docs", SwaggerUI).Methods("GET")
	router.HandleFunc("/api/docs/openapi.json", OpenAPISpec).Methods("GET")
}
