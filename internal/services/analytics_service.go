package services

import (
	"context"
	"errors"
	"fmt"

	"energy-insights/internal/analytics"
	"energy-insights/internal/config"
	"energy-insights/internal/intent"
	"energy-insights/internal/models"
	"energy-insights/internal/repository"
	"energy-insights/pkg/logging"
	"energy-insights/pkg/metrics"
)

// Backend is the analysis service that owns readings and baselines
type Backend interface {
	SearchOutliers(ctx context.Context, req models.OutlierRequest) (*models.OutlierResponse, error)
	AnalyzeDay(ctx context.Context, req models.AnalyzeRequest) (*models.SeriesAnalysis, error)
	Chat(ctx context.Context, req models.ChatRequest) (*models.ChatResponse, error)
}

// Options tunes the analytics service
type Options struct {
	TopN                int
	SummaryLimit        int
	ThresholdComparison string
	CalendarMonthEnd    bool
}

// OptionsFromConfig maps the analytics configuration section
func OptionsFromConfig(cfg config.AnalyticsConfig) Options {
	return Options{
		TopN:                cfg.TopN,
		SummaryLimit:        cfg.SummaryLimit,
		ThresholdComparison: cfg.ThresholdComparison,
		CalendarMonthEnd:    cfg.CalendarMonthEnd,
	}
}

// Answer is the reply to a chat question
type Answer struct {
	IntentKind string                 `json:"intent_kind"`
	Intent     intent.Intent          `json:"intent"`
	Reply      string                 `json:"reply"`
	Outliers   []models.OutlierResult `json:"outliers,omitempty"`
	Failed     bool                   `json:"failed"`
}

// DeviceAnalysis is the dashboard of one device-day fetched from the backend
type DeviceAnalysis struct {
	DeviceID      string               `json:"device_id"`
	DayName       string               `json:"day_name"`
	MeterInfo     models.MeterInfo     `json:"medidor_info"`
	Dashboard     *DashboardView       `json:"dashboard"`
	BackendStatus models.OverallStatus `json:"backend_status"`
	Analysis      models.AIAnalysis    `json:"analysis"`
}

// AnalyticsService is the entry point of the chat and dashboard surfaces.
// It holds no per-series state and is safe for concurrent use.
type AnalyticsService struct {
	extractor *intent.Extractor
	backend   Backend
	queryLog  repository.QueryLogRepository
	opts      Options
	logger    *logging.StructuredLogger
	metrics   *metrics.Collector
}

// NewAnalyticsService creates the analytics service. queryLog may be nil,
// in which case questions are not recorded.
func NewAnalyticsService(backend Backend, queryLog repository.QueryLogRepository, opts Options, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *AnalyticsService {
	if opts.TopN <= 0 {
		opts.TopN = analytics.DefaultTopN
	}
	if opts.SummaryLimit <= 0 {
		opts.SummaryLimit = DefaultSummaryLimit
	}
	if opts.ThresholdComparison == "" {
		opts.ThresholdComparison = config.ComparisonGreater
	}

	return &AnalyticsService{
		extractor: intent.NewExtractor(intent.WithCalendarMonthEnd(opts.CalendarMonthEnd)),
		backend:   backend,
		queryLog:  queryLog,
		opts:      opts,
		logger:    logger,
		metrics:   metricsCollector,
	}
}

// HandleQuery interprets a question. Unrecognised text is an expected
// outcome and only logged at debug level.
func (s *AnalyticsService) HandleQuery(ctx context.Context, text string) intent.Intent {
	it := s.extractor.Extract(text)
	s.metrics.RecordIntent(it.Kind())

	if _, ok := it.(intent.Unrecognized); ok {
		s.logger.Debug(ctx, "[INTENT_UNRECOGNIZED] Question left for the assistant", logging.Fields{
			"unmatched_clause": s.extractor.Diagnose(text),
		})
	}

	return it
}

// SummarizeOutliers renders results with the configured limit when limit <= 0
func (s *AnalyticsService) SummarizeOutliers(results []models.OutlierResult, limit int) string {
	if limit <= 0 {
		limit = s.opts.SummaryLimit
	}
	return SummarizeOutliers(results, limit)
}

// BuildDashboardView computes the dashboard of series
func (s *AnalyticsService) BuildDashboardView(ctx context.Context, series models.Series) (*DashboardView, error) {
	timer := s.metrics.NewTimer(s.metrics.AnalysisDuration.WithLabelValues("dashboard"))
	defer timer.ObserveDuration()

	view, err := BuildDashboardView(series, s.opts.TopN)
	if err != nil {
		var invalid *analytics.InvalidSeriesError
		if errors.As(err, &invalid) {
			s.metrics.RecordInvalidSeries(invalid.Reason)
		}
		s.logger.Warn(ctx, "[DASHBOARD_INVALID_SERIES] Series rejected", logging.Fields{
			"device_id": series.DeviceID,
			"day":       series.Day,
			"points":    series.Len(),
			"reason":    err.Error(),
		})
		return nil, err
	}

	s.metrics.SeriesPoints.Observe(float64(series.Len()))
	s.metrics.RecordStatus(view.Status.String())

	return view, nil
}

// AnalyzeDevice fetches one device-day from the backend and builds its
// dashboard.
func (s *AnalyticsService) AnalyzeDevice(ctx context.Context, deviceID string, baseYear int, targetDate string) (*DeviceAnalysis, error) {
	analysis, err := s.backend.AnalyzeDay(ctx, models.AnalyzeRequest{
		DeviceID:   deviceID,
		BaseYear:   baseYear,
		TargetDate: targetDate,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to analyze device %s: %w", deviceID, err)
	}

	series, err := analysis.ToSeries()
	if err != nil {
		return nil, err
	}
	if series.DeviceID == "" {
		series.DeviceID = deviceID
	}

	view, err := s.BuildDashboardView(ctx, series)
	if err != nil {
		return nil, err
	}

	return &DeviceAnalysis{
		DeviceID:      series.DeviceID,
		DayName:       analysis.DayName,
		MeterInfo:     analysis.MeterInfo,
		Dashboard:     view,
		BackendStatus: analysis.Status(),
		Analysis:      analysis.Analysis,
	}, nil
}

// Ask answers a chat question. Outlier questions are sent to the backend
// search and summarised; anything else goes to the backend assistant along
// with chatContext. Backend failures become the reply text. The only error
// returned is the cancellation of ctx.
func (s *AnalyticsService) Ask(ctx context.Context, text string, chatContext interface{}) (*Answer, error) {
	it := s.HandleQuery(ctx, text)
	answer := &Answer{IntentKind: it.Kind(), Intent: it}

	var resultCount *int
	switch q := it.(type) {
	case intent.OutlierSearch:
		outliers, err := s.searchOutliers(ctx, q)
		if err != nil {
			answer.Failed = true
			answer.Reply = "Error al buscar desviaciones: " + err.Error()
			break
		}
		count := len(outliers)
		resultCount = &count
		answer.Outliers = outliers
		answer.Reply = s.SummarizeOutliers(outliers, 0)

	case intent.Unrecognized:
		resp, err := s.backend.Chat(ctx, models.ChatRequest{Message: text, Context: chatContext})
		if err != nil {
			answer.Failed = true
			answer.Reply = "Error al contactar con el asistente."
			break
		}
		answer.Reply = resp.Response
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.record(ctx, text, it, resultCount, answer.Failed)

	return answer, nil
}

func (s *AnalyticsService) searchOutliers(ctx context.Context, q intent.OutlierSearch) ([]models.OutlierResult, error) {
	resp, err := s.backend.SearchOutliers(ctx, models.OutlierRequest{
		BaseYear:  q.BaseYear,
		StartDate: q.StartDate,
		EndDate:   q.EndDate,
		Threshold: q.ThresholdPct,
	})
	if err != nil {
		return nil, err
	}

	outliers := FilterOutliers(resp.Outliers, q.ThresholdPct, s.opts.ThresholdComparison)
	s.metrics.OutliersReturned.Observe(float64(len(outliers)))

	s.logger.Info(ctx, "[OUTLIER_SEARCH] Outlier search completed", logging.Fields{
		"threshold_pct": q.ThresholdPct,
		"base_year":     q.BaseYear,
		"start_date":    q.StartDate,
		"end_date":      q.EndDate,
		"received":      len(resp.Outliers),
		"returned":      len(outliers),
	})

	return outliers, nil
}

// record stores the question in the query log. A failure to record is
// logged and never affects the answer.
func (s *AnalyticsService) record(ctx context.Context, text string, it intent.Intent, resultCount *int, failed bool) {
	if s.queryLog == nil {
		return
	}

	entry := &models.QueryLogEntry{
		Message:     text,
		IntentKind:  it.Kind(),
		ResultCount: resultCount,
		Failed:      failed,
	}
	if q, ok := it.(intent.OutlierSearch); ok {
		entry.ThresholdPct = &q.ThresholdPct
		entry.BaseYear = &q.BaseYear
		entry.StartDate = &q.StartDate
		entry.EndDate = &q.EndDate
	}

	if err := s.queryLog.Record(ctx, entry); err != nil {
		s.logger.Error(ctx, "[QUERY_LOG_ERROR] Failed to record question", logging.Fields{
			"intent_kind": entry.IntentKind,
		}, err)
	}
}

// ListQueries returns a page of the query log
func (s *AnalyticsService) ListQueries(ctx context.Context, filter repository.QueryLogFilter) ([]*models.QueryLogEntry, int, error) {
	if s.queryLog == nil {
		return nil, 0, ErrQueryLogDisabled
	}
	return s.queryLog.List(ctx, filter)
}

// GetQuery returns one query log entry
func (s *AnalyticsService) GetQuery(ctx context.Context, id string) (*models.QueryLogEntry, error) {
	if s.queryLog == nil {
		return nil, ErrQueryLogDisabled
	}
	return s.queryLog.Get(ctx, id)
}

// QueryLogEnabled reports whether questions are being recorded
func (s *AnalyticsService) QueryLogEnabled() bool {
	return s.queryLog != nil
}

// HealthCheck checks the query log store when one is configured
func (s *AnalyticsService) HealthCheck(ctx context.Context) error {
	if s.queryLog == nil {
		return nil
	}
	return s.queryLog.HealthCheck(ctx)
}

// ErrQueryLogDisabled is returned by query log operations when no database
// is configured.
var ErrQueryLogDisabled = errors.New("query log is disabled")
