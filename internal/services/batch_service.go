package services

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"energy-insights/internal/analytics"
	"energy-insights/internal/models"
	"energy-insights/pkg/logging"
	"energy-insights/pkg/metrics"
)

// BatchService builds dashboards for saved backend analyses on disk
type BatchService struct {
	analytics *AnalyticsService
	logger    *logging.StructuredLogger
	metrics   *metrics.Collector
}

// BatchResult contains the outcome of a directory run
type BatchResult struct {
	TotalFiles   int
	Analyzed     int
	Failed       int
	StatusCounts map[models.OverallStatus]int
	Reports      []*FileReport
	Duration     time.Duration
	Errors       []string
}

// FileReport is the dashboard built from one saved analysis
type FileReport struct {
	Path          string
	DeviceID      string
	DayName       string
	Dashboard     *DashboardView
	BackendStatus models.OverallStatus
	CSVPath       string
}

// NewBatchService creates a new batch service
func NewBatchService(analyticsService *AnalyticsService, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *BatchService {
	return &BatchService{
		analytics: analyticsService,
		logger:    logger,
		metrics:   metricsCollector,
	}
}

// AnalyzeDirectory builds a dashboard for every *.json analysis in dataDir.
// When exportDir is not empty a CSV of each series is written there. A file
// that cannot be analysed is reported and skipped.
func (s *BatchService) AnalyzeDirectory(ctx context.Context, dataDir, exportDir string) (*BatchResult, error) {
	startTime := time.Now()

	s.logger.Info(ctx, "[BATCH_START] Starting batch analysis", logging.Fields{
		"data_dir":   dataDir,
		"export_dir": exportDir,
		"stage":      "INITIALIZATION",
	})

	files, err := filepath.Glob(filepath.Join(dataDir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no analysis files found in %s", dataDir)
	}
	sort.Strings(files)

	if exportDir != "" {
		if err := os.MkdirAll(exportDir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create export directory: %w", err)
		}
	}

	result := &BatchResult{
		TotalFiles:   len(files),
		StatusCounts: make(map[models.OverallStatus]int),
		Errors:       make([]string, 0),
	}

	for _, filePath := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		report, err := s.AnalyzeFile(ctx, filePath, exportDir)
		if err != nil {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("failed to analyze %s: %v", filePath, err))
			s.logger.Error(ctx, "[BATCH_FILE_ERROR] File analysis failed", logging.Fields{
				"file_path": filePath,
				"stage":     "FILE_PROCESSING",
			}, err)
			continue
		}

		result.Analyzed++
		result.StatusCounts[report.Dashboard.Status]++
		result.Reports = append(result.Reports, report)
	}

	result.Duration = time.Since(startTime)
	s.metrics.AnalysisDuration.WithLabelValues("batch").Observe(result.Duration.Seconds())

	s.logger.Info(ctx, "[BATCH_COMPLETE] Batch analysis completed", logging.Fields{
		"total_files":      result.TotalFiles,
		"analyzed":         result.Analyzed,
		"failed":           result.Failed,
		"duration_seconds": result.Duration.Seconds(),
		"stage":            "COMPLETE",
	})

	return result, nil
}

// AnalyzeFile builds the dashboard of one saved analysis
func (s *BatchService) AnalyzeFile(ctx context.Context, filePath, exportDir string) (*FileReport, error) {
	analysis, err := LoadAnalysis(filePath)
	if err != nil {
		return nil, err
	}

	series, err := analysis.ToSeries()
	if err != nil {
		return nil, err
	}
	if series.DeviceID == "" {
		series.DeviceID = strings.TrimSuffix(filepath.Base(filePath), filepath.Ext(filePath))
	}

	view, err := s.analytics.BuildDashboardView(ctx, series)
	if err != nil {
		return nil, err
	}

	report := &FileReport{
		Path:          filePath,
		DeviceID:      series.DeviceID,
		DayName:       analysis.DayName,
		Dashboard:     view,
		BackendStatus: analysis.Status(),
	}

	if exportDir != "" {
		report.CSVPath = filepath.Join(exportDir, batchExportFileName(filePath))
		if err := writeCSVFile(report.CSVPath, series); err != nil {
			return nil, err
		}
	}

	return report, nil
}

// LoadAnalysis decodes a saved backend analysis
func LoadAnalysis(filePath string) (*models.SeriesAnalysis, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var analysis models.SeriesAnalysis
	if err := json.Unmarshal(data, &analysis); err != nil {
		return nil, fmt.Errorf("failed to decode analysis: %w", err)
	}

	return &analysis, nil
}

// ExportFileName names the CSV export of a series. Device id and day come
// from request bodies, so both are reduced to a single safe path element.
func ExportFileName(series models.Series) string {
	name := "energy_analysis"
	if series.DeviceID != "" {
		name += "_" + sanitizeFileName(series.DeviceID)
	}
	if series.Day != "" {
		name += "_" + sanitizeFileName(series.Day)
	}
	return name + ".csv"
}

// batchExportFileName names the export after its source file. Sources in one
// directory have distinct names, so exports never overwrite each other; the
// device id and weekday of a saved analysis do not identify it.
func batchExportFileName(sourcePath string) string {
	stem := strings.TrimSuffix(filepath.Base(sourcePath), filepath.Ext(sourcePath))
	return "energy_analysis_" + sanitizeFileName(stem) + ".csv"
}

// sanitizeFileName keeps letters, digits, '-', '_' and '.', replacing
// anything else (path separators included) with '_'.
func sanitizeFileName(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		default:
			return '_'
		}
	}, filepath.Base(s))
}

func writeCSVFile(path string, series models.Series) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create export file: %w", err)
	}

	if err := analytics.WriteCSV(f, series); err != nil {
		f.Close()
		return fmt.Errorf("failed to write export file: %w", err)
	}

	return f.Close()
}
