package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"energy-insights/internal/models"
)

const savedAnalysis = `{
  "device_id": "36075003",
  "day_name": "Martes",
  "medidor_info": {"description": "Planta Norte"},
  "chart_data": [
    {"time_str": "00:00", "value": 10, "mean": 10},
    {"time_str": "06:00", "value": 12, "mean": 10},
    {"time_str": "12:00", "value": 9,  "mean": 10, "std": 1.5},
    {"time_str": "18:00", "value": 10, "mean": 10}
  ],
  "analysis": {"estado_general": "NORMAL", "resumen": "Sin novedades"}
}`

func TestBatchService_AnalyzeDirectory(t *testing.T) {
	dataDir := t.TempDir()
	exportDir := filepath.Join(t.TempDir(), "exports")

	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "a_valid.json"), []byte(savedAnalysis), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "b_broken.json"), []byte(`{"chart_data": [`), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "c_zero_mean.json"),
		[]byte(`{"device_id":"9","chart_data":[{"time_str":"00:00","value":1,"mean":0}]}`), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "ignored.txt"), []byte("x"), 0o600))

	analytics := newTestService(t, &fakeBackend{}, nil, Options{})
	svc := NewBatchService(analytics, analytics.logger, analytics.metrics)

	result, err := svc.AnalyzeDirectory(context.Background(), dataDir, exportDir)
	require.NoError(t, err)

	assert.Equal(t, 3, result.TotalFiles)
	assert.Equal(t, 1, result.Analyzed)
	assert.Equal(t, 2, result.Failed)
	assert.Len(t, result.Errors, 2)
	assert.Equal(t, 1, result.StatusCounts[models.StatusNormal])

	require.Len(t, result.Reports, 1)
	report := result.Reports[0]
	assert.Equal(t, "36075003", report.DeviceID)
	assert.Equal(t, "Martes", report.DayName)
	assert.Equal(t, models.StatusNormal, report.BackendStatus)
	assert.Equal(t, filepath.Join(exportDir, "energy_analysis_a_valid.csv"), report.CSVPath)

	csvData, err := os.ReadFile(report.CSVPath)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(csvData)), "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, "06:00,12.00,10.00,20.00", lines[2])
}

func TestBatchService_EmptyDirectory(t *testing.T) {
	analytics := newTestService(t, &fakeBackend{}, nil, Options{})
	svc := NewBatchService(analytics, analytics.logger, analytics.metrics)

	_, err := svc.AnalyzeDirectory(context.Background(), t.TempDir(), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no analysis files found")
}

func TestBatchService_SameWeekdayExportsDoNotCollide(t *testing.T) {
	dataDir := t.TempDir()
	exportDir := t.TempDir()

	monday := `{"device_id":"d1","day_name":"Monday","chart_data":[{"time_str":"00:00","value":%s,"mean":10}]}`
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "2025-01-06.json"), []byte(fmt.Sprintf(monday, "11")), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "2025-01-13.json"), []byte(fmt.Sprintf(monday, "13")), 0o600))

	analytics := newTestService(t, &fakeBackend{}, nil, Options{})
	svc := NewBatchService(analytics, analytics.logger, analytics.metrics)

	result, err := svc.AnalyzeDirectory(context.Background(), dataDir, exportDir)
	require.NoError(t, err)
	require.Equal(t, 2, result.Analyzed)

	assert.Equal(t, filepath.Join(exportDir, "energy_analysis_2025-01-06.csv"), result.Reports[0].CSVPath)
	assert.Equal(t, filepath.Join(exportDir, "energy_analysis_2025-01-13.csv"), result.Reports[1].CSVPath)

	entries, err := os.ReadDir(exportDir)
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	first, err := os.ReadFile(result.Reports[0].CSVPath)
	require.NoError(t, err)
	assert.Contains(t, string(first), "00:00,11.00,10.00,10.00")
}

func TestExportFileName(t *testing.T) {
	tests := []struct {
		name   string
		series models.Series
		want   string
	}{
		{name: "empty", series: models.Series{}, want: "energy_analysis.csv"},
		{name: "device and day", series: models.Series{DeviceID: "123", Day: "2025-03-10"}, want: "energy_analysis_123_2025-03-10.csv"},
		{name: "path traversal", series: models.Series{DeviceID: "../../etc/passwd"}, want: "energy_analysis_passwd.csv"},
		{name: "separators", series: models.Series{DeviceID: "a b", Day: "x\\y"}, want: "energy_analysis_a_b_x_y.csv"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExportFileName(tt.series)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, filepath.Base(got))
		})
	}
}
