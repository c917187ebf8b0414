package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"energy-insights/internal/backend"
	"energy-insights/internal/config"
	"energy-insights/internal/models"
	"energy-insights/internal/services"
	"energy-insights/pkg/logging"
	"energy-insights/pkg/metrics"
)

const version = "1.0.0"

func main() {
	dataDir := flag.String("data-dir", "./analyses", "Directory containing saved backend analyses (*.json)")
	exportDir := flag.String("export-dir", "", "Write a CSV export of every series to this directory")
	question := flag.String("question", "", "Interpret a question and print the extracted intent")
	ask := flag.Bool("ask", false, "Send -question to the analysis backend and print the answer")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewStructuredLogger("energy-analyzer", version, logging.ParseLevel(cfg.Logging.Level))
	logger.SetOutput(os.Stderr)

	ctx := context.Background()
	logger.Info(ctx, "[ANALYZER_START] Starting offline analysis", logging.Fields{
		"version":    version,
		"data_dir":   *dataDir,
		"export_dir": *exportDir,
	})

	metricsCollector := metrics.NewCollector("energy_analyzer", prometheus.NewRegistry())

	backendClient := backend.NewClient(backend.Config{
		BaseURL:    cfg.Backend.BaseURL,
		Timeout:    cfg.Backend.Timeout,
		MaxRetries: cfg.Backend.MaxRetries,
	}, logger, metricsCollector)

	analyticsService := services.NewAnalyticsService(backendClient, nil, services.OptionsFromConfig(cfg.Analytics), logger, metricsCollector)

	if *question != "" {
		runQuestion(ctx, analyticsService, *question, *ask)
		return
	}

	batchService := services.NewBatchService(analyticsService, logger, metricsCollector)
	result, err := batchService.AnalyzeDirectory(ctx, *dataDir, *exportDir)
	if err != nil {
		logger.Fatal(ctx, "[ANALYZER_ERROR] Batch analysis failed", logging.Fields{
			"data_dir": *dataDir,
		}, err)
	}

	printResult(result)

	logger.Info(ctx, "[ANALYZER_COMPLETE] Offline analysis completed", logging.Fields{
		"analyzed":         result.Analyzed,
		"failed":           result.Failed,
		"duration_seconds": result.Duration.Seconds(),
	})
}

func runQuestion(ctx context.Context, svc *services.AnalyticsService, question string, ask bool) {
	if !ask {
		it := svc.HandleQuery(ctx, question)
		out, _ := json.MarshalIndent(map[string]interface{}{
			"intent_kind": it.Kind(),
			"intent":      it,
		}, "", "  ")
		fmt.Println(string(out))
		return
	}

	answer, err := svc.Ask(ctx, question, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Question cancelled: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(answer.Reply)
}

func printResult(result *services.BatchResult) {
	fmt.Println(strings.Repeat("=", 80))
	fmt.Println("ANALYSIS COMPLETE")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Total Files:  %d\n", result.TotalFiles)
	fmt.Printf("Analyzed:     %d\n", result.Analyzed)
	fmt.Printf("Failed:       %d\n", result.Failed)
	fmt.Printf("Duration:     %v\n", result.Duration)
	for _, status := range []models.OverallStatus{models.StatusNormal, models.StatusAlert, models.StatusCritical} {
		fmt.Printf("%-13s %d\n", status.String()+":", result.StatusCounts[status])
	}

	for _, report := range result.Reports {
		view := report.Dashboard
		m := view.Metrics

		fmt.Println()
		fmt.Printf("Medidor %s (%s) — estado %s, backend %s\n", report.DeviceID, report.DayName, view.Status, report.BackendStatus)
		fmt.Printf("  Desviación máxima:  %.2f%%\n", m.MaxDeviationPct)
		fmt.Printf("  Desviación media:   %.2f%%\n", m.AvgDeviationPct)
		fmt.Printf("  Pico:               %.2f kW a las %s\n", m.PeakValue, m.PeakTime)
		fmt.Printf("  Energía real:       %.2f / esperada %.2f (%+.2f%%)\n", m.TotalActual, m.TotalExpected, m.AggregateDeviationPct)

		for _, b := range view.PeriodBuckets {
			if !b.HasData() {
				fmt.Printf("  %-10s sin datos\n", b.Period)
				continue
			}
			fmt.Printf("  %-10s %+.2f%% (%d puntos)\n", b.Period, *b.DeviationPct, b.Count)
		}

		if report.CSVPath != "" {
			fmt.Printf("  CSV: %s\n", report.CSVPath)
		}
	}

	if len(result.Errors) > 0 {
		fmt.Printf("\nErrors (%d):\n", len(result.Errors))
		for i, errMsg := range result.Errors {
			if i < 10 {
				fmt.Printf("  - %s\n", errMsg)
			}
		}
		if len(result.Errors) > 10 {
			fmt.Printf("  ... and %d more errors\n", len(result.Errors)-10)
		}
	}
}
