package services

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"energy-insights/internal/analytics"
	"energy-insights/internal/config"
	"energy-insights/internal/models"
)

// DefaultSummaryLimit is the number of outliers listed by SummarizeOutliers
// when no positive limit is given.
const DefaultSummaryLimit = 5

// NoOutliersMessage is the whole summary of an empty outlier search
const NoOutliersMessage = "No se encontraron medidores con desviaciones mayores al umbral en el periodo indicado."

// DashboardView is a snapshot of every view derived from one series. It is
// rebuilt from scratch whenever the series changes.
type DashboardView struct {
	Metrics       analytics.DeviationMetrics   `json:"metrics"`
	PeriodBuckets [4]analytics.PeriodBucket    `json:"period_buckets"`
	Distribution  [6]analytics.DistributionBin `json:"distribution"`
	TopDeviations []analytics.RankedRow        `json:"top_deviations"`
	Status        models.OverallStatus         `json:"status"`
}

// BuildDashboardView composes the analyzer outputs for series, listing the
// topN largest deviations.
func BuildDashboardView(series models.Series, topN int) (*DashboardView, error) {
	m, err := analytics.ComputeMetrics(series)
	if err != nil {
		return nil, err
	}

	buckets, err := analytics.ComputePeriodBuckets(series)
	if err != nil {
		return nil, err
	}

	bins, err := analytics.ComputeDistribution(series)
	if err != nil {
		return nil, err
	}

	top, err := analytics.RankTopDeviations(series, topN)
	if err != nil {
		return nil, err
	}

	status, err := analytics.ClassifyStatus(series)
	if err != nil {
		return nil, err
	}

	return &DashboardView{
		Metrics:       m,
		PeriodBuckets: buckets,
		Distribution:  bins,
		TopDeviations: top,
		Status:        status,
	}, nil
}

// SummarizeOutliers renders outlier search results as chat text. At most
// limit entries are listed; limit <= 0 means DefaultSummaryLimit.
func SummarizeOutliers(results []models.OutlierResult, limit int) string {
	if len(results) == 0 {
		return NoOutliersMessage
	}
	if limit <= 0 {
		limit = DefaultSummaryLimit
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Se encontraron %d casos de desviaciones mayores al umbral.\n", len(results))

	shown := results
	if len(shown) > limit {
		shown = shown[:limit]
	}
	for _, r := range shown {
		fmt.Fprintf(&b, "\n- %s (%s) — %s — desviación máxima %s%%",
			r.DeviceID,
			r.MeterInfo.Description,
			r.Date,
			decimal.NewFromFloat(r.MaxDeviation).StringFixed(2),
		)
	}

	if rest := len(results) - len(shown); rest > 0 {
		fmt.Fprintf(&b, "\n\n...y %d más.", rest)
	}

	return b.String()
}

// FilterOutliers keeps the results whose max deviation passes threshold
// under comparison ("gt" strictly greater, "gte" greater or equal). The
// input order is preserved.
func FilterOutliers(results []models.OutlierResult, threshold float64, comparison string) []models.OutlierResult {
	passes := func(v float64) bool { return v > threshold }
	if comparison == config.ComparisonGreaterEqual {
		passes = func(v float64) bool { return v >= threshold }
	}

	filtered := make([]models.OutlierResult, 0, len(results))
	for _, r := range results {
		if passes(r.MaxDeviation) {
			filtered = append(filtered, r)
		}
	}
	return filtered
}
