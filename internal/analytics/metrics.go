// Package analytics derives dashboard views from a device-day demand curve
// paired with its baseline. Every function is a pure transform of its input
// series: nothing is cached and the input is never modified, so the functions
// may be called concurrently on the same series.
package analytics

import (
	"math"

	"energy-insights/internal/models"
)

// DeviationMetrics summarises how far a series strays from its baseline
type DeviationMetrics struct {
	MaxDeviationPct       float64          `json:"max_deviation_pct"`
	AvgDeviationPct       float64          `json:"avg_deviation_pct"`
	PeakTime              models.TimeOfDay `json:"peak_time"`
	PeakValue             float64          `json:"peak_value"`
	TotalActual           float64          `json:"total_actual"`
	TotalExpected         float64          `json:"total_expected"`
	AggregateDeviationPct float64          `json:"aggregate_deviation_pct"`
}

// ComputeMetrics computes the headline deviation metrics of a series.
// The peak is the first point holding the maximum actual value.
func ComputeMetrics(series models.Series) (DeviationMetrics, error) {
	if err := validate(series); err != nil {
		return DeviationMetrics{}, err
	}

	points := series.Points
	maxDev := math.Inf(-1)
	peakIdx := 0

	var m DeviationMetrics
	var sumDev float64

	for i, p := range points {
		dev := absDeviationPct(p)
		sumDev += dev
		if dev > maxDev {
			maxDev = dev
		}
		if p.Actual > points[peakIdx].Actual {
			peakIdx = i
		}
		m.TotalActual += p.Actual
		m.TotalExpected += p.Expected
	}

	m.MaxDeviationPct = maxDev
	m.AvgDeviationPct = sumDev / float64(len(points))
	m.PeakTime = points[peakIdx].Time
	m.PeakValue = points[peakIdx].Actual
	m.AggregateDeviationPct = (m.TotalActual - m.TotalExpected) / m.TotalExpected * 100

	if !finite(m.MaxDeviationPct, m.AvgDeviationPct, m.TotalActual, m.TotalExpected, m.AggregateDeviationPct) {
		return DeviationMetrics{}, errDeviationOverflow
	}

	return m, nil
}

// signedDeviationPct is (actual - expected) / expected as a percentage.
// Callers guarantee expected > 0.
func signedDeviationPct(p models.TimeSeriesPoint) float64 {
	return (p.Actual - p.Expected) / p.Expected * 100
}

func absDeviationPct(p models.TimeSeriesPoint) float64 {
	return math.Abs(signedDeviationPct(p))
}

// errDeviationOverflow reports finite inputs whose derived values are not
var errDeviationOverflow = &InvalidSeriesError{Index: -1, Reason: "deviation overflows"}

func finite(values ...float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// validate rejects series on which a deviation ratio cannot be computed.
// Besides the inputs it checks that every per-point deviation and both
// totals stay finite.
func validate(series models.Series) error {
	if len(series.Points) == 0 {
		return &InvalidSeriesError{Index: -1, Reason: "series has no points"}
	}

	var totalActual, totalExpected float64
	for i, p := range series.Points {
		switch {
		case math.IsNaN(p.Expected) || math.IsInf(p.Expected, 0):
			return &InvalidSeriesError{Index: i, Time: p.Time.String(), Reason: "expected value is not finite"}
		case p.Expected <= 0:
			return &InvalidSeriesError{Index: i, Time: p.Time.String(), Reason: "expected value must be positive"}
		case math.IsNaN(p.Actual) || math.IsInf(p.Actual, 0):
			return &InvalidSeriesError{Index: i, Time: p.Time.String(), Reason: "actual value is not finite"}
		case p.Actual < 0:
			return &InvalidSeriesError{Index: i, Time: p.Time.String(), Reason: "actual value is negative"}
		case !finite(signedDeviationPct(p)):
			return &InvalidSeriesError{Index: i, Time: p.Time.String(), Reason: "deviation overflows"}
		}
		totalActual += p.Actual
		totalExpected += p.Expected
	}

	if !finite(totalActual, totalExpected) {
		return errDeviationOverflow
	}

	return nil
}
