package analytics

import (
	"fmt"

	"energy-insights/internal/models"
)

// Period names one of the four fixed day segments
type Period string

const (
	PeriodMadrugada Period = "Madrugada"
	PeriodManana    Period = "Mañana"
	PeriodTarde     Period = "Tarde"
	PeriodNoche     Period = "Noche"
)

// periodRanges are half-open hour intervals [Start, End)
var periodRanges = [4]struct {
	Period Period
	Start  int
	End    int
}{
	{PeriodMadrugada, 0, 6},
	{PeriodManana, 6, 12},
	{PeriodTarde, 12, 18},
	{PeriodNoche, 18, 24},
}

// PeriodBucket aggregates the points of one day segment.
// The averages and deviation are nil when the segment holds no points.
type PeriodBucket struct {
	Period       Period   `json:"period"`
	StartHour    int      `json:"start_hour"`
	EndHour      int      `json:"end_hour"`
	Count        int      `json:"count"`
	AvgActual    *float64 `json:"avg_actual"`
	AvgExpected  *float64 `json:"avg_expected"`
	DeviationPct *float64 `json:"deviation_pct"`
}

// HasData reports whether the bucket received any point
func (b PeriodBucket) HasData() bool {
	return b.Count > 0
}

// ComputePeriodBuckets partitions the series into the four day segments.
// Hour 24 wraps to Madrugada.
func ComputePeriodBuckets(series models.Series) ([4]PeriodBucket, error) {
	var buckets [4]PeriodBucket
	if err := validate(series); err != nil {
		return buckets, err
	}

	var sumActual, sumExpected [4]float64

	for _, p := range series.Points {
		idx := periodIndex(p.Time)
		buckets[idx].Count++
		sumActual[idx] += p.Actual
		sumExpected[idx] += p.Expected
	}

	assigned := 0
	for i, r := range periodRanges {
		buckets[i].Period = r.Period
		buckets[i].StartHour = r.Start
		buckets[i].EndHour = r.End
		assigned += buckets[i].Count

		if buckets[i].Count == 0 {
			continue
		}

		n := float64(buckets[i].Count)
		avgActual := sumActual[i] / n
		avgExpected := sumExpected[i] / n
		deviation := (avgActual - avgExpected) / avgExpected * 100
		if !finite(avgActual, avgExpected, deviation) {
			return [4]PeriodBucket{}, errDeviationOverflow
		}

		buckets[i].AvgActual = &avgActual
		buckets[i].AvgExpected = &avgExpected
		buckets[i].DeviationPct = &deviation
	}

	if assigned != len(series.Points) {
		panic(fmt.Sprintf("analytics: period buckets hold %d of %d points", assigned, len(series.Points)))
	}

	return buckets, nil
}

// periodIndex returns the bucket of a slot; it panics when no bucket matches
func periodIndex(t models.TimeOfDay) int {
	hour := t.Hour % 24
	for i, r := range periodRanges {
		if hour >= r.Start && hour < r.End {
			return i
		}
	}
	panic(fmt.Sprintf("analytics: time %s matches no period", t))
}
