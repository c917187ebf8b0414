package analytics

import (
	"math"
	"sort"

	"energy-insights/internal/models"
)

// DefaultTopN is the size of the dashboard's deviation table
const DefaultTopN = 10

// RankedRow is one slot of the deviation ranking
type RankedRow struct {
	Time         models.TimeOfDay `json:"time"`
	Actual       float64          `json:"actual"`
	Expected     float64          `json:"expected"`
	Diff         float64          `json:"diff"`
	DeviationPct float64          `json:"deviation_pct"`
}

// DeviationRows returns one row per point, in chronological order
func DeviationRows(series models.Series) ([]RankedRow, error) {
	if err := validate(series); err != nil {
		return nil, err
	}

	rows := make([]RankedRow, len(series.Points))
	for i, p := range series.Points {
		rows[i] = RankedRow{
			Time:         p.Time,
			Actual:       p.Actual,
			Expected:     p.Expected,
			Diff:         p.Actual - p.Expected,
			DeviationPct: signedDeviationPct(p),
		}
	}
	return rows, nil
}

// RankTopDeviations returns the n slots with the largest absolute deviation.
// Ties keep chronological order; n <= 0 yields no rows.
func RankTopDeviations(series models.Series, n int) ([]RankedRow, error) {
	rows, err := DeviationRows(series)
	if err != nil {
		return nil, err
	}

	if n <= 0 {
		return []RankedRow{}, nil
	}

	sort.SliceStable(rows, func(i, j int) bool {
		return math.Abs(rows[i].DeviationPct) > math.Abs(rows[j].DeviationPct)
	})

	if len(rows) > n {
		rows = rows[:n]
	}
	return rows, nil
}
