package analytics

import (
	"fmt"

	"energy-insights/internal/models"
)

// distributionEdges are the lower bounds of the six demand bins, kW.
// The last bin is open-ended.
var distributionEdges = [6]float64{0, 10, 20, 30, 40, 50}

// DistributionBin counts the points whose actual demand falls in [Min, Max).
// Max is nil for the open-ended top bin.
type DistributionBin struct {
	Label      string   `json:"range"`
	Min        float64  `json:"min"`
	Max        *float64 `json:"max"`
	Count      int      `json:"count"`
	Percentage float64  `json:"percentage"`
}

// ComputeDistribution histograms actual demand into the six fixed bins
func ComputeDistribution(series models.Series) ([6]DistributionBin, error) {
	var bins [6]DistributionBin
	if err := validate(series); err != nil {
		return bins, err
	}

	for i, lo := range distributionEdges {
		bins[i].Min = lo
		if i+1 < len(distributionEdges) {
			hi := distributionEdges[i+1]
			bins[i].Max = &hi
			bins[i].Label = fmt.Sprintf("%g-%g", lo, hi)
		} else {
			bins[i].Label = fmt.Sprintf("%g+", lo)
		}
	}

	for _, p := range series.Points {
		bins[binIndex(p.Actual)].Count++
	}

	total := len(series.Points)
	counted := 0
	for i := range bins {
		counted += bins[i].Count
		bins[i].Percentage = float64(bins[i].Count) / float64(total) * 100
	}

	if counted != total {
		panic(fmt.Sprintf("analytics: distribution holds %d of %d points", counted, total))
	}

	return bins, nil
}

// binIndex returns the bin holding v; v is validated non-negative
func binIndex(v float64) int {
	for i := len(distributionEdges) - 1; i >= 0; i-- {
		if v >= distributionEdges[i] {
			return i
		}
	}
	panic(fmt.Sprintf("analytics: value %v matches no distribution bin", v))
}
