package analytics

import (
	"energy-insights/internal/models"
)

// Deviation bands used to label a device-day, in percent of the baseline
const (
	AlertDeviationPct    = 21.0
	CriticalDeviationPct = 71.0
)

// ClassifyStatus labels a series from its worst signed deviation:
// CRITICO beyond ±71 %, ALERTA beyond ±21 %, NORMAL otherwise.
func ClassifyStatus(series models.Series) (models.OverallStatus, error) {
	if err := validate(series); err != nil {
		return models.StatusUnknown, err
	}

	worst := 0.0
	for _, p := range series.Points {
		if dev := absDeviationPct(p); dev > worst {
			worst = dev
		}
	}

	switch {
	case worst > CriticalDeviationPct:
		return models.StatusCritical, nil
	case worst > AlertDeviationPct:
		return models.StatusAlert, nil
	default:
		return models.StatusNormal, nil
	}
}

