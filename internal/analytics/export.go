package analytics

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/shopspring/decimal"

	"energy-insights/internal/models"
)

var csvHeader = []string{"Hora", "Demanda Real (kW)", "Demanda Esperada (kW)", "Desviación (%)"}

// WriteCSV exports the series with its signed per-slot deviation, two decimals
func WriteCSV(w io.Writer, series models.Series) error {
	rows, err := DeviationRows(series)
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}

	for _, r := range rows {
		record := []string{
			r.Time.String(),
			decimal.NewFromFloat(r.Actual).StringFixed(2),
			decimal.NewFromFloat(r.Expected).StringFixed(2),
			decimal.NewFromFloat(r.DeviationPct).StringFixed(2),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write csv row %s: %w", r.Time, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed to flush csv: %w", err)
	}
	return nil
}
