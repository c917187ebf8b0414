package models

import (
	"time"
)

// QueryLogEntry records one natural-language question and how it was interpreted.
// Extracted parameters are NULL for unrecognised questions.
type QueryLogEntry struct {
	ID           string    `json:"id" db:"id"`
	Message      string    `json:"message" db:"message"`
	IntentKind   string    `json:"intent_kind" db:"intent_kind"`
	ThresholdPct *float64  `json:"threshold_pct,omitempty" db:"threshold_pct"`
	BaseYear     *int      `json:"base_year,omitempty" db:"base_year"`
	StartDate    *string   `json:"start_date,omitempty" db:"start_date"`
	EndDate      *string   `json:"end_date,omitempty" db:"end_date"`
	ResultCount  *int      `json:"result_count,omitempty" db:"result_count"`
	Failed       bool      `json:"failed" db:"failed"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}
