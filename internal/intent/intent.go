// Package intent turns a free-text Spanish question into a typed query.
package intent

// Kinds reported by Intent.Kind
const (
	KindOutlierSearch = "outlier_search"
	KindUnrecognized  = "unrecognized"
)

// Intent is the interpreted form of a question. It is either an OutlierSearch
// or Unrecognized; no other implementations exist.
type Intent interface {
	Kind() string
	isIntent()
}

// OutlierSearch asks for device-days whose demand deviates from the base
// year's curve by more than ThresholdPct between StartDate and EndDate.
type OutlierSearch struct {
	ThresholdPct float64 `json:"threshold_pct"`
	BaseYear     int     `json:"base_year"`
	StartDate    string  `json:"start_date"`
	EndDate      string  `json:"end_date"`
}

// Kind implements Intent
func (OutlierSearch) Kind() string { return KindOutlierSearch }

func (OutlierSearch) isIntent() {}

// Unrecognized carries the original text for the general purpose assistant
type Unrecognized struct {
	Text string `json:"text"`
}

// Kind implements Intent
func (Unrecognized) Kind() string { return KindUnrecognized }

func (Unrecognized) isIntent() {}
