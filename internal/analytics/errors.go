package analytics

import (
	"errors"
	"fmt"
)

// ErrInvalidSeries is matched by every InvalidSeriesError via errors.Is
var ErrInvalidSeries = errors.New("invalid series")

// InvalidSeriesError reports a series the analyzer refuses to compute over
type InvalidSeriesError struct {
	Index  int // -1 when the error concerns the whole series
	Time   string
	Reason string
}

func (e *InvalidSeriesError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("invalid series: %s", e.Reason)
	}
	return fmt.Sprintf("invalid series: point %d (%s): %s", e.Index, e.Time, e.Reason)
}

// Is makes errors.Is(err, ErrInvalidSeries) succeed
func (e *InvalidSeriesError) Is(target error) bool {
	return target == ErrInvalidSeries
}

// IsTransient returns false, the same input always fails
func (e *InvalidSeriesError) IsTransient() bool {
	return false
}
