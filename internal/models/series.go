package models

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// TimeOfDay is a wall-clock slot label within one calendar day
type TimeOfDay struct {
	Hour   int
	Minute int
}

// ParseTimeOfDay parses an "HH:MM" label as sent by the analysis backend.
// "24:00" is accepted as the end-of-day label.
func ParseTimeOfDay(label string) (TimeOfDay, error) {
	parts := strings.Split(strings.TrimSpace(label), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return TimeOfDay{}, &ValidationError{
			Field:   "time_str",
			Value:   label,
			Message: "invalid time label, expected HH:MM",
		}
	}

	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 24 {
		return TimeOfDay{}, &ValidationError{
			Field:   "time_str",
			Value:   label,
			Message: "invalid hour in time label",
		}
	}

	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 || (hour == 24 && minute != 0) {
		return TimeOfDay{}, &ValidationError{
			Field:   "time_str",
			Value:   label,
			Message: "invalid minute in time label",
		}
	}

	return TimeOfDay{Hour: hour, Minute: minute}, nil
}

// MustParseTimeOfDay is ParseTimeOfDay for constant labels; it panics on error
func MustParseTimeOfDay(label string) TimeOfDay {
	t, err := ParseTimeOfDay(label)
	if err != nil {
		panic(err)
	}
	return t
}

// String renders the slot as HH:MM
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// Minutes returns minutes since midnight, used for ordering
func (t TimeOfDay) Minutes() int {
	return t.Hour*60 + t.Minute
}

// MarshalText implements encoding.TextMarshaler
func (t TimeOfDay) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (t *TimeOfDay) UnmarshalText(text []byte) error {
	parsed, err := ParseTimeOfDay(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// TimeSeriesPoint is one measured slot paired with its baseline
type TimeSeriesPoint struct {
	Time     TimeOfDay `json:"time"`
	Actual   float64   `json:"actual"`   // measured demand, kW
	Expected float64   `json:"expected"` // baseline mean for the slot, kW
	StdDev   *float64  `json:"std_dev,omitempty"`
}

// Series is the ordered curve of one device for one calendar day.
// Points are chronological and time labels are unique.
type Series struct {
	DeviceID string            `json:"device_id,omitempty"`
	Day      string            `json:"day,omitempty"`
	Points   []TimeSeriesPoint `json:"points"`
}

// Len returns the number of points
func (s Series) Len() int {
	return len(s.Points)
}

// NewSeries builds a series and checks ordering, uniqueness and value ranges.
// A non-positive expected value is rejected later by the analyzer, where the
// ratio is actually computed.
func NewSeries(deviceID, day string, points []TimeSeriesPoint) (Series, error) {
	for i, p := range points {
		if !isFinite(p.Actual) || p.Actual < 0 {
			return Series{}, &ValidationError{
				Field:   "value",
				Value:   strconv.FormatFloat(p.Actual, 'g', -1, 64),
				Message: fmt.Sprintf("actual demand at %s must be a non-negative number", p.Time),
			}
		}
		if !isFinite(p.Expected) {
			return Series{}, &ValidationError{
				Field:   "mean",
				Value:   strconv.FormatFloat(p.Expected, 'g', -1, 64),
				Message: fmt.Sprintf("expected demand at %s must be a finite number", p.Time),
			}
		}
		if p.StdDev != nil && (!isFinite(*p.StdDev) || *p.StdDev < 0) {
			return Series{}, &ValidationError{
				Field:   "std",
				Value:   strconv.FormatFloat(*p.StdDev, 'g', -1, 64),
				Message: fmt.Sprintf("standard deviation at %s must be non-negative", p.Time),
			}
		}
		if i > 0 && p.Time.Minutes() <= points[i-1].Time.Minutes() {
			return Series{}, &ValidationError{
				Field:   "time_str",
				Value:   p.Time.String(),
				Message: "time labels must be unique and in chronological order",
			}
		}
	}

	return Series{
		DeviceID: deviceID,
		Day:      day,
		Points:   points,
	}, nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// ValidationError represents a data validation error
type ValidationError struct {
	Field   string
	Value   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// IsTransient returns false as validation errors are permanent
func (e *ValidationError) IsTransient() bool {
	return false
}
