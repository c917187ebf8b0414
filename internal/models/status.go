package models

import "strings"

// OverallStatus is the health label attached to a device-day
type OverallStatus string

const (
	StatusNormal   OverallStatus = "NORMAL"
	StatusAlert    OverallStatus = "ALERTA"
	StatusCritical OverallStatus = "CRITICO"
	StatusUnknown  OverallStatus = "DESCONOCIDO"
)

// ParseOverallStatus normalises a backend estado_general value.
// Unrecognised or empty values map to StatusUnknown.
func ParseOverallStatus(raw string) OverallStatus {
	switch OverallStatus(strings.ToUpper(strings.TrimSpace(raw))) {
	case StatusNormal:
		return StatusNormal
	case StatusAlert:
		return StatusAlert
	case StatusCritical:
		return StatusCritical
	default:
		return StatusUnknown
	}
}

// String implements fmt.Stringer
func (s OverallStatus) String() string {
	return string(s)
}
