package intent

import (
	"fmt"
	"time"
)

// Month is a calendar month named in Spanish
type Month int

const (
	Enero Month = iota + 1
	Febrero
	Marzo
	Abril
	Mayo
	Junio
	Julio
	Agosto
	Septiembre
	Octubre
	Noviembre
	Diciembre
)

var monthNames = map[string]Month{
	"enero":      Enero,
	"febrero":    Febrero,
	"marzo":      Marzo,
	"abril":      Abril,
	"mayo":       Mayo,
	"junio":      Junio,
	"julio":      Julio,
	"agosto":     Agosto,
	"septiembre": Septiembre,
	"octubre":    Octubre,
	"noviembre":  Noviembre,
	"diciembre":  Diciembre,
}

// LookupMonth resolves a normalised (lower case, unaccented) month name
func LookupMonth(name string) (Month, bool) {
	m, ok := monthNames[name]
	return m, ok
}

// Code renders the month as its two-digit number, "01" to "12"
func (m Month) Code() string {
	return fmt.Sprintf("%02d", int(m))
}

// LastDay returns the real number of days of the month in year
func (m Month) LastDay(year int) int {
	return time.Date(year, time.Month(m)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
