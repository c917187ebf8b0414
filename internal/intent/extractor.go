package intent

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Clause names reported by Diagnose
const (
	ClauseThreshold = "threshold"
	ClauseBaseYear  = "base_year"
	ClauseRange     = "range"
)

// clause is one step of the outlier question grammar. Clauses are matched in
// order, each one searching the text left after the previous match.
type clause struct {
	name    string
	pattern *regexp.Regexp
	apply   func(groups []string, q *outlierQuery) bool
}

// outlierQuery accumulates the values extracted by the clauses
type outlierQuery struct {
	threshold  float64
	baseYear   int
	startMonth Month
	endMonth   Month
	endYear    int
}

// The grammar runs over normalised text: lower case, accents removed, so
// "año" is matched as "ano" and "desviación" as "desviacion".
var outlierGrammar = []clause{
	{
		name:    ClauseThreshold,
		pattern: regexp.MustCompile(`desviacion(?:es)?\s+mayor(?:es)?\s+al?\s+(\d+(?:[.,]\d+)?)\s*%?`),
		apply: func(groups []string, q *outlierQuery) bool {
			v, err := strconv.ParseFloat(strings.Replace(groups[1], ",", ".", 1), 64)
			if err != nil {
				return false
			}
			q.threshold = v
			return true
		},
	},
	{
		name:    ClauseBaseYear,
		pattern: regexp.MustCompile(`\bano\s+(?:base\s+)?(\d{4})\b`),
		apply: func(groups []string, q *outlierQuery) bool {
			year, err := strconv.Atoi(groups[1])
			if err != nil {
				return false
			}
			q.baseYear = year
			return true
		},
	},
	{
		name:    ClauseRange,
		pattern: regexp.MustCompile(`\bentre\s+([a-z]+)\s+y\s+([a-z]+)\s+del?\s+(\d{4})\b`),
		apply: func(groups []string, q *outlierQuery) bool {
			start, ok := LookupMonth(groups[1])
			if !ok {
				return false
			}
			end, ok := LookupMonth(groups[2])
			if !ok {
				return false
			}
			year, err := strconv.Atoi(groups[3])
			if err != nil {
				return false
			}
			q.startMonth = start
			q.endMonth = end
			q.endYear = year
			return true
		},
	},
}

// Extractor recognises outlier-search questions. It holds no mutable state
// and may be shared between goroutines.
type Extractor struct {
	calendarMonthEnd bool
}

// Option configures an Extractor
type Option func(*Extractor)

// WithCalendarMonthEnd makes the end date the real last day of the month
// instead of the fixed day 31.
func WithCalendarMonthEnd(enabled bool) Option {
	return func(e *Extractor) {
		e.calendarMonthEnd = enabled
	}
}

// NewExtractor creates an extractor
func NewExtractor(opts ...Option) *Extractor {
	e := &Extractor{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

var defaultExtractor = NewExtractor()

// Extract interprets text with the default extractor
func Extract(text string) Intent {
	return defaultExtractor.Extract(text)
}

// Extract returns an OutlierSearch when every clause of the grammar matches
// and every value parses, and Unrecognized with the original text otherwise.
func (e *Extractor) Extract(text string) Intent {
	q, failed := parseOutlierQuery(text)
	if failed != "" {
		return Unrecognized{Text: text}
	}

	// Both dates use the end year.
	endDay := 31
	if e.calendarMonthEnd {
		endDay = q.endMonth.LastDay(q.endYear)
	}

	return OutlierSearch{
		ThresholdPct: q.threshold,
		BaseYear:     q.baseYear,
		StartDate:    fmt.Sprintf("%04d-%s-01", q.endYear, q.startMonth.Code()),
		EndDate:      fmt.Sprintf("%04d-%s-%02d", q.endYear, q.endMonth.Code(), endDay),
	}
}

// Diagnose returns the name of the first clause that did not match text, or
// "" when the whole grammar matches.
func (e *Extractor) Diagnose(text string) string {
	_, failed := parseOutlierQuery(text)
	return failed
}

func parseOutlierQuery(text string) (outlierQuery, string) {
	var q outlierQuery

	rest := normalize(text)
	for _, c := range outlierGrammar {
		loc := c.pattern.FindStringSubmatchIndex(rest)
		if loc == nil {
			return q, c.name
		}

		groups := make([]string, len(loc)/2)
		for i := range groups {
			if loc[2*i] >= 0 {
				groups[i] = rest[loc[2*i]:loc[2*i+1]]
			}
		}

		if !c.apply(groups, &q) {
			return q, c.name
		}
		rest = rest[loc[1]:]
	}

	return q, ""
}

// normalize lower-cases text and strips combining marks. The transformers
// are stateful, so a fresh chain is built on every call.
func normalize(text string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, text)
	if err != nil {
		folded = text
	}
	return cases.Lower(language.Spanish).String(folded)
}
