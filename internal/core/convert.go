package core

// convert.go recognises dates and numbers in raw CSV cells. Values are never
// rewritten; these helpers only drive column type inference.

import (
	"regexp"
	"strings"
	"time"
)

// numericRegex matches integers, decimals and scientific notation.
// Currency symbols and thousands separators are not accepted.
var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// TwoDigitYearPivot defines how 2-digit years are interpreted.
// Years that would land more than this many years in the future are moved
// to the previous century.
var TwoDigitYearPivot = 20

var (
	twoDigitYearLayouts = []string{
		"1/2/06", "01/02/06", "1-2-06", "1.2.06", "01.02.06",
	}
	fourDigitYearLayouts = []string{
		time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05",
		"2006-01-02", "2006/01/02", "2006.01.02",
		"1/2/2006", "01/02/2006", "1-2-2006", "01-02-2006", "1.2.2006", "01.02.2006",
		"Jan 2, 2006", "Jan 2 2006", "January 2, 2006", "2 Jan 2006", "2 January 2006",
		"Mon, 02 Jan 2006 15:04:05 MST",
	}
)

// ParseDate tries the known layouts in order. Four-digit year layouts are
// tried first since they are unambiguous.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	for _, layout := range fourDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}

	pivotYear := time.Now().Year() + TwoDigitYearPivot
	for _, layout := range twoDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			if t.Year() > pivotYear {
				t = t.AddDate(-100, 0, 0)
			}
			return t, true
		}
	}

	return time.Time{}, false
}

// IsNumeric reports whether s, ignoring surrounding whitespace, is a plain number.
func IsNumeric(s string) bool {
	return numericRegex.MatchString(strings.TrimSpace(s))
}

// InferColumnType classifies a single sample value: date first, then
// number, otherwise text. Empty samples are text.
func InferColumnType(sample string) ColumnType {
	if _, ok := ParseDate(sample); ok {
		return ColumnDate
	}
	if IsNumeric(sample) {
		return ColumnNumber
	}
	return ColumnText
}

// ClassifyColumns derives the dataset kind from its column types.
func ClassifyColumns(cols []Column) DataKind {
	var dates, numbers, texts int
	for _, c := range cols {
		switch c.Type {
		case ColumnDate:
			dates++
		case ColumnNumber:
			numbers++
		default:
			texts++
		}
	}

	switch {
	case dates > 0 && numbers > 0:
		return DataTimeSeries
	case numbers > texts:
		return DataNumerical
	case texts > numbers:
		return DataCategorical
	default:
		return DataTabular
	}
}
