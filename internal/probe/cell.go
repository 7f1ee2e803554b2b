package probe

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// CellKind identifies the underlying value of a Cell.
type CellKind uint8

const (
	KindEmpty CellKind = iota
	KindString
	KindNumber
	KindDate
	KindBool
)

// Cell is an untyped spreadsheet value: string, number, date, boolean or empty.
type Cell struct {
	Kind CellKind
	Str  string
	Num  float64
	Time time.Time
	Bool bool
}

// StringCell returns a text cell.
func StringCell(s string) Cell { return Cell{Kind: KindString, Str: s} }

// NumberCell returns a numeric cell.
func NumberCell(f float64) Cell { return Cell{Kind: KindNumber, Num: f} }

// DateCell returns a date cell.
func DateCell(t time.Time) Cell { return Cell{Kind: KindDate, Time: t} }

// BoolCell returns a boolean cell.
func BoolCell(b bool) Cell { return Cell{Kind: KindBool, Bool: b} }

// EmptyCell returns a blank cell.
func EmptyCell() Cell { return Cell{} }

// IsEmpty reports whether the cell is blank. Whitespace-only strings are blank.
func (c Cell) IsEmpty() bool {
	return c.Kind == KindEmpty || (c.Kind == KindString && strings.TrimSpace(c.Str) == "")
}

func (c Cell) String() string { return c.Text() }

func (c Cell) isNumberValue() bool { return c.Kind == KindNumber && !math.IsNaN(c.Num) }

// CellOf converts a Go value into a Cell. Supported inputs are nil, string,
// bool, time.Time and the built-in integer and float types; anything else
// is rendered through its Stringer or left empty.
func CellOf(v any) Cell {
	switch x := v.(type) {
	case nil:
		return EmptyCell()
	case Cell:
		return x
	case string:
		if x == "" {
			return EmptyCell()
		}
		return StringCell(x)
	case bool:
		return BoolCell(x)
	case time.Time:
		return DateCell(x)
	case float64:
		return NumberCell(x)
	case float32:
		return NumberCell(float64(x))
	case int:
		return NumberCell(float64(x))
	case int64:
		return NumberCell(float64(x))
	case int32:
		return NumberCell(float64(x))
	case uint:
		return NumberCell(float64(x))
	case uint64:
		return NumberCell(float64(x))
	case interface{ String() string }:
		return StringCell(x.String())
	default:
		return EmptyCell()
	}
}

// Row converts a list of Go values into a row of cells (see CellOf).
func Row(vals ...any) []Cell {
	out := make([]Cell, len(vals))
	for i, v := range vals {
		out[i] = CellOf(v)
	}
	return out
}

// Text returns the trimmed textual form of the cell, as used for uniqueness
// and length statistics. Dates render as YYYY-MM-DD.
func (c Cell) Text() string {
	switch c.Kind {
	case KindString:
		return strings.TrimSpace(c.Str)
	case KindNumber:
		return strconv.FormatFloat(c.Num, 'f', -1, 64)
	case KindDate:
		return c.Time.Format("2006-01-02")
	case KindBool:
		return strconv.FormatBool(c.Bool)
	default:
		return ""
	}
}

// Display returns the cell formatted for human review. Dates use a medium
// style ("Jan 5, 2024") rather than ISO; strings keep their original spacing.
func (c Cell) Display() string {
	switch c.Kind {
	case KindString:
		return c.Str
	case KindDate:
		return c.Time.Format(displayDateLayout)
	default:
		return c.Text()
	}
}

const displayDateLayout = "Jan 2, 2006"

// ----- classification -----

// groupedNumberRe matches numbers using ',' as a thousands separator.
var groupedNumberRe = regexp.MustCompile(`^[+-]?\d{1,3}(,\d{3})+(\.\d*)?$`)

// parseNumberLoose parses s as a float after removing thousands separators.
// US grouping only: "1,200.50" parses, "1.200,50" and "1,2,3" do not.
func parseNumberLoose(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if strings.Contains(s, ",") {
		if !groupedNumberRe.MatchString(s) {
			return 0, false
		}
		s = strings.ReplaceAll(s, ",", "")
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// numericValue reports whether c is numeric and returns its value.
func numericValue(c Cell) (float64, bool) {
	switch c.Kind {
	case KindNumber:
		return c.Num, c.isNumberValue()
	case KindString:
		return parseNumberLoose(c.Str)
	default:
		return 0, false
	}
}

var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
	"1/2/2006",
	"02.01.2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"2 Jan 2006",
	"02-Jan-2006",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
	time.RFC3339Nano,
}

// parseDateLoose tries each of dateLayouts in order.
func parseDateLoose(s string) (time.Time, string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, "", false
	}
	for _, lay := range dateLayouts {
		if t, err := time.Parse(lay, s); err == nil {
			return t, lay, true
		}
	}
	return time.Time{}, "", false
}

// dateValue reports whether c is a date and returns it.
func dateValue(c Cell) (time.Time, bool) {
	switch c.Kind {
	case KindDate:
		return c.Time, !c.Time.IsZero()
	case KindString:
		t, _, ok := parseDateLoose(c.Str)
		return t, ok
	default:
		return time.Time{}, false
	}
}

// parseBoolLoose accepts true/false, yes/no, y/n and 1/0, case-insensitively.
func parseBoolLoose(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes", "y", "1":
		return true, true
	case "false", "no", "n", "0":
		return false, true
	default:
		return false, false
	}
}

func boolValue(c Cell) (bool, bool) {
	switch c.Kind {
	case KindBool:
		return c.Bool, true
	case KindString:
		return parseBoolLoose(c.Str)
	case KindNumber:
		switch c.Num {
		case 1:
			return true, true
		case 0:
			return false, true
		}
	}
	return false, false
}

// ----- excel serials -----

// Plausible Excel date serial range (roughly 1954 to 2146).
const (
	minPlausibleSerial = 20000
	maxPlausibleSerial = 90000
)

// IsPlausibleSerial reports whether n falls in the range treated as an Excel
// date serial rather than an ordinary number.
func IsPlausibleSerial(n float64) bool {
	return n > minPlausibleSerial && n < maxPlausibleSerial
}

var excelEpoch = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)

// SerialToTime converts an Excel (1900 system) date serial to UTC time.
func SerialToTime(n float64) time.Time {
	days := math.Floor(n)
	frac := n - days
	t := excelEpoch.AddDate(0, 0, int(days))
	return t.Add(time.Duration(math.Round(frac*86400)) * time.Second)
}

// ----- coercion -----

// Coerce converts c into a Go value suitable for a column of type t.
// Empty cells and cells that do not fit the type yield (nil, false).
//
//   - numeric: float64
//   - date:    time.Time (plausible serials are converted)
//   - bool:    bool
//   - text:    string (Cell.Text)
func Coerce(c Cell, t DeclaredType) (any, bool) {
	if c.IsEmpty() {
		return nil, false
	}
	switch t {
	case TypeNumeric:
		if f, ok := numericValue(c); ok {
			return f, true
		}
		if c.Kind == KindBool {
			if c.Bool {
				return float64(1), true
			}
			return float64(0), true
		}
	case TypeDate:
		if d, ok := dateValue(c); ok {
			return d, true
		}
		if f, ok := numericValue(c); ok && IsPlausibleSerial(f) {
			return SerialToTime(f), true
		}
	case TypeBool:
		if b, ok := boolValue(c); ok {
			return b, true
		}
	default:
		return c.Text(), true
	}
	return nil, false
}
