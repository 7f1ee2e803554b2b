package probe

import (
	"time"
	"unicode/utf8"
)

// Signal ratio thresholds for TypeGuess. Ratios are taken over the full
// sample size, empties included.
const (
	confidentRatio    = 0.7
	leaningNumericMin = 0.5
	leaningTextMax    = 0.4
)

// Profile characterizes the first sampleLimit values of a column.
// sampleLimit <= 0 uses DefaultSampleLimit.
//
// Each non-empty cell casts exactly one signal, checked in order:
//   - numeric: a number, or a string that parses after removing ','
//   - date:    a date value, or a string in one of the known date layouts
//   - bool:    true/false/yes/no/y/n/0/1 (case-insensitive)
//   - text:    everything else
//
// Order matters: "1" is numeric, never bool.
func Profile(values []Cell, sampleLimit int) ColumnProfile {
	if sampleLimit <= 0 {
		sampleLimit = DefaultSampleLimit
	}
	sample := values
	if len(sample) > sampleLimit {
		sample = sample[:sampleLimit]
	}

	p := ColumnProfile{SampleSize: len(sample)}
	uniq := make(map[string]struct{}, len(sample))
	var minDate, maxDate time.Time

	for _, c := range sample {
		if c.IsEmpty() {
			p.EmptyCount++
			continue
		}
		text := c.Text()
		uniq[text] = struct{}{}

		if v, ok := numericValue(c); ok {
			p.NumericCount++
			if p.MinValue == nil || v < *p.MinValue {
				p.MinValue = &v
			}
			if p.MaxValue == nil || v > *p.MaxValue {
				vv := v
				p.MaxValue = &vv
			}
			continue
		}
		if d, ok := dateValue(c); ok {
			p.DateCount++
			if p.MinDate == nil || d.Before(minDate) {
				minDate = d
				p.MinDate = &minDate
			}
			if p.MaxDate == nil || d.After(maxDate) {
				maxDate = d
				p.MaxDate = &maxDate
			}
			continue
		}
		if _, ok := boolValue(c); ok {
			p.BoolCount++
			continue
		}

		n := utf8.RuneCountInString(text)
		if p.TextCount == 0 || n < p.MinLength {
			p.MinLength = n
		}
		if n > p.MaxLength {
			p.MaxLength = n
		}
		p.TextCount++
	}

	p.UniqueCount = len(uniq)
	p.UniqueRatio = float64(p.UniqueCount) / float64(max(1, p.SampleSize-p.EmptyCount))
	p.TypeGuess = guessType(p)
	return p
}

// guessType applies the ordered ratio rules:
//
//	numeric >= 0.7                  -> numeric
//	date    >= 0.7                  -> date
//	bool    >= 0.7                  -> bool
//	numeric >= 0.5 and text <= 0.4  -> numeric
//	otherwise                       -> text
//
// A sparse column whose non-empty cells all cast the same non-text signal
// takes that type even when empties pull the ratio under the threshold, so a
// column of only numbers is always numeric.
func guessType(p ColumnProfile) DeclaredType {
	total := float64(max(1, p.SampleSize))
	ratio := func(n int) float64 { return float64(n) / total }
	filled := p.SampleSize - p.EmptyCount

	switch {
	case filled > 0 && p.NumericCount == filled:
		return TypeNumeric
	case filled > 0 && p.DateCount == filled:
		return TypeDate
	case filled > 0 && p.BoolCount == filled:
		return TypeBool
	case ratio(p.NumericCount) >= confidentRatio:
		return TypeNumeric
	case ratio(p.DateCount) >= confidentRatio:
		return TypeDate
	case ratio(p.BoolCount) >= confidentRatio:
		return TypeBool
	case ratio(p.NumericCount) >= leaningNumericMin && ratio(p.TextCount) <= leaningTextMax:
		return TypeNumeric
	default:
		return TypeText
	}
}
