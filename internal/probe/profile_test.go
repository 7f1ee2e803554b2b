package probe

import (
	"strconv"
	"testing"
	"time"
)

func strCells(vals ...string) []Cell {
	out := make([]Cell, len(vals))
	for i, v := range vals {
		out[i] = CellOf(v)
	}
	return out
}

//
// Profile: type guesses
//

// TestProfile_TypeGuess covers the ordered ratio rules and the sparse-column rule.
func TestProfile_TypeGuess(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		values []Cell
		want   DeclaredType
	}{
		{"grouped numbers", strCells("1,200", "950", "3.5"), TypeNumeric},
		{"ones and zeros are numeric", strCells("1", "0", "1", "0"), TypeNumeric},
		{"iso dates with a gap", strCells("2024-01-05", "2024-02-10", "", "2024-03-01"), TypeDate},
		{"yes/no words", strCells("yes", "no", "Y", "TRUE"), TypeBool},
		{"half numeric half text", strCells("a", "b", "1", "2"), TypeText},
		{"leaning numeric", strCells("1", "2", "3", "x", "", ""), TypeNumeric},
		{"sparse numbers", strCells("1", "", "", "", ""), TypeNumeric},
		{"sparse dates", strCells("", "", "", "2024-01-01"), TypeDate},
		{"all empty", strCells("", " ", ""), TypeText},
		{"no values", nil, TypeText},
		{"locale decimal stays text", strCells("1.200,50", "3.100,00", "7,5"), TypeText},
		{"typed cells", Row(1.5, 2, 3.25), TypeNumeric},
		{"typed dates", Row(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)), TypeDate},
		{"typed bools", Row(true, false, true), TypeBool},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Profile(tt.values, 0).TypeGuess; got != tt.want {
				t.Fatalf("Profile().TypeGuess = %q, want %q", got, tt.want)
			}
		})
	}
}

// TestProfile_DateColumn checks the counts and ranges of a date column with
// one empty cell out of four.
func TestProfile_DateColumn(t *testing.T) {
	t.Parallel()

	p := Profile(strCells("2024-01-05", "2024-02-10", "", "2024-03-01"), 100)

	if p.SampleSize != 4 || p.EmptyCount != 1 || p.DateCount != 3 {
		t.Fatalf("counts = size %d empty %d date %d, want 4/1/3", p.SampleSize, p.EmptyCount, p.DateCount)
	}
	if p.UniqueCount != 3 || p.UniqueRatio != 1 {
		t.Fatalf("unique = %d ratio %v, want 3 ratio 1", p.UniqueCount, p.UniqueRatio)
	}
	if p.MinDate == nil || !p.MinDate.Equal(time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("MinDate = %v, want 2024-01-05", p.MinDate)
	}
	if p.MaxDate == nil || !p.MaxDate.Equal(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("MaxDate = %v, want 2024-03-01", p.MaxDate)
	}
	if p.MinValue != nil || p.MaxValue != nil {
		t.Fatalf("numeric range set on a date column: %v..%v", p.MinValue, p.MaxValue)
	}
}

// TestProfile_Ranges checks the per-category min/max tracking.
func TestProfile_Ranges(t *testing.T) {
	t.Parallel()

	p := Profile(strCells("1,200", "950", "3.5", "ab", "abcd", " x "), 0)

	if p.MinValue == nil || *p.MinValue != 3.5 {
		t.Fatalf("MinValue = %v, want 3.5", p.MinValue)
	}
	if p.MaxValue == nil || *p.MaxValue != 1200 {
		t.Fatalf("MaxValue = %v, want 1200", p.MaxValue)
	}
	if p.MinLength != 1 || p.MaxLength != 4 {
		t.Fatalf("lengths = %d..%d, want 1..4", p.MinLength, p.MaxLength)
	}
}

// TestProfile_SignalInvariant checks that signal counts add up to the
// non-empty sample for a mixed column.
func TestProfile_SignalInvariant(t *testing.T) {
	t.Parallel()

	values := Row("1", "yes", "2024-01-01", "free text", "", nil, 3.0, true, "n", "1,000")
	p := Profile(values, 0)

	sum := p.NumericCount + p.DateCount + p.BoolCount + p.TextCount
	if sum != p.SampleSize-p.EmptyCount {
		t.Fatalf("signals %d != sample %d - empty %d", sum, p.SampleSize, p.EmptyCount)
	}
	if p.NumericCount != 3 || p.DateCount != 1 || p.BoolCount != 3 || p.TextCount != 1 {
		t.Fatalf("signals = n%d d%d b%d t%d, want n3 d1 b3 t1", p.NumericCount, p.DateCount, p.BoolCount, p.TextCount)
	}
}

// TestProfile_SampleLimit ensures only the first sampleLimit values are read.
func TestProfile_SampleLimit(t *testing.T) {
	t.Parallel()

	values := make([]Cell, 150)
	for i := range values {
		values[i] = StringCell(strconv.Itoa(i))
	}
	p := Profile(values, 100)
	if p.SampleSize != 100 || p.UniqueCount != 100 {
		t.Fatalf("SampleSize = %d UniqueCount = %d, want 100/100", p.SampleSize, p.UniqueCount)
	}
	if *p.MaxValue != 99 {
		t.Fatalf("MaxValue = %v, want 99", *p.MaxValue)
	}
}

// TestProfile_AllNumericIsNumeric is the monotonicity property: when every
// sampled non-empty cell is a number, the guess is numeric regardless of gaps.
func TestProfile_AllNumericIsNumeric(t *testing.T) {
	t.Parallel()

	for empties := 0; empties < 20; empties++ {
		values := strCells("10", "20.5", "-3")
		for i := 0; i < empties; i++ {
			values = append(values, EmptyCell())
		}
		if got := Profile(values, 0).TypeGuess; got != TypeNumeric {
			t.Fatalf("empties=%d: TypeGuess = %q, want numeric", empties, got)
		}
	}
}

//
// Coerce
//

func TestCoerce(t *testing.T) {
	t.Parallel()

	day := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name   string
		cell   Cell
		typ    DeclaredType
		want   any
		wantOK bool
	}{
		{"grouped number", StringCell("1,200"), TypeNumeric, float64(1200), true},
		{"text into numeric", StringCell("abc"), TypeNumeric, nil, false},
		{"iso string into date", StringCell("2024-01-05"), TypeDate, day, true},
		{"serial into date", NumberCell(45296), TypeDate, day, true},
		{"small number not a date", NumberCell(12), TypeDate, nil, false},
		{"yes into bool", StringCell("Yes"), TypeBool, true, true},
		{"number into text", NumberCell(2.5), TypeText, "2.5", true},
		{"empty", EmptyCell(), TypeText, nil, false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := Coerce(tt.cell, tt.typ)
			if ok != tt.wantOK {
				t.Fatalf("Coerce() ok = %v, want %v", ok, tt.wantOK)
			}
			if wt, isTime := tt.want.(time.Time); isTime {
				gt, _ := got.(time.Time)
				if !gt.Equal(wt) {
					t.Fatalf("Coerce() = %v, want %v", got, wt)
				}
				return
			}
			if got != tt.want {
				t.Fatalf("Coerce() = %#v, want %#v", got, tt.want)
			}
		})
	}
}
