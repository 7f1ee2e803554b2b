package probe

import (
	"math"
	"testing"
)

func strRows(rows ...[]string) [][]Cell {
	out := make([][]Cell, len(rows))
	for i, r := range rows {
		out[i] = make([]Cell, len(r))
		for j, v := range r {
			out[i][j] = CellOf(v)
		}
	}
	return out
}

//
// DetectHeaderRow
//

// TestDetectHeaderRow covers blank leading rows, numeric data rows, ties and
// the scan window.
func TestDetectHeaderRow(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		rows    [][]Cell
		maxScan int
		want    int
	}{
		{
			name: "blank leading rows",
			rows: strRows(
				[]string{},
				[]string{"", ""},
				[]string{"Name", "Amount", "Amount"},
				[]string{"Alice", "1,200", "950"},
				[]string{"Bob", "300", "1,050"},
			),
			want: 2,
		},
		{
			name: "title row above header loses to hint words",
			rows: strRows(
				[]string{"Quarterly export"},
				[]string{"ID", "Email", "Country", "Status"},
				[]string{"1", "a@x.io", "FR", "open"},
			),
			want: 1,
		},
		{
			name: "tie resolves to first",
			rows: strRows(
				[]string{"alpha", "beta"},
				[]string{"alpha", "beta"},
			),
			want: 0,
		},
		{
			name: "no content returns zero",
			rows: strRows([]string{"", " "}, []string{}),
			want: 0,
		},
		{
			name: "nil rows returns zero",
			rows: nil,
			want: 0,
		},
		{
			name: "header beyond scan window is ignored",
			rows: strRows(
				[]string{"1", "2"},
				[]string{"3", "4"},
				[]string{"Name", "Total"},
			),
			maxScan: 2,
			want:    0,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := DetectHeaderRow(tt.rows, tt.maxScan); got != tt.want {
				t.Fatalf("DetectHeaderRow() = %d, want %d", got, tt.want)
			}
		})
	}
}

// TestDetectHeaderRow_Deterministic runs detection repeatedly on the same grid.
func TestDetectHeaderRow_Deterministic(t *testing.T) {
	t.Parallel()

	rows := strRows(
		[]string{"x", "y"},
		[]string{"Region", "Total", "Category"},
		[]string{"EU", "10", "a"},
	)
	first := DetectHeaderRow(rows, 0)
	for i := 0; i < 20; i++ {
		if got := DetectHeaderRow(rows, 0); got != first {
			t.Fatalf("run %d: DetectHeaderRow() = %d, want %d", i, got, first)
		}
	}
}

//
// ScoreHeaderRow
//

func TestScoreHeaderRow(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		row    []Cell
		want   float64
		wantOK bool
	}{
		// 2 + 2 + 1.5*2 + (4.5/20)
		{"hint words", Row("Name", "Email"), 7.225, true},
		// 3 + 3 - 0.8*2 + (13/3)/20 - 0.25
		{"numeric data row", Row("Alice", "1,200", "950"), 4.3666667, true},
		// duplicates count once in the unique term: 2 + 1 + 0.2
		{"duplicate cells", Row("abcd", "abcd"), 3.2, true},
		// typed numbers count as numeric: 1 + 1 - 0.8 + 0.2
		{"typed number", Row(42.5), 1.4, true},
		{"empty row", Row("", nil), 0, false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := ScoreHeaderRow(tt.row)
			if ok != tt.wantOK {
				t.Fatalf("ScoreHeaderRow() ok = %v, want %v", ok, tt.wantOK)
			}
			if math.Abs(got-tt.want) > 1e-6 {
				t.Fatalf("ScoreHeaderRow() = %v, want %v", got, tt.want)
			}
		})
	}
}
