// Package probe implements spreadsheet schema inference: header row detection,
// identifier sanitization, column profiling, type inference, import planning and
// schema quality scoring.
//
// Everything in this package is pure and in-memory. Callers hand in RawSheet
// grids (see internal/workbook for producing them from bytes) and get back
// SheetImportPlan values that can be reviewed, edited and finally turned into
// ingestion payloads for the storage service.
//
// Design constraints:
//   - Bounded work: header scan, profiling sample and preview are capped
//     regardless of sheet size.
//   - Inference never fails. Ambiguity is resolved with deterministic heuristics
//     and surfaced through the quality score, never through errors.
//   - Determinism: the same RawSheet always yields the same plan.
package probe

import "time"

// Default bounds used by BuildPlan when PlanOptions leaves them unset.
const (
	DefaultSampleLimit  = 100
	DefaultHeaderScan   = 40
	DefaultPreviewRows  = 12
	DefaultFallbackScan = 10
)

// DeclaredType is the storage-facing type of a column.
type DeclaredType string

const (
	TypeText    DeclaredType = "text"
	TypeNumeric DeclaredType = "numeric"
	TypeDate    DeclaredType = "date"
	TypeBool    DeclaredType = "bool"
)

// DeclaredTypes lists the supported declared types in display order.
var DeclaredTypes = []DeclaredType{TypeText, TypeNumeric, TypeDate, TypeBool}

// ParseDeclaredType maps a user-supplied type name to a DeclaredType.
// Unknown names report ok=false.
func ParseDeclaredType(s string) (DeclaredType, bool) {
	switch DeclaredType(s) {
	case TypeText, TypeNumeric, TypeDate, TypeBool:
		return DeclaredType(s), true
	default:
		return "", false
	}
}

// RawSheet is one sheet's raw grid, row-major and 0-indexed.
// Rows may be ragged; missing trailing cells are treated as empty.
type RawSheet struct {
	Name string
	Rows [][]Cell
}

// HeaderCandidate is a row evaluated as a possible header.
type HeaderCandidate struct {
	Index int
	Score float64
}

// ColumnProfile holds statistics for one column over a bounded sample.
//
// Invariants:
//   - NumericCount + DateCount + BoolCount + TextCount == SampleSize - EmptyCount
//   - UniqueRatio == UniqueCount / max(1, SampleSize-EmptyCount)
type ColumnProfile struct {
	SampleSize  int     `json:"sampleSize"`
	EmptyCount  int     `json:"emptyCount"`
	UniqueCount int     `json:"uniqueCount"`
	UniqueRatio float64 `json:"uniqueRatio"`

	NumericCount int `json:"numericCount"`
	DateCount    int `json:"dateCount"`
	BoolCount    int `json:"boolCount"`
	TextCount    int `json:"textCount"`

	// Text cells only.
	MinLength int `json:"minLength"`
	MaxLength int `json:"maxLength"`

	// Numeric cells only; nil when the column has no numeric cell.
	MinValue *float64 `json:"minValue,omitempty"`
	MaxValue *float64 `json:"maxValue,omitempty"`

	// Date cells only; nil when the column has no date cell.
	MinDate *time.Time `json:"minDate,omitempty"`
	MaxDate *time.Time `json:"maxDate,omitempty"`

	TypeGuess DeclaredType `json:"typeGuess"`
}

// EmptyRatio returns EmptyCount / max(1, SampleSize).
func (p ColumnProfile) EmptyRatio() float64 {
	return float64(p.EmptyCount) / float64(max(1, p.SampleSize))
}

// ColumnDefinition is the committed description of one column.
type ColumnDefinition struct {
	// OriginalHeader is the header text as found in the sheet (trimmed, possibly empty).
	OriginalHeader string `json:"originalHeader"`
	// DisplayHeader is OriginalHeader, or "Column <n>" when the sheet had none.
	DisplayHeader string       `json:"displayHeader"`
	SanitizedName string       `json:"sanitizedName"`
	DeclaredType  DeclaredType `json:"declaredType"`
	Nullable      bool         `json:"nullable"`

	Profile ColumnProfile `json:"profile"`
}

// SheetImportPlan is the reviewable import plan for one sheet.
type SheetImportPlan struct {
	SheetName      string             `json:"sheetName"`
	HeaderRowIndex int                `json:"headerRowIndex"`
	Columns        []ColumnDefinition `json:"columns"`
	SampleRows     [][]string         `json:"sampleRows"`
	Selected       bool               `json:"selected"`
	QualityScore   int                `json:"qualityScore"`
	QualityLabel   string             `json:"qualityLabel"`

	// DataRows are the rows below the header, width-aligned to Columns.
	// They feed local loading only and are never part of an ingestion payload.
	DataRows [][]Cell `json:"-"`

	// bases are the per-column names before the uniqueness pass.
	bases []string
}
