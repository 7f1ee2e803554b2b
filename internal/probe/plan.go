package probe

import (
	"errors"
	"fmt"
	"strconv"
)

// Errors returned by plan edits.
var (
	ErrColumnIndex = errors.New("probe: column index out of range")
	ErrUnknownType = errors.New("probe: unknown declared type")
)

// PlanOptions bounds the work BuildPlan does on a sheet. Zero values use
// the package defaults.
type PlanOptions struct {
	SampleLimit  int
	HeaderScan   int
	PreviewRows  int
	FallbackScan int
	Inferencer   Inferencer
}

func (o PlanOptions) withDefaults() PlanOptions {
	if o.SampleLimit <= 0 {
		o.SampleLimit = DefaultSampleLimit
	}
	if o.HeaderScan <= 0 {
		o.HeaderScan = DefaultHeaderScan
	}
	if o.PreviewRows <= 0 {
		o.PreviewRows = DefaultPreviewRows
	}
	if o.FallbackScan <= 0 {
		o.FallbackScan = DefaultFallbackScan
	}
	if o.Inferencer == nil {
		o.Inferencer = IdentityInferencer
	}
	return o
}

// BuildPlan derives the import plan for one sheet.
//
// Steps: detect the header row, sanitize and uniquify its cells, profile each
// column over up to SampleLimit data rows, infer declared types, render a
// preview of up to PreviewRows rows and score the result. Selected defaults
// to true.
//
// Edge cases:
//   - A sheet with no rows, or with no non-empty cell anywhere, returns nil.
//   - If the detected header row has no text, the next FallbackScan rows are
//     searched for the first row with content, which then becomes the header.
//   - If that also fails (content only appears further down) the plan degrades
//     to default names: "Column <n>" for display, "col_<n>" as identifier.
//   - Header cells without text display as "Column <n>" and sanitize to col_<n>.
//     This includes columns where data rows are wider than the header row.
func BuildPlan(sheet RawSheet, opts PlanOptions) *SheetImportPlan {
	rows := sheet.Rows
	if len(rows) == 0 || !anyContent(rows) {
		return nil
	}
	opts = opts.withDefaults()

	headerIdx, found := resolveHeaderRow(rows, DetectHeaderRow(rows, opts.HeaderScan), opts.FallbackScan)

	var (
		width     int
		originals []string
		dataStart int
	)
	if found {
		header := rows[headerIdx]
		dataStart = headerIdx + 1
		// Data may run past the last header cell; those columns get default names.
		width = max(len(header), maxWidth(rows[dataStart:]))
		originals = make([]string, width)
		for i, c := range header {
			originals[i] = c.Text()
		}
	} else {
		width = maxWidth(rows)
		originals = make([]string, width)
		dataStart = headerIdx
	}

	dataRows := make([][]Cell, 0, max(0, len(rows)-dataStart))
	for _, r := range rows[dataStart:] {
		aligned := make([]Cell, width)
		copy(aligned, r)
		dataRows = append(dataRows, aligned)
	}

	bases := make([]string, width)
	for i, h := range originals {
		bases[i] = Sanitize(h, i)
	}
	names := Uniquify(bases)
	sampled := dataRows[:min(len(dataRows), opts.SampleLimit)]

	cols := make([]ColumnDefinition, width)
	column := make([]Cell, len(sampled))
	for i := 0; i < width; i++ {
		for r, row := range sampled {
			column[r] = row[i]
		}
		prof := Profile(column, opts.SampleLimit)

		display := originals[i]
		if display == "" {
			display = "Column " + strconv.Itoa(i+1)
		}
		cols[i] = ColumnDefinition{
			OriginalHeader: originals[i],
			DisplayHeader:  display,
			SanitizedName:  names[i],
			DeclaredType:   opts.Inferencer.Infer(prof),
			Nullable:       true,
			Profile:        prof,
		}
	}

	plan := &SheetImportPlan{
		SheetName:      sheet.Name,
		HeaderRowIndex: headerIdx,
		Columns:        cols,
		SampleRows:     previewRows(dataRows, opts.PreviewRows),
		Selected:       true,
		DataRows:       dataRows,
		bases:          bases,
	}
	plan.Rescore()
	return plan
}

// BuildPlans builds a plan per sheet and drops sheets that yield none.
// Sheet order is preserved.
func BuildPlans(sheets []RawSheet, opts PlanOptions) []*SheetImportPlan {
	out := make([]*SheetImportPlan, 0, len(sheets))
	for _, s := range sheets {
		if p := BuildPlan(s, opts); p != nil {
			out = append(out, p)
		}
	}
	return out
}

// resolveHeaderRow confirms idx has content or scans up to fallback rows
// after it for the first row that does.
func resolveHeaderRow(rows [][]Cell, idx, fallback int) (int, bool) {
	if idx < len(rows) && rowHasContent(rows[idx]) {
		return idx, true
	}
	for r := idx + 1; r < len(rows) && r <= idx+fallback; r++ {
		if rowHasContent(rows[r]) {
			return r, true
		}
	}
	return idx, false
}

func rowHasContent(row []Cell) bool {
	for _, c := range row {
		if !c.IsEmpty() {
			return true
		}
	}
	return false
}

func anyContent(rows [][]Cell) bool {
	for _, r := range rows {
		if rowHasContent(r) {
			return true
		}
	}
	return false
}

func maxWidth(rows [][]Cell) int {
	w := 0
	for _, r := range rows {
		w = max(w, len(r))
	}
	return w
}

func previewRows(rows [][]Cell, n int) [][]string {
	n = min(n, len(rows))
	out := make([][]string, n)
	for i := 0; i < n; i++ {
		out[i] = make([]string, len(rows[i]))
		for j, c := range rows[i] {
			out[i][j] = c.Display()
		}
	}
	return out
}

// ----- edits -----

// Names returns the current sanitized names in column order.
func (p *SheetImportPlan) Names() []string {
	out := make([]string, len(p.Columns))
	for i, c := range p.Columns {
		out[i] = c.SanitizedName
	}
	return out
}

// ensureBases lazily seeds the pre-uniquify names for plans that were not
// produced by BuildPlan (decoded or hand-built).
func (p *SheetImportPlan) ensureBases() {
	if len(p.bases) != len(p.Columns) {
		p.bases = p.Names()
	}
}

func (p *SheetImportPlan) checkIndex(i int) error {
	if i < 0 || i >= len(p.Columns) {
		return fmt.Errorf("%w: %d (sheet %q has %d columns)", ErrColumnIndex, i, p.SheetName, len(p.Columns))
	}
	return nil
}

func (p *SheetImportPlan) applyBases() {
	names := Uniquify(p.bases)
	for i := range p.Columns {
		p.Columns[i].SanitizedName = names[i]
	}
}

// RenameColumn sanitizes name and assigns it to column i, then re-runs the
// uniqueness pass over the whole sheet. A rename can push a later column to a
// suffixed name, or release a name another column was suffixed to avoid.
func (p *SheetImportPlan) RenameColumn(i int, name string) error {
	if err := p.checkIndex(i); err != nil {
		return err
	}
	p.ensureBases()
	p.bases[i] = Sanitize(name, i)
	p.applyBases()
	p.Rescore()
	return nil
}

// AutoFix re-sanitizes every current name and re-runs the uniqueness pass.
func (p *SheetImportPlan) AutoFix() {
	p.bases = make([]string, len(p.Columns))
	for i, c := range p.Columns {
		p.bases[i] = Sanitize(c.SanitizedName, i)
	}
	p.applyBases()
	p.Rescore()
}

// SetColumnType overrides the declared type of column i.
func (p *SheetImportPlan) SetColumnType(i int, t DeclaredType) error {
	if err := p.checkIndex(i); err != nil {
		return err
	}
	if _, ok := ParseDeclaredType(string(t)); !ok {
		return fmt.Errorf("%w: %q", ErrUnknownType, t)
	}
	p.Columns[i].DeclaredType = t
	return nil
}

// Rescore recomputes QualityScore and QualityLabel.
func (p *SheetImportPlan) Rescore() {
	q := Score(p)
	p.QualityScore = q.Score
	p.QualityLabel = q.Label
}
