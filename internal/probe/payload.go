package probe

import (
	"path/filepath"
	"strings"
)

// IngestNotes is the fixed provenance note attached to every payload.
const IngestNotes = "Initial schema (headers auto-detected, sanitized, conflicts resolved)."

// IngestColumn is one column of an ingestion payload.
type IngestColumn struct {
	Name         string       `json:"name"`
	Type         DeclaredType `json:"type"`
	Nullable     bool         `json:"nullable"`
	OriginalName string       `json:"originalName"`
}

// IngestPayload is what the storage service receives for one selected sheet.
type IngestPayload struct {
	SheetName      string         `json:"sheetName"`
	HeaderRowIndex int            `json:"headerRowIndex"`
	TableName      string         `json:"tableName"`
	Columns        []IngestColumn `json:"columns"`
	Notes          string         `json:"notes"`
}

// BuildPayloads produces one payload per selected plan.
//
// Table naming:
//   - one selected sheet: TableName(title), or the sheet name when title is blank
//   - several sheets:     TableName(title + "__" + sheet), where a blank title
//     falls back to fileName without its extension
//
// Table names are made unique across the batch. Column names pass through a
// final sanitize and uniqueness pass so forced duplicates never reach storage.
func BuildPayloads(title, fileName string, plans []*SheetImportPlan) []IngestPayload {
	title = strings.TrimSpace(title)

	selected := make([]*SheetImportPlan, 0, len(plans))
	for _, p := range plans {
		if p != nil && p.Selected {
			selected = append(selected, p)
		}
	}

	tables := make([]string, 0, len(selected))
	for _, p := range selected {
		var table string
		if len(selected) == 1 {
			base := title
			if base == "" {
				base = p.SheetName
			}
			table = TableName(base)
		} else {
			base := title
			if base == "" {
				base = StripExt(fileName)
			}
			table = TableName(base + "__" + p.SheetName)
		}
		tables = append(tables, table)
	}

	// Sheet names that sanitize to nothing would otherwise share a table.
	tables = Uniquify(tables)
	out := make([]IngestPayload, len(selected))
	for i, p := range selected {
		out[i] = BuildPayload(p, tables[i])
	}
	return out
}

// BuildPayload renders a single plan as a payload targeting table. Column
// names are sanitized and uniquified again, so whatever edits the plan went
// through, only valid and distinct identifiers reach storage.
func BuildPayload(p *SheetImportPlan, table string) IngestPayload {
	names := make([]string, len(p.Columns))
	for i, n := range p.Names() {
		names[i] = Sanitize(n, i)
	}
	names = Uniquify(names)
	cols := make([]IngestColumn, len(p.Columns))
	for i, c := range p.Columns {
		typ := c.DeclaredType
		if typ == "" {
			typ = TypeText
		}
		orig := c.DisplayHeader
		if orig == "" {
			orig = names[i]
		}
		cols[i] = IngestColumn{
			Name:         names[i],
			Type:         typ,
			Nullable:     true,
			OriginalName: orig,
		}
	}
	return IngestPayload{
		SheetName:      p.SheetName,
		HeaderRowIndex: p.HeaderRowIndex,
		TableName:      table,
		Columns:        cols,
		Notes:          IngestNotes,
	}
}

// StripExt returns the base name of path without its final extension.
func StripExt(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
