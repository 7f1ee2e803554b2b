// TableSpec lives here so the loader and every backend can share it without
// import cycles.
package storage

import (
	"fmt"
	"strings"

	"sheetintake/internal/probe"
)

// TableSpec describes a table to create.
type TableSpec struct {
	Name    string       `json:"name"`
	Columns []ColumnSpec `json:"columns"`
}

// ColumnSpec is one column. Type is the declared type; backends translate it.
type ColumnSpec struct {
	Name     string             `json:"name"`
	Type     probe.DeclaredType `json:"type"`
	Nullable bool               `json:"nullable"`
}

// ColumnNames returns the column names in order.
func (t TableSpec) ColumnNames() []string {
	out := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = c.Name
	}
	return out
}

// Validate checks that t has a name and non-empty, unique column names.
func (t TableSpec) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return fmt.Errorf("storage: table name is empty")
	}
	if len(t.Columns) == 0 {
		return fmt.Errorf("storage: table %s has no columns", t.Name)
	}
	seen := make(map[string]bool, len(t.Columns))
	for i, c := range t.Columns {
		key := strings.ToLower(strings.TrimSpace(c.Name))
		if key == "" {
			return fmt.Errorf("storage: table %s column %d has no name", t.Name, i+1)
		}
		if seen[key] {
			return fmt.Errorf("storage: table %s has duplicate column %q", t.Name, c.Name)
		}
		seen[key] = true
	}
	return nil
}

// TableSpecFromPayload derives the table for an ingestion payload.
func TableSpecFromPayload(p probe.IngestPayload) TableSpec {
	cols := make([]ColumnSpec, len(p.Columns))
	for i, c := range p.Columns {
		typ := c.Type
		if typ == "" {
			typ = probe.TypeText
		}
		cols[i] = ColumnSpec{Name: c.Name, Type: typ, Nullable: c.Nullable}
	}
	return TableSpec{Name: p.TableName, Columns: cols}
}

// TypeMap maps declared types to a backend's SQL column types.
type TypeMap map[probe.DeclaredType]string

// SQLType returns the SQL type for t, falling back to the text mapping.
func (m TypeMap) SQLType(t probe.DeclaredType) string {
	if s, ok := m[t]; ok {
		return s
	}
	return m[probe.TypeText]
}
