package probe

import (
	"encoding/json"
	"strings"
	"testing"
)

//
// BuildPayloads
//

// TestBuildPayloads_TableNaming covers single-sheet and multi-sheet naming,
// including the blank-title fallbacks.
func TestBuildPayloads_TableNaming(t *testing.T) {
	t.Parallel()

	sheet := func(name string) *SheetImportPlan {
		p := namedPlan("id")
		p.SheetName = name
		return p
	}

	tests := []struct {
		name     string
		title    string
		fileName string
		plans    []*SheetImportPlan
		want     []string
	}{
		{"single uses title", "Sales 2024", "x.xlsx", []*SheetImportPlan{sheet("Sheet1")}, []string{"sales_2024"}},
		{"single blank title uses sheet", " ", "x.xlsx", []*SheetImportPlan{sheet("Sheet 1")}, []string{"sheet_1"}},
		{"multi joins title and sheet", "Report", "x.xlsx", []*SheetImportPlan{sheet("Q1"), sheet("Q2")}, []string{"report__q1", "report__q2"}},
		{"multi blank title uses file name", "", "2024 data.xlsx", []*SheetImportPlan{sheet("Q1"), sheet("Q2")}, []string{"t_2024_data__q1", "t_2024_data__q2"}},
		{"digit-led title", "2024", "x.xlsx", []*SheetImportPlan{sheet("S")}, []string{"t_2024"}},
		{"reserved title", "Order", "x.xlsx", []*SheetImportPlan{sheet("S")}, []string{"order_col"}},
		{"non-ascii sheets stay distinct", "Plan", "x.xlsx", []*SheetImportPlan{sheet("売上"), sheet("費用")}, []string{"plan__", "plan___2"}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := BuildPayloads(tt.title, tt.fileName, tt.plans)
			if len(got) != len(tt.want) {
				t.Fatalf("len(payloads) = %d, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if got[i].TableName != tt.want[i] {
					t.Fatalf("payload %d table = %q, want %q", i, got[i].TableName, tt.want[i])
				}
			}
		})
	}
}

// TestBuildPayloads_OnlySelected drops unselected plans; a lone remaining
// sheet is named as a single-sheet submission.
func TestBuildPayloads_OnlySelected(t *testing.T) {
	t.Parallel()

	a, b := namedPlan("id"), namedPlan("id")
	a.SheetName, b.SheetName = "A", "B"
	b.Selected = false

	got := BuildPayloads("Title", "f.xlsx", []*SheetImportPlan{a, b, nil})
	if len(got) != 1 || got[0].SheetName != "A" || got[0].TableName != "title" {
		t.Fatalf("BuildPayloads() = %+v, want one payload for A named title", got)
	}
}

// TestBuildPayload_Columns checks the column projection and the JSON shape
// the storage service expects.
func TestBuildPayload_Columns(t *testing.T) {
	t.Parallel()

	p := BuildPlan(RawSheet{Name: "Orders", Rows: strRows(
		[]string{"Name", "", "Amount"},
		[]string{"a", "b", "1"},
	)}, PlanOptions{})
	_ = p.SetColumnNameRaw(2, "name")

	got := BuildPayload(p, "orders")
	if got.Notes != IngestNotes || got.HeaderRowIndex != 0 || got.SheetName != "Orders" {
		t.Fatalf("payload header = %+v", got)
	}
	want := []IngestColumn{
		{Name: "name", Type: TypeText, Nullable: true, OriginalName: "Name"},
		{Name: "col_2", Type: TypeText, Nullable: true, OriginalName: "Column 2"},
		{Name: "name_2", Type: TypeNumeric, Nullable: true, OriginalName: "Amount"},
	}
	for i := range want {
		if got.Columns[i] != want[i] {
			t.Fatalf("column %d = %+v, want %+v", i, got.Columns[i], want[i])
		}
	}

	raw, err := json.Marshal(got)
	if err != nil {
		t.Fatalf("json.Marshal() error = %v", err)
	}
	for _, key := range []string{`"sheetName"`, `"headerRowIndex"`, `"tableName"`, `"originalName"`, `"nullable":true`, `"notes"`} {
		if !strings.Contains(string(raw), key) {
			t.Fatalf("payload JSON %s missing %s", raw, key)
		}
	}
}

// TestBuildPayload_RepairsRawNames re-sanitizes names that were set without
// sanitization, so reserved or empty names never reach storage.
func TestBuildPayload_RepairsRawNames(t *testing.T) {
	t.Parallel()

	p := namedPlan("id", "id", "total")
	_ = p.SetColumnNameRaw(0, "select")
	_ = p.SetColumnNameRaw(1, "")
	_ = p.SetColumnNameRaw(2, "Select")

	got := BuildPayload(p, "t")
	want := []string{"select_col", "col_2", "select_col_2"}
	for i, w := range want {
		if got.Columns[i].Name != w {
			t.Fatalf("column %d name = %q, want %q", i, got.Columns[i].Name, w)
		}
	}
}

func TestStripExt(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"report.xlsx":        "report",
		"/tmp/a.b.csv":       "a.b",
		"noext":              "noext",
		"dir/Quarterly.XLSX": "Quarterly",
	}
	for in, want := range tests {
		if got := StripExt(in); got != want {
			t.Fatalf("StripExt(%q) = %q, want %q", in, got, want)
		}
	}
}
