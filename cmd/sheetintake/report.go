package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"sheetintake/internal/probe"
	"sheetintake/internal/session"
)

// edit is one parsed --rename or --set-type argument: "Sheet:col=value".
type edit struct {
	sheet string
	col   string
	value string
}

// parseEdit splits "Sheet:col=value". The sheet/column separator is the last
// ':' before the first '=', so sheet names may themselves contain colons.
func parseEdit(s string) (edit, error) {
	eq := strings.Index(s, "=")
	if eq < 0 {
		return edit{}, fmt.Errorf("%q: want Sheet:col=value", s)
	}
	target, value := s[:eq], strings.TrimSpace(s[eq+1:])
	colon := strings.LastIndex(target, ":")
	if colon < 0 {
		return edit{}, fmt.Errorf("%q: want Sheet:col=value", s)
	}
	e := edit{
		sheet: target[:colon],
		col:   strings.TrimSpace(target[colon+1:]),
		value: value,
	}
	if e.sheet == "" || e.col == "" {
		return edit{}, fmt.Errorf("%q: sheet and column are required", s)
	}
	return e, nil
}

// resolveColumn maps e.col (1-based index or current sanitized name) to a
// 0-based column index in e.sheet.
func resolveColumn(s *session.WorkbookImportSession, e edit) (int, error) {
	p := s.Plan(e.sheet)
	if p == nil {
		return 0, fmt.Errorf("%w: %q", session.ErrSheetNotFound, e.sheet)
	}
	if n, err := strconv.Atoi(e.col); err == nil {
		if n < 1 || n > len(p.Columns) {
			return 0, fmt.Errorf("%w: %d (sheet %q has %d columns)", probe.ErrColumnIndex, n, e.sheet, len(p.Columns))
		}
		return n - 1, nil
	}
	for i, c := range p.Columns {
		if c.SanitizedName == e.col {
			return i, nil
		}
	}
	return 0, fmt.Errorf("sheet %q has no column %q", e.sheet, e.col)
}

// writeReport prints one block per sheet for terminal review.
func writeReport(w io.Writer, s *session.WorkbookImportSession) error {
	for i, p := range s.Plans {
		if i > 0 {
			fmt.Fprintln(w)
		}
		mark := " "
		if p.Selected {
			mark = "x"
		}
		fmt.Fprintf(w, "[%s] %s  header row %d  quality %d (%s)\n",
			mark, p.SheetName, p.HeaderRowIndex+1, p.QualityScore, p.QualityLabel)

		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "#\tHEADER\tNAME\tTYPE\tUNIQUE\tEMPTY\tISSUES")
		dups := make(map[string]bool)
		for _, d := range probe.DuplicateNames(p) {
			dups[d] = true
		}
		for j, c := range p.Columns {
			issues := probe.ColumnIssues(c.SanitizedName)
			if dups[strings.ToLower(c.SanitizedName)] {
				issues = append(issues, probe.IssueDuplicated)
			}
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%.0f%%\t%.0f%%\t%s\n",
				j+1, c.DisplayHeader, c.SanitizedName, c.DeclaredType,
				c.Profile.UniqueRatio*100, c.Profile.EmptyRatio()*100,
				strings.Join(issues, "; "))
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}
	return nil
}
