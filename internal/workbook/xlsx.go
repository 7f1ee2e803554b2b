package workbook

import (
	"context"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"sheetintake/internal/probe"
)

// readXLSX loads every worksheet. Raw cell values are read so numbers keep
// full precision; the cell type and number format decide the probe kind.
func readXLSX(ctx context.Context, r io.Reader) ([]probe.RawSheet, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	x := &xlsxReader{f: f, dateStyles: make(map[int]bool)}
	names := f.GetSheetList()
	sheets := make([]probe.RawSheet, 0, len(names))
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rows, err := x.sheetRows(name)
		if err != nil {
			return nil, err
		}
		sheets = append(sheets, probe.RawSheet{Name: name, Rows: rows})
	}
	return sheets, nil
}

type xlsxReader struct {
	f *excelize.File

	// dateStyles caches isDateStyle per style index.
	dateStyles map[int]bool
}

func (x *xlsxReader) sheetRows(sheet string) ([][]probe.Cell, error) {
	raw, err := x.f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, err
	}
	out := make([][]probe.Cell, len(raw))
	for ri, row := range raw {
		cells := make([]probe.Cell, len(row))
		for ci, v := range row {
			if strings.TrimSpace(v) == "" {
				continue
			}
			ref, err := excelize.CoordinatesToCellName(ci+1, ri+1)
			if err != nil {
				return nil, err
			}
			cells[ci] = x.cell(sheet, ref, v)
		}
		out[ri] = cells
	}
	return out, nil
}

// cell converts one raw value. Lookup failures degrade to a string cell.
func (x *xlsxReader) cell(sheet, ref, raw string) probe.Cell {
	typ, err := x.f.GetCellType(sheet, ref)
	if err != nil {
		return probe.StringCell(raw)
	}

	switch typ {
	case excelize.CellTypeBool:
		return probe.BoolCell(raw == "1" || strings.EqualFold(raw, "true"))
	case excelize.CellTypeDate:
		if t, ok := parseISODate(raw); ok {
			return probe.DateCell(t)
		}
		return probe.StringCell(raw)
	case excelize.CellTypeSharedString, excelize.CellTypeInlineString, excelize.CellTypeError, excelize.CellTypeFormula:
		return probe.StringCell(raw)
	}

	// Unset and Number: a numeric literal, possibly date-formatted.
	n, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return probe.StringCell(raw)
	}
	if probe.IsPlausibleSerial(n) && x.isDateFormatted(sheet, ref) {
		return probe.DateCell(probe.SerialToTime(n))
	}
	return probe.NumberCell(n)
}

func (x *xlsxReader) isDateFormatted(sheet, ref string) bool {
	idx, err := x.f.GetCellStyle(sheet, ref)
	if err != nil || idx == 0 {
		return false
	}
	if v, ok := x.dateStyles[idx]; ok {
		return v
	}
	style, err := x.f.GetStyle(idx)
	v := err == nil && style != nil && isDateStyle(style)
	x.dateStyles[idx] = v
	return v
}

// isDateStyle reports whether a style renders numbers as dates: one of the
// built-in date/time formats, or a custom format with day or year tokens.
func isDateStyle(s *excelize.Style) bool {
	if s.CustomNumFmt != nil {
		return isDateFormatCode(*s.CustomNumFmt)
	}
	return isBuiltinDateFormat(s.NumFmt)
}

func isBuiltinDateFormat(id int) bool {
	switch {
	case id >= 14 && id <= 22,
		id >= 27 && id <= 36,
		id >= 45 && id <= 47,
		id >= 50 && id <= 58:
		return true
	}
	return false
}

func isDateFormatCode(code string) bool {
	var b strings.Builder
	inQuote, inBracket := false, false
	for _, r := range code {
		switch {
		case r == '"':
			inQuote = !inQuote
		case inQuote:
		case r == '[':
			inBracket = true
		case r == ']':
			inBracket = false
		case inBracket:
		default:
			b.WriteRune(r)
		}
	}
	c := strings.ToLower(b.String())
	return strings.ContainsAny(c, "dy")
}

var isoLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"}

func parseISODate(s string) (time.Time, bool) {
	for _, l := range isoLayouts {
		if t, err := time.Parse(l, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
