package workbook

import (
	"context"
	"errors"
	"io"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"sheetintake/internal/probe"
)

var errNoTables = errors.New("no <table> elements")

// maxColspan caps colspan expansion for hostile markup.
const maxColspan = 256

// readHTML returns one sheet per <table>, in document order. A table's
// <caption> names the sheet; otherwise "Table n" is used. Nested tables are
// read as their own sheets and skipped inside the outer one.
//
// Cells with colspan are padded with empty cells so later columns stay
// aligned. Rowspan is not expanded.
func readHTML(ctx context.Context, r io.Reader) ([]probe.RawSheet, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, err
	}

	tables := doc.Find("table")
	if tables.Length() == 0 {
		return nil, errNoTables
	}

	sheets := make([]probe.RawSheet, 0, tables.Length())
	var ctxErr error
	tables.EachWithBreak(func(i int, tbl *goquery.Selection) bool {
		if ctxErr = ctx.Err(); ctxErr != nil {
			return false
		}
		name := collapseSpace(tbl.ChildrenFiltered("caption").First().Text())
		if name == "" {
			name = "Table " + strconv.Itoa(i+1)
		}
		sheets = append(sheets, probe.RawSheet{Name: name, Rows: tableRows(tbl)})
		return true
	})
	if ctxErr != nil {
		return nil, ctxErr
	}
	return sheets, nil
}

func tableRows(tbl *goquery.Selection) [][]probe.Cell {
	var rows [][]probe.Cell
	tbl.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		// Skip rows that belong to a nested table.
		if !tr.Closest("table").IsSelection(tbl) {
			return
		}
		var row []probe.Cell
		tr.ChildrenFiltered("th, td").Each(func(_ int, td *goquery.Selection) {
			if v := collapseSpace(td.Text()); v != "" {
				row = append(row, probe.StringCell(v))
			} else {
				row = append(row, probe.EmptyCell())
			}
			for n := colspan(td); n > 1; n-- {
				row = append(row, probe.EmptyCell())
			}
		})
		rows = append(rows, row)
	})
	return rows
}

func colspan(td *goquery.Selection) int {
	v, ok := td.Attr("colspan")
	if !ok {
		return 1
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || n < 1 {
		return 1
	}
	return min(n, maxColspan)
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
