package workbook

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"sheetintake/internal/probe"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

var sniffDelims = []rune{',', ';', '\t', '|'}

// readCSV reads a delimited export as a single sheet named after the file.
// Every non-blank field becomes a string cell; typing is left to the profiler.
//
// Edge cases:
//   - A leading UTF-8 BOM is dropped.
//   - Ragged rows are kept as-is; the planner aligns them to the header width.
//   - A malformed record fails the file with its line number.
func readCSV(ctx context.Context, r io.Reader, name string, opts Options) ([]probe.RawSheet, error) {
	br := bufio.NewReader(r)
	if head, _ := br.Peek(len(utf8BOM)); bytes.Equal(head, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}

	comma := opts.Comma
	if comma == 0 {
		if strings.EqualFold(filepath.Ext(name), ".tsv") {
			comma = '\t'
		} else {
			comma = sniffDelimiter(br)
		}
	}

	cr := csv.NewReader(br)
	cr.Comma = comma
	cr.LazyQuotes = opts.LazyQuotes
	cr.FieldsPerRecord = -1

	var rows [][]probe.Cell
	for n := 1; ; n++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("csv record %d: %w", n, err)
		}

		cells := make([]probe.Cell, len(rec))
		for i, v := range rec {
			if strings.TrimSpace(v) != "" {
				cells[i] = probe.StringCell(v)
			}
		}
		rows = append(rows, cells)
	}

	sheet := probe.StripExt(name)
	if sheet == "" {
		sheet = "Sheet1"
	}
	return []probe.RawSheet{{Name: sheet, Rows: rows}}, nil
}

// sniffDelimiter picks the candidate delimiter that occurs most often outside
// quotes on the first line. Ties and misses fall back to comma.
func sniffDelimiter(br *bufio.Reader) rune {
	head, _ := br.Peek(4096)
	line := string(head)
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}

	counts := make(map[rune]int, len(sniffDelims))
	inQuote := false
	for _, r := range line {
		if r == '"' {
			inQuote = !inQuote
			continue
		}
		if !inQuote {
			counts[r]++
		}
	}

	best, bestN := ',', counts[',']
	for _, d := range sniffDelims[1:] {
		if counts[d] > bestN {
			best, bestN = d, counts[d]
		}
	}
	return best
}
