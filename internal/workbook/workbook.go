// Package workbook turns uploaded spreadsheet bytes into probe.RawSheet grids.
//
// Supported inputs:
//   - XLSX (and XLSM) workbooks, read with excelize. Cells keep their native
//     kind; date-formatted numeric cells become date cells.
//   - CSV/TSV exports, one sheet named after the file.
//   - HTML exports, one sheet per <table>.
//
// Legacy binary .xls is not readable and reports ErrUnsupportedFormat.
package workbook

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"sheetintake/internal/probe"
)

// Format names an input encoding.
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatCSV  Format = "csv"
	FormatHTML Format = "html"
)

var (
	// ErrUnreadable marks input that claims a supported format but cannot be
	// decoded. It is fatal for the file.
	ErrUnreadable = errors.New("workbook unreadable")

	// ErrUnsupportedFormat marks input in a format no reader handles.
	ErrUnsupportedFormat = errors.New("unsupported workbook format")
)

// ReadError reports a failed read for one file. errors.Is(err, ErrUnreadable)
// holds for every ReadError.
type ReadError struct {
	File   string
	Format Format
	Err    error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("read %s workbook %q: %v", e.Format, e.File, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

func (e *ReadError) Is(target error) bool { return target == ErrUnreadable }

// Options tunes the readers. The zero value is usable.
type Options struct {
	// Comma forces the CSV delimiter. Zero sniffs it from the first line.
	Comma rune

	// LazyQuotes relaxes CSV quote handling for hand-edited exports.
	LazyQuotes bool
}

var zipMagic = []byte("PK\x03\x04")

// oleMagic is the compound-document header of legacy .xls files.
var oleMagic = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}

// DetectFormat picks a reader from the file extension, falling back to the
// leading bytes when the extension is missing or unknown.
func DetectFormat(name string, head []byte) (Format, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx", ".xlsm":
		return FormatXLSX, nil
	case ".csv", ".tsv", ".txt":
		return FormatCSV, nil
	case ".html", ".htm":
		return FormatHTML, nil
	case ".xls":
		return "", fmt.Errorf("%w: legacy .xls (%s)", ErrUnsupportedFormat, name)
	}

	switch {
	case bytes.HasPrefix(head, zipMagic):
		return FormatXLSX, nil
	case bytes.HasPrefix(head, oleMagic):
		return "", fmt.Errorf("%w: legacy .xls (%s)", ErrUnsupportedFormat, name)
	case looksLikeHTML(head):
		return FormatHTML, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, name)
}

func looksLikeHTML(head []byte) bool {
	h := strings.ToLower(strings.TrimSpace(string(head[:min(len(head), 512)])))
	return strings.HasPrefix(h, "<!doctype html") || strings.HasPrefix(h, "<html") || strings.Contains(h, "<table")
}

// ReadFile reads the workbook at path.
func ReadFile(ctx context.Context, path string, opts Options) ([]probe.RawSheet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	return Read(ctx, filepath.Base(path), data, opts)
}

// Read decodes data as the format implied by name and returns its sheets in
// workbook order. Sheets are returned even when empty; the planner drops them.
func Read(ctx context.Context, name string, data []byte, opts Options) ([]probe.RawSheet, error) {
	format, err := DetectFormat(name, data)
	if err != nil {
		return nil, err
	}

	var sheets []probe.RawSheet
	switch format {
	case FormatXLSX:
		sheets, err = readXLSX(ctx, bytes.NewReader(data))
	case FormatCSV:
		sheets, err = readCSV(ctx, bytes.NewReader(data), name, opts)
	case FormatHTML:
		sheets, err = readHTML(ctx, bytes.NewReader(data))
	}
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, &ReadError{File: name, Format: format, Err: err}
	}
	return sheets, nil
}
