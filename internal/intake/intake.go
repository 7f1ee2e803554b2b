// Package intake describes an upload before it is sent to the storage
// service: what kind of file it is, which sub-practice owns it and the
// free-form metadata the user attached.
package intake

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"sheetintake/internal/probe"
)

// FileType is the upload category chosen by the user.
type FileType string

const (
	TypeExcel      FileType = "EXCEL"
	TypePowerPoint FileType = "POWERPOINT"
	TypeReport     FileType = "REPORT"
)

// FileTypes lists the accepted categories in display order.
var FileTypes = []FileType{TypeExcel, TypePowerPoint, TypeReport}

// SubPractices lists the owning groups an upload may be filed under.
var SubPractices = []string{"Automation", "Platforms", "M/A", "Services", "Zones"}

// MaxRecommendedSize is a soft limit; larger uploads only produce a warning.
const MaxRecommendedSize = 100 << 20

var (
	ErrFileType    = errors.New("intake: unknown file type")
	ErrExtension   = errors.New("intake: extension not allowed for file type")
	ErrSubPractice = errors.New("intake: unknown sub-practice")
	ErrEmptyFile   = errors.New("intake: empty file")
)

// allowedExt maps each category to the extensions it accepts. Spreadsheets
// also accept the delimited and HTML exports the workbook reader handles.
var allowedExt = map[FileType][]string{
	TypeExcel:      {".xlsx", ".xlsm", ".xls", ".csv", ".tsv", ".html", ".htm"},
	TypePowerPoint: {".pptx"},
	TypeReport:     {".pdf", ".docx", ".doc"},
}

// ParseFileType accepts a category name case-insensitively.
func ParseFileType(s string) (FileType, error) {
	t := FileType(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := allowedExt[t]; !ok {
		return "", fmt.Errorf("%w: %q", ErrFileType, s)
	}
	return t, nil
}

// AllowedExtensions returns the extensions accepted for t.
func AllowedExtensions(t FileType) []string {
	return append([]string(nil), allowedExt[t]...)
}

// ValidateFile checks that name carries an extension accepted for t.
func ValidateFile(name string, t FileType) error {
	exts, ok := allowedExt[t]
	if !ok {
		return fmt.Errorf("%w: %q", ErrFileType, t)
	}
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range exts {
		if ext == e {
			return nil
		}
	}
	return fmt.Errorf("%w: %s is not one of %s for %s", ErrExtension, name, strings.Join(exts, ", "), t)
}

// ValidateSubPractice checks s against SubPractices (exact match).
func ValidateSubPractice(s string) error {
	for _, sp := range SubPractices {
		if s == sp {
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrSubPractice, s)
}

// SizeWarning returns a human warning for uploads above MaxRecommendedSize,
// or "" when the size is fine.
func SizeWarning(n int64) string {
	if n <= MaxRecommendedSize {
		return ""
	}
	mb := float64(n) / (1 << 20)
	return fmt.Sprintf("File is %.1f MB. Consider < %d MB for quicker preview.", mb, MaxRecommendedSize>>20)
}

// DefaultTitle is the file's base name without extension.
func DefaultTitle(fileName string) string {
	return probe.StripExt(fileName)
}

// ParseTags splits a comma-separated tag list, trimming entries and dropping
// blanks and repeats. Order of first appearance is kept.
func ParseTags(s string) []string {
	return normalizeTags(strings.Split(s, ","))
}

func normalizeTags(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, t := range in {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// Upload is one file plus the metadata sent alongside it.
type Upload struct {
	FileName    string
	Data        []byte
	Type        FileType
	SubPractice string
	Title       string
	Description string
	Tags        []string
}

// Validate checks the upload and normalizes it in place: a blank title
// falls back to DefaultTitle, text fields are trimmed and tags are cleaned.
func (u *Upload) Validate() error {
	if len(u.Data) == 0 {
		return fmt.Errorf("%w: %s", ErrEmptyFile, u.FileName)
	}
	if err := ValidateFile(u.FileName, u.Type); err != nil {
		return err
	}
	if err := ValidateSubPractice(u.SubPractice); err != nil {
		return err
	}
	u.Title = strings.TrimSpace(u.Title)
	if u.Title == "" {
		u.Title = DefaultTitle(u.FileName)
	}
	u.Description = strings.TrimSpace(u.Description)
	u.Tags = normalizeTags(u.Tags)
	return nil
}
