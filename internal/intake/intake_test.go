package intake

import (
	"errors"
	"reflect"
	"testing"
)

//
// ValidateFile
//

func TestValidateFile(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		file    string
		typ     FileType
		wantErr error
	}{
		{"xlsx", "Budget.XLSX", TypeExcel, nil},
		{"csv export", "budget.csv", TypeExcel, nil},
		{"pptx as excel", "deck.pptx", TypeExcel, ErrExtension},
		{"pptx", "deck.pptx", TypePowerPoint, nil},
		{"ppt legacy", "deck.ppt", TypePowerPoint, ErrExtension},
		{"report pdf", "q3.pdf", TypeReport, nil},
		{"report doc", "q3.doc", TypeReport, nil},
		{"no extension", "README", TypeReport, ErrExtension},
		{"unknown type", "a.xlsx", FileType("ZIP"), ErrFileType},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if err := ValidateFile(tt.file, tt.typ); !errors.Is(err, tt.wantErr) {
				t.Fatalf("ValidateFile(%q, %s) = %v, want %v", tt.file, tt.typ, err, tt.wantErr)
			}
		})
	}
}

func TestParseFileType(t *testing.T) {
	t.Parallel()

	if got, err := ParseFileType(" powerpoint "); err != nil || got != TypePowerPoint {
		t.Fatalf("ParseFileType() = %q, %v", got, err)
	}
	if _, err := ParseFileType("video"); !errors.Is(err, ErrFileType) {
		t.Fatalf("ParseFileType(video) err = %v, want ErrFileType", err)
	}
}

func TestValidateSubPractice(t *testing.T) {
	t.Parallel()

	for _, sp := range SubPractices {
		if err := ValidateSubPractice(sp); err != nil {
			t.Fatalf("ValidateSubPractice(%q) = %v", sp, err)
		}
	}
	if err := ValidateSubPractice("automation"); !errors.Is(err, ErrSubPractice) {
		t.Fatalf("ValidateSubPractice is case-sensitive, got %v", err)
	}
}

func TestSizeWarning(t *testing.T) {
	t.Parallel()

	if got := SizeWarning(MaxRecommendedSize); got != "" {
		t.Fatalf("SizeWarning(limit) = %q, want empty", got)
	}
	want := "File is 150.0 MB. Consider < 100 MB for quicker preview."
	if got := SizeWarning(150 << 20); got != want {
		t.Fatalf("SizeWarning(150MB) = %q, want %q", got, want)
	}
}

func TestParseTags(t *testing.T) {
	t.Parallel()

	got := ParseTags(" kpi, q3 ,, finance,kpi ")
	want := []string{"kpi", "q3", "finance"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ParseTags() = %v, want %v", got, want)
	}
	if got := ParseTags(""); len(got) != 0 {
		t.Fatalf("ParseTags(\"\") = %v, want empty", got)
	}
}

//
// Upload.Validate
//

func TestUploadValidate(t *testing.T) {
	t.Parallel()

	u := Upload{
		FileName:    "Q3 Pipeline.xlsx",
		Data:        []byte("PK"),
		Type:        TypeExcel,
		SubPractice: "Platforms",
		Title:       "   ",
		Description: " notes ",
		Tags:        []string{"a", " a", "", "b"},
	}
	if err := u.Validate(); err != nil {
		t.Fatalf("Validate() = %v", err)
	}
	if u.Title != "Q3 Pipeline" || u.Description != "notes" || !reflect.DeepEqual(u.Tags, []string{"a", "b"}) {
		t.Fatalf("normalized upload = %+v", u)
	}

	bad := []struct {
		name string
		edit func(*Upload)
		want error
	}{
		{"empty data", func(u *Upload) { u.Data = nil }, ErrEmptyFile},
		{"wrong ext", func(u *Upload) { u.FileName = "x.pdf" }, ErrExtension},
		{"bad sub-practice", func(u *Upload) { u.SubPractice = "Ops" }, ErrSubPractice},
	}
	for _, tt := range bad {
		c := u
		tt.edit(&c)
		if err := c.Validate(); !errors.Is(err, tt.want) {
			t.Fatalf("%s: Validate() = %v, want %v", tt.name, err, tt.want)
		}
	}
}
