// Package preview extracts plain-text previews from presentation and
// document uploads so the user can confirm the file before submitting it.
//
// Only the OOXML formats are read (.pptx and .docx). Both are zip archives
// of XML parts; text runs are collected from a token stream, so formatting,
// images and embedded objects are ignored.
package preview

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// ErrNotOOXML is returned when data is not a zip archive or lacks the part
// the preview needs.
var ErrNotOOXML = errors.New("preview: not an OOXML document")

const (
	nsDrawing = "http://schemas.openxmlformats.org/drawingml/2006/main"
	nsWord    = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"
)

// SnippetWords bounds Slide.Snippet.
const SnippetWords = 28

// DefaultParagraphs is the paragraph cap used when Paragraphs gets max <= 0.
const DefaultParagraphs = 16

// Slide is the preview of one presentation slide.
type Slide struct {
	Index   int    `json:"index"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
}

var slidePartRe = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)

// Slides returns one preview per slide in slide-number order. The title is
// the first text run on the slide ("Slide n" when it has none); the snippet
// is the first SnippetWords words of all its text.
func Slides(data []byte) ([]Slide, error) {
	zr, err := openZip(data)
	if err != nil {
		return nil, err
	}

	type part struct {
		n int
		f *zip.File
	}
	var parts []part
	for _, f := range zr.File {
		m := slidePartRe.FindStringSubmatch(f.Name)
		if m == nil {
			continue
		}
		n, _ := strconv.Atoi(m[1])
		parts = append(parts, part{n: n, f: f})
	}
	if len(parts) == 0 {
		return nil, fmt.Errorf("%w: no slides", ErrNotOOXML)
	}
	sort.Slice(parts, func(i, j int) bool { return parts[i].n < parts[j].n })

	slides := make([]Slide, 0, len(parts))
	for i, p := range parts {
		runs, err := readRuns(p.f, nsDrawing)
		if err != nil {
			return nil, fmt.Errorf("slide %d: %w", p.n, err)
		}
		var texts []string
		for _, para := range runs {
			texts = append(texts, para...)
		}

		s := Slide{Index: i + 1, Title: "Slide " + strconv.Itoa(i+1)}
		if len(texts) > 0 {
			s.Title = texts[0]
		}
		words := strings.Fields(strings.Join(texts, " "))
		s.Snippet = strings.Join(words[:min(len(words), SnippetWords)], " ")
		slides = append(slides, s)
	}
	return slides, nil
}

// Paragraphs returns up to max non-empty paragraphs of a .docx body.
func Paragraphs(data []byte, max int) ([]string, error) {
	if max <= 0 {
		max = DefaultParagraphs
	}
	zr, err := openZip(data)
	if err != nil {
		return nil, err
	}

	var doc *zip.File
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			doc = f
			break
		}
	}
	if doc == nil {
		return nil, fmt.Errorf("%w: missing word/document.xml", ErrNotOOXML)
	}

	paras, err := readRuns(doc, nsWord)
	if err != nil {
		return nil, fmt.Errorf("document: %w", err)
	}
	out := make([]string, 0, min(len(paras), max))
	for _, runs := range paras {
		if p := strings.Join(runs, " "); p != "" {
			out = append(out, p)
			if len(out) == max {
				break
			}
		}
	}
	return out, nil
}

func openZip(data []byte) (*zip.Reader, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotOOXML, err)
	}
	return zr, nil
}

// readRuns streams an XML part and groups the whitespace-collapsed text of
// its <t> elements (in namespace ns) by enclosing <p> element. Empty runs
// are dropped; paragraphs without text are kept as nil entries.
func readRuns(f *zip.File, ns string) ([][]string, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	dec := xml.NewDecoder(rc)
	var (
		paras  [][]string
		cur    []string
		inText bool
		buf    strings.Builder
	)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Space == ns && t.Name.Local == "t" {
				inText = true
				buf.Reset()
			}
		case xml.CharData:
			if inText {
				buf.Write(t)
			}
		case xml.EndElement:
			if t.Name.Space != ns {
				continue
			}
			switch t.Name.Local {
			case "t":
				inText = false
				if s := strings.Join(strings.Fields(buf.String()), " "); s != "" {
					cur = append(cur, s)
				}
			case "p":
				paras = append(paras, cur)
				cur = nil
			}
		}
	}
	if len(cur) > 0 {
		paras = append(paras, cur)
	}
	return paras, nil
}
