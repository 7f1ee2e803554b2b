package probe

import (
	"strings"
	"unicode/utf8"
)

// headerHints are words that commonly appear as column titles.
var headerHints = map[string]struct{}{
	"id": {}, "name": {}, "date": {}, "status": {}, "type": {}, "amount": {},
	"total": {}, "email": {}, "phone": {}, "country": {}, "region": {},
	"category": {}, "title": {},
}

// ScoreHeaderRow scores row as a header candidate. Rows without any
// non-empty cell are not eligible and report ok=false.
//
//	score = nonEmpty
//	      + uniqueNonEmpty
//	      - 0.8 * numericLooking
//	      + 1.5 * hintHits
//	      + min(avgLen, 20) / 20
//	      - 0.25 * cells containing ',', ';' or ':'
//
// Header rows tend to have many distinct, moderate-length, non-numeric cells;
// data rows tend to be numeric or punctuated.
func ScoreHeaderRow(row []Cell) (score float64, ok bool) {
	var (
		nonEmpty   int
		numeric    int
		hints      int
		punctuated int
		totalLen   int
	)
	uniq := make(map[string]struct{}, len(row))

	for _, c := range row {
		text := c.Text()
		if text == "" {
			continue
		}
		nonEmpty++
		uniq[text] = struct{}{}
		totalLen += utf8.RuneCountInString(text)

		if _, isNum := numericValue(c); isNum {
			numeric++
		}
		if _, hit := headerHints[strings.ToLower(text)]; hit {
			hints++
		}
		if strings.ContainsAny(text, ",;:") {
			punctuated++
		}
	}
	if nonEmpty == 0 {
		return 0, false
	}

	avgLen := float64(totalLen) / float64(nonEmpty)
	score = float64(nonEmpty) +
		float64(len(uniq)) -
		0.8*float64(numeric) +
		1.5*float64(hints) +
		min(avgLen, 20)/20 -
		0.25*float64(punctuated)
	return score, true
}

// HeaderCandidates scores the first min(maxScan, len(rows)) rows, skipping
// rows with no content. maxScan <= 0 uses DefaultHeaderScan.
func HeaderCandidates(rows [][]Cell, maxScan int) []HeaderCandidate {
	if maxScan <= 0 {
		maxScan = DefaultHeaderScan
	}
	limit := min(maxScan, len(rows))
	out := make([]HeaderCandidate, 0, limit)
	for i := 0; i < limit; i++ {
		if s, ok := ScoreHeaderRow(rows[i]); ok {
			out = append(out, HeaderCandidate{Index: i, Score: s})
		}
	}
	return out
}

// DetectHeaderRow returns the index of the most header-like row among the
// first maxScan rows. Ties resolve to the lowest index. When no row in the
// scan window has content it returns 0.
func DetectHeaderRow(rows [][]Cell, maxScan int) int {
	best := HeaderCandidate{Index: -1}
	for _, c := range HeaderCandidates(rows, maxScan) {
		if best.Index < 0 || c.Score > best.Score {
			best = c
		}
	}
	if best.Index < 0 {
		return 0
	}
	return best.Index
}
