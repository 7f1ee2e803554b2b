package probe

import "strings"

// Quality labels, best to worst.
const (
	LabelGreat       = "Great"
	LabelGood        = "Good"
	LabelNeedsReview = "Needs review"
	LabelPoor        = "Poor"
)

// Quality is an advisory confidence score over a plan's schema.
type Quality struct {
	Score int    `json:"score"`
	Label string `json:"label"`
}

const (
	penaltyDuplicate = 10
	penaltyReserved  = 6
	penaltyBadStart  = 4
	penaltyShort     = 2
	maxCleanBonus    = 10
)

// Score rates a plan from 0 to 100.
//
// Starting at 100 it subtracts 10 per duplicated name (counted once per
// distinct name that occurs more than once), 6 per reserved word, 4 per name
// not led by a letter or underscore and 2 per name shorter than two
// characters. Each column with uniqueRatio > 0.6 and emptyRatio < 0.3 adds one
// point, at most 10 in total. The result is clamped to [0, 100].
//
// The score never blocks submission; it only informs review.
func Score(p *SheetImportPlan) Quality {
	if p == nil {
		return Quality{Score: 0, Label: LabelPoor}
	}

	score := 100
	counts := make(map[string]int, len(p.Columns))
	bonus := 0
	for _, c := range p.Columns {
		name := c.SanitizedName
		counts[strings.ToLower(name)]++
		if IsReserved(name) {
			score -= penaltyReserved
		}
		if !startsWithLetterOrUnderscore(name) {
			score -= penaltyBadStart
		}
		if len(name) < 2 {
			score -= penaltyShort
		}
		if c.Profile.UniqueRatio > 0.6 && c.Profile.EmptyRatio() < 0.3 {
			bonus++
		}
	}
	for _, n := range counts {
		if n > 1 {
			score -= penaltyDuplicate
		}
	}
	score += min(bonus, maxCleanBonus)
	score = max(0, min(100, score))

	return Quality{Score: score, Label: LabelFor(score)}
}

// LabelFor maps a score to its label.
func LabelFor(score int) string {
	switch {
	case score >= 85:
		return LabelGreat
	case score >= 70:
		return LabelGood
	case score >= 50:
		return LabelNeedsReview
	default:
		return LabelPoor
	}
}

// DuplicateNames returns the names that occur more than once, in first-seen order.
func DuplicateNames(p *SheetImportPlan) []string {
	counts := make(map[string]int, len(p.Columns))
	var order []string
	for _, c := range p.Columns {
		k := strings.ToLower(c.SanitizedName)
		if counts[k] == 0 {
			order = append(order, k)
		}
		counts[k]++
	}
	var out []string
	for _, k := range order {
		if counts[k] > 1 {
			out = append(out, k)
		}
	}
	return out
}
