package probe

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// reservedWords is the SQL keyword subset rejected as column identifiers.
var reservedWords = map[string]struct{}{
	"select": {}, "from": {}, "where": {}, "order": {}, "group": {}, "by": {},
	"limit": {}, "offset": {}, "join": {}, "inner": {}, "left": {}, "right": {},
	"full": {}, "outer": {}, "on": {}, "and": {}, "or": {}, "not": {}, "as": {},
	"create": {}, "table": {}, "index": {}, "insert": {}, "into": {}, "values": {},
	"update": {}, "delete": {}, "drop": {}, "alter": {}, "add": {}, "primary": {},
	"key": {}, "unique": {}, "null": {}, "true": {}, "false": {},
}

// IsReserved reports whether name (case-insensitive) is a reserved SQL keyword.
func IsReserved(name string) bool {
	_, ok := reservedWords[strings.ToLower(name)]
	return ok
}

var identifierRe = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// ValidIdentifier reports whether name is lower-case, letter/underscore-led,
// made of [a-z0-9_] and not reserved.
func ValidIdentifier(name string) bool {
	return identifierRe.MatchString(name) && !IsReserved(name)
}

func startsWithLetterOrUnderscore(s string) bool {
	if s == "" {
		return false
	}
	c := s[0]
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// stripDiacritics decomposes s (NFKD) and drops combining marks U+0300..U+036F.
func stripDiacritics(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(combiningMarks)))
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

var combiningMarks = &unicode.RangeTable{
	R16: []unicode.Range16{{Lo: 0x0300, Hi: 0x036f, Stride: 1}},
}

// identifierBase applies normalization, character replacement, whitespace
// collapsing and lower-casing. The result may be empty or digit-led.
func identifierBase(raw string) string {
	s := stripDiacritics(raw)

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r == '_' || r == ' ',
			r >= 'a' && r <= 'z',
			r >= 'A' && r <= 'Z',
			r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte(' ')
		}
	}

	return strings.ToLower(strings.Join(strings.Fields(b.String()), "_"))
}

// Sanitize turns arbitrary header text into a storage-safe identifier.
//
// Steps:
//  1. NFKD-normalize and strip diacritics.
//  2. Replace characters outside [A-Za-z0-9_ ] with spaces, trim, and
//     collapse whitespace runs into single underscores.
//  3. Lower-case.
//  4. Empty results become "col_<columnIndex+1>".
//  5. Results not starting with a letter or underscore get a "c_" prefix.
//  6. Reserved words get a "_col" suffix.
//
// Sanitize never fails and never returns an empty string. It does not
// guarantee uniqueness; see Uniquify.
func Sanitize(raw string, columnIndex int) string {
	name := identifierBase(raw)
	if name == "" {
		name = "col_" + strconv.Itoa(columnIndex+1)
	}
	if !startsWithLetterOrUnderscore(name) {
		name = "c_" + name
	}
	if IsReserved(name) {
		name += "_col"
	}
	return name
}

// SanitizeAll sanitizes each header by position and then uniquifies the set.
func SanitizeAll(headers []string) []string {
	out := make([]string, len(headers))
	for i, h := range headers {
		out[i] = Sanitize(h, i)
	}
	return Uniquify(out)
}

// Uniquify resolves collisions left to right: the first occurrence keeps its
// name, later ones get "_2", "_3", ... until unused. Comparison is
// case-insensitive. Running it on an already-unique list returns an equal list.
func Uniquify(names []string) []string {
	out := make([]string, len(names))
	seen := make(map[string]struct{}, len(names))
	for i, name := range names {
		candidate := name
		for n := 2; ; n++ {
			if _, taken := seen[strings.ToLower(candidate)]; !taken {
				break
			}
			candidate = name + "_" + strconv.Itoa(n)
		}
		seen[strings.ToLower(candidate)] = struct{}{}
		out[i] = candidate
	}
	return out
}

// TableName derives a table identifier from free text: steps 1-3 of Sanitize,
// then a "t_" prefix when the result is not letter-led and a "_col" suffix
// when it is a reserved word.
func TableName(s string) string {
	name := identifierBase(s)
	if !startsWithLetterOrUnderscore(name) {
		name = "t_" + name
	}
	if IsReserved(name) {
		name += "_col"
	}
	return name
}

// Column issue messages, surfaced next to a column name during review.
const (
	IssueEmpty      = "Empty"
	IssueBadStart   = "Must start with a letter or _"
	IssueReserved   = "Reserved keyword"
	IssueDuplicated = "Duplicate name"
)

// ColumnIssues lists the advisory problems with a single column name.
// An empty result means the name is fine on its own.
func ColumnIssues(name string) []string {
	var issues []string
	if name == "" {
		return append(issues, IssueEmpty)
	}
	if !startsWithLetterOrUnderscore(name) {
		issues = append(issues, IssueBadStart)
	}
	if IsReserved(name) {
		issues = append(issues, IssueReserved)
	}
	return issues
}
