package extract

import (
	"regexp"
	"strconv"
	"strings"
)

var countPattern = regexp.MustCompile(`^([0-9]+(?:\.[0-9]+)?)\s*([^\s0-9.]*)$`)

// countUnits maps the suffixes the site renders on engagement counters to
// their multipliers. Lookup is case-insensitive.
var countUnits = map[string]float64{
	"":  1,
	"万": 10_000,
	"w": 10_000,
	"k": 1_000,
	"千": 1_000,
	"亿": 100_000_000,
}

// NormalizeCount parses a display counter such as "1.2万", "3,400" or "17"
// into an integer. Strings it cannot interpret ("赞", "点赞", empty) collapse
// to zero rather than failing the record.
func NormalizeCount(raw string) int {
	s := strings.TrimSpace(raw)
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return 0
	}
	m := countPattern.FindStringSubmatch(s)
	if m == nil {
		return 0
	}
	mult, ok := countUnits[strings.ToLower(m[2])]
	if !ok {
		return 0
	}
	n, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0
	}
	return int(n * mult)
}

// CleanText collapses runs of whitespace (including newlines the site uses
// for layout) into single spaces and trims the result.
func CleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

var noteIDPattern = regexp.MustCompile(`/(?:explore|discovery/item)/([0-9a-zA-Z]+)`)

// NoteIDFromURL pulls the note identifier out of a note permalink. Returns
// "" when the URL does not look like a note page.
func NoteIDFromURL(u string) string {
	m := noteIDPattern.FindStringSubmatch(u)
	if m == nil {
		return ""
	}
	return m[1]
}

var userIDPattern = regexp.MustCompile(`/user/profile/([0-9a-zA-Z]+)`)

// UserIDFromURL pulls the user identifier out of a profile link.
func UserIDFromURL(u string) string {
	m := userIDPattern.FindStringSubmatch(u)
	if m == nil {
		return ""
	}
	return m[1]
}
