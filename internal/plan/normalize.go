package plan

import (
	"regexp"
	"strings"
)

var (
	kraPattern = regexp.MustCompile(`(?i)KRA\s*(\d+)`)
	kpiToken   = regexp.MustCompile(`(?i)KPI\s*(\d+)`)
	whitespace = regexp.MustCompile(`\s+`)
)

// NormalizeKRAID collapses whitespace and canonicalizes any id containing a
// KRA<n> token, e.g. "kra5", "KRA  5" or "KRA 5: Research", to "KRA 5".
// Ids without the token are returned with whitespace collapsed.
func NormalizeKRAID(id string) string {
	collapsed := whitespace.ReplaceAllString(strings.TrimSpace(id), " ")
	if m := kraPattern.FindStringSubmatch(collapsed); m != nil {
		return "KRA " + trimZeros(m[1])
	}
	return collapsed
}

// NormalizeInitiativeID strips all whitespace and upper-cases the id
func NormalizeInitiativeID(id string) string {
	return strings.ToUpper(whitespace.ReplaceAllString(id, ""))
}

// kpiNumber extracts the number of the embedded KPI token, e.g. "2" from
// "KRA5-KPI2" or "kpi 02"
func kpiNumber(id string) (string, bool) {
	m := kpiToken.FindStringSubmatch(id)
	if m == nil {
		return "", false
	}
	return trimZeros(m[1]), true
}

func trimZeros(digits string) string {
	if n := strings.TrimLeft(digits, "0"); n != "" {
		return n
	}
	return "0"
}
