package review

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/wonny/stratplan/internal/plan"
)

// KeywordTable maps a KRA id to words expected in the names of activities
// filed under it. It is a sanity check, not a classifier: a miss only
// produces an advisory warning.
type KeywordTable map[string][]string

// DefaultKeywords is the built-in table for the standard five KRAs
func DefaultKeywords() KeywordTable {
	return KeywordTable{
		"KRA 1": {"instruction", "curriculum", "faculty", "student", "teaching", "accreditation", "licensure", "graduate", "scholarship", "course"},
		"KRA 2": {"research", "publication", "innovation", "patent", "study", "journal", "citation", "invention"},
		"KRA 3": {"extension", "community", "outreach", "training", "technology transfer", "livelihood", "partnership"},
		"KRA 4": {"governance", "policy", "management", "administrative", "office", "personnel", "compliance", "planning"},
		"KRA 5": {"income", "revenue", "fund", "budget", "financial", "resource", "generation", "enterprise", "grant"},
	}
}

// LoadKeywords reads a YAML table of the form
//
//	KRA 1: [instruction, faculty]
//	kra2: [research]
//
// KRA ids are normalized and keywords lower-cased.
func LoadKeywords(path string) (KeywordTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read keyword table: %w", err)
	}

	var raw map[string][]string
	dec := yaml.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to parse keyword table %s: %w", path, err)
	}

	table := make(KeywordTable, len(raw))
	for kra, words := range raw {
		id := plan.NormalizeKRAID(kra)
		for _, w := range words {
			if w = strings.ToLower(strings.TrimSpace(w)); w != "" {
				table[id] = append(table[id], w)
			}
		}
	}
	return table, nil
}

// Mismatch reports whether an activity name contains none of the keywords
// of its KRA. KRAs without keywords never mismatch.
func (t KeywordTable) Mismatch(kraID, activityName string) bool {
	words := t[plan.NormalizeKRAID(kraID)]
	if len(words) == 0 {
		return false
	}

	name := strings.ToLower(activityName)
	for _, w := range words {
		if strings.Contains(name, w) {
			return false
		}
	}
	return true
}
