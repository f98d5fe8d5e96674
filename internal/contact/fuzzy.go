package contact

import (
	"strings"

	"github.com/agext/levenshtein"
)

// DefaultFuzzyRatio is the minimum similarity for a fuzzy label match.
const DefaultFuzzyRatio = 0.6

// FuzzyMatch compares a label against candidate text, case-insensitively.
// It matches when one string contains the other or when the similarity ratio
// reaches minRatio. Used to locate "о компании"/"каталог" style links whose
// exact wording varies between sites.
func FuzzyMatch(query, candidate string, minRatio float64) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	c := strings.ToLower(strings.TrimSpace(candidate))
	if q == "" || c == "" {
		return false
	}
	if strings.Contains(c, q) || strings.Contains(q, c) {
		return true
	}
	return levenshtein.Similarity(q, c, nil) >= minRatio
}
