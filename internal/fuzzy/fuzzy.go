// Package fuzzy scores how closely a query resembles a city name.
package fuzzy

import (
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
)

// DefaultThreshold is the minimum similarity (0-100) a candidate needs to be accepted
const DefaultThreshold = 70

// Matcher turns edit-distance similarity into an accept/reject decision
type Matcher struct {
	threshold int
}

// NewMatcher creates a matcher; the threshold is clamped to 0-100
func NewMatcher(threshold int) *Matcher {
	if threshold < 0 {
		threshold = 0
	}
	if threshold > 100 {
		threshold = 100
	}
	return &Matcher{threshold: threshold}
}

// Threshold returns the configured threshold
func (m *Matcher) Threshold() int {
	return m.threshold
}

// Strict reports whether only exact (case-insensitive) matches can pass
func (m *Matcher) Strict() bool {
	return m.threshold >= 100
}

// Score returns 1 minus the Levenshtein distance normalised by the longer string.
// Both strings are lower-cased and trimmed first; an empty query scores 0.
func Score(query, candidate string) float64 {
	q := normalize(query)
	if q == "" {
		return 0
	}
	c := normalize(candidate)
	if q == c {
		return 1.0
	}

	longest := utf8.RuneCountInString(q)
	if n := utf8.RuneCountInString(c); n > longest {
		longest = n
	}
	dist := levenshtein.ComputeDistance(q, c)
	return 1 - float64(dist)/float64(longest)
}

// Accept reports whether a score clears the threshold
func (m *Matcher) Accept(score float64) bool {
	if score <= 0 {
		return false
	}
	// compare on the 0-100 scale, rounding away float noise such as 0.7*100 = 70.00000000000001
	scaled := score * 100
	return scaled+1e-9 >= float64(m.threshold)
}

// Match scores the query against every given name and returns the best score
// along with whether it is accepted.
func (m *Matcher) Match(query string, names ...string) (float64, bool) {
	if normalize(query) == "" {
		return 0, false
	}
	best := 0.0
	for _, name := range names {
		if name == "" {
			continue
		}
		if s := Score(query, name); s > best {
			best = s
		}
	}
	return best, m.Accept(best)
}

// HasPrefix reports whether name starts with query, ignoring case and surrounding whitespace
func HasPrefix(name, query string) bool {
	q := normalize(query)
	if q == "" {
		return false
	}
	return strings.HasPrefix(normalize(name), q)
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
