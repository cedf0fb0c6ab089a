package game

import (
	"strings"
	"unicode"
)

// Matcher decides whether a guess names a title.
// A Threshold of 1 (or out of range) requires an exact match after trimming
// and case folding. Lower thresholds accept a normalized Levenshtein
// similarity at or above the threshold.
type Matcher struct {
	Threshold float64
}

// Match reports whether guess matches title.
func (m Matcher) Match(guess, title string) bool {
	g := strings.ToLower(strings.TrimSpace(guess))
	if g == "" {
		return false
	}
	if g == strings.ToLower(strings.TrimSpace(title)) {
		return true
	}
	if m.Threshold <= 0 || m.Threshold >= 1 {
		return false
	}

	ng := normalizeString(guess)
	if ng == "" {
		return false
	}
	if similarity(ng, normalizeString(title)) >= m.Threshold {
		return true
	}
	// "(feat. X)", "[Live]" and " - Remastered 2011" decorations are optional
	if base := normalizeString(baseTitle(title)); base != "" {
		return similarity(ng, base) >= m.Threshold
	}
	return false
}

// baseTitle cuts a title at its first decoration.
func baseTitle(title string) string {
	cut := len(title)
	for _, sep := range []string{" (", " [", " - "} {
		if i := strings.Index(title, sep); i > 0 && i < cut {
			cut = i
		}
	}
	return title[:cut]
}

// normalizeString normalizes a string for comparison.
// Converts to lowercase, removes punctuation, and collapses whitespace.
func normalizeString(s string) string {
	s = strings.ToLower(s)

	var result strings.Builder
	lastWasSpace := true // Start true to trim leading spaces

	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			result.WriteRune(r)
			lastWasSpace = false
		} else if unicode.IsSpace(r) || r == '-' || r == '_' {
			if !lastWasSpace {
				result.WriteRune(' ')
				lastWasSpace = true
			}
		}
		// Skip other punctuation
	}

	return strings.TrimSpace(result.String())
}

// similarity calculates the similarity between two strings using Levenshtein
// distance. Returns a value between 0 and 1, where 1 means identical.
func similarity(a, b string) float64 {
	if a == b {
		return 1.0
	}

	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 || len(rb) == 0 {
		return 0.0
	}

	dist := levenshteinDistance(ra, rb)
	return 1.0 - float64(dist)/float64(max(len(ra), len(rb)))
}

// levenshteinDistance calculates the edit distance between two rune slices.
func levenshteinDistance(a, b []rune) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}

	return prev[len(b)]
}
