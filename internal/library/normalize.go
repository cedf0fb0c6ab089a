package library

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	punctuationRe   = regexp.MustCompile(`[^\p{L}\p{N}\s]`)
	multipleSpaceRe = regexp.MustCompile(`\s+`)
)

// NormalizeName folds an artist or title for comparison: accents are
// stripped, case is lowered, punctuation becomes a space and whitespace is
// collapsed. "Beyoncé" and "beyonce" compare equal.
func NormalizeName(s string) string {
	// Transformers carry state, so build one per call
	fold := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if folded, _, err := transform.String(fold, s); err == nil {
		s = folded
	}
	s = strings.ToLower(s)
	s = punctuationRe.ReplaceAllString(s, " ")
	s = multipleSpaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}
