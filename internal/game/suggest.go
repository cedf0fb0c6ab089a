package game

import (
	"sort"
	"strings"

	"github.com/llehouerou/earworm/internal/catalog"
)

const (
	// MaxSuggestions caps autocomplete results.
	MaxSuggestions = 10
	// MinSearchQuery is the shortest query sent to the catalog.
	MinSearchQuery = 3
)

// Suggest returns up to limit distinct pool titles containing query,
// case-insensitively. Titles starting with the query come first, then
// alphabetical order.
func Suggest(pool []catalog.Track, query string, limit int) []string {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" || limit <= 0 {
		return nil
	}

	seen := make(map[string]bool)
	var matches []string
	for _, t := range pool {
		title := strings.TrimSpace(t.Title)
		key := strings.ToLower(title)
		if title == "" || seen[key] || !strings.Contains(key, q) {
			continue
		}
		seen[key] = true
		matches = append(matches, title)
	}

	sort.SliceStable(matches, func(i, j int) bool {
		pi := strings.HasPrefix(strings.ToLower(matches[i]), q)
		pj := strings.HasPrefix(strings.ToLower(matches[j]), q)
		if pi != pj {
			return pi
		}
		return strings.ToLower(matches[i]) < strings.ToLower(matches[j])
	})

	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}
