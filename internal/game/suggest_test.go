package game

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/llehouerou/earworm/internal/catalog"
)

func pool(titles ...string) []catalog.Track {
	tracks := make([]catalog.Track, len(titles))
	for i, title := range titles {
		tracks[i] = catalog.Track{ID: title, Title: title}
	}
	return tracks
}

func TestSuggest_PrefixFirst(t *testing.T) {
	p := pool("Yellow Submarine", "Hello", "Hello Goodbye", "Yellow", "Help!")

	got := Suggest(p, "ello", MaxSuggestions)

	assert.Equal(t, []string{"Hello", "Hello Goodbye", "Yellow", "Yellow Submarine"}, got)
	assert.Equal(t, []string{"Hello", "Hello Goodbye", "Help!"}, Suggest(p, "HE", MaxSuggestions))
}

func TestSuggest_DeduplicatesTitles(t *testing.T) {
	p := pool("Intro", "intro ", "INTRO", "Outro")

	assert.Equal(t, []string{"Intro"}, Suggest(p, "intro", MaxSuggestions))
}

func TestSuggest_Limit(t *testing.T) {
	p := pool("a1", "a2", "a3", "a4")

	assert.Equal(t, []string{"a1", "a2"}, Suggest(p, "a", 2))
	assert.Nil(t, Suggest(p, "a", 0))
}

func TestSuggest_EmptyQuery(t *testing.T) {
	assert.Nil(t, Suggest(pool("Song"), "  ", MaxSuggestions))
}

func TestSuggest_SkipsUntitled(t *testing.T) {
	p := pool("", "Song")

	assert.Equal(t, []string{"Song"}, Suggest(p, "o", MaxSuggestions))
}
