package app

import (
	"context"

	"github.com/llehouerou/earworm/internal/catalog"
	"github.com/llehouerou/earworm/internal/game"
)

// Compile-time assertion that the game satisfies GameController.
var _ GameController = (*game.Game)(nil)

// GameController is the game surface driven by the screen.
type GameController interface {
	Start(ctx context.Context, cc catalog.Context) error
	NextRound() error

	// Snippet playback
	Play() error
	Toggle() error
	Stop() error

	// Round interactions
	Guess(text string) (bool, error)
	Skip() (catalog.Track, error)
	Suggestions(query string) []string
	SearchSuggestions(ctx context.Context, query string) ([]string, error)

	SetDifficulty(d game.Difficulty) error
	Difficulty() game.Difficulty

	// Snapshots
	Phase() game.Phase
	Round() game.Round
	Stats() game.Stats
	Context() catalog.Context

	Events() <-chan game.Event
	Done() <-chan struct{}
}

// ArtistFinder resolves an artist name to a catalog artist.
type ArtistFinder interface {
	SearchArtists(ctx context.Context, query string) ([]catalog.Artist, error)
}
