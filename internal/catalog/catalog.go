// Package catalog defines the track model and the catalog contract the game
// draws its rotation pools from.
package catalog

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ErrNoPlayableTracks is returned when a context yields no track with a
// playable preview.
var ErrNoPlayableTracks = errors.New("no playable tracks")

// Track is a playable song reference.
// This is a value: the engine never mutates it.
type Track struct {
	ID         string // provider-scoped identifier
	Title      string
	Artist     string
	Album      string
	PreviewURL string        // http(s) URL, file:// URL or spotify:track: URI
	Duration   time.Duration // 0 if unknown
}

// HasPreview returns true if the track can be played.
func (t Track) HasPreview() bool {
	return strings.TrimSpace(t.PreviewURL) != ""
}

// DurationKnown returns true if the nominal track length is known.
func (t Track) DurationKnown() bool {
	return t.Duration > 0
}

// Artist is an artist search result.
type Artist struct {
	ID    string
	Name  string
	Genre string
}

// Kind selects where candidate tracks come from.
type Kind int

const (
	KindArtist Kind = iota
	KindChart
	KindLibrary
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindArtist:
		return "artist"
	case KindChart:
		return "chart"
	case KindLibrary:
		return "library"
	default:
		return "unknown"
	}
}

// Context scopes a rotation pool: an artist, a chart or a local library.
type Context struct {
	Kind       Kind
	ArtistID   string
	ArtistName string
}

// ArtistContext returns the context for an artist's catalog.
func ArtistContext(id, name string) Context {
	return Context{Kind: KindArtist, ArtistID: id, ArtistName: name}
}

// ChartContext returns the context for the popularity chart.
func ChartContext() Context {
	return Context{Kind: KindChart}
}

// LibraryContext returns the context for the local music library.
func LibraryContext() Context {
	return Context{Kind: KindLibrary}
}

// Key returns a stable identifier for the context, used for caching and for
// detecting context changes.
func (c Context) Key() string {
	switch c.Kind {
	case KindArtist:
		return "artist:" + c.ArtistID
	case KindChart:
		return "chart"
	case KindLibrary:
		return "library"
	default:
		return "unknown"
	}
}

// DisplayName returns a human-readable name for the context.
func (c Context) DisplayName() string {
	switch c.Kind {
	case KindArtist:
		if c.ArtistName != "" {
			return c.ArtistName
		}
		return "Unknown Artist"
	case KindChart:
		return "Top Charts"
	case KindLibrary:
		return "Local Library"
	default:
		return "Unknown"
	}
}

// Catalog is the source of candidate tracks.
// Implementations must return an empty slice, not an error, when nothing
// matches.
type Catalog interface {
	// ListCandidateTracks returns the tracks eligible for a context.
	ListCandidateTracks(ctx context.Context, c Context) ([]Track, error)

	// SearchTracks returns tracks matching a free-text query.
	SearchTracks(ctx context.Context, query string) ([]Track, error)

	// SearchArtists returns artists matching a name, most relevant first.
	SearchArtists(ctx context.Context, query string) ([]Artist, error)

	// Name returns the catalog name (used in config and cache keys).
	Name() string
}

// ChartEntry is a chart position without a playable reference.
type ChartEntry struct {
	Artist string
	Title  string
}

// ChartSource supplies chart positions. Entries are resolved against a
// catalog to obtain previews.
type ChartSource interface {
	TopTracks(ctx context.Context, limit int) ([]ChartEntry, error)
}

// Playable filters out tracks without a preview and duplicate ids,
// preserving order.
func Playable(tracks []Track) []Track {
	seen := make(map[string]bool, len(tracks))
	result := make([]Track, 0, len(tracks))
	for _, t := range tracks {
		if !t.HasPreview() || seen[t.ID] {
			continue
		}
		seen[t.ID] = true
		result = append(result, t)
	}
	return result
}
