// Package library is a catalog of the music files in local folders. Tracks
// carry file:// previews and play through the direct provider.
package library

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/llehouerou/earworm/internal/catalog"
)

// ErrNoSources is returned when no library folder is configured.
var ErrNoSources = errors.New("no library sources configured")

// Library scans its sources once and serves every query from memory.
// It implements catalog.Catalog.
type Library struct {
	sources []string
	logger  *zap.Logger

	mu      sync.Mutex
	tracks  []catalog.Track
	scanned bool
}

// New creates a library over the given folders.
func New(sources []string, logger *zap.Logger) *Library {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Library{
		sources: sources,
		logger:  logger.With(zap.String("component", "library")),
	}
}

// Name returns the catalog name.
func (l *Library) Name() string { return "library" }

// Scan walks the sources and reads every file's tags, replacing the
// previous scan. progress may be nil.
func (l *Library) Scan(ctx context.Context, progress chan<- ScanProgress) ([]catalog.Track, error) {
	if len(l.sources) == 0 {
		return nil, ErrNoSources
	}

	report(progress, ScanProgress{Phase: "scanning"})
	files, err := discoverFiles(ctx, l.sources, progress)
	if err != nil {
		return nil, err
	}

	tracks := catalog.Playable(readTracks(ctx, files, progress))
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	report(progress, ScanProgress{Phase: "done", Current: len(tracks), Total: len(tracks)})

	l.logger.Info("library scanned",
		zap.Strings("sources", l.sources),
		zap.Int("files", len(files)),
		zap.Int("tracks", len(tracks)))

	l.mu.Lock()
	l.tracks = tracks
	l.scanned = true
	l.mu.Unlock()

	return tracks, nil
}

func (l *Library) all(ctx context.Context) ([]catalog.Track, error) {
	l.mu.Lock()
	if l.scanned {
		tracks := l.tracks
		l.mu.Unlock()
		return tracks, nil
	}
	l.mu.Unlock()
	return l.Scan(ctx, nil)
}

// ListCandidateTracks returns every track for the library context and the
// artist's tracks for an artist context. There is no local chart.
func (l *Library) ListCandidateTracks(ctx context.Context, cc catalog.Context) ([]catalog.Track, error) {
	switch cc.Kind {
	case catalog.KindLibrary:
		tracks, err := l.all(ctx)
		if err != nil {
			return nil, err
		}
		return append([]catalog.Track(nil), tracks...), nil
	case catalog.KindArtist:
		return l.artistTracks(ctx, cc)
	default:
		return []catalog.Track{}, nil
	}
}

func (l *Library) artistTracks(ctx context.Context, cc catalog.Context) ([]catalog.Track, error) {
	tracks, err := l.all(ctx)
	if err != nil {
		return nil, err
	}
	want := NormalizeName(cc.ArtistID)
	if want == "" {
		want = NormalizeName(cc.ArtistName)
	}

	result := []catalog.Track{}
	for _, t := range tracks {
		if NormalizeName(t.Artist) == want {
			result = append(result, t)
		}
	}
	return result, nil
}

// SearchTracks returns tracks whose title or artist contains the query.
func (l *Library) SearchTracks(ctx context.Context, query string) ([]catalog.Track, error) {
	q := NormalizeName(query)
	if q == "" {
		return []catalog.Track{}, nil
	}
	tracks, err := l.all(ctx)
	if err != nil {
		return nil, err
	}

	result := []catalog.Track{}
	for _, t := range tracks {
		if strings.Contains(NormalizeName(t.Title), q) || strings.Contains(NormalizeName(t.Artist), q) {
			result = append(result, t)
		}
	}
	return result, nil
}

// SearchArtists returns the library's artists whose name contains the
// query, sorted by name. The artist id is the normalized name.
func (l *Library) SearchArtists(ctx context.Context, query string) ([]catalog.Artist, error) {
	q := NormalizeName(query)
	if q == "" {
		return []catalog.Artist{}, nil
	}
	tracks, err := l.all(ctx)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]catalog.Artist)
	for _, t := range tracks {
		id := NormalizeName(t.Artist)
		if id == "" || !strings.Contains(id, q) {
			continue
		}
		if _, ok := byID[id]; !ok {
			byID[id] = catalog.Artist{ID: id, Name: t.Artist}
		}
	}

	artists := make([]catalog.Artist, 0, len(byID))
	for _, a := range byID {
		artists = append(artists, a)
	}
	sort.Slice(artists, func(i, j int) bool { return artists[i].ID < artists[j].ID })
	return artists, nil
}

// Verify Library implements catalog.Catalog at compile time.
var _ catalog.Catalog = (*Library)(nil)
