// Package spotify is a catalog backed by the Spotify Web API. Tracks carry
// spotify:track: URIs and play through the embedded player.
package spotify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/zmb3/spotify/v2"
	"go.uber.org/zap"

	"github.com/llehouerou/earworm/internal/auth"
	"github.com/llehouerou/earworm/internal/catalog"
)

const (
	albumPageLimit     = 50
	albumBatchSize     = 20
	playlistPageLimit  = 100
	artistSearchLimit  = 5
	trackSearchLimit   = 10
	maxPlaylistEntries = 500
)

// Client provides access to the Spotify catalog. It implements
// catalog.Catalog.
type Client struct {
	api            *spotify.Client
	session        *auth.Session
	mainAlbumsOnly bool
	chartPlaylist  string
	logger         *zap.Logger
}

// Option configures a Client.
type Option func(*clientOptions)

type clientOptions struct {
	baseURL        string
	httpClient     *http.Client
	mainAlbumsOnly bool
	chartPlaylist  string
	logger         *zap.Logger
}

// WithBaseURL overrides the API root, for tests. It must end with a slash.
func WithBaseURL(u string) Option {
	return func(o *clientOptions) { o.baseURL = u }
}

// WithHTTPClient replaces the session-authorized HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(o *clientOptions) { o.httpClient = h }
}

// WithMainAlbumsOnly restricts artist pools to the artist's own albums,
// skipping singles, compilations and features.
func WithMainAlbumsOnly(v bool) Option {
	return func(o *clientOptions) { o.mainAlbumsOnly = v }
}

// WithChartPlaylist sets the playlist used for the chart context.
func WithChartPlaylist(id string) Option {
	return func(o *clientOptions) { o.chartPlaylist = id }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *clientOptions) { o.logger = l }
}

// NewClient creates a Spotify catalog authorized by session.
func NewClient(session *auth.Session, opts ...Option) *Client {
	o := clientOptions{mainAlbumsOnly: true, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.httpClient == nil {
		o.httpClient = session.Client(context.Background())
	}

	var apiOpts []spotify.ClientOption
	if o.baseURL != "" {
		apiOpts = append(apiOpts, spotify.WithBaseURL(o.baseURL))
	}

	return &Client{
		api:            spotify.New(o.httpClient, apiOpts...),
		session:        session,
		mainAlbumsOnly: o.mainAlbumsOnly,
		chartPlaylist:  o.chartPlaylist,
		logger:         o.logger.With(zap.String("component", "spotify")),
	}
}

// Name returns the catalog name.
func (c *Client) Name() string { return "spotify" }

// SearchArtists searches for artists by name, most relevant first.
func (c *Client) SearchArtists(ctx context.Context, query string) ([]catalog.Artist, error) {
	if strings.TrimSpace(query) == "" {
		return []catalog.Artist{}, nil
	}

	res, err := c.api.Search(ctx, query, spotify.SearchTypeArtist, spotify.Limit(artistSearchLimit))
	if err != nil {
		return nil, c.wrap("search artists", err)
	}

	artists := []catalog.Artist{}
	if res.Artists == nil {
		return artists, nil
	}
	for _, a := range res.Artists.Artists {
		artist := catalog.Artist{ID: string(a.ID), Name: a.Name}
		if len(a.Genres) > 0 {
			artist.Genre = a.Genres[0]
		}
		artists = append(artists, artist)
	}
	return artists, nil
}

// SearchTracks searches for tracks matching a free-text query.
func (c *Client) SearchTracks(ctx context.Context, query string) ([]catalog.Track, error) {
	if strings.TrimSpace(query) == "" {
		return []catalog.Track{}, nil
	}

	res, err := c.api.Search(ctx, query, spotify.SearchTypeTrack, spotify.Limit(trackSearchLimit))
	if err != nil {
		return nil, c.wrap("search tracks", err)
	}

	tracks := []catalog.Track{}
	if res.Tracks == nil {
		return tracks, nil
	}
	for i := range res.Tracks.Tracks {
		tracks = append(tracks, convertFullTrack(&res.Tracks.Tracks[i]))
	}
	return catalog.Playable(tracks), nil
}

// ListCandidateTracks returns the tracks eligible for a context. The
// library context has no Spotify tracks.
func (c *Client) ListCandidateTracks(ctx context.Context, cc catalog.Context) ([]catalog.Track, error) {
	switch cc.Kind {
	case catalog.KindArtist:
		return c.ArtistTracks(ctx, cc.ArtistID, cc.ArtistName)
	case catalog.KindChart:
		return c.ChartTracks(ctx)
	default:
		return []catalog.Track{}, nil
	}
}

// ArtistTracks returns every track of an artist's albums, de-duplicated by
// id. An empty id resolves the artist by name.
func (c *Client) ArtistTracks(ctx context.Context, artistID, artistName string) ([]catalog.Track, error) {
	if artistID == "" {
		artists, err := c.SearchArtists(ctx, artistName)
		if err != nil {
			return nil, err
		}
		if len(artists) == 0 {
			return []catalog.Track{}, nil
		}
		artistID = artists[0].ID
	}
	id := spotify.ID(artistID)

	albumIDs, err := c.artistAlbumIDs(ctx, id)
	if err != nil {
		return nil, err
	}

	var tracks []catalog.Track
	for start := 0; start < len(albumIDs); start += albumBatchSize {
		end := min(start+albumBatchSize, len(albumIDs))
		albums, err := c.api.GetAlbums(ctx, albumIDs[start:end])
		if err != nil {
			return nil, c.wrap("get albums", err)
		}
		for _, album := range albums {
			if album == nil {
				continue
			}
			for _, t := range album.Tracks.Tracks {
				if c.mainAlbumsOnly && !leadArtistIs(t.Artists, id) {
					continue
				}
				tracks = append(tracks, convertSimpleTrack(t, album.Name))
			}
		}
	}

	c.logger.Debug("artist tracks loaded",
		zap.String("artist", artistID),
		zap.Int("albums", len(albumIDs)),
		zap.Int("tracks", len(tracks)))

	return catalog.Playable(tracks), nil
}

func (c *Client) artistAlbumIDs(ctx context.Context, id spotify.ID) ([]spotify.ID, error) {
	groups := []spotify.AlbumType{spotify.AlbumTypeAlbum}
	if !c.mainAlbumsOnly {
		groups = append(groups, spotify.AlbumTypeSingle)
	}

	var ids []spotify.ID
	offset := 0
	for {
		page, err := c.api.GetArtistAlbums(ctx, id, groups,
			spotify.Limit(albumPageLimit), spotify.Offset(offset))
		if err != nil {
			return nil, c.wrap("get artist albums", err)
		}

		for _, album := range page.Albums {
			if c.mainAlbumsOnly && !leadArtistIs(album.Artists, id) {
				continue
			}
			ids = append(ids, album.ID)
		}

		if len(page.Albums) < albumPageLimit {
			break
		}
		offset += albumPageLimit
	}
	return ids, nil
}

// ChartTracks returns the tracks of the configured chart playlist.
func (c *Client) ChartTracks(ctx context.Context) ([]catalog.Track, error) {
	if c.chartPlaylist == "" {
		c.logger.Warn("no chart playlist configured")
		return []catalog.Track{}, nil
	}

	var tracks []catalog.Track
	offset := 0
	for offset < maxPlaylistEntries {
		page, err := c.api.GetPlaylistItems(ctx, spotify.ID(c.chartPlaylist),
			spotify.Limit(playlistPageLimit), spotify.Offset(offset))
		if err != nil {
			return nil, c.wrap("get playlist items", err)
		}

		for i := range page.Items {
			// Only process tracks (not episodes or null items)
			if t := page.Items[i].Track.Track; t != nil {
				tracks = append(tracks, convertFullTrack(t))
			}
		}

		if len(page.Items) < playlistPageLimit {
			break
		}
		offset += playlistPageLimit
	}

	return catalog.Playable(tracks), nil
}

// wrap maps a rejected token to auth.ErrUnauthenticated and drops it from
// the session.
func (c *Client) wrap(op string, err error) error {
	var apiErr spotify.Error
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized {
		c.session.Invalidate()
		return fmt.Errorf("%s: %w: %s", op, auth.ErrUnauthenticated, apiErr.Message)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func leadArtistIs(artists []spotify.SimpleArtist, id spotify.ID) bool {
	return len(artists) > 0 && artists[0].ID == id
}

func trackURI(id spotify.ID, uri spotify.URI) string {
	if uri != "" {
		return string(uri)
	}
	if id == "" {
		return ""
	}
	return "spotify:track:" + string(id)
}

func joinArtists(artists []spotify.SimpleArtist) string {
	names := make([]string, 0, len(artists))
	for _, a := range artists {
		names = append(names, a.Name)
	}
	return strings.Join(names, ", ")
}

func convertSimpleTrack(t spotify.SimpleTrack, album string) catalog.Track {
	return catalog.Track{
		ID:         string(t.ID),
		Title:      t.Name,
		Artist:     joinArtists(t.Artists),
		Album:      album,
		PreviewURL: trackURI(t.ID, t.URI),
		Duration:   time.Duration(t.Duration) * time.Millisecond,
	}
}

func convertFullTrack(t *spotify.FullTrack) catalog.Track {
	return convertSimpleTrack(t.SimpleTrack, t.Album.Name)
}

// Verify Client implements catalog.Catalog at compile time.
var _ catalog.Catalog = (*Client)(nil)
