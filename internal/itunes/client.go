// Package itunes is a catalog backed by the iTunes Search API and the
// iTunes top-songs RSS feed.
package itunes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/llehouerou/earworm/internal/catalog"
)

const (
	defaultBaseURL = "https://itunes.apple.com"
	userAgent      = "earworm/0.1 (https://github.com/llehouerou/earworm)"

	artistSearchLimit = 5
	artistSongsLimit  = 100
	trackSearchLimit  = 25
	defaultChartLimit = 50
	chartTimeout      = 8 * time.Second

	popularSongsPerArtist = 5
	popularSongsMax       = 50
	chartResolveMax       = 25

	// Requests are spaced to stay under the API's ~20 calls per minute
	defaultMinInterval = 250 * time.Millisecond

	maxRetries   = 2
	initialDelay = time.Second
	maxDelay     = 8 * time.Second
)

// DefaultPopularArtists seed the chart when the feed is unavailable.
var DefaultPopularArtists = []string{
	"Drake", "Taylor Swift", "The Weeknd", "Billie Eilish",
	"Ariana Grande", "Post Malone", "Ed Sheeran", "Bad Bunny",
	"Olivia Rodrigo", "Dua Lipa",
}

// Client provides access to the iTunes catalog. It implements
// catalog.Catalog.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	country     string
	chartLimit  int
	chartSource catalog.ChartSource
	popular     []string
	logger      *zap.Logger
	retryDelay  time.Duration
	minInterval time.Duration

	mu          sync.Mutex
	lastRequest time.Time
	rng         *rand.Rand
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpClient = h }
}

// WithBaseURL overrides the API root, for tests.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithCountry sets the store country code.
func WithCountry(country string) Option {
	return func(c *Client) { c.country = country }
}

// WithChartLimit sets how many chart songs to request.
func WithChartLimit(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.chartLimit = n
		}
	}
}

// WithChartSource sets the chart used when the RSS feed fails.
func WithChartSource(s catalog.ChartSource) Option {
	return func(c *Client) { c.chartSource = s }
}

// WithPopularArtists sets the last-resort chart seed.
func WithPopularArtists(names []string) Option {
	return func(c *Client) { c.popular = names }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient creates a new iTunes client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		baseURL:     defaultBaseURL,
		country:     "us",
		chartLimit:  defaultChartLimit,
		popular:     DefaultPopularArtists,
		logger:      zap.NewNop(),
		retryDelay:  initialDelay,
		minInterval: defaultMinInterval,
		rng:         rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())), //nolint:gosec // shuffle
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(zap.String("component", "itunes"))
	return c
}

// Name returns the catalog name.
func (c *Client) Name() string { return "itunes" }

// SearchArtists searches for artists by name, most relevant first.
func (c *Client) SearchArtists(ctx context.Context, query string) ([]catalog.Artist, error) {
	if strings.TrimSpace(query) == "" {
		return []catalog.Artist{}, nil
	}

	params := url.Values{}
	params.Set("term", query)
	params.Set("entity", "musicArtist")
	params.Set("limit", strconv.Itoa(artistSearchLimit))

	var resp searchResponse[artistResult]
	if err := c.getJSON(ctx, "/search", params, &resp); err != nil {
		return nil, fmt.Errorf("search artists: %w", err)
	}

	artists := make([]catalog.Artist, 0, len(resp.Results))
	for _, r := range resp.Results {
		artists = append(artists, catalog.Artist{
			ID:    strconv.FormatInt(r.ArtistID, 10),
			Name:  r.ArtistName,
			Genre: r.PrimaryGenreName,
		})
	}
	return artists, nil
}

// SearchTracks searches songs by free text.
func (c *Client) SearchTracks(ctx context.Context, query string) ([]catalog.Track, error) {
	if strings.TrimSpace(query) == "" {
		return []catalog.Track{}, nil
	}
	tracks, err := c.searchSongs(ctx, query, trackSearchLimit)
	if err != nil {
		return nil, fmt.Errorf("search tracks: %w", err)
	}
	return tracks, nil
}

// ArtistSongs returns the songs of an artist.
func (c *Client) ArtistSongs(ctx context.Context, artistID string) ([]catalog.Track, error) {
	params := url.Values{}
	params.Set("id", artistID)
	params.Set("entity", "song")
	params.Set("limit", strconv.Itoa(artistSongsLimit))

	var resp searchResponse[songResult]
	if err := c.getJSON(ctx, "/lookup", params, &resp); err != nil {
		return nil, fmt.Errorf("artist songs: %w", err)
	}
	return songsToTracks(resp.Results), nil
}

// ListCandidateTracks returns the playable tracks of a context. An artist
// without songs falls back to the chart.
func (c *Client) ListCandidateTracks(ctx context.Context, cc catalog.Context) ([]catalog.Track, error) {
	switch cc.Kind {
	case catalog.KindArtist:
		tracks, err := c.ArtistSongs(ctx, cc.ArtistID)
		if err != nil {
			return nil, err
		}
		if playable := catalog.Playable(tracks); len(playable) > 0 {
			return playable, nil
		}
		c.logger.Info("artist has no playable songs, using chart",
			zap.String("artist", cc.DisplayName()))
		return c.ChartSongs(ctx)
	case catalog.KindChart:
		return c.ChartSongs(ctx)
	default:
		return []catalog.Track{}, nil
	}
}

// ChartSongs returns the top songs. When the feed fails or is empty the
// configured chart source is resolved against the store, then the popular
// artists list is used.
func (c *Client) ChartSongs(ctx context.Context) ([]catalog.Track, error) {
	tracks, err := c.feedSongs(ctx)
	if err == nil && len(tracks) > 0 {
		return tracks, nil
	}
	c.logger.Warn("chart feed unavailable, falling back", zap.Error(err))

	if c.chartSource != nil {
		tracks, err := c.resolveChart(ctx)
		if err == nil && len(tracks) > 0 {
			return tracks, nil
		}
		c.logger.Warn("chart source unavailable, falling back", zap.Error(err))
	}

	return c.popularSongs(ctx)
}

func (c *Client) feedSongs(ctx context.Context) ([]catalog.Track, error) {
	ctx, cancel := context.WithTimeout(ctx, chartTimeout)
	defer cancel()

	path := fmt.Sprintf("/%s/rss/topsongs/limit=%d/genre=34/json", c.country, c.chartLimit)
	var resp feedResponse
	if err := c.getJSON(ctx, path, nil, &resp); err != nil {
		return nil, err
	}
	if len(resp.Feed.Entry) == 0 {
		return nil, errors.New("chart feed is empty")
	}

	tracks := make([]catalog.Track, 0, len(resp.Feed.Entry))
	for i := range resp.Feed.Entry {
		e := &resp.Feed.Entry[i]
		tracks = append(tracks, catalog.Track{
			ID:         e.ID.Attributes.ID,
			Title:      orDefault(e.Name.Label, "Unknown Track"),
			Artist:     orDefault(e.Artist.Label, "Unknown Artist"),
			Album:      orDefault(e.Collection.Name.Label, "Unknown Album"),
			PreviewURL: e.previewURL(),
		})
	}
	return catalog.Playable(tracks), nil
}

// resolveChart looks up each chart entry in the store to get a preview.
func (c *Client) resolveChart(ctx context.Context) ([]catalog.Track, error) {
	entries, err := c.chartSource.TopTracks(ctx, chartResolveMax)
	if err != nil {
		return nil, err
	}

	var tracks []catalog.Track
	for _, e := range entries {
		found, err := c.searchSongs(ctx, e.Artist+" "+e.Title, 1)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			c.logger.Debug("resolve chart entry", zap.String("title", e.Title), zap.Error(err))
			continue
		}
		tracks = append(tracks, found...)
	}
	return catalog.Playable(tracks), nil
}

// popularSongs returns a shuffled selection of songs from popular artists.
func (c *Client) popularSongs(ctx context.Context) ([]catalog.Track, error) {
	var all []catalog.Track
	for _, artist := range c.popular {
		songs, err := c.searchSongs(ctx, artist, popularSongsPerArtist)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			c.logger.Debug("popular artist songs", zap.String("artist", artist), zap.Error(err))
			continue
		}
		all = append(all, songs...)
	}

	all = catalog.Playable(all)
	c.mu.Lock()
	c.rng.Shuffle(len(all), func(i, j int) { all[i], all[j] = all[j], all[i] })
	c.mu.Unlock()

	if len(all) > popularSongsMax {
		all = all[:popularSongsMax]
	}
	return all, nil
}

func (c *Client) searchSongs(ctx context.Context, term string, limit int) ([]catalog.Track, error) {
	params := url.Values{}
	params.Set("term", term)
	params.Set("entity", "song")
	params.Set("limit", strconv.Itoa(limit))
	params.Set("country", c.country)

	var resp searchResponse[songResult]
	if err := c.getJSON(ctx, "/search", params, &resp); err != nil {
		return nil, err
	}
	return catalog.Playable(songsToTracks(resp.Results)), nil
}

// songsToTracks keeps only song tracks, dropping wrapper entries.
func songsToTracks(results []songResult) []catalog.Track {
	tracks := make([]catalog.Track, 0, len(results))
	for _, r := range results {
		if r.WrapperType != "track" || r.Kind != "song" {
			continue
		}
		tracks = append(tracks, catalog.Track{
			ID:         strconv.FormatInt(r.TrackID, 10),
			Title:      r.TrackName,
			Artist:     r.ArtistName,
			Album:      r.CollectionName,
			PreviewURL: r.PreviewURL,
			Duration:   time.Duration(r.TrackTimeMillis) * time.Millisecond,
		})
	}
	return tracks
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// getJSON performs a rate-limited GET and decodes the JSON body into v.
func (c *Client) getJSON(ctx context.Context, path string, params url.Values, v any) error {
	reqURL := c.baseURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	resp, err := c.doWithRetry(ctx, reqURL)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("API status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// doWithRetry executes a GET with exponential backoff.
// Retries on 5xx, 429 and network errors.
func (c *Client) doWithRetry(ctx context.Context, reqURL string) (*http.Response, error) {
	var lastErr error
	delay := c.retryDelay

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			delay = min(delay*2, maxDelay)
		}
		if err := c.waitForRateLimit(ctx); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("User-Agent", userAgent)
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			continue
		}

		if resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return resp, nil
		}

		resp.Body.Close()
		lastErr = fmt.Errorf("server returned status %d", resp.StatusCode)
	}

	return nil, fmt.Errorf("request failed after %d attempts: %w", maxRetries+1, lastErr)
}

// waitForRateLimit spaces requests by minInterval.
func (c *Client) waitForRateLimit(ctx context.Context) error {
	c.mu.Lock()
	wait := c.minInterval - time.Since(c.lastRequest)
	if wait < 0 {
		wait = 0
	}
	c.lastRequest = time.Now().Add(wait)
	c.mu.Unlock()

	if wait == 0 {
		return nil
	}
	select {
	case <-time.After(wait):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Verify Client implements catalog.Catalog at compile time.
var _ catalog.Catalog = (*Client)(nil)
