// Package lastfm reads the Last.fm global charts.
package lastfm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shkh/lastfm-go/lastfm"

	"github.com/llehouerou/earworm/internal/catalog"
)

// ErrNotConfigured is returned when no API key is set.
var ErrNotConfigured = errors.New("last.fm api key not configured")

const maxChartLimit = 100

// Client wraps the Last.fm API as a catalog.ChartSource.
type Client struct {
	api    *lastfm.Api
	apiKey string

	// fetch is replaced in tests
	fetch func(limit int) ([]catalog.ChartEntry, error)
}

// New creates a new Last.fm client with the given API credentials.
func New(apiKey, apiSecret string) *Client {
	c := &Client{
		api:    lastfm.New(apiKey, apiSecret),
		apiKey: apiKey,
	}
	c.fetch = c.chartTopTracks
	return c
}

// Configured returns true if an API key is set.
func (c *Client) Configured() bool {
	return c.apiKey != ""
}

// TopTracks returns the global chart, most popular first.
// The Last.fm library has no context support, so cancellation abandons the
// request rather than aborting it.
func (c *Client) TopTracks(ctx context.Context, limit int) ([]catalog.ChartEntry, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	limit = max(1, min(limit, maxChartLimit))

	type result struct {
		entries []catalog.ChartEntry
		err     error
	}
	done := make(chan result, 1)
	go func() {
		entries, err := c.fetch(limit)
		done <- result{entries, err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return nil, fmt.Errorf("get top tracks: %w", r.err)
		}
		return cleanEntries(r.entries, limit), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Client) chartTopTracks(limit int) ([]catalog.ChartEntry, error) {
	result, err := c.api.Chart.GetTopTracks(lastfm.P{"limit": limit})
	if err != nil {
		return nil, err
	}

	entries := make([]catalog.ChartEntry, 0, len(result.Tracks))
	for _, t := range result.Tracks {
		entries = append(entries, catalog.ChartEntry{
			Artist: t.Artist.Name,
			Title:  t.Name,
		})
	}
	return entries, nil
}

// cleanEntries drops untitled and duplicate entries, keeping chart order.
func cleanEntries(entries []catalog.ChartEntry, limit int) []catalog.ChartEntry {
	seen := make(map[string]bool, len(entries))
	result := make([]catalog.ChartEntry, 0, len(entries))
	for _, e := range entries {
		e.Artist = strings.TrimSpace(e.Artist)
		e.Title = strings.TrimSpace(e.Title)
		if e.Title == "" {
			continue
		}
		key := strings.ToLower(e.Artist + "\x00" + e.Title)
		if seen[key] {
			continue
		}
		seen[key] = true
		result = append(result, e)
		if len(result) == limit {
			break
		}
	}
	return result
}

// Verify Client implements catalog.ChartSource at compile time.
var _ catalog.ChartSource = (*Client)(nil)
