package itunes

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llehouerou/earworm/internal/catalog"
)

func newTestClient(t *testing.T, handler http.Handler, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	opts = append([]Option{WithBaseURL(srv.URL), WithHTTPClient(srv.Client())}, opts...)
	c := NewClient(opts...)
	c.minInterval = 0
	c.retryDelay = time.Millisecond
	return c
}

const lookupBody = `{
  "resultCount": 4,
  "results": [
    {"wrapperType": "artist", "artistId": 909253, "artistName": "Jack Johnson"},
    {"wrapperType": "track", "kind": "song", "trackId": 1, "artistName": "Jack Johnson",
     "collectionName": "In Between Dreams", "trackName": "Banana Pancakes",
     "previewUrl": "https://audio.example.com/1.m4a", "trackTimeMillis": 191000},
    {"wrapperType": "track", "kind": "music-video", "trackId": 2, "trackName": "Video",
     "previewUrl": "https://audio.example.com/2.m4v"},
    {"wrapperType": "track", "kind": "song", "trackId": 3, "trackName": "No Preview"}
  ]
}`

func TestClient_SearchArtists(t *testing.T) {
	var gotQuery string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		gotQuery = r.URL.RawQuery
		_, _ = w.Write([]byte(`{"resultCount":1,"results":[
			{"wrapperType":"artist","artistId":909253,"artistName":"Jack Johnson","primaryGenreName":"Rock"}]}`))
	}))

	artists, err := c.SearchArtists(context.Background(), "jack johnson")

	require.NoError(t, err)
	require.Len(t, artists, 1)
	assert.Equal(t, catalog.Artist{ID: "909253", Name: "Jack Johnson", Genre: "Rock"}, artists[0])
	assert.Contains(t, gotQuery, "entity=musicArtist")
	assert.Contains(t, gotQuery, "limit=5")
	assert.Contains(t, gotQuery, "term=jack+johnson")
}

func TestClient_SearchArtists_EmptyQuery(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		calls.Add(1)
	}))

	artists, err := c.SearchArtists(context.Background(), "   ")

	require.NoError(t, err)
	assert.Empty(t, artists)
	assert.Zero(t, calls.Load())
}

func TestClient_ArtistSongs_FiltersSongs(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/lookup", r.URL.Path)
		assert.Equal(t, "909253", r.URL.Query().Get("id"))
		assert.Equal(t, "song", r.URL.Query().Get("entity"))
		assert.Equal(t, "100", r.URL.Query().Get("limit"))
		_, _ = w.Write([]byte(lookupBody))
	}))

	tracks, err := c.ArtistSongs(context.Background(), "909253")

	require.NoError(t, err)
	require.Len(t, tracks, 2)
	assert.Equal(t, "Banana Pancakes", tracks[0].Title)
	assert.Equal(t, "In Between Dreams", tracks[0].Album)
	assert.Equal(t, 191*time.Second, tracks[0].Duration)
	assert.Equal(t, "No Preview", tracks[1].Title)
}

func TestClient_ListCandidateTracks_Artist(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(lookupBody))
	}))

	tracks, err := c.ListCandidateTracks(context.Background(), catalog.ArtistContext("909253", "Jack Johnson"))

	require.NoError(t, err)
	require.Len(t, tracks, 1)
	assert.Equal(t, "1", tracks[0].ID)
}

const feedBody = `{"feed": {"entry": [
  {"im:name": {"label": "Hit One"}, "im:artist": {"label": "Star"},
   "im:collection": {"im:name": {"label": "Album"}},
   "id": {"attributes": {"im:id": "100"}},
   "link": [
     {"attributes": {"rel": "alternate", "type": "text/html", "href": "https://music.example.com/100"}},
     {"attributes": {"rel": "enclosure", "type": "audio/x-m4a", "href": "https://audio.example.com/100.m4a"}}
   ]},
  {"im:name": {"label": "Hit Two"}, "im:artist": {"label": "Star"},
   "id": {"attributes": {"im:id": "101"}},
   "link": {"attributes": {"rel": "alternate", "type": "text/html", "href": "https://music.example.com/101"}},
   "im:preview": {"link": {"attributes": {"href": "https://audio.example.com/101.m4a"}}}},
  {"im:name": {"label": "No Audio"}, "id": {"attributes": {"im:id": "102"}},
   "link": {"attributes": {"rel": "alternate", "href": "https://music.example.com/102"}}}
]}}`

func TestClient_ChartSongs_Feed(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/us/rss/topsongs/limit=50/genre=34/json", r.URL.Path)
		_, _ = w.Write([]byte(feedBody))
	}))

	tracks, err := c.ChartSongs(context.Background())

	require.NoError(t, err)
	require.Len(t, tracks, 2)
	assert.Equal(t, "https://audio.example.com/100.m4a", tracks[0].PreviewURL)
	assert.Equal(t, "Album", tracks[0].Album)
	assert.Equal(t, "https://audio.example.com/101.m4a", tracks[1].PreviewURL)
	assert.Equal(t, "Unknown Album", tracks[1].Album)
}

type stubChart struct {
	entries []catalog.ChartEntry
	err     error
}

func (s stubChart) TopTracks(context.Context, int) ([]catalog.ChartEntry, error) {
	return s.entries, s.err
}

// songSearchHandler fails the feed and answers every song search with one
// song titled after the search term.
func songSearchHandler(t *testing.T, feedStatus int) http.Handler {
	t.Helper()
	var nextID atomic.Int32
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "/rss/") {
			w.WriteHeader(feedStatus)
			return
		}
		body, err := json.Marshal(map[string]any{
			"resultCount": 1,
			"results": []map[string]any{{
				"wrapperType": "track",
				"kind":        "song",
				"trackId":     nextID.Add(1),
				"trackName":   r.URL.Query().Get("term"),
				"artistName":  "A",
				"previewUrl":  "https://audio.example.com/p.m4a",
			}},
		})
		require.NoError(t, err)
		_, _ = w.Write(body)
	})
}

func TestClient_ChartSongs_FallsBackToChartSource(t *testing.T) {
	chart := stubChart{entries: []catalog.ChartEntry{{Artist: "A", Title: "First"}, {Artist: "B", Title: "Second"}}}
	c := newTestClient(t, songSearchHandler(t, http.StatusNotFound), WithChartSource(chart))

	tracks, err := c.ChartSongs(context.Background())

	require.NoError(t, err)
	require.Len(t, tracks, 2)
	assert.Equal(t, "A First", tracks[0].Title)
	assert.Equal(t, "B Second", tracks[1].Title)
}

func TestClient_ChartSongs_FallsBackToPopularArtists(t *testing.T) {
	chart := stubChart{err: errors.New("no api key")}
	c := newTestClient(t, songSearchHandler(t, http.StatusNotFound),
		WithChartSource(chart),
		WithPopularArtists([]string{"Drake", "Dua Lipa", "Ed Sheeran"}))

	tracks, err := c.ChartSongs(context.Background())

	require.NoError(t, err)
	titles := make([]string, len(tracks))
	for i, tr := range tracks {
		titles[i] = tr.Title
	}
	assert.ElementsMatch(t, []string{"Drake", "Dua Lipa", "Ed Sheeran"}, titles)
}

func TestClient_ListCandidateTracks_ArtistWithoutSongsUsesChart(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/lookup" {
			_, _ = w.Write([]byte(`{"resultCount":1,"results":[{"wrapperType":"artist","artistId":1}]}`))
			return
		}
		_, _ = w.Write([]byte(feedBody))
	}))

	tracks, err := c.ListCandidateTracks(context.Background(), catalog.ArtistContext("1", "Nobody"))

	require.NoError(t, err)
	assert.Len(t, tracks, 2)
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(lookupBody))
	}))

	tracks, err := c.ArtistSongs(context.Background(), "909253")

	require.NoError(t, err)
	assert.Len(t, tracks, 2)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_GivesUpAfterRetries(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))

	_, err := c.ArtistSongs(context.Background(), "909253")

	require.Error(t, err)
	assert.Equal(t, int32(maxRetries+1), calls.Load())
}

func TestClient_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.Error(w, "bad request", http.StatusBadRequest)
	}))

	_, err := c.SearchTracks(context.Background(), "x")

	require.ErrorContains(t, err, "API status 400")
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_Name(t *testing.T) {
	assert.Equal(t, "itunes", NewClient().Name())
}
