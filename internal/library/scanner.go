package library

import (
	"context"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/dhowden/tag"

	"github.com/llehouerou/earworm/internal/catalog"
)

const numWorkers = 8

// ScanProgress reports the progress of a library scan.
type ScanProgress struct {
	Phase   string // "scanning", "reading", "done"
	Current int
	Total   int
}

// fileInfo holds information about a discovered music file.
type fileInfo struct {
	path   string
	source string // source path this file belongs to
}

// report sends progress without blocking the scan. A nil channel drops it.
func report(progress chan<- ScanProgress, p ScanProgress) {
	select {
	case progress <- p:
	default:
	}
}

// readTracks reads tags in parallel. The result keeps the order of files.
func readTracks(ctx context.Context, files []fileInfo, progress chan<- ScanProgress) []catalog.Track {
	total := len(files)
	tracks := make([]catalog.Track, total)
	var processed atomic.Int64

	workCh := make(chan int)
	var wg sync.WaitGroup
	for range numWorkers {
		wg.Go(func() {
			for i := range workCh {
				tracks[i] = readTrack(files[i].path)
				if n := processed.Add(1); n%50 == 0 {
					report(progress, ScanProgress{Phase: "reading", Current: int(n), Total: total})
				}
			}
		})
	}

feed:
	for i := range files {
		select {
		case workCh <- i:
		case <-ctx.Done():
			break feed
		}
	}
	close(workCh)
	wg.Wait()

	return tracks[:processed.Load()]
}

// readTrack builds a track from a file's tags, falling back to the
// "Artist - Title" file name convention when tags are missing.
func readTrack(path string) catalog.Track {
	t := catalog.Track{
		ID:         path,
		PreviewURL: fileURL(path),
	}

	artist, title := parseFileName(path)
	if m, err := readTags(path); err == nil {
		t.Title = strings.TrimSpace(m.Title())
		t.Artist = strings.TrimSpace(m.Artist())
		if t.Artist == "" {
			t.Artist = strings.TrimSpace(m.AlbumArtist())
		}
		t.Album = strings.TrimSpace(m.Album())
	}
	if t.Title == "" {
		t.Title = title
	}
	if t.Artist == "" {
		t.Artist = artist
	}
	return t
}

func readTags(path string) (tag.Metadata, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return tag.ReadFrom(f)
}

// parseFileName splits "Artist - Title.ext". Without a separator the whole
// base name is the title.
func parseFileName(path string) (artist, title string) {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if a, t, ok := strings.Cut(base, " - "); ok {
		return strings.TrimSpace(a), strings.TrimSpace(t)
	}
	return "", strings.TrimSpace(base)
}

// fileURL returns the file:// URL of an absolute path.
func fileURL(path string) string {
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(path)}).String()
}
