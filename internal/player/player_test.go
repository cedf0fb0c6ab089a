package player

import (
	"context"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llehouerou/earworm/internal/loop"
)

// recorder collects events emitted on the loop.
type recorder struct {
	l      *loop.Loop
	events []Event
}

func (r *recorder) emit(e Event) { r.events = append(r.events, e) }

func (r *recorder) snapshot(t *testing.T) []Event {
	t.Helper()
	var out []Event
	require.NoError(t, r.l.Do(context.Background(), func() {
		out = append(out, r.events...)
	}))
	return out
}

func (r *recorder) readies(t *testing.T) []EventReady {
	t.Helper()
	var out []EventReady
	for _, e := range r.snapshot(t) {
		if ev, ok := e.(EventReady); ok {
			out = append(out, ev)
		}
	}
	return out
}

func countOf[T Event](events []Event) int {
	n := 0
	for _, e := range events {
		if _, ok := e.(T); ok {
			n++
		}
	}
	return n
}

func do(t *testing.T, l *loop.Loop, fn func()) {
	t.Helper()
	require.NoError(t, l.Do(context.Background(), fn))
}

func TestCacheBust(t *testing.T) {
	got := CacheBust("https://example.com/a.m4a?x=1")
	u, err := url.Parse(got)
	require.NoError(t, err)
	assert.Equal(t, "1", u.Query().Get("x"))
	assert.NotEmpty(t, u.Query().Get("_"))
	assert.Equal(t, "/a.m4a", u.Path)

	assert.NotEqual(t, got, CacheBust("https://example.com/a.m4a?x=1"))
	assert.Equal(t, "file:///music/a.mp3", CacheBust("file:///music/a.mp3"))
	assert.Equal(t, "relative/path.mp3", CacheBust("relative/path.mp3"))
}

func TestReadyReason_String(t *testing.T) {
	assert.Equal(t, "native", ReadyNative.String())
	assert.Equal(t, "inferred", ReadyInferred.String())
	assert.Equal(t, "watchdog", ReadyWatchdog.String())
	assert.Equal(t, "load error", ReadyLoadError.String())
	assert.Equal(t, "unknown", ReadyReason(42).String())
}

func TestConfig_WithDefaults(t *testing.T) {
	c := Config{}.withDefaults()

	assert.Equal(t, DefaultReadyTimeout, c.ReadyTimeout)
	assert.Equal(t, DefaultUnknownLengthCeiling, c.UnknownLengthCeiling)
	assert.Zero(t, c.InitDelay)
	assert.Zero(t, c.PlayGrace)

	c = Config{InitDelay: -1, PlayGrace: -1}.withDefaults()
	assert.Equal(t, DefaultInitDelay, c.InitDelay)
	assert.Equal(t, DefaultPlayGrace, c.PlayGrace)
}
