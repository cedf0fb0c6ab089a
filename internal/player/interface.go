// internal/player/interface.go
package player

import (
	"math/rand/v2"
	"time"

	"github.com/llehouerou/earworm/internal/catalog"
	"github.com/llehouerou/earworm/internal/loop"
)

// Provider is a playback backend bound to one track.
//
// All methods and all emitted events run on the loop the provider was
// created with. A disposed provider must never emit again.
type Provider interface {
	// Load binds the track and begins buffering. Readiness is reported
	// asynchronously with EventReady.
	Load(track catalog.Track)
	// Play plays the window and stops automatically after w.Duration.
	Play(w Window)
	// Stop interrupts playback and rewinds to the window start.
	Stop()
	// Dispose cancels every timer and detaches every listener.
	Dispose()
	// FallbackLength is the length assumed when no metadata arrived.
	// Zero means the offset is always 0.
	FallbackLength() time.Duration
}

// Factory creates a fresh provider for each loaded track.
// emit must only be called on l.
type Factory func(l *loop.Loop, emit func(Event)) Provider

// DefaultBuffer is the margin kept between the snippet end and the track end.
const DefaultBuffer = time.Second

// Window is the slice of a track that is played.
type Window struct {
	Offset   time.Duration
	Duration time.Duration
}

// End returns the window end position.
func (w Window) End() time.Duration {
	return w.Offset + w.Duration
}

// ComputeWindow picks a random start offset for a snippet of the given
// duration, uniform in [0, length-snippet-buffer] with millisecond
// resolution. The offset is 0 when the track is too short or its length is
// unknown.
func ComputeWindow(length, snippet, buffer time.Duration, rng *rand.Rand) Window {
	w := Window{Duration: snippet}
	maxOffset := (length - snippet - buffer).Milliseconds()
	if length <= 0 || maxOffset <= 0 {
		return w
	}
	w.Offset = time.Duration(rng.Int64N(maxOffset+1)) * time.Millisecond
	return w
}
