package playback

import (
	"github.com/llehouerou/earworm/internal/catalog"
	"github.com/llehouerou/earworm/internal/player"
)

// StateChange is emitted when the session state changes.
type StateChange struct {
	Previous State
	Current  State
}

// TrackChange is emitted when a new track starts loading.
type TrackChange struct {
	Previous *catalog.Track
	Current  catalog.Track
	Load     uint64
}

// ReadyEvent is emitted when the loaded track can be played.
// Guess, skip and play interactions may resume.
type ReadyEvent struct {
	Track  catalog.Track
	Reason player.ReadyReason
	Load   uint64 // matches Loaded.Seq of the load that became ready
}

// StartedEvent is emitted when the snippet actually starts playing.
type StartedEvent struct {
	Window player.Window
}

// EndedEvent is emitted when the snippet has fully played.
type EndedEvent struct {
	Track catalog.Track
	Load  uint64
}

// ErrorEvent is emitted for non-fatal provider errors.
type ErrorEvent struct {
	Operation string // e.g., "load", "play"
	TrackID   string
	Err       error
}
