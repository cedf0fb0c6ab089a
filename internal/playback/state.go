// internal/playback/state.go
package playback

// State is the snippet session state for the loaded track.
//
// Valid transitions:
//   - Idle/any → Loading  (new track, previous provider disposed first)
//   - Loading  → Ready    (provider readiness: native, inferred or watchdog)
//   - Ready    → Playing  (via Play, also from Stopped and Ended)
//   - Playing  → Ended    (snippet timer elapsed)
//   - Playing  → Stopped  (via Stop, provider rewinds to the window start)
//   - Playing  → Ready    (provider rejected the start)
type State int

const (
	StateIdle State = iota
	StateLoading
	StateReady
	StatePlaying
	StateEnded
	StateStopped
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateLoading:
		return "Loading"
	case StateReady:
		return "Ready"
	case StatePlaying:
		return "Playing"
	case StateEnded:
		return "Ended"
	case StateStopped:
		return "Stopped"
	default:
		return "Unknown"
	}
}

// CanPlay returns true if Play is accepted in this state.
func (s State) CanPlay() bool {
	return s == StateReady || s == StateStopped || s == StateEnded
}

// IsLoaded returns true once the loaded track is ready to be played.
func (s State) IsLoaded() bool {
	return s != StateIdle && s != StateLoading
}
