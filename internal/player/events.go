package player

import (
	"errors"
	"time"
)

// Provider error kinds. They are carried by EventFailed and never returned
// across the provider boundary.
var (
	// ErrLoadFailure means the asset or remote track could not be reached.
	ErrLoadFailure = errors.New("load failed")
	// ErrPlaybackStart means the provider rejected a play request.
	ErrPlaybackStart = errors.New("playback failed to start")
	// ErrProvider is any other provider-level error.
	ErrProvider = errors.New("provider error")
	// ErrMessageChannel means a malformed or unexpected channel message.
	ErrMessageChannel = errors.New("malformed channel message")
)

// ReadyReason tells how readiness was reached.
type ReadyReason int

const (
	// ReadyNative is an explicit readiness signal from the backend.
	ReadyNative ReadyReason = iota
	// ReadyInferred is readiness implied by another backend event.
	ReadyInferred
	// ReadyWatchdog is readiness forced by the timeout. Not an error.
	ReadyWatchdog
	// ReadyLoadError is readiness forced after a load failure so the user
	// can retry or skip.
	ReadyLoadError
)

// String returns the reason name.
func (r ReadyReason) String() string {
	switch r {
	case ReadyNative:
		return "native"
	case ReadyInferred:
		return "inferred"
	case ReadyWatchdog:
		return "watchdog"
	case ReadyLoadError:
		return "load error"
	default:
		return "unknown"
	}
}

// Event is a signal emitted by a provider.
type Event interface {
	isEvent()
}

// EventReady is emitted once per load when the track can be played.
type EventReady struct {
	Reason ReadyReason
}

// EventMetadata reports the true track length.
type EventMetadata struct {
	Length time.Duration
}

// EventStarted is emitted when snippet playback actually starts.
type EventStarted struct{}

// EventEnded is emitted when the snippet window has fully played.
type EventEnded struct{}

// EventFailed reports a non-fatal provider error.
type EventFailed struct {
	Err error
}

// EventPaused is emitted when the remote player paused a running snippet
// on its own. The snippet did not complete.
type EventPaused struct{}

// EventStatus reports the remote playing flag, used to reconcile
// optimistic local state.
type EventStatus struct {
	Playing bool
}

func (EventReady) isEvent()    {}
func (EventMetadata) isEvent() {}
func (EventStarted) isEvent()  {}
func (EventEnded) isEvent()    {}
func (EventFailed) isEvent()   {}
func (EventPaused) isEvent()   {}
func (EventStatus) isEvent()   {}
