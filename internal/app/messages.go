// Package app contains the game screen of the terminal UI.
package app

import (
	"time"

	"github.com/llehouerou/earworm/internal/catalog"
	"github.com/llehouerou/earworm/internal/errmsg"
	"github.com/llehouerou/earworm/internal/game"
)

// TickMsg is sent periodically while a snippet plays to move the bar.
type TickMsg time.Time

// GameEventMsg wraps a game event.
type GameEventMsg game.Event

// GameClosedMsg is sent when the game stops publishing events.
type GameClosedMsg struct{}

// StartedMsg is sent when the first round of a context is loading.
type StartedMsg struct {
	Context catalog.Context
}

// StartFailedMsg is sent when the session could not start.
type StartFailedMsg struct {
	Op  errmsg.Op
	Err error
}

// SuggestionsMsg carries catalog search suggestions for a query.
type SuggestionsMsg struct {
	Query  string
	Titles []string
	Err    error
}

// FeedbackMsg replaces the feedback line.
type FeedbackMsg struct {
	Text string
	Kind FeedbackKind
}

// FeedbackKind selects the feedback style.
type FeedbackKind int

const (
	FeedbackInfo FeedbackKind = iota
	FeedbackSuccess
	FeedbackWarning
	FeedbackError
)
