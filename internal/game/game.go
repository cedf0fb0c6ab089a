// Package game runs guessing rounds on top of the snippet playback engine.
package game

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/llehouerou/earworm/internal/auth"
	"github.com/llehouerou/earworm/internal/catalog"
	"github.com/llehouerou/earworm/internal/playback"
	"github.com/llehouerou/earworm/internal/player"
)

var (
	// ErrNotStarted is returned before a context has been selected.
	ErrNotStarted = errors.New("game not started")
	// ErrRoundClosed is returned when guessing outside an open round.
	ErrRoundClosed = errors.New("round is not open")
	// ErrEmptyGuess is returned for blank guesses.
	ErrEmptyGuess = errors.New("empty guess")
	// ErrGameOver is returned once the session can no longer continue.
	ErrGameOver = errors.New("game over")
)

const eventBufferSize = 32

// Phase is the round lifecycle.
type Phase int

const (
	PhaseIdle     Phase = iota // no context selected
	PhaseLoading               // track loading
	PhaseGuessing              // track ready, round open
	PhaseRevealed              // guessed or skipped
	PhaseOver                  // session ended
)

// String returns the phase name.
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseLoading:
		return "loading"
	case PhaseGuessing:
		return "guessing"
	case PhaseRevealed:
		return "revealed"
	case PhaseOver:
		return "over"
	default:
		return "unknown"
	}
}

// Outcome is how a round ended.
type Outcome int

const (
	OutcomeNone Outcome = iota
	OutcomeCorrect
	OutcomeSkipped
)

// Round is one track to guess.
type Round struct {
	Number      int
	Track       catalog.Track
	Ready       bool
	ReadyReason player.ReadyReason
	Playing     bool
	Plays       int
	Guesses     []string
	Outcome     Outcome
	Points      int
	LastErr     error
}

// Stats is the in-memory session score.
type Stats struct {
	Score      int
	Streak     int // consecutive correct rounds
	BestStreak int
	Rounds     int // rounds revealed
	Correct    int
	Skipped    int
}

// EventKind identifies a game event.
type EventKind int

const (
	EventRound   EventKind = iota // a new round is loading
	EventReady                    // the round's track can be played
	EventStarted                  // snippet started
	EventEnded                    // snippet ended
	EventRevealed                 // round guessed or skipped
	EventError                    // non-fatal playback error
	EventOver                     // session ended
)

// Event is a game state change for the UI.
type Event struct {
	Kind  EventKind
	Phase Phase
	Round Round
	Stats Stats
	Err   error
}

// Game drives a playback.Controller through guessing rounds.
type Game struct {
	ctl     *playback.Controller
	cat     catalog.Catalog
	logger  *zap.Logger
	matcher Matcher

	mu         sync.Mutex
	difficulty Difficulty
	context    catalog.Context
	phase      Phase
	round      Round
	seq        int
	load       uint64 // controller load behind the current round
	stats      Stats
	err        error

	events chan Event
	done   chan struct{}
	stop   chan struct{}
	once   sync.Once
}

// Option configures a Game.
type Option func(*Game)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(g *Game) { g.logger = l }
}

// WithDifficulty sets the starting difficulty.
func WithDifficulty(d Difficulty) Option {
	return func(g *Game) { g.difficulty = d }
}

// WithMatchThreshold sets the guess similarity threshold. 1 is exact.
func WithMatchThreshold(t float64) Option {
	return func(g *Game) { g.matcher = Matcher{Threshold: t} }
}

// New creates a game over ctl and cat and starts consuming the controller's
// notifications. The caller keeps ownership of ctl.
func New(ctl *playback.Controller, cat catalog.Catalog, opts ...Option) *Game {
	g := &Game{
		ctl:     ctl,
		cat:     cat,
		logger:  zap.NewNop(),
		matcher: Matcher{Threshold: 1},
		events:  make(chan Event, eventBufferSize),
		done:    make(chan struct{}),
		stop:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.logger = g.logger.With(zap.String("component", "game"))

	sub := ctl.Subscribe()
	go g.watch(sub)
	return g
}

// Events returns the game event channel. Events are dropped when the
// buffer is full.
func (g *Game) Events() <-chan Event { return g.events }

// Done is closed when the game stops consuming controller notifications.
func (g *Game) Done() <-chan struct{} { return g.done }

// Close stops consuming notifications. The controller is left untouched.
func (g *Game) Close() {
	g.once.Do(func() { close(g.stop) })
	<-g.done
}

// Start loads the candidate pool for cc and begins the first round.
func (g *Game) Start(ctx context.Context, cc catalog.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.phase = PhaseLoading
	g.err = nil
	tracks, err := g.cat.ListCandidateTracks(ctx, cc)
	if err != nil {
		return g.failLocked(fmt.Errorf("list %s tracks: %w", cc.DisplayName(), err))
	}
	tracks = catalog.Playable(tracks)
	if len(tracks) == 0 {
		return g.failLocked(fmt.Errorf("%s: %w", cc.DisplayName(), catalog.ErrNoPlayableTracks))
	}

	if err := g.ctl.SetPool(cc, tracks); err != nil {
		return g.failLocked(err)
	}
	if err := g.ctl.SetSnippetDuration(g.difficulty.SnippetDuration()); err != nil {
		return g.failLocked(err)
	}
	g.context = cc

	g.logger.Info("game started",
		zap.String("context", cc.Key()),
		zap.Int("tracks", len(tracks)),
		zap.Stringer("difficulty", g.difficulty))

	return g.nextRoundLocked()
}

// NextRound abandons the current round, if any, and loads the next track.
func (g *Game) NextRound() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	switch g.phase {
	case PhaseIdle:
		return ErrNotStarted
	case PhaseOver:
		return ErrGameOver
	}
	return g.nextRoundLocked()
}

// nextRoundLocked holds g.mu across LoadNext so the new track's ready
// notification always finds the new round.
func (g *Game) nextRoundLocked() error {
	loaded, err := g.ctl.LoadNext()
	if err != nil {
		return g.failLocked(err)
	}
	track := loaded.Track
	g.load = loaded.Seq
	g.seq++
	g.round = Round{Number: g.seq, Track: track}
	g.phase = PhaseLoading
	g.logger.Debug("round loading", zap.Int("round", g.seq), zap.String("track", track.ID))
	g.emitLocked(Event{Kind: EventRound})
	return nil
}

// failLocked ends the session on unrecoverable errors.
func (g *Game) failLocked(err error) error {
	if errors.Is(err, auth.ErrUnauthenticated) || errors.Is(err, catalog.ErrNoPlayableTracks) ||
		errors.Is(err, playback.ErrClosed) {
		g.phase = PhaseOver
		g.err = err
		g.logger.Warn("game over", zap.Error(err))
		g.emitLocked(Event{Kind: EventOver, Err: err})
		return err
	}
	if g.phase == PhaseLoading && g.round.Number == 0 {
		g.phase = PhaseIdle
	}
	return err
}

// Play plays the round's snippet. Replays reuse the same window.
func (g *Game) Play() error {
	if err := g.checkPlayable(); err != nil {
		return err
	}
	return g.ctl.Play()
}

// Toggle plays or stops the snippet.
func (g *Game) Toggle() error {
	if err := g.checkPlayable(); err != nil {
		return err
	}
	return g.ctl.Toggle()
}

// Stop interrupts the snippet.
func (g *Game) Stop() error {
	return g.ctl.Stop()
}

func (g *Game) checkPlayable() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	switch g.phase {
	case PhaseIdle:
		return ErrNotStarted
	case PhaseOver:
		return ErrGameOver
	case PhaseLoading:
		return playback.ErrNotReady
	}
	return nil
}

// Guess checks a guess against the round's title. A correct guess scores
// and reveals the round; a wrong one keeps it open.
func (g *Game) Guess(text string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.phase != PhaseGuessing {
		return false, ErrRoundClosed
	}
	if strings.TrimSpace(text) == "" {
		return false, ErrEmptyGuess
	}

	g.round.Guesses = append(g.round.Guesses, text)
	if !g.matcher.Match(text, g.round.Track.Title) {
		g.logger.Debug("wrong guess", zap.Int("round", g.round.Number), zap.Int("guesses", len(g.round.Guesses)))
		return false, nil
	}

	points := g.difficulty.Points()
	g.round.Outcome = OutcomeCorrect
	g.round.Points = points
	g.stats.Score += points
	g.stats.Streak++
	g.stats.BestStreak = max(g.stats.BestStreak, g.stats.Streak)
	g.stats.Correct++
	g.revealLocked()
	return true, nil
}

// Skip reveals the round's track without scoring and breaks the streak.
func (g *Game) Skip() (catalog.Track, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.phase != PhaseGuessing && g.phase != PhaseLoading {
		return catalog.Track{}, ErrRoundClosed
	}
	g.round.Outcome = OutcomeSkipped
	g.stats.Streak = 0
	g.stats.Skipped++
	g.revealLocked()
	return g.round.Track, nil
}

func (g *Game) revealLocked() {
	g.stats.Rounds++
	g.phase = PhaseRevealed
	g.round.Playing = false
	if err := g.ctl.Stop(); err != nil {
		g.logger.Debug("stop on reveal", zap.Error(err))
	}
	g.emitLocked(Event{Kind: EventRevealed})
}

// Suggestions returns pool titles for autocompletion.
func (g *Game) Suggestions(query string) []string {
	return Suggest(g.ctl.PoolTracks(), query, MaxSuggestions)
}

// SearchSuggestions falls back to a catalog search when no pool title
// matches. Queries shorter than MinSearchQuery are not searched.
func (g *Game) SearchSuggestions(ctx context.Context, query string) ([]string, error) {
	if s := g.Suggestions(query); len(s) > 0 {
		return s, nil
	}
	q := strings.TrimSpace(query)
	if len([]rune(q)) < MinSearchQuery {
		return nil, nil
	}
	tracks, err := g.cat.SearchTracks(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("search tracks: %w", err)
	}
	return Suggest(tracks, q, MaxSuggestions), nil
}

// SetDifficulty changes the difficulty. Rejected while a snippet plays.
func (g *Game) SetDifficulty(d Difficulty) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.ctl.SetSnippetDuration(d.SnippetDuration()); err != nil {
		return err
	}
	g.difficulty = d
	return nil
}

// Difficulty returns the current difficulty.
func (g *Game) Difficulty() Difficulty {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.difficulty
}

// Phase returns the current phase.
func (g *Game) Phase() Phase {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.phase
}

// Round returns a copy of the current round.
func (g *Game) Round() Round {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.snapshotRoundLocked()
}

// Stats returns the session score.
func (g *Game) Stats() Stats {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.stats
}

// Context returns the selected catalog context.
func (g *Game) Context() catalog.Context {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.context
}

// Err returns the error that ended the session, if any.
func (g *Game) Err() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.err
}

func (g *Game) snapshotRoundLocked() Round {
	r := g.round
	r.Guesses = append([]string(nil), g.round.Guesses...)
	return r
}

func (g *Game) emitLocked(e Event) {
	e.Phase = g.phase
	e.Round = g.snapshotRoundLocked()
	e.Stats = g.stats
	select {
	case g.events <- e:
	default:
	}
}

func (g *Game) watch(sub *playback.Subscription) {
	defer close(g.done)
	for {
		select {
		case e := <-sub.Ready:
			g.onReady(e)
		case <-sub.Started:
			g.onStarted()
		case e := <-sub.Ended:
			g.onEnded(e)
		case e := <-sub.Error:
			g.onError(e)
		case e := <-sub.StateChanged:
			g.onState(e)
		case <-sub.TrackChanged:
		case <-sub.Done:
			return
		case <-g.stop:
			return
		}
	}
}

// isCurrent reports whether a controller event belongs to the current
// round's load. A track drawn twice in a row gets a new load.
func (g *Game) isCurrent(load uint64) bool {
	return g.round.Number > 0 && load == g.load
}

func (g *Game) onReady(e playback.ReadyEvent) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.isCurrent(e.Load) || g.round.Ready {
		return
	}
	g.round.Ready = true
	g.round.ReadyReason = e.Reason
	if g.phase == PhaseLoading {
		g.phase = PhaseGuessing
	}
	g.emitLocked(Event{Kind: EventReady})
}

func (g *Game) onStarted() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.round.Number == 0 {
		return
	}
	g.round.Playing = true
	g.round.Plays++
	g.emitLocked(Event{Kind: EventStarted})
}

func (g *Game) onState(e playback.StateChange) {
	if e.Previous != playback.StatePlaying || e.Current == playback.StatePlaying {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.round.Playing = false
}

func (g *Game) onEnded(e playback.EndedEvent) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.isCurrent(e.Load) {
		return
	}
	g.round.Playing = false
	g.emitLocked(Event{Kind: EventEnded})
}

func (g *Game) onError(e playback.ErrorEvent) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if e.TrackID != "" && e.TrackID != g.round.Track.ID {
		return
	}
	g.round.LastErr = e.Err
	g.round.Playing = false
	g.logger.Warn("playback error",
		zap.String("op", e.Operation),
		zap.String("track", e.TrackID),
		zap.Error(e.Err))
	g.emitLocked(Event{Kind: EventError, Err: e.Err})
}
