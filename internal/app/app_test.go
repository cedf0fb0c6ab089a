package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/ansi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llehouerou/earworm/internal/auth"
	"github.com/llehouerou/earworm/internal/catalog"
	"github.com/llehouerou/earworm/internal/errmsg"
	"github.com/llehouerou/earworm/internal/game"
	"github.com/llehouerou/earworm/internal/playback"
	"github.com/llehouerou/earworm/internal/player"
)

var testTrack = catalog.Track{ID: "1", Title: "Hey Jude", Artist: "The Beatles", PreviewURL: "https://example.com/1.m4a"}

// fakeGame records calls and serves canned snapshots.
type fakeGame struct {
	phase      game.Phase
	round      game.Round
	stats      game.Stats
	difficulty game.Difficulty
	context    catalog.Context

	startCtx    catalog.Context
	startErr    error
	guesses     []string
	guessOK     bool
	toggles     int
	stops       int
	nextRounds  int
	toggleErr   error
	diffErr     error
	suggestions []string

	searchResults []string
	searchErr     error
	searches      []string

	events chan game.Event
	done   chan struct{}
}

func newFakeGame() *fakeGame {
	return &fakeGame{
		phase:  game.PhaseGuessing,
		round:  game.Round{Number: 1, Track: testTrack, Ready: true},
		events: make(chan game.Event, 8),
		done:   make(chan struct{}),
	}
}

func (f *fakeGame) Start(_ context.Context, cc catalog.Context) error {
	f.startCtx = cc
	if f.startErr != nil {
		return f.startErr
	}
	f.context = cc
	return nil
}

func (f *fakeGame) NextRound() error {
	f.nextRounds++
	f.phase = game.PhaseLoading
	f.round = game.Round{Number: f.round.Number + 1, Track: testTrack}
	return nil
}

func (f *fakeGame) Play() error { return f.Toggle() }

func (f *fakeGame) Toggle() error {
	f.toggles++
	return f.toggleErr
}

func (f *fakeGame) Stop() error {
	f.stops++
	return nil
}

func (f *fakeGame) Guess(text string) (bool, error) {
	if f.phase != game.PhaseGuessing {
		return false, game.ErrRoundClosed
	}
	if strings.TrimSpace(text) == "" {
		return false, game.ErrEmptyGuess
	}
	f.guesses = append(f.guesses, text)
	if f.guessOK {
		f.phase = game.PhaseRevealed
		f.round.Outcome = game.OutcomeCorrect
		f.round.Points = 100
		f.stats.Score += 100
	}
	return f.guessOK, nil
}

func (f *fakeGame) Skip() (catalog.Track, error) {
	if f.phase != game.PhaseGuessing {
		return catalog.Track{}, game.ErrRoundClosed
	}
	f.phase = game.PhaseRevealed
	f.round.Outcome = game.OutcomeSkipped
	return f.round.Track, nil
}

func (f *fakeGame) Suggestions(string) []string { return f.suggestions }

func (f *fakeGame) SearchSuggestions(_ context.Context, query string) ([]string, error) {
	f.searches = append(f.searches, query)
	return f.searchResults, f.searchErr
}

func (f *fakeGame) SetDifficulty(d game.Difficulty) error {
	if f.diffErr != nil {
		return f.diffErr
	}
	f.difficulty = d
	return nil
}

func (f *fakeGame) Difficulty() game.Difficulty { return f.difficulty }
func (f *fakeGame) Phase() game.Phase { return f.phase }
func (f *fakeGame) Round() game.Round { return f.round }
func (f *fakeGame) Stats() game.Stats { return f.stats }
func (f *fakeGame) Context() catalog.Context { return f.context }
func (f *fakeGame) Events() <-chan game.Event { return f.events }
func (f *fakeGame) Done() <-chan struct{} { return f.done }

type fakeFinder struct {
	artists []catalog.Artist
	err     error
}

func (f fakeFinder) SearchArtists(context.Context, string) ([]catalog.Artist, error) {
	return f.artists, f.err
}

func newTestModel(g *fakeGame) Model {
	return New(Options{Game: g, Target: Target{Kind: catalog.KindChart}, Source: "itunes"})
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	nm, ok := next.(Model)
	require.True(t, ok)
	return nm, cmd
}

func typeText(t *testing.T, m Model, text string) Model {
	t.Helper()
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(text)})
	return m
}

func TestStartCmd_Chart(t *testing.T) {
	g := newFakeGame()
	m := newTestModel(g)

	msg := m.StartCmd()()

	assert.Equal(t, StartedMsg{Context: catalog.ChartContext()}, msg)
	assert.Equal(t, catalog.ChartContext(), g.startCtx)
}

func TestStartCmd_ResolvesArtist(t *testing.T) {
	g := newFakeGame()
	m := New(Options{
		Game:   g,
		Finder: fakeFinder{artists: []catalog.Artist{{ID: "136975", Name: "The Beatles"}, {ID: "2", Name: "Beatles Tribute"}}},
		Target: Target{Kind: catalog.KindArtist, ArtistQuery: "beatles"},
	})

	msg := m.StartCmd()()

	assert.Equal(t, StartedMsg{Context: catalog.ArtistContext("136975", "The Beatles")}, msg)
}

func TestStartCmd_ArtistNotFound(t *testing.T) {
	m := New(Options{
		Game:   newFakeGame(),
		Finder: fakeFinder{},
		Target: Target{Kind: catalog.KindArtist, ArtistQuery: "nobody"},
	})

	msg := m.StartCmd()()

	failed, ok := msg.(StartFailedMsg)
	require.True(t, ok)
	assert.ErrorIs(t, failed.Err, ErrArtistNotFound)
	assert.Equal(t, errmsg.OpArtistSearch, failed.Op)
}

func TestFailureOp(t *testing.T) {
	tests := []struct {
		name string
		kind catalog.Kind
		err  error
		want errmsg.Op
	}{
		{"unauthenticated", catalog.KindChart, fmt.Errorf("list: %w", auth.ErrUnauthenticated), errmsg.OpAuthenticate},
		{"load failure", catalog.KindChart, player.ErrLoadFailure, errmsg.OpTrackLoad},
		{"artist", catalog.KindArtist, errors.New("boom"), errmsg.OpArtistSearch},
		{"chart", catalog.KindChart, catalog.ErrNoPlayableTracks, errmsg.OpChartLoad},
		{"library", catalog.KindLibrary, errors.New("boom"), errmsg.OpLibraryScan},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, failureOp(tt.kind, tt.err))
		})
	}
}

func TestStartFailed_ShowsError(t *testing.T) {
	m := newTestModel(newFakeGame())

	m, _ = update(t, m, StartFailedMsg{Err: catalog.ErrNoPlayableTracks})

	assert.False(t, m.starting)
	assert.Equal(t, FeedbackError, m.feedback.Kind)
	assert.Contains(t, m.feedback.Text, "no playable tracks")
}

func TestGuess_Correct(t *testing.T) {
	g := newFakeGame()
	g.guessOK = true
	m := newTestModel(g)

	m = typeText(t, m, "hey jude")
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})

	assert.Equal(t, []string{"hey jude"}, g.guesses)
	assert.Equal(t, FeedbackSuccess, m.feedback.Kind)
	assert.Contains(t, m.feedback.Text, "+100")
	assert.Empty(t, m.input.Value())
	assert.Equal(t, game.PhaseRevealed, m.phase)
}

func TestGuess_Wrong(t *testing.T) {
	g := newFakeGame()
	m := newTestModel(g)

	m = typeText(t, m, "yesterday")
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})

	assert.Equal(t, FeedbackWarning, m.feedback.Kind)
	assert.Contains(t, m.feedback.Text, "yesterday")
	assert.Equal(t, game.PhaseGuessing, m.phase)
}

func TestGuess_EmptyIsIgnored(t *testing.T) {
	g := newFakeGame()
	m := newTestModel(g)

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})

	assert.Empty(t, g.guesses)
	assert.Empty(t, m.feedback.Text)
}

func TestEnterAfterRevealStartsNextRound(t *testing.T) {
	g := newFakeGame()
	m := newTestModel(g)

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlS})
	require.Equal(t, game.PhaseRevealed, m.phase)
	assert.Contains(t, m.feedback.Text, "Hey Jude")

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})

	assert.Equal(t, 1, g.nextRounds)
	assert.Equal(t, game.PhaseLoading, m.phase)
	assert.Equal(t, 2, m.round.Number)
}

func TestTick_StopsWhenPlaybackStops(t *testing.T) {
	g := newFakeGame()
	g.round.Playing = true
	m := newTestModel(g)
	m, _ = update(t, m, StartedMsg{Context: catalog.ChartContext()})

	_, cmd := update(t, m, TickMsg(time.Now()))
	assert.NotNil(t, cmd)

	g.round.Playing = false
	m, cmd = update(t, m, TickMsg(time.Now()))
	assert.Nil(t, cmd)
	assert.False(t, m.round.Playing)
}

func TestSuggestions_CatalogSearch(t *testing.T) {
	g := newFakeGame()
	g.searchResults = []string{"Let It Be"}
	m := newTestModel(g)
	m, _ = update(t, m, StartedMsg{Context: catalog.ChartContext()})

	m = typeText(t, m, "let")
	assert.Empty(t, m.suggestions)

	msg := m.SearchCmd("let")()
	assert.Equal(t, SuggestionsMsg{Query: "let", Titles: []string{"Let It Be"}}, msg)
	assert.Equal(t, []string{"let"}, g.searches)

	// Results for an older query are dropped
	m, _ = update(t, m, SuggestionsMsg{Query: "le", Titles: []string{"Stale"}})
	assert.Empty(t, m.suggestions)

	m, _ = update(t, m, msg)
	assert.Equal(t, []string{"Let It Be"}, m.suggestions)

	m, _ = update(t, m, SuggestionsMsg{Query: "let", Err: errors.New("timeout")})
	assert.Equal(t, FeedbackWarning, m.feedback.Kind)
	assert.Contains(t, m.feedback.Text, "search tracks")
}

func TestSuggestions(t *testing.T) {
	g := newFakeGame()
	g.suggestions = []string{"Hey Jude", "Help!", "Here Comes the Sun"}
	m := newTestModel(g)

	m = typeText(t, m, "he")
	require.Len(t, m.suggestions, 3)

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyDown})
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyDown})
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyDown})
	assert.Equal(t, 2, m.cursor)
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyUp})
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyTab})

	assert.Equal(t, "Help!", m.input.Value())
	assert.Empty(t, m.suggestions)
}

func TestEscClearsGuess(t *testing.T) {
	g := newFakeGame()
	g.suggestions = []string{"Hey Jude"}
	m := newTestModel(g)
	m = typeText(t, m, "hey")

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEsc})

	assert.Empty(t, m.input.Value())
	assert.Empty(t, m.suggestions)
}

func TestTogglePlayback(t *testing.T) {
	g := newFakeGame()
	m := newTestModel(g)

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlP})
	assert.Equal(t, 1, g.toggles)
	assert.Empty(t, m.feedback.Text)

	g.toggleErr = playback.ErrNotReady
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlP})
	assert.Equal(t, FeedbackInfo, m.feedback.Kind)
	assert.Contains(t, m.feedback.Text, "loading")
}

func TestCycleDifficulty(t *testing.T) {
	g := newFakeGame()
	m := newTestModel(g)

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlD})
	assert.Equal(t, game.Medium, g.difficulty)
	assert.Equal(t, game.Medium, m.difficulty)

	g.diffErr = playback.ErrPlaying
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlD})
	assert.Equal(t, game.Medium, m.difficulty)
	assert.Equal(t, FeedbackWarning, m.feedback.Kind)
}

func TestQuit(t *testing.T) {
	m := newTestModel(newFakeGame())

	_, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyCtrlC})

	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestGameEvents(t *testing.T) {
	g := newFakeGame()
	m := newTestModel(g)
	m, _ = update(t, m, StartedMsg{Context: catalog.ChartContext()})
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	g.round.Playing = true
	g.round.Plays = 1
	m, cmd := update(t, m, GameEventMsg{Kind: game.EventStarted})
	assert.NotNil(t, cmd)
	assert.Equal(t, now, m.playStarted)
	assert.True(t, m.round.Playing)

	g.round.Playing = false
	m, _ = update(t, m, GameEventMsg{Kind: game.EventEnded})
	assert.True(t, m.playStarted.IsZero())
	assert.False(t, m.round.Playing)

	g.phase = game.PhaseOver
	m, _ = update(t, m, GameEventMsg{Kind: game.EventOver, Err: catalog.ErrNoPlayableTracks})
	assert.Equal(t, FeedbackError, m.feedback.Kind)
	assert.Contains(t, ansi.Strip(m.View()), "Game over")
}

func TestWatchGameEvents(t *testing.T) {
	g := newFakeGame()
	m := newTestModel(g)

	g.events <- game.Event{Kind: game.EventReady}
	assert.Equal(t, GameEventMsg{Kind: game.EventReady}, m.WatchGameEvents()())

	close(g.done)
	assert.Equal(t, GameClosedMsg{}, m.WatchGameEvents()())
}

func TestView(t *testing.T) {
	g := newFakeGame()
	g.stats = game.Stats{Score: 12500, Streak: 3, BestStreak: 4, Rounds: 7, Correct: 5, Skipped: 2}
	m := newTestModel(g)
	m, _ = update(t, m, StartedMsg{Context: catalog.ChartContext()})
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 80, Height: 24})

	view := ansi.Strip(m.View())

	assert.Contains(t, view, "earworm")
	assert.Contains(t, view, "Top Charts · easy · itunes")
	assert.Contains(t, view, "Round 1")
	assert.Contains(t, view, "___ ____")
	assert.Contains(t, view, "Score 12,500")
	assert.Contains(t, view, "5/7 correct")
	assert.Contains(t, view, "2 skipped")
	assert.NotContains(t, view, "Hey Jude")
}

func TestView_Revealed(t *testing.T) {
	g := newFakeGame()
	m := newTestModel(g)
	m, _ = update(t, m, StartedMsg{Context: catalog.ChartContext()})

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlS})
	view := ansi.Strip(m.View())

	assert.Contains(t, view, "Skipped")
	assert.Contains(t, view, "The Beatles")
}

func TestView_Help(t *testing.T) {
	m := newTestModel(newFakeGame())

	assert.Contains(t, ansi.Strip(m.View()), "ctrl+p/f5 play")

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyF1})
	view := ansi.Strip(m.View())
	assert.Contains(t, view, "Use suggestion")
	assert.Contains(t, view, "Cycle difficulty")
}

func TestNextRoundError(t *testing.T) {
	g := &errGame{fakeGame: newFakeGame(), err: errors.New("boom")}
	m := New(Options{Game: g})

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlN})

	assert.Equal(t, FeedbackError, m.feedback.Kind)
	assert.Contains(t, m.feedback.Text, "boom")
}

type errGame struct {
	*fakeGame
	err error
}

func (e *errGame) NextRound() error { return e.err }
