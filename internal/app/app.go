package app

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/llehouerou/earworm/internal/auth"
	"github.com/llehouerou/earworm/internal/catalog"
	"github.com/llehouerou/earworm/internal/errmsg"
	"github.com/llehouerou/earworm/internal/game"
	"github.com/llehouerou/earworm/internal/keymap"
	"github.com/llehouerou/earworm/internal/playback"
	"github.com/llehouerou/earworm/internal/player"
	"github.com/llehouerou/earworm/internal/ui/styles"
)

const (
	defaultWidth = 80
	inputLimit   = 120
)

// Options configures the game screen.
type Options struct {
	Game   GameController
	Finder ArtistFinder
	Target Target
	// Source is the catalog name shown in the header.
	Source string
	// BridgeURL is the page to open for embedded playback, if any.
	BridgeURL string
}

// Model is the game screen.
type Model struct {
	game      GameController
	finder    ArtistFinder
	target    Target
	keys      *keymap.Resolver
	source    string
	bridgeURL string

	input   textinput.Model
	spinner spinner.Model

	// Snapshot of the game, refreshed after every interaction and event
	phase      game.Phase
	round      game.Round
	stats      game.Stats
	difficulty game.Difficulty
	context    catalog.Context

	starting    bool
	suggestions []string
	cursor      int
	feedback    FeedbackMsg
	showHelp    bool
	playStarted time.Time
	now         func() time.Time

	width, height int
}

// New creates the game screen.
func New(opts Options) Model {
	ti := textinput.New()
	ti.Placeholder = "Type the song title..."
	ti.Prompt = "> "
	ti.CharLimit = inputLimit
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styles.T().S().Playing

	m := Model{
		game:      opts.Game,
		finder:    opts.Finder,
		target:    opts.Target,
		keys:      keymap.NewResolver(keymap.Bindings),
		source:    opts.Source,
		bridgeURL: opts.BridgeURL,
		input:     ti,
		spinner:   sp,
		starting:  true,
		now:       time.Now,
		width:     defaultWidth,
	}
	m.sync()
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick, m.StartCmd(), m.WatchGameEvents())
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.input.Width = max(m.panelWidth()-6, 10)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case StartedMsg:
		m.starting = false
		m.context = msg.Context
		m.sync()
		return m, nil

	case StartFailedMsg:
		m.starting = false
		m.sync()
		op := msg.Op
		if op == "" {
			op = errmsg.OpCatalogLoad
		}
		m.setFeedback(FeedbackError, errmsg.Format(op, msg.Err))
		return m, nil

	case SuggestionsMsg:
		// Results for an older query are dropped
		if msg.Query != m.input.Value() {
			return m, nil
		}
		if msg.Err != nil {
			m.setFeedback(FeedbackWarning, errmsg.Format(errmsg.OpTrackSearch, msg.Err))
			return m, nil
		}
		m.suggestions = msg.Titles
		m.cursor = 0
		return m, nil

	case GameEventMsg:
		cmd := m.handleGameEvent(game.Event(msg))
		return m, tea.Batch(cmd, m.WatchGameEvents())

	case GameClosedMsg:
		return m, nil

	case FeedbackMsg:
		m.feedback = msg
		return m, nil

	case TickMsg:
		// Playback can stop without a game event (remote pause)
		m.sync()
		if m.round.Playing {
			return m, TickCmd()
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.keys.Resolve(msg.String()) {
	case keymap.ActionQuit:
		return m, tea.Quit
	case keymap.ActionHelp:
		m.showHelp = !m.showHelp
		return m, nil
	case keymap.ActionDifficulty:
		return m.cycleDifficulty()
	case keymap.ActionPlayPause:
		return m.togglePlayback()
	case keymap.ActionStop:
		if err := m.game.Stop(); err != nil {
			m.setFeedback(FeedbackError, errmsg.Format(errmsg.OpPlaybackStop, err))
		}
		m.sync()
		return m, nil
	case keymap.ActionSubmit:
		return m.submit()
	case keymap.ActionSkip:
		return m.skip()
	case keymap.ActionNextRound:
		return m.nextRound()
	case keymap.ActionAcceptSuggest:
		if m.cursor < len(m.suggestions) {
			m.input.SetValue(m.suggestions[m.cursor])
			m.input.CursorEnd()
			m.suggestions = nil
			m.cursor = 0
		}
		return m, nil
	case keymap.ActionSuggestUp:
		if m.cursor > 0 {
			m.cursor--
		}
		return m, nil
	case keymap.ActionSuggestDown:
		if m.cursor < len(m.suggestions)-1 {
			m.cursor++
		}
		return m, nil
	case keymap.ActionClearGuess:
		m.clearInput()
		return m, nil
	}

	var cmd tea.Cmd
	prev := m.input.Value()
	m.input, cmd = m.input.Update(msg)
	if value := m.input.Value(); value != prev {
		m.suggestions = m.game.Suggestions(value)
		m.cursor = 0
		if len(m.suggestions) == 0 && utf8.RuneCountInString(strings.TrimSpace(value)) >= game.MinSearchQuery {
			cmd = tea.Batch(cmd, m.SearchCmd(value))
		}
	}
	return m, cmd
}

func (m Model) submit() (tea.Model, tea.Cmd) {
	switch m.phase {
	case game.PhaseRevealed:
		return m.nextRound()
	case game.PhaseLoading:
		m.setFeedback(FeedbackInfo, "Still loading the track...")
		return m, nil
	case game.PhaseGuessing:
	default:
		return m, nil
	}

	ok, err := m.game.Guess(m.input.Value())
	m.sync()
	switch {
	case errors.Is(err, game.ErrEmptyGuess):
		return m, nil
	case err != nil:
		m.setFeedback(FeedbackError, err.Error())
	case ok:
		m.setFeedback(FeedbackSuccess, fmt.Sprintf("Correct! +%d points. Press enter for the next round.", m.round.Points))
		m.clearInput()
	default:
		m.setFeedback(FeedbackWarning, fmt.Sprintf("%q is not it. Try again.", m.input.Value()))
		m.clearInput()
	}
	return m, nil
}

func (m Model) skip() (tea.Model, tea.Cmd) {
	track, err := m.game.Skip()
	if err != nil {
		if !errors.Is(err, game.ErrRoundClosed) {
			m.setFeedback(FeedbackError, err.Error())
		}
		return m, nil
	}
	m.sync()
	m.clearInput()
	m.setFeedback(FeedbackWarning, fmt.Sprintf("It was %q by %s. Press enter for the next round.", track.Title, track.Artist))
	return m, nil
}

func (m Model) nextRound() (tea.Model, tea.Cmd) {
	if err := m.game.NextRound(); err != nil {
		m.setFeedback(FeedbackError, errmsg.Format(errmsg.OpRoundStart, err))
		m.sync()
		return m, nil
	}
	m.sync()
	m.clearInput()
	m.feedback = FeedbackMsg{}
	return m, m.spinner.Tick
}

func (m Model) togglePlayback() (tea.Model, tea.Cmd) {
	err := m.game.Toggle()
	switch {
	case errors.Is(err, playback.ErrNotReady):
		m.setFeedback(FeedbackInfo, "Still loading the track...")
	case errors.Is(err, game.ErrNotStarted):
		m.setFeedback(FeedbackInfo, "Waiting for the track list...")
	case err != nil:
		m.setFeedback(FeedbackError, errmsg.Format(errmsg.OpPlaybackStart, err))
	}
	m.sync()
	return m, nil
}

func (m Model) cycleDifficulty() (tea.Model, tea.Cmd) {
	next := m.difficulty.Next()
	err := m.game.SetDifficulty(next)
	switch {
	case errors.Is(err, playback.ErrPlaying):
		m.setFeedback(FeedbackWarning, "Stop the snippet before changing difficulty.")
	case err != nil:
		m.setFeedback(FeedbackError, errmsg.Format(errmsg.OpDifficulty, err))
	default:
		m.setFeedback(FeedbackInfo, fmt.Sprintf("Difficulty: %s (%s snippets, %d points)",
			next, next.SnippetDuration(), next.Points()))
	}
	m.sync()
	return m, nil
}

func (m *Model) handleGameEvent(e game.Event) tea.Cmd {
	m.sync()

	switch e.Kind {
	case game.EventRound:
		m.playStarted = time.Time{}
		return m.spinner.Tick
	case game.EventReady:
		if e.Round.ReadyReason == player.ReadyLoadError {
			m.setFeedback(FeedbackWarning, "The preview failed to load. Skip or try to play anyway.")
		} else if m.feedback.Kind != FeedbackSuccess {
			m.setFeedback(FeedbackInfo, "Ready. Press ctrl+p to hear the snippet.")
		}
	case game.EventStarted:
		m.playStarted = m.now()
		return TickCmd()
	case game.EventEnded:
		m.playStarted = time.Time{}
	case game.EventError:
		op := errmsg.OpPlaybackStart
		if errors.Is(e.Err, player.ErrLoadFailure) {
			op = errmsg.OpTrackLoad
		}
		m.setFeedback(FeedbackError, errmsg.Format(op, e.Err))
	case game.EventOver:
		op := errmsg.OpRoundStart
		if errors.Is(e.Err, auth.ErrUnauthenticated) {
			op = errmsg.OpAuthenticate
		}
		m.setFeedback(FeedbackError, errmsg.Format(op, e.Err))
	}
	return nil
}

// sync refreshes the game snapshot.
func (m *Model) sync() {
	m.phase = m.game.Phase()
	m.round = m.game.Round()
	m.stats = m.game.Stats()
	m.difficulty = m.game.Difficulty()
}

func (m *Model) setFeedback(kind FeedbackKind, text string) {
	m.feedback = FeedbackMsg{Text: text, Kind: kind}
}

func (m *Model) clearInput() {
	m.input.Reset()
	m.suggestions = nil
	m.cursor = 0
}
