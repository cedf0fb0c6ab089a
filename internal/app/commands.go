package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/llehouerou/earworm/internal/auth"
	"github.com/llehouerou/earworm/internal/catalog"
	"github.com/llehouerou/earworm/internal/errmsg"
	"github.com/llehouerou/earworm/internal/player"
)

// ErrArtistNotFound is returned when an artist query matches nothing.
var ErrArtistNotFound = errors.New("artist not found")

const (
	startTimeout = 2 * time.Minute // covers a full library scan
	tickInterval  = 100 * time.Millisecond
	searchTimeout = 5 * time.Second
)

// Target is the catalog context requested on the command line.
type Target struct {
	Kind        catalog.Kind
	ArtistQuery string // KindArtist only
}

// TickCmd returns a command that sends TickMsg after tickInterval.
func TickCmd() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// WatchGameEvents returns a command that waits for the next game event.
func (m Model) WatchGameEvents() tea.Cmd {
	events, done := m.game.Events(), m.game.Done()
	return func() tea.Msg {
		select {
		case e := <-events:
			return GameEventMsg(e)
		case <-done:
			return GameClosedMsg{}
		}
	}
}

// StartCmd resolves the target and starts the game on it.
func (m Model) StartCmd() tea.Cmd {
	g, finder, target := m.game, m.finder, m.target
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), startTimeout)
		defer cancel()

		cc, err := resolveTarget(ctx, finder, target)
		if err != nil {
			return StartFailedMsg{Op: failureOp(catalog.KindArtist, err), Err: err}
		}
		if err := g.Start(ctx, cc); err != nil {
			return StartFailedMsg{Op: failureOp(cc.Kind, err), Err: err}
		}
		return StartedMsg{Context: cc}
	}
}

// SearchCmd looks up suggestions for query in the catalog.
func (m Model) SearchCmd(query string) tea.Cmd {
	g := m.game
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), searchTimeout)
		defer cancel()
		titles, err := g.SearchSuggestions(ctx, query)
		return SuggestionsMsg{Query: query, Titles: titles, Err: err}
	}
}

func resolveTarget(ctx context.Context, finder ArtistFinder, t Target) (catalog.Context, error) {
	switch t.Kind {
	case catalog.KindChart:
		return catalog.ChartContext(), nil
	case catalog.KindLibrary:
		return catalog.LibraryContext(), nil
	case catalog.KindArtist:
	default:
		return catalog.Context{}, fmt.Errorf("unknown target kind %d", t.Kind)
	}

	if finder == nil {
		return catalog.Context{}, fmt.Errorf("%w: %q", ErrArtistNotFound, t.ArtistQuery)
	}
	artists, err := finder.SearchArtists(ctx, t.ArtistQuery)
	if err != nil {
		return catalog.Context{}, err
	}
	if len(artists) == 0 {
		return catalog.Context{}, fmt.Errorf("%w: %q", ErrArtistNotFound, t.ArtistQuery)
	}
	return catalog.ArtistContext(artists[0].ID, artists[0].Name), nil
}

// failureOp names the operation a start or round error belongs to.
func failureOp(kind catalog.Kind, err error) errmsg.Op {
	switch {
	case errors.Is(err, auth.ErrUnauthenticated):
		return errmsg.OpAuthenticate
	case errors.Is(err, player.ErrLoadFailure):
		return errmsg.OpTrackLoad
	}
	switch kind {
	case catalog.KindArtist:
		return errmsg.OpArtistSearch
	case catalog.KindChart:
		return errmsg.OpChartLoad
	case catalog.KindLibrary:
		return errmsg.OpLibraryScan
	default:
		return errmsg.OpCatalogLoad
	}
}
