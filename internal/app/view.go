package app

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/llehouerou/earworm/internal/game"
	"github.com/llehouerou/earworm/internal/keymap"
	"github.com/llehouerou/earworm/internal/player"
	"github.com/llehouerou/earworm/internal/ui/render"
	"github.com/llehouerou/earworm/internal/ui/snippetbar"
	"github.com/llehouerou/earworm/internal/ui/styles"
)

const (
	maxPanelWidth      = 72
	visibleSuggestions = 5
)

// View renders the game screen.
func (m Model) View() string {
	s := styles.T().S()
	width := m.panelWidth()

	var b strings.Builder
	b.WriteString(render.Center(styles.Banner("earworm"), width) + "\n")
	b.WriteString(render.Center(s.Muted.Render(m.headerLine()), width) + "\n\n")

	panel := styles.PanelStyle(m.round.Playing).Width(width - 2)
	b.WriteString(panel.Render(m.renderRound(width-4)) + "\n")

	if m.feedback.Text != "" {
		b.WriteString(" " + m.renderFeedback(width-2) + "\n")
	}
	b.WriteString(" " + m.renderScore() + "\n")
	if m.bridgeURL != "" && m.phase != game.PhaseOver {
		b.WriteString(" " + s.Subtle.Render("Playback runs in your browser: open "+m.bridgeURL) + "\n")
	}
	b.WriteString("\n" + m.renderHelp(width))
	return b.String()
}

func (m Model) panelWidth() int {
	return max(min(m.width, maxPanelWidth), 20)
}

func (m Model) headerLine() string {
	name := "starting"
	if !m.starting {
		name = m.context.DisplayName()
	}
	parts := []string{name, m.difficulty.String()}
	if m.source != "" {
		parts = append(parts, m.source)
	}
	return strings.Join(parts, " · ")
}

func (m Model) renderRound(width int) string {
	s := styles.T().S()

	if m.starting {
		return m.spinner.View() + " Loading tracks..."
	}
	switch m.phase {
	case game.PhaseIdle:
		return s.Muted.Render("No round yet.")
	case game.PhaseOver:
		return s.Error.Render("Game over.") + "\n" + s.Muted.Render("Press ctrl+c to quit.")
	}

	lines := []string{s.Title.Render(fmt.Sprintf("Round %d", m.round.Number))}

	switch m.phase {
	case game.PhaseLoading:
		lines = append(lines, m.spinner.View()+" Loading track...")
	case game.PhaseRevealed:
		lines = append(lines, m.renderReveal(width))
	default:
		lines = append(lines, m.renderSnippet(width))
		lines = append(lines, s.Subtle.Render("Title: ")+s.Base.Render(render.Truncate(render.Mask(m.round.Track.Title), width-7)))
	}

	if m.phase != game.PhaseRevealed {
		lines = append(lines, "", m.input.View())
		lines = append(lines, m.renderSuggestions(width)...)
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderSnippet(width int) string {
	s := styles.T().S()
	length := m.difficulty.SnippetDuration()

	if m.round.Playing && !m.playStarted.IsZero() {
		return s.Playing.Render(snippetbar.Render(m.now().Sub(m.playStarted), length, width, true))
	}
	status := "Ready. ctrl+p to play"
	if m.round.Plays > 0 {
		status = fmt.Sprintf("Played %d×. ctrl+p to replay", m.round.Plays)
	}
	if m.round.ReadyReason == player.ReadyLoadError {
		status = "Preview unavailable. ctrl+s to skip"
	}
	return s.Muted.Render(render.Truncate(status, width))
}

func (m Model) renderReveal(width int) string {
	s := styles.T().S()
	t := m.round.Track

	mark := s.Warning.Render("↷ Skipped")
	if m.round.Outcome == game.OutcomeCorrect {
		mark = s.Success.Render(fmt.Sprintf("✓ +%d", m.round.Points))
	}
	title := s.Title.Render(render.Truncate(t.Title, width))
	artist := s.Muted.Render(render.Truncate(t.Artist, width))
	return mark + "\n" + title + "\n" + artist + "\n\n" + s.Subtle.Render("enter: next round")
}

func (m Model) renderSuggestions(width int) []string {
	if len(m.suggestions) == 0 {
		return nil
	}
	s := styles.T().S()

	// Keep the cursor inside the visible window
	start := 0
	if m.cursor >= visibleSuggestions {
		start = m.cursor - visibleSuggestions + 1
	}
	end := min(start+visibleSuggestions, len(m.suggestions))

	lines := make([]string, 0, end-start)
	for i := start; i < end; i++ {
		text := "  " + render.Truncate(m.suggestions[i], width-2)
		if i == m.cursor {
			lines = append(lines, s.Cursor.Render(text))
			continue
		}
		lines = append(lines, s.Muted.Render(text))
	}
	return lines
}

func (m Model) renderFeedback(width int) string {
	s := styles.T().S()
	text := render.Truncate(m.feedback.Text, width)
	switch m.feedback.Kind {
	case FeedbackSuccess:
		return s.Success.Render(text)
	case FeedbackWarning:
		return s.Warning.Render(text)
	case FeedbackError:
		return s.Error.Render(text)
	default:
		return s.Base.Render(text)
	}
}

func (m Model) renderScore() string {
	s := styles.T().S()
	st := m.stats

	score := s.Score.Render("Score " + humanize.Comma(int64(st.Score)))
	parts := []string{
		score,
		fmt.Sprintf("streak %d (best %d)", st.Streak, st.BestStreak),
		fmt.Sprintf("%d/%d correct", st.Correct, st.Rounds),
	}
	if st.Skipped > 0 {
		parts = append(parts, fmt.Sprintf("%d skipped", st.Skipped))
	}
	return strings.Join(parts, s.Subtle.Render(" · "))
}

func (m Model) renderHelp(width int) string {
	s := styles.T().S()

	if !m.showHelp {
		short := []struct {
			action keymap.Action
			label  string
		}{
			{keymap.ActionPlayPause, "play"},
			{keymap.ActionSkip, "skip"},
			{keymap.ActionNextRound, "next"},
			{keymap.ActionDifficulty, "difficulty"},
			{keymap.ActionHelp, "help"},
			{keymap.ActionQuit, "quit"},
		}
		parts := make([]string, 0, len(short))
		for _, h := range short {
			if keys := m.keys.Label(h.action); keys != "" {
				parts = append(parts, keys+" "+h.label)
			}
		}
		return s.Subtle.Render(render.Truncate(" "+strings.Join(parts, " · "), width))
	}

	var lines []string
	for _, ctx := range []string{"round", "playback", "global"} {
		lines = append(lines, s.Title.Render(" "+ctx))
		for _, b := range keymap.ByContext(ctx) {
			keys := lipgloss.NewStyle().Width(16).Render(strings.Join(b.Keys, ", "))
			lines = append(lines, "   "+s.Playing.Render(keys)+s.Muted.Render(b.Description))
		}
	}
	return strings.Join(lines, "\n")
}
