// Package snippetbar renders the snippet progress line.
package snippetbar

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

var (
	filledBlock = "▓"
	emptyBlock  = "░"
)

// MinWidth is the narrowest width that still draws a bar.
const MinWidth = 3

// Render renders a block-style progress bar for a snippet.
// Format: ▶  0.4s  ▓▓▓▓▓░░░░░  1.0s
func Render(elapsed, length time.Duration, width int, playing bool) string {
	status := "▶"
	if !playing {
		status = "■"
	}
	elapsed = min(max(elapsed, 0), length)

	posStr := formatSeconds(elapsed)
	lenStr := formatSeconds(length)

	fixedWidth := lipgloss.Width(status) + 2 + lipgloss.Width(posStr) + 2 + 2 + lipgloss.Width(lenStr)
	barWidth := width - fixedWidth

	if barWidth < MinWidth {
		return status + "  " + posStr + " / " + lenStr
	}

	var ratio float64
	if length > 0 {
		ratio = float64(elapsed) / float64(length)
	}
	filled := min(int(float64(barWidth)*ratio), barWidth)

	bar := strings.Repeat(filledBlock, filled) + strings.Repeat(emptyBlock, barWidth-filled)

	return status + "  " + posStr + "  " + bar + "  " + lenStr
}

// formatSeconds formats snippet-scale durations with one decimal.
func formatSeconds(d time.Duration) string {
	return fmt.Sprintf("%.1fs", d.Seconds())
}
