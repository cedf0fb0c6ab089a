package snippetbar

import (
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/lipgloss"
)

func TestRender_Width(t *testing.T) {
	got := Render(500*time.Millisecond, time.Second, 40, true)

	if w := lipgloss.Width(got); w != 40 {
		t.Errorf("width = %d, want 40 (%q)", w, got)
	}
	if !strings.HasPrefix(got, "▶  0.5s  ") || !strings.HasSuffix(got, "  1.0s") {
		t.Errorf("unexpected layout %q", got)
	}
}

func TestRender_HalfFilled(t *testing.T) {
	// 40 - (1+2+4+2+2+4) = 25 cells of bar
	got := Render(500*time.Millisecond, time.Second, 40, true)

	if n := strings.Count(got, filledBlock); n != 12 {
		t.Errorf("filled = %d, want 12", n)
	}
	if n := strings.Count(got, emptyBlock); n != 13 {
		t.Errorf("empty = %d, want 13", n)
	}
}

func TestRender_ClampsElapsed(t *testing.T) {
	got := Render(3*time.Second, time.Second, 40, false)

	if strings.Contains(got, emptyBlock) {
		t.Errorf("expected a full bar, got %q", got)
	}
	if !strings.HasPrefix(got, "■  1.0s") {
		t.Errorf("expected stopped status and clamped time, got %q", got)
	}
}

func TestRender_Narrow(t *testing.T) {
	got := Render(0, 5*time.Second, 10, true)

	if got != "▶  0.0s / 5.0s" {
		t.Errorf("Render narrow = %q", got)
	}
}

func TestRender_ZeroLength(t *testing.T) {
	got := Render(0, 0, 30, false)

	if strings.Contains(got, filledBlock) {
		t.Errorf("zero length must not fill the bar: %q", got)
	}
}
