package styles

import (
	"image/color"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/rivo/uniseg"
)

// Banner renders the application title with the theme gradient.
func Banner(text string) string {
	return ApplyBoldGradient(text, T().Primary, T().Secondary)
}

// ApplyBoldGradient renders bold text with a horizontal color gradient.
func ApplyBoldGradient(text string, from, to lipgloss.Color) string {
	if text == "" {
		return ""
	}

	// Grapheme clusters keep emoji and combined characters in one color
	var clusters []string
	gr := uniseg.NewGraphemes(text)
	for gr.Next() {
		clusters = append(clusters, gr.Str())
	}

	if len(clusters) == 1 {
		return lipgloss.NewStyle().Foreground(from).Bold(true).Render(text)
	}

	colors := blendColors(len(clusters), from, to)

	var b strings.Builder
	for i, cluster := range clusters {
		style := lipgloss.NewStyle().
			Foreground(lipgloss.Color(colorToHex(colors[i]))).
			Bold(true)
		b.WriteString(style.Render(cluster))
	}
	return b.String()
}

// blendColors returns size colors blended from from to to in HCL space.
func blendColors(size int, from, to lipgloss.Color) []color.Color {
	if size < 2 {
		return []color.Color{lipglossToColor(from)}
	}

	c1, _ := colorful.MakeColor(lipglossToColor(from))
	c2, _ := colorful.MakeColor(lipglossToColor(to))

	colors := make([]color.Color, size)
	for i := range size {
		t := float64(i) / float64(size-1)
		colors[i] = c1.BlendHcl(c2, t).Clamped()
	}
	return colors
}

// lipglossToColor converts a hex lipgloss.Color. ANSI colors map to gray.
func lipglossToColor(c lipgloss.Color) color.Color {
	hex := string(c)
	if len(hex) == 7 && hex[0] == '#' {
		if col, err := colorful.Hex(hex); err == nil {
			return col
		}
	}
	return color.RGBA{R: 128, G: 128, B: 128, A: 255}
}

func colorToHex(c color.Color) string {
	if cf, ok := c.(colorful.Color); ok {
		return cf.Hex()
	}
	r, g, b, _ := c.RGBA()
	return colorful.Color{
		R: float64(r) / 65535.0,
		G: float64(g) / 65535.0,
		B: float64(b) / 65535.0,
	}.Hex()
}
