package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// surface paints text onto one background color. lipgloss resets the
// background between separately styled spans, so the spaces between words
// and between spans are painted explicitly.
type surface struct {
	bg   lipgloss.Color
	fill lipgloss.Style
}

func newSurface(color string) surface {
	bg := lipgloss.Color(color)
	return surface{bg: bg, fill: lipgloss.NewStyle().Background(bg)}
}

// text renders str in style on the surface background.
func (s surface) text(str string, style lipgloss.Style) string {
	if str == "" {
		return ""
	}
	style = style.Background(s.bg)
	words := strings.Split(str, " ")
	for i, w := range words {
		if w != "" {
			words[i] = style.Render(w)
		}
	}
	return strings.Join(words, s.fill.Render(" "))
}

// gap renders n blank cells.
func (s surface) gap(n int) string {
	return s.fill.Render(strings.Repeat(" ", n))
}

// pair renders label, joiner and value as one segment.
func (s surface) pair(label, joiner, value string, labelStyle, valueStyle lipgloss.Style) string {
	return s.text(label, labelStyle) + s.fill.Render(joiner) + s.text(value, valueStyle)
}
