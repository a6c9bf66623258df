package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

// updateEventViewport re-renders the event list when the log grew or
// force is set.
func (m *Model) updateEventViewport(force bool) {
	if m.eventViewport.Width == 0 {
		return
	}
	if !force && len(m.snapshot.Events) == m.renderedCount {
		return
	}
	m.eventViewport.SetContent(m.renderEventContent())
	m.renderedCount = len(m.snapshot.Events)
	if m.followEvents {
		m.eventViewport.GotoBottom()
	}
}

// renderEventContent renders each event as "KIND - path" followed by its
// content.
func (m Model) renderEventContent() string {
	styles := m.theme.Styles()
	if len(m.snapshot.Events) == 0 {
		return styles.MutedText.Render("Waiting for file events...")
	}

	width := max(m.eventViewport.Width-2, 8)
	var b strings.Builder
	for i, ev := range m.snapshot.Events {
		if i > 0 {
			b.WriteString("\n")
		}
		title := fmt.Sprintf("%s - %s", strings.ToUpper(ev.Kind), ev.Path)
		b.WriteString(styles.StatusStyle(ev.Kind).Render(truncate(title, width)))
		b.WriteString("\n")
		if !m.showContent {
			continue
		}
		if ev.Content == "" {
			b.WriteString("  " + styles.FaintText.Render("(empty)") + "\n")
			continue
		}
		lines := strings.Split(strings.TrimRight(ev.Content, "\n"), "\n")
		shown := lines
		if len(shown) > ContentPreviewLines {
			shown = shown[:ContentPreviewLines]
		}
		for _, line := range shown {
			b.WriteString("  " + styles.Text.Render(truncate(line, width)) + "\n")
		}
		if hidden := len(lines) - len(shown); hidden > 0 {
			b.WriteString("  " + styles.FaintText.Render(fmt.Sprintf("… %d more lines", hidden)) + "\n")
		}
	}
	return b.String()
}

func (m Model) handleEventsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.ToggleContent) {
		m.showContent = !m.showContent
		m.updateEventViewport(true)
		return m, nil
	}
	if m.keys.navigate(msg, &m.eventViewport) {
		m.followEvents = m.eventViewport.AtBottom()
	}
	return m, nil
}

// renderEvents renders the event view.
func (m Model) renderEvents() string {
	styles := m.theme.Styles()
	title := fmt.Sprintf("Events (%d)", len(m.snapshot.Events))
	box := m.renderBox(title, m.eventViewport.View(), m.width, m.height-3)

	status := "following"
	if !m.followEvents {
		status = fmt.Sprintf("%3.0f%%", m.eventViewport.ScrollPercent()*100)
	}
	return box + "\n" + styles.FaintText.Render(status)
}
