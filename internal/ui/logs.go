package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/five82/watchwire/internal/logtail"
)

// logState holds all log-related state.
type logState struct {
	lines  []string
	follow bool
	err    error
}

type logTailMsg struct {
	lines []string
	err   error
}

// refreshLogs reads the tail of the log file off the UI goroutine.
func (m *Model) refreshLogs() tea.Cmd {
	path := m.logFile
	if path == "" {
		return nil
	}
	return func() tea.Msg {
		lines, err := logtail.Read(path, LogTailLines)
		return logTailMsg{lines: lines, err: err}
	}
}

func (m *Model) handleLogTail(msg logTailMsg) {
	m.logState.err = msg.err
	if msg.err == nil {
		m.logState.lines = msg.lines
	}
	m.updateLogViewport()
}

func (m *Model) updateLogViewport() {
	if m.logViewport.Width == 0 {
		return
	}
	m.logViewport.SetContent(m.renderLogContent())
	if m.logState.follow {
		m.logViewport.GotoBottom()
	}
}

func (m Model) renderLogContent() string {
	styles := m.theme.Styles()
	if m.logFile == "" {
		return styles.MutedText.Render("Logging to a file is disabled.")
	}
	if len(m.logState.lines) == 0 {
		return styles.MutedText.Render("No log output yet.")
	}

	width := max(m.logViewport.Width, 8)
	out := make([]string, 0, len(m.logState.lines))
	for _, raw := range m.logState.lines {
		out = append(out, m.colorizeLine(truncate(raw, width), styles))
	}
	return strings.Join(out, "\n")
}

func (m Model) colorizeLine(raw string, styles Styles) string {
	line := logtail.Parse(raw)
	if line.Level == "" {
		return styles.Text.Render(raw)
	}
	parts := make([]string, 0, 4)
	if line.Timestamp != "" {
		parts = append(parts, styles.FaintText.Render(line.Timestamp))
	}
	parts = append(parts, m.levelStyle(line.Level, styles).Render(line.Level))
	if line.Component != "" {
		parts = append(parts, styles.InfoText.Render("["+line.Component+"]"))
	}
	parts = append(parts, styles.Text.Render(line.Message))
	return strings.Join(parts, " ")
}

func (m Model) levelStyle(level string, styles Styles) lipgloss.Style {
	switch level {
	case "ERROR", "FATAL", "PANIC":
		return styles.DangerText
	case "WARN":
		return styles.WarningText
	case "DEBUG", "TRACE":
		return styles.FaintText
	default:
		return styles.SuccessText
	}
}

func (m Model) handleLogsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.ToggleFollow) {
		m.logState.follow = !m.logState.follow
		if m.logState.follow {
			m.logViewport.GotoBottom()
			return m, m.refreshLogs()
		}
		return m, nil
	}
	if m.keys.navigate(msg, &m.logViewport) {
		m.logState.follow = m.logViewport.AtBottom()
	}
	return m, nil
}

// renderLogs renders the log view.
func (m Model) renderLogs() string {
	styles := m.theme.Styles()
	title := "Log"
	if m.logFile != "" {
		title = "Log " + truncateMiddle(m.logFile, max(m.width/2, 10))
	}
	box := m.renderBox(title, m.logViewport.View(), m.width, m.height-3)

	var status string
	switch {
	case m.logState.err != nil:
		status = styles.DangerText.Render(fmt.Sprintf("read failed: %v", m.logState.err))
	case m.logState.follow:
		status = styles.FaintText.Render("following")
	default:
		status = styles.FaintText.Render("paused")
	}
	return box + "\n" + status
}
