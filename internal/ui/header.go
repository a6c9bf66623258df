package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/five82/watchwire/internal/transport"
)

// renderHeader renders the status bar with all information.
func (m Model) renderHeader() string {
	styles := m.theme.Styles().WithBackground(m.theme.Surface)
	bg := newSurface(m.theme.Surface)
	compact := m.width < LayoutCompactWidth
	sep := bg.gap(2)
	snap := m.snapshot

	parts := []string{
		bg.text("watchwire", styles.Logo),
		styles.StatusStyle(snap.Connection.String()).Render(strings.ToUpper(snap.Connection.String())),
	}

	endpoint := snap.Endpoint
	if compact {
		endpoint = truncateMiddle(endpoint, 28)
	}
	if endpoint != "" {
		parts = append(parts, bg.text(endpoint, styles.MutedText))
	}

	if snap.Connection != transport.Connected && snap.LastError != nil {
		parts = append(parts, bg.text(classifyConnectionError(snap.LastError), styles.DangerText))
	}
	if snap.Connection == transport.Disconnected || snap.Connection == transport.Error {
		parts = append(parts, bg.text(fmt.Sprintf("Retrying in %s", transport.ReconnectDelay), styles.WarningText))
	}

	parts = append(parts, counter(bg, styles, "Events", len(snap.Events)))
	parts = append(parts, counter(bg, styles, "Fwd", int(snap.Forwarded)))
	if snap.ForwardFails > 0 {
		parts = append(parts, bg.pair("Failed:", " ", fmt.Sprintf("%d", snap.ForwardFails), styles.MutedText, styles.DangerText))
	}
	if !compact {
		if snap.Dropped > 0 {
			parts = append(parts, bg.pair("Dropped:", " ", fmt.Sprintf("%d", snap.Dropped), styles.MutedText, styles.WarningText))
		}
		if snap.Reconnects > 0 {
			parts = append(parts, counter(bg, styles, "Retries", snap.Reconnects))
		}
	}
	if m.width >= LayoutUpdatedWidth {
		parts = append(parts, bg.text(m.formatTimestamp(), styles.FaintText))
	}

	return styles.Header.Width(m.width).Render(strings.Join(parts, sep))
}

func counter(bg surface, styles Styles, label string, n int) string {
	return bg.pair(label+":", " ", fmt.Sprintf("%d", n), styles.MutedText, styles.Text)
}

// formatTimestamp returns when the snapshot last changed.
func (m Model) formatTimestamp() string {
	if m.snapshot.LastUpdated.IsZero() {
		return "never"
	}
	return m.snapshot.LastUpdated.Format(time.TimeOnly)
}

// classifyConnectionError maps a transport error to a short label.
func classifyConnectionError(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "connection refused"):
		return "OFFLINE"
	case strings.Contains(msg, "no such host"):
		return "HOST NOT FOUND"
	case strings.Contains(msg, "timeout"):
		return "TIMEOUT"
	case strings.Contains(msg, "bad handshake"):
		return "HANDSHAKE FAILED"
	default:
		return "ERROR"
	}
}

// renderCommandBar renders the key hints for the current view.
func (m Model) renderCommandBar() string {
	styles := m.theme.Styles().WithBackground(m.theme.Surface)
	bg := newSurface(m.theme.Surface)

	type cmd struct{ key, desc string }
	var commands []cmd

	switch m.currentView {
	case ViewLogs:
		followLabel := "Pause"
		if !m.logState.follow {
			followLabel = "Follow"
		}
		commands = []cmd{
			{"Space", followLabel},
			{"j/k", "Scroll"},
			{"e", "Events"},
			{"?", "More"},
			{"q", "Quit"},
		}
	default:
		contentLabel := "Hide content"
		if !m.showContent {
			contentLabel = "Show content"
		}
		commands = []cmd{
			{"c", contentLabel},
			{"j/k", "Scroll"},
			{"l", "Logs"},
			{"?", "More"},
			{"q", "Quit"},
		}
	}

	segments := make([]string, 0, len(commands)+1)
	for _, c := range commands {
		segments = append(segments, bg.pair(c.key, ":", c.desc, styles.AccentText, styles.MutedText))
	}
	segments = append(segments, bg.pair("T", ":", m.theme.Name, styles.AccentText, styles.FaintText))

	return styles.Header.Width(m.width).Render(strings.Join(segments, bg.gap(2)))
}

// renderBox draws a titled rounded border around content.
func (m Model) renderBox(title, content string, width, height int) string {
	border := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(m.theme.BorderFocus)).
		Width(max(width-2, 0)).
		Height(max(height-2, 0))
	box := border.Render(content)
	if title == "" {
		return box
	}

	// Splice the title into the top border.
	lines := strings.SplitN(box, "\n", 2)
	label := m.theme.Styles().AccentText.Bold(true).Render(" " + title + " ")
	top := lipgloss.NewStyle().Foreground(lipgloss.Color(m.theme.BorderFocus)).Render("╭─") + label
	fill := width - lipgloss.Width(top) - 1
	if fill < 0 {
		return box
	}
	top += lipgloss.NewStyle().Foreground(lipgloss.Color(m.theme.BorderFocus)).Render(strings.Repeat("─", fill) + "╮")
	if len(lines) == 1 {
		return top
	}
	return top + "\n" + lines[1]
}

// truncate truncates a string to max length with ellipsis.
func truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}

// truncateMiddle truncates a string in the middle, preserving start and end.
func truncateMiddle(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if len(s) <= max {
		return s
	}
	if max <= 5 {
		return s[:max]
	}
	// Keep more of the end (file name) than the start
	endLen := (max - 3) * 2 / 3
	startLen := max - 3 - endLen
	return s[:startLen] + "..." + s[len(s)-endLen:]
}
