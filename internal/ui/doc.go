// Package ui is watchwire's read-only terminal display, built on Bubble Tea.
//
// The model polls state.Store once per DefaultUIInterval and never mutates
// it. Two views are available:
//
//   - Events: the deduplicated event log, one "KIND - path" line per event
//     followed by a preview of its content ("c" hides content).
//   - Logs: the tail of watchwire's own log file, colored by level.
//
// The header shows the connection state badge (Connecting, Connected,
// Disconnected, Error), the endpoint, and forward counters. Themes are
// lipgloss palettes cycled with "T".
//
// Quitting the display ("q" or ctrl+c) ends the run; the caller tears down
// the connection.
package ui
