// Package logtail reads the tail of watchwire's own log file for the
// logs view.
//
// Read keeps a ring buffer of the last N lines, so memory stays at
// O(maxLines) regardless of file size. Parse splits a line written by the
// logging package's text formatter into timestamp, level, component and
// message so the display can color it.
package logtail
