package ui

import "time"

// Terminal width thresholds for responsive layouts.
const (
	// LayoutCompactWidth is the threshold below which compact mode is used.
	LayoutCompactWidth = 100

	// LayoutUpdatedWidth is the minimum width to show the updated timestamp.
	LayoutUpdatedWidth = 140
)

// Log display limits.
const (
	// LogTailLines is how many lines of the log file are read per refresh.
	LogTailLines = 500

	// ContentPreviewLines caps the content lines shown under each event.
	ContentPreviewLines = 12
)

// DefaultUIInterval is the default UI refresh interval.
const DefaultUIInterval = time.Second
