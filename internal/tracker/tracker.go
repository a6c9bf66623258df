// Package tracker remembers the last content seen for each file path.
package tracker

import "sync"

// Tracker maps a path to the most recently accepted content. Entries are
// never evicted.
type Tracker struct {
	mu   sync.RWMutex
	seen map[string]string
}

// New returns an empty tracker.
func New() *Tracker {
	return &Tracker{seen: make(map[string]string)}
}

// IsChange reports whether content differs from what was last recorded for
// path. Unknown paths always count as a change.
func (t *Tracker) IsChange(path, content string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	prev, ok := t.seen[path]
	return !ok || prev != content
}

// RecordSeen stores content as the latest value for path. Call it only once
// the event has been accepted.
func (t *Tracker) RecordSeen(path, content string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.seen == nil {
		t.seen = make(map[string]string)
	}
	t.seen[path] = content
}

// Last returns the recorded content for path.
func (t *Tracker) Last(path string) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	content, ok := t.seen[path]
	return content, ok
}

// Len returns the number of tracked paths.
func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.seen)
}
