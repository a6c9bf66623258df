// Package eventlog keeps the ordered list of accepted file events.
package eventlog

import (
	"sync"

	"github.com/five82/watchwire/internal/events"
)

// Log is an append-only, insertion-ordered list of file events in which no
// two entries share the same path and content.
type Log struct {
	mu      sync.RWMutex
	entries []events.FileEvent
	keys    map[events.Key]struct{}
}

// New returns an empty log.
func New() *Log {
	return &Log{keys: make(map[events.Key]struct{})}
}

// Append adds ev at the end of the log unless an entry with the same path
// and content already exists. It reports whether the event was added.
func (l *Log) Append(ev events.FileEvent) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.keys == nil {
		l.keys = make(map[events.Key]struct{})
	}
	key := ev.Key()
	if _, dup := l.keys[key]; dup {
		return false
	}
	l.keys[key] = struct{}{}
	l.entries = append(l.entries, ev)
	return true
}

// Events returns a copy of the log in insertion order.
func (l *Log) Events() []events.FileEvent {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if len(l.entries) == 0 {
		return nil
	}
	out := make([]events.FileEvent, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len returns the number of entries.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}
