package state

import (
	"fmt"
	"sync"
	"time"

	"github.com/five82/watchwire/internal/events"
	"github.com/five82/watchwire/internal/transport"
)

// Snapshot represents the latest data available to the display.
type Snapshot struct {
	Connection   transport.State
	Endpoint     string
	Events       []events.FileEvent
	LastError    error
	LastUpdated  time.Time
	Reconnects   int
	Forwarded    int64
	ForwardFails int64
	Dropped      int // frames rejected by the decoder
}

// IsOffline returns true while no connection is live.
func (s Snapshot) IsOffline() bool {
	return s.Connection != transport.Connected
}

// Store coordinates concurrent updates to the snapshot and notifies
// subscribers after each change.
type Store struct {
	mu       sync.RWMutex
	snapshot Snapshot
	subs     map[int]chan struct{}
	nextSub  int
}

// SetEndpoint records the endpoint being watched.
func (s *Store) SetEndpoint(endpoint string) {
	s.mutate(func(snap *Snapshot) {
		snap.Endpoint = endpoint
	})
}

// SetConnection records a connection state change. A non-nil err is kept
// for display; a successful connect clears it.
func (s *Store) SetConnection(state transport.State, err error, reconnects int) {
	s.mutate(func(snap *Snapshot) {
		snap.Connection = state
		snap.Reconnects = reconnects
		if err != nil {
			snap.LastError = err
		} else if state == transport.Connected {
			snap.LastError = nil
		}
	})
}

// SetEvents replaces the event log copy.
func (s *Store) SetEvents(evs []events.FileEvent) {
	cloned := cloneEvents(evs)
	s.mutate(func(snap *Snapshot) {
		snap.Events = cloned
	})
}

// RecordDropped counts a frame the decoder rejected.
func (s *Store) RecordDropped(err error) {
	s.mutate(func(snap *Snapshot) {
		snap.Dropped++
		if err != nil {
			snap.LastError = err
		}
	})
}

// RecordForward counts a finished downstream forward.
func (s *Store) RecordForward(err error) {
	s.mutate(func(snap *Snapshot) {
		if err != nil {
			snap.ForwardFails++
			snap.LastError = err
			return
		}
		snap.Forwarded++
	})
}

// Snapshot returns a copy of the current snapshot.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := s.snapshot
	snap.Events = cloneEvents(s.snapshot.Events)
	if s.snapshot.LastError != nil {
		snap.LastError = fmt.Errorf("%w", s.snapshot.LastError)
	}
	return snap
}

// Subscribe returns a channel that receives a signal after every change,
// coalescing bursts, and a func that ends the subscription.
func (s *Store) Subscribe() (<-chan struct{}, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.subs == nil {
		s.subs = make(map[int]chan struct{})
	}
	id := s.nextSub
	s.nextSub++
	ch := make(chan struct{}, 1)
	s.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.subs, id)
			close(ch)
		})
	}
}

func (s *Store) mutate(fn func(*Snapshot)) {
	s.mu.Lock()
	fn(&s.snapshot)
	s.snapshot.LastUpdated = time.Now()
	for _, ch := range s.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	s.mu.Unlock()
}

func cloneEvents(items []events.FileEvent) []events.FileEvent {
	if len(items) == 0 {
		return nil
	}
	dup := make([]events.FileEvent, len(items))
	copy(dup, items)
	return dup
}
