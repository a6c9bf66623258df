package state

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/five82/watchwire/internal/events"
	"github.com/five82/watchwire/internal/transport"
)

func TestStore_ZeroValueIsConnecting(t *testing.T) {
	var s Store
	snap := s.Snapshot()
	if snap.Connection != transport.Connecting {
		t.Fatalf("Connection = %v, want Connecting", snap.Connection)
	}
	if !snap.IsOffline() {
		t.Fatal("IsOffline() = false, want true before connecting")
	}
}

func TestStore_SetEventsAndSnapshotClone(t *testing.T) {
	var s Store

	evs := []events.FileEvent{{Kind: "add", Path: "/a", Content: "X"}, {Kind: "change", Path: "/b", Content: "Y"}}
	before := time.Now()
	s.SetEvents(evs)

	// Mutating the caller's slice must not leak into the store.
	evs[0].Content = "caller"

	snap := s.Snapshot()
	if len(snap.Events) != 2 || snap.Events[0].Content != "X" {
		t.Fatalf("snapshot events = %#v, want 2 events with first content X", snap.Events)
	}
	if snap.LastUpdated.Before(before) {
		t.Fatalf("LastUpdated = %v, want >= %v", snap.LastUpdated, before)
	}

	snap.Events[0].Path = "/mutated"
	if s.Snapshot().Events[0].Path != "/a" {
		t.Fatalf("Snapshot should clone events")
	}
}

func TestStore_ConnectionErrorKeptUntilConnected(t *testing.T) {
	var s Store

	origErr := errors.New("connection refused")
	s.SetConnection(transport.Error, origErr, 0)
	s.SetConnection(transport.Disconnected, origErr, 1)

	snap := s.Snapshot()
	if snap.Connection != transport.Disconnected || snap.Reconnects != 1 {
		t.Fatalf("snapshot = %v/%d, want Disconnected/1", snap.Connection, snap.Reconnects)
	}
	if snap.LastError == nil || snap.LastError.Error() != "connection refused" {
		t.Fatalf("LastError = %v, want connection refused", snap.LastError)
	}
	if reflect.ValueOf(snap.LastError).Pointer() == reflect.ValueOf(origErr).Pointer() {
		t.Fatalf("Snapshot should clone error instance")
	}

	s.SetConnection(transport.Connecting, nil, 1)
	if s.Snapshot().LastError == nil {
		t.Fatalf("Connecting should not clear the last error")
	}

	s.SetConnection(transport.Connected, nil, 1)
	snap = s.Snapshot()
	if snap.LastError != nil {
		t.Fatalf("LastError = %v, want nil after connect", snap.LastError)
	}
	if snap.IsOffline() {
		t.Fatal("IsOffline() = true, want false when connected")
	}
}

func TestStore_Counters(t *testing.T) {
	var s Store

	s.RecordForward(nil)
	s.RecordForward(nil)
	s.RecordForward(errors.New("upstream 500"))
	s.RecordDropped(errors.New("bad frame"))

	snap := s.Snapshot()
	if snap.Forwarded != 2 || snap.ForwardFails != 1 || snap.Dropped != 1 {
		t.Fatalf("counters = fwd %d fail %d dropped %d, want 2/1/1", snap.Forwarded, snap.ForwardFails, snap.Dropped)
	}
	if snap.LastError == nil || snap.LastError.Error() != "bad frame" {
		t.Fatalf("LastError = %v, want bad frame", snap.LastError)
	}
}

func TestStore_SubscribeCoalescesAndUnsubscribes(t *testing.T) {
	var s Store
	ch, cancel := s.Subscribe()

	s.SetEndpoint("ws://localhost:8080")
	s.SetEndpoint("ws://localhost:9090")

	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("subscriber was not notified")
	}
	select {
	case <-ch:
		t.Fatal("burst should coalesce into one pending signal")
	default:
	}

	cancel()
	cancel()
	if _, ok := <-ch; ok {
		t.Fatal("channel should be closed after cancel")
	}
	s.SetEndpoint("ws://after")
	if got := s.Snapshot().Endpoint; got != "ws://after" {
		t.Fatalf("Endpoint = %q, want ws://after", got)
	}
}
