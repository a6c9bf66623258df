// Package state provides the thread-safe snapshot that sits between the
// watch engine and the display.
//
// # Overview
//
// The engine and the transport write; the display reads. Writers call the
// narrow Set*/Record* methods, each of which updates one part of the
// snapshot under a lock and stamps LastUpdated. Readers either poll
// Snapshot() on a tick (the terminal UI does this) or Subscribe() for a
// coalesced "something changed" signal (headless mode does this).
//
// # Snapshot Fields
//
//   - Connection: current transport.State, display only
//   - Endpoint: the websocket URL being watched
//   - Events: copy of the deduplicated event log, insertion ordered
//   - LastError: latest transport, decode, or forward error
//   - Reconnects: reconnect attempts scheduled so far
//   - Forwarded / ForwardFails: downstream delivery counters
//   - Dropped: frames the decoder rejected
//
// # Error Semantics
//
// LastError is sticky. Transport errors stay visible through the
// Connecting state and are cleared only when the connection is live again.
//
// # Copy Semantics
//
// Snapshot() deep-copies the event slice and wraps the error, so callers
// may hold or mutate what they receive without locking.
//
// # Subscriptions
//
// Each subscriber owns a channel with a buffer of one. Notifications never
// block writers; a burst of updates collapses into a single pending
// signal, and the reader is expected to take a fresh Snapshot() when woken.
package state
