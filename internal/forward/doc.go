// Package forward decides when newly accepted content goes downstream and
// delivers it there.
//
// # Cache Semantics
//
// Cache holds exactly one value for the whole process: the content most
// recently handed to the consumer. ForwardIfNew compares against that value
// only, so the sequence A, A, B, A forwards A, B, A. Two different files
// with identical content are forwarded once between them. The cache starts
// empty, survives reconnects, and is cleared by Reset on teardown.
//
// When a Store is attached, every update is written through to it and Reset
// deletes it, mirroring a browser-style local storage slot. Restore reads it
// back for the optional best-effort resume at startup.
//
// # Dispatch
//
// Forwards are queued and delivered by a single worker goroutine in FIFO
// order, so the caller never waits on a slow consumer. Each delivery gets a
// fresh request ID (see RequestID) for log correlation. Failures are logged
// as *DownstreamForwardError and counted; they are never retried.
package forward
