// Package app is the composition root for watchwire.
//
// Run loads configuration, configures logging, and wires the client
// pipeline:
//
//	transport.Manager ──HandleMessage──> engine.Engine ──> state.Store ──> ui / headless
//	                                          │
//	                                          └──ForwardIfNew──> forward.Adapter ──> Consumer
//
// The transport reconnects on its own after every close. Run returns when
// the context is cancelled (SIGINT/SIGTERM) or the display quits; teardown
// closes the connection, cancels any pending reconnect, drains the forward
// queue and clears the forward cache.
//
// Serve runs the reference file-watching server from internal/watchserver.
//
// Fatal errors are limited to startup: an unreadable config, an invalid
// endpoint, or a forward cache database that cannot be opened. Everything
// after that is logged and survived.
package app
