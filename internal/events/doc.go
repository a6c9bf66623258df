// Package events defines the inbound wire model and its decoder.
//
// # Wire Format
//
// The server sends one JSON object per websocket text frame, in one of two
// shapes:
//
//	{"message": "watching /srv/notes"}
//	{"event": "change", "path": "/srv/notes/a.md", "content": "..."}
//
// The first is a StatusNotice and never touches client state. The second is
// a FileEvent; its content is the whole file, and its kind ("add",
// "change", "unlink", ...) is passed through untouched.
//
// # Failures
//
// Decode never panics and never returns a partial message. Invalid JSON
// yields *DecodeError; well-formed JSON of any other shape yields
// *UnexpectedShapeError. Both match ErrParse, so callers that only need
// "drop this frame" can use errors.Is, while callers that log the two
// cases at different levels can use errors.As.
package events
