// Package watchserver is a small websocket server that watches a directory
// tree and pushes file events in the format the watchwire client consumes:
// a {"message": ...} greeting on connect, then
// {"event": "add"|"change"|"unlink", "path": ..., "content": ...} frames
// with paths relative to the root and the full file content.
//
// It exists for local development and end-to-end testing of the client.
package watchserver
