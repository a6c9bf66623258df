package events

// FileEvent is a single file notification as received from the server.
// Content carries the full file body, not a diff.
type FileEvent struct {
	Kind    string `json:"event"`
	Path    string `json:"path"`
	Content string `json:"content"`
}

// Key returns the dedup key for the event.
func (e FileEvent) Key() Key {
	return Key{Path: e.Path, Content: e.Content}
}

// Key identifies an event by path and content.
type Key struct {
	Path    string
	Content string
}

// StatusNotice is an informational server message that does not describe a
// file change.
type StatusNotice struct {
	Message string `json:"message"`
}

// Message is the decoded form of one inbound frame. Exactly one of Notice
// and Event is non-nil.
type Message struct {
	Notice *StatusNotice
	Event  *FileEvent
}

// IsNotice reports whether the message is a status notice.
func (m Message) IsNotice() bool {
	return m.Notice != nil
}
