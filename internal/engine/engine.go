// Package engine turns raw inbound frames into accepted file events.
//
// HandleMessage is the only entry point. For each frame it decodes, checks
// the per-path tracker, forwards new content, appends to the event log,
// and records the content as seen, all under one lock so no two frames
// interleave.
package engine

import (
	"errors"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/five82/watchwire/internal/eventlog"
	"github.com/five82/watchwire/internal/events"
	"github.com/five82/watchwire/internal/forward"
	"github.com/five82/watchwire/internal/state"
	"github.com/five82/watchwire/internal/tracker"
	"github.com/five82/watchwire/internal/transport"
)

// Outcome says what happened to one inbound frame.
type Outcome int

const (
	// Accepted means a file event with new content was logged.
	Accepted Outcome = iota
	// Unchanged means the path already had this content.
	Unchanged
	// Duplicate means the tracker saw a change but the log already held
	// the same path and content.
	Duplicate
	// Notice means a server status notice was logged and dropped.
	Notice
	// Rejected means the frame failed to decode.
	Rejected
)

func (o Outcome) String() string {
	switch o {
	case Accepted:
		return "accepted"
	case Unchanged:
		return "unchanged"
	case Duplicate:
		return "duplicate"
	case Notice:
		return "notice"
	case Rejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Forwarder is the part of *forward.Adapter the engine needs.
type Forwarder interface {
	ForwardIfNew(content string) bool
}

var _ Forwarder = (*forward.Adapter)(nil)

// Engine owns the tracker and the event log for the process lifetime.
type Engine struct {
	mu      sync.Mutex
	tracker *tracker.Tracker
	log     *eventlog.Log
	fwd     Forwarder
	store   *state.Store
	logger  *logrus.Entry
}

// New builds an engine. store may be nil when nothing displays the log.
func New(fwd Forwarder, store *state.Store, logger *logrus.Entry) *Engine {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Engine{
		tracker: tracker.New(),
		log:     eventlog.New(),
		fwd:     fwd,
		store:   store,
		logger:  logger,
	}
}

var _ transport.Handler = (*Engine)(nil)

// HandleMessage implements transport.Handler.
func (e *Engine) HandleMessage(raw []byte) {
	e.Process(raw)
}

// Process handles one frame and reports the outcome.
func (e *Engine) Process(raw []byte) Outcome {
	e.mu.Lock()
	defer e.mu.Unlock()

	msg, err := events.Decode(raw)
	if err != nil {
		e.reject(err)
		return Rejected
	}

	if msg.IsNotice() {
		e.logger.WithField("message", msg.Notice.Message).Info("server message")
		return Notice
	}

	ev := *msg.Event
	fields := logrus.Fields{"event": ev.Kind, "path": ev.Path}
	if !e.tracker.IsChange(ev.Path, ev.Content) {
		e.logger.WithFields(fields).Debug("content unchanged, ignoring event")
		return Unchanged
	}

	if e.fwd != nil && e.fwd.ForwardIfNew(ev.Content) {
		e.logger.WithFields(fields).Debug("content queued for forward")
	}

	appended := e.log.Append(ev)
	e.tracker.RecordSeen(ev.Path, ev.Content)

	if !appended {
		e.logger.WithFields(fields).Debug("event already in log")
		return Duplicate
	}

	e.logger.WithFields(fields).WithField("bytes", len(ev.Content)).Info("file event")
	if e.store != nil {
		e.store.SetEvents(e.log.Events())
	}
	return Accepted
}

func (e *Engine) reject(err error) {
	var shapeErr *events.UnexpectedShapeError
	if errors.As(err, &shapeErr) {
		e.logger.WithField("raw", shapeErr.Raw).Warn("received data has an unexpected format")
	} else {
		e.logger.WithError(err).Error("error parsing message")
	}
	if e.store != nil {
		e.store.RecordDropped(err)
	}
}
