package transport

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// ReconnectDelay is the fixed wait between a close and the next connect
// attempt. There is no backoff and no retry limit.
const ReconnectDelay = 5 * time.Second

const (
	handshakeTimeout = 10 * time.Second
	closeGrace       = time.Second
)

// ErrNotConnected is returned by Send when no connection is live.
var ErrNotConnected = errors.New("transport: not connected")

// ErrClosed is returned after Close.
var ErrClosed = errors.New("transport: closed")

// Handler receives every inbound frame, in arrival order, from a single
// goroutine.
type Handler interface {
	HandleMessage(raw []byte)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(raw []byte)

// HandleMessage calls f.
func (f HandlerFunc) HandleMessage(raw []byte) { f(raw) }

// Options configure a Manager.
type Options struct {
	URL     string
	Handler Handler
	// OnState is called on every state transition with the error that caused
	// it, if any. It must not block.
	OnState   func(state State, err error)
	Dialer    *websocket.Dialer
	Scheduler Scheduler
	Logger    *logrus.Entry
}

// Manager owns one logical websocket connection and reconnects it after
// every close.
type Manager struct {
	url       string
	handler   Handler
	onState   func(State, error)
	dialer    *websocket.Dialer
	scheduler Scheduler
	log       *logrus.Entry

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	state    State
	conn     *websocket.Conn
	dialing  bool
	pending  Timer
	closed   bool
	attempts int

	writeMu sync.Mutex
	readers sync.WaitGroup
}

// New validates opts and returns an idle Manager. Call Connect to start.
func New(opts Options) (*Manager, error) {
	u, err := ParseEndpoint(opts.URL)
	if err != nil {
		return nil, err
	}
	if opts.Handler == nil {
		return nil, fmt.Errorf("transport requires a message handler")
	}
	dialer := opts.Dialer
	if dialer == nil {
		dialer = &websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	}
	scheduler := opts.Scheduler
	if scheduler == nil {
		scheduler = RealScheduler
	}
	log := opts.Logger
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		url:       u.String(),
		handler:   opts.Handler,
		onState:   opts.OnState,
		dialer:    dialer,
		scheduler: scheduler,
		log:       log.WithField("url", u.String()),
		ctx:       ctx,
		cancel:    cancel,
		state:     Disconnected,
	}, nil
}

// ParseEndpoint normalizes a websocket endpoint. Bare host:port values get
// the ws scheme; http and https are mapped to ws and wss.
func ParseEndpoint(raw string) (*url.URL, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, fmt.Errorf("endpoint is empty")
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "ws://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint %q: %w", raw, err)
	}
	switch u.Scheme {
	case "ws", "wss":
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return nil, fmt.Errorf("endpoint %q: unsupported scheme %q", raw, u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("endpoint %q: missing host", raw)
	}
	return u, nil
}

// URL returns the normalized endpoint.
func (m *Manager) URL() string {
	return m.url
}

// State returns the current connection state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Attempts returns how many reconnects have been scheduled so far.
func (m *Manager) Attempts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempts
}

// Connect dials the endpoint and, on success, starts the read loop. It is a
// no-op while a connection is live or a dial is in flight, and after Close.
// Failures are not returned: they move the state to Error, then
// Disconnected, and schedule the next attempt.
func (m *Manager) Connect() {
	m.mu.Lock()
	if m.closed || m.conn != nil || m.dialing {
		m.mu.Unlock()
		return
	}
	m.dialing = true
	if m.pending != nil {
		m.pending.Stop()
		m.pending = nil
	}
	m.mu.Unlock()

	m.setState(Connecting, nil)
	m.log.Debug("connecting")

	conn, resp, err := m.dialer.DialContext(m.ctx, m.url, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	m.mu.Lock()
	m.dialing = false
	if m.closed {
		m.mu.Unlock()
		if conn != nil {
			_ = conn.Close()
		}
		return
	}
	if err != nil {
		m.mu.Unlock()
		m.fail(fmt.Errorf("dial: %w", err))
		return
	}
	m.conn = conn
	m.readers.Add(1)
	m.mu.Unlock()

	m.log.Info("connected")
	m.setState(Connected, nil)
	go m.readLoop(conn)
}

// Send writes v as a JSON text frame on the live connection.
func (m *Manager) Send(v any) error {
	m.mu.Lock()
	conn, closed := m.conn, m.closed
	m.mu.Unlock()
	if closed {
		return ErrClosed
	}
	if conn == nil {
		return ErrNotConnected
	}

	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	if err := conn.WriteJSON(v); err != nil {
		return fmt.Errorf("send: %w", err)
	}
	return nil
}

// Close tears the manager down: the pending reconnect, if any, is
// cancelled and the live connection is closed. It returns once the read
// loop has exited, so no handler call is in flight afterwards. Nothing
// reconnects after Close, and it is idempotent. It must not be called from
// the Handler.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	if m.pending != nil {
		m.pending.Stop()
		m.pending = nil
	}
	conn := m.conn
	m.conn = nil
	m.state = Disconnected
	m.mu.Unlock()

	m.cancel()

	var err error
	if conn != nil {
		m.writeMu.Lock()
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "client shutdown")
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeGrace))
		m.writeMu.Unlock()
		err = conn.Close()
	}
	m.readers.Wait()
	m.notify(Disconnected, nil)
	m.log.Info("transport closed")
	return err
}

func (m *Manager) readLoop(conn *websocket.Conn) {
	defer m.readers.Done()
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			m.handleClose(conn, err)
			return
		}
		if msgType != websocket.TextMessage && msgType != websocket.BinaryMessage {
			continue
		}
		m.handler.HandleMessage(data)
	}
}

// handleClose runs once per connection when its read loop ends.
func (m *Manager) handleClose(conn *websocket.Conn, err error) {
	m.mu.Lock()
	if m.conn != conn {
		// Close already took it.
		m.mu.Unlock()
		return
	}
	m.conn = nil
	m.mu.Unlock()
	_ = conn.Close()

	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		m.log.WithError(err).Info("connection closed by server")
		m.setState(Disconnected, err)
		m.scheduleReconnect()
		return
	}
	m.fail(err)
}

// fail records a transport error: Error first, then Disconnected, then one
// reconnect.
func (m *Manager) fail(err error) {
	m.log.WithError(err).Warn("transport error")
	m.setState(Error, err)
	m.setState(Disconnected, err)
	m.scheduleReconnect()
}

func (m *Manager) scheduleReconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed || m.pending != nil {
		return
	}
	m.attempts++
	m.log.WithField("attempt", m.attempts).Infof("reconnecting in %s", ReconnectDelay)
	m.pending = m.scheduler.AfterFunc(ReconnectDelay, m.Connect)
}

func (m *Manager) setState(s State, err error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.state = s
	m.mu.Unlock()
	m.notify(s, err)
}

func (m *Manager) notify(s State, err error) {
	if m.onState != nil {
		m.onState(s, err)
	}
}
