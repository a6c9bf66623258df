package watchserver

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// Event kinds sent to clients.
const (
	KindAdd    = "add"
	KindChange = "change"
	KindUnlink = "unlink"
)

const writeTimeout = 5 * time.Second

// Options configures a Server.
type Options struct {
	Root   string
	Ignore []string
	Logger *logrus.Entry
}

// Server watches a directory tree and broadcasts file events to websocket
// clients.
type Server struct {
	root     string
	ignore   []string
	log      *logrus.Entry
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
	watcher *fsnotify.Watcher
	closed  bool
}

type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) write(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteJSON(v)
}

type fileEvent struct {
	Event   string `json:"event"`
	Path    string `json:"path"`
	Content string `json:"content"`
}

type notice struct {
	Message string `json:"message"`
}

// New validates the options and returns an idle server.
func New(opts Options) (*Server, error) {
	root, err := filepath.Abs(strings.TrimSpace(opts.Root))
	if err != nil {
		return nil, fmt.Errorf("resolve root: %w", err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root %s is not a directory", root)
	}
	for _, pattern := range opts.Ignore {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("invalid ignore pattern %q", pattern)
		}
	}
	log := opts.Logger
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Server{
		root:   root,
		ignore: append([]string(nil), opts.Ignore...),
		log:    log,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		clients: make(map[*client]struct{}),
	}, nil
}

// Root returns the absolute watched directory.
func (s *Server) Root() string { return s.root }

// Clients returns the number of connected clients.
func (s *Server) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// ServeHTTP upgrades the request and registers the client until it
// disconnects.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.WithError(err).Warn("websocket upgrade failed")
		return
	}
	c := &client{conn: conn}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = conn.Close()
		return
	}
	s.clients[c] = struct{}{}
	s.mu.Unlock()

	s.log.WithField("remote", r.RemoteAddr).Info("client connected")
	if err := c.write(notice{Message: "watching " + s.root}); err != nil {
		s.drop(c)
		return
	}

	// Clients never send anything meaningful; reading detects disconnects.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	s.drop(c)
	s.log.WithField("remote", r.RemoteAddr).Info("client disconnected")
}

func (s *Server) drop(c *client) {
	s.mu.Lock()
	delete(s.clients, c)
	s.mu.Unlock()
	_ = c.conn.Close()
}

// Broadcast sends v to every connected client, dropping clients whose
// write fails.
func (s *Server) Broadcast(v any) {
	s.mu.Lock()
	targets := make([]*client, 0, len(s.clients))
	for c := range s.clients {
		targets = append(targets, c)
	}
	s.mu.Unlock()

	for _, c := range targets {
		if err := c.write(v); err != nil {
			s.log.WithError(err).Debug("dropping client after write failure")
			s.drop(c)
		}
	}
}

// Start adds watches for the tree under root and processes filesystem
// events in the background until ctx is cancelled or Close is called.
func (s *Server) Start(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := s.addTree(watcher, s.root); err != nil {
		_ = watcher.Close()
		return err
	}

	s.mu.Lock()
	if s.watcher != nil || s.closed {
		s.mu.Unlock()
		_ = watcher.Close()
		return errors.New("watchserver: already started or closed")
	}
	s.watcher = watcher
	s.mu.Unlock()

	go s.run(ctx, watcher)
	return nil
}

func (s *Server) run(ctx context.Context, watcher *fsnotify.Watcher) {
	for {
		select {
		case <-ctx.Done():
			_ = watcher.Close()
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			s.handle(watcher, event)
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			s.log.WithError(err).Error("watcher error")
		}
	}
}

func (s *Server) handle(watcher *fsnotify.Watcher, event fsnotify.Event) {
	rel, ok := s.relative(event.Name)
	if !ok || s.ignored(rel) {
		return
	}
	s.log.Debugf("fsnotify event: %s op=%v", rel, event.Op)

	kind := kindFor(event.Op)
	if kind == "" {
		return
	}
	if kind == KindUnlink {
		s.Broadcast(fileEvent{Event: KindUnlink, Path: rel})
		return
	}

	info, err := os.Stat(event.Name)
	if err != nil {
		// Removed before we could look at it.
		return
	}
	if info.IsDir() {
		if event.Has(fsnotify.Create) {
			if err := s.addTree(watcher, event.Name); err != nil {
				s.log.WithError(err).Warnf("failed to watch new directory %s", rel)
			}
		}
		return
	}

	content, err := os.ReadFile(event.Name)
	if err != nil {
		s.log.WithError(err).Warnf("failed to read %s", rel)
		return
	}
	s.Broadcast(fileEvent{Event: kind, Path: rel, Content: string(content)})
}

func kindFor(op fsnotify.Op) string {
	switch {
	case op.Has(fsnotify.Remove), op.Has(fsnotify.Rename):
		return KindUnlink
	case op.Has(fsnotify.Create):
		return KindAdd
	case op.Has(fsnotify.Write):
		return KindChange
	default:
		return ""
	}
}

// addTree watches dir and every non-ignored directory below it. fsnotify
// watches are not recursive.
func (s *Server) addTree(watcher *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if rel, ok := s.relative(path); ok && rel != "." && s.ignored(rel) {
			return filepath.SkipDir
		}
		if err := watcher.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
}

func (s *Server) relative(path string) (string, bool) {
	rel, err := filepath.Rel(s.root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

func (s *Server) ignored(rel string) bool {
	for _, pattern := range s.ignore {
		if match, _ := doublestar.Match(pattern, rel); match {
			return true
		}
	}
	return false
}

// Close stops watching and disconnects every client.
func (s *Server) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	watcher := s.watcher
	clients := s.clients
	s.clients = make(map[*client]struct{})
	s.mu.Unlock()

	for c := range clients {
		c.mu.Lock()
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second))
		c.mu.Unlock()
		_ = c.conn.Close()
	}
	if watcher != nil {
		return watcher.Close()
	}
	return nil
}

// ListenAndServe serves websocket clients on addr and watches root until
// ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	if err := s.Start(ctx); err != nil {
		return err
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.WithField("addr", addr).WithField("root", s.root).Info("serving file events")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		_ = s.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	case err := <-errCh:
		_ = s.Close()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
