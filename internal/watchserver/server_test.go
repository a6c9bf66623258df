package watchserver

import (
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, ignore ...string) (*Server, *httptest.Server) {
	t.Helper()
	srv, err := New(Options{Root: t.TempDir(), Ignore: ignore})
	require.NoError(t, err)
	hs := httptest.NewServer(srv)
	t.Cleanup(func() {
		_ = srv.Close()
		hs.Close()
	})
	return srv, hs
}

func dial(t *testing.T, hs *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(hs.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) map[string]string {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var frame map[string]string
	require.NoError(t, conn.ReadJSON(&frame))
	return frame
}

func waitForClients(t *testing.T, srv *Server, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return srv.Clients() == n }, 2*time.Second, 10*time.Millisecond)
}

func TestNew_Validation(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o600))

	_, err := New(Options{Root: file})
	assert.Error(t, err, "file root")

	_, err = New(Options{Root: filepath.Join(t.TempDir(), "missing")})
	assert.Error(t, err, "missing root")

	_, err = New(Options{Root: t.TempDir(), Ignore: []string{"[unclosed"}})
	assert.Error(t, err, "bad pattern")
}

func TestKindFor(t *testing.T) {
	tests := []struct {
		op   fsnotify.Op
		want string
	}{
		{fsnotify.Create, KindAdd},
		{fsnotify.Write, KindChange},
		{fsnotify.Remove, KindUnlink},
		{fsnotify.Rename, KindUnlink},
		{fsnotify.Chmod, ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, kindFor(tt.op), tt.op.String())
	}
}

func TestIgnored(t *testing.T) {
	srv, err := New(Options{Root: t.TempDir(), Ignore: []string{"**/.git/**", "**/*.swp"}})
	require.NoError(t, err)

	assert.True(t, srv.ignored(".git/config"))
	assert.True(t, srv.ignored("sub/.git/HEAD"))
	assert.True(t, srv.ignored("docs/notes.swp"))
	assert.False(t, srv.ignored("docs/notes.md"))
}

func TestServeHTTP_GreetsWithNotice(t *testing.T) {
	srv, hs := newTestServer(t)
	conn := dial(t, hs)

	frame := readFrame(t, conn)
	assert.Contains(t, frame["message"], srv.Root())
	waitForClients(t, srv, 1)

	require.NoError(t, conn.Close())
	waitForClients(t, srv, 0)
}

func TestBroadcast_ReachesAllClients(t *testing.T) {
	srv, hs := newTestServer(t)
	a := dial(t, hs)
	b := dial(t, hs)
	readFrame(t, a)
	readFrame(t, b)
	waitForClients(t, srv, 2)

	srv.Broadcast(fileEvent{Event: KindChange, Path: "x.txt", Content: "v2"})

	for _, conn := range []*websocket.Conn{a, b} {
		frame := readFrame(t, conn)
		assert.Equal(t, map[string]string{"event": "change", "path": "x.txt", "content": "v2"}, frame)
	}
}

func TestStart_BroadcastsFileWrites(t *testing.T) {
	srv, hs := newTestServer(t, "**/*.swp")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, srv.Start(ctx))

	conn := dial(t, hs)
	readFrame(t, conn)
	waitForClients(t, srv, 1)

	require.NoError(t, os.WriteFile(filepath.Join(srv.Root(), "skip.swp"), []byte("no"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(srv.Root(), "a.txt"), []byte("hello"), 0o600))

	// Create and write may arrive as separate frames; wait for the full content.
	for {
		frame := readFrame(t, conn)
		require.NotEqual(t, "skip.swp", frame["path"])
		if frame["path"] == "a.txt" && frame["content"] == "hello" {
			assert.Contains(t, []string{KindAdd, KindChange}, frame["event"])
			break
		}
	}

	require.NoError(t, os.Remove(filepath.Join(srv.Root(), "a.txt")))
	for {
		frame := readFrame(t, conn)
		if frame["event"] == KindUnlink {
			assert.Equal(t, "a.txt", frame["path"])
			assert.Empty(t, frame["content"])
			break
		}
	}
}

func TestStart_Twice(t *testing.T) {
	srv, _ := newTestServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, srv.Start(ctx))
	assert.Error(t, srv.Start(ctx))
}
