package completion

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/five82/watchwire/internal/forward"
)

func TestParseBaseURL_DefaultsAndNormalizes(t *testing.T) {
	u, err := parseBaseURL("")
	if err != nil {
		t.Fatalf("parseBaseURL returned error: %v", err)
	}
	if u.String() != DefaultAPIBase {
		t.Fatalf("base = %q, want %q", u.String(), DefaultAPIBase)
	}

	u, err = parseBaseURL("localhost:1234/v1/?x=1#frag")
	if err != nil {
		t.Fatalf("parseBaseURL returned error: %v", err)
	}
	if u.Scheme != "https" || u.Path != "/v1" || u.RawQuery != "" || u.Fragment != "" {
		t.Fatalf("url not normalized: %q", u.String())
	}
}

func newTestServer(t *testing.T, handler func(w http.ResponseWriter, req chatRequest, r *http.Request)) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		handler(w, req, r)
	}))
	t.Cleanup(server.Close)
	return server
}

func reply(w http.ResponseWriter, content string) {
	_, _ = w.Write([]byte(`{"id":"cmpl-1","choices":[{"index":0,"message":{"role":"assistant","content":` + mustJSON(content) + `}}]}`))
}

func mustJSON(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func TestClient_CompleteBuildsHistory(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	var requests []chatRequest
	var gotAuth, gotRequestID string
	server := newTestServer(t, func(w http.ResponseWriter, req chatRequest, r *http.Request) {
		mu.Lock()
		requests = append(requests, req)
		gotAuth = r.Header.Get("Authorization")
		gotRequestID = r.Header.Get("X-Request-ID")
		mu.Unlock()
		reply(w, "answer")
	})

	c, err := NewClient(Options{APIBase: server.URL + "/v1", APIKey: "sk-test", Prompt: "summarize"})
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)

	if err := c.Forward(forward.WithRequestID(ctx, "req-1"), "first"); err != nil {
		t.Fatalf("Forward returned error: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if gotAuth != "Bearer sk-test" {
		t.Fatalf("Authorization = %q, want bearer token", gotAuth)
	}
	if gotRequestID != "req-1" {
		t.Fatalf("X-Request-ID = %q, want req-1", gotRequestID)
	}
	if requests[0].Model != DefaultModel {
		t.Fatalf("model = %q, want %q", requests[0].Model, DefaultModel)
	}
	want := []Message{{RoleSystem, "summarize"}, {RoleUser, "first"}}
	if len(requests[0].Messages) != 2 || requests[0].Messages[0] != want[0] || requests[0].Messages[1] != want[1] {
		t.Fatalf("first request messages = %#v, want %#v", requests[0].Messages, want)
	}

	mu.Unlock()
	if _, err := c.Complete(ctx, "summarize", "second"); err != nil {
		t.Fatalf("Complete returned error: %v", err)
	}
	mu.Lock()
	if got := len(requests[1].Messages); got != 5 {
		t.Fatalf("second request carries %d messages, want 5 (history + prompt + text)", got)
	}
	if requests[1].Messages[2] != (Message{RoleAssistant, "answer"}) {
		t.Fatalf("history missing assistant reply: %#v", requests[1].Messages)
	}

	status := c.Status()
	if status.Result != "answer" || status.Err != nil || status.Loading {
		t.Fatalf("Status = %#v, want result=answer no error idle", status)
	}
	if got := len(c.History()); got != 6 {
		t.Fatalf("History len = %d, want 6", got)
	}

	c.Reset()
	if c.History() != nil || c.Status().Result != "" {
		t.Fatalf("Reset did not clear history/result")
	}
}

func TestClient_ErrorKeepsHistory(t *testing.T) {
	t.Parallel()

	var fail atomic.Bool
	server := newTestServer(t, func(w http.ResponseWriter, req chatRequest, r *http.Request) {
		if fail.Load() {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":{"message":"rate limited","type":"requests"}}`))
			return
		}
		reply(w, "ok")
	})

	c, err := NewClient(Options{APIBase: server.URL + "/v1"})
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	ctx := context.Background()

	if _, err := c.Complete(ctx, "", "hello"); err != nil {
		t.Fatalf("Complete returned error: %v", err)
	}
	before := c.History()

	fail.Store(true)
	_, err = c.Complete(ctx, "", "again")
	if err == nil {
		t.Fatalf("Complete returned nil error, want status error")
	}
	if want := "api returned status 429: rate limited"; err.Error() != want {
		t.Fatalf("error = %q, want %q", err.Error(), want)
	}
	if got := c.History(); len(got) != len(before) {
		t.Fatalf("history changed on error: %d entries, want %d", len(got), len(before))
	}
	if c.Status().Err == nil {
		t.Fatalf("Status().Err = nil, want last error")
	}
}

func TestClient_NoChoicesIsError(t *testing.T) {
	t.Parallel()

	server := newTestServer(t, func(w http.ResponseWriter, req chatRequest, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"x","choices":[]}`))
	})
	c, err := NewClient(Options{APIBase: server.URL + "/v1"})
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	if _, err := c.Complete(context.Background(), "", "hi"); err == nil {
		t.Fatalf("Complete returned nil error, want no-choices error")
	}
}

func TestClient_NilContentIsEmptyReply(t *testing.T) {
	t.Parallel()

	server := newTestServer(t, func(w http.ResponseWriter, req chatRequest, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"x","choices":[{"index":0,"message":{"role":"assistant","content":null}}]}`))
	})
	c, err := NewClient(Options{APIBase: server.URL + "/v1"})
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	got, err := c.Complete(context.Background(), "", "hi")
	if err != nil || got != "" {
		t.Fatalf("Complete = %q, %v; want empty reply and nil error", got, err)
	}
}
