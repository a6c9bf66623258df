// Package completion talks to an OpenAI-compatible chat completions API and
// serves as the downstream consumer for forwarded file content.
package completion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/five82/watchwire/internal/forward"
)

const (
	DefaultAPIBase   = "https://api.openai.com/v1"
	DefaultModel     = "gpt-4o-mini"
	defaultUserAgent = "watchwire/0.1"
	requestTimeout   = 60 * time.Second
)

// Ensure Client implements forward.Consumer at compile time.
var _ forward.Consumer = (*Client)(nil)

// Options configure a Client.
type Options struct {
	APIBase string
	APIKey  string
	Model   string
	// Prompt is sent as the system message ahead of every user message.
	Prompt string
	HTTP   *http.Client
}

// Client keeps a running conversation with the completion API. Each call to
// Complete appends the system prompt, the user text, and the assistant's
// reply to the history.
type Client struct {
	baseURL   *url.URL
	http      *http.Client
	apiKey    string
	model     string
	prompt    string
	userAgent string

	mu       sync.Mutex
	history  []Message
	result   string
	lastErr  error
	inFlight bool
}

// NewClient builds a Client. Empty options fall back to the public API base
// and the default model.
func NewClient(opts Options) (*Client, error) {
	base, err := parseBaseURL(opts.APIBase)
	if err != nil {
		return nil, err
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = DefaultModel
	}
	httpClient := opts.HTTP
	if httpClient == nil {
		httpClient = &http.Client{Timeout: requestTimeout}
	}
	return &Client{
		baseURL:   base,
		http:      httpClient,
		apiKey:    strings.TrimSpace(opts.APIKey),
		model:     model,
		prompt:    opts.Prompt,
		userAgent: defaultUserAgent,
	}, nil
}

// Forward sends content as the user message of a new completion turn.
func (c *Client) Forward(ctx context.Context, content string) error {
	_, err := c.Complete(ctx, c.prompt, content)
	return err
}

// Complete sends prompt and text on top of the existing history and returns
// the assistant's reply. On failure the history is left untouched.
func (c *Client) Complete(ctx context.Context, prompt, text string) (string, error) {
	if c == nil {
		return "", fmt.Errorf("client is nil")
	}

	c.mu.Lock()
	messages := make([]Message, 0, len(c.history)+2)
	messages = append(messages, c.history...)
	if prompt != "" {
		messages = append(messages, Message{Role: RoleSystem, Content: prompt})
	}
	messages = append(messages, Message{Role: RoleUser, Content: text})
	c.inFlight = true
	c.lastErr = nil
	c.mu.Unlock()

	reply, err := c.send(ctx, chatRequest{Model: c.model, Messages: messages})

	c.mu.Lock()
	defer c.mu.Unlock()
	c.inFlight = false
	if err != nil {
		c.lastErr = err
		return "", err
	}
	c.result = reply
	c.history = append(messages, Message{Role: RoleAssistant, Content: reply})
	return reply, nil
}

// Reset clears the conversation history and the last result.
func (c *Client) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.history = nil
	c.result = ""
	c.lastErr = nil
}

// History returns a copy of the conversation so far.
func (c *Client) History() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.history) == 0 {
		return nil
	}
	out := make([]Message, len(c.history))
	copy(out, c.history)
	return out
}

// Status is a point-in-time view of the conversation.
type Status struct {
	Result  string
	Err     error
	Loading bool
}

// Status returns the last assistant reply, the last error, and whether a
// request is currently running.
func (c *Client) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Status{Result: c.result, Err: c.lastErr, Loading: c.inFlight}
}

func (c *Client) send(ctx context.Context, body chatRequest) (string, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}

	reqURL := c.baseURL.JoinPath("chat", "completions")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL.String(), bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	if id := forward.RequestID(ctx); id != "" {
		req.Header.Set("X-Request-ID", id)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	var decoded chatResponse
	decodeErr := json.NewDecoder(resp.Body).Decode(&decoded)

	if resp.StatusCode >= 400 {
		if decodeErr == nil && decoded.Error != nil && decoded.Error.Message != "" {
			return "", fmt.Errorf("api returned status %d: %s", resp.StatusCode, decoded.Error.Message)
		}
		return "", fmt.Errorf("api returned status %d", resp.StatusCode)
	}
	if decodeErr != nil {
		return "", fmt.Errorf("decode response: %w", decodeErr)
	}
	if len(decoded.Choices) == 0 {
		return "", fmt.Errorf("response has no choices")
	}
	content := decoded.Choices[0].Message.Content
	if content == nil {
		return "", nil
	}
	return *content, nil
}

func parseBaseURL(apiBase string) (*url.URL, error) {
	trimmed := strings.TrimSpace(apiBase)
	if trimmed == "" {
		trimmed = DefaultAPIBase
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "https://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse api_base %q: %w", apiBase, err)
	}
	u.Path = strings.TrimRight(u.Path, "/")
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}
