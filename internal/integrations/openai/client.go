package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"portfolio-relay/internal/domain"
)

// defaultBaseURL is the Gemini OpenAI-compatible endpoint the production
// deployment talks to. Any OpenAI-style chat-completions API works.
const defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai"

// DefaultHeaderTimeout bounds time-to-first-byte from upstream. There is
// deliberately no overall deadline: a healthy stream may run for minutes.
const DefaultHeaderTimeout = 30 * time.Second

// chatRequest is the minimal request shape for a streaming completion.
type chatRequest struct {
	Model    string               `json:"model"`
	Messages []domain.ChatMessage `json:"messages"`
	Stream   bool                 `json:"stream"`
}

// Credentials supplies the upstream API key. Implementations are read-only
// and safe for concurrent use.
type Credentials interface {
	APIKey(ctx context.Context) (string, error)
}

// Static is a Credentials backed by a fixed key, typically from the
// environment. An empty value is allowed here and rejected at call time.
type Static string

func (s Static) APIKey(context.Context) (string, error) {
	return string(s), nil
}

// MissingCredentialError reports that no upstream API key is configured.
// The relay turns this into a per-request configuration error and never
// calls upstream without a key.
type MissingCredentialError struct {
	Source string
}

func (e *MissingCredentialError) Error() string {
	return fmt.Sprintf("openai: API key is empty (source: %s)", e.Source)
}

func (e *MissingCredentialError) MissingCredential() bool {
	return true
}

// HTTPStatusError captures non-2xx upstream responses with status-aware
// context. The body excerpt is for server-side logs only.
type HTTPStatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("openai: unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

// Client is a focused client for OpenAI-compatible streaming chat
// completions.
type Client struct {
	baseURL    string
	httpClient *http.Client
	creds      Credentials

	keyOnce sync.Once
	apiKey  string
	keyErr  error
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimSpace(baseURL)
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithHeaderTimeout replaces the default time-to-first-byte bound.
func WithHeaderTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient = streamingHTTPClient(d)
	}
}

// NewClient creates a Client backed by the given Credentials. The key is
// resolved on the first StreamChat call and reused for the lifetime of the
// process.
func NewClient(creds Credentials, opts ...Option) (*Client, error) {
	if creds == nil {
		return nil, errors.New("openai: credentials must not be nil")
	}
	c := &Client{
		baseURL:    defaultBaseURL,
		httpClient: streamingHTTPClient(DefaultHeaderTimeout),
		creds:      creds,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// streamingHTTPClient builds a client with a header timeout but no overall
// deadline, so long streams are never cut mid-relay.
func streamingHTTPClient(headerTimeout time.Duration) *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			ResponseHeaderTimeout: headerTimeout,
		},
	}
}

// resolveAPIKey resolves the key on the first call and returns the cached
// result on every subsequent call within the same process lifetime.
func (c *Client) resolveAPIKey(ctx context.Context) (string, error) {
	c.keyOnce.Do(func() {
		key, err := c.creds.APIKey(ctx)
		if err != nil {
			c.keyErr = err
			return
		}
		if strings.TrimSpace(key) == "" {
			c.keyErr = &MissingCredentialError{Source: "credentials"}
			return
		}
		c.apiKey = key
	})
	return c.apiKey, c.keyErr
}

func completionsURL(baseURL string) string {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base == "" {
		base = defaultBaseURL
	}
	return base + "/chat/completions"
}

func (c *Client) resolvedHTTPClient() *http.Client {
	if c.httpClient != nil {
		return c.httpClient
	}
	return streamingHTTPClient(DefaultHeaderTimeout)
}

// StreamChat opens a streaming completion and returns the unread response
// body. The returned stream is tied to ctx: cancelling ctx tears down the
// upstream connection. The caller must close the stream.
func (c *Client) StreamChat(ctx context.Context, model string, messages []domain.ChatMessage) (io.ReadCloser, error) {
	if model == "" {
		return nil, errors.New("openai: model must not be empty")
	}

	apiKey, err := c.resolveAPIKey(ctx)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(chatRequest{
		Model:    model,
		Messages: messages,
		Stream:   true,
	})
	if err != nil {
		return nil, fmt.Errorf("openai: marshal request: %w", err)
	}

	url := completionsURL(c.baseURL)

	req, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if reqErr != nil {
		return nil, fmt.Errorf("openai: create request: %w", reqErr)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Authorization", "Bearer "+apiKey)

	res, doErr := c.resolvedHTTPClient().Do(req)
	if doErr != nil {
		return nil, fmt.Errorf("openai: request failed: %w", doErr)
	}

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		_ = res.Body.Close()
		return nil, &HTTPStatusError{
			StatusCode: res.StatusCode,
			URL:        url,
			Body:       string(buf),
		}
	}
	return res.Body, nil
}
