package openai

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"portfolio-relay/internal/domain"
)

// ---------------------------------------------------------------------------
// completionsURL helper
// ---------------------------------------------------------------------------

func TestCompletionsURL(t *testing.T) {
	cases := []struct {
		base string
		want string
	}{
		{"https://generativelanguage.googleapis.com/v1beta/openai", "https://generativelanguage.googleapis.com/v1beta/openai/chat/completions"},
		{"https://api.openai.com/v1/", "https://api.openai.com/v1/chat/completions"},
		{"http://localhost:8080", "http://localhost:8080/chat/completions"},
		{"", defaultBaseURL + "/chat/completions"},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, completionsURL(tc.base), "base=%q", tc.base)
	}
}

// ---------------------------------------------------------------------------
// NewClient
// ---------------------------------------------------------------------------

func TestNewClient_NilCredentials(t *testing.T) {
	_, err := NewClient(nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "nil")
}

func TestNewClient_Defaults(t *testing.T) {
	c, err := NewClient(Static("sk-test"))
	require.NoError(t, err)
	require.Equal(t, defaultBaseURL, c.baseURL)
	require.NotNil(t, c.httpClient)
}

// ---------------------------------------------------------------------------
// credential resolution
// ---------------------------------------------------------------------------

type countingCreds struct {
	key   string
	err   error
	calls int
}

func (c *countingCreds) APIKey(context.Context) (string, error) {
	c.calls++
	return c.key, c.err
}

func TestResolveAPIKey_ResolvedOnce(t *testing.T) {
	creds := &countingCreds{key: "sk-test"}
	c, err := NewClient(creds)
	require.NoError(t, err)

	key, err := c.resolveAPIKey(context.Background())
	require.NoError(t, err)
	require.Equal(t, "sk-test", key)

	_, _ = c.resolveAPIKey(context.Background())
	_, _ = c.resolveAPIKey(context.Background())
	require.Equal(t, 1, creds.calls, "credentials must only be resolved once per process lifetime")
}

func TestStreamChat_MissingCredential_NoUpstreamCall(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	c, err := NewClient(Static(""), WithBaseURL(srv.URL))
	require.NoError(t, err)

	_, err = c.StreamChat(context.Background(), "gemini-1.5-flash", []domain.ChatMessage{{Role: "user", Content: "hi"}})
	require.Error(t, err)

	var credErr *MissingCredentialError
	require.ErrorAs(t, err, &credErr)
	require.True(t, credErr.MissingCredential())
	require.Zero(t, hits.Load(), "no upstream call without a credential")
}

// ---------------------------------------------------------------------------
// StreamChat
// ---------------------------------------------------------------------------

func newStreamClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	c, err := NewClient(Static("sk-test"), WithBaseURL(srv.URL))
	require.NoError(t, err)
	return c
}

func TestStreamChat_HappyPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/completions", r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.Equal(t, "text/event-stream", r.Header.Get("Accept"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.Contains(t, string(body), `"stream":true`)
		require.Contains(t, string(body), `"model":"gemini-1.5-flash"`)
		require.Contains(t, string(body), `"content":"hi"`)

		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(200)
		_, _ = w.Write([]byte("data: {\"choices\":[{\"delta\":{\"content\":\"Hello\"}}]}\n\ndata: [DONE]\n"))
	}))
	defer srv.Close()

	c := newStreamClient(t, srv)
	stream, err := c.StreamChat(context.Background(), "gemini-1.5-flash", []domain.ChatMessage{{Role: "user", Content: "hi"}})
	require.NoError(t, err)
	defer stream.Close()

	got, err := io.ReadAll(stream)
	require.NoError(t, err)
	require.Equal(t, "data: {\"choices\":[{\"delta\":{\"content\":\"Hello\"}}]}\n\ndata: [DONE]\n", string(got))
}

func TestStreamChat_EmptyModel(t *testing.T) {
	c, err := NewClient(Static("sk-test"))
	require.NoError(t, err)
	_, err = c.StreamChat(context.Background(), "", nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "model")
}

func TestStreamChat_StatusErrors(t *testing.T) {
	cases := []int{402, 429, 500}
	for _, status := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":"upstream unhappy"}`))
		}))

		c := newStreamClient(t, srv)
		_, err := c.StreamChat(context.Background(), "gemini-1.5-flash", []domain.ChatMessage{{Role: "user", Content: "hi"}})
		require.Error(t, err)

		var statusErr *HTTPStatusError
		require.ErrorAs(t, err, &statusErr)
		require.Equal(t, status, statusErr.HTTPStatusCode())
		require.Contains(t, statusErr.Body, "upstream unhappy")

		srv.Close()
	}
}

func TestStreamChat_NetworkError(t *testing.T) {
	c, err := NewClient(Static("sk-test"), WithBaseURL("http://127.0.0.1:1"))
	require.NoError(t, err)
	c.httpClient = &http.Client{Timeout: 100 * time.Millisecond}

	_, err = c.StreamChat(context.Background(), "gemini-1.5-flash", nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "request failed")
}

func TestStreamChat_ContextCancelTearsDownStream(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(200)
		_, _ = w.Write([]byte("data: {\"choices\":[{\"delta\":{\"content\":\"first\"}}]}\n"))
		w.(http.Flusher).Flush()
		// Hold the stream open until the client gives up.
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	c := newStreamClient(t, srv)

	stream, err := c.StreamChat(ctx, "gemini-1.5-flash", []domain.ChatMessage{{Role: "user", Content: "hi"}})
	require.NoError(t, err)
	defer stream.Close()

	reader := bufio.NewReader(stream)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	require.Contains(t, line, "first")

	cancel()
	_, err = io.ReadAll(reader)
	require.Error(t, err, "cancelled context must terminate the upstream read")
	require.ErrorIs(t, err, context.Canceled)
}

// ---------------------------------------------------------------------------
// credential sources
// ---------------------------------------------------------------------------

type fakeGetter struct {
	val string
	err error
}

func (f *fakeGetter) GetParameter(context.Context, string) (string, error) {
	return f.val, f.err
}

func TestNewParameterCredentials_Validation(t *testing.T) {
	_, err := NewParameterCredentials(nil, "/portfolio-relay/api-key")
	require.Error(t, err)

	_, err = NewParameterCredentials(&fakeGetter{}, "  ")
	require.Error(t, err)
}

func TestParameterCredentials_JSONToken(t *testing.T) {
	creds, err := NewParameterCredentials(&fakeGetter{val: `{"token":"sk-from-ssm"}`}, "/portfolio-relay/api-key")
	require.NoError(t, err)

	key, err := creds.APIKey(context.Background())
	require.NoError(t, err)
	require.Equal(t, "sk-from-ssm", key)
}

func TestParameterCredentials_EmptyToken(t *testing.T) {
	creds, err := NewParameterCredentials(&fakeGetter{val: `{"other":"value"}`}, "/portfolio-relay/api-key")
	require.NoError(t, err)

	_, err = creds.APIKey(context.Background())
	require.Error(t, err)

	var credErr *MissingCredentialError
	require.ErrorAs(t, err, &credErr)
}

func TestParameterCredentials_MalformedJSON(t *testing.T) {
	creds, err := NewParameterCredentials(&fakeGetter{val: `{"broken`}, "/portfolio-relay/api-key")
	require.NoError(t, err)

	_, err = creds.APIKey(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "unmarshal")
}

func TestParameterCredentials_GetterError(t *testing.T) {
	creds, err := NewParameterCredentials(&fakeGetter{err: errors.New("ssm unavailable")}, "/portfolio-relay/api-key")
	require.NoError(t, err)

	_, err = creds.APIKey(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "ssm unavailable")
}

func TestStatic_APIKey(t *testing.T) {
	key, err := Static("sk-env").APIKey(context.Background())
	require.NoError(t, err)
	require.Equal(t, "sk-env", key)
}
