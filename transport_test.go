// Tencent is pleased to support the open source community by making trpc-dashfetch-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-dashfetch-go is licensed under the Apache License Version 2.0.

package dashfetch

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingNavigator counts Navigate calls.
type recordingNavigator struct {
	mu    sync.Mutex
	calls []string
}

func (n *recordingNavigator) Navigate(_ context.Context, loginURL string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, loginURL)
}

func (n *recordingNavigator) Calls() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.calls...)
}

// trackingBody records whether it was read.
type trackingBody struct {
	io.Reader
	read   atomic.Bool
	closed atomic.Bool
}

func (b *trackingBody) Read(p []byte) (int, error) {
	b.read.Store(true)
	return b.Reader.Read(p)
}

func (b *trackingBody) Close() error {
	b.closed.Store(true)
	return nil
}

// newTestTransport creates a transport against srv with a quiet logger.
func newTestTransport(t *testing.T, srv *httptest.Server, opts ...TransportOption) *Transport {
	t.Helper()
	opts = append([]TransportOption{WithLogger(NewNopLogger())}, opts...)
	tr, err := NewTransport(srv.URL, opts...)
	require.NoError(t, err)
	return tr
}

func TestNewTransport(t *testing.T) {
	tr, err := NewTransport("http://dash.local:8000/")
	require.NoError(t, err)
	assert.Equal(t, "http://dash.local:8000/login", tr.LoginURL())
	assert.Equal(t, "dash.local:8000", tr.BaseURL().Host)

	tr, err = NewTransport("http://dash.local", WithLoginPath("/auth/login"))
	require.NoError(t, err)
	assert.Equal(t, "http://dash.local/auth/login", tr.LoginURL())

	tr, err = NewTransport("")
	require.NoError(t, err)
	assert.Nil(t, tr.BaseURL())
	assert.Equal(t, "/login", tr.LoginURL())

	_, err = NewTransport("/relative/only")
	assert.ErrorIs(t, err, ErrInvalidBaseURL)

	_, err = NewTransport("http://[::1")
	assert.ErrorIs(t, err, ErrInvalidBaseURL)
}

func TestFetch_JSONBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		_, _ = io.WriteString(w, `{"a":1}`)
	}))
	defer srv.Close()

	resp, err := newTestTransport(t, srv).Get(context.Background(), "/api/x")
	require.NoError(t, err)
	assert.True(t, resp.IsJSON())
	assert.Equal(t, map[string]interface{}{"a": 1.0}, resp.Value)
	assert.Empty(t, resp.Text)

	var decoded struct {
		A int `json:"a"`
	}
	require.NoError(t, resp.Decode(&decoded))
	assert.Equal(t, 1, decoded.A)
}

func TestFetch_TextBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = io.WriteString(w, "hello")
	}))
	defer srv.Close()

	resp, err := newTestTransport(t, srv).Get(context.Background(), "/greeting")
	require.NoError(t, err)
	assert.False(t, resp.IsJSON())
	assert.Equal(t, KindText, resp.Kind)
	assert.Equal(t, "hello", resp.Text)
	assert.Nil(t, resp.Value)

	err = resp.Decode(&struct{}{})
	assert.ErrorIs(t, err, ErrParseFailure)
}

func TestFetch_StatusDoesNotChangeParsing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/json-error":
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = io.WriteString(w, `{"detail":"boom"}`)
		case "/text-missing":
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, "not here")
		}
	}))
	defer srv.Close()
	tr := newTestTransport(t, srv)

	resp, err := tr.Get(context.Background(), "/json-error")
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.False(t, resp.OK())
	assert.Equal(t, map[string]interface{}{"detail": "boom"}, resp.Value)

	resp, err = tr.Get(context.Background(), "/text-missing")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "not here", resp.Text)
}

func TestFetch_MalformedJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"a":`)
	}))
	defer srv.Close()

	resp, err := newTestTransport(t, srv).Get(context.Background(), "/broken")
	assert.Nil(t, resp)
	require.ErrorIs(t, err, ErrParseFailure)

	var parseErr *ParseError
	require.True(t, errors.As(err, &parseErr))
	assert.Equal(t, `{"a":`, string(parseErr.Body))
	assert.Contains(t, parseErr.Address, "/broken")
}

func TestFetch_Unauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"detail":"Unauthorized"}`)
	}))
	defer srv.Close()

	nav := &recordingNavigator{}
	tr := newTestTransport(t, srv, WithNavigator(nav))

	resp, err := tr.Get(context.Background(), "/api/auth/me")
	assert.Nil(t, resp)
	require.ErrorIs(t, err, ErrAuthenticationRequired)
	assert.False(t, errors.Is(err, ErrTransportFailure))

	var authErr *AuthError
	require.True(t, errors.As(err, &authErr))
	assert.Equal(t, srv.URL+"/login", authErr.LoginURL)
	assert.Equal(t, http.MethodGet, authErr.Method)

	assert.Equal(t, []string{srv.URL + "/login"}, nav.Calls())
}

func TestFetch_UnauthorizedBodyNotRead(t *testing.T) {
	body := &trackingBody{Reader: strings.NewReader("{not json")}
	handler := HTTPReqHandlerFunc(func(ctx context.Context, client *http.Client, req *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: http.StatusUnauthorized,
			Header:     http.Header{"Content-Type": {"application/json"}},
			Body:       body,
			Request:    req,
		}, nil
	})

	nav := &recordingNavigator{}
	tr, err := NewTransport("http://dash.local", WithTransportHTTPReqHandler(handler),
		WithNavigator(nav), WithLogger(NewNopLogger()))
	require.NoError(t, err)

	_, err = tr.PostForm(context.Background(), "/api/x", map[string]string{"a": "1"})
	require.ErrorIs(t, err, ErrAuthenticationRequired)
	assert.False(t, errors.Is(err, ErrParseFailure))
	assert.False(t, body.read.Load(), "401 body must not be read")
	assert.True(t, body.closed.Load())
	assert.Len(t, nav.Calls(), 1)
}

func TestFetch_NavigatorFunc(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	var got []string
	tr := newTestTransport(t, srv, WithLoginPath("/sign-in"),
		WithNavigator(NavigatorFunc(func(_ context.Context, loginURL string) {
			got = append(got, loginURL)
		})))

	_, err := tr.Get(context.Background(), "/a")
	require.Error(t, err)
	_, err = tr.Get(context.Background(), "/b")
	require.Error(t, err)
	assert.Equal(t, []string{srv.URL + "/sign-in", srv.URL + "/sign-in"}, got)
}

func TestFetch_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	tr := newTestTransport(t, srv)
	srv.Close()

	nav := &recordingNavigator{}
	tr.navigator = nav

	resp, err := tr.Get(context.Background(), "/api/x")
	assert.Nil(t, resp)
	require.ErrorIs(t, err, ErrTransportFailure)

	var transportErr *TransportError
	require.True(t, errors.As(err, &transportErr))
	assert.Equal(t, http.MethodGet, transportErr.Method)
	assert.Empty(t, nav.Calls())
}

func TestFetch_ContextDeadline(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := newTestTransport(t, srv).Get(ctx, "/slow")
	require.ErrorIs(t, err, ErrTransportFailure)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestFetch_EmptyAddress(t *testing.T) {
	tr, err := NewTransport("http://dash.local", WithLogger(NewNopLogger()))
	require.NoError(t, err)

	_, err = tr.Get(context.Background(), "")
	assert.ErrorIs(t, err, ErrEmptyAddress)
}

func TestFetch_OptionsAndHeaders(t *testing.T) {
	var (
		gotMethod string
		gotHeader http.Header
		gotBody   string
		gotPath   string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotHeader = r.Header.Clone()
		gotPath = r.URL.RequestURI()
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
	}))
	defer srv.Close()

	tr := newTestTransport(t, srv, WithHTTPHeaders(http.Header{
		"X-Client": {"dashfetch"},
		"X-Trace":  {"default"},
	}))

	_, err := tr.Fetch(context.Background(), "/api/users/{name}{?page}", &FetchOptions{
		Method:     "put",
		Header:     http.Header{"X-Trace": {"override"}, "Content-Type": {"application/json"}},
		Body:       []byte(`{"x":1}`),
		PathValues: map[string]string{"name": "li lei", "page": "2"},
	})
	require.NoError(t, err)

	assert.Equal(t, http.MethodPut, gotMethod)
	assert.Equal(t, "/api/users/li%20lei?page=2", gotPath)
	assert.Equal(t, "dashfetch", gotHeader.Get("X-Client"))
	assert.Equal(t, []string{"override"}, gotHeader.Values("X-Trace"))
	assert.Equal(t, `{"x":1}`, gotBody)
}

func TestFetch_InvalidTemplate(t *testing.T) {
	tr, err := NewTransport("http://dash.local", WithLogger(NewNopLogger()))
	require.NoError(t, err)

	_, err = tr.Fetch(context.Background(), "/api/{unclosed", &FetchOptions{PathValues: map[string]string{}})
	assert.ErrorIs(t, err, ErrInvalidTemplate)
}

func TestPostForm(t *testing.T) {
	type captured struct {
		contentType string
		body        string
		method      string
	}
	var got captured
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		got = captured{contentType: r.Header.Get("Content-Type"), body: string(b), method: r.Method}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"ok":true}`)
	}))
	defer srv.Close()
	tr := newTestTransport(t, srv)

	t.Run("fields", func(t *testing.T) {
		resp, err := tr.PostForm(context.Background(), "/api/auth/login", map[string]string{"a": "1", "b": "two words"})
		require.NoError(t, err)
		assert.Equal(t, http.MethodPost, got.method)
		assert.Equal(t, "application/x-www-form-urlencoded", got.contentType)
		assert.Equal(t, "a=1&b=two+words", got.body)
		assert.Equal(t, map[string]interface{}{"ok": true}, resp.Value)
	})

	t.Run("no fields", func(t *testing.T) {
		_, err := tr.PostForm(context.Background(), "/api/auth/logout", nil)
		require.NoError(t, err)
		assert.Equal(t, "application/x-www-form-urlencoded", got.contentType)
		assert.Equal(t, "", got.body)
	})
}

func TestFetch_RateLimit(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	tr := newTestTransport(t, srv, WithRateLimit(1, 1))

	_, err := tr.Get(context.Background(), "/a")
	require.NoError(t, err)

	// The bucket is empty now; a short deadline cannot be met.
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = tr.Get(ctx, "/b")
	require.ErrorIs(t, err, ErrTransportFailure)
	assert.Equal(t, int32(1), hits.Load())
}

func TestFetch_ConcurrentCalls(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = io.WriteString(w, r.URL.Path)
	}))
	defer srv.Close()
	tr := newTestTransport(t, srv)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			path := "/p/" + strings.Repeat("x", i+1)
			resp, err := tr.Get(context.Background(), path)
			if assert.NoError(t, err) {
				assert.Equal(t, path, resp.Text)
			}
		}(i)
	}
	wg.Wait()
}
