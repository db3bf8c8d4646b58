// Tencent is pleased to support the open source community by making trpc-dashfetch-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-dashfetch-go is licensed under the Apache License Version 2.0.

package dashtest

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	dashfetch "trpc.group/trpc-go/trpc-dashfetch-go"
)

// NewTransport returns a transport bound to s with an empty cookie jar and a
// silent logger. Extra options are applied last.
func NewTransport(t testing.TB, s *Server, opts ...dashfetch.TransportOption) *dashfetch.Transport {
	t.Helper()

	jar, err := dashfetch.NewCookieJarStore()
	require.NoError(t, err)

	base := []dashfetch.TransportOption{
		dashfetch.WithHTTPClient(s.Client()),
		dashfetch.WithCredentialStore(jar),
		dashfetch.WithLogger(dashfetch.NewNopLogger()),
	}
	tr, err := dashfetch.NewTransport(s.URL, append(base, opts...)...)
	require.NoError(t, err)
	return tr
}

// RecordingNavigator remembers every login URL it was sent to.
type RecordingNavigator struct {
	calls chan string
}

// NewRecordingNavigator creates a navigator that buffers up to 64 calls.
func NewRecordingNavigator() *RecordingNavigator {
	return &RecordingNavigator{calls: make(chan string, 64)}
}

// Navigate implements dashfetch.Navigator.
func (n *RecordingNavigator) Navigate(_ context.Context, loginURL string) {
	n.calls <- loginURL
}

// Calls drains and returns the recorded login URLs.
func (n *RecordingNavigator) Calls() []string {
	var out []string
	for {
		select {
		case u := <-n.calls:
			out = append(out, u)
		default:
			return out
		}
	}
}

// RunMiddlewareTest runs one middleware against finalHandler. A nil
// finalHandler answers 200 with an empty body.
func RunMiddlewareTest(
	t *testing.T,
	middlewareToTest dashfetch.MiddlewareFunc,
	req *http.Request,
	finalHandler dashfetch.HandleFunc,
) (*http.Response, error) {
	t.Helper()

	if finalHandler == nil {
		finalHandler = func(ctx context.Context, req *http.Request) (*http.Response, error) {
			return &http.Response{StatusCode: http.StatusOK, Header: http.Header{}, Body: http.NoBody, Request: req}, nil
		}
	}
	return middlewareToTest(context.Background(), req, finalHandler)
}

// CheckMiddlewareFunc checks the basic contract of a middleware: it calls
// next and hands next's response back unchanged.
func CheckMiddlewareFunc(t *testing.T, middlewareToTest dashfetch.MiddlewareFunc) {
	t.Helper()

	req, err := http.NewRequest(http.MethodGet, "http://dashboard.test/api/check", nil)
	require.NoError(t, err)

	want := &http.Response{StatusCode: http.StatusAccepted, Header: http.Header{}, Body: http.NoBody}
	finalHandlerCalled := false
	resp, err := RunMiddlewareTest(t, middlewareToTest, req, func(ctx context.Context, r *http.Request) (*http.Response, error) {
		finalHandlerCalled = true
		want.Request = r
		return want, nil
	})

	if err != nil {
		t.Errorf("CheckMiddlewareFunc: middleware returned an error: %v", err)
	}
	if !finalHandlerCalled {
		t.Errorf("CheckMiddlewareFunc: middleware did not call next")
	}
	if resp != want {
		t.Errorf("CheckMiddlewareFunc: middleware replaced the response of next")
	}
}
