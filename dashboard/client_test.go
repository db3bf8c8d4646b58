// Tencent is pleased to support the open source community by making trpc-dashfetch-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-dashfetch-go is licensed under the Apache License Version 2.0.

package dashboard

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	dashfetch "trpc.group/trpc-go/trpc-dashfetch-go"
	"trpc.group/trpc-go/trpc-dashfetch-go/dashtest"
)

func newTestClient(t *testing.T, srv *dashtest.Server, opts ...dashfetch.TransportOption) (*Client, *dashtest.RecordingNavigator) {
	t.Helper()
	nav := dashtest.NewRecordingNavigator()
	tr := dashtest.NewTransport(t, srv, append([]dashfetch.TransportOption{dashfetch.WithNavigator(nav)}, opts...)...)
	return NewClient(tr, WithLogger(dashfetch.NewNopLogger())), nav
}

func TestClient_SessionLifecycle(t *testing.T) {
	srv := dashtest.NewServer()
	defer srv.Close()
	c, nav := newTestClient(t, srv)
	ctx := context.Background()

	_, err := c.Me(ctx)
	var authErr *dashfetch.AuthError
	require.True(t, errors.As(err, &authErr))
	assert.Equal(t, srv.URL+"/login", authErr.LoginURL)
	assert.Equal(t, []string{srv.URL + "/login"}, nav.Calls())

	require.NoError(t, c.Login(ctx, dashtest.DefaultUsername, dashtest.DefaultPassword))

	me, err := c.Me(ctx)
	require.NoError(t, err)
	assert.Equal(t, &User{Username: "admin", Role: "admin", Email: "admin@example.com"}, me)

	require.NoError(t, c.Logout(ctx))
	_, err = c.SystemMetrics(ctx)
	assert.ErrorIs(t, err, dashfetch.ErrAuthenticationRequired)
	assert.Len(t, nav.Calls(), 1)
}

func TestClient_LoginFailures(t *testing.T) {
	srv := dashtest.NewServer()
	defer srv.Close()
	c, nav := newTestClient(t, srv)
	ctx := context.Background()

	err := c.Login(ctx, "admin", "wrong")
	assert.ErrorIs(t, err, dashfetch.ErrAuthenticationRequired)
	assert.Len(t, nav.Calls(), 1)

	err = c.Login(ctx, "", "")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "missing username or password", apiErr.Message)
	assert.ErrorIs(t, err, dashfetch.ErrUnexpectedStatus)
	assert.Empty(t, nav.Calls())
}

func TestClient_Reads(t *testing.T) {
	srv := dashtest.NewServer(
		dashtest.WithSystemMetrics(dashtest.SystemMetrics{CPU: 55.5, Mem: 70, GPU: 12.25, Alerts: 3}),
		dashtest.WithAccount(dashtest.Account{Username: "zoe", Email: "z@example.com", Role: "viewer"}),
	)
	defer srv.Close()
	c, _ := newTestClient(t, srv)
	ctx := context.Background()
	require.NoError(t, c.Login(ctx, dashtest.DefaultUsername, dashtest.DefaultPassword))

	m, err := c.SystemMetrics(ctx)
	require.NoError(t, err)
	assert.Equal(t, &SystemMetrics{CPU: 55.5, Mem: 70, GPU: 12.25, Alerts: 3}, m)

	rows, err := c.Users(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "admin", rows[0].Username)
	assert.Equal(t, "enabled", rows[0].Status)
	assert.NotEqual(t, "-", rows[0].LastLogin, "login records the time")
	assert.Equal(t, UserRow{Username: "zoe", Email: "z@example.com", Role: "viewer", Status: "disabled", LastLogin: "-"}, rows[1])

	row, err := c.User(ctx, "zoe")
	require.NoError(t, err)
	assert.Equal(t, "z@example.com", row.Email)

	_, err = c.User(ctx, "ghost")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "no such user: ghost", apiErr.Message)
}

func TestClient_UnexpectedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("maintenance"))
	}))
	defer srv.Close()

	tr, err := dashfetch.NewTransport(srv.URL, dashfetch.WithLogger(dashfetch.NewNopLogger()))
	require.NoError(t, err)
	c := NewClient(tr)

	_, err = c.Me(context.Background())
	assert.ErrorIs(t, err, dashfetch.ErrUnexpectedBody)
	assert.ErrorIs(t, err, dashfetch.ErrParseFailure)

	err = c.Logout(context.Background())
	assert.ErrorIs(t, err, dashfetch.ErrUnexpectedBody)
}

func TestClient_SubscribeMetrics(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	srv := dashtest.NewServer(
		dashtest.WithSamples(dashtest.Sample{CPU: 1.5, GPU: 10}, dashtest.Sample{CPU: 2.5, GPU: 20}),
		dashtest.WithInterval(time.Millisecond),
		dashtest.WithStreamEnd(),
	)
	defer srv.Close()
	c, nav := newTestClient(t, srv)
	require.NoError(t, c.Login(context.Background(), dashtest.DefaultUsername, dashtest.DefaultPassword))

	samples := make(chan MetricsSample, 4)
	stream, err := c.SubscribeMetrics(context.Background(), func(s MetricsSample) { samples <- s })
	require.NoError(t, err)

	select {
	case <-stream.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not end")
	}
	close(samples)

	var got []MetricsSample
	for s := range samples {
		got = append(got, s)
	}
	assert.Equal(t, []MetricsSample{{CPU: 1.5, GPU: 10}, {CPU: 2.5, GPU: 20}}, got)
	assert.Equal(t, dashfetch.StreamClosed, stream.State())
	assert.Empty(t, nav.Calls())
}

func TestClient_SubscribeMetricsWithoutSession(t *testing.T) {
	srv := dashtest.NewServer()
	defer srv.Close()
	c, nav := newTestClient(t, srv)

	stream, err := c.SubscribeMetrics(context.Background(), func(MetricsSample) {
		t.Error("no sample expected")
	})
	require.NoError(t, err)

	select {
	case <-stream.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not close")
	}
	assert.Empty(t, nav.Calls(), "streams never navigate")

	_, err = c.SubscribeMetrics(context.Background(), nil)
	assert.ErrorIs(t, err, dashfetch.ErrNilMessageHandler)
}
