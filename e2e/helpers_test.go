// Tencent is pleased to support the open source community by making trpc-dashfetch-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-dashfetch-go is licensed under the Apache License Version 2.0.

package e2e

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	dashfetch "trpc.group/trpc-go/trpc-dashfetch-go"
	"trpc.group/trpc-go/trpc-dashfetch-go/dashboard"
	"trpc.group/trpc-go/trpc-dashfetch-go/dashtest"
	"trpc.group/trpc-go/trpc-dashfetch-go/middlewares"
)

// env is one dashboard under test plus a client wired like the CLI.
type env struct {
	baseURL  string
	backend  *dashtest.Server // nil with -real
	nav      *dashtest.RecordingNavigator
	recorder *middlewares.InMemoryMetricsRecorder
	client   *dashboard.Client
}

// newEnv starts a fake dashboard, or targets -addr with -real.
func newEnv(t *testing.T, backendOpts []dashtest.Option, opts ...dashfetch.TransportOption) *env {
	t.Helper()

	e := &env{
		nav:      dashtest.NewRecordingNavigator(),
		recorder: middlewares.NewInMemoryMetricsRecorder(),
	}
	httpClient := &http.Client{}
	if *useRealServer {
		e.baseURL = "http://" + *serverAddr
	} else {
		e.backend = dashtest.NewServer(backendOpts...)
		t.Cleanup(e.backend.Close)
		e.baseURL = e.backend.URL
		httpClient = e.backend.Client()
	}

	logger := dashfetch.NewNopLogger()
	if *verboseLogging {
		logger = dashfetch.NewZapLogger("debug")
	}

	jar, err := dashfetch.NewCookieJarStore()
	require.NoError(t, err)

	base := []dashfetch.TransportOption{
		dashfetch.WithHTTPClient(httpClient),
		dashfetch.WithCredentialStore(jar),
		dashfetch.WithNavigator(e.nav),
		dashfetch.WithLogger(logger),
		dashfetch.WithMiddleware(
			middlewares.Recovery(middlewares.WithRecoveryLogger(logger)),
			middlewares.RequestID(),
			middlewares.Logging(middlewares.WithLoggingLogger(logger)),
			middlewares.NewMetricsMiddleware(middlewares.WithRecorder(e.recorder)),
		),
	}
	tr, err := dashfetch.NewTransport(e.baseURL, append(base, opts...)...)
	require.NoError(t, err)
	e.client = dashboard.NewClient(tr, dashboard.WithLogger(logger))
	return e
}

// requireBackend skips tests that inspect the fake backend.
func (e *env) requireBackend(t *testing.T) {
	t.Helper()
	if e.backend == nil {
		t.Skip("needs the in-process backend")
	}
}

func (e *env) login(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), defaultTestTimeout)
	defer cancel()
	require.NoError(t, e.client.Login(ctx, dashtest.DefaultUsername, dashtest.DefaultPassword))
}
