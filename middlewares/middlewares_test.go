// Tencent is pleased to support the open source community by making trpc-dashfetch-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-dashfetch-go is licensed under the Apache License Version 2.0.

package middlewares

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dashfetch "trpc.group/trpc-go/trpc-dashfetch-go"
	"trpc.group/trpc-go/trpc-dashfetch-go/dashtest"
)

// captureLogger records formatted lines per level.
type captureLogger struct {
	mu    sync.Mutex
	lines []string
}

func (l *captureLogger) add(level, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, level+" "+msg)
}

func (l *captureLogger) Lines() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.lines...)
}

func (l *captureLogger) Debug(args ...interface{}) { l.add("DEBUG", fmt.Sprint(args...)) }
func (l *captureLogger) Debugf(format string, args ...interface{}) {
	l.add("DEBUG", fmt.Sprintf(format, args...))
}
func (l *captureLogger) Info(args ...interface{}) { l.add("INFO", fmt.Sprint(args...)) }
func (l *captureLogger) Infof(format string, args ...interface{}) {
	l.add("INFO", fmt.Sprintf(format, args...))
}
func (l *captureLogger) Warn(args ...interface{}) { l.add("WARN", fmt.Sprint(args...)) }
func (l *captureLogger) Warnf(format string, args ...interface{}) {
	l.add("WARN", fmt.Sprintf(format, args...))
}
func (l *captureLogger) Error(args ...interface{}) { l.add("ERROR", fmt.Sprint(args...)) }
func (l *captureLogger) Errorf(format string, args ...interface{}) {
	l.add("ERROR", fmt.Sprintf(format, args...))
}
func (l *captureLogger) Fatal(args ...interface{}) { l.add("FATAL", fmt.Sprint(args...)) }
func (l *captureLogger) Fatalf(format string, args ...interface{}) {
	l.add("FATAL", fmt.Sprintf(format, args...))
}

func newRequest(t *testing.T, method, target string) *http.Request {
	t.Helper()
	req, err := http.NewRequest(method, target, nil)
	require.NoError(t, err)
	return req
}

func answer(status int) dashfetch.HandleFunc {
	return func(ctx context.Context, req *http.Request) (*http.Response, error) {
		return &http.Response{StatusCode: status, Body: http.NoBody, Request: req}, nil
	}
}

func fail(err error) dashfetch.HandleFunc {
	return func(ctx context.Context, req *http.Request) (*http.Response, error) {
		return nil, err
	}
}

func TestLogging_Levels(t *testing.T) {
	testCases := []struct {
		name   string
		next   dashfetch.HandleFunc
		opts   []LoggingOption
		prefix string
	}{
		{name: "Success skipped by default", next: answer(http.StatusOK), prefix: ""},
		{name: "Success with LogAll", next: answer(http.StatusOK), opts: []LoggingOption{WithShouldLog(LogAll)}, prefix: "INFO GET http://dash.local/api/me -> 200"},
		{name: "Client error", next: answer(http.StatusUnauthorized), prefix: "WARN GET http://dash.local/api/me -> 401"},
		{name: "Server error", next: answer(http.StatusBadGateway), prefix: "ERROR GET http://dash.local/api/me -> 502"},
		{name: "Transport error", next: fail(errors.New("boom")), prefix: "ERROR GET http://dash.local/api/me failed after"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			logger := &captureLogger{}
			mw := Logging(append([]LoggingOption{WithLoggingLogger(logger)}, tc.opts...)...)

			_, _ = mw(context.Background(), newRequest(t, http.MethodGet, "http://dash.local/api/me"), tc.next)

			lines := logger.Lines()
			if tc.prefix == "" {
				assert.Empty(t, lines)
				return
			}
			require.Len(t, lines, 1)
			assert.True(t, strings.HasPrefix(lines[0], tc.prefix), lines[0])
		})
	}
}

func TestLogging_HeadersWithoutCookie(t *testing.T) {
	logger := &captureLogger{}
	mw := Logging(WithLoggingLogger(logger), WithShouldLog(LogAll), WithHeaderLogging(true))

	req := newRequest(t, http.MethodGet, "http://dash.local/api/me")
	req.Header.Set("X-B", "2")
	req.Header.Set("Accept", "application/json")
	req.AddCookie(&http.Cookie{Name: "session", Value: "secret"})

	_, err := mw(context.Background(), req, answer(http.StatusOK))
	require.NoError(t, err)

	lines := logger.Lines()
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "headers={Accept: application/json, X-B: 2}")
	assert.NotContains(t, lines[0], "secret")
	assert.Equal(t, "session=secret", req.Header.Get("Cookie"), "request headers are left alone")
}

func TestRecovery(t *testing.T) {
	logger := &captureLogger{}
	mw := Recovery(WithRecoveryLogger(logger))

	resp, err := mw(context.Background(), newRequest(t, http.MethodGet, "http://dash.local/x"),
		func(ctx context.Context, req *http.Request) (*http.Response, error) {
			panic("handler exploded")
		})
	assert.Nil(t, resp)
	require.ErrorIs(t, err, ErrPanicRecovered)

	var pe *PanicError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "handler exploded", pe.Value)
	assert.NotEmpty(t, pe.Stack)
	assert.NotEmpty(t, logger.Lines())
}

func TestRecovery_PassThrough(t *testing.T) {
	mw := Recovery(WithRecoveryLogger(dashfetch.NewNopLogger()))
	resp, err := mw(context.Background(), newRequest(t, http.MethodGet, "http://dash.local/x"), answer(http.StatusTeapot))
	require.NoError(t, err)
	assert.Equal(t, http.StatusTeapot, resp.StatusCode)
}

func TestRecovery_Filter(t *testing.T) {
	mw := Recovery(WithRecoveryLogger(dashfetch.NewNopLogger()), WithPanicFilter(IgnoreStringPanics()),
		WithStackTrace(false))

	assert.Panics(t, func() {
		_, _ = mw(context.Background(), newRequest(t, http.MethodGet, "http://dash.local/x"),
			func(ctx context.Context, req *http.Request) (*http.Response, error) {
				panic("string panic")
			})
	})

	_, err := mw(context.Background(), newRequest(t, http.MethodGet, "http://dash.local/x"),
		func(ctx context.Context, req *http.Request) (*http.Response, error) {
			panic(errors.New("not a string"))
		})
	var pe *PanicError
	require.True(t, errors.As(err, &pe))
	assert.Empty(t, pe.Stack)
}

func TestOnlyHandleRuntimeErrors(t *testing.T) {
	filter := OnlyHandleRuntimeErrors()
	var s []int
	idx := 3
	func() {
		defer func() {
			assert.True(t, filter(recover()))
		}()
		_ = s[idx]
	}()
	assert.False(t, filter("plain string"))
	assert.False(t, filter(errors.New("other")))
}

func TestRequestID(t *testing.T) {
	mw := RequestID()

	var seen string
	capture := func(ctx context.Context, req *http.Request) (*http.Response, error) {
		seen = req.Header.Get("X-Request-Id")
		return answer(http.StatusOK)(ctx, req)
	}

	req := newRequest(t, http.MethodGet, "http://dash.local/x")
	_, err := mw(context.Background(), req, capture)
	require.NoError(t, err)
	_, err = uuid.Parse(seen)
	assert.NoError(t, err)
	assert.Empty(t, req.Header.Get("X-Request-Id"), "caller's request is not modified")

	req.Header.Set("X-Request-Id", "fixed")
	_, err = mw(context.Background(), req, capture)
	require.NoError(t, err)
	assert.Equal(t, "fixed", seen)
}

func TestMetrics_InMemory(t *testing.T) {
	rec := NewInMemoryMetricsRecorder()
	mw := NewMetricsMiddleware(WithRecorder(rec))

	_, _ = mw(context.Background(), newRequest(t, http.MethodGet, "http://dash.local/api/me"), answer(http.StatusOK))
	_, _ = mw(context.Background(), newRequest(t, http.MethodGet, "http://dash.local/api/me"), answer(http.StatusUnauthorized))
	_, _ = mw(context.Background(), newRequest(t, http.MethodPost, "http://dash.local/api/auth/login"), fail(errors.New("refused")))

	requests, errs := rec.Snapshot()
	assert.Equal(t, map[string]int{"GET /api/me": 2, "POST /api/auth/login": 1}, requests)
	assert.Equal(t, map[string]map[int]int{
		"GET /api/me":          {http.StatusUnauthorized: 1},
		"POST /api/auth/login": {0: 1},
	}, errs)
	assert.Equal(t, []bool{true, false}, rec.LatencySuccess["GET /api/me"])
	assert.Equal(t, 0, rec.InFlight["GET /api/me"])
}

func TestMetrics_FilterAndRoute(t *testing.T) {
	rec := NewInMemoryMetricsRecorder()
	mw := NewMetricsMiddleware(
		WithRecorder(rec),
		WithRoute(func(req *http.Request) string { return req.Method }),
		WithFilter(func(req *http.Request) bool { return !strings.HasPrefix(req.URL.Path, "/events/") }),
		WithEnableLatency(false),
	)

	_, _ = mw(context.Background(), newRequest(t, http.MethodGet, "http://dash.local/events/metrics"), answer(http.StatusOK))
	_, _ = mw(context.Background(), newRequest(t, http.MethodGet, "http://dash.local/api/users"), answer(http.StatusOK))

	requests, _ := rec.Snapshot()
	assert.Equal(t, map[string]int{"GET": 1}, requests)
	assert.Empty(t, rec.LatencyMs)
}

func TestMetrics_Prometheus(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec, err := NewPrometheusMetricsRecorder(WithRegisterer(reg), WithNamespace("test"), WithBuckets(nil))
	require.NoError(t, err)

	// A second recorder on the same registry reuses the collectors.
	again, err := NewPrometheusMetricsRecorder(WithRegisterer(reg), WithNamespace("test"))
	require.NoError(t, err)

	mw := NewMetricsMiddleware(WithRecorder(rec))
	_, _ = mw(context.Background(), newRequest(t, http.MethodGet, "http://dash.local/api/me"), answer(http.StatusOK))
	mw = NewMetricsMiddleware(WithRecorder(again))
	_, _ = mw(context.Background(), newRequest(t, http.MethodGet, "http://dash.local/api/me"), answer(http.StatusInternalServerError))

	assert.Equal(t, 2.0, testutil.ToFloat64(rec.requests.WithLabelValues("GET /api/me")))
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.errors.WithLabelValues("GET /api/me", "500")))
	assert.Equal(t, 0.0, testutil.ToFloat64(rec.inFlight.WithLabelValues("GET /api/me")))
	assert.Equal(t, 2, testutil.CollectAndCount(rec.LatencyCollector()))
}

func TestMiddlewares_ThroughTransport(t *testing.T) {
	requestIDs := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestIDs <- r.Header.Get("X-Request-Id")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	logger := &captureLogger{}
	rec := NewInMemoryMetricsRecorder()
	tr, err := dashfetch.NewTransport(srv.URL,
		dashfetch.WithLogger(dashfetch.NewNopLogger()),
		dashfetch.WithMiddleware(
			Recovery(WithRecoveryLogger(logger)),
			RequestID(),
			Logging(WithLoggingLogger(logger), WithShouldLog(LogAll)),
			NewMetricsMiddleware(WithRecorder(rec)),
		))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	resp, err := tr.Get(ctx, "/api/ping")
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"ok": true}, resp.Value)

	assert.NotEmpty(t, <-requestIDs)
	require.Len(t, logger.Lines(), 1)
	assert.Contains(t, logger.Lines()[0], "/api/ping -> 200")
	requests, _ := rec.Snapshot()
	assert.Equal(t, 1, requests["GET /api/ping"])
}

func TestMiddlewares_Contract(t *testing.T) {
	nop := dashfetch.NewNopLogger()
	dashtest.CheckMiddlewareFunc(t, Logging(WithLoggingLogger(nop), WithShouldLog(LogAll)))
	dashtest.CheckMiddlewareFunc(t, Recovery(WithRecoveryLogger(nop)))
	dashtest.CheckMiddlewareFunc(t, RequestID())
	dashtest.CheckMiddlewareFunc(t, NewMetricsMiddleware())
}
