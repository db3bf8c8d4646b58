// Tencent is pleased to support the open source community by making trpc-dashfetch-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-dashfetch-go is licensed under the Apache License Version 2.0.

// Package middlewares provides request middlewares for dashfetch.Transport.
package middlewares

import (
	"context"
	"net/http"
	"sort"
	"strings"
	"time"

	dashfetch "trpc.group/trpc-go/trpc-dashfetch-go"
)

// LoggingConfig controls what the logging middleware writes.
type LoggingConfig struct {
	// Logger. Optional, defaults to dashfetch.GetDefaultLogger().
	Logger dashfetch.Logger

	// ShouldLog decides whether a finished request is logged. Optional,
	// defaults to logging failures and 4xx/5xx answers only.
	ShouldLog func(status int, duration time.Duration, err error) bool

	// LogHeaders adds request headers to the line. Cookie headers are
	// never logged.
	LogHeaders bool
}

// LoggingOption configures the logging middleware.
type LoggingOption func(*LoggingConfig)

// WithLoggingLogger sets the logger.
func WithLoggingLogger(logger dashfetch.Logger) LoggingOption {
	return func(c *LoggingConfig) {
		c.Logger = logger
	}
}

// WithShouldLog sets a custom logging condition.
func WithShouldLog(f func(status int, duration time.Duration, err error) bool) LoggingOption {
	return func(c *LoggingConfig) {
		c.ShouldLog = f
	}
}

// WithHeaderLogging enables or disables header logging.
func WithHeaderLogging(enabled bool) LoggingOption {
	return func(c *LoggingConfig) {
		c.LogHeaders = enabled
	}
}

// LogAll logs every request.
func LogAll(int, time.Duration, error) bool { return true }

func defaultShouldLog(status int, _ time.Duration, err error) bool {
	return err != nil || status >= http.StatusBadRequest
}

// Logging creates a middleware that logs finished requests.
/*
Usage example:
	dashfetch.NewTransport(base, dashfetch.WithMiddleware(middlewares.Logging(
		middlewares.WithShouldLog(middlewares.LogAll),
	)))
*/
func Logging(opts ...LoggingOption) dashfetch.MiddlewareFunc {
	cfg := &LoggingConfig{
		Logger:    dashfetch.GetDefaultLogger(),
		ShouldLog: defaultShouldLog,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return func(ctx context.Context, req *http.Request, next dashfetch.HandleFunc) (*http.Response, error) {
		start := time.Now()
		resp, err := next(ctx, req)
		duration := time.Since(start)

		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		if !cfg.ShouldLog(status, duration, err) {
			return resp, err
		}

		headers := ""
		if cfg.LogHeaders {
			h := req.Header.Clone()
			h.Del("Cookie")
			headers = formatHeaders(h)
		}

		switch {
		case err != nil:
			cfg.Logger.Errorf("%s %s failed after %s: %v%s", req.Method, req.URL, duration, err, headers)
		case status >= http.StatusInternalServerError:
			cfg.Logger.Errorf("%s %s -> %d in %s%s", req.Method, req.URL, status, duration, headers)
		case status >= http.StatusBadRequest:
			cfg.Logger.Warnf("%s %s -> %d in %s%s", req.Method, req.URL, status, duration, headers)
		default:
			cfg.Logger.Infof("%s %s -> %d in %s%s", req.Method, req.URL, status, duration, headers)
		}
		return resp, err
	}
}

// formatHeaders renders headers in key order.
func formatHeaders(h http.Header) string {
	if len(h) == 0 {
		return ""
	}
	keys := make([]string, 0, len(h))
	for k := range h {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(" headers={")
	for i, k := range keys {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(k)
		b.WriteString(": ")
		b.WriteString(strings.Join(h[k], ","))
	}
	b.WriteString("}")
	return b.String()
}
