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
	"runtime/debug"
	"strings"

	dashfetch "trpc.group/trpc-go/trpc-dashfetch-go"
)

// ErrPanicRecovered is wrapped by the error Recovery returns for a panic.
var ErrPanicRecovered = errors.New("panic recovered")

// PanicError carries the recovered value.
type PanicError struct {
	Value interface{}
	Stack string
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("%v: %v", ErrPanicRecovered, e.Value)
}

func (e *PanicError) Unwrap() error {
	return ErrPanicRecovered
}

type RecoveryConfig struct {
	// Logger
	// Optional. Default value GetDefaultLogger().
	Logger dashfetch.Logger

	// EnableStack
	// Optional. Default value true.
	EnableStack bool

	// StackSkip is the number of recovery frames dropped from the trace.
	// Optional. Default value 3.
	StackSkip int

	// MaxStackSize is the size of the stack to be printed.
	// Optional. Default value 8KB.
	MaxStackSize int

	// PanicFilter returns true for panics that should be recovered. Others
	// are re-raised.
	// Optional. Default value nil (recover all panics).
	PanicFilter func(panicErr interface{}) bool
}

// DefaultRecoveryConfig
func DefaultRecoveryConfig() *RecoveryConfig {
	return &RecoveryConfig{
		Logger:       dashfetch.GetDefaultLogger(),
		EnableStack:  true,
		StackSkip:    3,
		MaxStackSize: 8192,
	}
}

// Recovery turns a panic further down the chain into a *PanicError. Put it
// first so it covers every later middleware and the request handler.
/*
Usage example:
	dashfetch.NewTransport(base, dashfetch.WithMiddleware(
		middlewares.Recovery(middlewares.WithMaxStackSize(4096)),
		middlewares.Logging(),
	))
*/
func Recovery(opts ...RecoveryOption) dashfetch.MiddlewareFunc {
	cfg := DefaultRecoveryConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.Logger == nil {
		cfg.Logger = dashfetch.NewNopLogger()
	}
	m := &recoveryMiddleware{config: cfg}
	return m.handle
}

type recoveryMiddleware struct {
	config *RecoveryConfig
}

func (m *recoveryMiddleware) handle(ctx context.Context, req *http.Request, next dashfetch.HandleFunc) (resp *http.Response, err error) {
	defer func() {
		panicErr := recover()
		if panicErr == nil {
			return
		}
		if m.config.PanicFilter != nil && !m.config.PanicFilter(panicErr) {
			panic(panicErr)
		}

		pe := &PanicError{Value: panicErr}
		if m.config.EnableStack {
			pe.Stack = m.stackTrace()
		}
		m.config.Logger.Errorf("%s %s: recovered panic: %v", req.Method, req.URL, panicErr)
		if pe.Stack != "" {
			m.config.Logger.Errorf("Stack trace:\n%s", pe.Stack)
		}
		resp, err = nil, pe
	}()

	return next(ctx, req)
}

// stackTrace returns the current stack without the recovery frames.
func (m *recoveryMiddleware) stackTrace() string {
	fullStack := string(debug.Stack())
	if m.config.MaxStackSize > 0 && len(fullStack) > m.config.MaxStackSize {
		fullStack = fullStack[:m.config.MaxStackSize] + "\n... (truncated)"
	}

	var filtered []string
	skip := m.config.StackSkip
	for _, line := range strings.Split(fullStack, "\n") {
		if skip > 0 && (strings.Contains(line, "runtime/panic.go") ||
			strings.Contains(line, "recovery.go") ||
			strings.Contains(line, "runtime/debug")) {
			skip--
			continue
		}
		if strings.TrimSpace(line) != "" {
			filtered = append(filtered, line)
		}
		if len(filtered) > 50 {
			filtered = append(filtered, "... (more frames truncated)")
			break
		}
	}
	return strings.Join(filtered, "\n")
}

// RecoveryOption configures Recovery.
type RecoveryOption func(*RecoveryConfig)

// WithRecoveryLogger sets the logger panics are reported to.
func WithRecoveryLogger(logger dashfetch.Logger) RecoveryOption {
	return func(config *RecoveryConfig) {
		config.Logger = logger
	}
}

// WithStackTrace enables or disables stack trace capture.
func WithStackTrace(enable bool) RecoveryOption {
	return func(config *RecoveryConfig) {
		config.EnableStack = enable
	}
}

// WithStackSkip sets the number of stack frames to skip.
func WithStackSkip(skip int) RecoveryOption {
	return func(config *RecoveryConfig) {
		config.StackSkip = skip
	}
}

// WithMaxStackSize sets the maximum stack trace size.
func WithMaxStackSize(size int) RecoveryOption {
	return func(config *RecoveryConfig) {
		config.MaxStackSize = size
	}
}

// WithPanicFilter sets the panic filter.
func WithPanicFilter(filter func(interface{}) bool) RecoveryOption {
	return func(config *RecoveryConfig) {
		config.PanicFilter = filter
	}
}

// IgnoreStringPanics re-raises panics whose value is a string.
func IgnoreStringPanics() func(interface{}) bool {
	return func(panicErr interface{}) bool {
		_, isString := panicErr.(string)
		return !isString
	}
}

// OnlyHandleRuntimeErrors recovers runtime errors only.
func OnlyHandleRuntimeErrors() func(interface{}) bool {
	return func(panicErr interface{}) bool {
		if err, ok := panicErr.(error); ok {
			msg := err.Error()
			return strings.Contains(msg, "runtime error") ||
				strings.Contains(msg, "slice bounds out of range") ||
				strings.Contains(msg, "nil pointer dereference")
		}
		return false
	}
}
