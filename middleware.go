// Tencent is pleased to support the open source community by making trpc-dashfetch-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-dashfetch-go is licensed under the Apache License Version 2.0.

package dashfetch

import (
	"context"
	"net/http"
)

// HandleFunc defines the function signature for a request handler, which is the
// final destination in a middleware chain.
type HandleFunc func(ctx context.Context, req *http.Request) (*http.Response, error)

// MiddlewareFunc defines the function signature for a middleware. It processes a
// request and passes control to the next handler in the chain.
type MiddlewareFunc func(ctx context.Context, req *http.Request, next HandleFunc) (*http.Response, error)

// chainMiddleware wraps final so that middlewares[0] runs first.
func chainMiddleware(final HandleFunc, middlewares []MiddlewareFunc) HandleFunc {
	handler := final
	for i := len(middlewares) - 1; i >= 0; i-- {
		mw, next := middlewares[i], handler
		handler = func(ctx context.Context, req *http.Request) (*http.Response, error) {
			return mw(ctx, req, next)
		}
	}
	return handler
}
