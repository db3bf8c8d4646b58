// Tencent is pleased to support the open source community by making trpc-dashfetch-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-dashfetch-go is licensed under the Apache License Version 2.0.

package middlewares

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	dashfetch "trpc.group/trpc-go/trpc-dashfetch-go"
	"trpc.group/trpc-go/trpc-dashfetch-go/internal/httputil"
)

// RequestID sets X-Request-Id to a random UUID on requests that do not
// carry one yet. The request is cloned before it is changed.
func RequestID() dashfetch.MiddlewareFunc {
	return func(ctx context.Context, req *http.Request, next dashfetch.HandleFunc) (*http.Response, error) {
		if req.Header.Get(httputil.RequestIDHeader) != "" {
			return next(ctx, req)
		}
		req = req.Clone(ctx)
		req.Header.Set(httputil.RequestIDHeader, uuid.NewString())
		return next(ctx, req)
	}
}
