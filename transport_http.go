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

// HTTPReqHandler is a custom HTTP request handler interface
type HTTPReqHandler interface {
	Handle(ctx context.Context, client *http.Client, req *http.Request) (*http.Response, error)
}

// defaultHTTPReqHandler is the default implementation of HTTPReqHandler
type defaultHTTPReqHandler struct{}

func (h *defaultHTTPReqHandler) Handle(ctx context.Context, client *http.Client, req *http.Request) (*http.Response, error) {
	return client.Do(req.WithContext(ctx))
}

// NewDefaultHTTPReqHandler creates a new default HTTP request handler
func NewDefaultHTTPReqHandler() HTTPReqHandler {
	return &defaultHTTPReqHandler{}
}

// HTTPReqHandlerFunc adapts a function to HTTPReqHandler.
type HTTPReqHandlerFunc func(ctx context.Context, client *http.Client, req *http.Request) (*http.Response, error)

// Handle calls f.
func (f HTTPReqHandlerFunc) Handle(ctx context.Context, client *http.Client, req *http.Request) (*http.Response, error) {
	return f(ctx, client, req)
}
