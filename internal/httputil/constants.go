// Tencent is pleased to support the open source community by making trpc-dashfetch-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-dashfetch-go is licensed under the Apache License Version 2.0.

// Package httputil defines HTTP related constants and helpers shared by the
// transport, the event stream reader and the fake backend.
package httputil

// HTTP Header constants.
const (
	// ContentTypeHeader is the HTTP Content-Type header
	ContentTypeHeader = "Content-Type"

	// AcceptHeader is the HTTP Accept header
	AcceptHeader = "Accept"

	// CacheControlHeader is the HTTP Cache-Control header
	CacheControlHeader = "Cache-Control"

	// LastEventIDHeader is the SSE Last-Event-ID header
	LastEventIDHeader = "Last-Event-ID"

	// RequestIDHeader carries the per-request correlation id
	RequestIDHeader = "X-Request-Id"
)

// Content Type constants.
const (
	// ContentTypeJSON is the JSON content type
	ContentTypeJSON = "application/json"

	// ContentTypeSSE is the Server-Sent Events (SSE) content type
	ContentTypeSSE = "text/event-stream"

	// ContentTypeForm is the urlencoded form content type
	ContentTypeForm = "application/x-www-form-urlencoded"

	// ContentTypeText is the plain text content type
	ContentTypeText = "text/plain; charset=utf-8"
)
