// Tencent is pleased to support the open source community by making trpc-dashfetch-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-dashfetch-go is licensed under the Apache License Version 2.0.

// Package sseutil provides utilities for Server-Sent Events (SSE).
package sseutil

import (
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"trpc.group/trpc-go/trpc-dashfetch-go/internal/httputil"
)

// Event represents a Server-Sent Event.
type Event struct {
	ID    string
	Type  string // empty means the default "message" type
	Data  []byte
	Retry time.Duration // zero when the event carried no retry field
}

// IsMessage reports whether the event is dispatched to message listeners,
// i.e. it is unnamed or explicitly named "message".
func (e *Event) IsMessage() bool {
	return e.Type == "" || e.Type == "message"
}

// Writer provides basic SSE writing capabilities.
type Writer struct {
	eventCounter uint64
}

// NewWriter creates a new SSE writer.
func NewWriter() *Writer {
	return &Writer{}
}

// GenerateEventID creates a unique event ID.
func (sw *Writer) GenerateEventID() string {
	timestamp := time.Now().UnixNano() / 1000000
	counter := atomic.AddUint64(&sw.eventCounter, 1)
	return fmt.Sprintf("evt-%d-%d", timestamp, counter)
}

// WriteEvent writes a single SSE event and flushes when the writer supports it.
// An empty ID is filled from GenerateEventID. Multi-line data is split into
// several data fields so the reader reassembles it verbatim.
func (sw *Writer) WriteEvent(w http.ResponseWriter, event Event) error {
	if event.ID == "" {
		event.ID = sw.GenerateEventID()
	}
	if _, err := fmt.Fprintf(w, "id: %s\n", event.ID); err != nil {
		return fmt.Errorf("failed to write SSE event ID: %w", err)
	}
	if event.Type != "" {
		if _, err := fmt.Fprintf(w, "event: %s\n", event.Type); err != nil {
			return fmt.Errorf("failed to write SSE event type: %w", err)
		}
	}
	if event.Retry > 0 {
		if _, err := fmt.Fprintf(w, "retry: %d\n", event.Retry.Milliseconds()); err != nil {
			return fmt.Errorf("failed to write SSE retry: %w", err)
		}
	}
	for _, line := range strings.Split(strings.TrimSuffix(string(event.Data), "\n"), "\n") {
		if _, err := fmt.Fprintf(w, "data: %s\n", line); err != nil {
			return fmt.Errorf("failed to write SSE event data line: %w", err)
		}
	}
	if _, err := fmt.Fprint(w, "\n"); err != nil {
		return fmt.Errorf("failed to write SSE event terminator: %w", err)
	}

	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}
	return nil
}

// WriteComment writes a comment line, used as a keep-alive.
func (sw *Writer) WriteComment(w http.ResponseWriter, comment string) error {
	if _, err := fmt.Fprintf(w, ": %s\n\n", comment); err != nil {
		return fmt.Errorf("failed to write SSE comment: %w", err)
	}
	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}
	return nil
}

// SetStandardHeaders sets typical SSE headers.
func SetStandardHeaders(w http.ResponseWriter) {
	w.Header().Set(httputil.ContentTypeHeader, httputil.ContentTypeSSE)
	w.Header().Set(httputil.CacheControlHeader, "no-cache")
	w.Header().Set("Connection", "keep-alive")
}
