// Tencent is pleased to support the open source community by making trpc-dashfetch-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-dashfetch-go is licensed under the Apache License Version 2.0.

package sseutil

import (
	"bufio"
	"bytes"
	"io"
	"strconv"
	"strings"
	"time"
)

// maxLineSize bounds a single field line.
const maxLineSize = 1 << 20

// Reader parses an event stream body into events.
type Reader struct {
	scanner     *bufio.Scanner
	lastEventID string
}

// NewReader wraps r.
func NewReader(r io.Reader) *Reader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), maxLineSize)
	return &Reader{scanner: scanner}
}

// LastEventID returns the last id field seen on the stream.
func (r *Reader) LastEventID() string {
	return r.lastEventID
}

// Next blocks until a complete event has been read. Events without data are
// skipped, as are comment lines. A partial event pending at end of stream is
// discarded. At end of stream Next returns io.EOF; any other error comes from
// the underlying reader.
func (r *Reader) Next() (*Event, error) {
	var (
		data      bytes.Buffer
		eventType string
		retry     time.Duration
		hasData   bool
	)

	for r.scanner.Scan() {
		line := r.scanner.Text()

		// Empty line signals the end of an event.
		if line == "" {
			if !hasData {
				eventType, retry = "", 0
				continue
			}
			return &Event{
				ID:    r.lastEventID,
				Type:  eventType,
				Data:  bytes.TrimSuffix(data.Bytes(), []byte("\n")),
				Retry: retry,
			}, nil
		}
		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, found := strings.Cut(line, ":")
		if found {
			value = strings.TrimPrefix(value, " ")
		}

		switch field {
		case "event":
			eventType = value
		case "data":
			data.WriteString(value)
			data.WriteByte('\n')
			hasData = true
		case "id":
			if !strings.ContainsRune(value, 0) {
				r.lastEventID = value
			}
		case "retry":
			if ms, err := strconv.ParseUint(value, 10, 63); err == nil {
				retry = time.Duration(ms) * time.Millisecond
			}
		}
	}

	if err := r.scanner.Err(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}
