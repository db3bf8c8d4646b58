// Tencent is pleased to support the open source community by making trpc-dashfetch-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-dashfetch-go is licensed under the Apache License Version 2.0.

package dashfetch

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"
	"sync/atomic"

	"trpc.group/trpc-go/trpc-dashfetch-go/internal/httputil"
	"trpc.group/trpc-go/trpc-dashfetch-go/internal/sseutil"
)

// StreamState is the state of an EventStream.
type StreamState int32

// Stream states. Closed is terminal.
const (
	StreamOpen StreamState = iota
	StreamClosed
)

// String returns the state name.
func (s StreamState) String() string {
	if s == StreamClosed {
		return "closed"
	}
	return "open"
}

// MessageHandler receives the JSON-decoded data of each message event.
type MessageHandler func(payload interface{})

// EventStream is an open server-sent event subscription.
//
// The stream is Open from the moment OpenEventStream returns and becomes
// Closed on Close or on the first transport level problem: a failed
// connection, a non-200 answer, a body that is not an event stream, a read
// error or the server ending the response. Nothing is reported to the
// subscriber and nothing reconnects; open a new stream to resume.
type EventStream struct {
	url    string
	state  atomic.Int32
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once

	onMessage    MessageHandler
	onParseError func(error)
	lastEventID  atomic.Value // string
	logger       Logger
}

// StreamOption configures OpenEventStream.
type StreamOption func(*streamOptions)

type streamOptions struct {
	lastEventID  string
	onParseError func(error)
}

// WithLastEventID sends Last-Event-ID so a server that supports it can
// resume after the given event.
func WithLastEventID(id string) StreamOption {
	return func(o *streamOptions) {
		o.lastEventID = id
	}
}

// WithParseErrorHandler receives a *ParseError for each message whose data
// is not valid JSON. The message is skipped and the stream stays open.
// Without a handler such messages are logged at error level.
func WithParseErrorHandler(fn func(error)) StreamOption {
	return func(o *streamOptions) {
		o.onParseError = fn
	}
}

// OpenEventStream subscribes to the event stream at address and returns
// immediately. Connecting and reading happen on a separate goroutine, which
// calls onMessage once per message event, in arrival order, never
// concurrently.
//
// Credentials are always included, regardless of origin. The stream is not
// bound to ctx's cancellation; only values are taken from it. Stop it with
// Close.
func (t *Transport) OpenEventStream(ctx context.Context, address string, onMessage MessageHandler, opts ...StreamOption) (*EventStream, error) {
	if onMessage == nil {
		return nil, ErrNilMessageHandler
	}
	o := &streamOptions{}
	for _, opt := range opts {
		opt(o)
	}

	streamCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	req, err := t.newRequest(streamCtx, address, &FetchOptions{
		Header: http.Header{
			httputil.AcceptHeader:       {httputil.ContentTypeSSE},
			httputil.CacheControlHeader: {"no-cache"},
		},
	})
	if err != nil {
		cancel()
		return nil, err
	}
	if o.lastEventID != "" {
		req.Header.Set(httputil.LastEventIDHeader, o.lastEventID)
	}

	s := &EventStream{
		url:          req.URL.String(),
		cancel:       cancel,
		done:         make(chan struct{}),
		onMessage:    onMessage,
		onParseError: o.onParseError,
		logger:       t.logger,
	}
	s.lastEventID.Store(o.lastEventID)

	go s.run(streamCtx, t, req)
	return s, nil
}

// URL returns the resolved stream address.
func (s *EventStream) URL() string {
	return s.url
}

// State returns the current state.
func (s *EventStream) State() StreamState {
	return StreamState(s.state.Load())
}

// Done is closed once the stream is Closed and its goroutine has exited.
func (s *EventStream) Done() <-chan struct{} {
	return s.done
}

// LastEventID returns the id of the last event received, or the id the
// stream was opened with.
func (s *EventStream) LastEventID() string {
	id, _ := s.lastEventID.Load().(string)
	return id
}

// Close closes the stream. It is safe to call more than once and from
// inside the message handler. At most one message that was already being
// dispatched may still reach the handler after Close returns.
func (s *EventStream) Close() error {
	s.shutdown()
	return nil
}

func (s *EventStream) shutdown() {
	s.once.Do(func() {
		s.state.Store(int32(StreamClosed))
		s.cancel()
	})
}

// run owns the connection for the whole life of the stream.
func (s *EventStream) run(ctx context.Context, t *Transport, req *http.Request) {
	defer close(s.done)
	defer s.shutdown()

	resp, err := t.send(ctx, req, CredentialsInclude)
	if err != nil {
		if s.State() == StreamOpen {
			s.logger.Debugf("event stream %s: %v", s.url, err)
		}
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		s.logger.Warnf("event stream %s: unexpected status %d", s.url, resp.StatusCode)
		return
	}
	if ct := resp.Header.Get(httputil.ContentTypeHeader); !httputil.IsEventStream(ct) {
		s.logger.Warnf("event stream %s: unexpected content type %q", s.url, ct)
		return
	}

	reader := sseutil.NewReader(resp.Body)
	for {
		evt, err := reader.Next()
		if err != nil {
			if !errors.Is(err, io.EOF) && s.State() == StreamOpen {
				s.logger.Debugf("event stream %s: read: %v", s.url, err)
			}
			return
		}
		if evt.ID != "" {
			s.lastEventID.Store(evt.ID)
		}
		if !evt.IsMessage() {
			continue
		}

		var payload interface{}
		if err := json.Unmarshal(evt.Data, &payload); err != nil {
			s.parseFailed(&ParseError{Address: s.url, Body: evt.Data, Err: err})
			continue
		}
		if s.State() != StreamOpen {
			return
		}
		s.onMessage(payload)
	}
}

func (s *EventStream) parseFailed(err *ParseError) {
	if s.onParseError != nil {
		s.onParseError(err)
		return
	}
	s.logger.Errorf("event stream %s: %v", s.url, err)
}
