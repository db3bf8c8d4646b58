// Tencent is pleased to support the open source community by making trpc-dashfetch-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-dashfetch-go is licensed under the Apache License Version 2.0.

package dashfetch

import (
	"fmt"

	"trpc.group/trpc-go/trpc-dashfetch-go/internal/errors"
)

// Failure taxonomy. Every error returned by Fetch, Get and PostForm matches at
// most one of these with errors.Is.
var (
	// ErrAuthenticationRequired is returned when the server answered 401. The
	// navigator has already been told to go to the login page.
	ErrAuthenticationRequired = errors.ErrAuthenticationRequired

	// ErrTransportFailure is returned for network level failures: DNS,
	// refused connections, timeouts, cancelled contexts, truncated bodies.
	ErrTransportFailure = errors.ErrTransportFailure

	// ErrParseFailure is returned when a body declared as JSON does not parse.
	ErrParseFailure = errors.ErrParseFailure

	// ErrEmptyAddress is returned for a blank request address.
	ErrEmptyAddress = errors.ErrEmptyAddress

	// ErrInvalidBaseURL is returned by NewTransport for a malformed base URL.
	ErrInvalidBaseURL = errors.ErrInvalidBaseURL

	// ErrInvalidTemplate is returned when an address template cannot be expanded.
	ErrInvalidTemplate = errors.ErrInvalidTemplate

	// ErrNilMessageHandler is returned by OpenEventStream without a handler.
	ErrNilMessageHandler = errors.ErrNilMessageHandler

	// ErrUnexpectedStatus is wrapped by typed API clients for non-2xx answers.
	ErrUnexpectedStatus = errors.ErrUnexpectedStatus

	// ErrUnexpectedBody is wrapped by typed API clients when a body does not
	// have the expected shape.
	ErrUnexpectedBody = errors.ErrUnexpectedBody
)

// AuthError reports a 401 answer.
type AuthError struct {
	Method   string
	Address  string
	LoginURL string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%v: %s %s (login at %s)", ErrAuthenticationRequired, e.Method, e.Address, e.LoginURL)
}

// Unwrap returns ErrAuthenticationRequired.
func (e *AuthError) Unwrap() error {
	return ErrAuthenticationRequired
}

// TransportError reports a request that never produced a usable response.
type TransportError struct {
	Method  string
	Address string
	Err     error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%v: %s %s: %v", ErrTransportFailure, e.Method, e.Address, e.Err)
}

// Unwrap exposes both ErrTransportFailure and the underlying cause, so
// errors.Is(err, context.DeadlineExceeded) keeps working.
func (e *TransportError) Unwrap() []error {
	return []error{ErrTransportFailure, e.Err}
}

// ParseError reports a JSON body, or event payload, that failed to decode.
type ParseError struct {
	Address string
	Body    []byte
	Err     error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%v: %s: %v", ErrParseFailure, e.Address, e.Err)
}

// Unwrap exposes both ErrParseFailure and the decoder error.
func (e *ParseError) Unwrap() []error {
	return []error{ErrParseFailure, e.Err}
}
