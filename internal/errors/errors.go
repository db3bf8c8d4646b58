// Tencent is pleased to support the open source community by making trpc-dashfetch-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-dashfetch-go is licensed under the Apache License Version 2.0.

// Package errors defines the sentinel errors shared by dashfetch packages.
package errors

import "errors"

// Common errors
var (
	// Failure taxonomy of the transport.
	ErrAuthenticationRequired = errors.New("authentication required")
	ErrTransportFailure       = errors.New("transport failure")
	ErrParseFailure           = errors.New("failed to parse response body")

	// Argument and configuration errors.
	ErrEmptyAddress      = errors.New("request address cannot be empty")
	ErrInvalidBaseURL    = errors.New("invalid base URL")
	ErrInvalidTemplate   = errors.New("invalid address template")
	ErrNilMessageHandler = errors.New("message handler cannot be nil")

	// Dashboard API errors.
	ErrUnexpectedStatus = errors.New("unexpected status code")
	ErrUnexpectedBody   = errors.New("unexpected response body")
)
