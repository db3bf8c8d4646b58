// Tencent is pleased to support the open source community by making trpc-dashfetch-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-dashfetch-go is licensed under the Apache License Version 2.0.

package httputil

import (
	"net/url"
	"strings"

	"trpc.group/trpc-go/trpc-dashfetch-go/internal/errors"
)

// IsJSONContentType reports whether a Content-Type header value declares a
// JSON body. Matching is a plain substring test, so parameters such as
// charset and vendor suffixes placed after the type are accepted.
func IsJSONContentType(contentType string) bool {
	return strings.Contains(contentType, ContentTypeJSON)
}

// IsEventStream reports whether a Content-Type header value declares an
// event stream.
func IsEventStream(contentType string) bool {
	return strings.Contains(contentType, ContentTypeSSE)
}

// ParseAcceptHeader parses HTTP Accept header, returns a list of content types
// For example: "application/json, text/plain;q=0.9, */*;q=0.8" will return
// ["application/json", "text/plain", "*/*"]
func ParseAcceptHeader(acceptHeader string) []string {
	accepts := []string{}
	for _, accept := range strings.Split(acceptHeader, ",") {
		mediaType := strings.TrimSpace(strings.Split(accept, ";")[0])
		if mediaType != "" {
			accepts = append(accepts, mediaType)
		}
	}
	return accepts
}

// AcceptsContentType checks if an Accept header admits the given content type,
// either literally or through the "*/*" wildcard.
func AcceptsContentType(acceptHeader, contentType string) bool {
	for _, accept := range ParseAcceptHeader(acceptHeader) {
		if accept == contentType || accept == "*/*" {
			return true
		}
	}
	return false
}

// ResolveAddress resolves address against base. Absolute addresses are
// returned as is; relative ones are resolved the way a browser resolves a
// link on the page at base.
func ResolveAddress(base *url.URL, address string) (*url.URL, error) {
	if strings.TrimSpace(address) == "" {
		return nil, errors.ErrEmptyAddress
	}
	ref, err := url.Parse(address)
	if err != nil {
		return nil, err
	}
	if base == nil || ref.IsAbs() {
		return ref, nil
	}
	return base.ResolveReference(ref), nil
}

// SameOrigin reports whether a and b share scheme, host and port.
func SameOrigin(a, b *url.URL) bool {
	if a == nil || b == nil {
		return false
	}
	return strings.EqualFold(a.Scheme, b.Scheme) &&
		strings.EqualFold(a.Hostname(), b.Hostname()) &&
		effectivePort(a) == effectivePort(b)
}

func effectivePort(u *url.URL) string {
	if p := u.Port(); p != "" {
		return p
	}
	switch strings.ToLower(u.Scheme) {
	case "https":
		return "443"
	case "http":
		return "80"
	}
	return ""
}
