// Tencent is pleased to support the open source community by making trpc-dashfetch-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-dashfetch-go is licensed under the Apache License Version 2.0.

package dashfetch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/yosida95/uritemplate/v3"

	"trpc.group/trpc-go/trpc-dashfetch-go/internal/httputil"
)

// FetchOptions configures a single Fetch. The zero value is a GET with no
// extra headers and no body.
type FetchOptions struct {
	// Method defaults to GET.
	Method string

	// Header entries replace the transport's default headers of the same name.
	Header http.Header

	// Body is sent as is. nil means no body.
	Body []byte

	// Credentials is accepted for symmetry with browser fetch options and is
	// ignored: Fetch always uses CredentialsSameOrigin.
	Credentials CredentialsMode

	// PathValues, when non-nil, makes the address an RFC 6570 URI template
	// expanded with these values, e.g. "/api/users/{name}".
	PathValues map[string]string
}

// expandAddress expands address as a URI template when values are given.
func expandAddress(address string, values map[string]string) (string, error) {
	if values == nil {
		return address, nil
	}
	tmpl, err := uritemplate.New(address)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidTemplate, err)
	}
	vars := uritemplate.Values{}
	for k, v := range values {
		vars.Set(k, uritemplate.String(v))
	}
	expanded, err := tmpl.Expand(vars)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidTemplate, err)
	}
	return expanded, nil
}

// encodeForm serializes fields as an urlencoded form. Keys come out sorted;
// nil and empty maps both give "".
func encodeForm(fields map[string]string) []byte {
	values := make(url.Values, len(fields))
	for k, v := range fields {
		values.Set(k, v)
	}
	return []byte(values.Encode())
}

// newRequest resolves address and builds the outgoing request. Credentials
// are attached separately.
func (t *Transport) newRequest(ctx context.Context, address string, opts *FetchOptions) (*http.Request, error) {
	if opts == nil {
		opts = &FetchOptions{}
	}

	expanded, err := expandAddress(address, opts.PathValues)
	if err != nil {
		return nil, err
	}
	target, err := httputil.ResolveAddress(t.baseURL, expanded)
	if err != nil {
		if strings.TrimSpace(expanded) == "" {
			return nil, err
		}
		return nil, fmt.Errorf("parse address %q: %w", expanded, err)
	}

	method := strings.ToUpper(opts.Method)
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if opts.Body != nil {
		body = bytes.NewReader(opts.Body)
	}

	req, err := http.NewRequestWithContext(ctx, method, target.String(), body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	for key, values := range t.httpHeaders {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}
	for key, values := range opts.Header {
		req.Header.Del(key)
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}
	return req, nil
}
