// Tencent is pleased to support the open source community by making trpc-dashfetch-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-dashfetch-go is licensed under the Apache License Version 2.0.

package dashfetch

import (
	"encoding/json"
	"fmt"
	"net/http"

	"trpc.group/trpc-go/trpc-dashfetch-go/internal/httputil"
)

// ContentKind is how a response body was interpreted.
type ContentKind int

// Content kinds.
const (
	KindText ContentKind = iota
	KindJSON
)

// String returns the kind name.
func (k ContentKind) String() string {
	if k == KindJSON {
		return "json"
	}
	return "text"
}

// Response is the result of a Fetch. The kind is chosen from the
// Content-Type header alone; the status code plays no part, so a 500 with a
// JSON body comes back as KindJSON. Check StatusCode when it matters.
type Response struct {
	StatusCode int
	Header     http.Header
	URL        string // final URL after redirects
	Body       []byte
	Kind       ContentKind

	// Value holds the decoded JSON document when Kind is KindJSON.
	Value interface{}
	// Text holds the raw body when Kind is KindText.
	Text string
}

// IsJSON reports whether the body was decoded as JSON.
func (r *Response) IsJSON() bool {
	return r.Kind == KindJSON
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Decode unmarshals a JSON body into v.
func (r *Response) Decode(v interface{}) error {
	if r.Kind != KindJSON {
		return &ParseError{
			Address: r.URL,
			Body:    r.Body,
			Err:     fmt.Errorf("content type %q is not JSON", r.Header.Get(httputil.ContentTypeHeader)),
		}
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return &ParseError{Address: r.URL, Body: r.Body, Err: err}
	}
	return nil
}

// newResponse interprets body according to the declared content type.
func newResponse(resp *http.Response, body []byte) (*Response, error) {
	r := &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		URL:        resp.Request.URL.String(),
		Body:       body,
	}

	if !httputil.IsJSONContentType(resp.Header.Get(httputil.ContentTypeHeader)) {
		r.Kind = KindText
		r.Text = string(body)
		return r, nil
	}

	r.Kind = KindJSON
	if err := json.Unmarshal(body, &r.Value); err != nil {
		return nil, &ParseError{Address: r.URL, Body: body, Err: err}
	}
	return r, nil
}
