// Tencent is pleased to support the open source community by making trpc-dashfetch-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-dashfetch-go is licensed under the Apache License Version 2.0.

// Package dashfetch is the client side transport of the monitoring dashboard.
//
// Every request goes through Transport, which attaches the session
// credentials, turns a 401 answer into a single call to the configured
// Navigator plus an AuthError, and decodes bodies by their declared content
// type. Server-sent event subscriptions are opened with OpenEventStream.
package dashfetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"golang.org/x/time/rate"

	"trpc.group/trpc-go/trpc-dashfetch-go/internal/httputil"
)

// Transport performs authenticated requests against one dashboard origin.
// It is safe for concurrent use; calls share nothing but the credential store.
type Transport struct {
	baseURL        *url.URL         // Base URL that relative addresses resolve against.
	loginPath      string           // Login entry point, relative to baseURL.
	httpClient     *http.Client     // HTTP client.
	httpReqHandler HTTPReqHandler   // HTTP request handler.
	httpHeaders    http.Header      // Headers added to every request.
	credentials    CredentialStore  // Session credentials, may be nil.
	navigator      Navigator        // Reaction to 401.
	middlewares    []MiddlewareFunc // Request middlewares, outermost first.
	limiter        *rate.Limiter    // Optional client side throttle.
	logger         Logger
}

// TransportOption configures a Transport.
type TransportOption func(*Transport)

// NewTransport creates a transport for the dashboard at baseURL. baseURL may
// be empty, in which case only absolute addresses work and same-origin
// credentials are never sent.
func NewTransport(baseURL string, opts ...TransportOption) (*Transport, error) {
	t := &Transport{
		loginPath:      DefaultLoginPath,
		httpClient:     &http.Client{},
		httpReqHandler: NewDefaultHTTPReqHandler(),
		httpHeaders:    make(http.Header),
		logger:         GetDefaultLogger(),
	}

	if baseURL != "" {
		parsed, err := url.Parse(baseURL)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidBaseURL, err)
		}
		if !parsed.IsAbs() || parsed.Host == "" {
			return nil, fmt.Errorf("%w: %q is not absolute", ErrInvalidBaseURL, baseURL)
		}
		t.baseURL = parsed
	}

	for _, opt := range opts {
		opt(t)
	}

	if t.logger == nil {
		t.logger = NewNopLogger()
	}
	if t.navigator == nil {
		t.navigator = logNavigator{logger: t.logger}
	}
	return t, nil
}

// WithHTTPClient sets the underlying HTTP client. Its timeout is the only
// timeout the transport applies.
func WithHTTPClient(client *http.Client) TransportOption {
	return func(t *Transport) {
		if client != nil {
			t.httpClient = client
		}
	}
}

// WithTransportHTTPReqHandler sets a custom HTTP request handler.
func WithTransportHTTPReqHandler(handler HTTPReqHandler) TransportOption {
	return func(t *Transport) {
		if handler != nil {
			t.httpReqHandler = handler
		}
	}
}

// WithHTTPHeaders adds headers to every request.
func WithHTTPHeaders(headers http.Header) TransportOption {
	return func(t *Transport) {
		for key, values := range headers {
			for _, value := range values {
				t.httpHeaders.Add(key, value)
			}
		}
	}
}

// WithCredentialStore sets where session credentials are read from and
// written to.
func WithCredentialStore(store CredentialStore) TransportOption {
	return func(t *Transport) {
		t.credentials = store
	}
}

// WithNavigator sets the reaction to a 401 answer.
func WithNavigator(n Navigator) TransportOption {
	return func(t *Transport) {
		t.navigator = n
	}
}

// WithLoginPath overrides DefaultLoginPath.
func WithLoginPath(path string) TransportOption {
	return func(t *Transport) {
		if path != "" {
			t.loginPath = path
		}
	}
}

// WithMiddleware appends request middlewares. The first one added runs first.
func WithMiddleware(middlewares ...MiddlewareFunc) TransportOption {
	return func(t *Transport) {
		t.middlewares = append(t.middlewares, middlewares...)
	}
}

// WithRateLimit throttles outgoing requests to rps per second with the given
// burst. A non-positive rps disables throttling.
func WithRateLimit(rps float64, burst int) TransportOption {
	return func(t *Transport) {
		if rps <= 0 {
			t.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		t.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithLogger sets the logger for the transport and the streams it opens.
func WithLogger(logger Logger) TransportOption {
	return func(t *Transport) {
		t.logger = logger
	}
}

// BaseURL returns the base URL, nil when none was configured.
func (t *Transport) BaseURL() *url.URL {
	if t.baseURL == nil {
		return nil
	}
	u := *t.baseURL
	return &u
}

// LoginURL returns the address the navigator is sent to on 401.
func (t *Transport) LoginURL() string {
	target, err := httputil.ResolveAddress(t.baseURL, t.loginPath)
	if err != nil {
		return t.loginPath
	}
	return target.String()
}

// Fetch performs a request and interprets the answer.
//
// Credentials are always sent in same-origin mode, whatever opts says. A 401
// calls the navigator once and returns an *AuthError without reading the
// body. Any other status is decoded by Content-Type: a body declared as
// application/json lands in Response.Value, anything else in Response.Text.
func (t *Transport) Fetch(ctx context.Context, address string, opts *FetchOptions) (*Response, error) {
	req, err := t.newRequest(ctx, address, opts)
	if err != nil {
		return nil, err
	}
	resp, err := t.send(ctx, req, CredentialsSameOrigin)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		loginURL := t.LoginURL()
		t.logger.Debugf("%s %s answered 401", req.Method, req.URL)
		t.navigator.Navigate(ctx, loginURL)
		return nil, &AuthError{Method: req.Method, Address: req.URL.String(), LoginURL: loginURL}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Method: req.Method, Address: req.URL.String(), Err: fmt.Errorf("read body: %w", err)}
	}
	return newResponse(resp, body)
}

// Get is Fetch with method GET and no body.
func (t *Transport) Get(ctx context.Context, address string) (*Response, error) {
	return t.Fetch(ctx, address, nil)
}

// PostForm posts fields as an urlencoded form. nil fields post an empty body.
func (t *Transport) PostForm(ctx context.Context, address string, fields map[string]string) (*Response, error) {
	return t.Fetch(ctx, address, &FetchOptions{
		Method: http.MethodPost,
		Header: http.Header{httputil.ContentTypeHeader: {httputil.ContentTypeForm}},
		Body:   encodeForm(fields),
	})
}

// send waits for the rate limiter and runs req through the middleware chain,
// with credentials handled in mode on every hop. Every failure comes back as
// a *TransportError.
func (t *Transport) send(ctx context.Context, req *http.Request, mode CredentialsMode) (*http.Response, error) {
	if t.limiter != nil {
		if err := t.limiter.Wait(ctx); err != nil {
			return nil, &TransportError{Method: req.Method, Address: req.URL.String(), Err: fmt.Errorf("rate limiter: %w", err)}
		}
	}

	client := t.clientFor(mode)
	final := func(ctx context.Context, req *http.Request) (*http.Response, error) {
		return t.httpReqHandler.Handle(ctx, client, req)
	}
	resp, err := chainMiddleware(final, t.middlewares)(ctx, req)
	if err != nil {
		t.logger.Debugf("%s %s failed: %v", req.Method, req.URL, err)
		if resp != nil && resp.Body != nil {
			resp.Body.Close()
		}
		return nil, &TransportError{Method: req.Method, Address: req.URL.String(), Err: err}
	}
	if resp == nil {
		return nil, &TransportError{Method: req.Method, Address: req.URL.String(), Err: fmt.Errorf("nil response")}
	}
	if resp.Request == nil {
		resp.Request = req
	}
	if resp.Body == nil {
		resp.Body = http.NoBody
	}
	return resp, nil
}
