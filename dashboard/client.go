// Tencent is pleased to support the open source community by making trpc-dashfetch-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-dashfetch-go is licensed under the Apache License Version 2.0.

// Package dashboard is a typed client for the monitoring dashboard API. It is
// a thin layer over dashfetch.Transport: session handling, 401 redirects and
// body decoding all happen there.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	dashfetch "trpc.group/trpc-go/trpc-dashfetch-go"
	"trpc.group/trpc-go/trpc-dashfetch-go/internal/utils"
)

// API paths.
const (
	PathLogin         = "/api/auth/login"
	PathLogout        = "/api/auth/logout"
	PathMe            = "/api/auth/me"
	PathSystemMetrics = "/api/metrics/system"
	PathUsers         = "/api/users"
	PathUser          = "/api/users/{username}"
	PathMetricsEvents = "/events/metrics"

	// Browser form endpoints. The form login answers with a redirect.
	PathLoginPage  = "/login"
	PathLogoutPage = "/logout"
)

// ErrLoginRejected is returned by LoginForm when the backend shows the login
// page again instead of redirecting to the dashboard.
var ErrLoginRejected = errors.New("login rejected")

// User is the signed-in account.
type User struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	Email    string `json:"email"`
}

// SystemMetrics is a point-in-time summary of the monitored host.
type SystemMetrics struct {
	CPU    float64 `json:"cpu"`
	Mem    float64 `json:"mem"`
	GPU    float64 `json:"gpu"`
	Alerts int     `json:"alerts"`
}

// UserRow is one line of the user table. The backend uses one-letter keys.
type UserRow struct {
	Username  string `json:"u"`
	Email     string `json:"e"`
	Role      string `json:"r"`
	Status    string `json:"s"`
	LastLogin string `json:"t"`
}

// MetricsSample is one message of the live metrics stream.
type MetricsSample struct {
	CPU float64
	GPU float64
}

// APIError is a non-2xx answer that was not a 401.
type APIError struct {
	StatusCode int
	Address    string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%v: %s answered %d: %s", dashfetch.ErrUnexpectedStatus, e.Address, e.StatusCode, e.Message)
}

// Unwrap returns dashfetch.ErrUnexpectedStatus.
func (e *APIError) Unwrap() error {
	return dashfetch.ErrUnexpectedStatus
}

// Client calls the dashboard API through a Transport.
type Client struct {
	transport *dashfetch.Transport
	logger    dashfetch.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithLogger sets the logger for dropped stream messages.
func WithLogger(logger dashfetch.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a client on top of t.
func NewClient(t *dashfetch.Transport, opts ...ClientOption) *Client {
	c := &Client{transport: t, logger: dashfetch.GetDefaultLogger()}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = dashfetch.NewNopLogger()
	}
	return c
}

// Transport returns the underlying transport.
func (c *Client) Transport() *dashfetch.Transport {
	return c.transport
}

// Login signs in. The session cookie it sets is kept by the transport's
// credential store. Wrong credentials are answered with 401, which surfaces
// as a *dashfetch.AuthError like any other 401.
func (c *Client) Login(ctx context.Context, username, password string) error {
	resp, err := c.transport.PostForm(ctx, PathLogin, map[string]string{
		"username": username,
		"password": password,
	})
	if err != nil {
		return err
	}
	return checkOK(resp)
}

// LoginForm signs in the way the browser login page does: a form POST to
// /login whose session cookie arrives on the redirect to the dashboard page.
func (c *Client) LoginForm(ctx context.Context, username, password string) error {
	resp, err := c.transport.PostForm(ctx, PathLoginPage, map[string]string{
		"username": username,
		"password": password,
	})
	if err != nil {
		return err
	}
	if !resp.OK() {
		return apiError(resp)
	}
	final, err := url.Parse(resp.URL)
	if err != nil {
		return fmt.Errorf("%w: %v", dashfetch.ErrUnexpectedBody, err)
	}
	if final.Path == PathLoginPage {
		return fmt.Errorf("%w for %q", ErrLoginRejected, username)
	}
	return nil
}

// Logout ends the session.
func (c *Client) Logout(ctx context.Context) error {
	resp, err := c.transport.Fetch(ctx, PathLogout, &dashfetch.FetchOptions{Method: http.MethodPost})
	if err != nil {
		return err
	}
	return checkOK(resp)
}

// Me returns the signed-in user.
func (c *Client) Me(ctx context.Context) (*User, error) {
	var u User
	if err := c.getJSON(ctx, PathMe, nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// SystemMetrics returns the current host summary.
func (c *Client) SystemMetrics(ctx context.Context) (*SystemMetrics, error) {
	var m SystemMetrics
	if err := c.getJSON(ctx, PathSystemMetrics, nil, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// Users returns the user table.
func (c *Client) Users(ctx context.Context) ([]UserRow, error) {
	var rows []UserRow
	if err := c.getJSON(ctx, PathUsers, nil, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// User returns one row of the user table. Only the bundled test backend
// serves this address; it is the typed form of an address template.
func (c *Client) User(ctx context.Context, username string) (*UserRow, error) {
	var row UserRow
	if err := c.getJSON(ctx, PathUser, map[string]string{"username": username}, &row); err != nil {
		return nil, err
	}
	return &row, nil
}

// SubscribeMetrics opens the live metrics stream and calls fn for every
// sample. Messages that are not JSON objects are dropped.
func (c *Client) SubscribeMetrics(ctx context.Context, fn func(MetricsSample), opts ...dashfetch.StreamOption) (*dashfetch.EventStream, error) {
	if fn == nil {
		return nil, dashfetch.ErrNilMessageHandler
	}
	return c.transport.OpenEventStream(ctx, PathMetricsEvents, func(payload interface{}) {
		obj, ok := utils.AsObject(payload)
		if !ok {
			c.logger.Debugf("metrics stream: dropping %T message", payload)
			return
		}
		fn(MetricsSample{
			CPU: utils.ExtractFloat(obj, "cpu"),
			GPU: utils.ExtractFloat(obj, "gpu"),
		})
	}, opts...)
}

func (c *Client) getJSON(ctx context.Context, address string, pathValues map[string]string, out interface{}) error {
	resp, err := c.transport.Fetch(ctx, address, &dashfetch.FetchOptions{PathValues: pathValues})
	if err != nil {
		return err
	}
	if !resp.OK() {
		return apiError(resp)
	}
	if err := resp.Decode(out); err != nil {
		return fmt.Errorf("%w: %w", dashfetch.ErrUnexpectedBody, err)
	}
	return nil
}

// checkOK validates an {"ok": bool, "error": string} answer.
func checkOK(resp *dashfetch.Response) error {
	if !resp.OK() {
		return apiError(resp)
	}
	obj, isObject := utils.AsObject(resp.Value)
	if !resp.IsJSON() || !isObject {
		return fmt.Errorf("%w: %s answered %q", dashfetch.ErrUnexpectedBody, resp.URL, resp.Text)
	}
	if !utils.ExtractBool(obj, "ok") {
		return &APIError{StatusCode: resp.StatusCode, Address: resp.URL, Message: utils.ExtractString(obj, "error")}
	}
	return nil
}

// apiError picks the most useful message out of an error answer: the
// "error" or "detail" field of a JSON body, or the text body itself.
func apiError(resp *dashfetch.Response) *APIError {
	e := &APIError{StatusCode: resp.StatusCode, Address: resp.URL, Message: resp.Text}
	if obj, ok := utils.AsObject(resp.Value); ok {
		if msg := utils.ExtractString(obj, "error"); msg != "" {
			e.Message = msg
		} else if msg := utils.ExtractString(obj, "detail"); msg != "" {
			e.Message = msg
		}
	}
	if e.Message == "" {
		e.Message = http.StatusText(resp.StatusCode)
	}
	return e
}
