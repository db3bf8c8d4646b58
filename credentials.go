// Tencent is pleased to support the open source community by making trpc-dashfetch-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-dashfetch-go is licensed under the Apache License Version 2.0.

package dashfetch

import (
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"

	"golang.org/x/net/publicsuffix"

	"trpc.group/trpc-go/trpc-dashfetch-go/internal/httputil"
)

// CredentialsMode controls when stored credentials are attached to a request.
type CredentialsMode int

// Credentials modes.
const (
	// CredentialsSameOrigin attaches credentials only to requests whose
	// target shares the transport's base origin.
	CredentialsSameOrigin CredentialsMode = iota
	// CredentialsInclude always attaches credentials.
	CredentialsInclude
	// CredentialsOmit never attaches credentials.
	CredentialsOmit
)

// String returns the fetch-style name of the mode.
func (m CredentialsMode) String() string {
	switch m {
	case CredentialsSameOrigin:
		return "same-origin"
	case CredentialsInclude:
		return "include"
	case CredentialsOmit:
		return "omit"
	default:
		return fmt.Sprintf("CredentialsMode(%d)", int(m))
	}
}

// CredentialStore holds the session credentials of the dashboard user. Its
// method set is that of http.CookieJar, so a *cookiejar.Jar satisfies it.
type CredentialStore interface {
	SetCookies(u *url.URL, cookies []*http.Cookie)
	Cookies(u *url.URL) []*http.Cookie
}

// NewCookieJarStore returns an in-memory store that keeps whatever cookies
// the server sets, scoped with the public suffix list.
func NewCookieJarStore() (CredentialStore, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}
	return jar, nil
}

// StaticCredentials always presents the same cookies and ignores cookies set
// by the server. Useful for a pre-issued session token.
type StaticCredentials []*http.Cookie

// SetCookies is a no-op.
func (StaticCredentials) SetCookies(*url.URL, []*http.Cookie) {}

// Cookies returns the fixed cookie set.
func (s StaticCredentials) Cookies(*url.URL) []*http.Cookie {
	return s
}

// credentialJar applies a CredentialsMode to the store for one request.
// The HTTP client consults it on every hop of a redirect chain, so a cookie
// set on a 3xx answer is kept the way a browser keeps it.
type credentialJar struct {
	store CredentialStore
	base  *url.URL
	mode  CredentialsMode
}

func (j credentialJar) allowed(u *url.URL) bool {
	switch j.mode {
	case CredentialsOmit:
		return false
	case CredentialsSameOrigin:
		return httputil.SameOrigin(j.base, u)
	default:
		return true
	}
}

// Cookies returns the stored cookies for u when the mode lets them ride.
func (j credentialJar) Cookies(u *url.URL) []*http.Cookie {
	if !j.allowed(u) {
		return nil
	}
	return j.store.Cookies(u)
}

// SetCookies stores cookies set by u when the mode allows credentials there.
func (j credentialJar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	if len(cookies) > 0 && j.allowed(u) {
		j.store.SetCookies(u, cookies)
	}
}

// clientFor returns the HTTP client for one request sent in mode. Without a
// store the configured client is used as is; with one, the store replaces
// the client's own jar.
func (t *Transport) clientFor(mode CredentialsMode) *http.Client {
	if t.credentials == nil {
		return t.httpClient
	}
	c := *t.httpClient
	c.Jar = credentialJar{store: t.credentials, base: t.baseURL, mode: mode}
	return &c
}
