// Tencent is pleased to support the open source community by making trpc-dashfetch-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-dashfetch-go is licensed under the Apache License Version 2.0.

// Package session keeps the server-side cookie sessions of the dashboard
// backend used in tests.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Session is one signed-in browser.
type Session struct {
	// Token is the cookie value.
	Token    string
	Username string

	CreatedAt    time.Time
	LastActivity time.Time
}

// Store maps cookie tokens to sessions. Sessions idle for longer than the
// TTL are treated as gone; a zero TTL keeps them forever.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*Session
	ttl      time.Duration
	now      func() time.Time
}

// NewStore creates a session store.
func NewStore(ttl time.Duration) *Store {
	return &Store{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		now:      time.Now,
	}
}

// TTL returns the idle timeout.
func (m *Store) TTL() time.Duration {
	return m.ttl
}

// Create starts a session for username.
func (m *Store) Create(username string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	s := &Session{
		Token:        uuid.NewString(),
		Username:     username,
		CreatedAt:    now,
		LastActivity: now,
	}
	m.sessions[s.Token] = s
	copied := *s
	return &copied
}

// Get resolves a token and marks the session active. Expired sessions are
// removed and reported as missing.
func (m *Store) Get(token string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[token]
	if !ok {
		return nil, false
	}
	now := m.now()
	if m.expired(s, now) {
		delete(m.sessions, token)
		return nil, false
	}
	s.LastActivity = now
	copied := *s
	return &copied, true
}

// Delete ends a session. It reports whether the token was known.
func (m *Store) Delete(token string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.sessions[token]
	delete(m.sessions, token)
	return ok
}

// DeleteUser ends every session of username and returns how many there were.
func (m *Store) DeleteUser(username string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for token, s := range m.sessions {
		if s.Username == username {
			delete(m.sessions, token)
			n++
		}
	}
	return n
}

// Len returns the number of live sessions, dropping expired ones first.
func (m *Store) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for token, s := range m.sessions {
		if m.expired(s, now) {
			delete(m.sessions, token)
		}
	}
	return len(m.sessions)
}

func (m *Store) expired(s *Session, now time.Time) bool {
	return m.ttl > 0 && now.Sub(s.LastActivity) > m.ttl
}
