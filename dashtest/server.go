// Tencent is pleased to support the open source community by making trpc-dashfetch-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-dashfetch-go is licensed under the Apache License Version 2.0.

// Package dashtest provides an in-process dashboard backend and shared helpers
// for tests. The backend speaks the same HTTP surface as the real dashboard:
// cookie sessions, JSON APIs answering 401 without a session, and the metrics
// event stream.
package dashtest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"trpc.group/trpc-go/trpc-dashfetch-go/internal/httputil"
	"trpc.group/trpc-go/trpc-dashfetch-go/internal/log"
	"trpc.group/trpc-go/trpc-dashfetch-go/internal/session"
	"trpc.group/trpc-go/trpc-dashfetch-go/internal/sseutil"
)

// Defaults of a fresh backend.
const (
	SessionCookie   = "auth"
	DefaultUsername = "admin"
	DefaultPassword = "admin123"

	// DefaultSessionTTL is both the cookie max age and the idle timeout.
	DefaultSessionTTL = 12 * time.Hour
)

// Account is a dashboard user known to the backend.
type Account struct {
	Username  string
	Password  string
	Email     string
	Role      string
	Enabled   bool
	LastLogin string
}

// SystemMetrics is what /api/metrics/system answers.
type SystemMetrics struct {
	CPU    float64 `json:"cpu"`
	Mem    float64 `json:"mem"`
	GPU    float64 `json:"gpu"`
	Alerts int     `json:"alerts"`
}

// Sample is one message of /events/metrics.
type Sample struct {
	CPU float64 `json:"cpu"`
	GPU float64 `json:"gpu"`
}

// Server is a running fake dashboard.
type Server struct {
	*httptest.Server

	router   chi.Router
	sse      *sseutil.Writer
	logger   *log.ZapLogger
	shutdown chan struct{}
	stopOnce sync.Once

	mu         sync.Mutex
	accounts   map[string]*Account
	sessions   *session.Store
	system     SystemMetrics
	hardware   HardwareSummary
	gpus       []GPU
	ifaces     []NetInterface
	disks      []Disk
	samples    []Sample
	interval   time.Duration
	endStream  bool
	hits       map[string]int
	streamOpen int
}

// Option configures a Server.
type Option func(*Server)

// WithAccount adds or replaces an account.
func WithAccount(a Account) Option {
	return func(s *Server) {
		acc := a
		s.accounts[a.Username] = &acc
	}
}

// WithSystemMetrics sets the /api/metrics/system answer.
func WithSystemMetrics(m SystemMetrics) Option {
	return func(s *Server) {
		s.system = m
	}
}

// WithSamples sets the messages pushed on /events/metrics.
func WithSamples(samples ...Sample) Option {
	return func(s *Server) {
		s.samples = append([]Sample(nil), samples...)
	}
}

// WithInterval sets the pause between two stream messages and between
// keep-alive comments once the samples ran out.
func WithInterval(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithStreamEnd makes /events/metrics end the response after the last
// sample instead of idling with keep-alive comments.
func WithStreamEnd() Option {
	return func(s *Server) {
		s.endStream = true
	}
}

// WithSessionTTL sets how long an idle session stays valid.
func WithSessionTTL(ttl time.Duration) Option {
	return func(s *Server) {
		s.sessions = session.NewStore(ttl)
	}
}

// WithLogLevel sets the level of the backend's own log.
func WithLogLevel(level string) Option {
	return func(s *Server) {
		s.logger.SetLevel(level)
	}
}

// NewServer starts a backend with the admin account enabled.
func NewServer(opts ...Option) *Server {
	s := newServer(opts...)
	s.Server = httptest.NewServer(s.router)
	return s
}

// NewUnstartedServer builds a backend without starting it, e.g. to use TLS.
func NewUnstartedServer(opts ...Option) *Server {
	s := newServer(opts...)
	s.Server = httptest.NewUnstartedServer(s.router)
	return s
}

// New builds a backend without a listener. Serve Handler() yourself and call
// Close to end open event streams.
func New(opts ...Option) *Server {
	return newServer(opts...)
}

func newServer(opts ...Option) *Server {
	s := &Server{
		sse:      sseutil.NewWriter(),
		logger:   log.NewZapLogger(log.WithLevel("error")),
		shutdown: make(chan struct{}),
		accounts: map[string]*Account{
			DefaultUsername: {
				Username: DefaultUsername,
				Password: DefaultPassword,
				Email:    "admin@example.com",
				Role:     "admin",
				Enabled:  true,
			},
		},
		sessions: session.NewStore(DefaultSessionTTL),
		system:   SystemMetrics{CPU: 12.5, Mem: 40.2, GPU: 0, Alerts: 1},
		hardware: defaultHardware(),
		gpus:     defaultGPUs(),
		ifaces:   defaultInterfaces(),
		disks:    defaultDisks(),
		samples:  []Sample{{CPU: 10.5, GPU: 1}, {CPU: 20, GPU: 2}, {CPU: 30.25, GPU: 3}},
		interval: 10 * time.Millisecond,
		hits:     map[string]int{},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(s.countHits)

	r.Get("/", s.handleHome)
	r.Get("/login", s.handleLoginPage)
	r.Post("/login", s.handleLoginForm)
	r.Get("/logout", s.handleLogoutPage)
	r.Post("/api/auth/login", s.handleLogin)
	r.Post("/api/auth/logout", s.handleLogout)
	r.Get("/api/auth/me", s.handleMe)

	r.Group(func(r chi.Router) {
		r.Use(s.requireSession)
		r.Get("/api/metrics/system", s.handleSystemMetrics)
		r.Get("/api/users", s.handleUsers)
		r.Get("/api/users/{username}", s.handleUser)
		r.Get("/api/hardware/summary", s.handleHardware)
		r.Get("/api/gpu", s.handleGPUs)
		r.Get("/api/network/interfaces", s.handleInterfaces)
		r.Get("/api/storage/disks", s.handleDisks)
		r.Get("/events/metrics", s.handleMetricsStream)
	})
	return r
}

// Handler returns the router, for mounting without a listener.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close ends open event streams and shuts the listener down.
func (s *Server) Close() {
	s.stopOnce.Do(func() { close(s.shutdown) })
	if s.Server != nil {
		s.Server.Close()
	}
}

// Issue creates a session for username and returns its cookie, skipping the
// login call.
func (s *Server) Issue(username string) *http.Cookie {
	return s.newSession(username)
}

// Revoke ends every session of username, as an expiry or an admin would.
func (s *Server) Revoke(username string) int {
	return s.sessions.DeleteUser(username)
}

// Hits returns how many requests reached path.
func (s *Server) Hits(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[path]
}

// OpenStreams returns the number of event streams being served.
func (s *Server) OpenStreams() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streamOpen
}

// Sessions returns the number of live sessions.
func (s *Server) Sessions() int {
	return s.sessions.Len()
}

func (s *Server) countHits(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.hits[r.URL.Path]++
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) newSession(username string) *http.Cookie {
	sess := s.sessions.Create(username)
	cookie := &http.Cookie{
		Name:     SessionCookie,
		Value:    sess.Token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	if ttl := s.sessions.TTL(); ttl > 0 {
		cookie.MaxAge = int(ttl / time.Second)
	}
	return cookie
}

// currentUser resolves the session cookie to an enabled account.
func (s *Server) currentUser(r *http.Request) (*Account, bool) {
	cookie, err := r.Cookie(SessionCookie)
	if err != nil || cookie.Value == "" {
		return nil, false
	}
	sess, ok := s.sessions.Get(cookie.Value)
	if !ok {
		return nil, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[sess.Username]
	if !ok || !acc.Enabled {
		return nil, false
	}
	copied := *acc
	return &copied, true
}

func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := s.currentUser(r); !ok {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Unauthorized"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// LoginPageError is shown on the login page after a rejected form login.
const LoginPageError = "wrong username or password"

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	writeLoginPage(w, "")
}

func writeLoginPage(w http.ResponseWriter, errMsg string) {
	w.Header().Set(httputil.ContentTypeHeader, "text/html; charset=utf-8")
	page := "<!doctype html><title>login</title><form method=post action=/login></form>"
	if errMsg != "" {
		page += "<p class=error>" + errMsg + "</p>"
	}
	_, _ = w.Write([]byte(page))
}

// handleHome is the dashboard page. Browsers without a session are sent to
// the login page.
func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	acc, ok := s.currentUser(r)
	if !ok {
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}
	w.Header().Set(httputil.ContentTypeHeader, "text/html; charset=utf-8")
	_, _ = w.Write([]byte("<!doctype html><title>dashboard</title><span class=user>" + acc.Username + "</span>"))
}

// handleLoginForm is the browser login: the session cookie rides on a 302
// to the dashboard page, a rejection re-renders the login page.
func (s *Server) handleLoginForm(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeLoginPage(w, LoginPageError)
		return
	}
	cookie, ok := s.authenticate(strings.TrimSpace(r.PostForm.Get("username")), r.PostForm.Get("password"))
	if !ok {
		writeLoginPage(w, LoginPageError)
		return
	}
	http.SetCookie(w, cookie)
	http.Redirect(w, r, "/", http.StatusFound)
}

func (s *Server) handleLogoutPage(w http.ResponseWriter, r *http.Request) {
	s.endSession(w, r)
	http.Redirect(w, r, "/login", http.StatusFound)
}

// authenticate checks the credentials and opens a session.
func (s *Server) authenticate(username, password string) (*http.Cookie, bool) {
	s.mu.Lock()
	acc, ok := s.accounts[username]
	if !ok || !acc.Enabled || acc.Password != password {
		s.mu.Unlock()
		s.logger.Warnf("login rejected for %q", username)
		return nil, false
	}
	acc.LastLogin = time.Now().Format("2006-01-02 15:04:05")
	s.mu.Unlock()
	return s.newSession(username), true
}

func (s *Server) endSession(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(SessionCookie); err == nil {
		s.sessions.Delete(cookie.Value)
	}
	http.SetCookie(w, &http.Cookie{Name: SessionCookie, Value: "", Path: "/", MaxAge: -1})
}

// handleLogin accepts a form or a JSON body, with username/user and
// password/pass as field names.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	fields := map[string]string{}
	if httputil.IsJSONContentType(r.Header.Get(httputil.ContentTypeHeader)) {
		_ = json.NewDecoder(r.Body).Decode(&fields)
	} else if err := r.ParseForm(); err == nil {
		for k := range r.PostForm {
			fields[k] = r.PostForm.Get(k)
		}
	}

	username := strings.TrimSpace(firstNonEmpty(fields["username"], fields["user"]))
	password := firstNonEmpty(fields["password"], fields["pass"])
	if username == "" || password == "" {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"ok": false, "error": "missing username or password"})
		return
	}

	cookie, ok := s.authenticate(username, password)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]interface{}{"ok": false, "error": "wrong username or password"})
		return
	}
	http.SetCookie(w, cookie)
	writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.endSession(w, r)
	writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	acc, ok := s.currentUser(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Unauthorized"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"username": acc.Username,
		"role":     acc.Role,
		"email":    acc.Email,
	})
}

func (s *Server) handleSystemMetrics(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	m := s.system
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, m)
}

type userRow struct {
	U string `json:"u"`
	E string `json:"e"`
	R string `json:"r"`
	S string `json:"s"`
	T string `json:"t"`
}

func rowOf(acc *Account) userRow {
	row := userRow{U: acc.Username, E: acc.Email, R: acc.Role, S: "disabled", T: acc.LastLogin}
	if acc.Enabled {
		row.S = "enabled"
	}
	if row.T == "" {
		row.T = "-"
	}
	return row
}

func (s *Server) handleUsers(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	rows := make([]userRow, 0, len(s.accounts))
	for _, acc := range s.accounts {
		rows = append(rows, rowOf(acc))
	}
	s.mu.Unlock()

	sort.Slice(rows, func(i, j int) bool { return rows[i].U < rows[j].U })
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) handleUser(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")
	s.mu.Lock()
	acc, ok := s.accounts[username]
	var row userRow
	if ok {
		row = rowOf(acc)
	}
	s.mu.Unlock()

	if !ok {
		w.Header().Set(httputil.ContentTypeHeader, httputil.ContentTypeText)
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("no such user: " + username))
		return
	}
	writeJSON(w, http.StatusOK, row)
}

// handleMetricsStream pushes the configured samples, one message each, then
// either ends the response or idles with keep-alive comments until the
// client goes away or the server closes.
func (s *Server) handleMetricsStream(w http.ResponseWriter, r *http.Request) {
	if accept := r.Header.Get(httputil.AcceptHeader); accept != "" &&
		!httputil.AcceptsContentType(accept, httputil.ContentTypeSSE) {
		http.Error(w, "event stream requires Accept: text/event-stream", http.StatusNotAcceptable)
		return
	}

	s.mu.Lock()
	samples := append([]Sample(nil), s.samples...)
	interval, endStream := s.interval, s.endStream
	s.streamOpen++
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.streamOpen--
		s.mu.Unlock()
	}()

	sseutil.SetStandardHeaders(w)
	w.WriteHeader(http.StatusOK)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for i := 0; ; i++ {
		if i < len(samples) {
			data, err := json.Marshal(samples[i])
			if err != nil {
				s.logger.Errorf("marshal sample: %v", err)
				return
			}
			if err := s.sse.WriteEvent(w, sseutil.Event{Data: data}); err != nil {
				s.logger.Debugf("metrics stream: %v", err)
				return
			}
		} else if endStream {
			return
		} else if err := s.sse.WriteComment(w, "keep-alive"); err != nil {
			return
		}

		select {
		case <-ticker.C:
		case <-r.Context().Done():
			return
		case <-s.shutdown:
			return
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set(httputil.ContentTypeHeader, httputil.ContentTypeJSON)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
