// Tencent is pleased to support the open source community by making trpc-dashfetch-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-dashfetch-go is licensed under the Apache License Version 2.0.

package middlewares

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	dashfetch "trpc.group/trpc-go/trpc-dashfetch-go"
)

// MetricsRecorder receives per-route request metrics.
type MetricsRecorder interface {
	// IncRequests counts one request.
	IncRequests(route string)
	// IncErrors counts one failed request. code is the HTTP status, or 0
	// when no response arrived.
	IncErrors(route string, code int)
	// ObserveLatency records a request latency in milliseconds.
	ObserveLatency(route string, durationMs float64, success bool)

	// IncInFlight and DecInFlight bracket a request.
	IncInFlight(route string)
	DecInFlight(route string)
}

// MetricsConfig controls metric collection.
type MetricsConfig struct {
	recorder MetricsRecorder

	// Route maps a request to its metric label. Defaults to the method plus
	// the URL path, e.g. "GET /api/users".
	Route func(req *http.Request) string

	// Filter returns false for requests that should not be recorded.
	Filter func(req *http.Request) bool

	EnableLatency  bool
	EnableCounters bool
	EnableErrors   bool
	EnableInFlight bool
}

// DefaultMetricsConfig records everything into a fresh in-memory recorder.
func DefaultMetricsConfig() *MetricsConfig {
	return &MetricsConfig{
		recorder:       NewInMemoryMetricsRecorder(),
		Route:          defaultRoute,
		EnableLatency:  true,
		EnableCounters: true,
		EnableErrors:   true,
		EnableInFlight: true,
	}
}

func defaultRoute(req *http.Request) string {
	return req.Method + " " + req.URL.Path
}

// NewMetricsMiddleware creates the metrics middleware. A request fails when
// next returns an error or the status is 400 or above; 401 counts as a
// failure too.
func NewMetricsMiddleware(opts ...MetricsOption) dashfetch.MiddlewareFunc {
	cfg := DefaultMetricsConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(cfg)
		}
	}

	return func(ctx context.Context, req *http.Request, next dashfetch.HandleFunc) (*http.Response, error) {
		if cfg.Filter != nil && !cfg.Filter(req) {
			return next(ctx, req)
		}
		route := cfg.Route(req)

		var start time.Time
		if cfg.EnableLatency {
			start = time.Now()
		}
		if cfg.EnableInFlight {
			cfg.recorder.IncInFlight(route)
			defer cfg.recorder.DecInFlight(route)
		}
		if cfg.EnableCounters {
			cfg.recorder.IncRequests(route)
		}

		resp, err := next(ctx, req)

		success := err == nil
		code := 0
		if resp != nil {
			code = resp.StatusCode
			if code >= http.StatusBadRequest {
				success = false
			}
		}

		if !success && cfg.EnableErrors {
			cfg.recorder.IncErrors(route, code)
		}
		if cfg.EnableLatency {
			cfg.recorder.ObserveLatency(route, float64(time.Since(start).Milliseconds()), success)
		}
		return resp, err
	}
}

// InMemoryMetricsRecorder keeps metrics in maps, for tests and the CLI summary.
type InMemoryMetricsRecorder struct {
	mu             sync.Mutex
	Requests       map[string]int
	Errors         map[string]map[int]int
	LatencyMs      map[string][]float64
	LatencySuccess map[string][]bool
	InFlight       map[string]int
}

// NewInMemoryMetricsRecorder creates an empty recorder.
func NewInMemoryMetricsRecorder() *InMemoryMetricsRecorder {
	return &InMemoryMetricsRecorder{
		Requests:       map[string]int{},
		Errors:         map[string]map[int]int{},
		LatencyMs:      map[string][]float64{},
		LatencySuccess: map[string][]bool{},
		InFlight:       map[string]int{},
	}
}

func (m *InMemoryMetricsRecorder) IncRequests(route string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Requests[route]++
}

func (m *InMemoryMetricsRecorder) IncErrors(route string, code int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.Errors[route]; !ok {
		m.Errors[route] = map[int]int{}
	}
	m.Errors[route][code]++
}

func (m *InMemoryMetricsRecorder) ObserveLatency(route string, durationMs float64, success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LatencyMs[route] = append(m.LatencyMs[route], durationMs)
	m.LatencySuccess[route] = append(m.LatencySuccess[route], success)
}

func (m *InMemoryMetricsRecorder) IncInFlight(route string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.InFlight[route]++
}

func (m *InMemoryMetricsRecorder) DecInFlight(route string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.InFlight[route]--
}

// Snapshot returns a copy of the request and error counters.
func (m *InMemoryMetricsRecorder) Snapshot() (requests map[string]int, errs map[string]map[int]int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	requests = make(map[string]int, len(m.Requests))
	for k, v := range m.Requests {
		requests[k] = v
	}
	errs = make(map[string]map[int]int, len(m.Errors))
	for k, v := range m.Errors {
		inner := make(map[int]int, len(v))
		for code, n := range v {
			inner[code] = n
		}
		errs[k] = inner
	}
	return requests, errs
}

// PromRecorderConfig configures the Prometheus recorder.
type PromRecorderConfig struct {
	Namespace  string
	Subsystem  string
	Buckets    []float64 // milliseconds; empty uses the defaults
	Registerer prometheus.Registerer
}

// DefaultPromRecorderConfig registers dashfetch_client_* metrics on the
// default registry.
func DefaultPromRecorderConfig() *PromRecorderConfig {
	return &PromRecorderConfig{
		Namespace:  "dashfetch",
		Subsystem:  "client",
		Buckets:    []float64{1, 2, 5, 10, 20, 50, 100, 200, 500, 1000, 2000},
		Registerer: prometheus.DefaultRegisterer,
	}
}

// PromRecorderOption configures the Prometheus recorder.
type PromRecorderOption func(*PromRecorderConfig)

func WithNamespace(ns string) PromRecorderOption {
	return func(cfg *PromRecorderConfig) {
		cfg.Namespace = ns
	}
}

func WithSubsystem(subsystem string) PromRecorderOption {
	return func(cfg *PromRecorderConfig) {
		cfg.Subsystem = subsystem
	}
}

func WithBuckets(buckets []float64) PromRecorderOption {
	return func(cfg *PromRecorderConfig) {
		cfg.Buckets = buckets
	}
}

// WithRegisterer registers the collectors somewhere other than the default
// registry.
func WithRegisterer(r prometheus.Registerer) PromRecorderOption {
	return func(cfg *PromRecorderConfig) {
		cfg.Registerer = r
	}
}

// PrometheusMetricsRecorder exports request metrics to Prometheus.
type PrometheusMetricsRecorder struct {
	requests *prometheus.CounterVec
	errors   *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	inFlight *prometheus.GaugeVec
}

// NewPrometheusMetricsRecorder creates and registers the collectors.
// Collectors already registered under the same names are reused.
func NewPrometheusMetricsRecorder(opts ...PromRecorderOption) (*PrometheusMetricsRecorder, error) {
	cfg := DefaultPromRecorderConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if len(cfg.Buckets) == 0 {
		cfg.Buckets = DefaultPromRecorderConfig().Buckets
	}

	rec := &PrometheusMetricsRecorder{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "requests_total",
			Help:      "Total dashboard requests",
		}, []string{"route"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "errors_total",
			Help:      "Total failed dashboard requests",
		}, []string{"route", "code"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "latency_ms",
			Help:      "Latency of dashboard requests (ms)",
			Buckets:   cfg.Buckets,
		}, []string{"route", "success"}),
		inFlight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "in_flight_requests",
			Help:      "Number of in-flight dashboard requests",
		}, []string{"route"}),
	}

	var err error
	if rec.requests, err = register(cfg.Registerer, rec.requests); err != nil {
		return nil, err
	}
	if rec.errors, err = register(cfg.Registerer, rec.errors); err != nil {
		return nil, err
	}
	if rec.latency, err = register(cfg.Registerer, rec.latency); err != nil {
		return nil, err
	}
	if rec.inFlight, err = register(cfg.Registerer, rec.inFlight); err != nil {
		return nil, err
	}
	return rec, nil
}

// register registers c, falling back to the existing collector when one
// with the same descriptor is already there.
func register[C prometheus.Collector](r prometheus.Registerer, c C) (C, error) {
	if err := r.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

func (p *PrometheusMetricsRecorder) IncRequests(route string) {
	p.requests.WithLabelValues(route).Inc()
}

func (p *PrometheusMetricsRecorder) IncErrors(route string, code int) {
	p.errors.WithLabelValues(route, strconv.Itoa(code)).Inc()
}

func (p *PrometheusMetricsRecorder) ObserveLatency(route string, durationMs float64, success bool) {
	p.latency.WithLabelValues(route, strconv.FormatBool(success)).Observe(durationMs)
}

func (p *PrometheusMetricsRecorder) IncInFlight(route string) {
	p.inFlight.WithLabelValues(route).Inc()
}

func (p *PrometheusMetricsRecorder) DecInFlight(route string) {
	p.inFlight.WithLabelValues(route).Dec()
}

func (p *PrometheusMetricsRecorder) RequestsCollector() prometheus.Collector {
	return p.requests
}

func (p *PrometheusMetricsRecorder) ErrorsCollector() prometheus.Collector {
	return p.errors
}

func (p *PrometheusMetricsRecorder) LatencyCollector() prometheus.Collector {
	return p.latency
}

func (p *PrometheusMetricsRecorder) InFlightCollector() prometheus.Collector {
	return p.inFlight
}

// MetricsOption configures the metrics middleware.
type MetricsOption func(*MetricsConfig)

func WithRecorder(recorder MetricsRecorder) MetricsOption {
	return func(cfg *MetricsConfig) {
		cfg.recorder = recorder
	}
}

func WithRoute(route func(req *http.Request) string) MetricsOption {
	return func(cfg *MetricsConfig) {
		if route != nil {
			cfg.Route = route
		}
	}
}

func WithFilter(filter func(req *http.Request) bool) MetricsOption {
	return func(cfg *MetricsConfig) {
		cfg.Filter = filter
	}
}

func WithEnableLatency(enabled bool) MetricsOption {
	return func(cfg *MetricsConfig) {
		cfg.EnableLatency = enabled
	}
}

func WithEnableCounters(enabled bool) MetricsOption {
	return func(cfg *MetricsConfig) {
		cfg.EnableCounters = enabled
	}
}

func WithEnableErrors(enabled bool) MetricsOption {
	return func(cfg *MetricsConfig) {
		cfg.EnableErrors = enabled
	}
}

func WithEnableInFlight(enabled bool) MetricsOption {
	return func(cfg *MetricsConfig) {
		cfg.EnableInFlight = enabled
	}
}
