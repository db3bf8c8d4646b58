// Tencent is pleased to support the open source community by making trpc-dashfetch-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-dashfetch-go is licensed under the Apache License Version 2.0.

// Package config loads the dashfetch command line configuration.
package config

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variables that override the file.
const (
	EnvBaseURL  = "DASHFETCH_BASE_URL"
	EnvUsername = "DASHFETCH_USERNAME"
	EnvPassword = "DASHFETCH_PASSWORD"
	EnvLogLevel = "DASHFETCH_LOG_LEVEL"
)

// ErrInvalidConfig is wrapped by every Validate failure.
var ErrInvalidConfig = errors.New("invalid config")

// Config is the content of the YAML config file.
type Config struct {
	// BaseURL is the dashboard origin, e.g. http://127.0.0.1:8000.
	BaseURL   string `yaml:"base_url"`
	LoginPath string `yaml:"login_path"`
	// Timeout bounds every non-streaming request.
	Timeout string `yaml:"timeout"`

	Headers map[string]string `yaml:"headers,omitempty"`

	Auth      AuthConfig      `yaml:"auth"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// AuthConfig holds the login credentials and the saved session.
type AuthConfig struct {
	Username string         `yaml:"username,omitempty"`
	Password string         `yaml:"password,omitempty"`
	Cookies  []CookieConfig `yaml:"cookies,omitempty"`
}

// CookieConfig is one saved session cookie.
type CookieConfig struct {
	Name  string `yaml:"name"`
	Value string `yaml:"value"`
}

// RateLimitConfig throttles outgoing requests. RPS 0 disables it.
type RateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

// LoggingConfig controls the log output.
type LoggingConfig struct {
	Level string `yaml:"level"`
	// Requests logs every request, not only failed ones.
	Requests bool `yaml:"requests"`
	// Headers adds request headers to request log lines.
	Headers bool `yaml:"headers"`
}

// MetricsConfig enables the Prometheus request metrics, printed in text
// exposition format when a command finishes.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:   "http://127.0.0.1:8000",
		LoginPath: "/login",
		Timeout:   "30s",
		RateLimit: RateLimitConfig{Burst: 1},
		Logging:   LoggingConfig{Level: "warn"},
		Metrics:   MetricsConfig{Namespace: "dashfetch"},
	}
}

// DefaultPath returns ~/.config/dashfetch/config.yaml, or a relative
// config.yaml when the home directory is unknown.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "config.yaml"
	}
	return filepath.Join(dir, "dashfetch", "config.yaml")
}

// Load reads path over the defaults and applies environment overrides. A
// missing file is not an error.
func Load(path string) (*Config, error) {
	cfg, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	cfg.applyEnvOverrides()
	return cfg, nil
}

// LoadFile is Load without the environment overrides, for rewriting the
// file without copying secrets from the environment into it.
func LoadFile(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// Save writes the config to path, creating parent directories. The file may
// hold a session cookie, so it is only readable by the owner.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(EnvBaseURL); v != "" {
		c.BaseURL = v
	}
	if v := os.Getenv(EnvUsername); v != "" {
		c.Auth.Username = v
	}
	if v := os.Getenv(EnvPassword); v != "" {
		c.Auth.Password = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Logging.Level = v
	}
}

// Validate checks the values Load cannot check while parsing.
func (c *Config) Validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return fmt.Errorf("%w: base_url %q must be an absolute URL", ErrInvalidConfig, c.BaseURL)
	}
	if _, err := c.GetTimeout(); err != nil {
		return fmt.Errorf("%w: timeout: %v", ErrInvalidConfig, err)
	}
	if c.RateLimit.RPS < 0 {
		return fmt.Errorf("%w: rate_limit.rps must not be negative", ErrInvalidConfig)
	}
	switch c.Logging.Level {
	case "", "debug", "info", "warn", "warning", "error", "fatal":
	default:
		return fmt.Errorf("%w: unknown log level %q", ErrInvalidConfig, c.Logging.Level)
	}
	for i, ck := range c.Auth.Cookies {
		if ck.Name == "" {
			return fmt.Errorf("%w: auth.cookies[%d] has no name", ErrInvalidConfig, i)
		}
	}
	return nil
}

// GetTimeout parses Timeout. An empty value means no timeout.
func (c *Config) GetTimeout() (time.Duration, error) {
	if c.Timeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %s", d)
	}
	return d, nil
}

// HTTPHeaders returns Headers as an http.Header.
func (c *Config) HTTPHeaders() http.Header {
	h := make(http.Header, len(c.Headers))
	for k, v := range c.Headers {
		h.Set(k, v)
	}
	return h
}

// SessionCookies returns the saved cookies.
func (c *Config) SessionCookies() []*http.Cookie {
	cookies := make([]*http.Cookie, 0, len(c.Auth.Cookies))
	for _, ck := range c.Auth.Cookies {
		cookies = append(cookies, &http.Cookie{Name: ck.Name, Value: ck.Value})
	}
	return cookies
}

// SetSessionCookies replaces the saved cookies.
func (c *Config) SetSessionCookies(cookies []*http.Cookie) {
	c.Auth.Cookies = c.Auth.Cookies[:0]
	for _, ck := range cookies {
		c.Auth.Cookies = append(c.Auth.Cookies, CookieConfig{Name: ck.Name, Value: ck.Value})
	}
}
