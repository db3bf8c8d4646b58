// Tencent is pleased to support the open source community by making trpc-dashfetch-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-dashfetch-go is licensed under the Apache License Version 2.0.

// Package cli implements the dashfetch command.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"

	dashfetch "trpc.group/trpc-go/trpc-dashfetch-go"
	"trpc.group/trpc-go/trpc-dashfetch-go/dashboard"
	"trpc.group/trpc-go/trpc-dashfetch-go/internal/config"
	"trpc.group/trpc-go/trpc-dashfetch-go/internal/log"
	"trpc.group/trpc-go/trpc-dashfetch-go/middlewares"
)

// Version information (set by build flags)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// Exit codes.
const (
	ExitOK           = 0
	ExitFailure      = 1
	ExitUnauthorized = 2
)

// app is the state shared by all subcommands of one invocation.
type app struct {
	out    io.Writer
	errOut io.Writer

	configPath string
	baseURL    string
	logLevel   string

	cfg       *config.Config
	logger    *log.ZapLogger
	jar       dashfetch.CredentialStore
	transport *dashfetch.Transport
	client    *dashboard.Client
	registry  *prometheus.Registry
}

// NewRootCommand builds the command tree writing to out and errOut.
func NewRootCommand(out, errOut io.Writer) *cobra.Command {
	a := &app{out: out, errOut: errOut}

	root := &cobra.Command{
		Use:   "dashfetch",
		Short: "Authenticated client for the monitoring dashboard",
		Long: `dashfetch talks to the monitoring dashboard the way its web pages do:
requests carry the session cookie, a 401 answer points you at the login
page, and live metrics are read from the server-sent event stream.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.teardown()
		},
	}
	root.SetOut(out)
	root.SetErr(errOut)

	root.PersistentFlags().StringVar(&a.configPath, "config", config.DefaultPath(), "Config file path")
	root.PersistentFlags().StringVar(&a.baseURL, "base-url", "", "Dashboard base URL (overrides the config file)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level (debug, info, warn, error)")

	root.AddCommand(
		newGetCommand(a),
		newPostCommand(a),
		newStreamCommand(a),
		newLoginCommand(a),
		newLogoutCommand(a),
		newMeCommand(a),
		newSystemCommand(a),
		newUsersCommand(a),
		newHardwareCommand(a),
		newGPUCommand(a),
		newNetworkCommand(a),
		newStorageCommand(a),
		newVersionCommand(a),
	)
	return root
}

// Execute runs the command line and returns the process exit code.
func Execute() int {
	root := NewRootCommand(os.Stdout, os.Stderr)
	err := root.Execute()
	if err != nil && !errors.Is(err, dashfetch.ErrAuthenticationRequired) {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	return ExitCode(err)
}

// ExitCode maps a command error to an exit code: 2 for a 401, 1 for any
// other failure.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, dashfetch.ErrAuthenticationRequired), errors.Is(err, dashboard.ErrLoginRejected):
		return ExitUnauthorized
	default:
		return ExitFailure
	}
}

// setup loads the config and builds the transport.
func (a *app) setup(cmd *cobra.Command, args []string) error {
	if skipSetup(cmd) {
		return nil
	}

	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.baseURL != "" {
		cfg.BaseURL = a.baseURL
	}
	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg

	a.logger = log.NewZapLogger(log.WithLevel(cfg.Logging.Level), log.WithOutput(a.errOut))
	dashfetch.SetDefaultLogger(a.logger)

	jar, err := dashfetch.NewCookieJarStore()
	if err != nil {
		return err
	}
	base, _ := url.Parse(cfg.BaseURL)
	if cookies := cfg.SessionCookies(); len(cookies) > 0 {
		jar.SetCookies(base, cookies)
	}
	a.jar = jar

	mws := []dashfetch.MiddlewareFunc{
		middlewares.Recovery(middlewares.WithRecoveryLogger(a.logger)),
		middlewares.RequestID(),
	}
	logOpts := []middlewares.LoggingOption{
		middlewares.WithLoggingLogger(a.logger),
		middlewares.WithHeaderLogging(cfg.Logging.Headers),
	}
	if cfg.Logging.Requests {
		logOpts = append(logOpts, middlewares.WithShouldLog(middlewares.LogAll))
	}
	mws = append(mws, middlewares.Logging(logOpts...))

	if cfg.Metrics.Enabled {
		a.registry = prometheus.NewRegistry()
		rec, err := middlewares.NewPrometheusMetricsRecorder(
			middlewares.WithRegisterer(a.registry),
			middlewares.WithNamespace(cfg.Metrics.Namespace),
		)
		if err != nil {
			return fmt.Errorf("metrics: %w", err)
		}
		mws = append(mws, middlewares.NewMetricsMiddleware(middlewares.WithRecorder(rec)))
	}

	a.transport, err = dashfetch.NewTransport(cfg.BaseURL,
		dashfetch.WithHTTPClient(&http.Client{}),
		dashfetch.WithCredentialStore(jar),
		dashfetch.WithLoginPath(cfg.LoginPath),
		dashfetch.WithHTTPHeaders(cfg.HTTPHeaders()),
		dashfetch.WithNavigator(dashfetch.NavigatorFunc(a.navigate)),
		dashfetch.WithRateLimit(cfg.RateLimit.RPS, cfg.RateLimit.Burst),
		dashfetch.WithMiddleware(mws...),
		dashfetch.WithLogger(a.logger),
	)
	if err != nil {
		return err
	}
	a.client = dashboard.NewClient(a.transport, dashboard.WithLogger(a.logger))
	return nil
}

// skipSetup reports commands that never talk to the dashboard.
func skipSetup(cmd *cobra.Command) bool {
	switch cmd.Name() {
	case "version", "help", cobra.ShellCompRequestCmd, cobra.ShellCompNoDescRequestCmd:
		return true
	}
	return cmd.Parent() != nil && cmd.Parent().Name() == "completion"
}

// navigate is what the shell does on 401: tell the user where to log in.
func (a *app) navigate(_ context.Context, loginURL string) {
	fmt.Fprintf(a.errOut, "authentication required, log in at %s (or run: dashfetch login)\n", loginURL)
}

// teardown prints the collected metrics and flushes the log.
func (a *app) teardown() error {
	if a.registry != nil {
		families, err := a.registry.Gather()
		if err != nil {
			return fmt.Errorf("gather metrics: %w", err)
		}
		for _, mf := range families {
			if _, err := expfmt.MetricFamilyToText(a.errOut, mf); err != nil {
				return fmt.Errorf("write metrics: %w", err)
			}
		}
	}
	if a.logger != nil {
		_ = a.logger.Sync()
	}
	return nil
}

// requestContext bounds a non-streaming request with the configured timeout.
func (a *app) requestContext(parent context.Context) (context.Context, context.CancelFunc) {
	timeout, _ := a.cfg.GetTimeout()
	if timeout <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, timeout)
}

func newVersionCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(a.out, "dashfetch %s (commit: %s, built: %s)\n", version, commit, date)
		},
	}
}
