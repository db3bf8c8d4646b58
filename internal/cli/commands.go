// Tencent is pleased to support the open source community by making trpc-dashfetch-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-dashfetch-go is licensed under the Apache License Version 2.0.

package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"text/tabwriter"

	"github.com/spf13/cobra"

	dashfetch "trpc.group/trpc-go/trpc-dashfetch-go"
	"trpc.group/trpc-go/trpc-dashfetch-go/dashboard"
	"trpc.group/trpc-go/trpc-dashfetch-go/internal/config"
)

func newGetCommand(a *app) *cobra.Command {
	var (
		pathValues []string
		headers    []string
		include    bool
	)
	cmd := &cobra.Command{
		Use:   "get <address>",
		Short: "GET an address and print the decoded body",
		Long: `GET an address relative to the base URL. JSON bodies are pretty printed,
anything else is printed as is. With -p the address is a URI template, e.g.

  dashfetch get '/api/users/{username}' -p username=admin`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			values, err := parsePairs(pathValues, "=")
			if err != nil {
				return err
			}
			hdr, err := parseHeaders(headers)
			if err != nil {
				return err
			}
			opts := &dashfetch.FetchOptions{Header: hdr}
			if len(values) > 0 {
				opts.PathValues = values
			}
			return a.fetchAndPrint(cmd.Context(), args[0], opts, include)
		},
	}
	cmd.Flags().StringArrayVarP(&pathValues, "param", "p", nil, "Template value name=value (repeatable)")
	cmd.Flags().StringArrayVarP(&headers, "header", "H", nil, "Extra header 'Name: value' (repeatable)")
	cmd.Flags().BoolVarP(&include, "include", "i", false, "Print the status line before the body")
	return cmd
}

func newPostCommand(a *app) *cobra.Command {
	var (
		fields  []string
		include bool
	)
	cmd := &cobra.Command{
		Use:   "post <address>",
		Short: "POST an urlencoded form and print the decoded body",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			form, err := parsePairs(fields, "=")
			if err != nil {
				return err
			}
			ctx, cancel := a.requestContext(cmd.Context())
			defer cancel()

			resp, err := a.transport.PostForm(ctx, args[0], form)
			if err != nil {
				return err
			}
			return a.printResponse(resp, include)
		},
	}
	cmd.Flags().StringArrayVarP(&fields, "field", "f", nil, "Form field key=value (repeatable)")
	cmd.Flags().BoolVarP(&include, "include", "i", false, "Print the status line before the body")
	return cmd
}

func newStreamCommand(a *app) *cobra.Command {
	var (
		maxMessages int
		lastEventID string
	)
	cmd := &cobra.Command{
		Use:   "stream [address]",
		Short: "Print the messages of an event stream, one JSON document per line",
		Long: `Subscribe to a server-sent event stream (default /events/metrics) and print
every message until the server ends the stream, --max messages arrived or
the command is interrupted.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			address := dashboard.PathMetricsEvents
			if len(args) == 1 {
				address = args[0]
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			var (
				count  atomic.Int64
				stream *dashfetch.EventStream
				ready  = make(chan struct{})
			)
			stream, err := a.transport.OpenEventStream(ctx, address, func(payload interface{}) {
				<-ready
				line, err := json.Marshal(payload)
				if err != nil {
					a.logger.Errorf("encode message: %v", err)
					return
				}
				fmt.Fprintln(a.out, string(line))
				if n := count.Add(1); maxMessages > 0 && n >= int64(maxMessages) {
					_ = stream.Close()
				}
			}, dashfetch.WithLastEventID(lastEventID))
			if err != nil {
				return err
			}
			close(ready)

			select {
			case <-stream.Done():
			case <-ctx.Done():
				_ = stream.Close()
				<-stream.Done()
			}
			if count.Load() == 0 && ctx.Err() == nil {
				a.logger.Warnf("stream %s closed without messages; the session may have expired", stream.URL())
			}
			a.logger.Debugf("stream %s closed after %d messages, last event id %q",
				stream.URL(), count.Load(), stream.LastEventID())
			return nil
		},
	}
	cmd.Flags().IntVar(&maxMessages, "max", 0, "Stop after this many messages (0 means no limit)")
	cmd.Flags().StringVar(&lastEventID, "last-event-id", "", "Resume after this event id")
	return cmd
}

func newLoginCommand(a *app) *cobra.Command {
	var (
		username string
		password string
		save     bool
		form     bool
	)
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and optionally save the session cookie to the config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if username == "" {
				username = a.cfg.Auth.Username
			}
			if password == "" {
				password = a.cfg.Auth.Password
			}
			if username == "" || password == "" {
				return fmt.Errorf("username and password are required (flags, config or %s/%s)",
					config.EnvUsername, config.EnvPassword)
			}

			ctx, cancel := a.requestContext(cmd.Context())
			defer cancel()
			login := a.client.Login
			if form {
				login = a.client.LoginForm
			}
			if err := login(ctx, username, password); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "logged in as %s\n", username)

			if save {
				return a.saveSession()
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "Username (defaults to auth.username)")
	cmd.Flags().StringVarP(&password, "password", "P", "", "Password (defaults to auth.password)")
	cmd.Flags().BoolVar(&save, "save", false, "Store the session cookie in the config file")
	cmd.Flags().BoolVar(&form, "form", false, "Sign in through the browser login page instead of the JSON API")
	return cmd
}

func newLogoutCommand(a *app) *cobra.Command {
	var save bool
	cmd := &cobra.Command{
		Use:   "logout",
		Short: "End the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.requestContext(cmd.Context())
			defer cancel()
			if err := a.client.Logout(ctx); err != nil {
				return err
			}
			fmt.Fprintln(a.out, "logged out")
			if save {
				return a.saveSession()
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&save, "save", false, "Remove the saved session cookie from the config file")
	return cmd
}

func newMeCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "me",
		Short: "Show the signed-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.requestContext(cmd.Context())
			defer cancel()
			u, err := a.client.Me(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "%s (%s) %s\n", u.Username, u.Role, u.Email)
			return nil
		},
	}
}

func newSystemCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "system",
		Short: "Show the current system metrics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.requestContext(cmd.Context())
			defer cancel()
			m, err := a.client.SystemMetrics(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "cpu %.1f%%  mem %.1f%%  gpu %.1f%%  alerts %d\n", m.CPU, m.Mem, m.GPU, m.Alerts)
			return nil
		},
	}
}

func newUsersCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "users",
		Short: "List dashboard users",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.requestContext(cmd.Context())
			defer cancel()
			rows, err := a.client.Users(ctx)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "USERNAME\tEMAIL\tROLE\tSTATUS\tLAST LOGIN")
			for _, r := range rows {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.Username, r.Email, r.Role, r.Status, r.LastLogin)
			}
			return tw.Flush()
		},
	}
}

func (a *app) fetchAndPrint(parent context.Context, address string, opts *dashfetch.FetchOptions, include bool) error {
	ctx, cancel := a.requestContext(parent)
	defer cancel()

	resp, err := a.transport.Fetch(ctx, address, opts)
	if err != nil {
		return err
	}
	return a.printResponse(resp, include)
}

// printResponse writes the body and fails for non-2xx answers.
func (a *app) printResponse(resp *dashfetch.Response, include bool) error {
	if include {
		fmt.Fprintf(a.out, "HTTP %d %s\n", resp.StatusCode, http.StatusText(resp.StatusCode))
	}
	if resp.IsJSON() {
		pretty, err := json.MarshalIndent(resp.Value, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(a.out, string(pretty))
	} else if resp.Text != "" {
		fmt.Fprint(a.out, resp.Text)
		if !strings.HasSuffix(resp.Text, "\n") {
			fmt.Fprintln(a.out)
		}
	}
	if !resp.OK() {
		return fmt.Errorf("%w: %s answered %d", dashfetch.ErrUnexpectedStatus, resp.URL, resp.StatusCode)
	}
	return nil
}

// saveSession writes the current session cookies into the config file,
// leaving everything else in the file as it was.
func (a *app) saveSession() error {
	fileCfg, err := config.LoadFile(a.configPath)
	if err != nil {
		return err
	}
	base, err := url.Parse(a.cfg.BaseURL)
	if err != nil {
		return err
	}
	fileCfg.SetSessionCookies(a.jar.Cookies(base))
	if err := fileCfg.Save(a.configPath); err != nil {
		return err
	}
	fmt.Fprintf(a.errOut, "session saved to %s\n", a.configPath)
	return nil
}

// parsePairs splits "key<sep>value" arguments.
func parsePairs(pairs []string, sep string) (map[string]string, error) {
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, sep)
		if !ok || strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("invalid %q, expected key%svalue", p, sep)
		}
		out[strings.TrimSpace(k)] = v
	}
	return out, nil
}

func parseHeaders(raw []string) (http.Header, error) {
	pairs, err := parsePairs(raw, ":")
	if err != nil {
		return nil, err
	}
	h := make(http.Header, len(pairs))
	for k, v := range pairs {
		h.Set(k, strings.TrimSpace(v))
	}
	return h, nil
}
