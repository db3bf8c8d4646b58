// Tencent is pleased to support the open source community by making trpc-dashfetch-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-dashfetch-go is licensed under the Apache License Version 2.0.

package dashfetch

import "context"

// DefaultLoginPath is where unauthenticated users are sent.
const DefaultLoginPath = "/login"

// Navigator is the application shell's reaction to a 401. The transport
// calls Navigate exactly once per 401 answer, before returning AuthError.
type Navigator interface {
	Navigate(ctx context.Context, loginURL string)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(ctx context.Context, loginURL string)

// Navigate calls f.
func (f NavigatorFunc) Navigate(ctx context.Context, loginURL string) {
	f(ctx, loginURL)
}

// logNavigator is used when no shell policy was configured.
type logNavigator struct {
	logger Logger
}

func (n logNavigator) Navigate(_ context.Context, loginURL string) {
	n.logger.Warnf("authentication required, login at %s", loginURL)
}
