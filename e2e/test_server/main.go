// Tencent is pleased to support the open source community by making trpc-dashfetch-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-dashfetch-go is licensed under the Apache License Version 2.0.

// Fake dashboard backend for running the e2e suite with -real.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"time"

	"trpc.group/trpc-go/trpc-dashfetch-go/dashtest"
	"trpc.group/trpc-go/trpc-dashfetch-go/internal/log"
)

func main() {
	addr := flag.String("addr", "localhost:3456", "Listen address.")
	interval := flag.Duration("interval", 2*time.Second, "Pause between metrics stream messages.")
	flag.Parse()

	logger := log.NewZapLogger(log.WithLevel("info"))
	defer logger.Sync()

	backend := dashtest.New(dashtest.WithInterval(*interval), dashtest.WithLogLevel("info"))
	srv := &http.Server{Addr: *addr, Handler: backend.Handler()}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	go func() {
		<-ctx.Done()
		backend.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Infof("fake dashboard listening on http://%s (login %s / %s)",
		*addr, dashtest.DefaultUsername, dashtest.DefaultPassword)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatalf("server failed: %v", err)
	}
}
